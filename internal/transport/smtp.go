package transport

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"
)

// SMTPMailer delivers through a plain SMTP relay. Used as the fallback
// transport when no provider API key is configured. SMTP assigns no request
// id, so a locally generated one keeps the delivery record linkage intact.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, username, password)}
}

// Send delivers one transmission over SMTP.
func (m *SMTPMailer) Send(ctx context.Context, sreq *SendRequest) (*SendResult, error) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(sreq.From.Address, sreq.From.Name))

	var to []string
	for _, rcpt := range sreq.To {
		to = append(to, msg.FormatAddress(rcpt.Address, rcpt.Name))
	}
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", sreq.Subject)
	msg.SetBody("text/html", sreq.HTMLBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return nil, fmt.Errorf("smtp send: %w", err)
	}

	return &SendResult{
		RequestID:   "smtp-" + uuid.New().String(),
		RawResponse: `{"transport":"smtp"}`,
	}, nil
}
