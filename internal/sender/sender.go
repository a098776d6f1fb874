// Package sender orchestrates a batch send: per-recipient validation, body
// rendering, tracking injection, the transport call, and delivery-record
// bookkeeping. Recipients are processed sequentially; one recipient's
// failure never aborts the batch.
package sender

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/brightsend/campaigner/internal/bounce"
	"github.com/brightsend/campaigner/internal/domain"
	"github.com/brightsend/campaigner/internal/rewrite"
	"github.com/brightsend/campaigner/internal/transport"
	"github.com/brightsend/campaigner/internal/validator"
)

// DeliveryStore is the persistence surface the orchestrator needs.
type DeliveryStore interface {
	CreateDeliveryRecord(ctx context.Context, rec *domain.DeliveryRecord) error
	CreateOpenEvent(ctx context.Context, ev *domain.OpenEvent) error
	MarkSent(ctx context.Context, id uuid.UUID, requestID, rawResponse string) error
	MarkBounced(ctx context.Context, id uuid.UUID, kind domain.BounceKind, reason string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	IsSuppressed(ctx context.Context, email string) (bool, string, error)
}

// Recipient is one destination address.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// BatchRequest describes one campaign send.
type BatchRequest struct {
	To           []Recipient
	Subject      string
	Body         string
	CampaignID   *uuid.UUID
	CampaignName string
	TemplateName string
}

// RecipientResult is the outcome for one recipient.
type RecipientResult struct {
	Email      string                `json:"email"`
	DeliveryID uuid.UUID             `json:"delivery_id"`
	Status     domain.DeliveryStatus `json:"status"`
	RequestID  string                `json:"request_id,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// BatchSummary aggregates a batch. The four counters always sum to the
// number of input recipients; rate fields report "0%" on an empty batch.
type BatchSummary struct {
	Sent           int               `json:"sent"`
	Failed         int               `json:"failed"`
	SoftBounced    int               `json:"soft_bounced"`
	HardBounced    int               `json:"hard_bounced"`
	AcceptanceRate string            `json:"acceptance_rate"`
	BounceRate     string            `json:"bounce_rate"`
	HardBounceRate string            `json:"hard_bounce_rate"`
	Results        []RecipientResult `json:"results"`
}

// Service is the send orchestrator.
type Service struct {
	store     DeliveryStore
	validator *validator.Validator
	mailer    transport.Mailer
	engine    *liquid.Engine
	baseURL   string
	from      transport.EmailAddress
}

// New creates an orchestrator. baseURL is the externally reachable address
// used to build tracking links.
func New(store DeliveryStore, v *validator.Validator, mailer transport.Mailer, baseURL string, from transport.EmailAddress) *Service {
	return &Service{
		store:     store,
		validator: v,
		mailer:    mailer,
		engine:    liquid.NewEngine(),
		baseURL:   baseURL,
		from:      from,
	}
}

// SendBatch runs the full pipeline for every recipient in order and returns
// the aggregated summary. The caller always gets a summary, never an error:
// failure is expressed in counts and per-recipient results.
func (s *Service) SendBatch(ctx context.Context, req *BatchRequest) *BatchSummary {
	summary := &BatchSummary{Results: []RecipientResult{}}

	for _, rcpt := range req.To {
		res := s.sendOne(ctx, req, rcpt)
		summary.Results = append(summary.Results, res)

		switch res.Status {
		case domain.StatusSent:
			summary.Sent++
		case domain.StatusSoftBounced:
			summary.SoftBounced++
		case domain.StatusHardBounced:
			summary.HardBounced++
		default:
			summary.Failed++
		}
	}

	total := len(req.To)
	summary.AcceptanceRate = rate(summary.Sent, total)
	summary.BounceRate = rate(summary.SoftBounced+summary.HardBounced, total)
	summary.HardBounceRate = rate(summary.HardBounced, total)
	return summary
}

// sendOne runs validate -> render -> rewrite -> transport -> persist for a
// single recipient. Panics in rendering or bookkeeping are recovered and
// recorded as failures so the batch continues.
func (s *Service) sendOne(ctx context.Context, req *BatchRequest, rcpt Recipient) (res RecipientResult) {
	res = RecipientResult{Email: rcpt.Email}

	rec := &domain.DeliveryRecord{
		ID:           uuid.New(),
		Email:        rcpt.Email,
		Name:         rcpt.Name,
		CampaignID:   req.CampaignID,
		CampaignName: req.CampaignName,
		TemplateName: req.TemplateName,
		Subject:      req.Subject,
		TrackingCode: uuid.New().String(),
	}
	res.DeliveryID = rec.ID

	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("internal error: %v", r)
			log.Printf("sender: recovered while sending to %s: %v", rcpt.Email, r)
			if err := s.store.MarkFailed(ctx, rec.ID, reason); err != nil {
				log.Printf("sender: mark failed: %v", err)
			}
			res.Status = domain.StatusFailed
			res.Reason = reason
		}
	}()

	if suppressed, why, err := s.store.IsSuppressed(ctx, rcpt.Email); err != nil {
		log.Printf("sender: suppression check for %s: %v", rcpt.Email, err)
	} else if suppressed {
		return s.rejectBeforeSend(ctx, rec, "Address suppressed: "+why)
	}

	switch s.validator.Check(ctx, rcpt.Email) {
	case validator.InvalidFormat:
		return s.rejectBeforeSend(ctx, rec, "Invalid email address format")
	case validator.NoMX:
		return s.rejectBeforeSend(ctx, rec, "No MX records found for domain")
	}

	rec.Body = rewrite.Apply(s.render(req.Body, rec), s.baseURL, rec.ID, rec.TrackingCode)

	if err := s.store.CreateDeliveryRecord(ctx, rec); err != nil {
		res.Status = domain.StatusFailed
		res.Reason = "create delivery record: " + err.Error()
		log.Printf("sender: %s", res.Reason)
		return res
	}

	if err := s.store.CreateOpenEvent(ctx, &domain.OpenEvent{
		DeliveryID:   rec.ID,
		Email:        rec.Email,
		TrackingCode: rec.TrackingCode,
	}); err != nil {
		log.Printf("sender: create open event for %s: %v", rec.ID, err)
	}

	result, err := s.mailer.Send(ctx, &transport.SendRequest{
		From:     s.from,
		To:       []transport.EmailAddress{{Address: rcpt.Email, Name: rcpt.Name}},
		Subject:  req.Subject,
		HTMLBody: rec.Body,
	})
	if err != nil {
		return s.recordSendFailure(ctx, rec, err, &res)
	}

	if err := s.store.MarkSent(ctx, rec.ID, result.RequestID, result.RawResponse); err != nil {
		log.Printf("sender: mark sent for %s: %v", rec.ID, err)
	}
	res.Status = domain.StatusSent
	res.RequestID = result.RequestID
	return res
}

// rejectBeforeSend persists a pre-validation rejection as a hard bounce.
// No transport call is made for these recipients.
func (s *Service) rejectBeforeSend(ctx context.Context, rec *domain.DeliveryRecord, reason string) RecipientResult {
	now := time.Now()
	rec.Status = domain.StatusHardBounced
	rec.BounceKind = domain.BounceHard
	rec.BounceReason = reason
	rec.BouncedAt = &now

	if err := s.store.CreateDeliveryRecord(ctx, rec); err != nil {
		log.Printf("sender: persist rejection for %s: %v", rec.Email, err)
	}
	return RecipientResult{
		Email:      rec.Email,
		DeliveryID: rec.ID,
		Status:     domain.StatusHardBounced,
		Reason:     reason,
	}
}

// recordSendFailure classifies a transport error and writes the matching
// terminal status.
func (s *Service) recordSendFailure(ctx context.Context, rec *domain.DeliveryRecord, sendErr error, res *RecipientResult) RecipientResult {
	reason := sendErr.Error()
	res.Reason = reason

	switch bounce.Classify("", reason) {
	case bounce.Hard:
		res.Status = domain.StatusHardBounced
		if err := s.store.MarkBounced(ctx, rec.ID, domain.BounceHard, reason); err != nil {
			log.Printf("sender: mark bounced: %v", err)
		}
	case bounce.Soft:
		res.Status = domain.StatusSoftBounced
		if err := s.store.MarkBounced(ctx, rec.ID, domain.BounceSoft, reason); err != nil {
			log.Printf("sender: mark bounced: %v", err)
		}
	default:
		res.Status = domain.StatusFailed
		if err := s.store.MarkFailed(ctx, rec.ID, reason); err != nil {
			log.Printf("sender: mark failed: %v", err)
		}
	}
	return *res
}

// render substitutes the per-recipient placeholders ({{name}}, {{emailId}},
// {{recipientEmail}}) into the body template. A template error falls back to
// the raw body rather than failing the recipient.
func (s *Service) render(body string, rec *domain.DeliveryRecord) string {
	out, err := s.engine.ParseAndRenderString(body, liquid.Bindings{
		"name":           rec.Name,
		"emailId":        rec.ID.String(),
		"recipientEmail": rec.Email,
	})
	if err != nil {
		log.Printf("sender: template render for %s: %v", rec.Email, err)
		return body
	}
	return out
}

// rate formats a percentage, reporting "0%" on a zero denominator.
func rate(count, total int) string {
	if total == 0 || count == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(count)/float64(total)*100)
}
