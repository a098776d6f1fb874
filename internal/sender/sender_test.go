package sender

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsend/campaigner/internal/domain"
	"github.com/brightsend/campaigner/internal/transport"
	"github.com/brightsend/campaigner/internal/validator"
)

type fakeStore struct {
	records    []*domain.DeliveryRecord
	openEvents []*domain.OpenEvent
	sent       map[uuid.UUID]string
	bounced    map[uuid.UUID]string
	failed     map[uuid.UUID]string
	suppressed map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sent:       map[uuid.UUID]string{},
		bounced:    map[uuid.UUID]string{},
		failed:     map[uuid.UUID]string{},
		suppressed: map[string]string{},
	}
}

func (f *fakeStore) CreateDeliveryRecord(_ context.Context, rec *domain.DeliveryRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) CreateOpenEvent(_ context.Context, ev *domain.OpenEvent) error {
	f.openEvents = append(f.openEvents, ev)
	return nil
}

func (f *fakeStore) MarkSent(_ context.Context, id uuid.UUID, requestID, _ string) error {
	f.sent[id] = requestID
	return nil
}

func (f *fakeStore) MarkBounced(_ context.Context, id uuid.UUID, kind domain.BounceKind, reason string) error {
	f.bounced[id] = string(kind) + ": " + reason
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.failed[id] = reason
	return nil
}

func (f *fakeStore) IsSuppressed(_ context.Context, email string) (bool, string, error) {
	reason, ok := f.suppressed[strings.ToLower(email)]
	return ok, reason, nil
}

type fakeMailer struct {
	calls  int
	result *transport.SendResult
	err    error
}

func (f *fakeMailer) Send(_ context.Context, _ *transport.SendRequest) (*transport.SendResult, error) {
	f.calls++
	return f.result, f.err
}

func validatorWithMX(hasMX bool) *validator.Validator {
	return validator.NewWithLookup(func(ctx context.Context, domain string) ([]*net.MX, error) {
		if !hasMX {
			return nil, nil
		}
		return []*net.MX{{Host: "mx." + domain, Pref: 10}}, nil
	})
}

func newService(st *fakeStore, v *validator.Validator, m transport.Mailer) *Service {
	return New(st, v, m, "https://mail.example.net", transport.EmailAddress{
		Address: "news@example.net",
		Name:    "Example News",
	})
}

func TestSendBatchNoMXDomain(t *testing.T) {
	st := newFakeStore()
	mailer := &fakeMailer{}
	svc := newService(st, validatorWithMX(false), mailer)

	summary := svc.SendBatch(context.Background(), &BatchRequest{
		To:      []Recipient{{Email: "alice@a.com", Name: "Alice"}},
		Subject: "Hi",
		Body:    "Hello {{name}}",
	})

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.SoftBounced)
	assert.Equal(t, 1, summary.HardBounced)
	assert.Equal(t, 0, mailer.calls, "transport must not be invoked for pre-validation rejects")

	require.Len(t, st.records, 1)
	rec := st.records[0]
	assert.Equal(t, domain.StatusHardBounced, rec.Status)
	assert.Equal(t, "No MX records found for domain", rec.BounceReason)
}

func TestSendBatchInvalidFormat(t *testing.T) {
	st := newFakeStore()
	mailer := &fakeMailer{}
	svc := newService(st, validatorWithMX(true), mailer)

	summary := svc.SendBatch(context.Background(), &BatchRequest{
		To:      []Recipient{{Email: "not-an-address"}},
		Subject: "Hi",
	})

	assert.Equal(t, 1, summary.HardBounced)
	assert.Equal(t, 0, mailer.calls)
	require.Len(t, st.records, 1)
	assert.Equal(t, "Invalid email address format", st.records[0].BounceReason)
}

func TestSendBatchAccepted(t *testing.T) {
	st := newFakeStore()
	mailer := &fakeMailer{result: &transport.SendResult{RequestID: "abc123", RawResponse: `{"request_id":"abc123"}`}}
	svc := newService(st, validatorWithMX(true), mailer)

	summary := svc.SendBatch(context.Background(), &BatchRequest{
		To:      []Recipient{{Email: "alice@a.com", Name: "Alice"}},
		Subject: "Hi",
		Body:    "<html><body>Hello {{name}}, <a href=\"https://shop.example.com\">shop</a></body></html>",
	})

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, summary.HardBounced)
	assert.Equal(t, 1, mailer.calls)

	require.Len(t, st.records, 1)
	rec := st.records[0]
	assert.NotEmpty(t, rec.TrackingCode)
	assert.Contains(t, rec.Body, "Hello Alice")
	assert.Contains(t, rec.Body, "/track/click/"+rec.ID.String())
	assert.Contains(t, rec.Body, "/track/open/"+rec.TrackingCode)

	require.Len(t, st.openEvents, 1)
	assert.Equal(t, rec.ID, st.openEvents[0].DeliveryID)
	assert.Equal(t, rec.TrackingCode, st.openEvents[0].TrackingCode)

	assert.Equal(t, "abc123", st.sent[rec.ID])
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "abc123", summary.Results[0].RequestID)
	assert.Equal(t, domain.StatusSent, summary.Results[0].Status)
}

func TestSendBatchTransportHardError(t *testing.T) {
	st := newFakeStore()
	mailer := &fakeMailer{err: errors.New("550 mailbox not found")}
	svc := newService(st, validatorWithMX(true), mailer)

	summary := svc.SendBatch(context.Background(), &BatchRequest{
		To:      []Recipient{{Email: "alice@a.com"}},
		Subject: "Hi",
	})

	assert.Equal(t, 1, summary.HardBounced)
	require.Len(t, st.records, 1)
	assert.Contains(t, st.bounced[st.records[0].ID], "hard")
}

func TestSendBatchTransportUnclassifiedError(t *testing.T) {
	st := newFakeStore()
	mailer := &fakeMailer{err: errors.New("TLS handshake failure")}
	svc := newService(st, validatorWithMX(true), mailer)

	summary := svc.SendBatch(context.Background(), &BatchRequest{
		To:      []Recipient{{Email: "alice@a.com"}},
		Subject: "Hi",
	})

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, st.records, 1)
	assert.Equal(t, "TLS handshake failure", st.failed[st.records[0].ID])
}

func TestSendBatchSuppressedRecipient(t *testing.T) {
	st := newFakeStore()
	st.suppressed["blocked@example.com"] = "Hard bounce"
	mailer := &fakeMailer{}
	svc := newService(st, validatorWithMX(true), mailer)

	summary := svc.SendBatch(context.Background(), &BatchRequest{
		To:      []Recipient{{Email: "blocked@example.com"}},
		Subject: "Hi",
	})

	assert.Equal(t, 1, summary.HardBounced)
	assert.Equal(t, 0, mailer.calls)
	require.Len(t, st.records, 1)
	assert.Contains(t, st.records[0].BounceReason, "Address suppressed")
}

func TestSendBatchCountsSumToRecipients(t *testing.T) {
	st := newFakeStore()
	st.suppressed["blocked@example.com"] = "complaint"
	mailer := &fakeMailer{result: &transport.SendResult{RequestID: "r1"}}
	svc := newService(st, validatorWithMX(true), mailer)

	recipients := []Recipient{
		{Email: "alice@a.com"},
		{Email: "bad-address"},
		{Email: "blocked@example.com"},
		{Email: "bob@b.com"},
	}
	summary := svc.SendBatch(context.Background(), &BatchRequest{To: recipients, Subject: "Hi"})

	total := summary.Sent + summary.Failed + summary.SoftBounced + summary.HardBounced
	assert.Equal(t, len(recipients), total)
	assert.Len(t, summary.Results, len(recipients))
}

func TestSendBatchEmptyRates(t *testing.T) {
	svc := newService(newFakeStore(), validatorWithMX(true), &fakeMailer{})

	summary := svc.SendBatch(context.Background(), &BatchRequest{Subject: "Hi"})

	assert.Equal(t, "0%", summary.AcceptanceRate)
	assert.Equal(t, "0%", summary.BounceRate)
	assert.Equal(t, "0%", summary.HardBounceRate)
}

func TestRate(t *testing.T) {
	tests := []struct {
		count, total int
		want         string
	}{
		{0, 0, "0%"},
		{0, 10, "0%"},
		{1, 1, "100.0%"},
		{1, 3, "33.3%"},
	}
	for _, tt := range tests {
		if got := rate(tt.count, tt.total); got != tt.want {
			t.Errorf("rate(%d, %d) = %q, want %q", tt.count, tt.total, got, tt.want)
		}
	}
}
