package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/brightsend/campaigner/internal/bounce"
	"github.com/brightsend/campaigner/internal/domain"
)

// providerEvent is one delivery event pushed by the mail provider.
type providerEvent struct {
	EventType  string `json:"event_type"`
	RequestID  string `json:"request_id"`
	Email      string `json:"email"`
	BounceType string `json:"bounce_type"`
	Reason     string `json:"reason"`
	Code       string `json:"code"`
}

// HandleProviderWebhook reconciles a batch of provider events into the
// delivery records. The contract is "batch accepted": unmatched or unknown
// events are skipped with a log line and the provider always gets a 200.
func (s *Server) HandleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	// cap payload at 5MB
	r.Body = http.MaxBytesReader(w, r.Body, 5*1024*1024)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var batch []providerEvent
	if err := json.Unmarshal(body, &batch); err != nil {
		var single providerEvent
		if err := json.Unmarshal(body, &single); err != nil {
			log.Printf("webhook: undecodable payload: %v", err)
			s.ack(w)
			return
		}
		batch = []providerEvent{single}
	}

	for _, evt := range batch {
		s.applyProviderEvent(r, evt)
	}

	s.ack(w)
}

func (s *Server) applyProviderEvent(r *http.Request, evt providerEvent) {
	ctx := r.Context()

	switch evt.EventType {
	case "click", "open":
		// covered by the dedicated tracking endpoints
		return
	case "delivered", "bounce", "dropped", "spamreport":
	default:
		log.Printf("webhook: skipping unknown event type %q", evt.EventType)
		return
	}

	rec := s.lookupDelivery(r, evt.RequestID)
	if rec == nil {
		log.Printf("webhook: no delivery record for provider id %q, skipping %s", evt.RequestID, evt.EventType)
		return
	}

	switch evt.EventType {
	case "delivered":
		if err := s.store.MarkDelivered(ctx, rec.ID); err != nil {
			log.Printf("webhook: mark delivered %s: %v", rec.ID, err)
		}

	case "bounce":
		kind := domain.BounceKind(evt.BounceType)
		if kind != domain.BounceHard && kind != domain.BounceSoft {
			if bounce.Classify(evt.Code, evt.Reason) == bounce.Hard {
				kind = domain.BounceHard
			} else {
				kind = domain.BounceSoft
			}
		}
		if err := s.store.MarkBounced(ctx, rec.ID, kind, evt.Reason); err != nil {
			log.Printf("webhook: mark bounced %s: %v", rec.ID, err)
		}
		if kind == domain.BounceHard {
			s.suppress(r, rec.Email, "Hard bounce: "+evt.Reason)
		}

	case "dropped":
		if err := s.store.MarkBounced(ctx, rec.ID, domain.BounceHard, "Dropped by provider"); err != nil {
			log.Printf("webhook: mark dropped %s: %v", rec.ID, err)
		}

	case "spamreport":
		if err := s.store.MarkBounced(ctx, rec.ID, domain.BounceHard, "Recipient reported spam"); err != nil {
			log.Printf("webhook: mark spamreport %s: %v", rec.ID, err)
		}
		s.suppress(r, rec.Email, "Spam complaint")
	}
}

// lookupDelivery finds the record for a provider identifier: by stored
// request id first, falling back to treating the identifier as a record id.
func (s *Server) lookupDelivery(r *http.Request, providerID string) *domain.DeliveryRecord {
	if providerID == "" {
		return nil
	}

	rec, err := s.store.GetDeliveryByRequestID(r.Context(), providerID)
	if err != nil {
		log.Printf("webhook: lookup by request id %q: %v", providerID, err)
	}
	if rec != nil {
		return rec
	}

	id, err := uuid.Parse(providerID)
	if err != nil {
		return nil
	}
	rec, err = s.store.GetDelivery(r.Context(), id)
	if err != nil {
		log.Printf("webhook: lookup by id %s: %v", id, err)
	}
	return rec
}

func (s *Server) suppress(r *http.Request, email, reason string) {
	if err := s.store.AddSuppression(r.Context(), email, reason, "provider_webhook"); err != nil {
		log.Printf("webhook: suppress %s: %v", email, err)
	}
}

func (s *Server) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
