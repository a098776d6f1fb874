// Package api exposes the HTTP surface: the batch-send endpoint, the
// open-pixel and click-redirect tracking endpoints, the provider webhook,
// and read-only record/campaign analytics.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/brightsend/campaigner/internal/domain"
	"github.com/brightsend/campaigner/internal/events"
	"github.com/brightsend/campaigner/internal/sender"
	"github.com/brightsend/campaigner/internal/store"
)

// Store is the persistence surface the handlers need.
type Store interface {
	RecordOpen(ctx context.Context, trackingCode, ip, userAgent string) (*domain.OpenEvent, error)
	RecordClick(ctx context.Context, deliveryID uuid.UUID, linkURL, ip, userAgent string) error
	GetDelivery(ctx context.Context, id uuid.UUID) (*domain.DeliveryRecord, error)
	GetDeliveryByRequestID(ctx context.Context, requestID string) (*domain.DeliveryRecord, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkBounced(ctx context.Context, id uuid.UUID, kind domain.BounceKind, reason string) error
	AddSuppression(ctx context.Context, email, reason, source string) error
	GetCampaignStats(ctx context.Context, campaignID uuid.UUID) (*store.CampaignStats, error)
}

// BatchSender runs the send pipeline for one request.
type BatchSender interface {
	SendBatch(ctx context.Context, req *sender.BatchRequest) *sender.BatchSummary
}

// Server wires the HTTP routes.
type Server struct {
	store  Store
	sender BatchSender
	sink   events.Sink
	router *chi.Mux
}

// NewServer builds the router with the standard middleware stack.
func NewServer(st Store, snd BatchSender, sink events.Sink, allowedOrigins []string) *Server {
	s := &Server{store: st, sender: snd, sink: sink}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.HandleHealth)

	r.Get("/track/open/{trackingCode}", s.HandleTrackOpen)
	r.Get("/track/click/{deliveryID}", s.HandleTrackClick)

	r.Post("/webhook/zeptomail", s.HandleProviderWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/send", s.HandleSend)
		r.Get("/records/{id}", s.HandleGetRecord)
		r.Get("/campaigns/{id}/stats", s.HandleCampaignStats)
	})

	s.router = r
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
