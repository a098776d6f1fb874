package api

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brightsend/campaigner/internal/events"
)

// 1x1 transparent PNG
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// HandleTrackOpen records an open and always answers with the pixel: a
// broken image in an already-sent email is worse than an uncounted open, so
// bookkeeping failures are swallowed and logged.
func (s *Server) HandleTrackOpen(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "trackingCode")

	ev, err := s.store.RecordOpen(r.Context(), code, realIP(r), r.UserAgent())
	if err != nil {
		log.Printf("track open %s: %v", code, err)
	}
	if ev != nil {
		s.sink.Publish(r.Context(), events.Event{
			Type:       events.TypeOpened,
			DeliveryID: ev.DeliveryID.String(),
			Email:      ev.Email,
			At:         time.Now().UTC(),
		})
		log.Printf("OPEN delivery=%s email=%s count=%d", ev.DeliveryID, ev.Email, ev.OpenCount)
	}

	s.servePixel(w)
}

// HandleTrackClick records a click and redirects to the original
// destination. A missing or undecodable url parameter is a 400; a
// bookkeeping failure is not — the redirect still happens.
func (s *Server) HandleTrackClick(w http.ResponseWriter, r *http.Request) {
	values, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		http.Error(w, "bad url parameter", http.StatusBadRequest)
		return
	}
	dest := values.Get("url")
	if dest == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	deliveryID, err := uuid.Parse(chi.URLParam(r, "deliveryID"))
	if err != nil {
		log.Printf("track click: bad delivery id %q", chi.URLParam(r, "deliveryID"))
		http.Redirect(w, r, dest, http.StatusFound)
		return
	}

	if err := s.store.RecordClick(r.Context(), deliveryID, dest, realIP(r), r.UserAgent()); err != nil {
		log.Printf("track click %s: %v", deliveryID, err)
	} else {
		s.sink.Publish(r.Context(), events.Event{
			Type:       events.TypeClicked,
			DeliveryID: deliveryID.String(),
			URL:        dest,
			At:         time.Now().UTC(),
		})
		log.Printf("CLICK delivery=%s url=%s", deliveryID, dest)
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

func (s *Server) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelPNG)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
