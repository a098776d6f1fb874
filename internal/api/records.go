package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandleGetRecord returns one delivery record.
func (s *Server) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	rec, err := s.store.GetDelivery(r.Context(), id)
	if err != nil {
		log.Printf("get record %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleCampaignStats returns a campaign's engagement counters and rates.
func (s *Server) HandleCampaignStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	stats, err := s.store.GetCampaignStats(r.Context(), id)
	if err != nil {
		log.Printf("campaign stats %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if stats == nil {
		writeError(w, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
