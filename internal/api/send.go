package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/brightsend/campaigner/internal/sender"
)

type sendRequest struct {
	To           []sender.Recipient `json:"to"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
	CampaignID   string             `json:"campaign_id"`
	CampaignName string             `json:"campaign_name"`
	TemplateName string             `json:"template_name"`
}

// HandleSend runs the batch-send pipeline. Only structural problems with the
// request (missing recipients or subject) surface as a 4xx; everything
// below the per-recipient boundary is reflected in the summary, and the
// response is a 200 even when every recipient failed.
func (s *Server) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.To) == 0 {
		writeError(w, http.StatusBadRequest, "at least one recipient is required")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	batch := &sender.BatchRequest{
		To:           req.To,
		Subject:      req.Subject,
		Body:         req.Body,
		CampaignName: req.CampaignName,
		TemplateName: req.TemplateName,
	}
	if req.CampaignID != "" {
		if id, err := uuid.Parse(req.CampaignID); err == nil {
			batch.CampaignID = &id
		}
	}

	summary := s.sender.SendBatch(r.Context(), batch)
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
