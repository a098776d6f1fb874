package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsend/campaigner/internal/domain"
	"github.com/brightsend/campaigner/internal/store"
)

func postSend(srv *Server, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestSendReturnsSummary(t *testing.T) {
	snd := &fakeSender{}
	srv := newTestServer(newAPIFakeStore(), snd)
	campaignID := uuid.New()

	rr := postSend(srv, `{
		"to": [{"email":"alice@example.com","name":"Alice"},{"email":"bob@example.com"}],
		"subject": "Hello",
		"body": "<p>Hi {{name}}</p>",
		"campaign_id": "`+campaignID.String()+`"
	}`)

	require.Equal(t, 200, rr.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, float64(2), got["sent"])

	require.NotNil(t, snd.got)
	assert.Len(t, snd.got.To, 2)
	assert.Equal(t, "Hello", snd.got.Subject)
	require.NotNil(t, snd.got.CampaignID)
	assert.Equal(t, campaignID, *snd.got.CampaignID)
}

func TestSendRejectsBadRequests(t *testing.T) {
	srv := newTestServer(newAPIFakeStore(), &fakeSender{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"to": [`},
		{"no recipients", `{"to": [], "subject": "Hi"}`},
		{"no subject", `{"to": [{"email":"alice@example.com"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postSend(srv, tt.body)
			assert.Equal(t, 400, rr.Code)
		})
	}
}

func TestGetRecord(t *testing.T) {
	st := newAPIFakeStore()
	rec := &domain.DeliveryRecord{ID: uuid.New(), Email: "alice@example.com", Status: domain.StatusSent}
	st.byID[rec.ID] = rec
	srv := newTestServer(st, &fakeSender{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/api/records/"+rec.ID.String(), nil))

	require.Equal(t, 200, rr.Code)
	var got domain.DeliveryRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestGetRecordNotFound(t *testing.T) {
	srv := newTestServer(newAPIFakeStore(), &fakeSender{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/api/records/"+uuid.New().String(), nil))

	assert.Equal(t, 404, rr.Code)
}

func TestGetRecordBadID(t *testing.T) {
	srv := newTestServer(newAPIFakeStore(), &fakeSender{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/api/records/nope", nil))

	assert.Equal(t, 400, rr.Code)
}

func TestCampaignStats(t *testing.T) {
	st := newAPIFakeStore()
	id := uuid.New()
	st.stats = &store.CampaignStats{CampaignID: id, SentCount: 10, OpenCount: 4}
	srv := newTestServer(st, &fakeSender{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/api/campaigns/"+id.String()+"/stats", nil))

	require.Equal(t, 200, rr.Code)
	var got store.CampaignStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 10, got.SentCount)
	assert.Equal(t, 4, got.OpenCount)
}

func TestCampaignStatsError(t *testing.T) {
	st := newAPIFakeStore()
	st.statsErr = errStore
	srv := newTestServer(st, &fakeSender{})

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest("GET", "/api/campaigns/"+uuid.New().String()+"/stats", nil))

	assert.Equal(t, 500, rr.Code)
}
