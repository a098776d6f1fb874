package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultZeptoBaseURL = "https://api.zeptomail.com/v1.1"

// ZeptoClient sends transactional email through the ZeptoMail HTTP API.
type ZeptoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewZeptoClient creates a client. baseURL may be empty to use the public
// endpoint; the underlying HTTP client carries a 30s timeout so a stuck
// provider surfaces as a send error rather than hanging the pipeline.
func NewZeptoClient(baseURL, apiKey string) *ZeptoClient {
	if baseURL == "" {
		baseURL = defaultZeptoBaseURL
	}
	return &ZeptoClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type zeptoRecipient struct {
	EmailAddress EmailAddress `json:"email_address"`
}

type zeptoPayload struct {
	From        EmailAddress     `json:"from"`
	To          []zeptoRecipient `json:"to"`
	Subject     string           `json:"subject"`
	HTMLBody    string           `json:"htmlbody"`
	TrackClicks bool             `json:"track_clicks"`
	TrackOpens  bool             `json:"track_opens"`
}

type zeptoResponse struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
	Data      []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

// Send posts one transmission. The provider's status vocabulary collapses to
// two outcomes: accepted (request id returned) or error.
func (c *ZeptoClient) Send(ctx context.Context, sreq *SendRequest) (*SendResult, error) {
	payload := zeptoPayload{
		From:        sreq.From,
		Subject:     sreq.Subject,
		HTMLBody:    sreq.HTMLBody,
		TrackClicks: sreq.TrackClicks,
		TrackOpens:  sreq.TrackOpens,
	}
	for _, to := range sreq.To {
		payload.To = append(payload.To, zeptoRecipient{EmailAddress: to})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mail API request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var zr zeptoResponse
	json.Unmarshal(raw, &zr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || zr.Error.Message != "" {
		msg := zr.Error.Message
		if len(zr.Error.Details) > 0 {
			msg = zr.Error.Details[0].Message
		}
		if msg == "" {
			msg = fmt.Sprintf("mail API returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return &SendResult{
		RequestID:   zr.RequestID,
		RawResponse: string(raw),
	}, nil
}
