package domain

import (
	"time"

	"github.com/google/uuid"
)

// OpenEvent is the counter-style open record for one delivery: one row per
// tracking code, incremented on every pixel request.
type OpenEvent struct {
	ID            uuid.UUID  `json:"id"`
	DeliveryID    uuid.UUID  `json:"delivery_id"`
	Email         string     `json:"email"`
	TrackingCode  string     `json:"tracking_code"`
	OpenCount     int        `json:"open_count"`
	FirstOpenedAt *time.Time `json:"first_opened_at,omitempty"`
	LastOpenedAt  *time.Time `json:"last_opened_at,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty"`
}

// ClickEvent records one distinct click. Uniqueness is enforced over the
// (delivery, url, ip, user-agent) tuple so the same client re-clicking the
// same tracked link does not produce duplicate rows.
type ClickEvent struct {
	ID         uuid.UUID `json:"id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	URL        string    `json:"url"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	ClickedAt  time.Time `json:"clicked_at"`
}
