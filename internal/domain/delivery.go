package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus enumerates the lifecycle states of one outbound message.
type DeliveryStatus string

const (
	StatusQueued      DeliveryStatus = "queued"
	StatusSent        DeliveryStatus = "sent"
	StatusDelivered   DeliveryStatus = "delivered"
	StatusSoftBounced DeliveryStatus = "soft_bounced"
	StatusHardBounced DeliveryStatus = "hard_bounced"
	StatusFailed      DeliveryStatus = "failed"
	StatusDrafted     DeliveryStatus = "drafted"
	StatusTrashed     DeliveryStatus = "trashed"
)

// Terminal reports whether a status may never be overwritten by a later
// provider event. A hard-bounced or failed record stays that way; a late
// "delivered" webhook for it is dropped at the write boundary.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusHardBounced || s == StatusFailed
}

// CanTransition reports whether a record currently in from may move to to.
func CanTransition(from, to DeliveryStatus) bool {
	if from.Terminal() {
		return from == to
	}
	return true
}

// BounceKind distinguishes permanent from transient delivery failures.
type BounceKind string

const (
	BounceHard BounceKind = "hard"
	BounceSoft BounceKind = "soft"
)

// DeliveryRecord is the durable record of one outbound message to one
// recipient. Created before the transport call and mutated by tracking
// endpoints and webhook events for the rest of its life.
type DeliveryRecord struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name,omitempty"`

	CampaignID   *uuid.UUID `json:"campaign_id,omitempty"`
	CampaignName string     `json:"campaign_name,omitempty"`
	TemplateName string     `json:"template_name,omitempty"`

	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`

	Status       DeliveryStatus `json:"status"`
	BounceKind   BounceKind     `json:"bounce_kind,omitempty"`
	BounceReason string         `json:"bounce_reason,omitempty"`
	BouncedAt    *time.Time     `json:"bounced_at,omitempty"`

	RequestID   string `json:"request_id,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`

	OpenCount     int        `json:"open_count"`
	ClickCount    int        `json:"click_count"`
	LastOpenedAt  *time.Time `json:"last_opened_at,omitempty"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty"`
	TrackingCode  string     `json:"tracking_code"`

	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
