// Package events carries real-time engagement notifications out of the
// tracking handlers. Publishing is fire-and-forget: a failed publish is
// logged and never surfaces to the HTTP response path.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one engagement notification.
type Event struct {
	Type       string    `json:"type"`
	DeliveryID string    `json:"delivery_id"`
	Email      string    `json:"email,omitempty"`
	CampaignID string    `json:"campaign_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	At         time.Time `json:"at"`
}

const (
	TypeOpened  = "email.opened"
	TypeClicked = "email.clicked"
)

// Sink receives engagement events. Implementations must never block the
// caller on the publish round trip.
type Sink interface {
	Publish(ctx context.Context, evt Event)
}

// RedisSink broadcasts events on a redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to the given channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Publish marshals and broadcasts the event asynchronously with a bounded
// timeout, detached from the caller's context.
func (s *RedisSink) Publish(_ context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("ERROR marshal event: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
			log.Printf("ERROR publishing event to redis: %v", err)
		}
	}()
}

// NopSink discards all events. Used when redis is not configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}
