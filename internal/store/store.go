// Package store provides PostgreSQL persistence for delivery records and
// their engagement events. Counter updates are single-statement atomic
// increments so concurrent opens or clicks for the same record never lose
// updates. Status writes for webhook-driven transitions are guarded at this
// boundary: terminal records (hard_bounced, failed) are never resurrected by
// a late provider event.
package store

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/campaigner/internal/domain"
)

// Store provides database operations for the send pipeline.
type Store struct {
	db *sql.DB
}

// New creates a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateDeliveryRecord inserts a new record. ID, tracking code, and created
// timestamp are assigned here when unset.
func (s *Store) CreateDeliveryRecord(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.TrackingCode == "" {
		rec.TrackingCode = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusQueued
	}
	rec.CreatedAt = time.Now()
	rec.Email = strings.ToLower(strings.TrimSpace(rec.Email))

	query := `INSERT INTO delivery_records (id, email, name, campaign_id, campaign_name, template_name,
		subject, body, status, bounce_kind, bounce_reason, bounced_at, request_id, raw_response,
		tracking_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.Email, rec.Name, rec.CampaignID,
		rec.CampaignName, rec.TemplateName, rec.Subject, rec.Body, rec.Status,
		nullString(string(rec.BounceKind)), nullString(rec.BounceReason), rec.BouncedAt,
		rec.RequestID, rec.RawResponse, rec.TrackingCode, rec.CreatedAt)
	return err
}

// MarkSent records provider acceptance.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID, requestID, rawResponse string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE delivery_records
		SET status = 'sent', request_id = $2, raw_response = $3, sent_at = NOW()
		WHERE id = $1`, id, requestID, rawResponse)
	if err != nil {
		return err
	}
	s.bumpCampaignStat(ctx, id, "sent_count")
	return nil
}

// MarkBounced records a bounce. A terminal record keeps its existing status;
// the skipped transition is logged, not an error.
func (s *Store) MarkBounced(ctx context.Context, id uuid.UUID, kind domain.BounceKind, reason string) error {
	status := domain.StatusSoftBounced
	if kind == domain.BounceHard {
		status = domain.StatusHardBounced
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_records
		SET status = $2, bounce_kind = $3, bounce_reason = $4, bounced_at = NOW()
		WHERE id = $1 AND status NOT IN ('hard_bounced', 'failed')`,
		id, status, kind, reason)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("store: skipping bounce transition for terminal record %s", id)
		return nil
	}
	s.bumpCampaignStat(ctx, id, "bounce_count")
	return nil
}

// MarkFailed records an unclassified send failure.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE delivery_records
		SET status = 'failed', bounce_reason = $2
		WHERE id = $1 AND status NOT IN ('hard_bounced', 'failed')`, id, reason)
	return err
}

// MarkDelivered records provider-confirmed delivery. Dropped for terminal
// records.
func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_records
		SET status = 'delivered', delivered_at = NOW()
		WHERE id = $1 AND status NOT IN ('hard_bounced', 'failed')`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("store: skipping delivered transition for terminal record %s", id)
	}
	return nil
}

const deliveryColumns = `id, email, name, campaign_id, campaign_name, template_name, subject, body,
	status, COALESCE(bounce_kind, ''), COALESCE(bounce_reason, ''), bounced_at,
	COALESCE(request_id, ''), COALESCE(raw_response, ''), open_count, click_count,
	last_opened_at, last_clicked_at, tracking_code, created_at, sent_at, delivered_at`

func scanDelivery(row *sql.Row) (*domain.DeliveryRecord, error) {
	rec := &domain.DeliveryRecord{}
	var kind string
	err := row.Scan(&rec.ID, &rec.Email, &rec.Name, &rec.CampaignID, &rec.CampaignName,
		&rec.TemplateName, &rec.Subject, &rec.Body, &rec.Status, &kind, &rec.BounceReason,
		&rec.BouncedAt, &rec.RequestID, &rec.RawResponse, &rec.OpenCount, &rec.ClickCount,
		&rec.LastOpenedAt, &rec.LastClickedAt, &rec.TrackingCode, &rec.CreatedAt,
		&rec.SentAt, &rec.DeliveredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.BounceKind = domain.BounceKind(kind)
	return rec, nil
}

// GetDelivery fetches a record by id. Returns nil when not found.
func (s *Store) GetDelivery(ctx context.Context, id uuid.UUID) (*domain.DeliveryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_records WHERE id = $1`, id)
	return scanDelivery(row)
}

// GetDeliveryByRequestID fetches a record by its provider request id.
// Returns nil when not found.
func (s *Store) GetDeliveryByRequestID(ctx context.Context, requestID string) (*domain.DeliveryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_records WHERE request_id = $1`, requestID)
	return scanDelivery(row)
}

// CreateOpenEvent inserts the counter row for a delivery, count zero.
func (s *Store) CreateOpenEvent(ctx context.Context, ev *domain.OpenEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO open_events (id, delivery_id, email, tracking_code, open_count)
		VALUES ($1, $2, $3, $4, 0)`,
		ev.ID, ev.DeliveryID, ev.Email, ev.TrackingCode)
	return err
}

// RecordOpen atomically increments the open counter for a tracking code and
// mirrors the increment onto the delivery record. Returns nil when the code
// is unknown.
func (s *Store) RecordOpen(ctx context.Context, trackingCode, ip, userAgent string) (*domain.OpenEvent, error) {
	ev := &domain.OpenEvent{TrackingCode: trackingCode, IPAddress: ip, UserAgent: userAgent}
	err := s.db.QueryRowContext(ctx, `
		UPDATE open_events
		SET open_count = open_count + 1,
			first_opened_at = COALESCE(first_opened_at, NOW()),
			last_opened_at = NOW(),
			ip_address = $2,
			user_agent = $3
		WHERE tracking_code = $1
		RETURNING id, delivery_id, email, open_count, first_opened_at, last_opened_at`,
		trackingCode, ip, userAgent).Scan(
		&ev.ID, &ev.DeliveryID, &ev.Email, &ev.OpenCount, &ev.FirstOpenedAt, &ev.LastOpenedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE delivery_records
		SET open_count = open_count + 1, last_opened_at = NOW()
		WHERE id = $1`, ev.DeliveryID)
	if err != nil {
		return ev, err
	}
	s.bumpCampaignStat(ctx, ev.DeliveryID, "open_count")
	return ev, nil
}

// RecordClick inserts a click event (duplicate tuples are silently ignored)
// and increments the delivery's click counter.
func (s *Store) RecordClick(ctx context.Context, deliveryID uuid.UUID, linkURL, ip, userAgent string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO click_events (id, delivery_id, url, ip_address, user_agent, clicked_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (delivery_id, url, ip_address, user_agent) DO NOTHING`,
		uuid.New(), deliveryID, linkURL, ip, userAgent)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE delivery_records
		SET click_count = click_count + 1, last_clicked_at = NOW()
		WHERE id = $1`, deliveryID)
	if err != nil {
		return err
	}
	s.bumpCampaignStat(ctx, deliveryID, "click_count")
	return nil
}

// IsSuppressed reports whether an address is on the suppression list.
func (s *Store) IsSuppressed(ctx context.Context, email string) (bool, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var reason string
	err := s.db.QueryRowContext(ctx, `
		SELECT reason FROM suppressions
		WHERE email = $1 AND active = true
		LIMIT 1`, email).Scan(&reason)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, reason, nil
}

// AddSuppression upserts an address onto the suppression list.
func (s *Store) AddSuppression(ctx context.Context, email, reason, source string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppressions (id, email, reason, source, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET reason = $3, source = $4, active = true, updated_at = NOW()`,
		uuid.New(), email, reason, source)
	return err
}

// CampaignStats holds the aggregate engagement counters for one campaign.
type CampaignStats struct {
	CampaignID  uuid.UUID `json:"campaign_id"`
	SentCount   int       `json:"sent"`
	OpenCount   int       `json:"opened"`
	ClickCount  int       `json:"clicked"`
	BounceCount int       `json:"bounced"`
	OpenRate    float64   `json:"open_rate"`
	ClickRate   float64   `json:"click_rate"`
}

// GetCampaignStats returns a campaign's counters with zero-safe rates.
// Returns nil when the campaign is unknown.
func (s *Store) GetCampaignStats(ctx context.Context, campaignID uuid.UUID) (*CampaignStats, error) {
	stats := &CampaignStats{CampaignID: campaignID}
	err := s.db.QueryRowContext(ctx, `
		SELECT sent_count, open_count, click_count, bounce_count
		FROM campaigns WHERE id = $1`, campaignID).Scan(
		&stats.SentCount, &stats.OpenCount, &stats.ClickCount, &stats.BounceCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if stats.SentCount > 0 {
		stats.OpenRate = float64(stats.OpenCount) / float64(stats.SentCount) * 100
		stats.ClickRate = float64(stats.ClickCount) / float64(stats.SentCount) * 100
	}
	return stats, nil
}

// allowed campaign counter columns
var campaignStatColumns = map[string]bool{
	"sent_count":   true,
	"open_count":   true,
	"click_count":  true,
	"bounce_count": true,
}

// bumpCampaignStat atomically increments a campaign counter via the
// delivery's campaign association. Best-effort: failures are logged only.
func (s *Store) bumpCampaignStat(ctx context.Context, deliveryID uuid.UUID, column string) {
	if !campaignStatColumns[column] {
		log.Printf("store: refusing to bump unknown campaign stat %q", column)
		return
	}

	query := `UPDATE campaigns SET ` + column + ` = ` + column + ` + 1, updated_at = NOW()
		WHERE id = (SELECT campaign_id FROM delivery_records WHERE id = $1 AND campaign_id IS NOT NULL)`
	if _, err := s.db.ExecContext(ctx, query, deliveryID); err != nil {
		log.Printf("store: failed to bump campaign %s for delivery %s: %v", column, deliveryID, err)
	}
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
