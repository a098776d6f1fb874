package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/brightsend/campaigner/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestRecordOpenIncrementsCounters(t *testing.T) {
	s, mock := newMockStore(t)
	deliveryID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "delivery_id", "email", "open_count", "first_opened_at", "last_opened_at"}).
		AddRow(uuid.New().String(), deliveryID.String(), "alice@example.com", 2, now.Add(-time.Hour), now)

	mock.ExpectQuery("UPDATE open_events").
		WithArgs("tc-1", "10.0.0.1", "test-agent").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE delivery_records").
		WithArgs(deliveryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns").
		WithArgs(deliveryID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ev, err := s.RecordOpen(context.Background(), "tc-1", "10.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if ev == nil {
		t.Fatal("expected open event, got nil")
	}
	if ev.OpenCount != 2 {
		t.Errorf("OpenCount = %d, want 2", ev.OpenCount)
	}
	if ev.DeliveryID != deliveryID {
		t.Errorf("DeliveryID = %s, want %s", ev.DeliveryID, deliveryID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecordOpenUnknownCode(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE open_events").
		WithArgs("missing", "10.0.0.1", "agent").
		WillReturnError(sql.ErrNoRows)

	ev, err := s.RecordOpen(context.Background(), "missing", "10.0.0.1", "agent")
	if err != nil {
		t.Fatalf("RecordOpen: %v", err)
	}
	if ev != nil {
		t.Errorf("expected nil event for unknown code, got %+v", ev)
	}
}

func TestRecordClickIgnoresDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	deliveryID := uuid.New()

	// ON CONFLICT DO NOTHING: zero rows affected, no error
	mock.ExpectExec("INSERT INTO click_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE delivery_records").
		WithArgs(deliveryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns").
		WithArgs(deliveryID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordClick(context.Background(), deliveryID, "https://example.com/page", "10.0.0.1", "agent")
	if err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkDeliveredSkipsTerminalRecords(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	// the guarded UPDATE matches no rows for a hard_bounced record
	mock.ExpectExec("UPDATE delivery_records").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.MarkDelivered(context.Background(), id); err != nil {
		t.Fatalf("MarkDelivered on terminal record should not error: %v", err)
	}
}

func TestMarkBouncedSetsStatusByKind(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE delivery_records").
		WithArgs(id, domain.StatusHardBounced, domain.BounceHard, "mailbox not found").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE campaigns").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MarkBounced(context.Background(), id, domain.BounceHard, "mailbox not found"); err != nil {
		t.Fatalf("MarkBounced: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestIsSuppressed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT reason FROM suppressions").
		WithArgs("blocked@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"reason"}).AddRow("Hard bounce"))

	suppressed, reason, err := s.IsSuppressed(context.Background(), "Blocked@Example.com ")
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if !suppressed || reason != "Hard bounce" {
		t.Errorf("IsSuppressed = (%v, %q), want (true, %q)", suppressed, reason, "Hard bounce")
	}
}

func TestIsSuppressedNotListed(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT reason FROM suppressions").
		WithArgs("alice@example.com").
		WillReturnError(sql.ErrNoRows)

	suppressed, _, err := s.IsSuppressed(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if suppressed {
		t.Error("expected not suppressed")
	}
}

func TestCreateDeliveryRecordAssignsIdentity(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO delivery_records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &domain.DeliveryRecord{Email: "Alice@Example.com", Subject: "Hi"}
	if err := s.CreateDeliveryRecord(context.Background(), rec); err != nil {
		t.Fatalf("CreateDeliveryRecord: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if rec.TrackingCode == "" {
		t.Error("tracking code not assigned")
	}
	if rec.Status != domain.StatusQueued {
		t.Errorf("Status = %s, want queued", rec.Status)
	}
	if rec.Email != "alice@example.com" {
		t.Errorf("Email = %q, not normalized", rec.Email)
	}
}
