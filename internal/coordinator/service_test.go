package coordinator

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/internal/inventory"
	"github.com/ricolancheros/movie-reservation-system/internal/ledger"
	"github.com/ricolancheros/movie-reservation-system/internal/showtimes"
	"github.com/ricolancheros/movie-reservation-system/pkg/config"
	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	"github.com/ricolancheros/movie-reservation-system/pkg/enums"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

func (t testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

// flakyLedger wraps the real ledger so tests can fail chosen operations.
type flakyLedger struct {
	ledger.Service
	failCreate  bool
	failConfirm bool
}

func (f *flakyLedger) Create(ctx context.Context, input ledger.CreateReservationInput) (*models.Reservation, error) {
	if f.failCreate {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger unavailable")
	}
	return f.Service.Create(ctx, input)
}

func (f *flakyLedger) MarkConfirmed(ctx context.Context, id uuid.UUID) error {
	if f.failConfirm {
		return pkgerrors.New(pkgerrors.CodeDependency, "ledger unavailable")
	}
	return f.Service.MarkConfirmed(ctx, id)
}

type fixture struct {
	db        *gorm.DB
	svc       Service
	ledger    *flakyLedger
	inventory inventory.Service
	showtimes showtimes.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:coordinator_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Showtime{},
		&models.SeatInventory{},
		&models.Reservation{},
		&models.SagaAttempt{},
		&models.ReconciliationItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	invSvc, err := inventory.NewService(inventory.NewRepository(db))
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	showSvc, err := showtimes.NewService(showtimes.NewRepository(db), invSvc, testTxRunner{db: db}, nil, 0)
	if err != nil {
		t.Fatalf("showtime service: %v", err)
	}

	flaky := &flakyLedger{Service: ledgerSvc}
	logg := logger.New(logger.Options{ServiceName: "coordinator-test", Level: zerolog.Disabled, Output: io.Discard})

	svc, err := NewService(NewRepository(db), invSvc, flaky, showSvc, nil, logg, config.SagaConfig{
		ReleaseMaxAttempts: 3,
		ReleaseBaseBackoff: time.Millisecond,
		RecoveryTimeout:    time.Minute,
	})
	if err != nil {
		t.Fatalf("coordinator service: %v", err)
	}

	return &fixture{db: db, svc: svc, ledger: flaky, inventory: invSvc, showtimes: showSvc}
}

func (f *fixture) schedule(t *testing.T, seats int) *showtimes.ShowtimeView {
	t.Helper()
	view, err := f.showtimes.Schedule(context.Background(), showtimes.ScheduleShowtimeInput{
		MovieID:    "movie-1",
		MovieTitle: "Stalker",
		HallID:     "hall-1",
		Date:       "2026-09-20",
		Time:       "20:00",
		PriceCents: 1500,
		TotalSeats: seats,
	})
	if err != nil {
		t.Fatalf("schedule showtime: %v", err)
	}
	return view
}

func (f *fixture) availableSeats(t *testing.T, showtimeID uuid.UUID) int {
	t.Helper()
	var inv models.SeatInventory
	if err := f.db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return inv.AvailableSeats
}

func TestCreateReservationConfirms(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	reservation, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  3,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", reservation.Status)
	}
	if reservation.TotalPriceCents != 4500 {
		t.Fatalf("expected price 4500, got %d", reservation.TotalPriceCents)
	}
	if got := f.availableSeats(t, view.ID); got != 7 {
		t.Fatalf("expected 7 seats left, got %d", got)
	}

	var attempt models.SagaAttempt
	if err := f.db.First(&attempt, "showtime_id = ?", view.ID).Error; err != nil {
		t.Fatalf("load saga attempt: %v", err)
	}
	if attempt.Step != enums.SagaStepLedgerCommitted {
		t.Fatalf("expected ledger_committed step, got %s", attempt.Step)
	}
	if attempt.ReservationID == nil || *attempt.ReservationID != reservation.ID {
		t.Fatalf("expected attempt linked to reservation")
	}
}

func TestCreateReservationCapacityRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 2)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	_, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  3,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCapacity {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if got := f.availableSeats(t, view.ID); got != 2 {
		t.Fatalf("expected seats unchanged, got %d", got)
	}

	var count int64
	if err := f.db.Model(&models.Reservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no ledger records, got %d", count)
	}
}

func TestCreateReservationLedgerFailureCompensates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	f.ledger.failCreate = true
	_, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  4,
	})
	if err == nil {
		t.Fatalf("expected error when ledger is down")
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("expected compensating release to restore seats, got %d", got)
	}

	var attempt models.SagaAttempt
	if err := f.db.First(&attempt, "showtime_id = ?", view.ID).Error; err != nil {
		t.Fatalf("load saga attempt: %v", err)
	}
	if attempt.Step != enums.SagaStepCompensationIssued {
		t.Fatalf("expected compensation_issued, got %s", attempt.Step)
	}
}

func TestCreateReservationConfirmFailureFailsRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	f.ledger.failConfirm = true
	_, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  2,
	})
	if err == nil {
		t.Fatalf("expected error when confirm fails")
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("expected seats restored, got %d", got)
	}

	var reservation models.Reservation
	if err := f.db.First(&reservation, "showtime_id = ?", view.ID).Error; err != nil {
		t.Fatalf("load reservation: %v", err)
	}
	if reservation.Status != enums.ReservationStatusFailed {
		t.Fatalf("expected failed record, got %s", reservation.Status)
	}
}

func TestCreateReservationIdempotentReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	key := "idem-" + uuid.NewString()

	input := CreateReservationInput{
		ShowtimeID:     view.ID,
		SeatCount:      2,
		IdempotencyKey: &key,
	}

	first, err := f.svc.CreateReservation(ctx, actor, input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.CreateReservation(ctx, actor, input)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected replay to return the same reservation")
	}
	if got := f.availableSeats(t, view.ID); got != 8 {
		t.Fatalf("expected seats decremented once, got %d", got)
	}
}

func TestCreateReservationDoesNotReplayFailedAttempt(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	key := "idem-" + uuid.NewString()

	input := CreateReservationInput{
		ShowtimeID:     view.ID,
		SeatCount:      2,
		IdempotencyKey: &key,
	}

	f.ledger.failConfirm = true
	if _, err := f.svc.CreateReservation(ctx, actor, input); err == nil {
		t.Fatalf("expected error when confirm fails")
	}

	f.ledger.failConfirm = false
	retried, err := f.svc.CreateReservation(ctx, actor, input)
	if retried != nil {
		t.Fatalf("expected no reservation for failed-attempt key, got status %s", retried.Status)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("expected seats untouched, got %d", got)
	}
}

func TestCreateReservationRejectsKeyReuseWithDifferentInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	key := "idem-" + uuid.NewString()

	if _, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID:     view.ID,
		SeatCount:      2,
		IdempotencyKey: &key,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID:     view.ID,
		SeatCount:      3,
		IdempotencyKey: &key,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeIdempotency {
		t.Fatalf("expected idempotency error, got %v", err)
	}
	if got := f.availableSeats(t, view.ID); got != 8 {
		t.Fatalf("expected no extra decrement, got %d", got)
	}
}

func TestCancelReservationRestoresCapacity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	reservation, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  4,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := f.svc.CancelReservation(ctx, actor, reservation.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.ReservationStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("expected all seats back, got %d", got)
	}
}

func TestCancelReservationTwiceReleasesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	holder := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	canceller := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	if _, err := f.svc.CreateReservation(ctx, holder, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  2,
	}); err != nil {
		t.Fatalf("holder create: %v", err)
	}
	reservation, err := f.svc.CreateReservation(ctx, canceller, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  2,
	})
	if err != nil {
		t.Fatalf("canceller create: %v", err)
	}

	if _, err := f.svc.CancelReservation(ctx, canceller, reservation.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if got := f.availableSeats(t, view.ID); got != 8 {
		t.Fatalf("expected 8 seats after cancel, got %d", got)
	}

	_, err = f.svc.CancelReservation(ctx, canceller, reservation.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on repeat cancel, got %v", err)
	}
	if got := f.availableSeats(t, view.ID); got != 8 {
		t.Fatalf("repeat cancel must not return seats again, got %d", got)
	}
}

func TestCancelReservationOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	owner := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	stranger := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	admin := Actor{UserID: uuid.New(), Role: enums.RoleAdmin}

	reservation, err := f.svc.CreateReservation(ctx, owner, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.CancelReservation(ctx, stranger, reservation.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}

	if _, err := f.svc.CancelReservation(ctx, admin, reservation.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestCancelPendingReservationRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	pending, err := f.ledger.Service.Create(ctx, ledger.CreateReservationInput{
		UserID:          actor.UserID,
		ShowtimeID:      view.ID,
		SeatCount:       1,
		TotalPriceCents: 1500,
	})
	if err != nil {
		t.Fatalf("seed pending reservation: %v", err)
	}

	_, err = f.svc.CancelReservation(ctx, actor, pending.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("cancel of pending must not touch seats, got %d", got)
	}
}

func TestGetReservationOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	owner := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	stranger := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	admin := Actor{UserID: uuid.New(), Role: enums.RoleAdmin}

	reservation, err := f.svc.CreateReservation(ctx, owner, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.GetReservation(ctx, owner, reservation.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := f.svc.GetReservation(ctx, admin, reservation.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	_, err = f.svc.GetReservation(ctx, stranger, reservation.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRecoverStalledAttemptsReleasesSeats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)

	// Simulate a crash after the decrement: seats taken, attempt journaled,
	// no ledger record.
	if err := f.inventory.Reserve(ctx, view.ID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	attempt := models.SagaAttempt{
		ID:         uuid.New(),
		ShowtimeID: view.ID,
		SeatCount:  3,
		Step:       enums.SagaStepCapacityReserved,
	}
	if err := f.db.Create(&attempt).Error; err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	stale := time.Now().UTC().Add(-time.Hour)
	if err := f.db.Exec("UPDATE saga_attempts SET updated_at = ? WHERE id = ?", stale, attempt.ID).Error; err != nil {
		t.Fatalf("age attempt: %v", err)
	}

	recovered, err := f.svc.RecoverStalledAttempts(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 recovered attempt, got %d", recovered)
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("expected seats restored, got %d", got)
	}

	var reloaded models.SagaAttempt
	if err := f.db.First(&reloaded, "id = ?", attempt.ID).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if reloaded.Step != enums.SagaStepCompensationIssued {
		t.Fatalf("expected compensation_issued, got %s", reloaded.Step)
	}
}

func TestRecoverStalledAttemptWithConfirmedLedgerKeepsSeats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)
	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}

	reservation, err := f.svc.CreateReservation(ctx, actor, CreateReservationInput{
		ShowtimeID: view.ID,
		SeatCount:  2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Wind the journal back to look like a crash before the step update.
	stale := time.Now().UTC().Add(-time.Hour)
	if err := f.db.Exec(
		"UPDATE saga_attempts SET step = ?, updated_at = ? WHERE reservation_id = ?",
		enums.SagaStepCapacityReserved, stale, reservation.ID,
	).Error; err != nil {
		t.Fatalf("rewind attempt: %v", err)
	}

	recovered, err := f.svc.RecoverStalledAttempts(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 settled attempt, got %d", recovered)
	}
	if got := f.availableSeats(t, view.ID); got != 8 {
		t.Fatalf("confirmed reservation must keep its seats, got %d", got)
	}

	var reloaded models.SagaAttempt
	if err := f.db.First(&reloaded, "reservation_id = ?", reservation.ID).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if reloaded.Step != enums.SagaStepLedgerCommitted {
		t.Fatalf("expected ledger_committed, got %s", reloaded.Step)
	}
}

func TestProcessReconciliationItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)

	if err := f.inventory.Reserve(ctx, view.ID, 5); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	item := models.ReconciliationItem{
		ID:         uuid.New(),
		ShowtimeID: view.ID,
		SeatCount:  5,
		Reason:     enums.ReconciliationReasonCompensation,
	}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	resolved, err := f.svc.ProcessReconciliationItems(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved item, got %d", resolved)
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("expected seats restored, got %d", got)
	}

	var reloaded models.ReconciliationItem
	if err := f.db.First(&reloaded, "id = ?", item.ID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	if reloaded.ResolvedAt == nil {
		t.Fatalf("expected item resolved")
	}
	if reloaded.Attempts != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", reloaded.Attempts)
	}
}

func TestProcessReconciliationItemOverreleaseResolves(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	view := f.schedule(t, 10)

	// Seats already back home; the queued release would overflow the hall.
	item := models.ReconciliationItem{
		ID:         uuid.New(),
		ShowtimeID: view.ID,
		SeatCount:  5,
		Reason:     enums.ReconciliationReasonCancellation,
	}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	resolved, err := f.svc.ProcessReconciliationItems(ctx)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved item, got %d", resolved)
	}
	if got := f.availableSeats(t, view.ID); got != 10 {
		t.Fatalf("seats must stay within the hall, got %d", got)
	}
}
