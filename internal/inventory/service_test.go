package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ricolancheros/movie-reservation-system/pkg/db/models"
	pkgerrors "github.com/ricolancheros/movie-reservation-system/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Busy timeout keeps concurrent writers queueing instead of failing fast.
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.SeatInventory{}); err != nil {
		t.Fatalf("migrate seat inventory: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedInventory(t *testing.T, db *gorm.DB, total, available int) uuid.UUID {
	t.Helper()
	showtimeID := uuid.New()
	inv := models.SeatInventory{
		ShowtimeID:     showtimeID,
		TotalSeats:     total,
		AvailableSeats: available,
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return showtimeID
}

func TestReserveDecrementsAndBumpsVersion(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 10)

	if err := svc.Reserve(ctx, showtimeID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var inv models.SeatInventory
	if err := db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableSeats != 7 {
		t.Fatalf("expected 7 available seats, got %d", inv.AvailableSeats)
	}
	if inv.Version != 1 {
		t.Fatalf("expected version 1, got %d", inv.Version)
	}
}

func TestReserveInsufficientCapacity(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 2)

	err := svc.Reserve(ctx, showtimeID, 3)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCapacity {
		t.Fatalf("expected capacity error, got %v", err)
	}

	var inv models.SeatInventory
	if err := db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableSeats != 2 {
		t.Fatalf("rejected reserve must not change availability, got %d", inv.AvailableSeats)
	}
	if inv.Version != 0 {
		t.Fatalf("rejected reserve must not bump version, got %d", inv.Version)
	}
}

func TestReserveUnknownShowtime(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	err := svc.Reserve(context.Background(), uuid.New(), 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestReserveRetiredShowtime(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 10)

	if err := svc.Retire(ctx, nil, showtimeID); err != nil {
		t.Fatalf("retire: %v", err)
	}

	err := svc.Reserve(ctx, showtimeID, 1)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict error, got %v", err)
	}
}

func TestReserveRejectsNonPositiveSeats(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 10)

	for _, seats := range []int{0, -2} {
		err := svc.Reserve(ctx, showtimeID, seats)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("seats=%d: expected validation error, got %v", seats, err)
		}
	}
}

func TestReleaseRestoresCapacity(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 6)

	if err := svc.Release(ctx, showtimeID, 4); err != nil {
		t.Fatalf("release: %v", err)
	}

	var inv models.SeatInventory
	if err := db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableSeats != 10 {
		t.Fatalf("expected 10 available seats, got %d", inv.AvailableSeats)
	}
}

func TestReleaseOverreleaseRejected(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 8)

	err := svc.Release(ctx, showtimeID, 3)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOverrelease {
		t.Fatalf("expected overrelease error, got %v", err)
	}

	var inv models.SeatInventory
	if err := db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableSeats != 8 {
		t.Fatalf("rejected release must not change availability, got %d", inv.AvailableSeats)
	}
}

func TestReleaseRetiredShowtimeStillWorks(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 5)

	if err := svc.Retire(ctx, nil, showtimeID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if err := svc.Release(ctx, showtimeID, 2); err != nil {
		t.Fatalf("release after retire: %v", err)
	}

	var inv models.SeatInventory
	if err := db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableSeats != 7 {
		t.Fatalf("expected 7 available seats, got %d", inv.AvailableSeats)
	}
}

func TestRetireTwiceIsNoop(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 10)

	if err := svc.Retire(ctx, nil, showtimeID); err != nil {
		t.Fatalf("first retire: %v", err)
	}
	if err := svc.Retire(ctx, nil, showtimeID); err != nil {
		t.Fatalf("second retire: %v", err)
	}
}

func TestCreateForShowtimeStartsFull(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := uuid.New()

	inv, err := svc.CreateForShowtime(ctx, nil, showtimeID, 100)
	if err != nil {
		t.Fatalf("create for showtime: %v", err)
	}
	if inv.AvailableSeats != 100 || inv.TotalSeats != 100 {
		t.Fatalf("expected full inventory, got %+v", inv)
	}

	var stored models.SeatInventory
	if err := db.First(&stored, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if stored.AvailableSeats != 100 {
		t.Fatalf("expected 100 available seats, got %d", stored.AvailableSeats)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	showtimeID := seedInventory(t, db, 10, 10)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Reserve(ctx, showtimeID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful reserves, got %d", succeeded)
	}

	var inv models.SeatInventory
	if err := db.First(&inv, "showtime_id = ?", showtimeID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if inv.AvailableSeats != 0 {
		t.Fatalf("expected 0 available seats, got %d", inv.AvailableSeats)
	}
}
