package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ricolancheros/movie-reservation-system/pkg/migrate"
)

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestSeatInventoryMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_seat_inventories.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no seat inventory migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS seat_inventories",
		"FOREIGN KEY (showtime_id) REFERENCES showtimes(id) ON DELETE CASCADE",
		"CHECK (available_seats >= 0)",
		"CHECK (available_seats <= total_seats)",
		"DROP TABLE IF EXISTS seat_inventories",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestReservationMigrationHasPartialUniqueIdempotencyIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_reservations.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no reservations migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_idempotency_key") {
		t.Errorf("missing unique idempotency key index")
	}
	if !strings.Contains(content, "WHERE idempotency_key IS NOT NULL") {
		t.Errorf("idempotency key index must be partial so NULL keys never collide")
	}
}

func TestCreateSQLMigrationWritesGooseStub(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add Seat Holds!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_seat_holds.sql") {
		t.Fatalf("unexpected filename %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	content := string(data)
	for _, marker := range []string{"-- +goose Up", "-- +goose Down", "-- +goose StatementBegin"} {
		if !strings.Contains(content, marker) {
			t.Errorf("missing %q in stub", marker)
		}
	}

	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for a name that sanitizes to nothing")
	}
}
