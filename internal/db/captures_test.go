package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/logic.report/internal/timeutil"
)

// setupCatalogue opens a fresh catalogue with the embedded migrations
// applied.
func setupCatalogue(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "captures.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewDBAppliesMigrations(t *testing.T) {
	database := setupCatalogue(t)

	version, dirty, err := database.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	latest, err := GetLatestMigrationVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("expected clean version %d, got %d (dirty: %v)", latest, version, dirty)
	}
}

func TestInsertAndGetCapture(t *testing.T) {
	database := setupCatalogue(t)

	rec := &CaptureRecord{
		Path:         "/data/captures/demo.lcap",
		DeviceVendor: "banshee",
		DeviceModel:  "virtual-la",
		SamplerateHz: 1_000_000,
		UnitSize:     1,
		ChannelCount: 8,
		TotalSamples: 1024,
		TotalRecords: 5,
		TriggerCount: 1,
		Notes:        "demo session",
	}

	if err := database.InsertCapture(rec); err != nil {
		t.Fatalf("InsertCapture failed: %v", err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Errorf("InsertCapture should assign a UUID, got %q: %v", rec.ID, err)
	}
	if rec.CreatedNs == 0 {
		t.Error("InsertCapture should stamp CreatedNs")
	}

	got, err := database.GetCapture(rec.ID)
	if err != nil {
		t.Fatalf("GetCapture failed: %v", err)
	}
	if *got != *rec {
		t.Errorf("GetCapture returned %+v, want %+v", got, rec)
	}
}

func TestGetCaptureMissing(t *testing.T) {
	database := setupCatalogue(t)

	if _, err := database.GetCapture("no-such-id"); err == nil {
		t.Error("expected error for missing capture")
	}
}

func TestInsertCaptureNil(t *testing.T) {
	database := setupCatalogue(t)

	if err := database.InsertCapture(nil); err == nil {
		t.Error("expected error for nil record")
	}
}

func TestListCaptures(t *testing.T) {
	database := setupCatalogue(t)

	for _, ns := range []int64{100, 300, 200} {
		err := database.InsertCapture(&CaptureRecord{
			Path:      "/data/captures/x.lcap",
			CreatedNs: ns,
		})
		if err != nil {
			t.Fatalf("InsertCapture failed: %v", err)
		}
	}

	records, err := database.ListCaptures(0)
	if err != nil {
		t.Fatalf("ListCaptures failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].CreatedNs != 300 || records[1].CreatedNs != 200 || records[2].CreatedNs != 100 {
		t.Errorf("records not ordered newest first: %d, %d, %d",
			records[0].CreatedNs, records[1].CreatedNs, records[2].CreatedNs)
	}

	limited, err := database.ListCaptures(2)
	if err != nil {
		t.Fatalf("ListCaptures with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 records with limit, got %d", len(limited))
	}
}

func TestSetCaptureNotes(t *testing.T) {
	database := setupCatalogue(t)

	rec := &CaptureRecord{Path: "/data/captures/noted.lcap"}
	if err := database.InsertCapture(rec); err != nil {
		t.Fatalf("InsertCapture failed: %v", err)
	}

	if err := database.SetCaptureNotes(rec.ID, "loopback test"); err != nil {
		t.Fatalf("SetCaptureNotes failed: %v", err)
	}

	got, err := database.GetCapture(rec.ID)
	if err != nil {
		t.Fatalf("GetCapture failed: %v", err)
	}
	if got.Notes != "loopback test" {
		t.Errorf("expected updated notes, got %q", got.Notes)
	}

	if err := database.SetCaptureNotes("no-such-id", "x"); err == nil {
		t.Error("expected error updating missing capture")
	}
}

func TestDeleteCapture(t *testing.T) {
	database := setupCatalogue(t)

	rec := &CaptureRecord{Path: "/data/captures/gone.lcap"}
	if err := database.InsertCapture(rec); err != nil {
		t.Fatalf("InsertCapture failed: %v", err)
	}

	if err := database.DeleteCapture(rec.ID); err != nil {
		t.Fatalf("DeleteCapture failed: %v", err)
	}
	if _, err := database.GetCapture(rec.ID); err == nil {
		t.Error("capture should be gone after delete")
	}

	if err := database.DeleteCapture(rec.ID); err == nil {
		t.Error("expected error deleting missing capture")
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "database is locked",
			err:      errors.New("database is locked (5) (SQLITE_BUSY)"),
			expected: true,
		},
		{
			name:     "SQLITE_BUSY",
			err:      errors.New("SQLITE_BUSY"),
			expected: true,
		},
		{
			name:     "other error",
			err:      errors.New("some other error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isSQLiteBusy(tt.err)
			if result != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	newClockedDB := func() (*DB, *timeutil.MockClock) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		return &DB{clock: clock}, clock
	}

	t.Run("success on first try", func(t *testing.T) {
		database, clock := newClockedDB()
		callCount := 0
		err := database.retryOnBusy(func() error {
			callCount++
			return nil
		})

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if callCount != 1 {
			t.Errorf("expected 1 call, got %d", callCount)
		}
		if len(clock.Sleeps()) != 0 {
			t.Errorf("expected no sleeps, got %v", clock.Sleeps())
		}
	})

	t.Run("success after retry", func(t *testing.T) {
		database, clock := newClockedDB()
		callCount := 0
		err := database.retryOnBusy(func() error {
			callCount++
			if callCount < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if callCount != 3 {
			t.Errorf("expected 3 calls, got %d", callCount)
		}

		sleeps := clock.Sleeps()
		if len(sleeps) != 2 || sleeps[0] != 10*time.Millisecond || sleeps[1] != 20*time.Millisecond {
			t.Errorf("expected backoff [10ms 20ms], got %v", sleeps)
		}
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		database, _ := newClockedDB()
		callCount := 0
		testErr := errors.New("some other error")
		err := database.retryOnBusy(func() error {
			callCount++
			return testErr
		})

		if err != testErr {
			t.Errorf("expected error %v, got %v", testErr, err)
		}
		if callCount != 1 {
			t.Errorf("expected 1 call, got %d", callCount)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		database, clock := newClockedDB()
		callCount := 0
		err := database.retryOnBusy(func() error {
			callCount++
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		})

		if err == nil {
			t.Error("expected error, got nil")
		}
		if callCount != 5 {
			t.Errorf("expected 5 calls (max retries), got %d", callCount)
		}

		sleeps := clock.Sleeps()
		want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
		if len(sleeps) != len(want) {
			t.Fatalf("expected %d sleeps, got %d", len(want), len(sleeps))
		}
		for i := range want {
			if sleeps[i] != want[i] {
				t.Errorf("sleep %d: got %v, want %v", i, sleeps[i], want[i])
			}
		}
	})
}
