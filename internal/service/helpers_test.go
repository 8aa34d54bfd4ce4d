package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
	"github.com/medtrack/internal/store/gormstore"
	"github.com/medtrack/internal/store/memory"
)

// fixedNow 为 2025-01-14（周二）09:00 UTC
var fixedNow = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

func testClock() Clock {
	return NewClock(func() time.Time { return fixedNow }, time.UTC)
}

type services struct {
	store        store.Store
	medications  *MedicationService
	schedules    *ScheduleService
	intake       *IntakeService
	insights     *InsightService
	interactions *InteractionService
}

func newServices(s store.Store) services {
	clock := testClock()
	return services{
		store:        s,
		medications:  NewMedicationService(s, clock, nil),
		schedules:    NewScheduleService(s, clock),
		intake:       NewIntakeService(s, clock),
		insights:     NewInsightService(s, clock, 0),
		interactions: NewInteractionService(s, clock),
	}
}

func setupMemoryServices(t *testing.T) services {
	t.Helper()
	return newServices(memory.New())
}

func setupSQLiteServices(t *testing.T) services {
	t.Helper()
	gdb, err := db.Open(db.Options{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "medtrack.db"), Silent: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	s := gormstore.New(gdb)
	t.Cleanup(func() { s.Close() })
	return newServices(s)
}
