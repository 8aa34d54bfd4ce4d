package backup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
	"github.com/medtrack/internal/store/memory"
)

func seedStore(t *testing.T) store.Store {
	t.Helper()
	s := memory.New()
	ctx := context.Background()
	err := s.Atomic(ctx, func(tx store.Tx) error {
		for _, name := range []string{"A", "B", "C"} {
			id, err := tx.NextID(ctx, db.CounterMedications)
			if err != nil {
				return err
			}
			if err := tx.CreateMedication(ctx, &db.Medication{ID: id, Name: name, Dosage: "1", Form: "tablet", RemainingQuantity: db.Float64Ptr(4)}); err != nil {
				return err
			}
		}
		if err := tx.DeleteMedication(ctx, 3); err != nil {
			return err
		}
		sid, _ := tx.NextID(ctx, db.CounterSchedules)
		if err := tx.CreateSchedule(ctx, &db.Schedule{ID: sid, MedicationID: 1, Time: "08:00", Frequency: db.FrequencyDaily, StartDate: "2025-01-01", Active: true, FoodTiming: db.FoodTimingAfter}); err != nil {
			return err
		}
		lid, _ := tx.NextID(ctx, db.CounterLogs)
		return tx.CreateLog(ctx, &db.IntakeLog{ID: lid, MedicationID: 1, ScheduleID: db.UintPtr(sid), Status: db.LogStatusTaken, TakenAt: time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)})
	})
	if err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			ctx := context.Background()
			src := NewService(seedStore(t))

			var buf bytes.Buffer
			if err := src.WriteTo(ctx, &buf, format); err != nil {
				t.Fatalf("WriteTo returned error: %v", err)
			}

			dst := memory.New()
			summary, err := NewService(dst).ReadFrom(ctx, &buf, format)
			if err != nil {
				t.Fatalf("ReadFrom returned error: %v", err)
			}
			if summary.Medications != 2 || summary.Schedules != 1 || summary.Logs != 1 {
				t.Fatalf("unexpected summary: %+v", summary)
			}

			sc, err := dst.Schedule(ctx, 1)
			if err != nil {
				t.Fatalf("schedule missing after import: %v", err)
			}
			if sc.FoodTiming != db.FoodTimingAfter || !sc.Active {
				t.Fatalf("unexpected schedule: %+v", sc)
			}

			// 已删除药品的 ID 3 不会在导入后被复用
			var next uint
			dst.Atomic(ctx, func(tx store.Tx) error {
				next, err = tx.NextID(ctx, db.CounterMedications)
				return err
			})
			if next != 4 {
				t.Fatalf("expected next medication id 4, got %d", next)
			}
		})
	}
}

func TestRoundTripAfterScheduleDeleted(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t)
	if err := src.Atomic(ctx, func(tx store.Tx) error {
		return tx.DeleteSchedule(ctx, 1)
	}); err != nil {
		t.Fatalf("failed to delete schedule: %v", err)
	}

	var buf bytes.Buffer
	if err := NewService(src).WriteTo(ctx, &buf, FormatJSON); err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}

	dst := memory.New()
	summary, err := NewService(dst).ReadFrom(ctx, &buf, FormatJSON)
	if err != nil {
		t.Fatalf("import of exported document failed: %v", err)
	}
	if summary.Schedules != 0 || summary.Logs != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	logs, err := dst.Logs(ctx, store.LogQuery{})
	if err != nil {
		t.Fatalf("failed to list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].ScheduleID == nil || *logs[0].ScheduleID != 1 {
		t.Fatalf("log should keep its schedule reference, got %+v", logs)
	}
}

func TestImportLegacyDocument(t *testing.T) {
	legacy := `{
  "medications": [{"id": 1, "name": "A", "dosage": "1", "form": "tablet", "remaining_quantity": 2}],
  "schedules": [
    {"id": 1, "medication_id": 1, "time": "08:00", "frequency": "daily", "start_date": "2025-01-01", "with_food": true},
    {"id": 2, "medication_id": 1, "time": "20:00", "frequency": "daily", "start_date": "2025-01-01", "food_timing": "with_food", "active": false}
  ],
  "logs": [],
  "interactions": []
}`

	ctx := context.Background()
	s := memory.New()
	if _, err := NewService(s).ReadFrom(ctx, strings.NewReader(legacy), "json"); err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}

	schedules, _ := s.Schedules(ctx, store.ScheduleQuery{})
	if len(schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(schedules))
	}
	for _, sc := range schedules {
		if sc.FoodTiming != db.FoodTimingBefore {
			t.Fatalf("schedule %d: legacy value should map to before_food, got %s", sc.ID, sc.FoodTiming)
		}
	}
	if !schedules[0].Active || schedules[1].Active {
		t.Fatalf("active should default to true only when absent: %+v", schedules)
	}
}

func TestImportRejectsBrokenReferences(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	svc := NewService(s)

	doc := Document{
		Medications: []Medication{{ID: 1, Name: "A", Dosage: "1", Form: "tablet"}},
		Schedules:   []Schedule{{ID: 1, MedicationID: 2, Time: "08:00", Frequency: db.FrequencyDaily, StartDate: "2025-01-01"}},
	}
	if _, err := svc.Import(ctx, doc); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}

	// 失败的导入不影响现有数据
	meds, _ := s.Medications(ctx, store.MedicationQuery{})
	if len(meds) != 2 {
		t.Fatalf("store changed after failed import: %+v", meds)
	}

	if _, err := svc.ReadFrom(ctx, strings.NewReader("{"), "json"); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for malformed json, got %v", err)
	}
	if _, err := svc.ReadFrom(ctx, strings.NewReader("{}"), "xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNormalizeFormat(t *testing.T) {
	cases := map[string]string{"": FormatJSON, "JSON": FormatJSON, ".yml": FormatYAML, "yaml": FormatYAML}
	for in, want := range cases {
		got, err := NormalizeFormat(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}
