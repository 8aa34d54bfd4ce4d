// Package storetest 提供 store.Store 实现共用的行为测试。
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

// Factory 为每个子测试创建一个全新的空存储
type Factory func(t *testing.T) store.Store

// Run 执行全部行为测试
func Run(t *testing.T, newStore Factory) {
	t.Run("ids are never reused", func(t *testing.T) { testIDsNeverReused(t, newStore(t)) })
	t.Run("failed atomic leaves store unchanged", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
	t.Run("delete medication cascades", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
	t.Run("medication search", func(t *testing.T) { testMedicationSearch(t, newStore(t)) })
	t.Run("log queries", func(t *testing.T) { testLogQueries(t, newStore(t)) })
	t.Run("schedule filters and food timing", func(t *testing.T) { testSchedules(t, newStore(t)) })
	t.Run("concurrent decrements serialize", func(t *testing.T) { testConcurrentDecrement(t, newStore(t)) })
	t.Run("snapshot restore", func(t *testing.T) { testSnapshotRestore(t, newStore(t), newStore(t)) })
}

func createMedication(t *testing.T, s store.Store, name string, remaining *float64) db.Medication {
	t.Helper()
	var med db.Medication
	err := s.Atomic(context.Background(), func(tx store.Tx) error {
		id, err := tx.NextID(context.Background(), db.CounterMedications)
		if err != nil {
			return err
		}
		med = db.Medication{ID: id, Name: name, Dosage: "10mg", Form: "tablet", RemainingQuantity: remaining}
		return tx.CreateMedication(context.Background(), &med)
	})
	if err != nil {
		t.Fatalf("failed to create medication: %v", err)
	}
	return med
}

func createSchedule(t *testing.T, s store.Store, sc db.Schedule) db.Schedule {
	t.Helper()
	err := s.Atomic(context.Background(), func(tx store.Tx) error {
		id, err := tx.NextID(context.Background(), db.CounterSchedules)
		if err != nil {
			return err
		}
		sc.ID = id
		return tx.CreateSchedule(context.Background(), &sc)
	})
	if err != nil {
		t.Fatalf("failed to create schedule: %v", err)
	}
	return sc
}

func createLog(t *testing.T, s store.Store, l db.IntakeLog) db.IntakeLog {
	t.Helper()
	err := s.Atomic(context.Background(), func(tx store.Tx) error {
		id, err := tx.NextID(context.Background(), db.CounterLogs)
		if err != nil {
			return err
		}
		l.ID = id
		return tx.CreateLog(context.Background(), &l)
	})
	if err != nil {
		t.Fatalf("failed to create log: %v", err)
	}
	return l
}

func testIDsNeverReused(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := createMedication(t, s, "Aspirin", nil)
	second := createMedication(t, s, "Ibuprofen", nil)

	if err := s.Atomic(ctx, func(tx store.Tx) error { return tx.DeleteMedication(ctx, second.ID) }); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}

	third := createMedication(t, s, "Metformin", nil)
	if third.ID <= second.ID || second.ID <= first.ID {
		t.Fatalf("expected strictly increasing ids, got %d, %d, %d", first.ID, second.ID, third.ID)
	}

	if _, err := s.Medication(ctx, second.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted medication, got %v", err)
	}
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	med := createMedication(t, s, "Aspirin", db.Float64Ptr(3))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx store.Tx) error {
		current, err := tx.Medication(ctx, med.ID)
		if err != nil {
			return err
		}
		current.RemainingQuantity = db.Float64Ptr(0)
		if err := tx.SaveMedication(ctx, &current); err != nil {
			return err
		}
		id, err := tx.NextID(ctx, db.CounterLogs)
		if err != nil {
			return err
		}
		if err := tx.CreateLog(ctx, &db.IntakeLog{ID: id, MedicationID: med.ID, Status: db.LogStatusTaken, TakenAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}

	reloaded, err := s.Medication(ctx, med.ID)
	if err != nil {
		t.Fatalf("failed to reload medication: %v", err)
	}
	if reloaded.RemainingQuantity == nil || *reloaded.RemainingQuantity != 3 {
		t.Fatalf("expected remaining quantity untouched, got %v", reloaded.RemainingQuantity)
	}

	logs, err := s.Logs(ctx, store.LogQuery{})
	if err != nil {
		t.Fatalf("failed to list logs: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected no logs after rollback, got %d", len(logs))
	}
}

func testDeleteCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	keep := createMedication(t, s, "Keep", nil)
	drop := createMedication(t, s, "Drop", nil)

	createSchedule(t, s, db.Schedule{MedicationID: keep.ID, Time: "08:00", Frequency: db.FrequencyDaily, StartDate: "2024-01-01", Active: true})
	createSchedule(t, s, db.Schedule{MedicationID: drop.ID, Time: "09:00", Frequency: db.FrequencyDaily, StartDate: "2024-01-01", Active: true})
	createLog(t, s, db.IntakeLog{MedicationID: keep.ID, Status: db.LogStatusTaken, TakenAt: time.Now()})
	createLog(t, s, db.IntakeLog{MedicationID: drop.ID, Status: db.LogStatusMissed, TakenAt: time.Now()})

	if err := s.Atomic(ctx, func(tx store.Tx) error { return tx.DeleteMedication(ctx, drop.ID) }); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}

	schedules, _ := s.Schedules(ctx, store.ScheduleQuery{})
	if len(schedules) != 1 || schedules[0].MedicationID != keep.ID {
		t.Fatalf("expected only kept schedule, got %+v", schedules)
	}
	logs, _ := s.Logs(ctx, store.LogQuery{})
	if len(logs) != 1 || logs[0].MedicationID != keep.ID {
		t.Fatalf("expected only kept log, got %+v", logs)
	}

	err := s.Atomic(ctx, func(tx store.Tx) error { return tx.DeleteMedication(ctx, drop.ID) })
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func testMedicationSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	createMedication(t, s, "Lisinopril", nil)
	aspirin := createMedication(t, s, "Aspirin", nil)

	err := s.Atomic(ctx, func(tx store.Tx) error {
		med, err := tx.Medication(ctx, aspirin.ID)
		if err != nil {
			return err
		}
		med.Purpose = "Heart protection"
		return tx.SaveMedication(ctx, &med)
	})
	if err != nil {
		t.Fatalf("save returned error: %v", err)
	}

	byName, _ := s.Medications(ctx, store.MedicationQuery{Search: "LISINO"})
	if len(byName) != 1 || byName[0].Name != "Lisinopril" {
		t.Fatalf("expected Lisinopril by name, got %+v", byName)
	}

	byPurpose, _ := s.Medications(ctx, store.MedicationQuery{Search: "heart"})
	if len(byPurpose) != 1 || byPurpose[0].ID != aspirin.ID {
		t.Fatalf("expected Aspirin by purpose, got %+v", byPurpose)
	}

	all, _ := s.Medications(ctx, store.MedicationQuery{})
	if len(all) != 2 || all[0].Name != "Aspirin" {
		t.Fatalf("expected two medications ordered by name, got %+v", all)
	}

	// % 和 _ 是普通字符，不是通配符
	for _, term := range []string{"%", "_", `\`} {
		got, err := s.Medications(ctx, store.MedicationQuery{Search: term})
		if err != nil {
			t.Fatalf("search %q returned error: %v", term, err)
		}
		if len(got) != 0 {
			t.Fatalf("search %q should match nothing, got %+v", term, got)
		}
	}

	createMedication(t, s, "Zinc_50%", nil)
	literal, _ := s.Medications(ctx, store.MedicationQuery{Search: "c_50%"})
	if len(literal) != 1 || literal[0].Name != "Zinc_50%" {
		t.Fatalf("expected literal match on Zinc_50%%, got %+v", literal)
	}
}

func testLogQueries(t *testing.T, s store.Store) {
	ctx := context.Background()
	med := createMedication(t, s, "Aspirin", nil)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		createLog(t, s, db.IntakeLog{MedicationID: med.ID, ScheduleID: db.UintPtr(7), Status: db.LogStatusTaken, TakenAt: base.AddDate(0, 0, i)})
	}
	createLog(t, s, db.IntakeLog{MedicationID: med.ID, Status: db.LogStatusSkipped, TakenAt: base.AddDate(0, 0, 10)})

	newest, _ := s.Logs(ctx, store.LogQuery{MedicationID: med.ID, Limit: 2, NewestFirst: true})
	if len(newest) != 2 || !newest[0].TakenAt.Equal(base.AddDate(0, 0, 10)) {
		t.Fatalf("expected newest log first, got %+v", newest)
	}

	window, _ := s.Logs(ctx, store.LogQuery{Since: base.AddDate(0, 0, 1), Until: base.AddDate(0, 0, 3)})
	if len(window) != 2 {
		t.Fatalf("expected 2 logs in window, got %d", len(window))
	}

	bySchedule, _ := s.Logs(ctx, store.LogQuery{ScheduleID: 7})
	if len(bySchedule) != 5 {
		t.Fatalf("expected 5 scheduled logs, got %d", len(bySchedule))
	}

	var removed int64
	err := s.Atomic(ctx, func(tx store.Tx) error {
		var err error
		removed, err = tx.DeleteLogs(ctx, store.LogQuery{ScheduleID: 7})
		return err
	})
	if err != nil || removed != 5 {
		t.Fatalf("expected 5 removed logs, got %d (err=%v)", removed, err)
	}
}

func testSchedules(t *testing.T, s store.Store) {
	ctx := context.Background()
	med := createMedication(t, s, "Aspirin", nil)

	createSchedule(t, s, db.Schedule{MedicationID: med.ID, Time: "20:00", Frequency: db.FrequencyDaily, StartDate: "2024-01-01", FoodTiming: "with_food", Active: true})
	inactive := createSchedule(t, s, db.Schedule{MedicationID: med.ID, Time: "08:00", Frequency: db.FrequencyDaily, StartDate: "2024-01-01", Active: false})

	active, _ := s.Schedules(ctx, store.ScheduleQuery{MedicationID: med.ID, ActiveOnly: true})
	if len(active) != 1 || active[0].Time != "20:00" {
		t.Fatalf("expected one active schedule, got %+v", active)
	}
	if active[0].FoodTiming != db.FoodTimingBefore {
		t.Fatalf("expected legacy food timing normalized, got %q", active[0].FoodTiming)
	}

	all, _ := s.Schedules(ctx, store.ScheduleQuery{})
	if len(all) != 2 || all[0].ID != inactive.ID {
		t.Fatalf("expected schedules ordered by time, got %+v", all)
	}

	loaded, err := s.Schedule(ctx, inactive.ID)
	if err != nil {
		t.Fatalf("get schedule returned error: %v", err)
	}
	if loaded.Active {
		t.Fatal("expected inactive schedule to stay inactive")
	}
}

func testConcurrentDecrement(t *testing.T, s store.Store) {
	ctx := context.Background()
	med := createMedication(t, s, "Aspirin", db.Float64Ptr(5))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Atomic(ctx, func(tx store.Tx) error {
				current, err := tx.Medication(ctx, med.ID)
				if err != nil {
					return err
				}
				if current.HasStock() {
					current.RemainingQuantity = db.Float64Ptr(*current.RemainingQuantity - 1)
					return tx.SaveMedication(ctx, &current)
				}
				return nil
			})
			if err != nil {
				t.Errorf("atomic decrement returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	reloaded, err := s.Medication(ctx, med.ID)
	if err != nil {
		t.Fatalf("failed to reload medication: %v", err)
	}
	if reloaded.RemainingQuantity == nil || *reloaded.RemainingQuantity != 0 {
		t.Fatalf("expected remaining quantity 0, got %v", reloaded.RemainingQuantity)
	}
}

func testSnapshotRestore(t *testing.T, src, dst store.Store) {
	ctx := context.Background()
	med := createMedication(t, src, "Aspirin", db.Float64Ptr(10))
	createSchedule(t, src, db.Schedule{MedicationID: med.ID, Time: "08:00", Frequency: db.FrequencyWeekly, DaysOfWeek: "Mon,Wed", StartDate: "2024-01-01", Active: true})
	createLog(t, src, db.IntakeLog{MedicationID: med.ID, Status: db.LogStatusTaken, TakenAt: time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)})
	deleted := createMedication(t, src, "Deleted", nil)
	if err := src.Atomic(ctx, func(tx store.Tx) error { return tx.DeleteMedication(ctx, deleted.ID) }); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot returned error: %v", err)
	}
	if snap.Counters[db.CounterMedications] != deleted.ID {
		t.Fatalf("expected medication counter %d, got %d", deleted.ID, snap.Counters[db.CounterMedications])
	}

	createMedication(t, dst, "Stale", nil)
	if err := dst.Atomic(ctx, func(tx store.Tx) error { return tx.Restore(ctx, snap) }); err != nil {
		t.Fatalf("restore returned error: %v", err)
	}

	meds, _ := dst.Medications(ctx, store.MedicationQuery{})
	if len(meds) != 1 || meds[0].Name != "Aspirin" {
		t.Fatalf("expected restored medications only, got %+v", meds)
	}

	next := createMedication(t, dst, "After restore", nil)
	if next.ID <= deleted.ID {
		t.Fatalf("expected id after restored counter, got %d", next.ID)
	}
}
