package service

import (
	"testing"
	"time"

	"github.com/medtrack/internal/db"
)

func TestComputeAdherenceRate(t *testing.T) {
	meds := []db.Medication{{ID: 1, Name: "X"}}
	statuses := []string{
		db.LogStatusTaken, db.LogStatusTaken, db.LogStatusTaken, db.LogStatusTaken, db.LogStatusTaken,
		db.LogStatusTaken, db.LogStatusTaken, db.LogStatusMissed, db.LogStatusMissed, db.LogStatusSkipped,
	}

	logs := make([]db.IntakeLog, 0, len(statuses))
	for i, status := range statuses {
		logs = append(logs, db.IntakeLog{
			ID:           uint(i + 1),
			MedicationID: 1,
			Status:       status,
			TakenAt:      time.Date(2025, 1, 14-i, 8, 0, 0, 0, time.UTC),
		})
	}

	stats := ComputeAdherence(logs, meds, 30, tuesday, 0)
	if len(stats) != 1 {
		t.Fatalf("expected 1 group, got %d", len(stats))
	}
	got := stats[0]
	if got.TotalLogs != 10 || got.TakenCount != 7 || got.MissedCount != 2 || got.SkippedCount != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if got.AdherenceRate != "70.00" {
		t.Fatalf("adherence rate = %s, want 70.00", got.AdherenceRate)
	}
	if got.MedicationName != "X" {
		t.Fatalf("unexpected name: %s", got.MedicationName)
	}
}

func TestComputeAdherenceWindowAndFilter(t *testing.T) {
	meds := []db.Medication{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	logs := []db.IntakeLog{
		{ID: 1, MedicationID: 2, Status: db.LogStatusTaken, TakenAt: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)},
		// 窗口起点当天包含在内
		{ID: 2, MedicationID: 1, Status: db.LogStatusTaken, TakenAt: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)},
		// 窗口起点前一天被排除
		{ID: 3, MedicationID: 1, Status: db.LogStatusMissed, TakenAt: time.Date(2025, 1, 6, 23, 59, 0, 0, time.UTC)},
		// 未来的记录依旧计入
		{ID: 4, MedicationID: 1, Status: db.LogStatusMissed, TakenAt: time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)},
		// 未知状态只计入总数
		{ID: 5, MedicationID: 99, Status: "late", TakenAt: time.Date(2025, 1, 12, 8, 0, 0, 0, time.UTC)},
	}

	if start := AdherenceWindowStart(tuesday, 7); start != "2025-01-07" {
		t.Fatalf("window start = %s", start)
	}

	stats := ComputeAdherence(logs, meds, 7, tuesday, 0)
	if len(stats) != 3 {
		t.Fatalf("expected 3 groups, got %+v", stats)
	}
	// 分组顺序为首次出现顺序
	if stats[0].MedicationID != 2 || stats[1].MedicationID != 1 || stats[2].MedicationID != 99 {
		t.Fatalf("unexpected group order: %+v", stats)
	}
	if stats[1].TotalLogs != 2 || stats[1].AdherenceRate != "50.00" {
		t.Fatalf("unexpected stats for medication 1: %+v", stats[1])
	}
	unknown := stats[2]
	if unknown.MedicationName != UnknownMedicationName || unknown.TotalLogs != 1 || unknown.TakenCount+unknown.MissedCount+unknown.SkippedCount != 0 {
		t.Fatalf("unexpected stats for unknown status: %+v", unknown)
	}
	if unknown.AdherenceRate != "0.00" {
		t.Fatalf("unexpected rate: %s", unknown.AdherenceRate)
	}

	filtered := ComputeAdherence(logs, meds, 7, tuesday, 2)
	if len(filtered) != 1 || filtered[0].MedicationID != 2 || filtered[0].AdherenceRate != "100.00" {
		t.Fatalf("unexpected filtered stats: %+v", filtered)
	}
}

func TestComputeAdherenceUsesDayLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	day := DayOf(time.Date(2025, 1, 14, 9, 0, 0, 0, loc))
	if start := AdherenceWindowStart(day, 7); start != "2025-01-07" {
		t.Fatalf("window start = %s", start)
	}

	logs := []db.IntakeLog{
		// UTC 01-06 16:30 即东八区 01-07 00:30，落在窗口内
		{ID: 1, MedicationID: 1, Status: db.LogStatusTaken, TakenAt: time.Date(2025, 1, 6, 16, 30, 0, 0, time.UTC)},
		// UTC 01-06 15:30 即东八区 01-06 23:30，落在窗口外
		{ID: 2, MedicationID: 1, Status: db.LogStatusMissed, TakenAt: time.Date(2025, 1, 6, 15, 30, 0, 0, time.UTC)},
	}

	stats := ComputeAdherence(logs, []db.Medication{{ID: 1, Name: "A"}}, 7, day, 0)
	if len(stats) != 1 || stats[0].TotalLogs != 1 || stats[0].AdherenceRate != "100.00" {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// 同样的记录按 UTC 日期统计时两条都在窗口外
	if got := ComputeAdherence(logs, nil, 7, tuesday, 0); len(got) != 0 {
		t.Fatalf("expected no stats for UTC day, got %+v", got)
	}
}

func TestComputeAdherenceEmpty(t *testing.T) {
	stats := ComputeAdherence(nil, nil, 30, tuesday, 0)
	if stats == nil || len(stats) != 0 {
		t.Fatalf("expected empty list, got %#v", stats)
	}
}

func TestAdherenceRate(t *testing.T) {
	cases := []struct {
		taken, total int
		want         string
	}{
		{0, 0, "0.00"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{3, 3, "100.00"},
	}
	for _, tc := range cases {
		if got := AdherenceRate(tc.taken, tc.total); got != tc.want {
			t.Fatalf("AdherenceRate(%d, %d) = %s, want %s", tc.taken, tc.total, got, tc.want)
		}
	}
}
