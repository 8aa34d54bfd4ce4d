package service

import (
	"fmt"
	"time"

	"github.com/medtrack/internal/db"
)

// MedicationStats 汇总单个药品在统计窗口内的服药情况
type MedicationStats struct {
	MedicationID   uint
	MedicationName string
	TotalLogs      int
	TakenCount     int
	MissedCount    int
	SkippedCount   int
	AdherenceRate  string
}

// AdherenceWindowStart 返回统计窗口起始日期（今天减去 windowDays 个日历日）
func AdherenceWindowStart(day Day, windowDays int) string {
	today, err := time.ParseInLocation(dateFormat, day.Date, day.loc())
	if err != nil {
		return day.Date
	}
	return today.AddDate(0, 0, -windowDays).Format(dateFormat)
}

// ComputeAdherence 按药品分组统计窗口内的 taken/missed/skipped 数量与依从率。
// 窗口只有下界：未来时间的记录同样计入。medicationID 为 0 表示不过滤。
// 结果顺序为过滤后记录中药品首次出现的顺序。
func ComputeAdherence(logs []db.IntakeLog, medications []db.Medication, windowDays int, day Day, medicationID uint) []MedicationStats {
	start := AdherenceWindowStart(day, windowDays)
	meds := indexMedications(medications)

	order := make([]uint, 0)
	grouped := make(map[uint]*MedicationStats)

	for _, l := range logs {
		if day.dateOf(l.TakenAt) < start {
			continue
		}
		if medicationID != 0 && l.MedicationID != medicationID {
			continue
		}

		stats, ok := grouped[l.MedicationID]
		if !ok {
			stats = &MedicationStats{
				MedicationID:   l.MedicationID,
				MedicationName: medicationName(meds, l.MedicationID),
			}
			grouped[l.MedicationID] = stats
			order = append(order, l.MedicationID)
		}

		// 未知状态只计入总数
		stats.TotalLogs++
		switch l.Status {
		case db.LogStatusTaken:
			stats.TakenCount++
		case db.LogStatusMissed:
			stats.MissedCount++
		case db.LogStatusSkipped:
			stats.SkippedCount++
		}
	}

	out := make([]MedicationStats, 0, len(order))
	for _, id := range order {
		stats := grouped[id]
		stats.AdherenceRate = AdherenceRate(stats.TakenCount, stats.TotalLogs)
		out = append(out, *stats)
	}
	return out
}

// AdherenceRate 返回保留两位小数的百分比，总数为 0 时为 0.00
func AdherenceRate(taken, total int) string {
	if total <= 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(taken)/float64(total)*100)
}
