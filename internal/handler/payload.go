package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/service"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func medicationToPayload(m db.Medication) gin.H {
	return gin.H{
		"id":                 m.ID,
		"name":               m.Name,
		"dosage":             m.Dosage,
		"form":               m.Form,
		"purpose":            m.Purpose,
		"prescribing_doctor": m.PrescribingDoctor,
		"prescription_date":  m.PrescriptionDate,
		"side_effects":       m.SideEffects,
		"notes":              m.Notes,
		"total_quantity":     m.TotalQuantity,
		"remaining_quantity": m.RemainingQuantity,
		"refill_count":       m.RefillCount,
		"photo_url":          m.PhotoURL,
		"thumbnail_url":      m.ThumbnailURL,
		"created_at":         formatTime(m.CreatedAt),
		"updated_at":         formatTime(m.UpdatedAt),
	}
}

func medicationsToPayload(meds []db.Medication) []gin.H {
	items := make([]gin.H, 0, len(meds))
	for _, m := range meds {
		items = append(items, medicationToPayload(m))
	}
	return items
}

func medicationDetailToPayload(detail service.MedicationDetail) gin.H {
	item := medicationToPayload(detail.Medication)

	schedules := make([]gin.H, 0, len(detail.Schedules))
	for _, s := range detail.Schedules {
		schedules = append(schedules, scheduleToPayload(s))
	}
	logs := make([]gin.H, 0, len(detail.RecentLogs))
	for _, l := range detail.RecentLogs {
		logs = append(logs, logToPayload(l))
	}

	item["schedules"] = schedules
	item["recent_logs"] = logs
	item["notes_html"] = detail.NotesHTML
	item["side_effects_html"] = detail.SideEffectsHTML
	return item
}

func scheduleToPayload(s db.Schedule) gin.H {
	return gin.H{
		"id":                   s.ID,
		"medication_id":        s.MedicationID,
		"time":                 s.Time,
		"frequency":            s.Frequency,
		"days_of_week":         s.DaysOfWeek,
		"start_date":           s.StartDate,
		"end_date":             s.EndDate,
		"food_timing":          db.NormalizeFoodTiming(s.FoodTiming),
		"special_instructions": s.SpecialInstructions,
		"active":               s.Active,
		"created_at":           formatTime(s.CreatedAt),
	}
}

func scheduleViewToPayload(v service.ScheduleView) gin.H {
	item := scheduleToPayload(v.Schedule)
	item["medication_name"] = v.MedicationName
	item["dosage"] = v.Dosage
	return item
}

func logToPayload(l db.IntakeLog) gin.H {
	return gin.H{
		"id":            l.ID,
		"medication_id": l.MedicationID,
		"schedule_id":   l.ScheduleID,
		"status":        l.Status,
		"notes":         l.Notes,
		"taken_at":      formatTime(l.TakenAt),
		"created_at":    formatTime(l.CreatedAt),
	}
}

func logEntryToPayload(e service.LogEntry) gin.H {
	item := logToPayload(e.IntakeLog)
	item["medication_name"] = e.MedicationName
	item["dosage"] = e.Dosage
	return item
}

func resolvedToPayload(r service.ResolvedSchedule) gin.H {
	item := gin.H{
		"schedule_id":          r.ScheduleID,
		"medication_id":        r.MedicationID,
		"medication_name":      r.MedicationName,
		"dosage":               r.Dosage,
		"time":                 r.Time,
		"frequency":            r.Frequency,
		"food_timing":          r.FoodTiming,
		"special_instructions": r.SpecialInstructions,
		"status":               r.Status,
		"log_id":               r.LogID,
		"taken_at":             nil,
	}
	if r.TakenAt != nil {
		item["taken_at"] = formatTime(*r.TakenAt)
	}
	return item
}

func statsToPayload(s service.MedicationStats) gin.H {
	return gin.H{
		"medication_id":   s.MedicationID,
		"medication_name": s.MedicationName,
		"total_logs":      s.TotalLogs,
		"taken_count":     s.TakenCount,
		"missed_count":    s.MissedCount,
		"skipped_count":   s.SkippedCount,
		"adherence_rate":  s.AdherenceRate,
	}
}

func interactionToPayload(v service.InteractionView) gin.H {
	return gin.H{
		"id":               v.ID,
		"medication1_id":   v.Medication1ID,
		"medication2_id":   v.Medication2ID,
		"medication1_name": v.Medication1Name,
		"medication2_name": v.Medication2Name,
		"severity":         v.Severity,
		"description":      v.Description,
		"recommendation":   v.Recommendation,
		"created_at":       formatTime(v.CreatedAt),
	}
}
