package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medtrack/internal/backup"
	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/service"
	"github.com/medtrack/internal/store"
)

// ToolHandler 把工具调用分发到各业务服务
type ToolHandler struct {
	medications  *service.MedicationService
	schedules    *service.ScheduleService
	intake       *service.IntakeService
	insights     *service.InsightService
	interactions *service.InteractionService
	clock        service.Clock
}

// NewToolHandler 用同一存储构造各业务服务
func NewToolHandler(s store.Store, clock service.Clock, refillThreshold float64) *ToolHandler {
	return &ToolHandler{
		medications:  service.NewMedicationService(s, clock, nil),
		schedules:    service.NewScheduleService(s, clock),
		intake:       service.NewIntakeService(s, clock),
		insights:     service.NewInsightService(s, clock, refillThreshold),
		interactions: service.NewInteractionService(s, clock),
		clock:        clock,
	}
}

// Handle 按工具名分发调用
func (h *ToolHandler) Handle(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	switch name {
	case "list_medications":
		return h.handleListMedications(ctx, args)
	case "get_medication":
		return h.handleGetMedication(ctx, args)
	case "add_medication":
		return h.handleAddMedication(ctx, args)
	case "add_schedule":
		return h.handleAddSchedule(ctx, args)
	case "log_intake":
		return h.handleLogIntake(ctx, args)
	case "get_today_schedule":
		return h.handleTodaySchedule(ctx)
	case "get_refill_alerts":
		return h.handleRefillAlerts(ctx, args)
	case "get_adherence_stats":
		return h.handleAdherence(ctx, args)
	case "update_quantity":
		return h.handleUpdateQuantity(ctx, args)
	case "list_interactions":
		return h.handleListInteractions(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

type todayItem struct {
	ScheduleID          uint       `json:"schedule_id"`
	MedicationID        uint       `json:"medication_id"`
	MedicationName      string     `json:"medication_name"`
	Dosage              string     `json:"dosage"`
	Time                string     `json:"time"`
	Frequency           string     `json:"frequency"`
	FoodTiming          string     `json:"food_timing"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	Status              string     `json:"status"`
	LogID               *uint      `json:"log_id,omitempty"`
	TakenAt             *time.Time `json:"taken_at,omitempty"`
}

type statsRow struct {
	MedicationID   uint   `json:"medication_id"`
	MedicationName string `json:"medication_name"`
	TotalLogs      int    `json:"total_logs"`
	TakenCount     int    `json:"taken_count"`
	MissedCount    int    `json:"missed_count"`
	SkippedCount   int    `json:"skipped_count"`
	AdherenceRate  string `json:"adherence_rate"`
}

type interactionResult struct {
	backup.Interaction
	Medication1Name string `json:"medication1_name"`
	Medication2Name string `json:"medication2_name"`
}

func medicationResults(meds []db.Medication) []backup.Medication {
	out := make([]backup.Medication, 0, len(meds))
	for _, m := range meds {
		out = append(out, backup.MedicationFrom(m))
	}
	return out
}

func (h *ToolHandler) handleListMedications(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	meds, err := h.medications.List(ctx, service.MedicationFilter{
		Search:     argString(args, "search"),
		ActiveOnly: argBool(args, "active_only"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"medications": medicationResults(meds),
		"count":       len(meds),
	}, nil
}

func (h *ToolHandler) handleGetMedication(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := requireUint(args, "medication_id")
	if err != nil {
		return nil, err
	}

	detail, err := h.medications.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	schedules := make([]backup.Schedule, 0, len(detail.Schedules))
	for _, sc := range detail.Schedules {
		schedules = append(schedules, backup.ScheduleFrom(sc))
	}
	logs := make([]backup.Log, 0, len(detail.RecentLogs))
	for _, l := range detail.RecentLogs {
		logs = append(logs, backup.LogFrom(l))
	}
	return map[string]interface{}{
		"medication":  backup.MedicationFrom(detail.Medication),
		"schedules":   schedules,
		"recent_logs": logs,
	}, nil
}

func (h *ToolHandler) handleAddMedication(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	total, err := argFloatPtr(args, "total_quantity")
	if err != nil {
		return nil, err
	}
	remaining, err := argFloatPtr(args, "remaining_quantity")
	if err != nil {
		return nil, err
	}

	med, err := h.medications.Create(ctx, service.MedicationInput{
		Name:              argString(args, "name"),
		Dosage:            argString(args, "dosage"),
		Form:              argString(args, "form"),
		Purpose:           argString(args, "purpose"),
		PrescribingDoctor: argString(args, "prescribing_doctor"),
		PrescriptionDate:  argString(args, "prescription_date"),
		SideEffects:       argString(args, "side_effects"),
		Notes:             argString(args, "notes"),
		TotalQuantity:     total,
		RemainingQuantity: remaining,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":         med.ID,
		"medication": backup.MedicationFrom(*med),
	}, nil
}

func (h *ToolHandler) handleAddSchedule(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	medicationID, err := requireUint(args, "medication_id")
	if err != nil {
		return nil, err
	}

	foodTiming := argString(args, "food_timing")
	if withFood, ok := args["with_food"].(bool); ok && foodTiming == "" {
		foodTiming = db.FoodTimingFromLegacy(withFood)
	}

	sc, err := h.schedules.Create(ctx, service.ScheduleInput{
		MedicationID:        medicationID,
		Time:                argString(args, "time"),
		Frequency:           argString(args, "frequency"),
		DaysOfWeek:          argString(args, "days_of_week"),
		StartDate:           argString(args, "start_date"),
		EndDate:             argString(args, "end_date"),
		FoodTiming:          foodTiming,
		SpecialInstructions: argString(args, "special_instructions"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":       sc.ID,
		"schedule": backup.ScheduleFrom(*sc),
	}, nil
}

func (h *ToolHandler) handleLogIntake(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	medicationID, err := requireUint(args, "medication_id")
	if err != nil {
		return nil, err
	}
	input := service.LogInput{
		MedicationID: medicationID,
		Status:       argString(args, "status"),
		Notes:        argString(args, "notes"),
	}

	scheduleID, ok, err := argUint(args, "schedule_id")
	if err != nil {
		return nil, err
	}
	if ok {
		input.ScheduleID = &scheduleID
	}
	if raw := argString(args, "taken_at"); raw != "" {
		takenAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("taken_at must be an RFC3339 timestamp")
		}
		input.TakenAt = &takenAt
	}

	entry, err := h.intake.LogIntake(ctx, input)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":  entry.ID,
		"log": backup.LogFrom(*entry),
	}, nil
}

func (h *ToolHandler) handleTodaySchedule(ctx context.Context) (interface{}, error) {
	day := h.clock.Today()
	items, err := h.insights.ScheduleFor(ctx, day)
	if err != nil {
		return nil, err
	}

	out := make([]todayItem, 0, len(items))
	for _, it := range items {
		out = append(out, todayItem{
			ScheduleID:          it.ScheduleID,
			MedicationID:        it.MedicationID,
			MedicationName:      it.MedicationName,
			Dosage:              it.Dosage,
			Time:                it.Time,
			Frequency:           it.Frequency,
			FoodTiming:          it.FoodTiming,
			SpecialInstructions: it.SpecialInstructions,
			Status:              it.Status,
			LogID:               it.LogID,
			TakenAt:             it.TakenAt,
		})
	}
	return map[string]interface{}{
		"date":     day.Date,
		"weekday":  day.Weekday,
		"schedule": out,
	}, nil
}

func (h *ToolHandler) handleRefillAlerts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	threshold, err := argFloatPtr(args, "threshold")
	if err != nil {
		return nil, err
	}
	meds, err := h.insights.RefillAlerts(ctx, threshold)
	if err != nil {
		return nil, err
	}

	effective := h.insights.RefillThreshold()
	if threshold != nil {
		effective = *threshold
	}
	return map[string]interface{}{
		"threshold":   effective,
		"medications": medicationResults(meds),
	}, nil
}

func (h *ToolHandler) handleAdherence(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	days, _, err := argUint(args, "days")
	if err != nil {
		return nil, err
	}
	medicationID, _, err := argUint(args, "medication_id")
	if err != nil {
		return nil, err
	}

	report, err := h.insights.Adherence(ctx, int(days), medicationID)
	if err != nil {
		return nil, err
	}

	rows := make([]statsRow, 0, len(report.Stats))
	for _, s := range report.Stats {
		rows = append(rows, statsRow{
			MedicationID:   s.MedicationID,
			MedicationName: s.MedicationName,
			TotalLogs:      s.TotalLogs,
			TakenCount:     s.TakenCount,
			MissedCount:    s.MissedCount,
			SkippedCount:   s.SkippedCount,
			AdherenceRate:  s.AdherenceRate,
		})
	}
	return map[string]interface{}{
		"period_days": report.PeriodDays,
		"start_date":  report.StartDate,
		"stats":       rows,
	}, nil
}

func (h *ToolHandler) handleUpdateQuantity(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := requireUint(args, "medication_id")
	if err != nil {
		return nil, err
	}
	change, err := argFloatPtr(args, "quantity_change")
	if err != nil {
		return nil, err
	}
	if change == nil {
		return nil, fmt.Errorf("quantity_change is required")
	}

	med, err := h.medications.UpdateQuantity(ctx, id, *change, argBool(args, "is_refill"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":            true,
		"remaining_quantity": med.RemainingQuantity,
		"refill_count":       med.RefillCount,
	}, nil
}

func (h *ToolHandler) handleListInteractions(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	medicationID, _, err := argUint(args, "medication_id")
	if err != nil {
		return nil, err
	}
	views, err := h.interactions.List(ctx, medicationID)
	if err != nil {
		return nil, err
	}

	out := make([]interactionResult, 0, len(views))
	for _, v := range views {
		out = append(out, interactionResult{
			Interaction:     backup.InteractionFrom(v.Interaction),
			Medication1Name: v.Medication1Name,
			Medication2Name: v.Medication2Name,
		})
	}
	return map[string]interface{}{"interactions": out}, nil
}

func argString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func argBool(args map[string]interface{}, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// argFloatPtr 参数缺省时返回 nil
func argFloatPtr(args map[string]interface{}, key string) (*float64, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%s must be a number", key)
	}
}

// argUint 返回参数值以及参数是否存在
func argUint(args map[string]interface{}, key string) (uint, bool, error) {
	f, err := argFloatPtr(args, key)
	if err != nil {
		return 0, false, err
	}
	if f == nil {
		return 0, false, nil
	}
	if *f < 0 || *f != float64(uint(*f)) {
		return 0, false, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return uint(*f), true, nil
}

func requireUint(args map[string]interface{}, key string) (uint, error) {
	v, ok, err := argUint(args, key)
	if err != nil {
		return 0, err
	}
	if !ok || v == 0 {
		return 0, fmt.Errorf("%s is required", key)
	}
	return v, nil
}
