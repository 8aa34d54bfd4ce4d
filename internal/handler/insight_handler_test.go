package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/service"
)

func TestTodaySchedule(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	seedMedication(t, api, "Metformin", nil)

	for _, in := range []service.ScheduleInput{
		{MedicationID: 1, Time: "20:00", Frequency: "daily", StartDate: "2025-01-01"},
		{MedicationID: 1, Time: "08:00", Frequency: "daily", StartDate: "2025-01-01"},
		{MedicationID: 1, Time: "12:00", Frequency: "weekly", DaysOfWeek: "Mon,Wed", StartDate: "2025-01-01"},
	} {
		if _, err := api.schedules.Create(ctx, in); err != nil {
			t.Fatalf("create schedule: %v", err)
		}
	}
	if _, err := api.intake.LogIntake(ctx, service.LogInput{MedicationID: 1, ScheduleID: db.UintPtr(2), Status: "taken"}); err != nil {
		t.Fatalf("log intake: %v", err)
	}

	w := performRequest(api.TodaySchedule, http.MethodGet, "/api/schedule/today", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeResponse(t, w)
	if body["date"] != "2025-01-14" || body["weekday"] != "Tue" {
		t.Fatalf("unexpected day %v %v", body["date"], body["weekday"])
	}

	items := body["schedule"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected weekly Mon,Wed schedule to be excluded, got %d items", len(items))
	}
	first := items[0].(map[string]interface{})
	second := items[1].(map[string]interface{})
	if first["time"] != "08:00" || first["status"] != "taken" {
		t.Fatalf("unexpected first item %v", first)
	}
	if second["time"] != "20:00" || second["status"] != service.StatusPending {
		t.Fatalf("unexpected second item %v", second)
	}
}

func TestRefillAlertsHandler(t *testing.T) {
	api := newTestAPI(t)
	seedMedication(t, api, "Low", db.Float64Ptr(3))
	seedMedication(t, api, "Plenty", db.Float64Ptr(30))
	seedMedication(t, api, "Empty", db.Float64Ptr(0))

	w := performRequest(api.RefillAlerts, http.MethodGet, "/api/alerts/refill", nil)
	body := decodeResponse(t, w)
	if body["threshold"] != float64(7) {
		t.Fatalf("expected default threshold 7, got %v", body["threshold"])
	}
	meds := body["medications"].([]interface{})
	if len(meds) != 1 || meds[0].(map[string]interface{})["name"] != "Low" {
		t.Fatalf("expected only Low in refill alerts, got %v", meds)
	}

	w = performRequest(api.RefillAlerts, http.MethodGet, "/api/alerts/refill?threshold=2", nil)
	if meds := decodeResponse(t, w)["medications"].([]interface{}); len(meds) != 0 {
		t.Fatalf("expected no alerts under threshold 2, got %d", len(meds))
	}

	w = performRequest(api.RefillAlerts, http.MethodGet, "/api/alerts/refill?threshold=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	w = performRequest(api.OutOfStock, http.MethodGet, "/api/alerts/out-of-stock", nil)
	meds = decodeResponse(t, w)["medications"].([]interface{})
	if len(meds) != 1 || meds[0].(map[string]interface{})["name"] != "Empty" {
		t.Fatalf("expected only Empty to be out of stock, got %v", meds)
	}
}

func TestAdherenceStatsHandler(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()
	seedMedication(t, api, "Metformin", nil)

	for _, status := range []string{"taken", "taken", "missed", "skipped"} {
		if _, err := api.intake.LogIntake(ctx, service.LogInput{MedicationID: 1, Status: status}); err != nil {
			t.Fatalf("log intake: %v", err)
		}
	}

	w := performRequest(api.AdherenceStats, http.MethodGet, "/api/stats/adherence", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeResponse(t, w)
	if body["period_days"] != float64(30) || body["start_date"] != "2024-12-15" {
		t.Fatalf("unexpected period %v %v", body["period_days"], body["start_date"])
	}
	stats := body["stats"].([]interface{})
	if len(stats) != 1 {
		t.Fatalf("expected stats for one medication, got %d", len(stats))
	}
	row := stats[0].(map[string]interface{})
	if row["total_logs"] != float64(4) || row["adherence_rate"] != "50.00" {
		t.Fatalf("unexpected stats row %v", row)
	}

	w = performRequest(api.AdherenceStats, http.MethodGet, "/api/stats/adherence?days=-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for negative days, got %d", w.Code)
	}
}
