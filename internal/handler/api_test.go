package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/service"
	"github.com/medtrack/internal/store/memory"
)

// 2025-01-14 是周二
var handlerNow = time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	return NewAPI(memory.New(), Options{
		Clock: service.NewClock(func() time.Time { return handlerNow }, time.UTC),
	})
}

func performRequest(h gin.HandlerFunc, method, target string, body interface{}, params ...gin.Param) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params

	h(c)
	return w
}

func idParam(id string) gin.Param {
	return gin.Param{Key: "id", Value: id}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func seedMedication(t *testing.T, api *API, name string, remaining *float64) *db.Medication {
	t.Helper()
	med, err := api.medications.Create(context.Background(), service.MedicationInput{
		Name:              name,
		Dosage:            "10mg",
		Form:              "tablet",
		TotalQuantity:     remaining,
		RemainingQuantity: remaining,
	})
	if err != nil {
		t.Fatalf("seed medication: %v", err)
	}
	return med
}

func TestMedicationLifecycle(t *testing.T) {
	api := newTestAPI(t)

	w := performRequest(api.CreateMedication, http.MethodPost, "/api/medications", map[string]interface{}{
		"name":           "Lisinopril",
		"dosage":         "10mg",
		"form":           "tablet",
		"notes":          "**早饭后**服用",
		"total_quantity": 30,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decodeResponse(t, w)
	if created["id"] != float64(1) {
		t.Fatalf("expected id 1, got %v", created["id"])
	}

	w = performRequest(api.GetMedication, http.MethodGet, "/api/medications/1", nil, idParam("1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	detail := decodeResponse(t, w)["medication"].(map[string]interface{})
	if detail["remaining_quantity"] != float64(30) {
		t.Fatalf("expected remaining to default to total, got %v", detail["remaining_quantity"])
	}
	if html, _ := detail["notes_html"].(string); !strings.Contains(html, "<strong>早饭后</strong>") {
		t.Fatalf("expected rendered notes, got %q", html)
	}

	w = performRequest(api.UpdateMedication, http.MethodPut, "/api/medications/1", map[string]interface{}{"purpose": "血压"}, idParam("1"))
	if w.Code != http.StatusOK || decodeResponse(t, w)["success"] != true {
		t.Fatalf("expected success update, got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(api.UpdateQuantity, http.MethodPost, "/api/medications/1/quantity", map[string]interface{}{
		"quantity_change": 30,
		"is_refill":       true,
	}, idParam("1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	qty := decodeResponse(t, w)
	if qty["remaining_quantity"] != float64(60) || qty["refill_count"] != float64(1) {
		t.Fatalf("unexpected quantity response: %v", qty)
	}

	w = performRequest(api.ListMedications, http.MethodGet, "/api/medications?search=%E8%A1%80", nil)
	meds := decodeResponse(t, w)["medications"].([]interface{})
	if len(meds) != 1 {
		t.Fatalf("expected search by purpose to match, got %d", len(meds))
	}

	w = performRequest(api.DeleteMedication, http.MethodDelete, "/api/medications/1", nil, idParam("1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	w = performRequest(api.GetMedication, http.MethodGet, "/api/medications/1", nil, idParam("1"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", w.Code)
	}
}

func TestCreateMedicationRequiresForm(t *testing.T) {
	api := newTestAPI(t)

	w := performRequest(api.CreateMedication, http.MethodPost, "/api/medications", map[string]interface{}{
		"name":   "Aspirin",
		"dosage": "81mg",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if msg, _ := decodeResponse(t, w)["error"].(string); !strings.HasPrefix(msg, "参数无效") {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestUpdateQuantityRequiresChange(t *testing.T) {
	api := newTestAPI(t)
	seedMedication(t, api, "Aspirin", db.Float64Ptr(10))

	w := performRequest(api.UpdateQuantity, http.MethodPost, "/api/medications/1/quantity", map[string]interface{}{}, idParam("1"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	w = performRequest(api.UpdateQuantity, http.MethodPost, "/api/medications/x/quantity", map[string]interface{}{"quantity_change": 1}, idParam("x"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad id, got %d", w.Code)
	}
}

func TestScheduleHandlers(t *testing.T) {
	api := newTestAPI(t)
	seedMedication(t, api, "Metformin", nil)

	w := performRequest(api.CreateSchedule, http.MethodPost, "/api/schedules", map[string]interface{}{
		"medication_id": 1,
		"time":          "08:00",
		"frequency":     "weekly",
		"start_date":    "2025-01-01",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected weekly without days to fail, got %d", w.Code)
	}

	w = performRequest(api.CreateSchedule, http.MethodPost, "/api/schedules", map[string]interface{}{
		"medication_id": 1,
		"time":          "08:00",
		"frequency":     "daily",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected missing start_date to fail, got %d", w.Code)
	}

	w = performRequest(api.CreateSchedule, http.MethodPost, "/api/schedules", map[string]interface{}{
		"medication_id": 99,
		"time":          "08:00",
		"frequency":     "daily",
		"start_date":    "2025-01-01",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected unknown medication to be 404, got %d", w.Code)
	}

	w = performRequest(api.CreateSchedule, http.MethodPost, "/api/schedules", map[string]interface{}{
		"medication_id": 1,
		"time":          "08:00",
		"frequency":     "daily",
		"start_date":    "2025-01-10",
		"with_food":     true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(api.ListSchedules, http.MethodGet, "/api/schedules?medication_id=1", nil)
	schedules := decodeResponse(t, w)["schedules"].([]interface{})
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	first := schedules[0].(map[string]interface{})
	if first["medication_name"] != "Metformin" {
		t.Fatalf("expected joined medication name, got %v", first["medication_name"])
	}
	if first["food_timing"] != db.FoodTimingBefore {
		t.Fatalf("expected legacy with_food to map to %q, got %v", db.FoodTimingBefore, first["food_timing"])
	}
	if first["start_date"] != "2025-01-10" {
		t.Fatalf("unexpected start date %v", first["start_date"])
	}

	w = performRequest(api.UpdateSchedule, http.MethodPut, "/api/schedules/1", map[string]interface{}{"active": false}, idParam("1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(api.ListSchedules, http.MethodGet, "/api/schedules?active_only=true", nil)
	if got := decodeResponse(t, w)["schedules"].([]interface{}); len(got) != 0 {
		t.Fatalf("expected inactive schedule to be filtered, got %d", len(got))
	}

	w = performRequest(api.DeleteSchedule, http.MethodDelete, "/api/schedules/1", nil, idParam("1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	w = performRequest(api.GetSchedule, http.MethodGet, "/api/schedules/1", nil, idParam("1"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestCreateLogDecrementsStock(t *testing.T) {
	api := newTestAPI(t)
	seedMedication(t, api, "Atorvastatin", db.Float64Ptr(5))

	w := performRequest(api.CreateLog, http.MethodPost, "/api/logs", map[string]interface{}{
		"medication_id": 1,
		"status":        "taken",
		"taken_at":      "2025-01-14T08:05:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	detail, err := api.medications.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get medication: %v", err)
	}
	if got := *detail.Medication.RemainingQuantity; got != 4 {
		t.Fatalf("expected remaining 4, got %v", got)
	}

	w = performRequest(api.ListLogs, http.MethodGet, "/api/logs?medication_id=1", nil)
	logs := decodeResponse(t, w)["logs"].([]interface{})
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	entry := logs[0].(map[string]interface{})
	if entry["medication_name"] != "Atorvastatin" || entry["dosage"] != "10mg" {
		t.Fatalf("expected joined name and dosage, got %v", entry)
	}
	if entry["taken_at"] != "2025-01-14T08:05:00Z" {
		t.Fatalf("unexpected taken_at %v", entry["taken_at"])
	}
}

func TestCreateLogRejectsBadInput(t *testing.T) {
	api := newTestAPI(t)
	seedMedication(t, api, "Atorvastatin", nil)

	cases := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{"bad taken_at", map[string]interface{}{"medication_id": 1, "status": "taken", "taken_at": "yesterday"}, http.StatusBadRequest},
		{"bad status", map[string]interface{}{"medication_id": 1, "status": "maybe"}, http.StatusBadRequest},
		{"unknown medication", map[string]interface{}{"medication_id": 7, "status": "taken"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performRequest(api.CreateLog, http.MethodPost, "/api/logs", tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}

	w := performRequest(api.ListLogs, http.MethodGet, "/api/logs?limit=-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected negative limit to be rejected, got %d", w.Code)
	}
}
