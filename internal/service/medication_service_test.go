package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medtrack/internal/db"
)

func TestMedicationServiceCreateAndGet(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	med, err := svc.medications.Create(ctx, MedicationInput{
		Name:          " Metformin ",
		Dosage:        "500mg",
		Form:          "tablet",
		Purpose:       "血糖控制",
		Notes:         "**随餐**服用",
		TotalQuantity: db.Float64Ptr(60),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if med.ID != 1 || med.Name != "Metformin" {
		t.Fatalf("unexpected medication: %+v", med)
	}
	if med.RemainingQuantity == nil || *med.RemainingQuantity != 60 {
		t.Fatalf("remaining should default to total, got %v", med.RemainingQuantity)
	}
	if !med.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected created_at: %v", med.CreatedAt)
	}

	for i := 0; i < 12; i++ {
		if _, err := svc.intake.LogIntake(ctx, LogInput{MedicationID: med.ID, Status: db.LogStatusSkipped}); err != nil {
			t.Fatalf("LogIntake returned error: %v", err)
		}
	}

	detail, err := svc.medications.Get(ctx, med.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(detail.RecentLogs) != 10 {
		t.Fatalf("expected 10 recent logs, got %d", len(detail.RecentLogs))
	}
	if detail.RecentLogs[0].ID != 12 {
		t.Fatalf("expected newest log first, got %d", detail.RecentLogs[0].ID)
	}
	if !strings.Contains(detail.NotesHTML, "<strong>随餐</strong>") {
		t.Fatalf("expected rendered notes, got %q", detail.NotesHTML)
	}

	if _, err := svc.medications.Get(ctx, 42); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}
}

func TestMedicationServiceValidation(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	cases := []MedicationInput{
		{Dosage: "1", Form: "tablet"},
		{Name: "A", Form: "tablet"},
		{Name: "A", Dosage: "1"},
		{Name: "A", Dosage: "1", Form: "tablet", TotalQuantity: db.Float64Ptr(-1)},
		{Name: "A", Dosage: "1", Form: "tablet", PrescriptionDate: "2025/01/01"},
	}
	for i, input := range cases {
		if _, err := svc.medications.Create(ctx, input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}

	meds, err := svc.medications.List(ctx, MedicationFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(meds) != 0 {
		t.Fatalf("validation failures must not write, got %d medications", len(meds))
	}
}

func TestMedicationServiceListFilters(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	a, _ := svc.medications.Create(ctx, MedicationInput{Name: "Aspirin", Dosage: "100mg", Form: "tablet", Purpose: "Heart"})
	b, _ := svc.medications.Create(ctx, MedicationInput{Name: "Ibuprofen", Dosage: "200mg", Form: "tablet", Purpose: "Pain"})

	found, err := svc.medications.List(ctx, MedicationFilter{Search: "heart"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(found) != 1 || found[0].ID != a.ID {
		t.Fatalf("search by purpose failed: %+v", found)
	}

	inactive := false
	if _, err := svc.schedules.Create(ctx, ScheduleInput{MedicationID: a.ID, Time: "08:00", Frequency: db.FrequencyDaily, Active: &inactive, StartDate: "2025-01-01"}); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if _, err := svc.schedules.Create(ctx, ScheduleInput{MedicationID: b.ID, Time: "09:00", Frequency: db.FrequencyDaily, StartDate: "2025-01-01"}); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	active, err := svc.medications.List(ctx, MedicationFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(active) != 1 || active[0].ID != b.ID {
		t.Fatalf("active_only should keep medications with active schedules, got %+v", active)
	}
}

func TestMedicationServiceUpdateAndDelete(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	med, _ := svc.medications.Create(ctx, MedicationInput{Name: "A", Dosage: "1", Form: "tablet"})
	sc, err := svc.schedules.Create(ctx, ScheduleInput{MedicationID: med.ID, Time: "08:00", Frequency: db.FrequencyDaily, StartDate: "2025-01-01"})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	dosage := "2"
	updated, err := svc.medications.Update(ctx, med.ID, MedicationPatch{Dosage: &dosage})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Dosage != "2" || updated.Name != "A" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	empty := ""
	if _, err := svc.medications.Update(ctx, med.ID, MedicationPatch{Name: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.medications.Update(ctx, 99, MedicationPatch{Dosage: &dosage}); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}

	if err := svc.medications.Delete(ctx, med.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := svc.schedules.Get(ctx, sc.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("schedule should be cascaded, got %v", err)
	}
	if err := svc.medications.Delete(ctx, med.ID); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound on second delete, got %v", err)
	}

	next, _ := svc.medications.Create(ctx, MedicationInput{Name: "B", Dosage: "1", Form: "tablet"})
	if next.ID == med.ID {
		t.Fatalf("id %d reused after delete", next.ID)
	}
}

func TestMedicationServiceUpdateQuantity(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	med, _ := svc.medications.Create(ctx, MedicationInput{Name: "A", Dosage: "1", Form: "tablet", TotalQuantity: db.Float64Ptr(3)})

	got, err := svc.medications.UpdateQuantity(ctx, med.ID, -10, false)
	if err != nil {
		t.Fatalf("UpdateQuantity returned error: %v", err)
	}
	if *got.RemainingQuantity != 0 || got.RefillCount != 0 {
		t.Fatalf("expected clamp at zero, got %+v", got)
	}

	got, err = svc.medications.UpdateQuantity(ctx, med.ID, 30, true)
	if err != nil {
		t.Fatalf("UpdateQuantity returned error: %v", err)
	}
	if *got.RemainingQuantity != 30 || got.RefillCount != 1 {
		t.Fatalf("unexpected refill result: %+v", got)
	}

	untracked, _ := svc.medications.Create(ctx, MedicationInput{Name: "B", Dosage: "1", Form: "tablet"})
	got, err = svc.medications.UpdateQuantity(ctx, untracked.ID, 5, false)
	if err != nil {
		t.Fatalf("UpdateQuantity returned error: %v", err)
	}
	if got.RemainingQuantity == nil || *got.RemainingQuantity != 5 {
		t.Fatalf("untracked quantity should start from zero, got %v", got.RemainingQuantity)
	}

	if _, err := svc.medications.UpdateQuantity(ctx, 99, 1, false); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}
}

func TestMedicationServiceSetPhoto(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	med, _ := svc.medications.Create(ctx, MedicationInput{Name: "A", Dosage: "1", Form: "tablet"})
	got, err := svc.medications.SetPhoto(ctx, med.ID, "/uploads/a.png", "/uploads/a_thumb.png")
	if err != nil {
		t.Fatalf("SetPhoto returned error: %v", err)
	}
	if got.PhotoURL != "/uploads/a.png" || got.ThumbnailURL != "/uploads/a_thumb.png" {
		t.Fatalf("unexpected photo urls: %+v", got)
	}

	got, err = svc.medications.SetPhoto(ctx, med.ID, "", "")
	if err != nil {
		t.Fatalf("SetPhoto returned error: %v", err)
	}
	if got.PhotoURL != "" || got.ThumbnailURL != "" {
		t.Fatalf("expected cleared photo, got %+v", got)
	}
}
