package service

import (
	"testing"

	"github.com/medtrack/internal/db"
)

func TestRefillAlerts(t *testing.T) {
	meds := []db.Medication{
		{ID: 1, Name: "A", RemainingQuantity: db.Float64Ptr(5)},
		{ID: 2, Name: "B", RemainingQuantity: db.Float64Ptr(0)},
		{ID: 3, Name: "C"},
		{ID: 4, Name: "D", RemainingQuantity: db.Float64Ptr(2)},
		{ID: 5, Name: "E", RemainingQuantity: db.Float64Ptr(7)},
		{ID: 6, Name: "F", RemainingQuantity: db.Float64Ptr(7.5)},
	}

	got := RefillAlerts(meds, DefaultRefillThreshold)
	wantIDs := []uint{4, 1, 5}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d alerts, got %+v", len(wantIDs), got)
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("alert %d = %d, want %d", i, got[i].ID, id)
		}
	}

	out := OutOfStock(meds)
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("expected only medication 2 out of stock, got %+v", out)
	}
}

func TestRefillAlertsNeverIncludesZeroOrUntracked(t *testing.T) {
	meds := []db.Medication{
		{ID: 1, RemainingQuantity: db.Float64Ptr(0)},
		{ID: 2},
	}
	for _, threshold := range []float64{0, 1, 100} {
		if got := RefillAlerts(meds, threshold); len(got) != 0 {
			t.Fatalf("threshold %v: expected no alerts, got %+v", threshold, got)
		}
	}
}
