package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/medtrack/internal/service"
)

type stubSource struct {
	items []service.ResolvedSchedule
	err   error
	days  []service.Day
}

func (s *stubSource) ScheduleFor(_ context.Context, day service.Day) ([]service.ResolvedSchedule, error) {
	s.days = append(s.days, day)
	return s.items, s.err
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail bool
}

func (n *stubNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("delivery failed")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func TestCheckSendsDuePendingOnce(t *testing.T) {
	now := time.Date(2025, 1, 14, 8, 0, 30, 0, time.UTC)
	source := &stubSource{items: []service.ResolvedSchedule{
		{ScheduleID: 1, MedicationName: "A", Dosage: "5mg", Time: "08:00", Status: service.StatusPending, FoodTiming: "before_food"},
		{ScheduleID: 2, MedicationName: "B", Time: "08:00", Status: "taken"},
		{ScheduleID: 3, MedicationName: "C", Time: "09:00", Status: service.StatusPending},
	}}
	notifier := &stubNotifier{}

	r, err := New(source, notifier, Options{Location: time.UTC, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	n, err := r.Check(context.Background())
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if n != 1 || len(notifier.sent) != 1 {
		t.Fatalf("expected 1 reminder, got %d", n)
	}
	got := notifier.sent[0]
	if got.ScheduleID != 1 || got.Dosage != "5mg" || got.Date != "2025-01-14" || got.FoodTiming != "before_food" {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if source.days[0].Weekday != "Tue" {
		t.Fatalf("unexpected day passed to source: %+v", source.days[0])
	}

	// 同一天重复检查不再发送
	if n, _ := r.Check(context.Background()); n != 0 {
		t.Fatalf("expected no duplicate reminder, got %d", n)
	}

	// 次日同一时间重新提醒
	now = now.AddDate(0, 0, 1)
	if n, _ := r.Check(context.Background()); n != 1 {
		t.Fatalf("expected reminder on next day, got %d", n)
	}
}

func TestCheckUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	source := &stubSource{items: []service.ResolvedSchedule{{ScheduleID: 1, Time: "08:00", Status: service.StatusPending}}}
	notifier := &stubNotifier{}

	// UTC 00:00 即东八区 08:00
	r, _ := New(source, notifier, Options{Location: loc, Now: func() time.Time { return time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC) }})
	if n, _ := r.Check(context.Background()); n != 1 {
		t.Fatalf("expected reminder in configured zone, got %d", n)
	}
}

func TestCheckRetriesFailedDelivery(t *testing.T) {
	now := time.Date(2025, 1, 14, 8, 0, 0, 0, time.UTC)
	source := &stubSource{items: []service.ResolvedSchedule{{ScheduleID: 1, Time: "08:00", Status: service.StatusPending}}}
	notifier := &stubNotifier{fail: true}

	r, _ := New(source, notifier, Options{Location: time.UTC, Now: func() time.Time { return now }})
	if n, _ := r.Check(context.Background()); n != 0 {
		t.Fatalf("expected no reminder on failure, got %d", n)
	}

	notifier.fail = false
	if n, _ := r.Check(context.Background()); n != 1 {
		t.Fatalf("failed delivery should be retried, got %d", n)
	}
}

func TestCheckPropagatesSourceError(t *testing.T) {
	source := &stubSource{err: errors.New("boom")}
	r, _ := New(source, &stubNotifier{}, Options{})
	if _, err := r.Check(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	if _, err := New(&stubSource{}, nil, Options{Spec: "every minute"}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestStartStop(t *testing.T) {
	r, err := New(&stubSource{}, &stubNotifier{}, Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Fatal("expected error on second Start")
	}
	cancel()
	r.Stop()
	r.Stop()
}
