package service

import (
	"context"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

const defaultAdherenceDays = 30

// InsightService 汇总今日计划、依从率与库存提醒
// 只读，不修改任何集合
type InsightService struct {
	store           store.Store
	clock           Clock
	refillThreshold float64
}

// AdherenceReport 是依从率统计结果
type AdherenceReport struct {
	PeriodDays int
	StartDate  string
	Stats      []MedicationStats
}

// NewInsightService 构造 InsightService；threshold 不大于 0 时使用默认值 7
func NewInsightService(s store.Store, clock Clock, threshold float64) *InsightService {
	if threshold <= 0 {
		threshold = DefaultRefillThreshold
	}
	return &InsightService{store: s, clock: clock, refillThreshold: threshold}
}

// RefillThreshold 返回默认补药提醒阈值
func (s *InsightService) RefillThreshold() float64 {
	return s.refillThreshold
}

// Today 返回今日计划，按时间升序，附带今日服药状态
func (s *InsightService) Today(ctx context.Context) ([]ResolvedSchedule, error) {
	return s.ScheduleFor(ctx, s.clock.Today())
}

// ScheduleFor 返回指定日期的计划
func (s *InsightService) ScheduleFor(ctx context.Context, day Day) ([]ResolvedSchedule, error) {
	if day.Location == nil {
		day.Location = s.clock.Location()
	}
	start, err := startOfDay(day.Date, day.Location)
	if err != nil {
		return nil, invalidf("invalid date %q", day.Date)
	}

	schedules, err := s.store.Schedules(ctx, store.ScheduleQuery{ActiveOnly: true})
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "list schedules")
	}
	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	logs, err := s.store.Logs(ctx, store.LogQuery{Since: start, Until: start.AddDate(0, 0, 1)})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list logs")
	}

	return ResolveToday(schedules, meds, logs, day), nil
}

// Adherence 统计最近 days 天的依从率；days 为 0 时使用 30，medicationID 为 0 表示全部药品
func (s *InsightService) Adherence(ctx context.Context, days int, medicationID uint) (*AdherenceReport, error) {
	if days < 0 {
		return nil, invalidf("days must not be negative")
	}
	if days == 0 {
		days = defaultAdherenceDays
	}

	day := s.clock.Today()
	startDate := AdherenceWindowStart(day, days)
	since, err := startOfDay(startDate, day.loc())
	if err != nil {
		return nil, invalidf("invalid window start %q", startDate)
	}

	logs, err := s.store.Logs(ctx, store.LogQuery{MedicationID: medicationID, Since: since})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list logs")
	}
	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}

	return &AdherenceReport{
		PeriodDays: days,
		StartDate:  startDate,
		Stats:      ComputeAdherence(logs, meds, days, day, medicationID),
	}, nil
}

// RefillAlerts 返回需要补药的药品；threshold 为空时使用默认阈值
func (s *InsightService) RefillAlerts(ctx context.Context, threshold *float64) ([]db.Medication, error) {
	limit := s.refillThreshold
	if threshold != nil {
		if *threshold < 0 {
			return nil, invalidf("threshold must not be negative")
		}
		limit = *threshold
	}

	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	return RefillAlerts(meds, limit), nil
}

// OutOfStock 返回剩余量为 0 的药品
func (s *InsightService) OutOfStock(ctx context.Context) ([]db.Medication, error) {
	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	return OutOfStock(meds), nil
}
