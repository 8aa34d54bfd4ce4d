package service

import (
	"context"
	"strings"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

const timeFormat = "15:04"

// ScheduleService 负责服药计划的增删改查
// 计划必须引用已存在的药品；weekly 频率必须给出至少一个星期
type ScheduleService struct {
	store store.Store
	clock Clock
}

// ScheduleFilter 描述计划列表过滤条件
type ScheduleFilter struct {
	MedicationID uint
	ActiveOnly   bool
}

// ScheduleInput 定义创建计划时可配置字段
// StartDate 必填；Active 为空时默认启用
type ScheduleInput struct {
	MedicationID        uint
	Time                string
	Frequency           string
	DaysOfWeek          string
	StartDate           string
	EndDate             string
	FoodTiming          string
	SpecialInstructions string
	Active              *bool
}

// SchedulePatch 定义计划的部分更新，nil 字段保持不变
type SchedulePatch struct {
	Time                *string
	Frequency           *string
	DaysOfWeek          *string
	StartDate           *string
	EndDate             *string
	FoodTiming          *string
	SpecialInstructions *string
	Active              *bool
}

// ScheduleView 是附带药品名称的计划
type ScheduleView struct {
	db.Schedule
	MedicationName string
	Dosage         string
}

// NewScheduleService 构造 ScheduleService
func NewScheduleService(s store.Store, clock Clock) *ScheduleService {
	return &ScheduleService{store: s, clock: clock}
}

// List 返回计划列表，按服药时间升序
func (s *ScheduleService) List(ctx context.Context, filter ScheduleFilter) ([]ScheduleView, error) {
	schedules, err := s.store.Schedules(ctx, store.ScheduleQuery{
		MedicationID: filter.MedicationID,
		ActiveOnly:   filter.ActiveOnly,
	})
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "list schedules")
	}

	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	index := indexMedications(meds)

	views := make([]ScheduleView, 0, len(schedules))
	for _, sc := range schedules {
		views = append(views, scheduleView(sc, index))
	}
	return views, nil
}

// Get 根据 ID 获取计划
func (s *ScheduleService) Get(ctx context.Context, id uint) (*ScheduleView, error) {
	sc, err := s.store.Schedule(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "get schedule")
	}

	index := map[uint]db.Medication{}
	if med, err := s.store.Medication(ctx, sc.MedicationID); err == nil {
		index[med.ID] = med
	}
	view := scheduleView(sc, index)
	return &view, nil
}

// Create 新建计划
func (s *ScheduleService) Create(ctx context.Context, input ScheduleInput) (*db.Schedule, error) {
	active := true
	if input.Active != nil {
		active = *input.Active
	}

	sc := db.Schedule{
		MedicationID:        input.MedicationID,
		Time:                strings.TrimSpace(input.Time),
		Frequency:           strings.TrimSpace(input.Frequency),
		DaysOfWeek:          strings.TrimSpace(input.DaysOfWeek),
		StartDate:           strings.TrimSpace(input.StartDate),
		EndDate:             strings.TrimSpace(input.EndDate),
		FoodTiming:          input.FoodTiming,
		SpecialInstructions: strings.TrimSpace(input.SpecialInstructions),
		Active:              active,
	}

	if err := normalizeSchedule(&sc); err != nil {
		return nil, err
	}

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		if _, err := tx.Medication(ctx, sc.MedicationID); err != nil {
			return mapNotFound(err, ErrMedicationNotFound, "get medication")
		}

		id, err := tx.NextID(ctx, db.CounterSchedules)
		if err != nil {
			return err
		}
		sc.ID = id
		sc.CreatedAt = s.clock.Now()
		return tx.CreateSchedule(ctx, &sc)
	})
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "create schedule")
	}
	return &sc, nil
}

// Update 按补丁更新计划
func (s *ScheduleService) Update(ctx context.Context, id uint, patch SchedulePatch) (*db.Schedule, error) {
	var updated db.Schedule

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		sc, err := tx.Schedule(ctx, id)
		if err != nil {
			return err
		}

		applyString(&sc.Time, patch.Time)
		applyString(&sc.Frequency, patch.Frequency)
		applyString(&sc.DaysOfWeek, patch.DaysOfWeek)
		applyString(&sc.StartDate, patch.StartDate)
		applyString(&sc.EndDate, patch.EndDate)
		applyString(&sc.FoodTiming, patch.FoodTiming)
		applyString(&sc.SpecialInstructions, patch.SpecialInstructions)
		if patch.Active != nil {
			sc.Active = *patch.Active
		}

		if err := normalizeSchedule(&sc); err != nil {
			return err
		}
		if err := tx.SaveSchedule(ctx, &sc); err != nil {
			return err
		}
		updated = sc
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "update schedule")
	}
	return &updated, nil
}

// Delete 删除计划，已有服药记录保留
func (s *ScheduleService) Delete(ctx context.Context, id uint) error {
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.DeleteSchedule(ctx, id)
	})
	return mapNotFound(err, ErrScheduleNotFound, "delete schedule")
}

// normalizeSchedule 校验并规范化计划字段
func normalizeSchedule(sc *db.Schedule) error {
	if sc.MedicationID == 0 {
		return invalidf("medication_id is required")
	}
	if _, err := time.Parse(timeFormat, sc.Time); err != nil || len(sc.Time) != len(timeFormat) {
		return invalidf("time must be HH:MM")
	}

	switch sc.Frequency {
	case db.FrequencyDaily, db.FrequencyWeekly, db.FrequencyAsNeeded:
	default:
		return invalidf("frequency must be one of daily, weekly, as_needed")
	}

	if sc.StartDate == "" {
		return invalidf("start_date is required")
	}
	if _, err := time.Parse(dateFormat, sc.StartDate); err != nil {
		return invalidf("start_date must be YYYY-MM-DD")
	}
	if sc.EndDate != "" {
		if _, err := time.Parse(dateFormat, sc.EndDate); err != nil {
			return invalidf("end_date must be YYYY-MM-DD")
		}
		if sc.EndDate < sc.StartDate {
			return invalidf("end_date must not be before start_date")
		}
	}

	if sc.DaysOfWeek != "" || sc.Frequency == db.FrequencyWeekly {
		days := db.ParseDaysOfWeek(sc.DaysOfWeek)
		for _, d := range days {
			if !db.IsValidDay(d) {
				return invalidf("invalid day of week %q", d)
			}
		}
		if sc.Frequency == db.FrequencyWeekly && len(days) == 0 {
			return invalidf("weekly schedule requires days_of_week")
		}
		sc.DaysOfWeek = strings.Join(days, ",")
	}

	if !db.IsValidFoodTiming(sc.FoodTiming) {
		return invalidf("food_timing must be one of before_food, after_food, none")
	}
	sc.FoodTiming = db.NormalizeFoodTiming(sc.FoodTiming)
	return nil
}

func scheduleView(sc db.Schedule, index map[uint]db.Medication) ScheduleView {
	view := ScheduleView{Schedule: sc, MedicationName: medicationName(index, sc.MedicationID)}
	if med, ok := index[sc.MedicationID]; ok {
		view.Dosage = med.Dosage
	}
	return view
}
