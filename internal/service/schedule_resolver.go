package service

import (
	"sort"
	"time"

	"github.com/medtrack/internal/db"
)

const (
	dateFormat = "2006-01-02"

	// StatusPending 表示今日尚无对应服药记录
	StatusPending = "pending"
	// UnknownMedicationName 是悬空引用时使用的占位名称
	UnknownMedicationName = "Unknown"
)

// Day 描述"今天"：日期字符串、三字母星期缩写以及用于换算记录时间的时区
type Day struct {
	Date     string
	Weekday  string
	Location *time.Location
}

// DayOf 以 t 所在时区构造 Day
func DayOf(t time.Time) Day {
	return Day{
		Date:     t.Format(dateFormat),
		Weekday:  t.Weekday().String()[:3],
		Location: t.Location(),
	}
}

func (d Day) loc() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// dateOf 返回时间在当天时区下的日期字符串
func (d Day) dateOf(t time.Time) string {
	return t.In(d.loc()).Format(dateFormat)
}

// ResolvedSchedule 是今日计划中的一项，附带今日服药状态
type ResolvedSchedule struct {
	ScheduleID          uint
	MedicationID        uint
	MedicationName      string
	Dosage              string
	Time                string
	Frequency           string
	FoodTiming          string
	SpecialInstructions string
	Status              string
	LogID               *uint
	TakenAt             *time.Time
}

// AppliesOn 判断计划在指定日期是否生效
// as_needed 计划永远不会自动进入今日计划
func AppliesOn(s db.Schedule, day Day) bool {
	if !s.Active {
		return false
	}
	if s.StartDate == "" || s.StartDate > day.Date {
		return false
	}
	if s.EndDate != "" && s.EndDate < day.Date {
		return false
	}

	switch s.Frequency {
	case db.FrequencyDaily:
		return true
	case db.FrequencyWeekly:
		for _, d := range s.Days() {
			if d == day.Weekday {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ResolveToday 计算今日应服用的计划并标注状态，结果按服药时间升序。
// 纯函数：不读时钟、不做写入，找不到药品时使用 Unknown 占位。
func ResolveToday(schedules []db.Schedule, medications []db.Medication, logs []db.IntakeLog, day Day) []ResolvedSchedule {
	meds := indexMedications(medications)
	resolved := make([]ResolvedSchedule, 0)

	for _, s := range schedules {
		if !AppliesOn(s, day) {
			continue
		}

		med, ok := meds[s.MedicationID]
		name := UnknownMedicationName
		if ok {
			name = med.Name
		}

		item := ResolvedSchedule{
			ScheduleID:          s.ID,
			MedicationID:        s.MedicationID,
			MedicationName:      name,
			Dosage:              med.Dosage,
			Time:                s.Time,
			Frequency:           s.Frequency,
			FoodTiming:          db.NormalizeFoodTiming(s.FoodTiming),
			SpecialInstructions: s.SpecialInstructions,
			Status:              StatusPending,
		}

		if log, found := findTodayLog(logs, s, day); found {
			item.Status = log.Status
			item.LogID = db.UintPtr(log.ID)
			takenAt := log.TakenAt
			item.TakenAt = &takenAt
		}

		resolved = append(resolved, item)
	}

	// HH:MM 零填充格式下字典序即时间顺序
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Time < resolved[j].Time
	})

	return resolved
}

func findTodayLog(logs []db.IntakeLog, s db.Schedule, day Day) (db.IntakeLog, bool) {
	for _, l := range logs {
		if l.MedicationID != s.MedicationID || l.ScheduleID == nil || *l.ScheduleID != s.ID {
			continue
		}
		if day.dateOf(l.TakenAt) == day.Date {
			return l, true
		}
	}
	return db.IntakeLog{}, false
}

func indexMedications(medications []db.Medication) map[uint]db.Medication {
	index := make(map[uint]db.Medication, len(medications))
	for _, m := range medications {
		index[m.ID] = m
	}
	return index
}

func medicationName(index map[uint]db.Medication, id uint) string {
	if m, ok := index[id]; ok {
		return m.Name
	}
	return UnknownMedicationName
}
