package db

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyAsNeeded = "as_needed"
)

const (
	FoodTimingBefore = "before_food"
	FoodTimingAfter  = "after_food"
	FoodTimingNone   = "none"

	// legacyFoodTimingWith 是旧版 with_food 布尔字段迁移后的取值，语义等同 before_food
	legacyFoodTimingWith = "with_food"
)

// Schedule 定义了服药计划
// Time 使用 24 小时制 HH:MM；StartDate/EndDate 使用 YYYY-MM-DD，EndDate 为空表示长期有效
// DaysOfWeek 为逗号分隔的三字母星期缩写（Mon,Wed,Fri），仅在 weekly 频率下生效
// Active 是独立于日期区间的软开关
type Schedule struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement:false"`
	MedicationID        uint   `gorm:"index;not null"`
	Time                string `gorm:"column:dose_time;size:5;not null"`
	Frequency           string `gorm:"size:16;not null"`
	DaysOfWeek          string `gorm:"size:64"`
	StartDate           string `gorm:"size:10;not null"`
	EndDate             string `gorm:"size:10"`
	FoodTiming          string `gorm:"size:16"`
	SpecialInstructions string `gorm:"type:text"`
	Active              bool   `gorm:"not null"`
	CreatedAt           time.Time
}

// TableName 固定表名
func (Schedule) TableName() string {
	return "schedules"
}

// AfterFind 在读取时把旧版饮食时机统一为规范值
func (s *Schedule) AfterFind(*gorm.DB) error {
	s.FoodTiming = NormalizeFoodTiming(s.FoodTiming)
	return nil
}

// NormalizeFoodTiming 将旧值 with_food 映射为 before_food，空值与未知值映射为 none
func NormalizeFoodTiming(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case FoodTimingBefore, legacyFoodTimingWith:
		return FoodTimingBefore
	case FoodTimingAfter:
		return FoodTimingAfter
	default:
		return FoodTimingNone
	}
}

// FoodTimingFromLegacy 处理旧数据中的 with_food 布尔字段
func FoodTimingFromLegacy(withFood bool) string {
	if withFood {
		return FoodTimingBefore
	}
	return FoodTimingNone
}

// IsValidFoodTiming 判断输入是否为可接受的饮食时机（含旧别名）
func IsValidFoodTiming(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", FoodTimingBefore, FoodTimingAfter, FoodTimingNone, legacyFoodTimingWith:
		return true
	}
	return false
}

// Days 返回规范化后的星期缩写集合
func (s Schedule) Days() []string {
	return ParseDaysOfWeek(s.DaysOfWeek)
}

// ParseDaysOfWeek 解析逗号分隔的星期缩写，统一为 Mon/Tue 的大小写形式并忽略空项
func ParseDaysOfWeek(raw string) []string {
	parts := strings.Split(raw, ",")
	days := make([]string, 0, len(parts))
	for _, part := range parts {
		day := strings.TrimSpace(part)
		if day == "" {
			continue
		}
		// 只规范大小写，不截断；非三字母缩写交给 IsValidDay 判定
		day = strings.ToUpper(day[:1]) + strings.ToLower(day[1:])
		days = append(days, day)
	}
	return days
}

// IsValidDay 判断是否为合法的三字母星期缩写
func IsValidDay(day string) bool {
	switch day {
	case "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun":
		return true
	}
	return false
}
