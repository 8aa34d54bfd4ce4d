package db

import "time"

const (
	LogStatusTaken   = "taken"
	LogStatusMissed  = "missed"
	LogStatusSkipped = "skipped"
)

// IntakeLog 记录一次服药结果，创建后不再修改
// ScheduleID 为空表示临时服药；TakenAt 默认为创建时间，也可由外部提醒回调显式传入
type IntakeLog struct {
	ID           uint      `gorm:"primaryKey;autoIncrement:false"`
	MedicationID uint      `gorm:"index;not null"`
	ScheduleID   *uint     `gorm:"index"`
	Status       string    `gorm:"size:16;not null"`
	Notes        string    `gorm:"type:text"`
	TakenAt      time.Time `gorm:"index;not null"`
	CreatedAt    time.Time
}

// TableName 固定表名
func (IntakeLog) TableName() string {
	return "intake_logs"
}

// IsValidLogStatus 判断状态是否属于 taken/missed/skipped
func IsValidLogStatus(status string) bool {
	switch status {
	case LogStatusTaken, LogStatusMissed, LogStatusSkipped:
		return true
	}
	return false
}

// UintPtr 便于构造可空外键
func UintPtr(v uint) *uint {
	return &v
}
