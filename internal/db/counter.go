package db

const (
	CounterMedications  = "medications"
	CounterSchedules    = "schedules"
	CounterLogs         = "logs"
	CounterInteractions = "interactions"
)

// CounterKinds 列出所有需要自增序列的实体
var CounterKinds = []string{CounterMedications, CounterSchedules, CounterLogs, CounterInteractions}

// Counter 保存每类实体最后分配的 ID，删除记录后 ID 也不会复用
type Counter struct {
	Kind  string `gorm:"primaryKey;size:32"`
	Value uint   `gorm:"not null;default:0"`
}

// TableName 固定表名
func (Counter) TableName() string {
	return "counters"
}
