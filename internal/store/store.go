// Package store 定义药品、计划、服药记录与相互作用四个集合的持久化契约。
// 所有写操作都在 Atomic 中执行，实现方负责串行化，回调返回错误时不留下部分写入。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/medtrack/internal/db"
)

// ErrNotFound 在按 ID 查找的记录不存在时返回
var ErrNotFound = errors.New("record not found")

// MedicationQuery 描述药品列表过滤条件
// Search 对名称与用途做不区分大小写的子串匹配
type MedicationQuery struct {
	Search string
	IDs    []uint
}

// ScheduleQuery 描述计划列表过滤条件
type ScheduleQuery struct {
	MedicationID uint
	ActiveOnly   bool
}

// LogQuery 描述服药记录过滤条件
// Since 为包含下界，Until 为不包含上界，零值表示不限制
type LogQuery struct {
	MedicationID uint
	ScheduleID   uint
	Since        time.Time
	Until        time.Time
	Limit        int
	NewestFirst  bool
}

// InteractionQuery 描述相互作用过滤条件
type InteractionQuery struct {
	MedicationID uint
}

// Snapshot 是整个存储的一份完整副本，用于导出与整体恢复
type Snapshot struct {
	Medications  []db.Medication
	Schedules    []db.Schedule
	Logs         []db.IntakeLog
	Interactions []db.Interaction
	Counters     map[string]uint
}

// Reader 提供只读访问
type Reader interface {
	Medications(ctx context.Context, q MedicationQuery) ([]db.Medication, error)
	Medication(ctx context.Context, id uint) (db.Medication, error)
	Schedules(ctx context.Context, q ScheduleQuery) ([]db.Schedule, error)
	Schedule(ctx context.Context, id uint) (db.Schedule, error)
	Logs(ctx context.Context, q LogQuery) ([]db.IntakeLog, error)
	Interactions(ctx context.Context, q InteractionQuery) ([]db.Interaction, error)
	Interaction(ctx context.Context, id uint) (db.Interaction, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Tx 是 Atomic 回调中可用的读写视图
type Tx interface {
	Reader

	// NextID 从对应计数器分配一个新 ID，删除后的 ID 不会被复用
	NextID(ctx context.Context, kind string) (uint, error)

	CreateMedication(ctx context.Context, m *db.Medication) error
	SaveMedication(ctx context.Context, m *db.Medication) error
	// DeleteMedication 同时删除该药品的计划与服药记录
	DeleteMedication(ctx context.Context, id uint) error

	CreateSchedule(ctx context.Context, s *db.Schedule) error
	SaveSchedule(ctx context.Context, s *db.Schedule) error
	DeleteSchedule(ctx context.Context, id uint) error

	CreateLog(ctx context.Context, l *db.IntakeLog) error
	DeleteLogs(ctx context.Context, q LogQuery) (int64, error)

	CreateInteraction(ctx context.Context, i *db.Interaction) error
	DeleteInteraction(ctx context.Context, id uint) error

	// Restore 用快照整体替换当前数据，计数器至少提升到快照中的最大 ID
	Restore(ctx context.Context, snap Snapshot) error
}

// Store 是可替换的持久化后端
type Store interface {
	Reader
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// MaxIDs 计算快照中每类实体的最大 ID
func MaxIDs(snap Snapshot) map[string]uint {
	out := map[string]uint{}
	for _, m := range snap.Medications {
		out[db.CounterMedications] = max(out[db.CounterMedications], m.ID)
	}
	for _, s := range snap.Schedules {
		out[db.CounterSchedules] = max(out[db.CounterSchedules], s.ID)
	}
	for _, l := range snap.Logs {
		out[db.CounterLogs] = max(out[db.CounterLogs], l.ID)
	}
	for _, i := range snap.Interactions {
		out[db.CounterInteractions] = max(out[db.CounterInteractions], i.ID)
	}
	return out
}

// RestoredCounters 合并快照计数器与最大 ID，保证恢复后不会复用已存在的 ID
func RestoredCounters(snap Snapshot) map[string]uint {
	maxIDs := MaxIDs(snap)
	out := make(map[string]uint, len(db.CounterKinds))
	for _, kind := range db.CounterKinds {
		out[kind] = max(snap.Counters[kind], maxIDs[kind])
	}
	return out
}
