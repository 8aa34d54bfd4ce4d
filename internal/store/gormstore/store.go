// Package gormstore 基于 gorm 实现 store.Store，支持 sqlite 与 postgres。
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 在 gorm 事务中执行写操作。
// sqlite 不支持行锁，写事务通过进程内互斥串行化；postgres 在事务内对药品行加 FOR UPDATE 锁。
type Store struct {
	db      *gorm.DB
	writeMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New 包装一个已完成迁移的 gorm 连接
func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// DB 暴露底层连接，供登录等非领域数据使用
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) serialWrites() bool {
	return s.db.Dialector.Name() != db.DriverPostgres
}

// Atomic 在单个数据库事务中执行 fn，任何错误都会回滚
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if s.serialWrites() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&txStore{queries: queries{db: gtx, lockRows: !s.serialWrites()}})
	})
}

func (s *Store) q(ctx context.Context) queries {
	return queries{db: s.db.WithContext(ctx)}
}

func (s *Store) Medications(ctx context.Context, q store.MedicationQuery) ([]db.Medication, error) {
	return s.q(ctx).Medications(ctx, q)
}

func (s *Store) Medication(ctx context.Context, id uint) (db.Medication, error) {
	return s.q(ctx).Medication(ctx, id)
}

func (s *Store) Schedules(ctx context.Context, q store.ScheduleQuery) ([]db.Schedule, error) {
	return s.q(ctx).Schedules(ctx, q)
}

func (s *Store) Schedule(ctx context.Context, id uint) (db.Schedule, error) {
	return s.q(ctx).Schedule(ctx, id)
}

func (s *Store) Logs(ctx context.Context, q store.LogQuery) ([]db.IntakeLog, error) {
	return s.q(ctx).Logs(ctx, q)
}

func (s *Store) Interactions(ctx context.Context, q store.InteractionQuery) ([]db.Interaction, error) {
	return s.q(ctx).Interactions(ctx, q)
}

func (s *Store) Interaction(ctx context.Context, id uint) (db.Interaction, error) {
	return s.q(ctx).Interaction(ctx, id)
}

func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	return s.q(ctx).Snapshot(ctx)
}

// likeEscaper 让搜索词中的 % 和 _ 按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// queries 是读操作的共享实现；lockRows 仅在 postgres 事务内开启
type queries struct {
	db       *gorm.DB
	lockRows bool
}

func (q queries) Medications(_ context.Context, filter store.MedicationQuery) ([]db.Medication, error) {
	var meds []db.Medication

	query := q.db.Model(&db.Medication{})
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + likeEscaper.Replace(search) + "%"
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(purpose) LIKE ? ESCAPE '\'`, like, like)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}

	if err := query.Order("name ASC").Order("id ASC").Find(&meds).Error; err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

func (q queries) Medication(_ context.Context, id uint) (db.Medication, error) {
	var med db.Medication
	query := q.db
	if q.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&med, id).Error; err != nil {
		return db.Medication{}, notFound(err, "get medication")
	}
	return med, nil
}

func (q queries) Schedules(_ context.Context, filter store.ScheduleQuery) ([]db.Schedule, error) {
	var schedules []db.Schedule

	query := q.db.Model(&db.Schedule{})
	if filter.MedicationID != 0 {
		query = query.Where("medication_id = ?", filter.MedicationID)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}

	if err := query.Order("dose_time ASC").Order("id ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

func (q queries) Schedule(_ context.Context, id uint) (db.Schedule, error) {
	var schedule db.Schedule
	if err := q.db.First(&schedule, id).Error; err != nil {
		return db.Schedule{}, notFound(err, "get schedule")
	}
	return schedule, nil
}

func (q queries) Logs(_ context.Context, filter store.LogQuery) ([]db.IntakeLog, error) {
	var logs []db.IntakeLog

	query := applyLogFilter(q.db.Model(&db.IntakeLog{}), filter)
	if filter.NewestFirst {
		query = query.Order("taken_at DESC").Order("id DESC")
	} else {
		query = query.Order("taken_at ASC").Order("id ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}

func applyLogFilter(query *gorm.DB, filter store.LogQuery) *gorm.DB {
	if filter.MedicationID != 0 {
		query = query.Where("medication_id = ?", filter.MedicationID)
	}
	if filter.ScheduleID != 0 {
		query = query.Where("schedule_id = ?", filter.ScheduleID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("taken_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query = query.Where("taken_at < ?", filter.Until.UTC())
	}
	return query
}

func (q queries) Interactions(_ context.Context, filter store.InteractionQuery) ([]db.Interaction, error) {
	var interactions []db.Interaction

	query := q.db.Model(&db.Interaction{})
	if filter.MedicationID != 0 {
		query = query.Where("medication1_id = ? OR medication2_id = ?", filter.MedicationID, filter.MedicationID)
	}

	if err := query.Order("id ASC").Find(&interactions).Error; err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	return interactions, nil
}

func (q queries) Interaction(_ context.Context, id uint) (db.Interaction, error) {
	var interaction db.Interaction
	if err := q.db.First(&interaction, id).Error; err != nil {
		return db.Interaction{}, notFound(err, "get interaction")
	}
	return interaction, nil
}

func (q queries) Snapshot(_ context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	if err := q.db.Order("id ASC").Find(&snap.Medications).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("snapshot medications: %w", err)
	}
	if err := q.db.Order("id ASC").Find(&snap.Schedules).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("snapshot schedules: %w", err)
	}
	if err := q.db.Order("id ASC").Find(&snap.Logs).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("snapshot logs: %w", err)
	}
	if err := q.db.Order("id ASC").Find(&snap.Interactions).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("snapshot interactions: %w", err)
	}

	var counters []db.Counter
	if err := q.db.Find(&counters).Error; err != nil {
		return store.Snapshot{}, fmt.Errorf("snapshot counters: %w", err)
	}
	snap.Counters = make(map[string]uint, len(counters))
	for _, c := range counters {
		snap.Counters[c.Kind] = c.Value
	}

	return snap, nil
}

// txStore 是 Atomic 回调中使用的事务视图
type txStore struct {
	queries
}

func (t *txStore) NextID(_ context.Context, kind string) (uint, error) {
	res := t.db.Model(&db.Counter{}).
		Where("kind = ?", kind).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("advance counter %s: %w", kind, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := t.db.Create(&db.Counter{Kind: kind, Value: 1}).Error; err != nil {
			return 0, fmt.Errorf("create counter %s: %w", kind, err)
		}
		return 1, nil
	}

	var counter db.Counter
	if err := t.db.Where("kind = ?", kind).First(&counter).Error; err != nil {
		return 0, fmt.Errorf("read counter %s: %w", kind, err)
	}
	return counter.Value, nil
}

func (t *txStore) CreateMedication(_ context.Context, m *db.Medication) error {
	if err := t.db.Create(m).Error; err != nil {
		return fmt.Errorf("create medication: %w", err)
	}
	return nil
}

func (t *txStore) SaveMedication(_ context.Context, m *db.Medication) error {
	res := t.db.Model(m).Select("*").Omit("created_at").Updates(m)
	if res.Error != nil {
		return fmt.Errorf("save medication: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) DeleteMedication(_ context.Context, id uint) error {
	if err := t.db.Where("medication_id = ?", id).Delete(&db.IntakeLog{}).Error; err != nil {
		return fmt.Errorf("delete medication logs: %w", err)
	}
	if err := t.db.Where("medication_id = ?", id).Delete(&db.Schedule{}).Error; err != nil {
		return fmt.Errorf("delete medication schedules: %w", err)
	}

	res := t.db.Delete(&db.Medication{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete medication: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) CreateSchedule(_ context.Context, s *db.Schedule) error {
	s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
	if err := t.db.Create(s).Error; err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (t *txStore) SaveSchedule(_ context.Context, s *db.Schedule) error {
	s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
	res := t.db.Model(s).Select("*").Omit("created_at").Updates(s)
	if res.Error != nil {
		return fmt.Errorf("save schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) DeleteSchedule(_ context.Context, id uint) error {
	res := t.db.Delete(&db.Schedule{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) CreateLog(_ context.Context, l *db.IntakeLog) error {
	// sqlite 以文本保存时间，统一为 UTC 才能按字典序比较
	l.TakenAt = l.TakenAt.UTC()
	if err := t.db.Create(l).Error; err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	return nil
}

func (t *txStore) DeleteLogs(_ context.Context, filter store.LogQuery) (int64, error) {
	query := applyLogFilter(t.db.Session(&gorm.Session{AllowGlobalUpdate: true}), filter)
	res := query.Delete(&db.IntakeLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (t *txStore) CreateInteraction(_ context.Context, i *db.Interaction) error {
	if err := t.db.Create(i).Error; err != nil {
		return fmt.Errorf("create interaction: %w", err)
	}
	return nil
}

func (t *txStore) DeleteInteraction(_ context.Context, id uint) error {
	res := t.db.Delete(&db.Interaction{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete interaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txStore) Restore(_ context.Context, snap store.Snapshot) error {
	wipe := t.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&db.IntakeLog{}, &db.Schedule{}, &db.Interaction{}, &db.Medication{}} {
		if err := wipe.Delete(model).Error; err != nil {
			return fmt.Errorf("restore wipe: %w", err)
		}
	}

	if len(snap.Medications) > 0 {
		if err := t.db.CreateInBatches(snap.Medications, 100).Error; err != nil {
			return fmt.Errorf("restore medications: %w", err)
		}
	}
	if len(snap.Schedules) > 0 {
		for i := range snap.Schedules {
			snap.Schedules[i].FoodTiming = db.NormalizeFoodTiming(snap.Schedules[i].FoodTiming)
		}
		if err := t.db.CreateInBatches(snap.Schedules, 100).Error; err != nil {
			return fmt.Errorf("restore schedules: %w", err)
		}
	}
	if len(snap.Logs) > 0 {
		for i := range snap.Logs {
			snap.Logs[i].TakenAt = snap.Logs[i].TakenAt.UTC()
		}
		if err := t.db.CreateInBatches(snap.Logs, 100).Error; err != nil {
			return fmt.Errorf("restore logs: %w", err)
		}
	}
	if len(snap.Interactions) > 0 {
		if err := t.db.CreateInBatches(snap.Interactions, 100).Error; err != nil {
			return fmt.Errorf("restore interactions: %w", err)
		}
	}

	for kind, value := range store.RestoredCounters(snap) {
		counter := db.Counter{Kind: kind, Value: value}
		if err := t.db.Save(&counter).Error; err != nil {
			return fmt.Errorf("restore counter %s: %w", kind, err)
		}
	}
	return nil
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
