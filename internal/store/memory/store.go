// Package memory 提供基于进程内 map 的存储实现，适用于测试与临时运行。
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

type state struct {
	medications  map[uint]db.Medication
	schedules    map[uint]db.Schedule
	logs         map[uint]db.IntakeLog
	interactions map[uint]db.Interaction
	counters     map[string]uint
}

func newState() *state {
	counters := make(map[string]uint, len(db.CounterKinds))
	for _, kind := range db.CounterKinds {
		counters[kind] = 0
	}
	return &state{
		medications:  make(map[uint]db.Medication),
		schedules:    make(map[uint]db.Schedule),
		logs:         make(map[uint]db.IntakeLog),
		interactions: make(map[uint]db.Interaction),
		counters:     counters,
	}
}

func (s *state) clone() *state {
	out := &state{
		medications:  make(map[uint]db.Medication, len(s.medications)),
		schedules:    make(map[uint]db.Schedule, len(s.schedules)),
		logs:         make(map[uint]db.IntakeLog, len(s.logs)),
		interactions: make(map[uint]db.Interaction, len(s.interactions)),
		counters:     make(map[string]uint, len(s.counters)),
	}
	for id, m := range s.medications {
		out.medications[id] = cloneMedication(m)
	}
	for id, sc := range s.schedules {
		out.schedules[id] = sc
	}
	for id, l := range s.logs {
		out.logs[id] = cloneLog(l)
	}
	for id, i := range s.interactions {
		out.interactions[id] = i
	}
	for kind, v := range s.counters {
		out.counters[kind] = v
	}
	return out
}

// Store 使用读写锁保护整个数据集，写操作在副本上执行后整体替换
type Store struct {
	mu  sync.RWMutex
	cur *state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New 创建空的内存存储
func New() *Store {
	return &Store{cur: newState(), now: time.Now}
}

func (s *Store) Close() error {
	return nil
}

// Atomic 串行执行写操作；回调出错时丢弃副本，原数据保持不变
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur.clone()
	if err := fn(&tx{st: next, now: s.now}); err != nil {
		return err
	}
	s.cur = next
	return nil
}

func (s *Store) reader() *tx {
	return &tx{st: s.cur, now: s.now}
}

func (s *Store) Medications(ctx context.Context, q store.MedicationQuery) ([]db.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Medications(ctx, q)
}

func (s *Store) Medication(ctx context.Context, id uint) (db.Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Medication(ctx, id)
}

func (s *Store) Schedules(ctx context.Context, q store.ScheduleQuery) ([]db.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Schedules(ctx, q)
}

func (s *Store) Schedule(ctx context.Context, id uint) (db.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Schedule(ctx, id)
}

func (s *Store) Logs(ctx context.Context, q store.LogQuery) ([]db.IntakeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Logs(ctx, q)
}

func (s *Store) Interactions(ctx context.Context, q store.InteractionQuery) ([]db.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Interactions(ctx, q)
}

func (s *Store) Interaction(ctx context.Context, id uint) (db.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Interaction(ctx, id)
}

func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reader().Snapshot(ctx)
}

// tx 直接操作某个 state；Store 的读方法与 Atomic 回调共用这套实现
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) Medications(_ context.Context, q store.MedicationQuery) ([]db.Medication, error) {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var idSet map[uint]struct{}
	if len(q.IDs) > 0 {
		idSet = make(map[uint]struct{}, len(q.IDs))
		for _, id := range q.IDs {
			idSet[id] = struct{}{}
		}
	}

	out := make([]db.Medication, 0, len(t.st.medications))
	for _, m := range t.st.medications {
		if idSet != nil {
			if _, ok := idSet[m.ID]; !ok {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Purpose), search) {
			continue
		}
		out = append(out, cloneMedication(m))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) Medication(_ context.Context, id uint) (db.Medication, error) {
	m, ok := t.st.medications[id]
	if !ok {
		return db.Medication{}, store.ErrNotFound
	}
	return cloneMedication(m), nil
}

func (t *tx) Schedules(_ context.Context, q store.ScheduleQuery) ([]db.Schedule, error) {
	out := make([]db.Schedule, 0, len(t.st.schedules))
	for _, s := range t.st.schedules {
		if q.MedicationID != 0 && s.MedicationID != q.MedicationID {
			continue
		}
		if q.ActiveOnly && !s.Active {
			continue
		}
		s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) Schedule(_ context.Context, id uint) (db.Schedule, error) {
	s, ok := t.st.schedules[id]
	if !ok {
		return db.Schedule{}, store.ErrNotFound
	}
	s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
	return s, nil
}

func (t *tx) Logs(_ context.Context, q store.LogQuery) ([]db.IntakeLog, error) {
	out := make([]db.IntakeLog, 0)
	for _, l := range t.st.logs {
		if matchLog(l, q) {
			out = append(out, cloneLog(l))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.NewestFirst {
			a, b = b, a
		}
		if !a.TakenAt.Equal(b.TakenAt) {
			return a.TakenAt.Before(b.TakenAt)
		}
		return a.ID < b.ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchLog(l db.IntakeLog, q store.LogQuery) bool {
	if q.MedicationID != 0 && l.MedicationID != q.MedicationID {
		return false
	}
	if q.ScheduleID != 0 && (l.ScheduleID == nil || *l.ScheduleID != q.ScheduleID) {
		return false
	}
	if !q.Since.IsZero() && l.TakenAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !l.TakenAt.Before(q.Until) {
		return false
	}
	return true
}

func (t *tx) Interactions(_ context.Context, q store.InteractionQuery) ([]db.Interaction, error) {
	out := make([]db.Interaction, 0)
	for _, i := range t.st.interactions {
		if q.MedicationID != 0 && !i.Involves(q.MedicationID) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) Interaction(_ context.Context, id uint) (db.Interaction, error) {
	i, ok := t.st.interactions[id]
	if !ok {
		return db.Interaction{}, store.ErrNotFound
	}
	return i, nil
}

func (t *tx) Snapshot(ctx context.Context) (store.Snapshot, error) {
	meds, _ := t.Medications(ctx, store.MedicationQuery{})
	sort.Slice(meds, func(i, j int) bool { return meds[i].ID < meds[j].ID })
	schedules, _ := t.Schedules(ctx, store.ScheduleQuery{})
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
	logs, _ := t.Logs(ctx, store.LogQuery{})
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID < logs[j].ID })
	interactions, _ := t.Interactions(ctx, store.InteractionQuery{})

	counters := make(map[string]uint, len(t.st.counters))
	for kind, v := range t.st.counters {
		counters[kind] = v
	}

	return store.Snapshot{
		Medications:  meds,
		Schedules:    schedules,
		Logs:         logs,
		Interactions: interactions,
		Counters:     counters,
	}, nil
}

func (t *tx) NextID(_ context.Context, kind string) (uint, error) {
	t.st.counters[kind]++
	return t.st.counters[kind], nil
}

func (t *tx) CreateMedication(_ context.Context, m *db.Medication) error {
	now := t.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	t.st.medications[m.ID] = cloneMedication(*m)
	return nil
}

func (t *tx) SaveMedication(_ context.Context, m *db.Medication) error {
	if _, ok := t.st.medications[m.ID]; !ok {
		return store.ErrNotFound
	}
	m.UpdatedAt = t.now()
	t.st.medications[m.ID] = cloneMedication(*m)
	return nil
}

func (t *tx) DeleteMedication(_ context.Context, id uint) error {
	if _, ok := t.st.medications[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.medications, id)
	for sid, s := range t.st.schedules {
		if s.MedicationID == id {
			delete(t.st.schedules, sid)
		}
	}
	for lid, l := range t.st.logs {
		if l.MedicationID == id {
			delete(t.st.logs, lid)
		}
	}
	return nil
}

func (t *tx) CreateSchedule(_ context.Context, s *db.Schedule) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now()
	}
	s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
	t.st.schedules[s.ID] = *s
	return nil
}

func (t *tx) SaveSchedule(_ context.Context, s *db.Schedule) error {
	if _, ok := t.st.schedules[s.ID]; !ok {
		return store.ErrNotFound
	}
	s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
	t.st.schedules[s.ID] = *s
	return nil
}

func (t *tx) DeleteSchedule(_ context.Context, id uint) error {
	if _, ok := t.st.schedules[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.schedules, id)
	return nil
}

func (t *tx) CreateLog(_ context.Context, l *db.IntakeLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = t.now()
	}
	t.st.logs[l.ID] = cloneLog(*l)
	return nil
}

func (t *tx) DeleteLogs(_ context.Context, q store.LogQuery) (int64, error) {
	var n int64
	for id, l := range t.st.logs {
		if matchLog(l, q) {
			delete(t.st.logs, id)
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateInteraction(_ context.Context, i *db.Interaction) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = t.now()
	}
	t.st.interactions[i.ID] = *i
	return nil
}

func (t *tx) DeleteInteraction(_ context.Context, id uint) error {
	if _, ok := t.st.interactions[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.st.interactions, id)
	return nil
}

func (t *tx) Restore(_ context.Context, snap store.Snapshot) error {
	next := newState()
	for _, m := range snap.Medications {
		next.medications[m.ID] = cloneMedication(m)
	}
	for _, s := range snap.Schedules {
		s.FoodTiming = db.NormalizeFoodTiming(s.FoodTiming)
		next.schedules[s.ID] = s
	}
	for _, l := range snap.Logs {
		next.logs[l.ID] = cloneLog(l)
	}
	for _, i := range snap.Interactions {
		next.interactions[i.ID] = i
	}
	for kind, v := range store.RestoredCounters(snap) {
		next.counters[kind] = v
	}
	*t.st = *next
	return nil
}

func cloneMedication(m db.Medication) db.Medication {
	if m.TotalQuantity != nil {
		m.TotalQuantity = db.Float64Ptr(*m.TotalQuantity)
	}
	if m.RemainingQuantity != nil {
		m.RemainingQuantity = db.Float64Ptr(*m.RemainingQuantity)
	}
	return m
}

func cloneLog(l db.IntakeLog) db.IntakeLog {
	if l.ScheduleID != nil {
		l.ScheduleID = db.UintPtr(*l.ScheduleID)
	}
	return l
}
