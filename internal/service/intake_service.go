package service

import (
	"context"
	"strings"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

const defaultHistoryLimit = 50

// IntakeService 负责记录服药结果与查询历史
// taken 记录与库存扣减在同一事务内完成，并发记录不会丢失扣减
type IntakeService struct {
	store store.Store
	clock Clock
}

// LogInput 定义一次服药记录
// ScheduleID 为空表示临时服药；TakenAt 为空时使用当前时间
type LogInput struct {
	MedicationID uint
	ScheduleID   *uint
	Status       string
	Notes        string
	TakenAt      *time.Time
}

// HistoryFilter 描述服药历史查询条件
type HistoryFilter struct {
	MedicationID uint
	Limit        int
}

// LogEntry 是附带药品名称与剂量的服药记录
type LogEntry struct {
	db.IntakeLog
	MedicationName string
	Dosage         string
}

// NewIntakeService 构造 IntakeService
func NewIntakeService(s store.Store, clock Clock) *IntakeService {
	return &IntakeService{store: s, clock: clock}
}

// LogIntake 追加一条服药记录；状态为 taken 且库存大于 0 时剩余量减一
func (s *IntakeService) LogIntake(ctx context.Context, input LogInput) (*db.IntakeLog, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if input.MedicationID == 0 {
		return nil, invalidf("medication_id is required")
	}
	if !db.IsValidLogStatus(status) {
		return nil, invalidf("status must be one of taken, missed, skipped")
	}

	now := s.clock.Now()
	entry := db.IntakeLog{
		MedicationID: input.MedicationID,
		Status:       status,
		Notes:        strings.TrimSpace(input.Notes),
		TakenAt:      now,
		CreatedAt:    now,
	}
	if input.ScheduleID != nil {
		entry.ScheduleID = db.UintPtr(*input.ScheduleID)
	}
	if input.TakenAt != nil && !input.TakenAt.IsZero() {
		entry.TakenAt = *input.TakenAt
	}

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		med, err := tx.Medication(ctx, entry.MedicationID)
		if err != nil {
			return mapNotFound(err, ErrMedicationNotFound, "get medication")
		}

		if entry.ScheduleID != nil {
			sc, err := tx.Schedule(ctx, *entry.ScheduleID)
			if err != nil {
				return mapNotFound(err, ErrScheduleNotFound, "get schedule")
			}
			if sc.MedicationID != med.ID {
				return invalidf("schedule %d does not belong to medication %d", sc.ID, med.ID)
			}
		}

		id, err := tx.NextID(ctx, db.CounterLogs)
		if err != nil {
			return err
		}
		entry.ID = id
		if err := tx.CreateLog(ctx, &entry); err != nil {
			return err
		}

		if entry.Status != db.LogStatusTaken || !med.HasStock() {
			return nil
		}
		med.RemainingQuantity = db.Float64Ptr(*med.RemainingQuantity - 1)
		med.UpdatedAt = now
		return tx.SaveMedication(ctx, &med)
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "log intake")
	}
	return &entry, nil
}

// History 返回服药记录，新记录在前；Limit 缺省为 50
func (s *IntakeService) History(ctx context.Context, filter HistoryFilter) ([]LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	logs, err := s.store.Logs(ctx, store.LogQuery{
		MedicationID: filter.MedicationID,
		Limit:        limit,
		NewestFirst:  true,
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list logs")
	}

	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	index := indexMedications(meds)

	entries := make([]LogEntry, 0, len(logs))
	for _, l := range logs {
		entry := LogEntry{IntakeLog: l, MedicationName: medicationName(index, l.MedicationID)}
		if med, ok := index[l.MedicationID]; ok {
			entry.Dosage = med.Dosage
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
