package service

import (
	"context"
	"strings"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

// InteractionService 负责药物相互作用的维护
type InteractionService struct {
	store store.Store
	clock Clock
}

// InteractionInput 定义新建相互作用时可配置字段
type InteractionInput struct {
	Medication1ID  uint
	Medication2ID  uint
	Severity       string
	Description    string
	Recommendation string
}

// InteractionView 附带两种药品的名称
type InteractionView struct {
	db.Interaction
	Medication1Name string
	Medication2Name string
}

// NewInteractionService 构造 InteractionService
func NewInteractionService(s store.Store, clock Clock) *InteractionService {
	return &InteractionService{store: s, clock: clock}
}

// List 返回相互作用；medicationID 不为 0 时只返回涉及该药品的记录
func (s *InteractionService) List(ctx context.Context, medicationID uint) ([]InteractionView, error) {
	items, err := s.store.Interactions(ctx, store.InteractionQuery{MedicationID: medicationID})
	if err != nil {
		return nil, mapNotFound(err, ErrInteractionNotFound, "list interactions")
	}
	meds, err := s.store.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	index := indexMedications(meds)

	views := make([]InteractionView, 0, len(items))
	for _, it := range items {
		views = append(views, InteractionView{
			Interaction:     it,
			Medication1Name: medicationName(index, it.Medication1ID),
			Medication2Name: medicationName(index, it.Medication2ID),
		})
	}
	return views, nil
}

// Create 新建相互作用，两种药品必须存在且不同
func (s *InteractionService) Create(ctx context.Context, input InteractionInput) (*db.Interaction, error) {
	item := db.Interaction{
		Medication1ID:  input.Medication1ID,
		Medication2ID:  input.Medication2ID,
		Severity:       strings.TrimSpace(input.Severity),
		Description:    strings.TrimSpace(input.Description),
		Recommendation: strings.TrimSpace(input.Recommendation),
	}
	if item.Medication1ID == 0 || item.Medication2ID == 0 {
		return nil, invalidf("medication1_id and medication2_id are required")
	}
	if item.Medication1ID == item.Medication2ID {
		return nil, invalidf("an interaction needs two different medications")
	}
	if item.Severity == "" {
		return nil, invalidf("severity is required")
	}

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		for _, id := range []uint{item.Medication1ID, item.Medication2ID} {
			if _, err := tx.Medication(ctx, id); err != nil {
				return mapNotFound(err, ErrMedicationNotFound, "get medication")
			}
		}

		id, err := tx.NextID(ctx, db.CounterInteractions)
		if err != nil {
			return err
		}
		item.ID = id
		item.CreatedAt = s.clock.Now()
		return tx.CreateInteraction(ctx, &item)
	})
	if err != nil {
		return nil, mapNotFound(err, ErrInteractionNotFound, "create interaction")
	}
	return &item, nil
}

// Delete 删除相互作用
func (s *InteractionService) Delete(ctx context.Context, id uint) error {
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.DeleteInteraction(ctx, id)
	})
	return mapNotFound(err, ErrInteractionNotFound, "delete interaction")
}
