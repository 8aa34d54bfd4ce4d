// Package backup 负责整库导出与导入。
// 文档包含四个集合与计数器，支持 JSON 与 YAML 两种格式，导入时兼容旧版 with_food 布尔字段。
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	// ErrUnsupportedFormat 在格式不是 json/yaml 时返回
	ErrUnsupportedFormat = errors.New("unsupported backup format")
	// ErrInvalidDocument 在文档无法解析或引用关系不一致时返回
	ErrInvalidDocument = errors.New("invalid backup document")
)

// Document 是整库备份文档
type Document struct {
	Medications  []Medication    `json:"medications" yaml:"medications"`
	Schedules    []Schedule      `json:"schedules" yaml:"schedules"`
	Logs         []Log           `json:"logs" yaml:"logs"`
	Interactions []Interaction   `json:"interactions" yaml:"interactions"`
	Counters     map[string]uint `json:"counters,omitempty" yaml:"counters,omitempty"`
}

// Medication 是备份文档中的药品
type Medication struct {
	ID                uint      `json:"id" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	Dosage            string    `json:"dosage" yaml:"dosage"`
	Form              string    `json:"form" yaml:"form"`
	Purpose           string    `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	PrescribingDoctor string    `json:"prescribing_doctor,omitempty" yaml:"prescribing_doctor,omitempty"`
	PrescriptionDate  string    `json:"prescription_date,omitempty" yaml:"prescription_date,omitempty"`
	SideEffects       string    `json:"side_effects,omitempty" yaml:"side_effects,omitempty"`
	Notes             string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	TotalQuantity     *float64  `json:"total_quantity" yaml:"total_quantity"`
	RemainingQuantity *float64  `json:"remaining_quantity" yaml:"remaining_quantity"`
	RefillCount       int       `json:"refill_count" yaml:"refill_count"`
	PhotoURL          string    `json:"photo_url,omitempty" yaml:"photo_url,omitempty"`
	ThumbnailURL      string    `json:"thumbnail_url,omitempty" yaml:"thumbnail_url,omitempty"`
	CreatedAt         time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"updated_at"`
}

// Schedule 是备份文档中的计划
// WithFood 仅用于读取旧版文档，导出时不再写出
type Schedule struct {
	ID                  uint      `json:"id" yaml:"id"`
	MedicationID        uint      `json:"medication_id" yaml:"medication_id"`
	Time                string    `json:"time" yaml:"time"`
	Frequency           string    `json:"frequency" yaml:"frequency"`
	DaysOfWeek          string    `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`
	StartDate           string    `json:"start_date" yaml:"start_date"`
	EndDate             string    `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	FoodTiming          string    `json:"food_timing,omitempty" yaml:"food_timing,omitempty"`
	WithFood            *bool     `json:"with_food,omitempty" yaml:"with_food,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty" yaml:"special_instructions,omitempty"`
	Active              *bool     `json:"active" yaml:"active"`
	CreatedAt           time.Time `json:"created_at" yaml:"created_at"`
}

// Log 是备份文档中的服药记录
type Log struct {
	ID           uint      `json:"id" yaml:"id"`
	MedicationID uint      `json:"medication_id" yaml:"medication_id"`
	ScheduleID   *uint     `json:"schedule_id" yaml:"schedule_id"`
	Status       string    `json:"status" yaml:"status"`
	Notes        string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	TakenAt      time.Time `json:"taken_at" yaml:"taken_at"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Interaction 是备份文档中的相互作用
type Interaction struct {
	ID             uint      `json:"id" yaml:"id"`
	Medication1ID  uint      `json:"medication1_id" yaml:"medication1_id"`
	Medication2ID  uint      `json:"medication2_id" yaml:"medication2_id"`
	Severity       string    `json:"severity,omitempty" yaml:"severity,omitempty"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Recommendation string    `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Summary 描述一次导入写入的记录数
type Summary struct {
	Medications  int `json:"medications"`
	Schedules    int `json:"schedules"`
	Logs         int `json:"logs"`
	Interactions int `json:"interactions"`
}

// Service 负责导出与导入
type Service struct {
	store store.Store
}

// NewService 构造 Service
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// NormalizeFormat 把扩展名或格式名统一为 json/yaml，空值视为 json
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Export 读取整库快照
func (s *Service) Export(ctx context.Context) (Document, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export snapshot: %w", err)
	}
	return FromSnapshot(snap), nil
}

// WriteTo 按指定格式导出整库
func (s *Service) WriteTo(ctx context.Context, w io.Writer, format string) error {
	format, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	doc, err := s.Export(ctx)
	if err != nil {
		return err
	}
	return Encode(w, doc, format)
}

// Import 用文档整体替换当前数据
func (s *Service) Import(ctx context.Context, doc Document) (Summary, error) {
	snap, err := doc.Snapshot()
	if err != nil {
		return Summary{}, err
	}

	err = s.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.Restore(ctx, snap)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("import snapshot: %w", err)
	}

	return Summary{
		Medications:  len(snap.Medications),
		Schedules:    len(snap.Schedules),
		Logs:         len(snap.Logs),
		Interactions: len(snap.Interactions),
	}, nil
}

// ReadFrom 解析并导入文档
func (s *Service) ReadFrom(ctx context.Context, r io.Reader, format string) (Summary, error) {
	format, err := NormalizeFormat(format)
	if err != nil {
		return Summary{}, err
	}
	doc, err := Decode(r, format)
	if err != nil {
		return Summary{}, err
	}
	return s.Import(ctx, doc)
}

// Encode 按格式写出文档
func Encode(w io.Writer, doc Document, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Decode 按格式读取文档
func Decode(r io.Reader, format string) (Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		return doc, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// FromSnapshot 把存储快照转换为备份文档
func FromSnapshot(snap store.Snapshot) Document {
	doc := Document{
		Medications:  make([]Medication, 0, len(snap.Medications)),
		Schedules:    make([]Schedule, 0, len(snap.Schedules)),
		Logs:         make([]Log, 0, len(snap.Logs)),
		Interactions: make([]Interaction, 0, len(snap.Interactions)),
		Counters:     map[string]uint{},
	}

	for _, m := range snap.Medications {
		doc.Medications = append(doc.Medications, MedicationFrom(m))
	}
	for _, sc := range snap.Schedules {
		doc.Schedules = append(doc.Schedules, ScheduleFrom(sc))
	}
	for _, l := range snap.Logs {
		doc.Logs = append(doc.Logs, LogFrom(l))
	}
	for _, it := range snap.Interactions {
		doc.Interactions = append(doc.Interactions, InteractionFrom(it))
	}
	for kind, v := range snap.Counters {
		doc.Counters[kind] = v
	}
	return doc
}

// MedicationFrom 把药品模型转换为文档记录
func MedicationFrom(m db.Medication) Medication {
	return Medication{
		ID:                m.ID,
		Name:              m.Name,
		Dosage:            m.Dosage,
		Form:              m.Form,
		Purpose:           m.Purpose,
		PrescribingDoctor: m.PrescribingDoctor,
		PrescriptionDate:  m.PrescriptionDate,
		SideEffects:       m.SideEffects,
		Notes:             m.Notes,
		TotalQuantity:     m.TotalQuantity,
		RemainingQuantity: m.RemainingQuantity,
		RefillCount:       m.RefillCount,
		PhotoURL:          m.PhotoURL,
		ThumbnailURL:      m.ThumbnailURL,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ScheduleFrom 把计划模型转换为文档记录，饮食时机统一为新取值
func ScheduleFrom(sc db.Schedule) Schedule {
	active := sc.Active
	return Schedule{
		ID:                  sc.ID,
		MedicationID:        sc.MedicationID,
		Time:                sc.Time,
		Frequency:           sc.Frequency,
		DaysOfWeek:          sc.DaysOfWeek,
		StartDate:           sc.StartDate,
		EndDate:             sc.EndDate,
		FoodTiming:          db.NormalizeFoodTiming(sc.FoodTiming),
		SpecialInstructions: sc.SpecialInstructions,
		Active:              &active,
		CreatedAt:           sc.CreatedAt,
	}
}

func LogFrom(l db.IntakeLog) Log {
	return Log{
		ID:           l.ID,
		MedicationID: l.MedicationID,
		ScheduleID:   l.ScheduleID,
		Status:       l.Status,
		Notes:        l.Notes,
		TakenAt:      l.TakenAt,
		CreatedAt:    l.CreatedAt,
	}
}

func InteractionFrom(it db.Interaction) Interaction {
	return Interaction{
		ID:             it.ID,
		Medication1ID:  it.Medication1ID,
		Medication2ID:  it.Medication2ID,
		Severity:       it.Severity,
		Description:    it.Description,
		Recommendation: it.Recommendation,
		CreatedAt:      it.CreatedAt,
	}
}

// Snapshot 校验文档并转换为存储快照
// 计划与记录必须引用文档内存在的药品；ID 不能为 0 且同类不能重复
func (d Document) Snapshot() (store.Snapshot, error) {
	snap := store.Snapshot{Counters: map[string]uint{}}
	meds := map[uint]struct{}{}
	schedules := map[uint]struct{}{}

	for _, m := range d.Medications {
		if m.ID == 0 {
			return snap, fmt.Errorf("%w: medication without id", ErrInvalidDocument)
		}
		if _, dup := meds[m.ID]; dup {
			return snap, fmt.Errorf("%w: duplicate medication id %d", ErrInvalidDocument, m.ID)
		}
		if strings.TrimSpace(m.Name) == "" {
			return snap, fmt.Errorf("%w: medication %d has no name", ErrInvalidDocument, m.ID)
		}
		meds[m.ID] = struct{}{}
		snap.Medications = append(snap.Medications, db.Medication{
			ID:                m.ID,
			Name:              m.Name,
			Dosage:            m.Dosage,
			Form:              m.Form,
			Purpose:           m.Purpose,
			PrescribingDoctor: m.PrescribingDoctor,
			PrescriptionDate:  m.PrescriptionDate,
			SideEffects:       m.SideEffects,
			Notes:             m.Notes,
			TotalQuantity:     m.TotalQuantity,
			RemainingQuantity: clampQuantity(m.RemainingQuantity),
			RefillCount:       max(0, m.RefillCount),
			PhotoURL:          m.PhotoURL,
			ThumbnailURL:      m.ThumbnailURL,
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		})
	}

	for _, sc := range d.Schedules {
		if sc.ID == 0 {
			return snap, fmt.Errorf("%w: schedule without id", ErrInvalidDocument)
		}
		if _, dup := schedules[sc.ID]; dup {
			return snap, fmt.Errorf("%w: duplicate schedule id %d", ErrInvalidDocument, sc.ID)
		}
		if _, ok := meds[sc.MedicationID]; !ok {
			return snap, fmt.Errorf("%w: schedule %d references missing medication %d", ErrInvalidDocument, sc.ID, sc.MedicationID)
		}
		schedules[sc.ID] = struct{}{}

		foodTiming := sc.FoodTiming
		if foodTiming == "" && sc.WithFood != nil {
			foodTiming = db.FoodTimingFromLegacy(*sc.WithFood)
		}
		active := true
		if sc.Active != nil {
			active = *sc.Active
		}
		snap.Schedules = append(snap.Schedules, db.Schedule{
			ID:                  sc.ID,
			MedicationID:        sc.MedicationID,
			Time:                sc.Time,
			Frequency:           sc.Frequency,
			DaysOfWeek:          sc.DaysOfWeek,
			StartDate:           sc.StartDate,
			EndDate:             sc.EndDate,
			FoodTiming:          db.NormalizeFoodTiming(foodTiming),
			SpecialInstructions: sc.SpecialInstructions,
			Active:              active,
			CreatedAt:           sc.CreatedAt,
		})
	}

	logs := map[uint]struct{}{}
	for _, l := range d.Logs {
		if l.ID == 0 {
			return snap, fmt.Errorf("%w: log without id", ErrInvalidDocument)
		}
		if _, dup := logs[l.ID]; dup {
			return snap, fmt.Errorf("%w: duplicate log id %d", ErrInvalidDocument, l.ID)
		}
		if _, ok := meds[l.MedicationID]; !ok {
			return snap, fmt.Errorf("%w: log %d references missing medication %d", ErrInvalidDocument, l.ID, l.MedicationID)
		}
		// 计划删除后其服药记录保留，schedule_id 允许悬空
		logs[l.ID] = struct{}{}

		createdAt := l.CreatedAt
		if createdAt.IsZero() {
			createdAt = l.TakenAt
		}
		snap.Logs = append(snap.Logs, db.IntakeLog{
			ID:           l.ID,
			MedicationID: l.MedicationID,
			ScheduleID:   l.ScheduleID,
			Status:       l.Status,
			Notes:        l.Notes,
			TakenAt:      l.TakenAt,
			CreatedAt:    createdAt,
		})
	}

	interactions := map[uint]struct{}{}
	for _, it := range d.Interactions {
		if it.ID == 0 {
			return snap, fmt.Errorf("%w: interaction without id", ErrInvalidDocument)
		}
		if _, dup := interactions[it.ID]; dup {
			return snap, fmt.Errorf("%w: duplicate interaction id %d", ErrInvalidDocument, it.ID)
		}
		interactions[it.ID] = struct{}{}
		snap.Interactions = append(snap.Interactions, db.Interaction{
			ID:             it.ID,
			Medication1ID:  it.Medication1ID,
			Medication2ID:  it.Medication2ID,
			Severity:       it.Severity,
			Description:    it.Description,
			Recommendation: it.Recommendation,
			CreatedAt:      it.CreatedAt,
		})
	}

	for kind, v := range d.Counters {
		snap.Counters[kind] = v
	}
	return snap, nil
}

func clampQuantity(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return db.Float64Ptr(max(0, *v))
}
