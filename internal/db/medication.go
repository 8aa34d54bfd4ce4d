package db

import "time"

// Medication 定义了药品模型
// TotalQuantity 为处方总量，RemainingQuantity 为剩余量，二者均可为空（未追踪库存）
// RemainingQuantity 在创建时默认等于 TotalQuantity，服药记录为 taken 时扣减
// PhotoURL/ThumbnailURL 指向药品照片，可为空
type Medication struct {
	ID                uint   `gorm:"primaryKey;autoIncrement:false"`
	Name              string `gorm:"size:200;not null;index"`
	Dosage            string `gorm:"size:100;not null"`
	Form              string `gorm:"size:100;not null"`
	Purpose           string
	PrescribingDoctor string
	PrescriptionDate  string `gorm:"size:10"`
	SideEffects       string `gorm:"type:text"`
	Notes             string `gorm:"type:text"`
	TotalQuantity     *float64
	RemainingQuantity *float64
	RefillCount       int `gorm:"not null;default:0"`
	PhotoURL          string
	ThumbnailURL      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 固定表名
func (Medication) TableName() string {
	return "medications"
}

// HasStock 表示剩余量已追踪且大于零
func (m Medication) HasStock() bool {
	return m.RemainingQuantity != nil && *m.RemainingQuantity > 0
}

// Float64Ptr 便于构造可空数量字段
func Float64Ptr(v float64) *float64 {
	return &v
}
