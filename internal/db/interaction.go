package db

import "time"

// Interaction 记录两种药品之间的相互作用说明
type Interaction struct {
	ID             uint   `gorm:"primaryKey;autoIncrement:false"`
	Medication1ID  uint   `gorm:"index;not null"`
	Medication2ID  uint   `gorm:"index;not null"`
	Severity       string `gorm:"size:32"`
	Description    string `gorm:"type:text"`
	Recommendation string `gorm:"type:text"`
	CreatedAt      time.Time
}

// TableName 固定表名
func (Interaction) TableName() string {
	return "interactions"
}

// Involves 判断相互作用是否涉及指定药品
func (i Interaction) Involves(medicationID uint) bool {
	return i.Medication1ID == medicationID || i.Medication2ID == medicationID
}
