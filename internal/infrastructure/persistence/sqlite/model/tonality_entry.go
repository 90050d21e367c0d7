package model

type TonalityEntry struct {
	EntryID       uint64  `gorm:"column:entry_id;primaryKey;autoIncrement"`
	Trait         string  `gorm:"column:trait;type:text;not null;uniqueIndex"`
	Value         string  `gorm:"column:value;type:text;not null"`
	Weight        float64 `gorm:"column:weight;not null;default:0.5"`
	EvidenceCount int     `gorm:"column:evidence_count;not null;default:0"`
	UpdatedAt     string  `gorm:"column:updated_at;type:text;not null"`
}

func (TonalityEntry) TableName() string {
	return "tonality_entries"
}
