package model

type CacheEntry struct {
	Key       string  `gorm:"column:key;type:text;primaryKey"`
	Value     string  `gorm:"column:value;type:text;not null"`
	ExpiresAt *string `gorm:"column:expires_at;type:text"`
	UpdatedAt string  `gorm:"column:updated_at;type:text;not null"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}

// All lists every table the job store migrates, in dependency order.
func All() []any {
	return []any{
		&Article{},
		&Translation{},
		&SupervisorEvaluation{},
		&Publication{},
		&SocialSnippet{},
		&TonalityEntry{},
		&CacheEntry{},
	}
}
