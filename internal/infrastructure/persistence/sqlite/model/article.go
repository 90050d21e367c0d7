package model

import "gorm.io/datatypes"

type Article struct {
	ArticleID       uint64         `gorm:"column:article_id;primaryKey;autoIncrement"`
	Status          string         `gorm:"column:status;type:text;not null;index:idx_articles_status_updated,priority:1"`
	TriggerType     string         `gorm:"column:trigger_type;type:text;not null"`
	Category        string         `gorm:"column:category;type:text;not null;index"`
	Languages       datatypes.JSON `gorm:"column:languages;not null"`
	TriggerText     string         `gorm:"column:trigger_text;type:text;not null"`
	TriggerURLs     datatypes.JSON `gorm:"column:trigger_urls"`
	ContentHash     string         `gorm:"column:content_hash;type:text;not null;index"`
	Title           string         `gorm:"column:title;type:text;not null"`
	Lead            string         `gorm:"column:lead;type:text;not null;default:''"`
	Body            string         `gorm:"column:body;type:text;not null;default:''"`
	Sources         datatypes.JSON `gorm:"column:sources"`
	SEOTitle        string         `gorm:"column:seo_title;type:text;not null;default:''"`
	SEODescription  string         `gorm:"column:seo_description;type:text;not null;default:''"`
	ImageType       string         `gorm:"column:image_type;type:text;not null;default:''"`
	ImagePrompt     string         `gorm:"column:image_prompt;type:text;not null;default:''"`
	ImageURL        string         `gorm:"column:image_url;type:text;not null;default:''"`
	ImageAltText    string         `gorm:"column:image_alt_text;type:text;not null;default:''"`
	ImageStatus     string         `gorm:"column:image_status;type:text;not null;default:''"`
	ImageJobID      string         `gorm:"column:image_job_id;type:text;not null;default:''"`
	ImageError      string         `gorm:"column:image_error;type:text;not null;default:''"`
	Feedback        string         `gorm:"column:feedback;type:text;not null;default:''"`
	LastError       string         `gorm:"column:last_error;type:text;not null;default:''"`
	FailureCause    string         `gorm:"column:failure_cause;type:text;not null;default:''"`
	GenerationRound uint64         `gorm:"column:generation_round;not null;default:1"`
	ReviewRound     uint64         `gorm:"column:review_round;not null;default:0"`
	RetryCount      int            `gorm:"column:retry_count;not null;default:0"`
	DispatchedAt    *string        `gorm:"column:dispatched_at;type:text"`
	TimeoutAt       *string        `gorm:"column:timeout_at;type:text;index"`
	Embedding       datatypes.JSON `gorm:"column:embedding"`
	CreatedAt       string         `gorm:"column:created_at;type:text;not null"`
	UpdatedAt       string         `gorm:"column:updated_at;type:text;not null;index:idx_articles_status_updated,priority:2"`
}

func (Article) TableName() string {
	return "articles"
}
