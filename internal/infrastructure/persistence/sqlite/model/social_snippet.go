package model

import "gorm.io/datatypes"

type SocialSnippet struct {
	SnippetID uint64         `gorm:"column:snippet_id;primaryKey;autoIncrement"`
	ArticleID uint64         `gorm:"column:article_id;not null;index"`
	Platform  string         `gorm:"column:platform;type:text;not null"`
	Text      string         `gorm:"column:text;type:text;not null"`
	Hashtags  datatypes.JSON `gorm:"column:hashtags"`
	CreatedAt string         `gorm:"column:created_at;type:text;not null"`
}

func (SocialSnippet) TableName() string {
	return "social_snippets"
}
