package model

type Publication struct {
	ArticleID   uint64 `gorm:"column:article_id;primaryKey"`
	Language    string `gorm:"column:language;type:text;primaryKey"`
	WPPostID    int64  `gorm:"column:wp_post_id;not null;default:0"`
	URL         string `gorm:"column:url;type:text;not null;default:''"`
	WPStatus    string `gorm:"column:wp_status;type:text;not null"`
	State       string `gorm:"column:state;type:text;not null"`
	Error       string `gorm:"column:error;type:text;not null;default:''"`
	PublishedAt string `gorm:"column:published_at;type:text;not null"`
}

func (Publication) TableName() string {
	return "publications"
}
