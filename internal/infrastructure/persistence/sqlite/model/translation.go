package model

type Translation struct {
	ArticleID uint64 `gorm:"column:article_id;primaryKey"`
	Language  string `gorm:"column:language;type:text;primaryKey"`
	Title     string `gorm:"column:title;type:text;not null;default:''"`
	Lead      string `gorm:"column:lead;type:text;not null;default:''"`
	Body      string `gorm:"column:body;type:text;not null;default:''"`
	Status    string `gorm:"column:status;type:text;not null"`
	CreatedAt string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (Translation) TableName() string {
	return "translations"
}
