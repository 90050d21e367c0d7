package model

import "gorm.io/datatypes"

type SupervisorEvaluation struct {
	EvaluationID   uint64         `gorm:"column:evaluation_id;primaryKey;autoIncrement"`
	ArticleID      uint64         `gorm:"column:article_id;not null;uniqueIndex:idx_evaluations_round,priority:1"`
	ReviewRound    uint64         `gorm:"column:review_round;not null;uniqueIndex:idx_evaluations_round,priority:2"`
	Score          int            `gorm:"column:score;not null"`
	Recommendation string         `gorm:"column:recommendation;type:text;not null"`
	Reasoning      string         `gorm:"column:reasoning;type:text;not null;default:''"`
	TonalityTags   datatypes.JSON `gorm:"column:tonality_tags"`
	Details        datatypes.JSON `gorm:"column:details"`
	Improvements   datatypes.JSON `gorm:"column:improvements"`
	EditorDecision *string        `gorm:"column:editor_decision;type:text;index"`
	EditorFeedback string         `gorm:"column:editor_feedback;type:text;not null;default:''"`
	Deviation      bool           `gorm:"column:deviation;not null;default:false"`
	CreatedAt      string         `gorm:"column:created_at;type:text;not null"`
	DecidedAt      *string        `gorm:"column:decided_at;type:text"`
}

func (SupervisorEvaluation) TableName() string {
	return "supervisor_evaluations"
}
