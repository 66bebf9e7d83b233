package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// Evaluation is the append-only record of one evaluator's assessment of one
// project defense. The unique index enforces one record per
// (project, defense, evaluator).
type Evaluation struct {
	ID                   string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectIDRef         string          `gorm:"type:uuid;uniqueIndex:uniq_evaluation_triple;index" json:"projectId"`
	DefenseIDRef         string          `gorm:"type:uuid;uniqueIndex:uniq_evaluation_triple" json:"defenseId"`
	EvaluatorIDRef       string          `gorm:"type:uuid;uniqueIndex:uniq_evaluation_triple" json:"evaluatorId"`
	EventID              string          `json:"eventId"`
	RoomIDRef            string          `gorm:"type:uuid" json:"roomId"`
	EvaluationType       stage.Type      `gorm:"size:16" json:"evaluationType"`
	Judgement            stage.Judgement `gorm:"size:32" json:"judgement"`
	IndividualEvaluation datatypes.JSON  `gorm:"type:jsonb" json:"individualEvaluation"`
	ProjectEvaluation    datatypes.JSON  `gorm:"type:jsonb" json:"projectEvaluation"`
	CreatedAt            time.Time       `json:"createdAt"`
}

func (e *Evaluation) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Project{}, &ProjectMember{}, &ProjectStage{}, &ProjectDefense{}, &DefenseEvaluator{},
		&Defense{}, &Room{}, &RoomProject{}, &RoomEvaluator{},
		&Student{}, &Evaluator{}, &EvaluatorDefense{},
		&Evaluation{}, &DefenseEvaluationLink{}, &ProjectDefenseEvaluationLink{},
	}
}
