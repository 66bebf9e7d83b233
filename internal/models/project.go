package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

type ProjectStatus string

const (
	ProjectOngoing   ProjectStatus = "ongoing"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

type Project struct {
	ID        string        `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string        `json:"title"`
	EventID   string        `gorm:"index" json:"eventId"`
	Status    ProjectStatus `gorm:"size:16;default:ongoing" json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProjectMember is the project's teamMembers[] list. Rows survive
// dissociation so a finished team can still be looked up.
type ProjectMember struct {
	ID           uint   `gorm:"primaryKey"`
	ProjectIDRef string `gorm:"type:uuid;uniqueIndex:uniq_project_member"`
	StudentIDRef string `gorm:"type:uuid;uniqueIndex:uniq_project_member;index"`
	CreatedAt    time.Time
}

// ProjectStage is the per-evaluation-type sub-document of a project.
type ProjectStage struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectIDRef   string     `gorm:"type:uuid;uniqueIndex:uniq_project_stage" json:"projectId"`
	EvaluationType stage.Type `gorm:"size:16;uniqueIndex:uniq_project_stage" json:"evaluationType"`
	HasGraduated   bool       `json:"hasGraduated"`
	ReportURL      *string    `json:"reportUrl,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (s *ProjectStage) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ProjectDefense is one defense occurrence of a project for an evaluation
// type: its evaluator list and graded flag. IsGraded only ever goes false to
// true.
type ProjectDefense struct {
	ID                string             `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectIDRef      string             `gorm:"type:uuid;uniqueIndex:uniq_project_defense" json:"projectId"`
	ProjectStageIDRef string             `gorm:"type:uuid;index" json:"projectStageId"`
	EvaluationType    stage.Type         `gorm:"size:16;uniqueIndex:uniq_project_defense" json:"evaluationType"`
	DefenseIDRef      string             `gorm:"type:uuid;uniqueIndex:uniq_project_defense;index" json:"defenseId"`
	IsGraded          bool               `json:"isGraded"`
	GradedAt          *time.Time         `json:"gradedAt,omitempty"`
	Evaluators        []DefenseEvaluator `gorm:"foreignKey:ProjectDefenseIDRef" json:"evaluators,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (d *ProjectDefense) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DefenseEvaluator is one evaluator entry of a defense-object. HasEvaluated
// flips once, through the submission gate.
type DefenseEvaluator struct {
	ID                  uint       `gorm:"primaryKey" json:"-"`
	ProjectDefenseIDRef string     `gorm:"type:uuid;uniqueIndex:uniq_defense_evaluator" json:"-"`
	EvaluatorIDRef      string     `gorm:"type:uuid;uniqueIndex:uniq_defense_evaluator;index" json:"evaluatorId"`
	HasEvaluated        bool       `json:"hasEvaluated"`
	EvaluatedAt         *time.Time `json:"evaluatedAt,omitempty"`
	CreatedAt           time.Time  `json:"-"`
}

// ProjectDefenseEvaluationLink is the defense-object's evaluations[] backlink list.
type ProjectDefenseEvaluationLink struct {
	ID                  uint   `gorm:"primaryKey"`
	ProjectDefenseIDRef string `gorm:"type:uuid;index"`
	EvaluationIDRef     string `gorm:"type:uuid;uniqueIndex"`
	CreatedAt           time.Time
}
