package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

type DefenseStatus string

const (
	DefenseScheduled DefenseStatus = "scheduled"
	DefenseOngoing   DefenseStatus = "ongoing"
	DefenseCompleted DefenseStatus = "completed"
)

// Defense is the top-level scheduled evaluation event for one stage.
type Defense struct {
	ID             string        `gorm:"type:uuid;primaryKey" json:"id"`
	EventID        string        `gorm:"index" json:"eventId"`
	EvaluationType stage.Type    `gorm:"size:16" json:"evaluationType"`
	Status         DefenseStatus `gorm:"size:16;default:scheduled" json:"status"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func (d *Defense) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DefenseEvaluationLink is the defense's evaluations[] backlink list.
type DefenseEvaluationLink struct {
	ID              uint   `gorm:"primaryKey"`
	DefenseIDRef    string `gorm:"type:uuid;index"`
	EvaluationIDRef string `gorm:"type:uuid;uniqueIndex"`
	CreatedAt       time.Time
}
