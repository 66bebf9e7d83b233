package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Evaluator struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *Evaluator) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// EvaluatorDefense holds the evaluator's one-time access credential for a
// defense. AccessCode is a bcrypt hash; nil once revoked.
type EvaluatorDefense struct {
	ID             uint       `gorm:"primaryKey"`
	EvaluatorIDRef string     `gorm:"type:uuid;uniqueIndex:uniq_evaluator_defense"`
	DefenseIDRef   string     `gorm:"type:uuid;uniqueIndex:uniq_evaluator_defense"`
	AccessCode     *string
	IssuedAt       *time.Time
	RevokedAt      *time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
