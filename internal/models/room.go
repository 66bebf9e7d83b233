package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room groups projects and evaluators of one defense for simultaneous
// evaluation. IsCompleted is derived by the completion cascade.
type Room struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	DefenseIDRef string     `gorm:"type:uuid;index" json:"defenseId"`
	Name         string     `json:"name"`
	IsCompleted  bool       `gorm:"index" json:"isCompleted"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RoomProject maps a project to the room it defends in.
type RoomProject struct {
	ID           uint   `gorm:"primaryKey"`
	RoomIDRef    string `gorm:"type:uuid;uniqueIndex:uniq_room_project"`
	ProjectIDRef string `gorm:"type:uuid;uniqueIndex:uniq_room_project;index"`
	CreatedAt    time.Time
}

// RoomEvaluator maps an evaluator to the rooms they sit in.
type RoomEvaluator struct {
	ID             uint   `gorm:"primaryKey"`
	RoomIDRef      string `gorm:"type:uuid;uniqueIndex:uniq_room_evaluator"`
	EvaluatorIDRef string `gorm:"type:uuid;uniqueIndex:uniq_room_evaluator;index"`
	CreatedAt      time.Time
}
