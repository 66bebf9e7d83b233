package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Student carries the progress status that defenses advance. The status
// code range encodes the student's cohort tier.
type Student struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	FullName       string    `json:"fullName"`
	Email          string    `gorm:"uniqueIndex" json:"email"`
	BatchYear      int       `json:"batchYear"`
	ProgressStatus int       `gorm:"index" json:"progressStatus"`
	IsAssociated   bool      `json:"isAssociated"`
	ProjectIDRef   *string   `gorm:"type:uuid;index" json:"projectId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
