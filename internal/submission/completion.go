package submission

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// Completion reports which levels this submission newly completed.
type Completion struct {
	DefenseObjectGraded bool
	RoomCompleted       bool
	DefenseCompleted    bool
}

// gradeDefenseObject sets isGraded and the stage's hasGraduated once every
// evaluator entry has evaluated. The is_graded guard keeps the flag
// monotonic and the transition single.
func gradeDefenseObject(ctx context.Context, tx *gorm.DB, pd *models.ProjectDefense, now time.Time) (bool, error) {
	if pd.IsGraded || len(pd.Evaluators) == 0 {
		return false, nil
	}
	allEvaluated := lo.EveryBy(pd.Evaluators, func(e models.DefenseEvaluator) bool { return e.HasEvaluated })
	if !allEvaluated {
		return false, nil
	}

	q := tx.WithContext(ctx).Model(&models.ProjectDefense{}).
		Where("id = ? AND is_graded = ?", pd.ID, false).
		Updates(map[string]any{"is_graded": true, "graded_at": now})
	if q.Error != nil {
		return false, q.Error
	}
	if q.RowsAffected == 0 {
		return false, nil
	}

	q = tx.WithContext(ctx).Model(&models.ProjectStage{}).
		Where("id = ?", pd.ProjectStageIDRef).
		Update("has_graduated", true)
	if q.Error != nil {
		return false, q.Error
	}
	if q.RowsAffected == 0 {
		return false, apperror.NotFound("project stage not found")
	}
	pd.IsGraded = true
	pd.GradedAt = &now
	return true, nil
}

// completeRoom marks the room completed when every project assigned to it has
// at least one graded defense-object for the evaluation type, in any defense.
func completeRoom(ctx context.Context, tx *gorm.DB, roomID string, typ stage.Type, now time.Time) (bool, error) {
	var room models.Room
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.NotFound("room not found")
		}
		return false, err
	}
	if room.IsCompleted {
		return false, nil
	}

	var projectIDs []string
	if err := tx.WithContext(ctx).Model(&models.RoomProject{}).
		Where("room_id_ref = ?", room.ID).
		Pluck("project_id_ref", &projectIDs).Error; err != nil {
		return false, err
	}
	if len(projectIDs) == 0 {
		return false, nil
	}

	var graded []string
	if err := tx.WithContext(ctx).Model(&models.ProjectDefense{}).
		Where("project_id_ref IN ? AND evaluation_type = ? AND is_graded = ?", projectIDs, typ, true).
		Distinct().
		Pluck("project_id_ref", &graded).Error; err != nil {
		return false, err
	}
	if !lo.Every(graded, projectIDs) {
		return false, nil
	}

	q := tx.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND is_completed = ?", room.ID, false).
		Updates(map[string]any{"is_completed": true, "completed_at": now})
	if q.Error != nil {
		return false, q.Error
	}
	return q.RowsAffected == 1, nil
}

// completeDefense marks the defense completed once all of its rooms are.
func completeDefense(ctx context.Context, tx *gorm.DB, defenseID string, now time.Time) (bool, error) {
	var defense models.Defense
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&defense, "id = ?", defenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.NotFound("defense not found")
		}
		return false, err
	}
	if defense.Status == models.DefenseCompleted {
		return false, nil
	}

	var flags []bool
	if err := tx.WithContext(ctx).Model(&models.Room{}).
		Where("defense_id_ref = ?", defense.ID).
		Pluck("is_completed", &flags).Error; err != nil {
		return false, err
	}
	if len(flags) == 0 || lo.Contains(flags, false) {
		return false, nil
	}

	q := tx.WithContext(ctx).Model(&models.Defense{}).
		Where("id = ? AND status <> ?", defense.ID, models.DefenseCompleted).
		Updates(map[string]any{"status": models.DefenseCompleted, "completed_at": now})
	if q.Error != nil {
		return false, q.Error
	}
	return q.RowsAffected == 1, nil
}

// markDefenseOngoing moves a scheduled defense to ongoing on its first
// accepted submission.
func markDefenseOngoing(ctx context.Context, tx *gorm.DB, defenseID string) error {
	return tx.WithContext(ctx).Model(&models.Defense{}).
		Where("id = ? AND status = ?", defenseID, models.DefenseScheduled).
		Update("status", models.DefenseOngoing).Error
}
