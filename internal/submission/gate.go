package submission

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// target names one evaluator's entry on one defense-object.
type target struct {
	ProjectID   string
	Type        stage.Type
	DefenseID   string
	EvaluatorID string
}

func (t target) defenseObjects(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.ProjectDefense{}).
		Select("id").
		Where("project_id_ref = ? AND evaluation_type = ? AND defense_id_ref = ?", t.ProjectID, t.Type, t.DefenseID)
}

// openGate flips the evaluator's hasEvaluated flag with a single conditional
// update. Exactly one caller per entry sees success; everyone else gets
// DuplicateSubmission, or NotFound when there is no entry at all.
func openGate(ctx context.Context, tx *gorm.DB, t target, now time.Time) error {
	q := tx.WithContext(ctx).Model(&models.DefenseEvaluator{}).
		Where("evaluator_id_ref = ? AND has_evaluated = ? AND project_defense_id_ref IN (?)", t.EvaluatorID, false, t.defenseObjects(tx)).
		Updates(map[string]any{"has_evaluated": true, "evaluated_at": now})
	if q.Error != nil {
		return q.Error
	}
	if q.RowsAffected == 1 {
		return nil
	}

	var entries int64
	if err := tx.WithContext(ctx).Model(&models.DefenseEvaluator{}).
		Where("evaluator_id_ref = ? AND project_defense_id_ref IN (?)", t.EvaluatorID, t.defenseObjects(tx)).
		Count(&entries).Error; err != nil {
		return err
	}
	if entries == 0 {
		return apperror.NotFound("evaluator is not assigned to this project defense")
	}
	return apperror.Duplicate("evaluation already submitted by this evaluator")
}

// lockDefenseObject takes the row lock that serialises every later step for
// the defense-object and reloads its evaluator entries.
func lockDefenseObject(ctx context.Context, tx *gorm.DB, t target) (*models.ProjectDefense, error) {
	var pd models.ProjectDefense
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("project_id_ref = ? AND evaluation_type = ? AND defense_id_ref = ?", t.ProjectID, t.Type, t.DefenseID).
		First(&pd).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("project defense disappeared after the gate matched")
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).
		Where("project_defense_id_ref = ?", pd.ID).
		Order("id").
		Find(&pd.Evaluators).Error; err != nil {
		return nil, err
	}
	return &pd, nil
}
