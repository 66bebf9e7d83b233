package submission

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// Revoker clears an evaluator's access credential once their workload in a
// room is done. It reports whether the credential was cleared.
type Revoker interface {
	Revoke(ctx context.Context, tx *gorm.DB, in RevokeInput) (bool, error)
}

type RevokeInput struct {
	EvaluatorID string
	DefenseID   string
	RoomID      string
	Type        stage.Type
	Now         time.Time
}

// AccessRevoker is the storage-backed Revoker.
type AccessRevoker struct{}

func (AccessRevoker) Revoke(ctx context.Context, tx *gorm.DB, in RevokeInput) (bool, error) {
	// Lock the credential first so two of the evaluator's own submissions
	// cannot each miss the other's entry.
	var link models.EvaluatorDefense
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("evaluator_id_ref = ? AND defense_id_ref = ?", in.EvaluatorID, in.DefenseID).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if link.AccessCode == nil {
		return false, nil
	}

	roomProjects := tx.Model(&models.RoomProject{}).Select("project_id_ref").Where("room_id_ref = ?", in.RoomID)
	roomDefenses := tx.Model(&models.ProjectDefense{}).Select("id").
		Where("defense_id_ref = ? AND evaluation_type = ? AND project_id_ref IN (?)", in.DefenseID, in.Type, roomProjects)

	var pending int64
	if err := tx.WithContext(ctx).Model(&models.DefenseEvaluator{}).
		Where("evaluator_id_ref = ? AND has_evaluated = ? AND project_defense_id_ref IN (?)", in.EvaluatorID, false, roomDefenses).
		Count(&pending).Error; err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	q := tx.WithContext(ctx).Model(&models.EvaluatorDefense{}).
		Where("id = ? AND access_code IS NOT NULL", link.ID).
		Updates(map[string]any{"access_code": nil, "revoked_at": in.Now})
	if q.Error != nil {
		return false, q.Error
	}
	return q.RowsAffected == 1, nil
}
