package submission

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// detectConflict compares the new record against every evaluation already
// stored for the same project defense. Must run after lockDefenseObject so
// evaluations committed by other evaluators are visible.
func detectConflict(ctx context.Context, tx *gorm.DB, st stage.Stage, t target, record stage.Record) error {
	var prior []models.Evaluation
	if err := tx.WithContext(ctx).
		Where("project_id_ref = ? AND defense_id_ref = ? AND evaluation_type = ?", t.ProjectID, t.DefenseID, st.Type()).
		Order("created_at").
		Find(&prior).Error; err != nil {
		return err
	}

	for _, p := range prior {
		if p.EvaluatorIDRef == t.EvaluatorID {
			return apperror.Duplicate("evaluation already recorded for this evaluator")
		}
		stored, err := st.Decode(p.IndividualEvaluation, p.ProjectEvaluation)
		if err != nil {
			return apperror.Internal("decode stored evaluation", err)
		}
		if fields := st.Diff(stored, record); len(fields) > 0 {
			return apperror.Conflict(fmt.Sprintf("submission diverges from evaluation %s on %s", p.ID, strings.Join(fields, ", ")))
		}
	}
	return nil
}
