package submission

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// writeRecord persists the canonical evaluation and appends it to the
// defense's and the defense-object's evaluation lists.
func writeRecord(ctx context.Context, tx *gorm.DB, req Request, pd *models.ProjectDefense, record stage.Record) (*models.Evaluation, error) {
	individual, err := record.IndividualJSON()
	if err != nil {
		return nil, apperror.Internal("encode individual evaluation", err)
	}
	project, err := record.ProjectJSON()
	if err != nil {
		return nil, apperror.Internal("encode project evaluation", err)
	}

	ev := models.Evaluation{
		ProjectIDRef:         req.ProjectID,
		DefenseIDRef:         req.DefenseID,
		EvaluatorIDRef:       req.EvaluatorID,
		EventID:              req.EventID,
		RoomIDRef:            req.RoomID,
		EvaluationType:       record.Type,
		Judgement:            record.Judgement,
		IndividualEvaluation: datatypes.JSON(individual),
		ProjectEvaluation:    datatypes.JSON(project),
	}
	if err := tx.WithContext(ctx).Create(&ev).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&models.DefenseEvaluationLink{
		DefenseIDRef:    req.DefenseID,
		EvaluationIDRef: ev.ID,
	}).Error; err != nil {
		return nil, err
	}
	if err := tx.WithContext(ctx).Create(&models.ProjectDefenseEvaluationLink{
		ProjectDefenseIDRef: pd.ID,
		EvaluationIDRef:     ev.ID,
	}).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}
