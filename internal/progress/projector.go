package progress

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// Projector applies a judgement to the team of a project inside the
// caller's transaction.
type Projector struct {
	Classifier Classifier
}

func NewProjector(now func() time.Time) *Projector {
	return &Projector{Classifier: Classifier{Now: now}}
}

type Input struct {
	ProjectID string
	Stage     stage.Stage
	Judgement stage.Judgement
}

type MemberChange struct {
	StudentID  string `json:"studentId"`
	Tier       Tier   `json:"tier"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	Dissociate bool   `json:"dissociated"`
}

type Result struct {
	Outcome       stage.Outcome
	Members       []MemberChange
	ProjectStatus models.ProjectStatus
	ReportCleared bool
}

// Apply updates every team member, the project status and the stage report.
// Any failing update is returned and must abort the transaction.
func (p *Projector) Apply(ctx context.Context, tx *gorm.DB, in Input) (*Result, error) {
	outcome, err := in.Stage.Classify(in.Judgement)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	typ := in.Stage.Type()
	res := &Result{Outcome: outcome}

	dissociate := outcome == stage.OutcomeRejected || (outcome == stage.OutcomePassed && in.Stage.Terminal())
	switch {
	case outcome == stage.OutcomeRejected:
		res.ProjectStatus = models.ProjectArchived
	case outcome == stage.OutcomePassed && in.Stage.Terminal():
		res.ProjectStatus = models.ProjectCompleted
	}

	var students []models.Student
	members := tx.Model(&models.ProjectMember{}).Select("student_id_ref").Where("project_id_ref = ?", in.ProjectID)
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN (?)", members).
		Order("id").
		Find(&students).Error; err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, apperror.NotFound("project has no team members")
	}

	for _, st := range students {
		tier := p.Classifier.Tier(st.BatchYear)
		code, err := StatusCode(tier, typ, outcome)
		if err != nil {
			return nil, apperror.Internal("resolve progress status", err)
		}
		updates := map[string]any{"progress_status": code}
		if dissociate {
			updates["is_associated"] = false
			updates["project_id_ref"] = nil
		}
		q := tx.WithContext(ctx).Model(&models.Student{}).Where("id = ?", st.ID).Updates(updates)
		if q.Error != nil {
			return nil, q.Error
		}
		if q.RowsAffected == 0 {
			return nil, apperror.NotFound("student " + st.ID + " disappeared")
		}
		res.Members = append(res.Members, MemberChange{
			StudentID:  st.ID,
			Tier:       tier,
			From:       st.ProgressStatus,
			To:         code,
			Dissociate: dissociate,
		})
	}

	if res.ProjectStatus != "" {
		q := tx.WithContext(ctx).Model(&models.Project{}).Where("id = ?", in.ProjectID).Update("status", res.ProjectStatus)
		if q.Error != nil {
			return nil, q.Error
		}
		if q.RowsAffected == 0 {
			return nil, apperror.NotFound("project not found")
		}
	}

	if outcome.InvalidatesReport() {
		q := tx.WithContext(ctx).Model(&models.ProjectStage{}).
			Where("project_id_ref = ? AND evaluation_type = ?", in.ProjectID, typ).
			Update("report_url", nil)
		if q.Error != nil {
			return nil, q.Error
		}
		if q.RowsAffected == 0 {
			return nil, apperror.NotFound("project stage not found")
		}
		res.ReportCleared = true
	}
	return res, nil
}
