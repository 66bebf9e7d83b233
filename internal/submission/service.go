// Package submission records evaluator submissions and cascades defense
// completion inside one transaction.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/logutils"
	"github.com/zaqqye/defense_backend_v1/internal/metrics"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/progress"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
	"github.com/zaqqye/defense_backend_v1/internal/utils"
	"github.com/zaqqye/defense_backend_v1/internal/ws"
)

var tracer = otel.Tracer("github.com/zaqqye/defense_backend_v1/internal/submission")

// Publisher receives completion events after commit.
type Publisher interface {
	Publish(ws.DefenseEvent)
}

type Service struct {
	DB        *gorm.DB
	Timeout   time.Duration
	Projector *progress.Projector
	Revoker   Revoker
	Publisher Publisher
	Now       func() time.Time
}

func NewService(db *gorm.DB, timeout time.Duration, publisher Publisher) *Service {
	return &Service{
		DB:        db,
		Timeout:   timeout,
		Projector: progress.NewProjector(nil),
		Revoker:   AccessRevoker{},
		Publisher: publisher,
	}
}

type Result struct {
	Evaluation    models.Evaluation
	EvaluatorID   string
	Completion    Completion
	Progress      *progress.Result
	AccessRevoked bool
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

// Submit runs the whole pipeline as one unit of work: gate, conflict check,
// completion cascade, progress projection, access revocation and the record
// write. Nothing is visible unless everything but revocation succeeds.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	typeLabel := req.EvaluationType
	if _, err := stage.ParseType(typeLabel); err != nil {
		typeLabel = "unknown"
	}

	st, record, err := req.Validate()
	if err != nil {
		s.observe(typeLabel, start, err)
		return nil, err
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "submission.Submit", trace.WithAttributes(
		attribute.String("project_id", req.ProjectID),
		attribute.String("defense_id", req.DefenseID),
		attribute.String("evaluator_id", req.EvaluatorID),
		attribute.String("evaluation_type", string(st.Type())),
	))
	defer span.End()

	log := logutils.Log.WithFields(logutils.Fields{
		"project_id":      req.ProjectID,
		"defense_id":      req.DefenseID,
		"evaluator_id":    req.EvaluatorID,
		"evaluation_type": st.Type(),
	})
	if sc := span.SpanContext(); sc.IsValid() {
		log = log.WithField("trace_id", sc.TraceID().String())
	}

	var res *Result
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.run(ctx, tx, req, st, record)
		return err
	})
	if err != nil {
		appErr := apperror.From(err)
		if appErr.Code == apperror.CodeInternal && ctx.Err() != nil {
			appErr = apperror.Wrap(apperror.CodeTimeout, "submission did not complete in time, retry later", ctx.Err())
		}
		span.RecordError(appErr)
		span.SetStatus(codes.Error, string(appErr.Code))
		entry := log.WithField("code", appErr.Code)
		if appErr.Code == apperror.CodeInternal {
			entry.WithError(err).Error("submission failed")
		} else {
			entry.Info(appErr.Message)
		}
		s.observe(typeLabel, start, appErr)
		return nil, appErr
	}

	s.observe(typeLabel, start, nil)
	s.publish(req, st.Type(), res.Completion)
	log.WithFields(logutils.Fields{
		"evaluation_id":  res.Evaluation.ID,
		"payload":        utils.Fingerprint(res.Evaluation.ProjectEvaluation),
		"graded":         res.Completion.DefenseObjectGraded,
		"room_completed": res.Completion.RoomCompleted,
		"defense_done":   res.Completion.DefenseCompleted,
		"access_revoked": res.AccessRevoked,
	}).Info("evaluation recorded")
	return res, nil
}

func (s *Service) run(ctx context.Context, tx *gorm.DB, req Request, st stage.Stage, record stage.Record) (*Result, error) {
	now := s.now()
	t := target{ProjectID: req.ProjectID, Type: st.Type(), DefenseID: req.DefenseID, EvaluatorID: req.EvaluatorID}
	res := &Result{EvaluatorID: req.EvaluatorID}

	if err := step(ctx, "submission.scope", func(ctx context.Context) error {
		return checkScope(ctx, tx, req, st.Type())
	}); err != nil {
		return nil, err
	}

	if err := step(ctx, "submission.gate", func(ctx context.Context) error {
		return openGate(ctx, tx, t, now)
	}); err != nil {
		return nil, err
	}

	var pd *models.ProjectDefense
	if err := step(ctx, "submission.conflict", func(ctx context.Context) error {
		var err error
		if pd, err = lockDefenseObject(ctx, tx, t); err != nil {
			return err
		}
		return detectConflict(ctx, tx, st, t, record)
	}); err != nil {
		return nil, err
	}

	if err := step(ctx, "submission.aggregate", func(ctx context.Context) error {
		graded, err := gradeDefenseObject(ctx, tx, pd, now)
		if err != nil || !graded {
			return err
		}
		res.Completion.DefenseObjectGraded = true

		projector := s.Projector
		if projector == nil {
			projector = progress.NewProjector(nil)
		}
		res.Progress, err = projector.Apply(ctx, tx, progress.Input{
			ProjectID: req.ProjectID,
			Stage:     st,
			Judgement: record.Judgement,
		})
		if err != nil {
			return err
		}

		if res.Completion.RoomCompleted, err = completeRoom(ctx, tx, req.RoomID, st.Type(), now); err != nil || !res.Completion.RoomCompleted {
			return err
		}
		res.Completion.DefenseCompleted, err = completeDefense(ctx, tx, req.DefenseID, now)
		return err
	}); err != nil {
		return nil, err
	}

	if !res.Completion.DefenseCompleted {
		if err := markDefenseOngoing(ctx, tx, req.DefenseID); err != nil {
			return nil, err
		}
	}

	res.AccessRevoked = s.revoke(ctx, tx, RevokeInput{
		EvaluatorID: req.EvaluatorID,
		DefenseID:   req.DefenseID,
		RoomID:      req.RoomID,
		Type:        st.Type(),
		Now:         now,
	})

	if err := step(ctx, "submission.record", func(ctx context.Context) error {
		ev, err := writeRecord(ctx, tx, req, pd, record)
		if err != nil {
			return err
		}
		res.Evaluation = *ev
		return nil
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// revoke runs the Revoker in a savepoint. Its failure is logged and never
// aborts the surrounding transaction.
func (s *Service) revoke(ctx context.Context, tx *gorm.DB, in RevokeInput) bool {
	if s.Revoker == nil {
		return false
	}
	var revoked bool
	err := step(ctx, "submission.revoke", func(ctx context.Context) error {
		return tx.Transaction(func(sp *gorm.DB) error {
			var err error
			revoked, err = s.Revoker.Revoke(ctx, sp, in)
			return err
		})
	})
	if err != nil {
		metrics.RevocationFailures.Inc()
		logutils.Log.WithError(err).WithFields(logutils.Fields{
			"evaluator_id": in.EvaluatorID,
			"defense_id":   in.DefenseID,
			"room_id":      in.RoomID,
		}).Warn("access revocation failed, credential left in place")
		return false
	}
	return revoked
}

// checkScope verifies the request's references agree with each other before
// anything is written.
func checkScope(ctx context.Context, tx *gorm.DB, req Request, typ stage.Type) error {
	var defense models.Defense
	if err := tx.WithContext(ctx).First(&defense, "id = ?", req.DefenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("defense not found")
		}
		return err
	}
	if defense.EvaluationType != typ {
		return apperror.Validation(fmt.Sprintf("defense evaluates %s, not %s", defense.EvaluationType, typ))
	}
	if defense.EventID != req.EventID {
		return apperror.Validation("eventId does not match the defense")
	}

	checks := []struct {
		model any
		where string
		args  []any
		miss  string
	}{
		{&models.Room{}, "id = ? AND defense_id_ref = ?", []any{req.RoomID, req.DefenseID}, "room not found in this defense"},
		{&models.RoomProject{}, "room_id_ref = ? AND project_id_ref = ?", []any{req.RoomID, req.ProjectID}, "project is not assigned to this room"},
		{&models.RoomEvaluator{}, "room_id_ref = ? AND evaluator_id_ref = ?", []any{req.RoomID, req.EvaluatorID}, "evaluator is not assigned to this room"},
	}
	for _, c := range checks {
		var n int64
		if err := tx.WithContext(ctx).Model(c.model).Where(c.where, c.args...).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound(c.miss)
		}
	}

	var team []string
	if err := tx.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id_ref = ?", req.ProjectID).
		Pluck("student_id_ref", &team).Error; err != nil {
		return err
	}
	submitted := lo.Map(req.IndividualEvaluation, func(m stage.MemberInput, _ int) string { return strings.TrimSpace(m.Member) })
	if outsiders, _ := lo.Difference(submitted, team); len(outsiders) > 0 {
		return apperror.Validation(fmt.Sprintf("members %v are not on this project's team", outsiders))
	}
	return nil
}

func step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) observe(typ string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = string(apperror.From(err).Code)
	}
	metrics.Submissions.WithLabelValues(typ, result).Inc()
	metrics.SubmissionDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
}

func (s *Service) publish(req Request, typ stage.Type, c Completion) {
	if c.DefenseObjectGraded {
		metrics.Completions.WithLabelValues("defense_object").Inc()
	}
	if c.RoomCompleted {
		metrics.Completions.WithLabelValues("room").Inc()
	}
	if c.DefenseCompleted {
		metrics.Completions.WithLabelValues("defense").Inc()
	}
	if s.Publisher == nil {
		return
	}
	at := s.now()
	if c.RoomCompleted {
		s.Publisher.Publish(ws.DefenseEvent{Type: ws.RoomCompleted, DefenseID: req.DefenseID, RoomID: req.RoomID, EvaluationType: typ, At: at})
	}
	if c.DefenseCompleted {
		s.Publisher.Publish(ws.DefenseEvent{Type: ws.DefenseCompleted, DefenseID: req.DefenseID, EvaluationType: typ, At: at})
	}
}
