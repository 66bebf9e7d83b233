package submission

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/database"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/progress"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
	"github.com/zaqqye/defense_backend_v1/internal/ws"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.DefenseEvent
}

func (p *recordingPublisher) Publish(ev ws.DefenseEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []ws.DefenseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ws.DefenseEvent(nil), p.events...)
}

type fixture struct {
	db     *gorm.DB
	seeded *database.Seeded
	svc    *Service
	pub    *recordingPublisher
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(database.SQLiteDSN(filepath.Join(t.TempDir(), "submission.db")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newFixture(t *testing.T, seed database.DefenseSeed) *fixture {
	t.Helper()
	db := newTestDB(t)
	seeded, err := database.SeedDefense(db, seed)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewService(db, 5*time.Second, pub)
	svc.Projector = progress.NewProjector(fixedNow)
	svc.Now = fixedNow
	return &fixture{db: db, seeded: seeded, svc: svc, pub: pub}
}

func team(names ...string) []database.StudentSeed {
	out := make([]database.StudentSeed, 0, len(names))
	for _, n := range names {
		out = append(out, database.StudentSeed{FullName: n, BatchYear: 2024})
	}
	return out
}

// oneProject seeds a single project in one room judged by n evaluators.
func oneProject(typ stage.Type, evaluators int) database.DefenseSeed {
	names := make([]string, evaluators)
	idx := make([]int, evaluators)
	for i := range names {
		names[i] = "Evaluator " + string(rune('A'+i))
		idx[i] = i
	}
	return database.DefenseSeed{
		EventID:    "event-2026",
		Type:       typ,
		Evaluators: names,
		Rooms: []database.RoomSeed{{
			Name:       "Room 1",
			Evaluators: idx,
			Projects: []database.ProjectSeed{{
				Title:     "Smart Campus",
				Members:   team("Alice", "Bob"),
				ReportURL: "reports/smart-campus.pdf",
			}},
		}},
	}
}

func score(v float64) *float64 { return &v }

func (f *fixture) request(projectIdx, evaluatorIdx int, judgement stage.Judgement) Request {
	sp := f.seeded.Projects[projectIdx]
	members := make([]stage.MemberInput, 0, len(sp.Members))
	for _, m := range sp.Members {
		members = append(members, stage.MemberInput{
			Member:                    m.ID,
			PerformanceAtPresentation: score(80),
			TeamWork:                  score(7),
		})
	}
	return Request{
		IndividualEvaluation: members,
		ProjectEvaluation:    &stage.ProjectInput{Judgement: judgement, Feedback: "ok"},
		ProjectID:            sp.Project.ID,
		EvaluatorID:          f.seeded.Evaluators[evaluatorIdx].ID,
		DefenseID:            f.seeded.Defense.ID,
		EventID:              f.seeded.Defense.EventID,
		EvaluationType:       string(f.seeded.Defense.EvaluationType),
		RoomID:               sp.RoomID,
	}
}

func (f *fixture) countEvaluations(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Evaluation{}).Count(&n).Error)
	return n
}

func (f *fixture) defenseObject(t *testing.T, projectIdx int) models.ProjectDefense {
	t.Helper()
	var pd models.ProjectDefense
	require.NoError(t, f.db.Preload("Evaluators").First(&pd, "id = ?", f.seeded.Projects[projectIdx].DefenseObject.ID).Error)
	return pd
}

func (f *fixture) student(t *testing.T, id string) models.Student {
	t.Helper()
	var st models.Student
	require.NoError(t, f.db.First(&st, "id = ?", id).Error)
	return st
}
