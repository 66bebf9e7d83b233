package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/database"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

var fixedNow = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }

func TestClassifierTier(t *testing.T) {
	c := Classifier{Now: fixedNow}
	cases := map[int]Tier{
		2026: Tier0,
		2025: Tier0,
		2024: Tier0,
		2023: Tier1,
		2022: Tier2,
		2015: Tier2,
	}
	for year, want := range cases {
		assert.Equal(t, want, c.Tier(year), "batch %d", year)
	}
}

func TestStatusTable(t *testing.T) {
	code, err := StatusCode(Tier0, stage.Proposal, stage.OutcomeRejected)
	require.NoError(t, err)
	assert.Equal(t, 102, code)

	code, err = StatusCode(Tier2, stage.Final, stage.OutcomePassed)
	require.NoError(t, err)
	assert.Equal(t, 2300, code)

	_, err = StatusCode(Tier1, stage.Mid, stage.OutcomeRejected)
	assert.Error(t, err)

	// Every code stays inside its tier's block.
	for key, code := range statusTable {
		assert.True(t, key.tier.Contains(code), "%v -> %d", key, code)
		got, ok := TierOf(code)
		require.True(t, ok)
		assert.Equal(t, key.tier, got)
	}
	_, ok := TierOf(3000)
	assert.False(t, ok)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(database.SQLiteDSN(filepath.Join(t.TempDir(), "progress.db")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedTeam(t *testing.T, db *gorm.DB, typ stage.Type) database.SeededProject {
	t.Helper()
	seeded, err := database.SeedDefense(db, database.DefenseSeed{
		EventID:    "event",
		Type:       typ,
		Evaluators: []string{"Ada"},
		Rooms: []database.RoomSeed{{Name: "R", Evaluators: []int{0}, Projects: []database.ProjectSeed{{
			Title:     "P",
			ReportURL: "reports/p.pdf",
			Members: []database.StudentSeed{
				{FullName: "Junior", BatchYear: 2025},
				{FullName: "Senior", BatchYear: 2023},
				{FullName: "Veteran", BatchYear: 2020},
			},
		}}}},
	})
	require.NoError(t, err)
	return seeded.Projects[0]
}

func apply(t *testing.T, db *gorm.DB, projectID string, typ stage.Type, j stage.Judgement) (*Result, error) {
	t.Helper()
	p := NewProjector(fixedNow)
	var res *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = p.Apply(context.Background(), tx, Input{ProjectID: projectID, Stage: stage.MustFor(typ), Judgement: j})
		return err
	})
	return res, err
}

func studentsByName(t *testing.T, db *gorm.DB, sp database.SeededProject) map[string]models.Student {
	t.Helper()
	out := map[string]models.Student{}
	for _, m := range sp.Members {
		var st models.Student
		require.NoError(t, db.First(&st, "id = ?", m.ID).Error)
		out[st.FullName] = st
	}
	return out
}

func TestApplyRejectedProposal(t *testing.T) {
	db := newTestDB(t)
	sp := seedTeam(t, db, stage.Proposal)

	res, err := apply(t, db, sp.Project.ID, stage.Proposal, stage.Rejected)
	require.NoError(t, err)
	assert.Equal(t, stage.OutcomeRejected, res.Outcome)
	assert.True(t, res.ReportCleared)
	assert.Len(t, res.Members, 3)

	students := studentsByName(t, db, sp)
	assert.Equal(t, 102, students["Junior"].ProgressStatus)
	assert.Equal(t, 1102, students["Senior"].ProgressStatus)
	assert.Equal(t, 2102, students["Veteran"].ProgressStatus)
	for _, st := range students {
		assert.False(t, st.IsAssociated)
		assert.Nil(t, st.ProjectIDRef)
	}

	var project models.Project
	require.NoError(t, db.First(&project, "id = ?", sp.Project.ID).Error)
	assert.Equal(t, models.ProjectArchived, project.Status)

	var ps models.ProjectStage
	require.NoError(t, db.First(&ps, "id = ?", sp.Stage.ID).Error)
	assert.Nil(t, ps.ReportURL)
}

func TestApplyPassedMidKeepsAssociation(t *testing.T) {
	db := newTestDB(t)
	sp := seedTeam(t, db, stage.Mid)

	res, err := apply(t, db, sp.Project.ID, stage.Mid, stage.ProgressSeen)
	require.NoError(t, err)
	assert.False(t, res.ReportCleared)
	assert.Empty(t, res.ProjectStatus)

	students := studentsByName(t, db, sp)
	assert.Equal(t, 200, students["Junior"].ProgressStatus)
	assert.Equal(t, 1200, students["Senior"].ProgressStatus)
	for _, st := range students {
		assert.True(t, st.IsAssociated)
	}

	var ps models.ProjectStage
	require.NoError(t, db.First(&ps, "id = ?", sp.Stage.ID).Error)
	require.NotNil(t, ps.ReportURL)

	var project models.Project
	require.NoError(t, db.First(&project, "id = ?", sp.Project.ID).Error)
	assert.Equal(t, models.ProjectOngoing, project.Status)
}

func TestApplyPassedFinalCompletesProject(t *testing.T) {
	db := newTestDB(t)
	sp := seedTeam(t, db, stage.Final)

	_, err := apply(t, db, sp.Project.ID, stage.Final, stage.AcceptedConditionally)
	require.NoError(t, err)

	students := studentsByName(t, db, sp)
	assert.Equal(t, 2300, students["Veteran"].ProgressStatus)
	for _, st := range students {
		assert.False(t, st.IsAssociated)
		assert.Nil(t, st.ProjectIDRef)
	}
	var project models.Project
	require.NoError(t, db.First(&project, "id = ?", sp.Project.ID).Error)
	assert.Equal(t, models.ProjectCompleted, project.Status)
}

func TestApplyAbsentFinalKeepsTeam(t *testing.T) {
	db := newTestDB(t)
	sp := seedTeam(t, db, stage.Final)

	res, err := apply(t, db, sp.Project.ID, stage.Final, stage.Absent)
	require.NoError(t, err)
	assert.True(t, res.ReportCleared)

	students := studentsByName(t, db, sp)
	assert.Equal(t, 301, students["Junior"].ProgressStatus)
	for _, st := range students {
		assert.True(t, st.IsAssociated)
	}
}

func TestApplyUnknownJudgementRollsBack(t *testing.T) {
	db := newTestDB(t)
	sp := seedTeam(t, db, stage.Mid)

	_, err := apply(t, db, sp.Project.ID, stage.Mid, stage.Rejected)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	students := studentsByName(t, db, sp)
	assert.Zero(t, students["Junior"].ProgressStatus)
}

func TestApplyMissingProject(t *testing.T) {
	db := newTestDB(t)
	_, err := apply(t, db, "00000000-0000-0000-0000-000000000000", stage.Mid, stage.ProgressSeen)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
