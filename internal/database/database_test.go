package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
	"github.com/zaqqye/defense_backend_v1/internal/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(SQLiteDSN(filepath.Join(t.TempDir(), "defense.db")))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(db))
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestRollbackLastDropsSchema(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RollbackLast(db))
	assert.False(t, db.Migrator().HasTable(&models.Evaluation{}))
}

func TestSeedDefense(t *testing.T) {
	db := newTestDB(t)

	seeded, err := SeedDefense(db, DefenseSeed{
		EventID:    "event-1",
		Type:       stage.Mid,
		Evaluators: []string{"Ada", "Brian"},
		CodeLength: 6,
		Rooms: []RoomSeed{{
			Name:       "R1",
			Evaluators: []int{0, 1},
			Projects: []ProjectSeed{
				{Title: "P1", Members: []StudentSeed{{FullName: "S One", BatchYear: 2024}}},
				{Title: "P2", Members: []StudentSeed{{FullName: "S Two", BatchYear: 2024}}, Evaluators: []int{1}},
			},
		}},
	})
	require.NoError(t, err)

	require.Len(t, seeded.Projects, 2)
	assert.Len(t, seeded.Projects[0].DefenseObject.Evaluators, 2)
	assert.Len(t, seeded.Projects[1].DefenseObject.Evaluators, 1)

	var entries int64
	require.NoError(t, db.Model(&models.DefenseEvaluator{}).Count(&entries).Error)
	assert.EqualValues(t, 3, entries)

	var student models.Student
	require.NoError(t, db.First(&student, "id = ?", seeded.Projects[0].Members[0].ID).Error)
	assert.True(t, student.IsAssociated)
	require.NotNil(t, student.ProjectIDRef)
	assert.Equal(t, seeded.Projects[0].Project.ID, *student.ProjectIDRef)

	var link models.EvaluatorDefense
	ev := seeded.Evaluators[0]
	require.NoError(t, db.First(&link, "evaluator_id_ref = ? AND defense_id_ref = ?", ev.ID, seeded.Defense.ID).Error)
	require.NotNil(t, link.AccessCode)
	assert.True(t, utils.CheckPassword(*link.AccessCode, seeded.AccessCodes[ev.ID]))

	var defense models.Defense
	require.NoError(t, db.First(&defense, "id = ?", seeded.Defense.ID).Error)
	assert.Equal(t, models.DefenseScheduled, defense.Status)
	assert.Equal(t, stage.Mid, defense.EvaluationType)
}

func TestAddProjectDefenseForRedefense(t *testing.T) {
	db := newTestDB(t)
	first, err := SeedDefense(db, DefenseSeed{
		EventID:    "event-1",
		Type:       stage.Final,
		Evaluators: []string{"Ada"},
		Rooms: []RoomSeed{{Name: "R1", Evaluators: []int{0}, Projects: []ProjectSeed{
			{Title: "P1", Members: []StudentSeed{{FullName: "S", BatchYear: 2022}}},
		}}},
	})
	require.NoError(t, err)

	second := models.Defense{EventID: "event-2", EvaluationType: stage.Final}
	require.NoError(t, db.Create(&second).Error)

	sp := first.Projects[0]
	pd, err := AddProjectDefense(db, sp.Stage, stage.Final, second.ID, []string{first.Evaluators[0].ID})
	require.NoError(t, err)
	assert.NotEqual(t, sp.DefenseObject.ID, pd.ID)

	_, err = AddProjectDefense(db, sp.Stage, stage.Final, second.ID, nil)
	assert.Error(t, err, "one defense-object per project, type and defense")
}

func TestSeedDemo(t *testing.T) {
	db := newTestDB(t)
	seeded, err := SeedDemo(db, 0)
	require.NoError(t, err)
	assert.Len(t, seeded.Rooms, 2)
	assert.Len(t, seeded.Projects, 3)
	assert.Empty(t, seeded.AccessCodes)
}
