package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zaqqye/defense_backend_v1/internal/logutils"
	"github.com/zaqqye/defense_backend_v1/internal/models"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
	"github.com/zaqqye/defense_backend_v1/internal/utils"
)

type StudentSeed struct {
	FullName       string
	BatchYear      int
	ProgressStatus int
}

type ProjectSeed struct {
	Title   string
	Members []StudentSeed
	// Evaluators indexes DefenseSeed.Evaluators; nil means every evaluator of the room.
	Evaluators []int
	ReportURL  string
}

type RoomSeed struct {
	Name       string
	Evaluators []int
	Projects   []ProjectSeed
}

// DefenseSeed describes a defense with its rooms, projects and evaluator panel.
type DefenseSeed struct {
	EventID    string
	Type       stage.Type
	Evaluators []string
	Rooms      []RoomSeed
	// CodeLength > 0 issues an access code per evaluator.
	CodeLength int
}

type SeededProject struct {
	Project       models.Project
	Stage         models.ProjectStage
	DefenseObject models.ProjectDefense
	Members       []models.Student
	RoomID        string
}

type Seeded struct {
	Defense    models.Defense
	Rooms      []models.Room
	Projects   []SeededProject
	Evaluators []models.Evaluator
	// AccessCodes maps evaluator id to the plaintext code; only the hash is stored.
	AccessCodes map[string]string
}

func SeedDefense(db *gorm.DB, in DefenseSeed) (*Seeded, error) {
	out := &Seeded{AccessCodes: map[string]string{}}
	err := db.Transaction(func(tx *gorm.DB) error {
		out.Defense = models.Defense{EventID: in.EventID, EvaluationType: in.Type, Status: models.DefenseScheduled}
		if err := tx.Create(&out.Defense).Error; err != nil {
			return err
		}

		for i, name := range in.Evaluators {
			ev := models.Evaluator{FullName: name, Email: fmt.Sprintf("%s.%d.%s@evaluators.local", out.Defense.ID[:8], i, sanitize(name))}
			if err := tx.Create(&ev).Error; err != nil {
				return err
			}
			out.Evaluators = append(out.Evaluators, ev)

			link := models.EvaluatorDefense{EvaluatorIDRef: ev.ID, DefenseIDRef: out.Defense.ID}
			if in.CodeLength > 0 {
				code, hash, err := utils.NewAccessCode(in.CodeLength)
				if err != nil {
					return err
				}
				now := time.Now().UTC()
				link.AccessCode = &hash
				link.IssuedAt = &now
				out.AccessCodes[ev.ID] = code
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}

		for _, rs := range in.Rooms {
			room := models.Room{DefenseIDRef: out.Defense.ID, Name: rs.Name}
			if err := tx.Create(&room).Error; err != nil {
				return err
			}
			out.Rooms = append(out.Rooms, room)

			roomEvaluators := make([]string, 0, len(rs.Evaluators))
			for _, idx := range rs.Evaluators {
				evID := out.Evaluators[idx].ID
				roomEvaluators = append(roomEvaluators, evID)
				if err := tx.Create(&models.RoomEvaluator{RoomIDRef: room.ID, EvaluatorIDRef: evID}).Error; err != nil {
					return err
				}
			}

			for _, ps := range rs.Projects {
				sp, err := seedProject(tx, in, room, ps, out.Evaluators, roomEvaluators)
				if err != nil {
					return err
				}
				out.Projects = append(out.Projects, *sp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func seedProject(tx *gorm.DB, in DefenseSeed, room models.Room, ps ProjectSeed, all []models.Evaluator, roomEvaluators []string) (*SeededProject, error) {
	sp := &SeededProject{RoomID: room.ID}
	sp.Project = models.Project{Title: ps.Title, EventID: in.EventID, Status: models.ProjectOngoing}
	if err := tx.Create(&sp.Project).Error; err != nil {
		return nil, err
	}
	for _, ms := range ps.Members {
		projectID := sp.Project.ID
		st := models.Student{
			FullName:       ms.FullName,
			Email:          fmt.Sprintf("%s.%s@students.local", projectID[:8], sanitize(ms.FullName)),
			BatchYear:      ms.BatchYear,
			ProgressStatus: ms.ProgressStatus,
			IsAssociated:   true,
			ProjectIDRef:   &projectID,
		}
		if err := tx.Create(&st).Error; err != nil {
			return nil, err
		}
		if err := tx.Create(&models.ProjectMember{ProjectIDRef: projectID, StudentIDRef: st.ID}).Error; err != nil {
			return nil, err
		}
		sp.Members = append(sp.Members, st)
	}

	sp.Stage = models.ProjectStage{ProjectIDRef: sp.Project.ID, EvaluationType: in.Type}
	if ps.ReportURL != "" {
		url := ps.ReportURL
		sp.Stage.ReportURL = &url
	}
	if err := tx.Create(&sp.Stage).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&models.RoomProject{RoomIDRef: room.ID, ProjectIDRef: sp.Project.ID}).Error; err != nil {
		return nil, err
	}

	evaluators := roomEvaluators
	if ps.Evaluators != nil {
		evaluators = make([]string, 0, len(ps.Evaluators))
		for _, idx := range ps.Evaluators {
			evaluators = append(evaluators, all[idx].ID)
		}
	}
	pd, err := AddProjectDefense(tx, sp.Stage, in.Type, room.DefenseIDRef, evaluators)
	if err != nil {
		return nil, err
	}
	sp.DefenseObject = *pd
	return sp, nil
}

// AddProjectDefense schedules one more defense-object for a project stage,
// e.g. a re-defense in a later defense.
func AddProjectDefense(tx *gorm.DB, ps models.ProjectStage, typ stage.Type, defenseID string, evaluatorIDs []string) (*models.ProjectDefense, error) {
	pd := models.ProjectDefense{
		ProjectIDRef:      ps.ProjectIDRef,
		ProjectStageIDRef: ps.ID,
		EvaluationType:    typ,
		DefenseIDRef:      defenseID,
	}
	for _, id := range evaluatorIDs {
		pd.Evaluators = append(pd.Evaluators, models.DefenseEvaluator{EvaluatorIDRef: id})
	}
	if err := tx.Create(&pd).Error; err != nil {
		return nil, err
	}
	return &pd, nil
}

// SeedDemo inserts a small two-room proposal defense and logs the access codes.
func SeedDemo(db *gorm.DB, codeLength int) (*Seeded, error) {
	year := time.Now().Year()
	team := func(prefix string) []StudentSeed {
		return []StudentSeed{
			{FullName: prefix + " One", BatchYear: year - 3},
			{FullName: prefix + " Two", BatchYear: year - 3},
			{FullName: prefix + " Three", BatchYear: year - 3},
		}
	}
	seeded, err := SeedDefense(db, DefenseSeed{
		EventID:    fmt.Sprintf("demo-event-%d", year),
		Type:       stage.Proposal,
		Evaluators: []string{"Evaluator A", "Evaluator B", "Evaluator C"},
		CodeLength: codeLength,
		Rooms: []RoomSeed{
			{Name: "Room 101", Evaluators: []int{0, 1}, Projects: []ProjectSeed{
				{Title: "Campus Navigation", Members: team("Nav")},
				{Title: "Library Kiosk", Members: team("Kiosk")},
			}},
			{Name: "Room 102", Evaluators: []int{2}, Projects: []ProjectSeed{
				{Title: "Attendance Tracker", Members: team("Att")},
			}},
		},
	})
	if err != nil {
		return nil, err
	}
	for _, ev := range seeded.Evaluators {
		logutils.Log.WithFields(logutils.Fields{
			"evaluator_id": ev.ID,
			"defense_id":   seeded.Defense.ID,
		}).Infof("seeded %s with access code %s", ev.FullName, seeded.AccessCodes[ev.ID])
	}
	return seeded, nil
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		}
	}
	return string(out)
}
