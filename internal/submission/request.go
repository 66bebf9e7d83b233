package submission

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// Request is one evaluator's submission for one project defense.
type Request struct {
	IndividualEvaluation []stage.MemberInput `json:"individualEvaluation"`
	ProjectEvaluation    *stage.ProjectInput `json:"projectEvaluation"`
	ProjectID            string              `json:"projectId"`
	EvaluatorID          string              `json:"evaluatorId"`
	DefenseID            string              `json:"defenseId"`
	EventID              string              `json:"eventId"`
	EvaluationType       string              `json:"evaluationType"`
	RoomID               string              `json:"roomId"`
}

// Validate checks the required fields and formats the canonical record.
func (r Request) Validate() (stage.Stage, stage.Record, error) {
	var problems []string
	if len(r.IndividualEvaluation) == 0 {
		problems = append(problems, "individualEvaluation must not be empty")
	}
	if r.ProjectEvaluation == nil {
		problems = append(problems, "projectEvaluation is required")
	}
	for _, f := range []struct {
		name, value string
	}{
		{"projectId", r.ProjectID},
		{"evaluatorId", r.EvaluatorID},
		{"defenseId", r.DefenseID},
		{"roomId", r.RoomID},
	} {
		switch {
		case strings.TrimSpace(f.value) == "":
			problems = append(problems, f.name+" is required")
		case uuid.Validate(f.value) != nil:
			problems = append(problems, f.name+" must be a uuid")
		}
	}
	if strings.TrimSpace(r.EventID) == "" {
		problems = append(problems, "eventId is required")
	}

	typ, err := stage.ParseType(r.EvaluationType)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return nil, stage.Record{}, apperror.Validation(strings.Join(problems, "; "))
	}

	st := stage.MustFor(typ)
	record, err := st.Format(r.IndividualEvaluation, *r.ProjectEvaluation)
	if err != nil {
		return nil, stage.Record{}, apperror.Validation(fmt.Sprintf("invalid %s evaluation: %v", typ, err))
	}
	return st, record, nil
}
