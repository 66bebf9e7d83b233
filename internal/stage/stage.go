// Package stage holds everything that varies by evaluation type: the
// judgement taxonomy, which judgements pass, the canonical record schema and
// the content comparator used to detect divergent resubmissions.
package stage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is one of the three fixed evaluation stages.
type Type string

const (
	Proposal Type = "proposal"
	Mid      Type = "mid"
	Final    Type = "final"
)

var Types = []Type{Proposal, Mid, Final}

func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Proposal, Mid, Final:
		return t, nil
	}
	return "", fmt.Errorf("unknown evaluation type %q", s)
}

// Judgement is the categorical outcome an evaluator assigns.
type Judgement string

const (
	Accepted                Judgement = "ACCEPTED"
	AcceptedConditionally   Judgement = "ACCEPTED_CONDITIONALLY"
	ReDefense               Judgement = "RE_DEFENSE"
	Absent                  Judgement = "ABSENT"
	Rejected                Judgement = "REJECTED"
	ProgressSatisfactory    Judgement = "PROGRESS_SATISFACTORY"
	ProgressSeen            Judgement = "PROGRESS_SEEN"
	ProgressNotSatisfactory Judgement = "PROGRESS_NOT_SATISFACTORY"
)

// Outcome is what a judgement means for the team.
type Outcome int

const (
	OutcomePassed Outcome = iota
	// OutcomeFailed covers re-defense, absent and unsatisfactory progress:
	// the team stays on the project and must defend again.
	OutcomeFailed
	// OutcomeRejected ends the project. Only reachable at the proposal stage.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeRejected:
		return "rejected"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// InvalidatesReport reports whether the stored report for the stage has to be
// resubmitted after this outcome.
func (o Outcome) InvalidatesReport() bool {
	return o == OutcomeFailed || o == OutcomeRejected
}

// Record is the canonical, stage-specific content of one evaluation.
// Individual holds a []ProposalMember, []MidMember or []FinalMember and
// Project the matching aggregate struct.
type Record struct {
	Type       Type
	Judgement  Judgement
	Individual any
	Project    any
}

func (r Record) IndividualJSON() ([]byte, error) { return json.Marshal(r.Individual) }
func (r Record) ProjectJSON() ([]byte, error)    { return json.Marshal(r.Project) }

// Stage is implemented once per evaluation type.
type Stage interface {
	Type() Type
	// Terminal reports whether passing this stage finishes the project.
	Terminal() bool
	Judgements() []Judgement
	Classify(Judgement) (Outcome, error)
	// Format validates raw input and produces the canonical record.
	Format(members []MemberInput, project ProjectInput) (Record, error)
	// Decode rebuilds a record from its persisted JSON columns.
	Decode(individual, project []byte) (Record, error)
	// Diff lists the fields on which two records of this stage structurally
	// disagree. An empty result means the records are compatible.
	Diff(a, b Record) []string
}

var (
	proposalStage Stage = newStage(stageDef[ProposalMember, ProposalProject]{
		typ: Proposal,
		outcomes: map[Judgement]Outcome{
			Accepted:              OutcomePassed,
			AcceptedConditionally: OutcomePassed,
			ReDefense:             OutcomeFailed,
			Absent:                OutcomeFailed,
			Rejected:              OutcomeRejected,
		},
		order:   []Judgement{Accepted, AcceptedConditionally, ReDefense, Absent, Rejected},
		member:  formatProposalMember,
		project: formatProposalProject,
	})
	midStage Stage = newStage(stageDef[MidMember, MidProject]{
		typ: Mid,
		outcomes: map[Judgement]Outcome{
			ProgressSatisfactory:    OutcomePassed,
			ProgressSeen:            OutcomePassed,
			ProgressNotSatisfactory: OutcomeFailed,
			ReDefense:               OutcomeFailed,
			Absent:                  OutcomeFailed,
		},
		order:   []Judgement{ProgressSatisfactory, ProgressSeen, ProgressNotSatisfactory, ReDefense, Absent},
		member:  formatMidMember,
		project: formatMidProject,
	})
	finalStage Stage = newStage(stageDef[FinalMember, FinalProject]{
		typ:      Final,
		terminal: true,
		outcomes: map[Judgement]Outcome{
			Accepted:              OutcomePassed,
			AcceptedConditionally: OutcomePassed,
			ReDefense:             OutcomeFailed,
			Absent:                OutcomeFailed,
		},
		order:       []Judgement{Accepted, AcceptedConditionally, ReDefense, Absent},
		member:      formatFinalMember,
		project:     formatFinalProject,
		diffProject: diffFinalProject,
	})
)

// For returns the stage implementation for t.
func For(t Type) (Stage, error) {
	switch t {
	case Proposal:
		return proposalStage, nil
	case Mid:
		return midStage, nil
	case Final:
		return finalStage, nil
	}
	return nil, fmt.Errorf("unknown evaluation type %q", t)
}

// MustFor is For for callers holding an already validated Type.
func MustFor(t Type) Stage {
	s, err := For(t)
	if err != nil {
		panic(err)
	}
	return s
}
