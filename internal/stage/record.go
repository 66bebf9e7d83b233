package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// MemberInput is one team member's raw scores as submitted. Fields that do
// not belong to the stage being evaluated are ignored.
type MemberInput struct {
	Member                    string   `json:"member"`
	Absent                    bool     `json:"absent"`
	PerformanceAtPresentation *float64 `json:"performanceAtPresentation"`
	ProjectTitleAndAbstract   *float64 `json:"projectTitleAndAbstract,omitempty"`
	Objective                 *float64 `json:"objective,omitempty"`
	TeamWork                  *float64 `json:"teamWork,omitempty"`
	Documentation             *float64 `json:"documentation,omitempty"`
	Plagiarism                *float64 `json:"plagiarism,omitempty"`
	WorkProgress              *float64 `json:"workProgress,omitempty"`
	TechnicalExposure         *float64 `json:"technicalExposure,omitempty"`
	WorkCompletion            *float64 `json:"workCompletion,omitempty"`
	ContributionInWork        *float64 `json:"contributionInWork,omitempty"`
	Reflection                *float64 `json:"reflection,omitempty"`
}

// ProjectInput is the raw aggregate evaluation as submitted.
type ProjectInput struct {
	Judgement                       Judgement `json:"judgement"`
	Feedback                        string    `json:"feedback"`
	FeedbackIfAccepted              string    `json:"feedbackIfAccepted,omitempty"`
	FeedbackIfConditionallyAccepted string    `json:"feedbackIfConditionallyAccepted,omitempty"`
	ProjectDurationWeeks            *int      `json:"projectDurationWeeks,omitempty"`
}

type MemberBase struct {
	Member string `json:"member"`
	Absent bool   `json:"absent"`
}

func (m MemberBase) base() MemberBase { return m }

type ProjectBase struct {
	Judgement Judgement `json:"judgement"`
	Feedback  string    `json:"feedback"`
}

func (p ProjectBase) base() ProjectBase { return p }

type ProposalMember struct {
	MemberBase
	PerformanceAtPresentation float64 `json:"performanceAtPresentation"`
	ProjectTitleAndAbstract   float64 `json:"projectTitleAndAbstract"`
	Objective                 float64 `json:"objective"`
	TeamWork                  float64 `json:"teamWork"`
	Documentation             float64 `json:"documentation"`
	Plagiarism                float64 `json:"plagiarism"`
}

type MidMember struct {
	MemberBase
	PerformanceAtPresentation float64 `json:"performanceAtPresentation"`
	WorkProgress              float64 `json:"workProgress"`
	TechnicalExposure         float64 `json:"technicalExposure"`
	TeamWork                  float64 `json:"teamWork"`
	Documentation             float64 `json:"documentation"`
}

type FinalMember struct {
	MemberBase
	PerformanceAtPresentation float64 `json:"performanceAtPresentation"`
	WorkCompletion            float64 `json:"workCompletion"`
	TechnicalExposure         float64 `json:"technicalExposure"`
	ContributionInWork        float64 `json:"contributionInWork"`
	Documentation             float64 `json:"documentation"`
	Reflection                float64 `json:"reflection"`
}

type ProposalProject struct {
	ProjectBase
	FeedbackIfAccepted              string `json:"feedbackIfAccepted"`
	FeedbackIfConditionallyAccepted string `json:"feedbackIfConditionallyAccepted"`
}

type MidProject struct {
	ProjectBase
}

type FinalProject struct {
	ProjectBase
	ProjectDurationWeeks int `json:"projectDurationWeeks"`
}

type memberRecord interface {
	base() MemberBase
}

type projectRecord interface {
	base() ProjectBase
}

// scorer collects per-field errors while zeroing everything for absent members.
type scorer struct {
	member string
	absent bool
	errs   []error
}

func (s *scorer) score(field string, v *float64, required bool) float64 {
	if s.absent {
		return 0
	}
	if v == nil {
		if required {
			s.errs = append(s.errs, fmt.Errorf("member %s: %s is required", s.member, field))
		}
		return 0
	}
	if *v < 0 {
		s.errs = append(s.errs, fmt.Errorf("member %s: %s must not be negative", s.member, field))
		return 0
	}
	return *v
}

func (s *scorer) err() error { return errors.Join(s.errs...) }

func formatProposalMember(in MemberInput) (ProposalMember, error) {
	s := &scorer{member: in.Member, absent: in.Absent}
	m := ProposalMember{
		MemberBase:                MemberBase{Member: in.Member, Absent: in.Absent},
		PerformanceAtPresentation: s.score("performanceAtPresentation", in.PerformanceAtPresentation, true),
		ProjectTitleAndAbstract:   s.score("projectTitleAndAbstract", in.ProjectTitleAndAbstract, false),
		Objective:                 s.score("objective", in.Objective, false),
		TeamWork:                  s.score("teamWork", in.TeamWork, false),
		Documentation:             s.score("documentation", in.Documentation, false),
		Plagiarism:                s.score("plagiarism", in.Plagiarism, false),
	}
	return m, s.err()
}

func formatMidMember(in MemberInput) (MidMember, error) {
	s := &scorer{member: in.Member, absent: in.Absent}
	m := MidMember{
		MemberBase:                MemberBase{Member: in.Member, Absent: in.Absent},
		PerformanceAtPresentation: s.score("performanceAtPresentation", in.PerformanceAtPresentation, true),
		WorkProgress:              s.score("workProgress", in.WorkProgress, false),
		TechnicalExposure:         s.score("technicalExposure", in.TechnicalExposure, false),
		TeamWork:                  s.score("teamWork", in.TeamWork, false),
		Documentation:             s.score("documentation", in.Documentation, false),
	}
	return m, s.err()
}

func formatFinalMember(in MemberInput) (FinalMember, error) {
	s := &scorer{member: in.Member, absent: in.Absent}
	m := FinalMember{
		MemberBase:                MemberBase{Member: in.Member, Absent: in.Absent},
		PerformanceAtPresentation: s.score("performanceAtPresentation", in.PerformanceAtPresentation, true),
		WorkCompletion:            s.score("workCompletion", in.WorkCompletion, false),
		TechnicalExposure:         s.score("technicalExposure", in.TechnicalExposure, false),
		ContributionInWork:        s.score("contributionInWork", in.ContributionInWork, false),
		Documentation:             s.score("documentation", in.Documentation, false),
		Reflection:                s.score("reflection", in.Reflection, false),
	}
	return m, s.err()
}

func projectBase(in ProjectInput) ProjectBase {
	return ProjectBase{Judgement: in.Judgement, Feedback: strings.TrimSpace(in.Feedback)}
}

func formatProposalProject(in ProjectInput) (ProposalProject, error) {
	return ProposalProject{
		ProjectBase:                     projectBase(in),
		FeedbackIfAccepted:              strings.TrimSpace(in.FeedbackIfAccepted),
		FeedbackIfConditionallyAccepted: strings.TrimSpace(in.FeedbackIfConditionallyAccepted),
	}, nil
}

func formatMidProject(in ProjectInput) (MidProject, error) {
	return MidProject{ProjectBase: projectBase(in)}, nil
}

func formatFinalProject(in ProjectInput) (FinalProject, error) {
	p := FinalProject{ProjectBase: projectBase(in)}
	if in.ProjectDurationWeeks != nil {
		if *in.ProjectDurationWeeks < 0 {
			return p, errors.New("projectDurationWeeks must not be negative")
		}
		p.ProjectDurationWeeks = *in.ProjectDurationWeeks
	}
	return p, nil
}

func diffFinalProject(a, b FinalProject) []string {
	if a.ProjectDurationWeeks != b.ProjectDurationWeeks {
		return []string{"projectEvaluation.projectDurationWeeks"}
	}
	return nil
}

type stageDef[M memberRecord, P projectRecord] struct {
	typ         Type
	terminal    bool
	outcomes    map[Judgement]Outcome
	order       []Judgement
	member      func(MemberInput) (M, error)
	project     func(ProjectInput) (P, error)
	diffProject func(a, b P) []string
}

type genericStage[M memberRecord, P projectRecord] struct {
	def stageDef[M, P]
}

func newStage[M memberRecord, P projectRecord](def stageDef[M, P]) *genericStage[M, P] {
	return &genericStage[M, P]{def: def}
}

func (s *genericStage[M, P]) Type() Type              { return s.def.typ }
func (s *genericStage[M, P]) Terminal() bool          { return s.def.terminal }
func (s *genericStage[M, P]) Judgements() []Judgement { return slices.Clone(s.def.order) }

func (s *genericStage[M, P]) Classify(j Judgement) (Outcome, error) {
	o, ok := s.def.outcomes[j]
	if !ok {
		valid := lo.Map(s.def.order, func(v Judgement, _ int) string { return string(v) })
		return 0, fmt.Errorf("judgement %q is not valid for %s evaluation (expected one of %s)",
			j, s.def.typ, strings.Join(valid, ", "))
	}
	return o, nil
}

func (s *genericStage[M, P]) Format(members []MemberInput, project ProjectInput) (Record, error) {
	if len(members) == 0 {
		return Record{}, errors.New("individualEvaluation must not be empty")
	}
	if _, err := s.Classify(project.Judgement); err != nil {
		return Record{}, err
	}

	seen := make(map[string]struct{}, len(members))
	out := make([]M, 0, len(members))
	var errs []error
	for i, in := range members {
		in.Member = strings.TrimSpace(in.Member)
		if in.Member == "" {
			errs = append(errs, fmt.Errorf("individualEvaluation[%d].member is required", i))
			continue
		}
		if _, dup := seen[in.Member]; dup {
			errs = append(errs, fmt.Errorf("member %s is evaluated more than once", in.Member))
			continue
		}
		seen[in.Member] = struct{}{}
		m, err := s.def.member(in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	p, err := s.def.project(project)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Record{}, err
	}
	return Record{Type: s.def.typ, Judgement: project.Judgement, Individual: out, Project: p}, nil
}

func (s *genericStage[M, P]) Decode(individual, project []byte) (Record, error) {
	var members []M
	if err := json.Unmarshal(individual, &members); err != nil {
		return Record{}, fmt.Errorf("decode %s individual evaluation: %w", s.def.typ, err)
	}
	var p P
	if err := json.Unmarshal(project, &p); err != nil {
		return Record{}, fmt.Errorf("decode %s project evaluation: %w", s.def.typ, err)
	}
	return Record{Type: s.def.typ, Judgement: p.base().Judgement, Individual: members, Project: p}, nil
}

// Diff compares the structure of two records: who was evaluated, who was
// absent and the aggregate verdict. Individual scores are each evaluator's
// own and are allowed to differ.
func (s *genericStage[M, P]) Diff(a, b Record) []string {
	if a.Type != b.Type {
		return []string{"evaluationType"}
	}
	am, aok := a.Individual.([]M)
	bm, bok := b.Individual.([]M)
	ap, apok := a.Project.(P)
	bp, bpok := b.Project.(P)
	if !aok || !bok || !apok || !bpok {
		return []string{"schema"}
	}

	var fields []string
	if ap.base().Judgement != bp.base().Judgement {
		fields = append(fields, "projectEvaluation.judgement")
	}
	if s.def.diffProject != nil {
		fields = append(fields, s.def.diffProject(ap, bp)...)
	}
	fields = append(fields, diffMembers(am, bm)...)
	return fields
}

func diffMembers[M memberRecord](a, b []M) []string {
	absentOf := func(ms []M) map[string]bool {
		return lo.SliceToMap(ms, func(m M) (string, bool) {
			return m.base().Member, m.base().Absent
		})
	}
	am, bm := absentOf(a), absentOf(b)

	left, right := lo.Difference(lo.Keys(am), lo.Keys(bm))
	if len(left) > 0 || len(right) > 0 {
		return []string{"individualEvaluation.members"}
	}
	var fields []string
	for member, absent := range am {
		if bm[member] != absent {
			fields = append(fields, fmt.Sprintf("individualEvaluation[%s].absent", member))
		}
	}
	slices.Sort(fields)
	return fields
}
