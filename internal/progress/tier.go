// Package progress turns a defense judgement into student progress-status
// transitions.
package progress

import (
	"fmt"
	"time"

	"github.com/zaqqye/defense_backend_v1/internal/stage"
)

// Tier is a student's cohort tier. Each tier owns a disjoint block of
// progress-status codes.
type Tier int

const (
	Tier0 Tier = iota
	Tier1
	Tier2
)

const tierWidth = 1000

func (t Tier) String() string { return fmt.Sprintf("tier%d", int(t)) }

// Range is the half-open code interval [lo, hi) owned by the tier.
func (t Tier) Range() (lo, hi int) {
	lo = int(t) * tierWidth
	return lo, lo + tierWidth
}

func (t Tier) Contains(code int) bool {
	lo, hi := t.Range()
	return code >= lo && code < hi
}

// TierOf returns the tier whose range holds code.
func TierOf(code int) (Tier, bool) {
	for _, t := range []Tier{Tier0, Tier1, Tier2} {
		if t.Contains(code) {
			return t, true
		}
	}
	return 0, false
}

// Classifier resolves a batch year to a tier relative to the current year.
type Classifier struct {
	Now func() time.Time
}

func (c Classifier) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Tier maps up to two years since enrollment to Tier0, the third year to
// Tier1 and anything older to Tier2.
func (c Classifier) Tier(batchYear int) Tier {
	diff := c.now().Year() - batchYear
	switch {
	case diff <= 2:
		return Tier0
	case diff == 3:
		return Tier1
	default:
		return Tier2
	}
}

type statusKey struct {
	tier    Tier
	typ     stage.Type
	outcome stage.Outcome
}

// offsets within a tier block.
var stageOffsets = map[stage.Type]map[stage.Outcome]int{
	stage.Proposal: {stage.OutcomePassed: 100, stage.OutcomeFailed: 101, stage.OutcomeRejected: 102},
	stage.Mid:      {stage.OutcomePassed: 200, stage.OutcomeFailed: 201},
	stage.Final:    {stage.OutcomePassed: 300, stage.OutcomeFailed: 301},
}

var statusTable = buildStatusTable()

func buildStatusTable() map[statusKey]int {
	table := make(map[statusKey]int)
	for _, tier := range []Tier{Tier0, Tier1, Tier2} {
		lo, _ := tier.Range()
		for typ, outcomes := range stageOffsets {
			for outcome, offset := range outcomes {
				table[statusKey{tier, typ, outcome}] = lo + offset
			}
		}
	}
	return table
}

// StatusCode looks up the progress-status code for a tier, stage and
// outcome. Combinations the stage cannot produce are an error.
func StatusCode(tier Tier, typ stage.Type, outcome stage.Outcome) (int, error) {
	code, ok := statusTable[statusKey{tier, typ, outcome}]
	if !ok {
		return 0, fmt.Errorf("no progress status for %s %s %s", tier, typ, outcome)
	}
	return code, nil
}
