package stats

import (
	"fmt"
	"slices"

	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/model"
)

// Code returns the ordinal code of a qualitative level. Unknown levels,
// including empty cells, count as 0.
func Code(codes []config.LevelCode, level string) int {
	for _, lc := range codes {
		if lc.Level == level {
			return lc.Code
		}
	}
	return 0
}

// Label maps a mean code back to a level. Bands are half-open (Min, Max]
// and tried in order; the fallback covers everything else.
func Label(s config.Scale, mean float64) string {
	for _, b := range s.Bands {
		if mean > b.Min && mean <= b.Max {
			return b.Label
		}
	}
	return s.Fallback
}

// Qualitative averages, per label, the level codes of the given students
// and maps each mean back to a label of scale. Labels follow the order of
// the first student; every student must list the same labels in the same
// order.
func Qualitative(
	students []*model.Student,
	evals func(*model.Student) []model.Evaluation,
	codes []config.LevelCode,
	scale config.Scale,
) ([]model.Evaluation, error) {
	if len(students) == 0 {
		return nil, ErrNoPresentStudents
	}

	ref := evals(students[0])
	sums := make([]float64, len(ref))
	for _, st := range students {
		es := evals(st)
		if !sameLabels(ref, es) {
			return nil, fmt.Errorf("%w: %s %s", ErrLabelMismatch, st.Name, st.FirstName)
		}
		for i, e := range es {
			sums[i] += float64(Code(codes, e.Level))
		}
	}

	out := make([]model.Evaluation, len(ref))
	n := float64(len(students))
	for i, e := range ref {
		out[i] = model.Evaluation{Label: e.Label, Level: Label(scale, sums[i]/n)}
	}
	return out, nil
}

func sameLabels(a, b []model.Evaluation) bool {
	return slices.EqualFunc(a, b, func(x, y model.Evaluation) bool { return x.Label == y.Label })
}

// Representative returns the first checkbox remark found while scanning
// students in order, skipping excluded labels, as a checked remark. It is
// a first match, not an aggregate.
func Representative(students []*model.Student, excluded []string) []model.Remark {
	for _, st := range students {
		for _, r := range st.Remarks {
			if r.IsBool && !slices.Contains(excluded, r.Label) {
				return []model.Remark{model.BoolRemark(r.Label, true)}
			}
		}
	}
	return nil
}
