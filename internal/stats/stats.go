// Package stats computes the class statistics of an exam. Everything here
// is a pure function of the students and the grading scheme.
package stats

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/model"
)

var (
	ErrNoPresentStudents = errors.New("no present students")
	ErrSchemeMismatch    = errors.New("schemed grades do not match the grading scheme")
	ErrLabelMismatch     = errors.New("evaluation labels differ between students")
	ErrMissingGrade      = errors.New("present student without a grade")
)

// Options carries the lookup tables used by the qualitative aggregation.
type Options struct {
	Scales config.ScalesConfig
	// ExcludedRemarks are checkbox labels never chosen as the class
	// representative.
	ExcludedRemarks []string
}

// Present returns the students who sat the exam, in input order.
func Present(students []*model.Student) []*model.Student {
	out := make([]*model.Student, 0, len(students))
	for _, st := range students {
		if !st.Absent {
			out = append(out, st)
		}
	}
	return out
}

// Compute derives the class statistics. Absent students are ignored
// everywhere except when looking for the representative remark.
func Compute(students []*model.Student, scheme model.GradingScheme, opts Options) (*model.ClassStatistics, error) {
	present := Present(students)
	if len(present) == 0 {
		return nil, ErrNoPresentStudents
	}

	grades := make([]float64, len(present))
	for i, st := range present {
		if st.Grade == nil {
			return nil, fmt.Errorf("%w: %s %s", ErrMissingGrade, st.Name, st.FirstName)
		}
		if err := checkScheme(st, scheme); err != nil {
			return nil, err
		}
		grades[i] = *st.Grade
	}

	cs := &model.ClassStatistics{
		NPresent:    len(present),
		TotalPoints: scheme.Total(),
	}
	cs.Mean, cs.StdDev = stat.PopMeanStdDev(grades, nil)

	points := make([]float64, len(present))
	for _, q := range scheme {
		for i, st := range present {
			points[i] = st.SchemedGrades[q.ID]
		}
		cs.Questions = append(cs.Questions, questionStats(q, points))
	}

	ranking := NewRanking(grades)
	cs.MaxRank = ranking.MaxRank()
	cs.Placements = make([]model.Placement, len(students))
	for i, st := range students {
		if !st.Absent {
			cs.Placements[i] = ranking.Place(*st.Grade)
		}
	}

	var err error
	codes := opts.Scales.LevelCodes
	cs.CopyRemarks, err = Qualitative(present, func(s *model.Student) []model.Evaluation { return s.CopyRemarks }, codes, opts.Scales.Copy)
	if err != nil {
		return nil, fmt.Errorf("copy evaluations: %w", err)
	}
	cs.Skills, err = Qualitative(present, func(s *model.Student) []model.Evaluation { return s.Skills }, codes, opts.Scales.Skills)
	if err != nil {
		return nil, fmt.Errorf("skills: %w", err)
	}
	cs.Remarks = Representative(students, opts.ExcludedRemarks)
	return cs, nil
}

func checkScheme(st *model.Student, scheme model.GradingScheme) error {
	if len(st.SchemedGrades) != len(scheme) {
		return fmt.Errorf("%w: %s %s has %d questions, scheme has %d",
			ErrSchemeMismatch, st.Name, st.FirstName, len(st.SchemedGrades), len(scheme))
	}
	for _, q := range scheme {
		if _, ok := st.SchemedGrades[q.ID]; !ok {
			return fmt.Errorf("%w: %s %s has no %q", ErrSchemeMismatch, st.Name, st.FirstName, q.ID)
		}
	}
	return nil
}

func questionStats(q model.Question, points []float64) model.QuestionStats {
	qs := model.QuestionStats{ID: q.ID, MaxPoints: q.MaxPoints()}
	qs.Mean, qs.StdDev = stat.PopMeanStdDev(points, nil)
	qs.ErrMin, qs.ErrMax = ErrorBounds(qs.Mean, qs.StdDev, qs.MaxPoints)
	return qs
}

// ErrorBounds returns the lengths of an error bar of half-width std around
// mean, clipped so that it stays within [0, max].
func ErrorBounds(mean, std, max float64) (errMin, errMax float64) {
	errMin, errMax = std, std
	if mean-std < 0 {
		errMin = mean
	}
	if mean+std > max {
		errMax = max - mean
	}
	return errMin, errMax
}

// AverageStudent builds the synthetic record carrying the class averages.
// It has no rank and is never absent.
func AverageStudent(cs *model.ClassStatistics, name, firstName string) *model.Student {
	st := &model.Student{
		Kind:          model.KindSyntheticAverage,
		Name:          name,
		FirstName:     firstName,
		SchemedGrades: cs.QuestionMeans(),
		Remarks:       append([]model.Remark(nil), cs.Remarks...),
		CopyRemarks:   append([]model.Evaluation(nil), cs.CopyRemarks...),
		Skills:        append([]model.Evaluation(nil), cs.Skills...),
	}
	st.SetGrade(cs.Mean)
	return st
}
