package render

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pavelanni/feedback/internal/model"
)

// Composites are the class-wide documents, pages in student order.
type Composites struct {
	// Present holds the named pages of the students who sat the exam.
	Present string
	// All holds the named pages of every student.
	All string
	// Anonymous holds every page with the identity left blank.
	Anonymous string
}

// Class renders every student twice, anonymously then named, stores the
// named standalone document on each student and assembles the composites.
func (r *Renderer) Class(students []*model.Student) (*Composites, error) {
	var present, all, anonymous []string
	for _, st := range students {
		page, err := r.Page(st, true)
		if err != nil {
			return nil, fmt.Errorf("anonymous page of %s %s: %w", st.Name, st.FirstName, err)
		}
		anonymous = append(anonymous, page)
	}

	for _, st := range students {
		page, err := r.Page(st, false)
		if err != nil {
			return nil, fmt.Errorf("page of %s %s: %w", st.Name, st.FirstName, err)
		}
		doc, err := r.wrap([]string{page}, false)
		if err != nil {
			return nil, err
		}
		st.SetFeedbackForm(doc)
		if !st.Absent {
			present = append(present, page)
		}
		all = append(all, page)
	}

	c := &Composites{}
	var err error
	if c.Present, err = r.wrap(present, true); err != nil {
		return nil, err
	}
	if c.All, err = r.wrap(all, true); err != nil {
		return nil, err
	}
	if c.Anonymous, err = r.wrap(anonymous, true); err != nil {
		return nil, err
	}
	return c, nil
}

// Ranked returns the present real students ordered by rank, ties kept in
// input order.
func Ranked(students []*model.Student) []*model.Student {
	var out []*model.Student
	for _, st := range students {
		if !st.Absent && !st.IsSynthetic() && st.Grade != nil {
			out = append(out, st)
		}
	}
	slices.SortStableFunc(out, func(a, b *model.Student) int { return cmp.Compare(a.Rank, b.Rank) })
	return out
}
