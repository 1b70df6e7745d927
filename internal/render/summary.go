package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/pavelanni/feedback/internal/i18n"
	"github.com/pavelanni/feedback/internal/model"
	"github.com/pavelanni/feedback/internal/views"
)

// Summary is the HTML overview of the class: statistics per question,
// class evaluations and the ranking of present students. comment, when
// set, is printed under the title.
func (r *Renderer) Summary(students []*model.Student, comment string) templ.Component {
	page := views.SummaryPage(r.summary(students, comment))
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return page.Render(i18n.WithTranslator(ctx, r.tr), w)
	})
}

func (r *Renderer) summary(students []*model.Student, comment string) views.Summary {
	s := views.Summary{
		Title:    r.tr.Td("SummaryTitle", map[string]any{"Class": r.exam.ClassName, "Title": r.exam.Title}),
		Subtitle: r.exam.Field + " · " + r.exam.Date,
		Comment:  comment,
		NPresent: r.stats.NPresent,
		Mean:     fmt.Sprintf("%.2f / %s", r.stats.Mean, FormatGrade(r.scheme.Total())),
		StdDev:   fmt.Sprintf("%.2f", r.stats.StdDev),
	}
	for _, q := range r.stats.Questions {
		s.Questions = append(s.Questions, views.QuestionRow{
			ID:        q.ID,
			MaxPoints: FormatGrade(q.MaxPoints),
			Mean:      fmt.Sprintf("%.2f", q.Mean),
			StdDev:    fmt.Sprintf("%.2f", q.StdDev),
			ErrMin:    fmt.Sprintf("%.2f", q.ErrMin),
			ErrMax:    fmt.Sprintf("%.2f", q.ErrMax),
		})
	}
	s.Evaluations = append(append(s.Evaluations, r.stats.CopyRemarks...), r.stats.Skills...)
	for _, st := range Ranked(students) {
		rank := fmt.Sprint(st.Rank)
		if st.ExAequo {
			rank += " (" + r.tr.T("ExAequo") + ")"
		}
		s.Ranking = append(s.Ranking, views.RankRow{
			Rank:      rank,
			Name:      st.Name,
			FirstName: st.FirstName,
			Grade:     FormatGrade(*st.Grade),
		})
	}
	return s
}

// SummaryHTML renders the summary to a string.
func (r *Renderer) SummaryHTML(ctx context.Context, students []*model.Student, comment string) (string, error) {
	var buf bytes.Buffer
	if err := r.Summary(students, comment).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return buf.String(), nil
}
