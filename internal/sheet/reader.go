package sheet

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/model"
)

// Layout tells the reader where things are in the workbook.
type Layout struct {
	Sheets config.SheetsConfig
	// Labels are the number, name and first-name columns, repeated on
	// every sheet and dropped everywhere but the class sheet.
	Labels       []string
	AbsenceLabel string
	GradeLabel   string
	// Scheme, when set, overrides the maxima read from the headers.
	Scheme model.GradingScheme
}

// LayoutFrom builds the reading layout from the run configuration.
func LayoutFrom(cfg *config.Config) Layout {
	return Layout{
		Sheets:       cfg.Sheets,
		Labels:       cfg.Input.Labels,
		AbsenceLabel: cfg.Input.AbsenceLabel,
		GradeLabel:   cfg.LabelGradeColumn,
		Scheme:       cfg.Scheme(),
	}
}

var headerRe = regexp.MustCompile(`^\s*(.+?)\s*\(\s*/\s*([0-9]+(?:[.,][0-9]+)?)\s*\)\s*$`)

// ParseQuestionHeader splits a grade column header such as "Q1 (/2)" into
// its question id and maximum.
func ParseQuestionHeader(header string) (string, float64, error) {
	m := headerRe.FindStringSubmatch(header)
	if m == nil {
		return "", 0, fmt.Errorf("%w: %q", ErrBadHeader, header)
	}
	max, err := parseNumber(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrBadHeader, header)
	}
	return m[1], max, nil
}

type sheets struct {
	class, grades, remarks, copy, skills *Table
}

// Read builds the grading scheme and one student per row. Sheets are
// aligned by row position, so every sheet must have the same row count.
func Read(wb *Workbook, layout Layout) (model.GradingScheme, []*model.Student, error) {
	var s sheets
	var err error
	for _, p := range []struct {
		dst  **Table
		name string
	}{
		{&s.class, layout.Sheets.Class},
		{&s.grades, layout.Sheets.Grades},
		{&s.remarks, layout.Sheets.Remarks},
		{&s.copy, layout.Sheets.Copy},
		{&s.skills, layout.Sheets.Skills},
	} {
		if *p.dst, err = wb.Table(p.name); err != nil {
			return nil, nil, err
		}
	}

	n := len(s.class.Rows)
	for _, t := range []*Table{s.grades, s.remarks, s.copy, s.skills} {
		if len(t.Rows) != n {
			return nil, nil, fmt.Errorf("%w: %q has %d rows, %q has %d",
				ErrRowMismatch, s.class.Name, n, t.Name, len(t.Rows))
		}
	}

	scheme, qcols, err := readScheme(s.grades, layout)
	if err != nil {
		return nil, nil, err
	}

	students, err := readClass(s.class, layout)
	if err != nil {
		return nil, nil, err
	}

	gradeCol := s.grades.Index(layout.GradeLabel)
	if gradeCol < 0 {
		return nil, nil, fmt.Errorf("%w: %q in sheet %q", ErrMissingColumn, layout.GradeLabel, s.grades.Name)
	}
	remarkLabels, remarkCols := s.remarks.Columns(layout.Labels...)
	copyLabels, copyCols := s.copy.Columns(layout.Labels...)
	skillLabels, skillCols := s.skills.Columns(layout.Labels...)

	for row, st := range students {
		if err := readGrades(st, s.grades, row, gradeCol, scheme, qcols); err != nil {
			return nil, nil, err
		}
		for i, col := range remarkCols {
			st.SetRemark(remarkLabels[i], remarkValue(s.remarks.Cell(row, col)))
		}
		for i, col := range copyCols {
			st.SetCopyRemark(copyLabels[i], s.copy.Cell(row, col))
		}
		for i, col := range skillCols {
			st.SetSkill(skillLabels[i], s.skills.Cell(row, col))
		}
	}

	slog.Info("read workbook", "students", len(students), "questions", len(scheme),
		"remarks", len(remarkLabels), "copy", len(copyLabels), "skills", len(skillLabels))
	return scheme, students, nil
}

func readScheme(grades *Table, layout Layout) (model.GradingScheme, []int, error) {
	skip := append(append([]string(nil), layout.Labels...), layout.GradeLabel)
	headers, cols := grades.Columns(skip...)

	var scheme model.GradingScheme
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		id, max, err := ParseQuestionHeader(h)
		if err != nil {
			return nil, nil, err
		}
		if seen[id] {
			return nil, nil, fmt.Errorf("%w: question %q appears twice", ErrBadHeader, id)
		}
		seen[id] = true

		q := model.Question{ID: id, Points: []float64{max}}
		if layout.Scheme != nil {
			configured, ok := find(layout.Scheme, id)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
			}
			if configured.MaxPoints() != max {
				return nil, nil, fmt.Errorf("%w: %q is out of %v in the sheet but %v in the configuration",
					ErrBadHeader, id, max, configured.MaxPoints())
			}
			q = configured
		}
		scheme = append(scheme, q)
	}

	for _, q := range layout.Scheme {
		if !seen[q.ID] {
			return nil, nil, fmt.Errorf("%w: question %q in sheet %q", ErrMissingColumn, q.ID, grades.Name)
		}
	}
	if len(scheme) == 0 {
		return nil, nil, fmt.Errorf("%w: no question columns in sheet %q", ErrMissingColumn, grades.Name)
	}
	return scheme, cols, nil
}

func find(gs model.GradingScheme, id string) (model.Question, bool) {
	for _, q := range gs {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}

func readClass(class *Table, layout Layout) ([]*model.Student, error) {
	labels := append(append([]string(nil), layout.Labels...), layout.AbsenceLabel)
	cols := make([]int, len(labels))
	for i, l := range labels {
		if cols[i] = class.Index(l); cols[i] < 0 {
			return nil, fmt.Errorf("%w: %q in sheet %q", ErrMissingColumn, l, class.Name)
		}
	}

	students := make([]*model.Student, 0, len(class.Rows))
	for row := range class.Rows {
		number := row + 1
		if raw := class.Cell(row, cols[0]); raw != "" {
			f, err := parseNumber(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: number %q on row %d of %q", ErrBadCell, raw, row+2, class.Name)
			}
			number = int(f)
		}
		students = append(students, model.NewStudent(
			number,
			class.Cell(row, cols[1]),
			class.Cell(row, cols[2]),
			class.Cell(row, cols[3]),
		))
	}
	return students, nil
}

func readGrades(st *model.Student, grades *Table, row, gradeCol int, scheme model.GradingScheme, qcols []int) error {
	raw := grades.Cell(row, gradeCol)
	switch {
	case raw != "":
		g, err := parseNumber(raw)
		if err != nil {
			return fmt.Errorf("%w: grade %q of %s %s", ErrBadCell, raw, st.Name, st.FirstName)
		}
		st.SetGrade(g)
	case !st.Absent:
		return fmt.Errorf("%w: missing grade for present student %s %s", ErrBadCell, st.Name, st.FirstName)
	}

	for i, q := range scheme {
		raw := grades.Cell(row, qcols[i])
		if raw == "" {
			if !st.Absent {
				return fmt.Errorf("%w: missing %s points for %s %s", ErrBadCell, q.ID, st.Name, st.FirstName)
			}
			st.SetSchemedGrade(q.ID, 0)
			continue
		}
		p, err := parseNumber(raw)
		if err != nil {
			return fmt.Errorf("%w: %s points %q of %s %s", ErrBadCell, q.ID, raw, st.Name, st.FirstName)
		}
		st.SetSchemedGrade(q.ID, p)
	}
	return nil
}

// remarkValue interprets a remark cell. Checkbox columns hold booleans,
// which spreadsheets may store as 0/1; anything else is free text.
func remarkValue(cell string) any {
	switch strings.ToUpper(cell) {
	case "":
		return nil
	case "TRUE", "VRAI", "1":
		return true
	case "FALSE", "FAUX", "0":
		return false
	}
	return cell
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
}
