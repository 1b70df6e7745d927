// Package render turns students and class statistics into LaTeX feedback
// documents.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/i18n"
	"github.com/pavelanni/feedback/internal/model"
)

//go:embed templates/*.tex.tmpl
var templateFS embed.FS

// Options tunes the documents.
type Options struct {
	// MaxRankShown hides the rank line of students ranked at or below it.
	MaxRankShown int
	Scales       config.ScalesConfig
}

// Renderer renders the pages of one exam. It only reads the students and
// the statistics it is given.
type Renderer struct {
	tmpl   *template.Template
	tr     *i18n.Translator
	exam   model.ExamInfo
	scheme model.GradingScheme
	stats  *model.ClassStatistics
	opts   Options
}

// New parses the embedded templates.
func New(tr *i18n.Translator, exam model.ExamInfo, scheme model.GradingScheme, cs *model.ClassStatistics, opts Options) (*Renderer, error) {
	funcs := template.FuncMap{
		"t":  tr.T,
		"tp": tr.Tp,
	}
	tmpl, err := template.New("tex").Delims("<<", ">>").Funcs(funcs).ParseFS(templateFS, "templates/*.tex.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, tr: tr, exam: exam, scheme: scheme, stats: cs, opts: opts}, nil
}

// Preamble returns the LaTeX preamble shared by every document.
func (r *Renderer) Preamble() (string, error) {
	return r.execute("preamble.tex.tmpl", nil)
}

// Page renders one student page without preamble or document environment.
// Anonymous pages leave the identity blank.
func (r *Renderer) Page(st *model.Student, anonymous bool) (string, error) {
	return r.execute("page", r.view(st, anonymous))
}

// Document renders a standalone document for one student.
func (r *Renderer) Document(st *model.Student, anonymous bool) (string, error) {
	page, err := r.Page(st, anonymous)
	if err != nil {
		return "", err
	}
	return r.wrap([]string{page}, false)
}

func (r *Renderer) wrap(pages []string, newpage bool) (string, error) {
	pre, err := r.Preamble()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(pre)
	b.WriteString("\n\\begin{document}\n\n")
	for _, p := range pages {
		b.WriteString(p)
		if newpage {
			b.WriteString("\\newpage\n")
		}
	}
	b.WriteString("\n\\end{document}")
	return b.String(), nil
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

type item struct {
	Label string
	Icon  string
}

type cell struct {
	Label string
	Icon  string
	Width string
	Sep   string
}

type pageView struct {
	Exam      model.ExamInfo
	Name      string
	FirstName string
	NPresent  int
	Absent    bool
	Grade     string
	Total     string
	ShowRank  bool
	Rank      int
	ExAequo   bool
	ClassMean string
	ClassStd  string
	PlotFile  string
	Remarks   []string
	Copy      []item
	Skills    []cell
}

func (r *Renderer) view(st *model.Student, anonymous bool) pageView {
	v := pageView{
		Exam: model.ExamInfo{
			Field:     Escape(r.exam.Field),
			ClassName: Escape(r.exam.ClassName),
			Date:      Escape(r.exam.Date),
			Title:     Escape(r.exam.Title),
		},
		NPresent:  r.stats.NPresent,
		Absent:    st.Absent && !st.IsSynthetic(),
		Total:     fmt.Sprintf("%.0f", r.scheme.Total()),
		ClassMean: fmt.Sprintf("%.1f", r.stats.Mean),
		ClassStd:  fmt.Sprintf("%.1f", r.stats.StdDev),
		PlotFile:  PlotBase(st) + ".pdf",
	}
	if !anonymous {
		v.Name = Escape(st.Name)
		v.FirstName = Escape(st.FirstName)
	}
	if st.Grade != nil {
		v.Grade = FormatGrade(*st.Grade)
	}
	if !st.IsSynthetic() && st.Rank > 0 && st.Rank < r.opts.MaxRankShown {
		v.ShowRank = true
		v.Rank = st.Rank
		v.ExAequo = st.ExAequo
	}

	for _, rm := range st.Remarks {
		switch {
		case rm.IsBool && rm.Checked:
			v.Remarks = append(v.Remarks, Escape(rm.Label))
		case !rm.IsBool:
			v.Remarks = append(v.Remarks, Escape(rm.Text))
		}
	}
	for _, e := range st.CopyRemarks {
		v.Copy = append(v.Copy, item{Label: Escape(e.Label), Icon: r.icon(e.Level)})
	}
	v.Skills = r.skillGrid(st.Skills)
	return v
}

// icon renders the coloured symbol of a level.
func (r *Renderer) icon(level string) string {
	icons := r.opts.Scales.Icons
	if len(icons) == 0 {
		return ""
	}
	code := 0
	for _, lc := range r.opts.Scales.LevelCodes {
		if lc.Level == level {
			code = lc.Code
			break
		}
	}
	if code < 0 || code >= len(icons) {
		code = 0
	}
	ic := icons[code]
	return `\xspace\color{` + ic.Color + `}` + ic.Symbol + `\color{black}`
}

func (r *Renderer) skillGrid(skills []model.Evaluation) []cell {
	n := len(skills)
	if n == 0 {
		return nil
	}
	ncols := SkillColumns(n)
	width := strconv.FormatFloat(1/float64(ncols)-0.1, 'f', -1, 64)

	cells := make([]cell, n)
	for i, s := range skills {
		c := cell{Label: Escape(s.Label), Icon: r.icon(s.Level), Width: width}
		last := i+1 == n
		switch {
		case i != 0 && (i+1)%ncols == 0 && !last:
			c.Sep = "\\bigskip\n\n"
		case last:
			c.Sep = "\n"
		default:
			c.Sep = "\\hfill\n"
		}
		cells[i] = c
	}
	return cells
}

// SkillColumns returns the number of columns of the skills grid: one row
// for fewer than four skills, three columns from four to nine, one row
// again above.
func SkillColumns(n int) int {
	if n >= 4 && n <= 9 {
		return 3
	}
	return n
}

// FormatGrade prints a grade with at most two decimals and no trailing
// zeros: 15.00 is "15", 15.50 is "15.5".
func FormatGrade(g float64) string {
	s := fmt.Sprintf("%.2f", g)
	s = strings.TrimSuffix(s, "0")
	s = strings.TrimSuffix(s, "0")
	return strings.TrimSuffix(s, ".")
}

// PlotBase is the file name, without extension, of a student's grade plot.
func PlotBase(st *model.Student) string {
	return strings.ReplaceAll(st.Name+"_"+st.FirstName+"_GradeStats", " ", "_")
}

// Escape protects the characters that silently break a LaTeX document
// when they come from a spreadsheet cell. Math and commands written on
// purpose ($, \, braces) are left alone, as are already escaped
// characters.
func Escape(s string) string {
	if !strings.ContainsAny(s, "&%#") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == '&' || c == '%' || c == '#') && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}
