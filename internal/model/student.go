package model

import (
	"strconv"
	"strings"
)

// Kind distinguishes real students from the synthetic class-average record.
type Kind int

const (
	// KindReal is a student read from the workbook.
	KindReal Kind = iota
	// KindSyntheticAverage is the fabricated record that carries class averages.
	KindSyntheticAverage
)

func (k Kind) String() string {
	switch k {
	case KindSyntheticAverage:
		return "synthetic_average"
	default:
		return "real"
	}
}

// Remark is a general remark about a copy. A remark is either a checkbox
// (IsBool, with Checked telling whether it applies) or free text.
type Remark struct {
	Label   string `json:"label"`
	IsBool  bool   `json:"is_bool"`
	Checked bool   `json:"checked,omitempty"`
	Text    string `json:"text,omitempty"`
}

// BoolRemark returns a checkbox remark.
func BoolRemark(label string, checked bool) Remark {
	return Remark{Label: label, IsBool: true, Checked: checked}
}

// TextRemark returns a free-text remark.
func TextRemark(label, text string) Remark {
	return Remark{Label: label, Text: text}
}

// Evaluation pairs a label with a qualitative level such as "Acquis".
type Evaluation struct {
	Label string `json:"label"`
	Level string `json:"level"`
}

// Student holds everything known about one student for one exam.
type Student struct {
	Kind      Kind
	Number    int
	Name      string
	FirstName string
	Absent    bool

	Grade   *float64
	Rank    int // 1-based, 0 when undefined
	ExAequo bool

	SchemedGrades map[string]float64
	Remarks       []Remark
	CopyRemarks   []Evaluation
	Skills        []Evaluation

	FeedbackForm string
}

// NewStudent creates a real student. The absent value comes straight from a
// spreadsheet cell and is coerced to a boolean.
func NewStudent(number int, name, firstName string, absent any) *Student {
	return &Student{
		Kind:          KindReal,
		Number:        number,
		Name:          name,
		FirstName:     firstName,
		Absent:        Truthy(absent),
		SchemedGrades: make(map[string]float64),
	}
}

// IsSynthetic reports whether s is the class-average record.
func (s *Student) IsSynthetic() bool {
	return s.Kind == KindSyntheticAverage
}

// SetGrade sets the total grade.
func (s *Student) SetGrade(grade float64) {
	s.Grade = &grade
}

// SetSchemedGrade sets the points obtained for one question.
func (s *Student) SetSchemedGrade(question string, points float64) {
	if s.SchemedGrades == nil {
		s.SchemedGrades = make(map[string]float64)
	}
	s.SchemedGrades[question] = points
}

// SetRemark appends a remark. Empty values mean "no data" and are skipped;
// an explicit false checkbox is kept.
func (s *Student) SetRemark(label string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case bool:
		s.Remarks = append(s.Remarks, BoolRemark(label, v))
	case string:
		if strings.TrimSpace(v) == "" {
			return
		}
		s.Remarks = append(s.Remarks, TextRemark(label, v))
	case Remark:
		s.Remarks = append(s.Remarks, v)
	}
}

// SetCopyRemark appends an evaluation of the copy itself.
func (s *Student) SetCopyRemark(label, level string) {
	s.CopyRemarks = append(s.CopyRemarks, Evaluation{Label: label, Level: level})
}

// SetSkill appends a skill evaluation.
func (s *Student) SetSkill(label, level string) {
	s.Skills = append(s.Skills, Evaluation{Label: label, Level: level})
}

// SetRank applies a placement computed over the class.
func (s *Student) SetRank(p Placement) {
	s.Rank = p.Rank
	s.ExAequo = p.ExAequo
}

// SetFeedbackForm stores the rendered standalone document.
func (s *Student) SetFeedbackForm(doc string) {
	s.FeedbackForm = doc
}

// Truthy interprets a spreadsheet cell as a boolean. Empty cells, zero and
// the usual negative words are false; anything else is true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "", "0", "false", "faux", "non", "no", "n":
			return false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
		return true
	default:
		return true
	}
}
