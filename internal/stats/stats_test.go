package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/model"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

var testScheme = model.GradingScheme{
	{ID: "Q1", Points: []float64{0, 1, 2}},
	{ID: "Q2", Points: []float64{0, 10}},
}

func student(t *testing.T, name string, grade float64, absent bool, q1, q2 float64) *model.Student {
	t.Helper()
	abs := ""
	if absent {
		abs = "ABS"
	}
	st := model.NewStudent(0, name, "X", abs)
	if !absent {
		st.SetGrade(grade)
	}
	st.SetSchemedGrade("Q1", q1)
	st.SetSchemedGrade("Q2", q2)
	st.SetCopyRemark("Soin", "Bien")
	st.SetSkill("Calcul", "Acquis")
	return st
}

func testOptions() Options {
	return Options{
		Scales:          config.DefaultScales(),
		ExcludedRemarks: []string{"Poursuivez vos efforts !"},
	}
}

func TestComputeRanksPresentStudents(t *testing.T) {
	students := []*model.Student{
		student(t, "A", 12, false, 1, 8),
		student(t, "B", 15, false, 2, 9),
		student(t, "C", 15, false, 2, 10),
		student(t, "D", 9, true, 0, 0),
	}

	cs, err := Compute(students, testScheme, testOptions())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if cs.NPresent != 3 {
		t.Errorf("NPresent = %d, want 3", cs.NPresent)
	}
	if !near(cs.Mean, 14) {
		t.Errorf("Mean = %v, want 14", cs.Mean)
	}
	if !near(cs.StdDev, math.Sqrt(2)) {
		t.Errorf("StdDev = %v, want sqrt(2)", cs.StdDev)
	}
	if cs.MaxRank != 2 {
		t.Errorf("MaxRank = %d, want 2", cs.MaxRank)
	}
	if cs.TotalPoints != 12 {
		t.Errorf("TotalPoints = %v, want 12", cs.TotalPoints)
	}

	want := []model.Placement{
		{Rank: 2, ExAequo: false},
		{Rank: 1, ExAequo: true},
		{Rank: 1, ExAequo: true},
		{},
	}
	for i, p := range want {
		if cs.Placements[i] != p {
			t.Errorf("Placements[%d] = %+v, want %+v", i, cs.Placements[i], p)
		}
	}

	if len(cs.Questions) != 2 || cs.Questions[0].ID != "Q1" {
		t.Fatalf("Questions = %+v", cs.Questions)
	}
	if !near(cs.Questions[1].Mean, 9) {
		t.Errorf("Q2 mean = %v, want 9", cs.Questions[1].Mean)
	}
}

func TestRankingProperties(t *testing.T) {
	pools := [][]float64{
		{12, 15, 15},
		{10},
		{20, 18, 18, 18, 7, 7, 3},
		{5, 4, 3, 2, 1},
	}
	for _, pool := range pools {
		r := NewRanking(pool)
		best := pool[0]
		for _, g := range pool {
			best = math.Max(best, g)
		}
		if p := r.Place(best); p.Rank != 1 {
			t.Errorf("pool %v: best grade rank = %d, want 1", pool, p.Rank)
		}
		ranks := map[int]bool{}
		byGrade := map[float64]int{}
		for _, g := range pool {
			p := r.Place(g)
			if prev, ok := byGrade[g]; ok && prev != p.Rank {
				t.Errorf("pool %v: grade %v has ranks %d and %d", pool, g, prev, p.Rank)
			}
			byGrade[g] = p.Rank
			ranks[p.Rank] = true
		}
		if len(ranks) != r.MaxRank() {
			t.Errorf("pool %v: %d distinct ranks, MaxRank() = %d", pool, len(ranks), r.MaxRank())
		}
	}
}

func TestRankingOutsidePool(t *testing.T) {
	r := NewRanking([]float64{10, 12})
	if p := r.Place(11); p != (model.Placement{}) {
		t.Errorf("Place(11) = %+v, want zero", p)
	}
}

func TestErrorBounds(t *testing.T) {
	tests := []struct {
		mean, std, max float64
		errMin, errMax float64
	}{
		{1.8, 0.5, 2, 0.5, 0.2},
		{0.3, 0.5, 2, 0.3, 0.5},
		{1, 0.5, 2, 0.5, 0.5},
		{1.5, 0.5, 2, 0.5, 0.5},
		{0, 0, 2, 0, 0},
	}
	for _, tt := range tests {
		lo, hi := ErrorBounds(tt.mean, tt.std, tt.max)
		if !near(lo, tt.errMin) || !near(hi, tt.errMax) {
			t.Errorf("ErrorBounds(%v, %v, %v) = %v, %v, want %v, %v",
				tt.mean, tt.std, tt.max, lo, hi, tt.errMin, tt.errMax)
		}
	}
}

func TestLabelBands(t *testing.T) {
	sc := config.DefaultScales()
	tests := []struct {
		scale config.Scale
		mean  float64
		want  string
	}{
		{sc.Skills, 3, "Dépasse les exigences"},
		{sc.Skills, 2.5, "Acquis"},
		{sc.Skills, 2.51, "Dépasse les exigences"},
		{sc.Skills, 1.5, "En voie d'acquisition"},
		{sc.Skills, 0.5, "Non acquis"},
		{sc.Skills, 0, "Non acquis"},
		{sc.Copy, 2, "Bien"},
		{sc.Copy, 1.5, "Moyen"},
		{sc.Copy, 0.5, "Faible"},
		{sc.Copy, 3, "Faible"},
	}
	for _, tt := range tests {
		if got := Label(tt.scale, tt.mean); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.mean, got, tt.want)
		}
	}
}

func TestQualitativeIsIdempotent(t *testing.T) {
	mk := func(levels ...string) []*model.Student {
		var out []*model.Student
		for _, l := range levels {
			st := model.NewStudent(0, "N", "F", "")
			st.SetSkill("Calcul", l)
			st.SetSkill("Analyse", "Acquis")
			out = append(out, st)
		}
		return out
	}
	students := mk("Dépasse les exigences", "Acquis", "En voie d'acquisition", "")
	skills := func(s *model.Student) []model.Evaluation { return s.Skills }
	sc := config.DefaultScales()

	first, err := Qualitative(students, skills, sc.LevelCodes, sc.Skills)
	if err != nil {
		t.Fatalf("Qualitative: %v", err)
	}
	for range 3 {
		again, err := Qualitative(students, skills, sc.LevelCodes, sc.Skills)
		if err != nil {
			t.Fatalf("Qualitative: %v", err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("run differs: %+v vs %+v", again, first)
			}
		}
	}
	// (3+2+1+0)/4 = 1.5
	if first[0] != (model.Evaluation{Label: "Calcul", Level: "En voie d'acquisition"}) {
		t.Errorf("Calcul = %+v", first[0])
	}
	if first[1].Level != "Acquis" {
		t.Errorf("Analyse = %+v", first[1])
	}
}

func TestQualitativeLabelMismatch(t *testing.T) {
	a := model.NewStudent(1, "A", "A", "")
	a.SetSkill("Calcul", "Acquis")
	a.SetSkill("Analyse", "Acquis")
	b := model.NewStudent(2, "B", "B", "")
	b.SetSkill("Analyse", "Acquis")
	b.SetSkill("Calcul", "Acquis")

	sc := config.DefaultScales()
	_, err := Qualitative([]*model.Student{a, b}, func(s *model.Student) []model.Evaluation { return s.Skills }, sc.LevelCodes, sc.Skills)
	if !errors.Is(err, ErrLabelMismatch) {
		t.Fatalf("Qualitative() error = %v, want ErrLabelMismatch", err)
	}
}

func TestRepresentativeFirstMatch(t *testing.T) {
	a := model.NewStudent(1, "A", "A", "")
	a.SetRemark("Commentaire", "Bien")
	a.SetRemark("Poursuivez vos efforts !", true)
	a.SetRemark("Participation", true)
	a.SetRemark("Soin", true)
	b := model.NewStudent(2, "B", "B", "")
	b.SetRemark("Retard", true)

	got := Representative([]*model.Student{a, b}, []string{"Poursuivez vos efforts !"})
	if len(got) != 1 || got[0] != model.BoolRemark("Participation", true) {
		t.Errorf("Representative() = %+v, want [(Participation, true)]", got)
	}

	c := model.NewStudent(3, "C", "C", "")
	c.SetRemark("Participation", false)
	got = Representative([]*model.Student{c}, nil)
	if len(got) != 1 || !got[0].Checked {
		t.Errorf("Representative() = %+v, want a checked remark", got)
	}

	if got := Representative([]*model.Student{model.NewStudent(4, "D", "D", "")}, nil); got != nil {
		t.Errorf("Representative() = %+v, want nil", got)
	}
}

func TestComputeErrors(t *testing.T) {
	tests := []struct {
		name     string
		students func(t *testing.T) []*model.Student
		want     error
	}{
		{
			name: "everyone absent",
			students: func(t *testing.T) []*model.Student {
				return []*model.Student{student(t, "A", 0, true, 0, 0)}
			},
			want: ErrNoPresentStudents,
		},
		{
			name: "extra question",
			students: func(t *testing.T) []*model.Student {
				st := student(t, "A", 10, false, 1, 1)
				st.SetSchemedGrade("Q3", 1)
				return []*model.Student{st}
			},
			want: ErrSchemeMismatch,
		},
		{
			name: "missing grade",
			students: func(t *testing.T) []*model.Student {
				st := student(t, "A", 10, false, 1, 1)
				st.Grade = nil
				return []*model.Student{st}
			},
			want: ErrMissingGrade,
		},
		{
			name: "copy labels differ",
			students: func(t *testing.T) []*model.Student {
				a := student(t, "A", 10, false, 1, 1)
				b := student(t, "B", 11, false, 1, 1)
				b.SetCopyRemark("Rédaction", "Bien")
				return []*model.Student{a, b}
			},
			want: ErrLabelMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.students(t), testScheme, testOptions())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Compute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAverageStudent(t *testing.T) {
	a := student(t, "A", 10, false, 1, 6)
	a.SetRemark("Participation", true)
	students := []*model.Student{a, student(t, "B", 14, false, 2, 8)}
	cs, err := Compute(students, testScheme, testOptions())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	avg := AverageStudent(cs, "SMITHEE", "Alan")
	if !avg.IsSynthetic() || avg.Absent {
		t.Errorf("average student kind = %v, absent = %v", avg.Kind, avg.Absent)
	}
	if avg.Grade == nil || !near(*avg.Grade, 12) {
		t.Errorf("average grade = %v, want 12", avg.Grade)
	}
	if !near(avg.SchemedGrades["Q1"], 1.5) || !near(avg.SchemedGrades["Q2"], 7) {
		t.Errorf("average schemed grades = %v", avg.SchemedGrades)
	}
	if len(avg.Remarks) != 1 || avg.Remarks[0].Label != "Participation" {
		t.Errorf("average remarks = %+v", avg.Remarks)
	}
	if len(avg.Skills) != 1 || avg.Skills[0].Level != "Acquis" {
		t.Errorf("average skills = %+v", avg.Skills)
	}
	if len(avg.CopyRemarks) != 1 || avg.CopyRemarks[0].Level != "Bien" {
		t.Errorf("average copy remarks = %+v", avg.CopyRemarks)
	}
}
