package model

import "testing"

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{"", false},
		{"  ", false},
		{"0", false},
		{"0.0", false},
		{"FALSE", false},
		{"Faux", false},
		{"non", false},
		{"1", true},
		{"TRUE", true},
		{"x", true},
		{"ABS", true},
		{true, true},
		{false, false},
		{0, false},
		{2, true},
		{0.0, false},
	}
	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetRemarkSkipsEmpty(t *testing.T) {
	s := NewStudent(1, "DOE", "Jane", "")

	s.SetRemark("Soin", "")
	s.SetRemark("Soin", "   ")
	s.SetRemark("Soin", nil)
	if len(s.Remarks) != 0 {
		t.Fatalf("expected no remarks, got %d", len(s.Remarks))
	}

	s.SetRemark("Participation", false)
	s.SetRemark("Commentaire", "Bon travail")
	if len(s.Remarks) != 2 {
		t.Fatalf("expected 2 remarks, got %d", len(s.Remarks))
	}
	if !s.Remarks[0].IsBool || s.Remarks[0].Checked {
		t.Errorf("explicit false remark = %+v, want unchecked checkbox", s.Remarks[0])
	}
	if s.Remarks[1].IsBool || s.Remarks[1].Text != "Bon travail" {
		t.Errorf("text remark = %+v", s.Remarks[1])
	}
}

func TestSettersAppendInOrder(t *testing.T) {
	s := NewStudent(3, "DOE", "John", "1")
	if !s.Absent {
		t.Error("absent cell \"1\" should mark the student absent")
	}

	s.SetSkill("Calcul", "Acquis")
	s.SetSkill("Rédaction", "Non acquis")
	s.SetCopyRemark("Soin", "Bien")
	s.SetSchemedGrade("Q1", 1.5)
	s.SetGrade(12.5)
	s.SetRank(Placement{Rank: 2, ExAequo: true})

	if s.Skills[0].Label != "Calcul" || s.Skills[1].Label != "Rédaction" {
		t.Errorf("skills out of order: %+v", s.Skills)
	}
	if s.CopyRemarks[0] != (Evaluation{Label: "Soin", Level: "Bien"}) {
		t.Errorf("copy remark = %+v", s.CopyRemarks[0])
	}
	if s.SchemedGrades["Q1"] != 1.5 {
		t.Errorf("schemed grade = %v, want 1.5", s.SchemedGrades["Q1"])
	}
	if s.Grade == nil || *s.Grade != 12.5 {
		t.Errorf("grade = %v, want 12.5", s.Grade)
	}
	if s.Rank != 2 || !s.ExAequo {
		t.Errorf("rank = %d ex aequo = %v", s.Rank, s.ExAequo)
	}
	if s.IsSynthetic() {
		t.Error("NewStudent must build a real student")
	}
}

func TestResultOfHidesAbsentGrade(t *testing.T) {
	s := NewStudent(4, "DOE", "Jim", true)
	s.SetGrade(3)
	s.SetRank(Placement{Rank: 7})

	r := ResultOf(s)
	if r.Grade != nil || r.Rank != 0 {
		t.Errorf("absent result = %+v, want no grade and no rank", r)
	}
}

func TestGradingScheme(t *testing.T) {
	gs := GradingScheme{
		{ID: "Q1", Points: []float64{0, 0.5, 1, 2}},
		{ID: "Q2", Points: []float64{3}},
	}
	if got := gs.MaxPoints(); got[0] != 2 || got[1] != 3 {
		t.Errorf("MaxPoints() = %v, want [2 3]", got)
	}
	if !gs.Has("Q2") || gs.Has("Q3") {
		t.Error("Has() returned wrong membership")
	}
	if (Question{ID: "empty"}).MaxPoints() != 0 {
		t.Error("question without points should have max 0")
	}
}
