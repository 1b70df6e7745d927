package model

import "time"

// RunExport is the top-level JSON structure for an exported run.
type RunExport struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Exam      ExamInfo        `json:"exam"`
	NStudents int             `json:"n_students"`
	Stats     ClassStatistics `json:"stats"`
	Results   []StudentResult `json:"results"`
}

// StudentResult holds one student's outcome for export and history.
type StudentResult struct {
	Number    int      `json:"number"`
	Name      string   `json:"name"`
	FirstName string   `json:"first_name"`
	Absent    bool     `json:"absent"`
	Grade     *float64 `json:"grade,omitempty"`
	Rank      int      `json:"rank,omitempty"`
	ExAequo   bool     `json:"ex_aequo,omitempty"`
}

// RunSummary is one line of the run history.
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ClassName string    `json:"class_name"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	NStudents int       `json:"n_students"`
	NPresent  int       `json:"n_present"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
}

// ResultOf converts a student to its exported form.
func ResultOf(s *Student) StudentResult {
	r := StudentResult{
		Number:    s.Number,
		Name:      s.Name,
		FirstName: s.FirstName,
		Absent:    s.Absent,
	}
	if !s.Absent {
		r.Grade = s.Grade
		r.Rank = s.Rank
		r.ExAequo = s.ExAequo
	}
	return r
}
