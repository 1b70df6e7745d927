package model

// Question is one entry of a grading scheme. Points lists the attainable
// values in increasing order; the last one is the maximum.
type Question struct {
	ID     string    `json:"id"`
	Points []float64 `json:"points"`
}

// MaxPoints returns the maximum number of points for the question.
func (q Question) MaxPoints() float64 {
	if len(q.Points) == 0 {
		return 0
	}
	return q.Points[len(q.Points)-1]
}

// GradingScheme is the ordered list of questions of an exam.
type GradingScheme []Question

// IDs returns the question identifiers in scheme order.
func (gs GradingScheme) IDs() []string {
	ids := make([]string, len(gs))
	for i, q := range gs {
		ids[i] = q.ID
	}
	return ids
}

// Has reports whether the scheme contains the question id.
func (gs GradingScheme) Has(id string) bool {
	for _, q := range gs {
		if q.ID == id {
			return true
		}
	}
	return false
}

// MaxPoints returns every question's maximum in scheme order.
func (gs GradingScheme) MaxPoints() []float64 {
	out := make([]float64, len(gs))
	for i, q := range gs {
		out[i] = q.MaxPoints()
	}
	return out
}

// Total returns the sum of the question maxima.
func (gs GradingScheme) Total() float64 {
	var t float64
	for _, q := range gs {
		t += q.MaxPoints()
	}
	return t
}

// ExamInfo holds the static description of an exam.
type ExamInfo struct {
	Field     string    `json:"field"`
	ClassName string    `json:"class_name"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Levels    [3]string `json:"levels"`
}

// Placement is the rank of one student within the class.
type Placement struct {
	Rank    int  `json:"rank"`
	ExAequo bool `json:"ex_aequo"`
}

// QuestionStats summarises one question over the present students.
// ErrMin and ErrMax are error-bar lengths clipped to [0, MaxPoints].
type QuestionStats struct {
	ID        string  `json:"id"`
	MaxPoints float64 `json:"max_points"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	ErrMin    float64 `json:"err_min"`
	ErrMax    float64 `json:"err_max"`
}

// ClassStatistics is everything derived from a class. It is computed in one
// pass and never updated in place.
type ClassStatistics struct {
	NPresent    int             `json:"n_present"`
	MaxRank     int             `json:"max_rank"`
	Mean        float64         `json:"mean"`
	StdDev      float64         `json:"std_dev"`
	TotalPoints float64         `json:"total_points"`
	Questions   []QuestionStats `json:"questions"`
	// Placements is aligned with the student slice the statistics were
	// computed from; absent students get the zero value.
	Placements  []Placement  `json:"placements"`
	Remarks     []Remark     `json:"remarks"`
	CopyRemarks []Evaluation `json:"copy_remarks"`
	Skills      []Evaluation `json:"skills"`
}

// QuestionMeans returns the per-question class means keyed by question id.
func (cs *ClassStatistics) QuestionMeans() map[string]float64 {
	out := make(map[string]float64, len(cs.Questions))
	for _, q := range cs.Questions {
		out[q.ID] = q.Mean
	}
	return out
}
