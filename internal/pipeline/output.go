package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavelanni/feedback/internal/model"
	"github.com/pavelanni/feedback/internal/render"
)

// Composite suffixes of the class documents.
const (
	SuffixPresent   = "WoAbsent"
	SuffixAll       = "All"
	SuffixAnonymous = "Anonymous"
	SuffixSummary   = "Summary"
)

// FormName is the file name of a student's feedback document. The
// synthetic student gets a 00 prefix so it sorts with the class files.
func FormName(st *model.Student, suffix string) string {
	name := st.Name + "_" + st.FirstName + "_" + suffix
	if st.IsSynthetic() {
		name = "00" + name
	}
	return strings.ReplaceAll(name, " ", "_") + ".tex"
}

// ClassBase is the common prefix of the class documents.
func ClassBase(exam model.ExamInfo, suffix string) string {
	return strings.ReplaceAll("00"+exam.ClassName+"_"+exam.Title+"_"+suffix, " ", "_")
}

// PlotData is what the plot command reads to draw a student's grades
// against the class. Slices are aligned with Questions.
type PlotData struct {
	Name       string    `json:"name"`
	FirstName  string    `json:"first_name"`
	Output     string    `json:"output"`
	Questions  []string  `json:"questions"`
	MaxPoints  []float64 `json:"max_points"`
	Points     []float64 `json:"points"`
	ClassMeans []float64 `json:"class_means"`
	ErrMin     []float64 `json:"err_min"`
	ErrMax     []float64 `json:"err_max"`
}

// NewPlotData collects the plot inputs of one student.
func NewPlotData(st *model.Student, cs *model.ClassStatistics) PlotData {
	pd := PlotData{
		Name:      st.Name,
		FirstName: st.FirstName,
		Output:    render.PlotBase(st) + ".pdf",
	}
	for _, q := range cs.Questions {
		pd.Questions = append(pd.Questions, q.ID)
		pd.MaxPoints = append(pd.MaxPoints, q.MaxPoints)
		pd.Points = append(pd.Points, st.SchemedGrades[q.ID])
		pd.ClassMeans = append(pd.ClassMeans, q.Mean)
		pd.ErrMin = append(pd.ErrMin, q.ErrMin)
		pd.ErrMax = append(pd.ErrMax, q.ErrMax)
	}
	return pd
}

// prepareDir creates dir, warning when it already exists.
func prepareDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output path %s is not a directory", dir)
	case err == nil:
		slog.Warn("output directory already exists, files may be overwritten", "dir", dir)
		return nil
	case os.IsNotExist(err):
		return os.MkdirAll(dir, 0o755)
	default:
		return err
	}
}

func writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	slog.Debug("wrote file", "file", name)
	return nil
}

func writeJSON(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return writeFile(dir, name, string(data)+"\n")
}
