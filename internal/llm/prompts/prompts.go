package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/feedback/internal/model"
)

// Embedded holds the default prompt templates.
//
//go:embed templates/*.txt
var Embedded embed.FS

var classDataRegex = regexp.MustCompile(`(?i)</?\s*class-data\b[^>]*>`)

// maxLabel bounds every spreadsheet label copied into a prompt.
const maxLabel = 200

// PromptVariant represents a commentary prompt variant.
type PromptVariant string

const (
	// PromptStandard asks for a short paragraph.
	PromptStandard PromptVariant = "standard"
	// PromptBrief asks for a single sentence.
	PromptBrief PromptVariant = "brief"
)

var validVariants = map[PromptVariant]bool{
	PromptStandard: true,
	PromptBrief:    true,
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// ClassData holds template data for the class commentary prompt.
type ClassData struct {
	Language     string
	MaxSentences int
	Field        string
	Title        string
	ClassName    string
	Date         string
	NPresent     int
	Mean         float64
	StdDev       float64
	Total        float64
	Questions    []model.QuestionStats
	Skills       []model.Evaluation
	Copy         []model.Evaluation
}

// Load loads prompt templates from fsys. It uses sync.Once to ensure
// templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		templates = make(map[PromptVariant]*template.Template)
		for v := range validVariants {
			file := "templates/class_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// languageNames maps the document languages to the names used in prompts.
var languageNames = map[string]string{
	"fr": "French",
	"en": "English",
}

// BuildClassPrompt builds the class commentary prompt.
func BuildClassPrompt(variant PromptVariant, lang string, exam model.ExamInfo, cs *model.ClassStatistics, total float64) (string, error) {
	if templates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	language, ok := languageNames[lang]
	if !ok {
		language = lang
	}
	data := ClassData{
		Language:     language,
		MaxSentences: 4,
		Field:        sanitize(exam.Field),
		Title:        sanitize(exam.Title),
		ClassName:    sanitize(exam.ClassName),
		Date:         sanitize(exam.Date),
		NPresent:     cs.NPresent,
		Mean:         cs.Mean,
		StdDev:       cs.StdDev,
		Total:        total,
		Questions:    make([]model.QuestionStats, len(cs.Questions)),
		Skills:       sanitizeEvals(cs.Skills),
		Copy:         sanitizeEvals(cs.CopyRemarks),
	}
	for i, q := range cs.Questions {
		q.ID = sanitize(q.ID)
		data.Questions[i] = q
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeEvals(evals []model.Evaluation) []model.Evaluation {
	out := make([]model.Evaluation, len(evals))
	for i, e := range evals {
		out[i] = model.Evaluation{Label: sanitize(e.Label), Level: sanitize(e.Level)}
	}
	return out
}

// sanitize strips data-block tags and newlines from spreadsheet text so
// it cannot escape its place in the prompt.
func sanitize(s string) string {
	s = classDataRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxLabel {
		s = string([]rune(s)[:maxLabel]) + "…"
	}
	return s
}
