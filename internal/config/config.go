// Package config defines the typed configuration of a feedback run and
// loads it from viper (file, environment and flags).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pavelanni/feedback/internal/model"
)

// ErrInvalid is returned when the configuration is missing or malformed.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete configuration of a feedback run.
type Config struct {
	Input            InputConfig      `mapstructure:"input"`
	Sheets           SheetsConfig     `mapstructure:"sheets"`
	Levels           []string         `mapstructure:"levels" validate:"len=3,dive,required"`
	LabelGradeColumn string           `mapstructure:"label_grade_column" validate:"required"`
	GradingScheme    []QuestionConfig `mapstructure:"grading_scheme" validate:"dive"`
	Exam             ExamConfig       `mapstructure:"exam"`
	Output           OutputConfig     `mapstructure:"output"`
	Scales           ScalesConfig     `mapstructure:"scales"`
	Render           RenderConfig     `mapstructure:"render"`
	Compile          CompileConfig    `mapstructure:"compile"`
	LLM              LLMConfig        `mapstructure:"llm"`
	Serve            ServeConfig      `mapstructure:"serve"`
	DB               string           `mapstructure:"db"`
}

// InputConfig describes the workbook and its fixed columns.
type InputConfig struct {
	File string `mapstructure:"file" validate:"required"`
	// Labels are the number, name and first-name columns, in that order.
	Labels       []string `mapstructure:"labels" validate:"len=3,dive,required"`
	AbsenceLabel string   `mapstructure:"absence_label" validate:"required"`
}

// SheetsConfig maps each role to a sheet name of the workbook.
type SheetsConfig struct {
	Class   string `mapstructure:"classe" validate:"required"`
	Grades  string `mapstructure:"grades" validate:"required"`
	Remarks string `mapstructure:"remarks" validate:"required"`
	Copy    string `mapstructure:"copy" validate:"required"`
	Skills  string `mapstructure:"skills" validate:"required"`
}

// Names returns the sheet names in reading order.
func (s SheetsConfig) Names() []string {
	return []string{s.Class, s.Grades, s.Remarks, s.Copy, s.Skills}
}

// QuestionConfig lists the attainable points of one question.
type QuestionConfig struct {
	ID     string    `mapstructure:"id" validate:"required"`
	Points []float64 `mapstructure:"points" validate:"min=1,dive,gte=0"`
}

// ExamConfig holds the exam metadata printed on every document.
type ExamConfig struct {
	Field     string `mapstructure:"field" validate:"required"`
	ClassName string `mapstructure:"class_name" validate:"required"`
	Title     string `mapstructure:"title" validate:"required"`
	Date      string `mapstructure:"date" validate:"required"`
}

// OutputConfig controls where documents go.
type OutputConfig struct {
	Dir       string `mapstructure:"dir" validate:"required"`
	Suffix    string `mapstructure:"suffix" validate:"required"`
	RemoveLog bool   `mapstructure:"remove_log"`
}

// RenderConfig tunes the documents.
type RenderConfig struct {
	Lang            string        `mapstructure:"lang" validate:"required,bcp47_language_tag"`
	MaxRankShown    int           `mapstructure:"max_rank_shown" validate:"gte=0"`
	ExcludedRemarks []string      `mapstructure:"excluded_remarks"`
	Average         AverageConfig `mapstructure:"average"`
}

// AverageConfig is the identity printed on the class-average document.
type AverageConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	FirstName string `mapstructure:"first_name" validate:"required"`
}

// CompileConfig configures the external document compiler and plotter.
type CompileConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Command     string   `mapstructure:"command" validate:"required_if=Enabled true"`
	Args        []string `mapstructure:"args"`
	PlotCommand string   `mapstructure:"plot_command"`
}

// LLMConfig enables the optional class commentary. An empty URL disables it.
type LLMConfig struct {
	URL   string `mapstructure:"url"`
	Key   string `mapstructure:"key"`
	Model string `mapstructure:"model"`
}

// Enabled reports whether a commentary endpoint is configured.
func (c LLMConfig) Enabled() bool {
	return c.URL != ""
}

// ServeConfig configures the preview server. An empty password hash
// leaves the server open.
type ServeConfig struct {
	Addr         string `mapstructure:"addr" validate:"required"`
	User         string `mapstructure:"user" validate:"required_with=PasswordHash"`
	PasswordHash string `mapstructure:"password_hash"`
	BasePath     string `mapstructure:"base_path"`
}

// ExamInfo returns the static exam description.
func (c *Config) ExamInfo() model.ExamInfo {
	info := model.ExamInfo{
		Field:     c.Exam.Field,
		ClassName: c.Exam.ClassName,
		Date:      c.Exam.Date,
		Title:     c.Exam.Title,
	}
	copy(info.Levels[:], c.Levels)
	return info
}

// Scheme returns the configured grading scheme, or nil when the scheme is to
// be read from the grade sheet headers.
func (c *Config) Scheme() model.GradingScheme {
	if len(c.GradingScheme) == 0 {
		return nil
	}
	gs := make(model.GradingScheme, len(c.GradingScheme))
	for i, q := range c.GradingScheme {
		gs[i] = model.Question{ID: q.ID, Points: append([]float64(nil), q.Points...)}
	}
	return gs
}

// SetDefaults registers scalar defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.absence_label", "Absence")
	v.SetDefault("sheets.classe", "Classe")
	v.SetDefault("sheets.grades", "Notes")
	v.SetDefault("sheets.remarks", "Remarques")
	v.SetDefault("sheets.copy", "Copie")
	v.SetDefault("sheets.skills", "Compétences")
	v.SetDefault("label_grade_column", "Note")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.suffix", "FeedbackForm")
	v.SetDefault("output.remove_log", true)
	v.SetDefault("render.lang", "fr")
	v.SetDefault("render.max_rank_shown", 10)
	v.SetDefault("render.average.name", "SMITHEE")
	v.SetDefault("render.average.first_name", "Alan")
	v.SetDefault("compile.command", "pdflatex")
	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.user", "teacher")

	// Empty defaults make these keys visible to AutomaticEnv.
	for _, key := range []string{
		"input.file", "exam.field", "exam.class_name", "exam.title", "exam.date",
		"compile.plot_command", "llm.url", "llm.key", "db",
		"serve.password_hash", "serve.base_path",
	} {
		v.SetDefault(key, "")
	}
}

// Load decodes v into a Config, fills list defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	cfg.applyListDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyListDefaults() {
	if len(c.Input.Labels) == 0 {
		c.Input.Labels = []string{"Numéro", "Nom", "Prénom"}
	}
	if len(c.Levels) == 0 {
		c.Levels = []string{"Non acquis", "En voie d'acquisition", "Acquis"}
	}
	if c.Render.ExcludedRemarks == nil {
		c.Render.ExcludedRemarks = []string{"Poursuivez vos efforts !"}
	}
	if len(c.Compile.Args) == 0 {
		c.Compile.Args = []string{"-halt-on-error", "-interaction=nonstopmode"}
	}
	def := DefaultScales()
	if len(c.Scales.LevelCodes) == 0 {
		c.Scales.LevelCodes = def.LevelCodes
	}
	if len(c.Scales.Skills.Bands) == 0 {
		c.Scales.Skills = def.Skills
	}
	if len(c.Scales.Copy.Bands) == 0 {
		c.Scales.Copy = def.Copy
	}
	if len(c.Scales.Icons) == 0 {
		c.Scales.Icons = def.Icons
	}
}

var validate = validator.New()

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	seen := make(map[string]bool, len(c.GradingScheme))
	for _, q := range c.GradingScheme {
		if seen[q.ID] {
			return fmt.Errorf("%w: grading_scheme lists %q twice", ErrInvalid, q.ID)
		}
		seen[q.ID] = true
		for i := 1; i < len(q.Points); i++ {
			if q.Points[i] < q.Points[i-1] {
				return fmt.Errorf("%w: grading_scheme points of %q must be increasing", ErrInvalid, q.ID)
			}
		}
	}

	for _, lc := range c.Scales.LevelCodes {
		if lc.Code < 0 || lc.Code >= len(c.Scales.Icons) {
			return fmt.Errorf("%w: level %q has code %d without an icon", ErrInvalid, lc.Level, lc.Code)
		}
	}
	return nil
}
