// Package pipeline runs a feedback generation from the workbook to the
// written, and optionally compiled, documents.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/feedback/internal/compile"
	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/i18n"
	"github.com/pavelanni/feedback/internal/model"
	"github.com/pavelanni/feedback/internal/render"
	"github.com/pavelanni/feedback/internal/sheet"
	"github.com/pavelanni/feedback/internal/stats"
	"github.com/pavelanni/feedback/internal/store"
)

// Commenter writes a short comment on the class results.
type Commenter interface {
	ClassComment(ctx context.Context, lang string, exam model.ExamInfo, cs *model.ClassStatistics, total float64) (string, error)
}

// Deps are the optional collaborators of a run. Nil fields disable the
// matching step.
type Deps struct {
	Compiler  *compile.Compiler
	Commenter Commenter
	Store     *store.Store
	Now       func() time.Time
}

// Report describes what a run produced.
type Report struct {
	RunID string
	Dir   string
	// Documents lists the written .tex files in compilation order.
	Documents []string
	PlotData  []string
	Summary   string
	Comment   string
	Stats     *model.ClassStatistics
	// Compile is nil when compilation is disabled.
	Compile *compile.Summary
}

// Run reads the configured workbook and writes every feedback document.
// Compilation and plot failures are collected, not returned.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Report, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	exam := cfg.ExamInfo()

	wb, err := sheet.Open(cfg.Input.File, cfg.Sheets.Names())
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	scheme, students, err := sheet.Read(wb, sheet.LayoutFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}

	cs, err := stats.Compute(students, scheme, stats.Options{
		Scales:          cfg.Scales,
		ExcludedRemarks: cfg.Render.ExcludedRemarks,
	})
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}
	for i, p := range cs.Placements {
		students[i].SetRank(p)
	}
	slog.Info("computed statistics", "present", cs.NPresent, "mean", cs.Mean, "std_dev", cs.StdDev)

	cat, err := i18n.Load(cfg.Render.Lang)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	tr := cat.Translator(cat.Default())

	report := &Report{Dir: cfg.Output.Dir, Stats: cs}
	if deps.Commenter != nil {
		comment, err := deps.Commenter.ClassComment(ctx, cfg.Render.Lang, exam, cs, scheme.Total())
		if err != nil {
			slog.Warn("class comment unavailable", "error", err)
		} else {
			report.Comment = comment
		}
	}

	r, err := render.New(tr, exam, scheme, cs, render.Options{
		MaxRankShown: cfg.Render.MaxRankShown,
		Scales:       cfg.Scales,
	})
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	composites, err := r.Class(students)
	if err != nil {
		return nil, fmt.Errorf("render class: %w", err)
	}

	avg := stats.AverageStudent(cs, cfg.Render.Average.Name, cfg.Render.Average.FirstName)
	if report.Comment != "" {
		avg.SetRemark(tr.T("ClassComment"), report.Comment)
	}
	doc, err := r.Document(avg, false)
	if err != nil {
		return nil, fmt.Errorf("render average student: %w", err)
	}
	avg.SetFeedbackForm(doc)

	dir := cfg.Output.Dir
	if err := prepareDir(dir); err != nil {
		return nil, fmt.Errorf("prepare output directory: %w", err)
	}

	suffix := cfg.Output.Suffix
	for _, st := range append(append([]*model.Student(nil), students...), avg) {
		name := FormName(st, suffix)
		if err := writeFile(dir, name, st.FeedbackForm); err != nil {
			return nil, err
		}
		report.Documents = append(report.Documents, name)
	}
	base := ClassBase(exam, suffix)
	for _, c := range []struct{ suffix, doc string }{
		{SuffixPresent, composites.Present},
		{SuffixAll, composites.All},
		{SuffixAnonymous, composites.Anonymous},
	} {
		name := base + "_" + c.suffix + ".tex"
		if err := writeFile(dir, name, c.doc); err != nil {
			return nil, err
		}
		report.Documents = append(report.Documents, name)
	}

	if err := writePlots(ctx, report, deps.Compiler, append(stats.Present(students), avg), cs); err != nil {
		return nil, err
	}

	if cfg.Compile.Enabled && deps.Compiler != nil {
		report.Compile = deps.Compiler.CompileAll(ctx, dir, report.Documents)
		slog.Info("compilation finished", "summary", report.Compile.String())
	}

	html, err := r.SummaryHTML(ctx, students, report.Comment)
	if err != nil {
		return nil, err
	}
	report.Summary = base + "_" + SuffixSummary + ".html"
	if err := writeFile(dir, report.Summary, html); err != nil {
		return nil, err
	}

	if deps.Store != nil {
		run := model.RunExport{
			CreatedAt: deps.Now(),
			Exam:      exam,
			NStudents: len(students),
			Stats:     *cs,
		}
		for _, st := range students {
			run.Results = append(run.Results, model.ResultOf(st))
		}
		if report.RunID, err = deps.Store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	slog.Info("feedback forms written", "dir", dir, "documents", len(report.Documents), "run_id", report.RunID)
	return report, nil
}

// writePlots writes the plot data of every given student and runs the plot
// command on it when one is configured.
func writePlots(ctx context.Context, report *Report, c *compile.Compiler, students []*model.Student, cs *model.ClassStatistics) error {
	for _, st := range students {
		name := render.PlotBase(st) + ".json"
		if err := writeJSON(report.Dir, name, NewPlotData(st, cs)); err != nil {
			return err
		}
		report.PlotData = append(report.PlotData, name)
		if c == nil || !c.PlotEnabled() {
			continue
		}
		if err := c.Plot(ctx, report.Dir, name); err != nil {
			slog.Warn("plot failed", "file", name, "error", err)
		}
	}
	return nil
}
