package compile

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pavelanni/feedback/internal/config"
)

type call struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	fail  map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	last := args[len(args)-1]
	if f.fail[last] {
		return []byte("! Undefined control sequence.\nl.12 \\foo\n"), errors.New("exit status 1")
	}
	base := strings.TrimSuffix(last, filepath.Ext(last))
	for _, ext := range []string{".aux", ".log", ".pdf"} {
		os.WriteFile(filepath.Join(dir, base+ext), nil, 0o644)
	}
	return nil, nil
}

var testConfig = config.CompileConfig{
	Enabled: true,
	Command: "pdflatex",
	Args:    []string{"-halt-on-error", "-interaction=nonstopmode"},
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

func TestCompileAllCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{fail: map[string]bool{"B_FeedbackForm.tex": true}}
	c := New(testConfig, true, runner)

	files := []string{"A_FeedbackForm.tex", "B_FeedbackForm.tex", "C_FeedbackForm.tex"}
	s := c.CompileAll(context.Background(), dir, files)

	if len(runner.calls) != 3 {
		t.Fatalf("got %d runs, want 3 (a failure must not stop the batch)", len(runner.calls))
	}
	first := runner.calls[0]
	if first.dir != dir || first.name != "pdflatex" ||
		!slices.Equal(first.args, []string{"-halt-on-error", "-interaction=nonstopmode", "A_FeedbackForm.tex"}) {
		t.Errorf("first call = %+v", first)
	}

	if s.OK() {
		t.Fatal("summary reports success")
	}
	if !slices.Equal(s.Compiled, []string{"A_FeedbackForm.tex", "C_FeedbackForm.tex"}) {
		t.Errorf("Compiled = %v", s.Compiled)
	}
	if len(s.Failures) != 1 || s.Failures[0].File != "B_FeedbackForm.tex" {
		t.Fatalf("Failures = %+v", s.Failures)
	}
	if !strings.Contains(s.Failures[0].Output, "Undefined control sequence") {
		t.Errorf("failure output = %q", s.Failures[0].Output)
	}
	if !strings.Contains(s.String(), "1 failed: B_FeedbackForm.tex") {
		t.Errorf("String() = %q", s.String())
	}

	if exists(t, filepath.Join(dir, "A_FeedbackForm.log")) || exists(t, filepath.Join(dir, "A_FeedbackForm.aux")) {
		t.Error("artifacts of a successful compilation were kept")
	}
	if !exists(t, filepath.Join(dir, "A_FeedbackForm.pdf")) {
		t.Error("pdf removed")
	}
}

func TestCompileKeepsLogsWhenAsked(t *testing.T) {
	dir := t.TempDir()
	c := New(testConfig, false, &fakeRunner{})

	if err := c.Compile(context.Background(), dir, "A.tex"); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !exists(t, filepath.Join(dir, "A.log")) {
		t.Error("log removed although remove_log is off")
	}
}

func TestCompileAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{}
	s := New(testConfig, true, runner).CompileAll(ctx, t.TempDir(), []string{"A.tex", "B.tex"})
	if len(runner.calls) != 0 {
		t.Errorf("ran %d commands after cancel", len(runner.calls))
	}
	if len(s.Failures) != 2 {
		t.Errorf("Failures = %+v, want both files", s.Failures)
	}
}

func TestPlot(t *testing.T) {
	runner := &fakeRunner{}
	cfg := testConfig
	cfg.PlotCommand = "gnuplot-wrap plot_grades.gp --format pdf"
	c := New(cfg, true, runner)

	if !c.PlotEnabled() {
		t.Fatal("PlotEnabled() = false")
	}
	if err := c.Plot(context.Background(), t.TempDir(), "A_B_GradeStats.json"); err != nil {
		t.Fatalf("Plot: %v", err)
	}
	got := runner.calls[0]
	if got.name != "gnuplot-wrap" || !slices.Equal(got.args, []string{"plot_grades.gp", "--format", "pdf", "A_B_GradeStats.json"}) {
		t.Errorf("plot call = %+v", got)
	}

	none := New(testConfig, true, runner)
	if none.PlotEnabled() {
		t.Error("PlotEnabled() without command")
	}
	if err := none.Plot(context.Background(), "", "x.json"); err != nil {
		t.Errorf("Plot without command: %v", err)
	}
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	out, err := ExecRunner{}.Run(context.Background(), dir, "sh", "-c", "pwd")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(strings.TrimSpace(string(out))) != filepath.Base(dir) {
		t.Errorf("ran in %q, want %q", strings.TrimSpace(string(out)), dir)
	}
	if _, err := (ExecRunner{}).Run(context.Background(), dir, "sh", "-c", "exit 3"); err == nil {
		t.Error("expected error for failing command")
	}
}
