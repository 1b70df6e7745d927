// Package compile hands the written documents to external tools: the LaTeX
// compiler and the optional plot command.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pavelanni/feedback/internal/config"
)

// Runner runs one external command inside dir.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name and returns its combined output.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Failure records one document that did not compile.
type Failure struct {
	File   string
	Err    error
	Output string
}

// Summary collects the outcome of a batch of compilations.
type Summary struct {
	Compiled []string
	Failures []Failure
}

// OK reports whether every document compiled.
func (s *Summary) OK() bool {
	return len(s.Failures) == 0
}

func (s *Summary) String() string {
	if s.OK() {
		return fmt.Sprintf("%d documents compiled", len(s.Compiled))
	}
	names := make([]string, len(s.Failures))
	for i, f := range s.Failures {
		names[i] = f.File
	}
	return fmt.Sprintf("%d documents compiled, %d failed: %s",
		len(s.Compiled), len(s.Failures), strings.Join(names, ", "))
}

// Compiler drives the external tools.
type Compiler struct {
	runner    Runner
	command   string
	args      []string
	plot      []string
	removeLog bool
}

// New creates a compiler from the configuration. A nil runner uses
// ExecRunner.
func New(cfg config.CompileConfig, removeLog bool, runner Runner) *Compiler {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Compiler{
		runner:    runner,
		command:   cfg.Command,
		args:      cfg.Args,
		plot:      strings.Fields(cfg.PlotCommand),
		removeLog: removeLog,
	}
}

// Compile compiles one .tex file found in dir. On success the auxiliary
// and log files are removed when configured to.
func (c *Compiler) Compile(ctx context.Context, dir, file string) error {
	args := append(append([]string(nil), c.args...), file)
	out, err := c.runner.Run(ctx, dir, c.command, args...)
	if err != nil {
		return &compileError{err: err, output: tail(string(out), 20)}
	}
	if c.removeLog {
		base := strings.TrimSuffix(file, filepath.Ext(file))
		for _, ext := range []string{".aux", ".log"} {
			if err := os.Remove(filepath.Join(dir, base+ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("remove compiler artifact", "file", base+ext, "error", err)
			}
		}
	}
	return nil
}

// CompileAll compiles every file in order. Failures are logged and
// collected; the batch never stops early unless ctx is cancelled.
func (c *Compiler) CompileAll(ctx context.Context, dir string, files []string) *Summary {
	s := &Summary{}
	for _, f := range files {
		if ctx.Err() != nil {
			s.Failures = append(s.Failures, Failure{File: f, Err: ctx.Err()})
			continue
		}
		err := c.Compile(ctx, dir, f)
		if err == nil {
			slog.Info("compiled", "file", f)
			s.Compiled = append(s.Compiled, f)
			continue
		}
		fail := Failure{File: f, Err: err}
		var ce *compileError
		if errors.As(err, &ce) {
			fail.Output = ce.output
		}
		slog.Warn("compilation failed", "file", f, "error", err)
		s.Failures = append(s.Failures, fail)
	}
	return s
}

// PlotEnabled reports whether a plot command is configured.
func (c *Compiler) PlotEnabled() bool {
	return len(c.plot) > 0
}

// Plot runs the plot command on one data file.
func (c *Compiler) Plot(ctx context.Context, dir, dataFile string) error {
	if !c.PlotEnabled() {
		return nil
	}
	args := append(append([]string(nil), c.plot[1:]...), dataFile)
	out, err := c.runner.Run(ctx, dir, c.plot[0], args...)
	if err != nil {
		return fmt.Errorf("plot %s: %w: %s", dataFile, err, tail(string(out), 5))
	}
	return nil
}

type compileError struct {
	err    error
	output string
}

func (e *compileError) Error() string { return "compile: " + e.err.Error() }
func (e *compileError) Unwrap() error { return e.err }

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
