package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/feedback/internal/compile"
	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/handler"
	"github.com/pavelanni/feedback/internal/i18n"
	"github.com/pavelanni/feedback/internal/llm"
	"github.com/pavelanni/feedback/internal/llm/prompts"
	"github.com/pavelanni/feedback/internal/pipeline"
	"github.com/pavelanni/feedback/internal/store"
)

//go:generate templ generate -path ../../internal/views

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("feedback failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "feedback",
		Short:         "Generate personalised exam feedback forms from a grade workbook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	mk := makeCmd()
	root.AddCommand(mk, serveCmd(), historyCmd(), exportCmd(), hashPasswordCmd())

	// Make "make" the default when no subcommand is given.
	root.RunE = mk.RunE

	// Register make flags on root so bare `feedback --input ...` still works.
	root.Flags().AddFlagSet(mk.Flags())

	return root
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"input":          "input.file",
	"output":         "output.dir",
	"lang":           "render.lang",
	"compile":        "compile.enabled",
	"plot-command":   "compile.plot_command",
	"db":             "db",
	"llm-url":        "llm.url",
	"llm-key":        "llm.key",
	"llm-model":      "llm.model",
	"addr":           "serve.addr",
	"base-path":      "serve.base_path",
	"prompt-variant": "prompt-variant",
	"log-level":      "log-level",
	"log-format":     "log-format",
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "Configuration file (default feedback.yaml in ., $HOME/.config/feedback, /etc/feedback)")
	f.String("db", "", "SQLite database recording the run history (empty disables it)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func makeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "make",
		Short: "Read the workbook and write the feedback documents",
		RunE:  runMake,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("input", "i", "", "Grade workbook (.xlsx)")
	f.StringP("output", "o", "", "Output directory")
	f.StringP("lang", "l", "", "Document language (fr, en)")
	f.Bool("compile", false, "Compile every document with the configured LaTeX command")
	f.String("plot-command", "", "Command run on each plot data file")
	f.String("llm-url", "", "OpenAI-compatible API base URL for the class comment (empty disables it)")
	f.String("llm-key", "", "API key for LLM")
	f.String("llm-model", "", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Class comment prompt variant (standard, brief)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the output directory for preview",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", "", "HTTP listen address")
	f.StringP("output", "o", "", "Output directory to serve")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /feedback)")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the recorded runs",
		RunE:  runHistory,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("delete", "", "Remove the run with this identifier")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a recorded run as JSON",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.String("run", "", "Run identifier (see `feedback history`)")
	f.StringP("out", "O", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to use as serve.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("empty password")
			}
			hash, err := handler.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags, the environment and the
// configuration file to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("prompt-variant", string(prompts.PromptStandard))

	// Only flags set on the command line override the file.
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}
		_ = v.BindPFlag(key, f)
	})

	v.SetEnvPrefix("FEEDBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("feedback")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/feedback")
		v.AddConfigPath("/etc/feedback")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, errors.New("no history database configured: set db in the configuration or pass --db")
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runMake(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var deps pipeline.Deps
	if cfg.Compile.Enabled || cfg.Compile.PlotCommand != "" {
		deps.Compiler = compile.New(cfg.Compile, cfg.Output.RemoveLog, nil)
	}

	if cfg.LLM.Enabled() {
		variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid prompt-variant, using standard", "variant", variant)
			variant = string(prompts.PromptStandard)
		}
		deps.Commenter = llm.New(cfg.LLM.URL, cfg.LLM.Key, cfg.LLM.Model).WithVariant(prompts.PromptVariant(variant))
		slog.Info("class comment enabled", "url", cfg.LLM.URL, "model", cfg.LLM.Model)
	}

	if cfg.DB != "" {
		db, err := openStore(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Store = db
	}

	report, err := pipeline.Run(ctx, cfg, deps)
	if err != nil {
		return err
	}

	if report.Compile != nil && !report.Compile.OK() {
		for _, f := range report.Compile.Failures {
			slog.Error("document did not compile", "file", f.File, "error", f.Err, "output", f.Output)
		}
		return errors.New(report.Compile.String())
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	serveCfg := config.ServeConfig{
		Addr:         v.GetString("serve.addr"),
		User:         v.GetString("serve.user"),
		PasswordHash: v.GetString("serve.password_hash"),
		BasePath:     v.GetString("serve.base_path"),
	}
	// Normalize base path.
	basePath := strings.TrimRight(serveCfg.BasePath, "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	serveCfg.BasePath = basePath

	lang := v.GetString("render.lang")
	cat, err := i18n.Load(lang)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	var db *store.Store
	if path := v.GetString("db"); path != "" {
		if db, err = openStore(path); err != nil {
			return err
		}
		defer db.Close()
	}

	dir := v.GetString("output.dir")
	h := handler.New(dir, db, cat, serveCfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if basePath != "" {
		r.Route(basePath, h.Routes)
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	srv := &http.Server{
		Addr:              serveCfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting preview server",
			"addr", serveCfg.Addr,
			"dir", dir,
			"lang", lang,
			"base_path", basePath,
			"auth", serveCfg.PasswordHash != "",
			"history", db != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	if id := v.GetString("delete"); id != "" {
		if err := db.DeleteRun(cmd.Context(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("run %s: %w", id, store.ErrRunNotFound)
			}
			return fmt.Errorf("delete run: %w", err)
		}
		slog.Info("deleted run", "id", id)
		return nil
	}

	runs, err := db.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCLASS\tTITLE\tPRESENT\tMEAN\tSTD")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%.2f\t%.2f\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.ClassName, r.Title,
			r.NPresent, r.NStudents, r.Mean, r.StdDev)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	count, err := db.RunCount(cmd.Context())
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d run(s)\n", count)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v.GetString("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	outPath := v.GetString("out")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := db.ExportRun(cmd.Context(), v.GetString("run"), w); err != nil {
		return fmt.Errorf("export run: %w", err)
	}
	return nil
}
