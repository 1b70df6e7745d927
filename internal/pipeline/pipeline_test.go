package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/feedback/internal/compile"
	"github.com/pavelanni/feedback/internal/config"
	"github.com/pavelanni/feedback/internal/model"
	"github.com/pavelanni/feedback/internal/store"
)

var sheetOrder = []string{"Classe", "Notes", "Remarques", "Copie", "Compétences"}

func sampleSheets() map[string][][]any {
	return map[string][][]any{
		"Classe": {
			{"Numéro", "Nom", "Prénom", "Absence"},
			{1, "DUPONT", "Marie", ""},
			{2, "MARTIN", "Paul", ""},
			{3, "LE GALL", "Léa", "ABS"},
		},
		"Notes": {
			{"Numéro", "Nom", "Prénom", "Note", "Q1 (/2)", "Q2 (/3)"},
			{1, "DUPONT", "Marie", 16, 2, 3},
			{2, "MARTIN", "Paul", 12, 1, 2},
			{3, "LE GALL", "Léa"},
		},
		"Remarques": {
			{"Numéro", "Nom", "Prénom", "Travail régulier", "Commentaire"},
			{1, "DUPONT", "Marie", "VRAI", "Très bien"},
			{2, "MARTIN", "Paul", "FAUX", ""},
			{3, "LE GALL", "Léa"},
		},
		"Copie": {
			{"Numéro", "Nom", "Prénom", "Soin"},
			{1, "DUPONT", "Marie", "Bien"},
			{2, "MARTIN", "Paul", "Moyen"},
			{3, "LE GALL", "Léa", ""},
		},
		"Compétences": {
			{"Numéro", "Nom", "Prénom", "Calcul"},
			{1, "DUPONT", "Marie", "Acquis"},
			{2, "MARTIN", "Paul", "En voie d'acquisition"},
			{3, "LE GALL", "Léa", ""},
		},
	}
}

func writeWorkbook(t *testing.T) string {
	t.Helper()
	sheets := sampleSheets()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range sheetOrder {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet(%q): %v", name, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatal(err)
			}
			vals := make([]interface{}, len(row))
			copy(vals, row)
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "notes.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func testConfig(t *testing.T, input, outdir string, overrides map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("input.file", input)
	v.Set("output.dir", outdir)
	v.Set("exam.field", "Physique")
	v.Set("exam.class_name", "L3")
	v.Set("exam.title", "CC 1")
	v.Set("exam.date", "12/10/2026")
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

type call struct {
	name string
	args []string
}

type fakeRunner struct{ calls []call }

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	return nil, nil
}

type fakeCommenter struct {
	comment string
	err     error
	total   float64
}

func (f *fakeCommenter) ClassComment(ctx context.Context, lang string, exam model.ExamInfo, cs *model.ClassStatistics, total float64) (string, error) {
	f.total = total
	return f.comment, f.err
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestRun(t *testing.T) {
	outdir := filepath.Join(t.TempDir(), "out")
	cfg := testConfig(t, writeWorkbook(t), outdir, map[string]any{
		"compile.enabled":      true,
		"compile.plot_command": "plot-grades --pdf",
	})

	runner := &fakeRunner{}
	commenter := &fakeCommenter{comment: "Bonne dynamique de groupe."}
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	report, err := Run(context.Background(), cfg, Deps{
		Compiler:  compile.New(cfg.Compile, cfg.Output.RemoveLog, runner),
		Commenter: commenter,
		Store:     db,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantDocs := []string{
		"DUPONT_Marie_FeedbackForm.tex",
		"MARTIN_Paul_FeedbackForm.tex",
		"LE_GALL_Léa_FeedbackForm.tex",
		"00SMITHEE_Alan_FeedbackForm.tex",
		"00L3_CC_1_FeedbackForm_WoAbsent.tex",
		"00L3_CC_1_FeedbackForm_All.tex",
		"00L3_CC_1_FeedbackForm_Anonymous.tex",
	}
	if !slices.Equal(report.Documents, wantDocs) {
		t.Errorf("Documents = %v\nwant %v", report.Documents, wantDocs)
	}
	for _, name := range wantDocs {
		if doc := readFile(t, outdir, name); !strings.Contains(doc, `\end{document}`) {
			t.Errorf("%s is not a complete document", name)
		}
	}

	wantPlots := []string{"DUPONT_Marie_GradeStats.json", "MARTIN_Paul_GradeStats.json", "SMITHEE_Alan_GradeStats.json"}
	if !slices.Equal(report.PlotData, wantPlots) {
		t.Errorf("PlotData = %v, want %v", report.PlotData, wantPlots)
	}
	var pd PlotData
	if err := json.Unmarshal([]byte(readFile(t, outdir, "MARTIN_Paul_GradeStats.json")), &pd); err != nil {
		t.Fatalf("decode plot data: %v", err)
	}
	if !slices.Equal(pd.Points, []float64{1, 2}) || !slices.Equal(pd.ClassMeans, []float64{1.5, 2.5}) ||
		pd.Output != "MARTIN_Paul_GradeStats.pdf" {
		t.Errorf("plot data = %+v", pd)
	}

	// Three plots, then one compilation per document.
	if len(runner.calls) != 3+len(wantDocs) {
		t.Fatalf("got %d commands, want %d", len(runner.calls), 3+len(wantDocs))
	}
	if c := runner.calls[0]; c.name != "plot-grades" || !slices.Equal(c.args, []string{"--pdf", "DUPONT_Marie_GradeStats.json"}) {
		t.Errorf("first plot call = %+v", c)
	}
	if c := runner.calls[3]; c.name != "pdflatex" || c.args[len(c.args)-1] != "DUPONT_Marie_FeedbackForm.tex" {
		t.Errorf("first compile call = %+v", c)
	}
	if report.Compile == nil || !report.Compile.OK() || len(report.Compile.Compiled) != len(wantDocs) {
		t.Errorf("Compile = %+v", report.Compile)
	}

	if commenter.total != 5 {
		t.Errorf("commenter got total %v, want 5", commenter.total)
	}
	if avg := readFile(t, outdir, "00SMITHEE_Alan_FeedbackForm.tex"); !strings.Contains(avg, "Bonne dynamique de groupe.") {
		t.Error("class comment missing from the average document")
	}

	if report.Summary != "00L3_CC_1_FeedbackForm_Summary.html" {
		t.Errorf("Summary = %q", report.Summary)
	}
	if html := readFile(t, outdir, report.Summary); !strings.Contains(html, "Bonne dynamique de groupe.") {
		t.Error("class comment missing from the summary")
	}

	anon := readFile(t, outdir, "00L3_CC_1_FeedbackForm_Anonymous.tex")
	if strings.Contains(anon, `\noindent DUPONT`) {
		t.Error("anonymous composite shows a name")
	}
	if present := readFile(t, outdir, "00L3_CC_1_FeedbackForm_WoAbsent.tex"); strings.Contains(present, "LE GALL") {
		t.Error("present composite includes the absent student")
	}

	if report.RunID == "" {
		t.Fatal("run not recorded")
	}
	run, err := db.GetRun(context.Background(), report.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v, %v", run, err)
	}
	if !run.CreatedAt.Equal(now) || run.NStudents != 3 || run.Stats.NPresent != 2 || run.Stats.Mean != 14 {
		t.Errorf("recorded run = %+v", run)
	}
	if len(run.Results) != 3 || run.Results[0].Rank != 1 || run.Results[1].Rank != 2 || !run.Results[2].Absent {
		t.Errorf("recorded results = %+v", run.Results)
	}
}

func TestRunMinimal(t *testing.T) {
	outdir := t.TempDir()
	cfg := testConfig(t, writeWorkbook(t), outdir, nil)

	report, err := Run(context.Background(), cfg, Deps{
		Commenter: &fakeCommenter{err: errors.New("connection refused")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Compile != nil {
		t.Error("compiled although compilation is disabled")
	}
	if report.Comment != "" || report.RunID != "" {
		t.Errorf("report = %+v", report)
	}
	if _, err := os.Stat(filepath.Join(outdir, "DUPONT_Marie_FeedbackForm.tex")); err != nil {
		t.Errorf("document not written into existing directory: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, filepath.Join(dir, "missing.xlsx"), dir, nil)
	if _, err := Run(context.Background(), cfg, Deps{}); err == nil {
		t.Error("expected error for missing workbook")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg = testConfig(t, writeWorkbook(t), file, nil)
	if _, err := Run(context.Background(), cfg, Deps{}); err == nil {
		t.Error("expected error when the output path is a file")
	}
}

func TestFormName(t *testing.T) {
	tests := []struct {
		st   *model.Student
		want string
	}{
		{&model.Student{Name: "DUPONT", FirstName: "Marie"}, "DUPONT_Marie_FeedbackForm.tex"},
		{&model.Student{Name: "LE GALL", FirstName: "Jean Paul"}, "LE_GALL_Jean_Paul_FeedbackForm.tex"},
		{&model.Student{Kind: model.KindSyntheticAverage, Name: "SMITHEE", FirstName: "Alan"}, "00SMITHEE_Alan_FeedbackForm.tex"},
	}
	for _, tt := range tests {
		if got := FormName(tt.st, "FeedbackForm"); got != tt.want {
			t.Errorf("FormName(%s %s) = %q, want %q", tt.st.Name, tt.st.FirstName, got, tt.want)
		}
	}

	got := ClassBase(model.ExamInfo{ClassName: "Licence 3", Title: "CC 1"}, "Retour")
	if got != "00Licence_3_CC_1_Retour" {
		t.Errorf("ClassBase() = %q", got)
	}
}

func TestRunUnsupportedLanguageFallsBack(t *testing.T) {
	outdir := t.TempDir()
	cfg := testConfig(t, writeWorkbook(t), outdir, map[string]any{"render.lang": "de"})

	if _, err := Run(context.Background(), cfg, Deps{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if doc := readFile(t, outdir, "DUPONT_Marie_FeedbackForm.tex"); !strings.Contains(doc, "Remarques sur la copie") {
		t.Errorf("document not rendered in French:\n%s", doc)
	}
}
