package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/pavelanni/feedback/internal/i18n"
	"github.com/pavelanni/feedback/internal/model"
)

func render(t *testing.T, lang string, c templ.Component) string {
	t.Helper()
	cat, err := i18n.Load(lang)
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	var buf bytes.Buffer
	ctx := i18n.WithTranslator(context.Background(), cat.Translator())
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestIndexPage(t *testing.T) {
	at := time.Date(2026, 10, 12, 9, 30, 0, 0, time.UTC)
	html := render(t, "en", IndexPage("/feedback",
		[]File{{Name: "DUPONT <J>.tex", Size: 42, ModTime: at}},
		[]model.RunSummary{{ID: "run-1", ClassName: "L3", Title: "CC1", NPresent: 2, NStudents: 3, Mean: 13.5}},
	))

	for _, want := range []string{
		"<h1>Generated documents</h1>",
		`href="/feedback/files/DUPONT%20%3CJ%3E.tex"`,
		"DUPONT &lt;J&gt;.tex",
		"<td>42</td><td>2026-10-12 09:30</td>",
		`href="/feedback/api/runs/run-1"`,
		"<td>2/3</td><td>13.50</td>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("index lacks %q:\n%s", want, html)
		}
	}
}

func TestIndexPageEmpty(t *testing.T) {
	html := render(t, "fr", IndexPage("", nil, nil))
	if strings.Contains(html, "<table>") {
		t.Errorf("empty index renders a table:\n%s", html)
	}
	if strings.Contains(html, "/api/runs") {
		t.Error("empty index links the run history")
	}
}

func TestPagesShareStylesheet(t *testing.T) {
	index := render(t, "fr", IndexPage("", nil, nil))
	summary := render(t, "fr", SummaryPage(Summary{Title: "L3"}))
	style := func(html string) string {
		start, end := strings.Index(html, "<style>"), strings.Index(html, "</style>")
		if start < 0 || end < start {
			t.Fatalf("no stylesheet:\n%s", html)
		}
		return html[start:end]
	}
	if style(index) != style(summary) {
		t.Error("index and summary use different stylesheets")
	}
}

func TestSummaryPageComment(t *testing.T) {
	s := Summary{
		Title:   "Synthèse",
		Ranking: []RankRow{{Rank: "1 (ex aequo)", Name: "DUPONT", FirstName: "Marie", Grade: "15"}},
	}
	if html := render(t, "fr", SummaryPage(s)); strings.Contains(html, "Commentaire sur la classe") {
		t.Error("comment heading without a comment")
	}

	s.Comment = "Bonne classe"
	html := render(t, "fr", SummaryPage(s))
	for _, want := range []string{
		"<h2>Commentaire sur la classe</h2><p>Bonne classe</p>",
		"<td>1 (ex aequo)</td><td>DUPONT</td><td>Marie</td><td>15</td>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("summary lacks %q:\n%s", want, html)
		}
	}
}
