// Package i18n holds the translated strings of the feedback documents and
// of the preview pages.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog is the set of loaded translations.
type Catalog struct {
	bundle  *i18n.Bundle
	deflang string
}

// DefaultLang is the language the documents fall back to.
const DefaultLang = "fr"

// Load reads every embedded locale. lang is the default language, used
// when a translator is asked for a language the catalog lacks. A lang
// without a locale file is replaced by DefaultLang.
func Load(lang string) (*Catalog, error) {
	if _, err := language.Parse(lang); err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.MustParse(DefaultLang))
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}
	c := &Catalog{bundle: bundle, deflang: lang}
	if !c.Supports(lang) {
		slog.Warn("no translation for language, using default", "lang", lang, "default", DefaultLang)
		c.deflang = DefaultLang
	}
	return c, nil
}

// Default is the language used when none of the requested ones is
// available.
func (c *Catalog) Default() string {
	return c.deflang
}

// Languages lists the tags the catalog can translate to.
func (c *Catalog) Languages() []language.Tag {
	return c.bundle.LanguageTags()
}

// Supports reports whether a locale file exists for the base of lang.
func (c *Catalog) Supports(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	for _, t := range c.Languages() {
		if b, _ := t.Base(); b == base {
			return true
		}
	}
	return false
}

// Translator returns a translator preferring the given languages, in order,
// then the catalog default.
func (c *Catalog) Translator(langs ...string) *Translator {
	langs = append(langs, c.deflang)
	return &Translator{loc: i18n.NewLocalizer(c.bundle, langs...)}
}

// Translator renders messages in one language.
type Translator struct {
	loc *i18n.Localizer
}

func (t *Translator) localize(cfg *i18n.LocalizeConfig) string {
	s, err := t.loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}

// T translates a message by ID.
func (t *Translator) T(msgID string) string {
	return t.localize(&i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func (t *Translator) Td(msgID string, data map[string]any) string {
	return t.localize(&i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message by ID.
func (t *Translator) Tp(msgID string, count int) string {
	return t.localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

type ctxKey struct{}

// WithTranslator stores a translator in the context.
func WithTranslator(ctx context.Context, t *Translator) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the translator stored in ctx, or nil.
func FromContext(ctx context.Context) *Translator {
	t, _ := ctx.Value(ctxKey{}).(*Translator)
	return t
}

// T translates msgID with the translator of ctx. Without one the ID is
// returned unchanged.
func T(ctx context.Context, msgID string) string {
	if t := FromContext(ctx); t != nil {
		return t.T(msgID)
	}
	return msgID
}

// Td is T with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	if t := FromContext(ctx); t != nil {
		return t.Td(msgID, data)
	}
	return msgID
}
