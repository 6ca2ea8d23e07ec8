package errors

import (
	"embed"
	"path"
	"strings"
	"sync"

	nuts "github.com/vaudience/go-nuts"
	"gopkg.in/yaml.v3"
)

const DefaultLocale = "en"

//go:embed translations/*.yaml
var translationFiles embed.FS

type IssueText struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type translationTable struct {
	Errors map[string]string    `yaml:"errors"`
	Issues map[string]IssueText `yaml:"issues"`
}

var (
	loadOnce     sync.Once
	translations map[string]translationTable
)

func loadTranslations() {
	translations = make(map[string]translationTable)
	entries, err := translationFiles.ReadDir("translations")
	if err != nil {
		nuts.L.Errorf("[Translations] Failed to read embedded translations: %v", err)
		return
	}
	for _, entry := range entries {
		data, err := translationFiles.ReadFile(path.Join("translations", entry.Name()))
		if err != nil {
			nuts.L.Errorf("[Translations] Failed to read %s: %v", entry.Name(), err)
			continue
		}
		var table translationTable
		if err := yaml.Unmarshal(data, &table); err != nil {
			nuts.L.Errorf("[Translations] Failed to parse %s: %v", entry.Name(), err)
			continue
		}
		translations[strings.TrimSuffix(entry.Name(), ".yaml")] = table
	}
}

func table(locale string) (translationTable, bool) {
	loadOnce.Do(loadTranslations)
	t, ok := translations[locale]
	if !ok {
		t, ok = translations[DefaultLocale]
	}
	return t, ok
}

// Localize renders the message for key in locale, falling back to the default
// locale. Unknown keys yield an empty string.
func Localize(locale, key string, placeholders map[string]string) string {
	t, ok := table(locale)
	if !ok {
		return ""
	}
	msg, ok := t.Errors[key]
	if !ok {
		if fallback, fok := table(DefaultLocale); fok {
			msg = fallback.Errors[key]
		}
	}
	return fill(msg, placeholders)
}

// LocalizeIssue renders the title and description of a repair issue
func LocalizeIssue(locale, key string, placeholders map[string]string) IssueText {
	t, ok := table(locale)
	if !ok {
		return IssueText{}
	}
	text := t.Issues[key]
	return IssueText{
		Title:       fill(text.Title, placeholders),
		Description: fill(text.Description, placeholders),
	}
}

// Locales lists the embedded locales
func Locales() []string {
	loadOnce.Do(loadTranslations)
	out := make([]string, 0, len(translations))
	for l := range translations {
		out = append(out, l)
	}
	return out
}

func fill(msg string, placeholders map[string]string) string {
	for k, v := range placeholders {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}
