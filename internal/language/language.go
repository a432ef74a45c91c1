package language

import (
	"strings"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 (3-letter)
	display string   // Canonical display label
	words   []string // Full word forms the model emits
}

// The table covers the languages seen in the target market's social media
// plus the common model spellings for them. Unknown labels pass through
// title-cased rather than being dropped.
var languages = []entry{
	{"ka", "kat", "Georgian", []string{"georgian", "kartuli"}},
	{"en", "eng", "English", []string{"english"}},
	{"ru", "rus", "Russian", []string{"russian"}},
	{"tr", "tur", "Turkish", []string{"turkish"}},
	{"az", "aze", "Azerbaijani", []string{"azerbaijani", "azeri"}},
	{"hy", "hye", "Armenian", []string{"armenian"}},
	{"uk", "ukr", "Ukrainian", []string{"ukrainian"}},
	{"de", "deu", "German", []string{"german"}},
	{"fr", "fra", "French", []string{"french"}},
	{"es", "spa", "Spanish", []string{"spanish"}},
	{"ar", "ara", "Arabic", []string{"arabic"}},
	{"", "", "Mixed", []string{"mixed", "multilingual", "mixed_languages"}},
}

var byToken map[string]*entry

func init() {
	byToken = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		if e.code2 != "" {
			byToken[e.code2] = e
		}
		if e.code3 != "" {
			byToken[e.code3] = e
		}
		for _, w := range e.words {
			byToken[w] = e
		}
	}
}

// Normalize maps a model-reported language label to its canonical display
// form. Empty or missing labels become "Unknown"; labels outside the table
// are title-cased as-is so new languages still roll up consistently.
func Normalize(label string) string {
	token := strings.ToLower(strings.TrimSpace(label))
	if token == "" || token == "null" || token == "none" || token == "not_mentioned" {
		return "Unknown"
	}
	if e, ok := byToken[token]; ok {
		return e.display
	}
	return titleCase(token)
}

func titleCase(token string) string {
	// Casers are stateful, so build one per call rather than sharing.
	return cases.Title(xlanguage.Und).String(token)
}
