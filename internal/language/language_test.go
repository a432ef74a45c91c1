package language

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"georgian":      "Georgian",
		"Georgian":      "Georgian",
		"ka":            "Georgian",
		"kat":           "Georgian",
		"english":       "English",
		"eng":           "English",
		"mixed":         "Mixed",
		"MIXED":         "Mixed",
		"russian":       "Russian",
		"":              "Unknown",
		"null":          "Unknown",
		"not_mentioned": "Unknown",
		"  english  ":   "English",
		"swahili":       "Swahili", // outside the table, title-cased through
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}
