package textutil

import "testing"

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is far too long", 10, "this is..."},
		{"анализ текста", 9, "анализ..."},
		{"abc", 0, ""},
		{"abcdef", 2, "ab"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.limit); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("  line one\n\tline   two  ", 40); got != "line one line two" {
		t.Fatalf("Snippet = %q", got)
	}
	if got := Snippet("\n\t  ", 40); got != "<empty>" {
		t.Fatalf("empty Snippet = %q", got)
	}
	if got := Snippet("aaaaaaaaaa", 5); got != "aa..." {
		t.Fatalf("bounded Snippet = %q", got)
	}
}
