package classify

import (
	"errors"
	"testing"
)

func TestIsStopWord(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		language Language
		expected bool
	}{
		{"english article", "the", English, true},
		{"english conjunction", "and", English, true},
		{"english content word", "rocket", English, false},
		{"spanish article", "el", Spanish, true},
		{"spanish content word", "cohete", Spanish, false},
		{"french article", "le", French, true},
		{"german article", "der", German, true},
		{"number", "42", English, false},
		{"stop word with digit", "a4", English, false},
		{"pronoun with digit", "i386", English, false},
		{"digit then stop word", "3d", English, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStopWord(tt.token, tt.language); got != tt.expected {
				t.Errorf("IsStopWord(%q, %s) = %v, want %v", tt.token, tt.language, got, tt.expected)
			}
		})
	}
}

func TestParseLanguage(t *testing.T) {
	for _, lang := range GetSupportedLanguages() {
		got, err := ParseLanguage(string(lang))
		if err != nil || got != lang {
			t.Errorf("ParseLanguage(%q) = %q, %v", lang, got, err)
		}
	}
	if got, err := ParseLanguage(" EN "); err != nil || got != English {
		t.Errorf("ParseLanguage should trim and lower-case, got %q, %v", got, err)
	}
	if got, _ := ParseLanguage(""); got != English {
		t.Errorf("empty code should default to English, got %q", got)
	}
	if _, err := ParseLanguage("xx"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown language, got %v", err)
	}
}

func TestFoldAccents(t *testing.T) {
	tests := map[string]string{
		"café":   "cafe",
		"Ñandú":  "Nandu",
		"über":   "uber",
		"plain":  "plain",
		"façade": "facade",
		"":       "",
	}
	for in, want := range tests {
		if got := foldAccents(in); got != want {
			t.Errorf("foldAccents(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStemUnsupportedLanguage(t *testing.T) {
	if got := stem("häuser", German); got != "häuser" {
		t.Errorf("unsupported stemmer language should return the token unchanged, got %q", got)
	}
	if got := stem("running", English); got != "run" {
		t.Errorf("stem(running) = %q, want run", got)
	}
}
