package classify

import (
	"reflect"
	"testing"
)

func TestNormalizeBasic(t *testing.T) {
	n := NewNormalizer(UsingStopWords(false), UsingStemming(false))

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"lowercase", "Space Rocket LAUNCH", []string{"space", "rocket", "launch"}},
		{"punctuation", "hello, world! (again)", []string{"hello", "world", "again"}},
		{"digits kept", "Apollo 11 landed in 1969.", []string{"apollo", "11", "landed", "in", "1969"}},
		{"collapse whitespace", "  a \t\n b   c  ", []string{"a", "b", "c"}},
		{"non-ascii dropped", "naïve café", []string{"na", "ve", "caf"}},
		{"email split", "user@example.com", []string{"user", "example", "com"}},
		{"empty", "", nil},
		{"only symbols", "!!! ??? ---", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Normalize(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := NewNormalizer()
	inputs := []string{
		"The rockets were launching toward the moon's orbit.",
		"",
		"Stock markets reported gains; analysts were surprised!",
		"12345 !!! mixed Case TEXT",
	}
	for _, in := range inputs {
		a := n.Normalize(in)
		b := n.Normalize(in)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Normalize(%q) not deterministic: %v vs %v", in, a, b)
		}
	}
}

func TestNormalizeStopWords(t *testing.T) {
	n := NewNormalizer(UsingStopWords(true), UsingStemming(false))
	got := n.Normalize("The rocket and the satellite")
	want := []string{"rocket", "satellite"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// numbers are never stop words
	got = n.Normalize("the 2 of 3")
	for _, tok := range []string{"2", "3"} {
		found := false
		for _, g := range got {
			if g == tok {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q to survive stop-word removal, got %v", tok, got)
		}
	}

	// alphanumeric tokens are kept even when their letters spell a stop word
	got = n.Normalize("The i386 and a4 cards")
	want = []string{"i386", "a4", "cards"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizeStemming(t *testing.T) {
	n := NewNormalizer(UsingStopWords(false), UsingStemming(true))
	got := n.Normalize("rockets launching")
	want := []string{"rocket", "launch"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizeAccentFolding(t *testing.T) {
	n := NewNormalizer(UsingStopWords(false), UsingStemming(false), UsingAccentFolding(true))
	got := n.Normalize("Café naïve résumé")
	want := []string{"cafe", "naive", "resume"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizerOptionsRoundTrip(t *testing.T) {
	opts := NormalizerOptions{Language: Spanish, StopWords: true, Stemming: false, FoldAccents: true}
	n := NewNormalizer(UsingNormalizerOptions(opts))
	if n.Options() != opts {
		t.Errorf("Options() = %+v, want %+v", n.Options(), opts)
	}
	if NewNormalizer(UsingLanguage("")).Options().Language != English {
		t.Error("empty language should default to English")
	}
}
