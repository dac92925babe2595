package classify

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/bbalet/stopwords"
	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Language represents supported languages
type Language string

const (
	English  Language = "en"
	Spanish  Language = "es"
	French   Language = "fr"
	German   Language = "de"
	Japanese Language = "ja"
)

// GetSupportedLanguages returns all supported languages
func GetSupportedLanguages() []Language {
	return []Language{English, Spanish, French, German, Japanese}
}

// ParseLanguage maps an ISO 639-1 code to a Language.
func ParseLanguage(code string) (Language, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return English, nil
	}
	for _, lang := range GetSupportedLanguages() {
		if string(lang) == code {
			return lang, nil
		}
	}
	return "", FormatLanguageError(Language(code))
}

// FormatLanguageError creates a formatted error for unsupported languages
func FormatLanguageError(lang Language) error {
	return fmt.Errorf("%w: language %s is not supported. Supported languages: %v",
		ErrInvalidInput, string(lang), GetSupportedLanguages())
}

// snowballNames maps languages to the stemmer names understood by snowball.
// Languages missing here are left unstemmed.
var snowballNames = map[Language]string{
	English: "english",
	Spanish: "spanish",
	French:  "french",
}

func stem(token string, lang Language) string {
	name, ok := snowballNames[lang]
	if !ok {
		return token
	}
	out, err := snowball.Stem(token, name, false)
	if err != nil || out == "" {
		return token
	}
	return out
}

// stopWordCache remembers stop-word decisions per language; the library
// check runs a regexp over its input, which is too slow to repeat for every
// token of a corpus.
var stopWordCache sync.Map

// IsStopWord reports whether token is a stop word in lang. Only tokens made
// entirely of letters are looked up: the library's segmenter drops digits,
// so "a4" would otherwise be judged as "a".
func IsStopWord(token string, lang Language) bool {
	if !allLetters(token) {
		return false
	}
	key := string(lang) + "\x00" + token
	if v, ok := stopWordCache.Load(key); ok {
		return v.(bool)
	}
	isStop := strings.TrimSpace(stopwords.CleanString(token, string(lang), false)) == ""
	stopWordCache.Store(key, isStop)
	return isStop
}

func allLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.Is(unicode.Mn, r) {
			return false
		}
	}
	return true
}

// foldAccents strips combining marks so that "café" becomes "cafe".
func foldAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
