package extract

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tsawler/classify"
)

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"notes.txt":    Text,
		"Report.PDF":   PDF,
		"rows.csv":     CSV,
		"payload.json": JSON,
		"page.htm":     HTML,
		"page.html":    HTML,
	}
	for name, want := range tests {
		got, err := FormatOf(name)
		if err != nil || got != want {
			t.Errorf("FormatOf(%q) = %q, %v; want %q", name, got, err, want)
		}
	}
	for _, name := range []string{"archive.zip", "noext", "image.png"} {
		if _, err := FormatOf(name); !errors.Is(err, classify.ErrUnsupportedFormat) {
			t.Errorf("FormatOf(%q): got %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestFile(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		data     string
		expected string
	}{
		{"plain text", "a.txt", "Rocket launch today.", "Rocket launch today."},
		{"text with bom", "a.txt", "\xef\xbb\xbfhello", "hello"},
		{"csv first column", "a.csv", "text,label\nfirst row,x\n\"second, quoted\",y\n", "first row second, quoted"},
		{"csv header only", "a.csv", "text\n", ""},
		{"json object", "a.json", `{"title": "Orbit", "body": "Satellite deployed", "count": 3}`, "Orbit Satellite deployed"},
		{"json object keeps document order", "a.json", `{"z": "first", "a": {"nested": "skipped"}, "m": "second"}`, "first second"},
		{"json array", "a.json", `["a", "b"]`, `["a","b"]`},
		{"html", "a.html", `<html><head><title>x</title><style>p{}</style></head><body><p>Power play</p><script>var a;</script><div>goal</div></body></html>`, "Power play goal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := File(tt.file, []byte(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.expected {
				t.Errorf("File(%q) = %q, want %q", tt.file, got, tt.expected)
			}
		})
	}
}

func TestFileErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		want error
	}{
		{"invalid utf8", "a.txt", []byte{0xff, 0xfe, 0xfd}, classify.ErrInvalidInput},
		{"bad json", "a.json", []byte("{"), classify.ErrInvalidInput},
		{"not a pdf", "a.pdf", []byte("plain words"), classify.ErrInvalidInput},
		{"unknown type", "a.exe", []byte("MZ"), classify.ErrUnsupportedFormat},
		{"too large", "a.txt", bytes.Repeat([]byte("a"), MaxSize+1), ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := File(tt.file, tt.data); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadAll(t *testing.T) {
	data, err := ReadAll(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Errorf("ReadAll at the limit = %q, %v", data, err)
	}
	if _, err := ReadAll(strings.NewReader("123456"), 5); !errors.Is(err, ErrTooLarge) {
		t.Errorf("ReadAll over the limit: got %v", err)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("short", 10); got != "short" {
		t.Errorf("Preview = %q", got)
	}
	if got := Preview("ăâîșț and more", 5); got != "ăâîșț..." {
		t.Errorf("Preview = %q", got)
	}
}
