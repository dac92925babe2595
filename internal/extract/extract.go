// Package extract pulls plain text out of uploaded files so they can be
// classified like typed input.
package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/tsawler/classify"
)

// MaxSize is the largest upload accepted.
const MaxSize = 16 << 20

// Format is a supported upload type, named by its file extension.
type Format string

const (
	Text Format = "txt"
	CSV  Format = "csv"
	JSON Format = "json"
	PDF  Format = "pdf"
	HTML Format = "html"
)

var (
	// ErrTooLarge is returned for inputs above the size limit.
	ErrTooLarge = errors.New("file exceeds the upload limit")
	// ErrNoText is returned when a file yields no text at all, as with a
	// scanned PDF.
	ErrNoText = errors.New("no text could be extracted")
)

// Formats lists the accepted formats.
func Formats() []Format {
	return []Format{Text, CSV, JSON, PDF, HTML}
}

// FormatOf picks the format from a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "txt", "text", "md":
		return Text, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "pdf":
		return PDF, nil
	case "html", "htm":
		return HTML, nil
	}
	return "", fmt.Errorf("%w: %q", classify.ErrUnsupportedFormat, filepath.Ext(name))
}

// ReadAll reads r up to limit bytes and fails with ErrTooLarge beyond it.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxSize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// File extracts the text of an upload named name.
func File(name string, data []byte) (string, error) {
	format, err := FormatOf(name)
	if err != nil {
		return "", err
	}
	return Bytes(format, data)
}

// Bytes extracts the text of data in the given format.
func Bytes(format Format, data []byte) (string, error) {
	if len(data) > MaxSize {
		return "", ErrTooLarge
	}
	var (
		text string
		err  error
	)
	switch format {
	case Text:
		text, err = plain(data)
	case CSV:
		text, err = firstColumn(data)
	case JSON:
		text, err = jsonStrings(data)
	case PDF:
		text, err = pdfText(data)
	case HTML:
		text, err = htmlText(data)
	default:
		return "", fmt.Errorf("%w: %q", classify.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	if format == PDF && strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func plain(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", classify.ErrInvalidInput)
	}
	return string(data), nil
}

// firstColumn joins the first field of every row after the header.
func firstColumn(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: %v", classify.ErrInvalidInput, err)
	}
	if len(rows) < 2 {
		return "", nil
	}
	parts := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) > 0 {
			parts = append(parts, row[0])
		}
	}
	return strings.Join(parts, " "), nil
}

// jsonStrings joins the string values of a top-level object in the order
// they appear in the document. Any other document is rendered back as
// compact JSON text.
func jsonStrings(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("%w: %v", classify.ErrInvalidInput, err)
	}
	if _, ok := v.(map[string]any); !ok {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return "", err
	}
	var parts []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return "", err
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return "", err
		}
		if s, ok := val.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", classify.ErrInvalidInput, err)
	}
	rd, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// htmlText collects the text nodes of a page, skipping scripts and styles.
func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", classify.ErrInvalidInput, err)
	}

	var parts []string
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)
	return strings.Join(parts, " "), nil
}

// Preview shortens text to at most n runes, marking the cut with "...".
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
