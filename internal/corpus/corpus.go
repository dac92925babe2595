// Package corpus loads labeled text collections from CSV and JSONL files and
// maps category names onto dense label ids.
package corpus

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tsawler/classify"
)

// Record is one raw example: document text and its category name.
type Record struct {
	Text     string
	Category string
}

// Options names the fields holding the text and the category.
type Options struct {
	TextColumn  string
	LabelColumn string
}

// DefaultOptions matches the newsgroup exports: "text" and "category_name".
func DefaultOptions() Options {
	return Options{TextColumn: "text", LabelColumn: "category_name"}
}

func (o Options) withDefaults() Options {
	if o.TextColumn == "" {
		o.TextColumn = "text"
	}
	if o.LabelColumn == "" {
		o.LabelColumn = "category_name"
	}
	return o
}

// ErrNoRecords is returned when a source holds no usable rows.
var ErrNoRecords = errors.New("corpus has no records")

// LoadCSV reads a CSV stream with a header row.
func LoadCSV(r io.Reader, opts Options) ([]Record, error) {
	opts = opts.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	textCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case opts.TextColumn:
			textCol = i
		case opts.LabelColumn:
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("%w: header %v lacks %q or %q", classify.ErrInvalidInput, header, opts.TextColumn, opts.LabelColumn)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if textCol >= len(row) || labelCol >= len(row) {
			return nil, fmt.Errorf("%w: line %d has %d fields", classify.ErrInvalidInput, line, len(row))
		}
		category := strings.TrimSpace(row[labelCol])
		if category == "" {
			return nil, fmt.Errorf("%w: line %d has no category", classify.ErrInvalidInput, line)
		}
		records = append(records, Record{Text: row[textCol], Category: category})
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// LoadJSONL reads one JSON object per line. Blank lines are skipped.
func LoadJSONL(r io.Reader, opts Options) ([]Record, error) {
	opts = opts.withDefaults()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	var records []Record
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", classify.ErrInvalidInput, line, err)
		}
		text, _ := obj[opts.TextColumn].(string)
		category := strings.TrimSpace(fmt.Sprint(obj[opts.LabelColumn]))
		if obj[opts.LabelColumn] == nil || category == "" {
			return nil, fmt.Errorf("%w: line %d has no %q", classify.ErrInvalidInput, line, opts.LabelColumn)
		}
		records = append(records, Record{Text: text, Category: category})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// LoadFile reads path as format ("csv" or "jsonl"). An empty format is
// inferred from the extension.
func LoadFile(path, format string, opts Options) ([]Record, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson":
			format = "jsonl"
		default:
			format = "csv"
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	switch strings.ToLower(format) {
	case "csv":
		records, err = LoadCSV(f, opts)
	case "jsonl", "ndjson":
		records, err = LoadJSONL(f, opts)
	default:
		return nil, fmt.Errorf("%w: corpus format %q", classify.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	return records, nil
}

// SelectCategories keeps the records whose category is listed and numbers
// the categories in sorted order from 0. With no categories given, every
// category present is kept. Asking for a category with no records is an
// error.
func SelectCategories(records []Record, categories []string) ([]classify.LabeledDocument, []string, error) {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Category]++
	}

	var names []string
	if len(categories) == 0 {
		for name := range counts {
			names = append(names, name)
		}
	} else {
		seen := make(map[string]bool)
		for _, name := range categories {
			name = strings.TrimSpace(name)
			if seen[name] {
				continue
			}
			seen[name] = true
			if counts[name] == 0 {
				return nil, nil, fmt.Errorf("%w: category %q has no documents", classify.ErrInvalidInput, name)
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil, ErrNoRecords
	}
	sort.Strings(names)

	ids := make(map[string]int, len(names))
	for i, name := range names {
		ids[name] = i
	}
	var docs []classify.LabeledDocument
	for _, r := range records {
		if id, ok := ids[r.Category]; ok {
			docs = append(docs, classify.LabeledDocument{Text: r.Text, Label: id})
		}
	}
	return docs, names, nil
}

// Distribution counts documents per label id.
func Distribution(docs []classify.LabeledDocument, k int) []int {
	out := make([]int, k)
	for _, d := range docs {
		if d.Label >= 0 && d.Label < k {
			out[d.Label]++
		}
	}
	return out
}
