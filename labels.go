package classify

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// A LabelSpace is the ordered set of category names. Ids are positions.
type LabelSpace struct {
	names   []string
	display []string
	index   map[string]int
}

// NewLabelSpace builds a label space from names in id order. Display names
// come from FormatCategoryName with the given overrides.
func NewLabelSpace(names []string, overrides map[string]string) (*LabelSpace, error) {
	if len(names) == 0 {
		return nil, invalidInput("label space is empty")
	}
	ls := &LabelSpace{
		names:   append([]string(nil), names...),
		display: make([]string, len(names)),
		index:   make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			return nil, invalidInput("label %d has an empty name", i)
		}
		if _, dup := ls.index[n]; dup {
			return nil, invalidInput("duplicate label %q", n)
		}
		ls.index[n] = i
		ls.display[i] = FormatCategoryName(n, overrides)
	}
	return ls, nil
}

// Len returns K.
func (ls *LabelSpace) Len() int {
	return len(ls.names)
}

// Names returns a copy of the names in id order.
func (ls *LabelSpace) Names() []string {
	return append([]string(nil), ls.names...)
}

// DisplayNames returns a copy of the display names in id order.
func (ls *LabelSpace) DisplayNames() []string {
	return append([]string(nil), ls.display...)
}

// Name returns the name of id, or "" when id is out of range.
func (ls *LabelSpace) Name(id int) string {
	if id < 0 || id >= len(ls.names) {
		return ""
	}
	return ls.names[id]
}

// DisplayName returns the display name of id, or "" when id is out of range.
func (ls *LabelSpace) DisplayName(id int) string {
	if id < 0 || id >= len(ls.display) {
		return ""
	}
	return ls.display[id]
}

// ID returns the id of name.
func (ls *LabelSpace) ID(name string) (int, bool) {
	id, ok := ls.index[name]
	return id, ok
}

// withDisplayNames replaces the display names, used when loading a model
// whose names were formatted with overrides no longer at hand.
func (ls *LabelSpace) withDisplayNames(display []string) {
	if len(display) == len(ls.names) {
		copy(ls.display, display)
	}
}

var categoryPrefixes = map[string]string{
	"alt":  "Alternative",
	"comp": "Computers",
	"misc": "Miscellaneous",
	"rec":  "Recreation",
	"sci":  "Science",
	"soc":  "Society",
	"talk": "Talk",
}

// FormatCategoryName turns a dotted newsgroup-style name into a display
// name: "rec.sport.hockey" becomes "Recreation - Sport - Hockey". An entry
// in overrides wins over the generated form.
func FormatCategoryName(name string, overrides map[string]string) string {
	if v, ok := overrides[name]; ok {
		return v
	}
	title := cases.Title(language.English)
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return title.String(strings.NewReplacer(".", " ", "-", " ", "_", " ").Replace(name))
	}

	prefix, ok := categoryPrefixes[parts[0]]
	if !ok {
		prefix = title.String(parts[0])
	}
	out := []string{prefix}
	for _, p := range parts[1:] {
		out = append(out, title.String(strings.NewReplacer("-", " ", "_", " ").Replace(p)))
	}
	return strings.Join(out, " - ")
}
