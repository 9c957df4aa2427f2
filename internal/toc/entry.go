package toc

import "fmt"

// Entry is one node of a navigation tree.
//
// Link is empty for group headers without a wiki link and for
// placeholders. Group distinguishes a leaf (false) from an entry that
// owns a child collection; a group with no children is collapsed.
// Placeholder marks groups synthesized by Build for broken indentation;
// entries parsed from a bullet never carry it.
type Entry struct {
	Link        string   `json:"link,omitempty" yaml:"link,omitempty"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Group       bool     `json:"group,omitempty" yaml:"group,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Children    []*Entry `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsLeaf reports whether the entry never had a nested list.
func (e *Entry) IsLeaf() bool {
	return !e.Group
}

// IsPlaceholder reports whether the entry was synthesized for broken
// indentation.
func (e *Entry) IsPlaceholder() bool {
	return e.Placeholder
}

// IsCollapsed reports whether the entry is a group whose children exist
// but are hidden.
func (e *Entry) IsCollapsed() bool {
	return e.Group && len(e.Children) == 0
}

// Item is a formatted bullet line ready to be placed in the tree.
type Item struct {
	Indent int
	Link   string
	Label  string
}

// Formatter renders the inline markup of one bullet line and reports
// the first wiki link it contains.
type Formatter interface {
	Format(raw string) (label, link string)
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(raw string) (label, link string)

// Format calls f(raw).
func (f FormatterFunc) Format(raw string) (string, string) {
	return f(raw)
}

// InvariantError reports a defect in forest construction. It is raised
// with panic and must never be recovered as a normal error.
type InvariantError struct {
	Level     int
	Lookahead int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("toc: indentation bookkeeping out of sync (level %d, lookahead %d)", e.Level, e.Lookahead)
}

// Count returns the number of entries in the forest, placeholders included.
func Count(forest []*Entry) int {
	count := len(forest)
	for _, e := range forest {
		count += Count(e.Children)
	}
	return count
}
