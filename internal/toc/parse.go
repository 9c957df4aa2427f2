package toc

import (
	"fmt"
	"regexp"
	"strings"
)

// listRule matches one bullet line: leading whitespace, "*", at least one
// space, then the entry text.
var listRule = regexp.MustCompile(`(?m)^([ \t\v]*)\* +(.*)$`)

// end is the lookahead value once every item has been consumed.
const end = -1

// Line is one matched bullet line of a TOC page.
type Line struct {
	Indent int
	Raw    string
}

// ScanLines returns the bullet lines of text in source order. Lines that
// are not bullets are skipped.
func ScanLines(text string) []Line {
	matches := listRule.FindAllStringSubmatch(text, -1)
	lines := make([]Line, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, Line{
			Indent: len(m[1]),
			Raw:    strings.TrimRight(m[2], "\r"),
		})
	}
	return lines
}

// Parse turns an indented bullet list into a forest. Every bullet is
// passed through f. Text without bullets yields an empty forest.
func Parse(text string, f Formatter) []*Entry {
	lines := ScanLines(text)
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		label, link := f.Format(line.Raw)
		items = append(items, Item{Indent: line.Indent, Link: link, Label: label})
	}
	return Build(items)
}

// EmptyText is the TOC text substituted for a TOC page without entries.
func EmptyText(name string) string {
	return fmt.Sprintf(" * TOC %q is empty!", name)
}

// Build nests items by indentation. A deeper item without a shallower
// predecessor is grouped under a placeholder entry.
func Build(items []Item) []*Entry {
	if len(items) == 0 {
		return nil
	}
	b := &builder{items: items}
	forest := b.level(0)
	if b.lookahead() != end {
		panic(&InvariantError{Level: 0, Lookahead: b.lookahead()})
	}
	return forest
}

type builder struct {
	items []Item
	pos   int
}

func (b *builder) lookahead() int {
	if b.pos >= len(b.items) {
		return end
	}
	return b.items[b.pos].Indent
}

func (b *builder) next() Item {
	item := b.items[b.pos]
	b.pos++
	return item
}

// level builds the entries at the given nesting level and stops at the
// first item indented less than level.
func (b *builder) level(level int) []*Entry {
	var entries []*Entry

	if b.lookahead() > level {
		sub := b.level(level + 1)
		if b.lookahead() < level {
			// this level is empty, everything belongs to an ancestor
			return sub
		}
		entries = append(entries, &Entry{Group: true, Placeholder: true, Children: sub})
	}

	for b.lookahead() == level {
		item := b.next()
		entry := &Entry{Link: item.Link, Label: item.Label}
		if b.lookahead() > level {
			entry.Group = true
			entry.Children = b.level(level + 1)
		}
		entries = append(entries, entry)
	}

	if b.lookahead() > level {
		panic(&InvariantError{Level: level, Lookahead: b.lookahead()})
	}
	return entries
}
