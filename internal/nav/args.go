package nav

import "strings"

const (
	// DefaultTOC is the TOC page rendered when no name is requested.
	DefaultTOC = "TOC"
	// DefaultPage is the current page when the requester names none.
	DefaultPage = "WikiStart"
	// DefaultTitle is the heading of the navigation bar.
	DefaultTitle = "Navigation"
)

// Options control one rendering of the navigation bar.
type Options struct {
	// Names are the TOC pages to render, in order.
	Names []string `json:"names" yaml:"names"`
	// Collapse hides the children of groups off the active path.
	Collapse bool `json:"collapse" yaml:"collapse"`
	// Edit shows an edit link above each TOC for editors.
	Edit bool `json:"edit" yaml:"edit"`
	// Reorder moves the active top-level group to the front.
	Reorder bool `json:"reorder" yaml:"reorder"`
	// AllowedMacros overrides the inline macro allow-list when non-nil.
	AllowedMacros []string `json:"allowed_macros,omitempty" yaml:"allowed_macros,omitempty"`
	// Title is the heading text; DefaultTitle when empty.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// DefaultOptions returns the options used when no argument is given.
func DefaultOptions() Options {
	return Options{Collapse: true, Edit: true, Reorder: true}
}

// ParseArgs parses a pipe-separated macro argument string such as
// "Guide|API|nocollapse|allowed_macros=image,span". Tokens that are not
// flags name TOC pages.
func ParseArgs(args string) Options {
	opts := DefaultOptions()
	for _, arg := range strings.Split(args, "|") {
		arg = strings.TrimSpace(arg)
		switch {
		case arg == "":
		case arg == "nocollapse":
			opts.Collapse = false
		case arg == "noedit":
			opts.Edit = false
		case arg == "noreorder":
			opts.Reorder = false
		case strings.HasPrefix(arg, "allowed_macros="):
			opts.AllowedMacros = splitList(strings.TrimPrefix(arg, "allowed_macros="))
		default:
			opts.Names = append(opts.Names, arg)
		}
	}
	return opts
}

// TOCNames returns the requested TOC pages, or DefaultTOC.
func (o Options) TOCNames() []string {
	if len(o.Names) == 0 {
		return []string{DefaultTOC}
	}
	return o.Names
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
