package nav

import "github.com/salmonumbrella/wikinav/internal/toc"

// Filter reports whether current appears anywhere in forest and returns a
// pruned copy of it. Groups off the active path keep their heading but
// lose their children; link-less groups are never collapsed. With
// reorder, matched top-level groups are moved to the front.
//
// The input forest is not modified.
func Filter(forest []*toc.Entry, current string, reorder bool) (bool, []*toc.Entry) {
	return filter(forest, current, reorder, 0)
}

func filter(forest []*toc.Entry, current string, reorder bool, depth int) (bool, []*toc.Entry) {
	found := false
	var front []*toc.Entry
	result := make([]*toc.Entry, 0, len(forest))

	for _, e := range forest {
		self := e.Link != "" && e.Link == current
		if e.IsLeaf() {
			if self {
				found = true
			}
			result = append(result, &toc.Entry{Link: e.Link, Label: e.Label})
			continue
		}

		subFound, sub := filter(e.Children, current, reorder, depth+1)
		matched := subFound || self
		if matched {
			found = true
		}

		switch {
		case matched && reorder && depth == 0:
			front = append(front, withChildren(e, sub))
		case matched || e.Link == "":
			result = append(result, withChildren(e, sub))
		default:
			result = append(result, withChildren(e, []*toc.Entry{}))
		}
	}

	if len(front) > 0 {
		result = append(front, result...)
	}
	return found, result
}

// withChildren copies group e with children in place of its own.
func withChildren(e *toc.Entry, children []*toc.Entry) *toc.Entry {
	return &toc.Entry{Link: e.Link, Label: e.Label, Group: true, Placeholder: e.Placeholder, Children: children}
}
