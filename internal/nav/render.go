package nav

import (
	"github.com/beevik/etree"

	"github.com/salmonumbrella/wikinav/internal/toc"
	"github.com/salmonumbrella/wikinav/internal/wikitext"
)

// Ellipsis is appended to the heading of a collapsed group.
const Ellipsis = "..."

// Render builds the nested <ul> for forest, marking entries linking to
// current as active.
func Render(forest []*toc.Entry, current string) *etree.Element {
	ul := etree.NewElement("ul")
	renderEntries(ul, forest, current)
	if len(ul.Child) == 0 {
		ul.CreateText("")
	}
	wikitext.ExpandEmpty(ul)
	return ul
}

func renderEntries(ul *etree.Element, entries []*toc.Entry, current string) {
	for _, e := range entries {
		li := ul.CreateElement("li")
		active := e.Link != "" && e.Link == current

		switch {
		case e.IsLeaf():
			if active {
				li.CreateAttr("class", "active")
			}
			appendLabel(li, e.Label)
			continue
		case e.IsPlaceholder():
			li.CreateAttr("class", "placeholder")
		default:
			if active {
				li.CreateAttr("class", "active")
			}
			h4 := li.CreateElement("h4")
			appendLabel(h4, e.Label)
			if e.IsCollapsed() && e.Link != "" {
				h4.CreateText(Ellipsis)
			}
		}

		if len(e.Children) > 0 {
			renderEntries(li.CreateElement("ul"), e.Children, current)
		}
	}
}

// appendLabel copies the label markup into parent. Markup that is not
// well formed is inserted as text.
func appendLabel(parent *etree.Element, label string) {
	if label == "" {
		return
	}
	frag, ok := parseLabel(label)
	if !ok {
		parent.CreateText(label)
		return
	}
	for _, tok := range append([]etree.Token(nil), frag.Child...) {
		parent.AddChild(tok)
	}
}

func parseLabel(label string) (*etree.Element, bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString("<label>" + label + "</label>"); err != nil {
		return nil, false
	}
	root := doc.Root()
	if root == nil {
		return nil, false
	}
	return root, true
}

// PlainLabel returns the text content of label markup. Images contribute
// their alt text.
func PlainLabel(label string) string {
	frag, ok := parseLabel(label)
	if !ok {
		return label
	}
	var out []byte
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, tok := range el.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				out = append(out, t.Data...)
			case *etree.Element:
				if t.Tag == "img" {
					out = append(out, t.SelectAttrValue("alt", "")...)
					continue
				}
				walk(t)
			}
		}
	}
	walk(frag)
	return string(out)
}

// writeSettings keeps quotes unescaped in text, matching the labels
// produced by wikitext.
var writeSettings = etree.WriteSettings{
	CanonicalText:    true,
	CanonicalAttrVal: true,
}

// ToString serializes el.
func ToString(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.WriteSettings = writeSettings
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}
