// Package wikitext renders the one-line wiki markup used in TOC entries.
package wikitext

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/microcosm-cc/bluemonday"
)

// Linker resolves a wiki page name to a URL.
type Linker interface {
	Href(page string) string
}

// LinkerFunc adapts a function to Linker.
type LinkerFunc func(page string) string

// Href calls f(page).
func (f LinkerFunc) Href(page string) string {
	return f(page)
}

var inlineRule = regexp.MustCompile(strings.Join([]string{
	`(?P<escaped>!(?:\[\[[^\]]+\]\]|\[[^\]]+\]|wiki:[^\s\]]+|https?://[^\s\]]+))`,
	`(?P<bolditalic>''''')`,
	`(?P<bold>''')`,
	`(?P<italic>'')`,
	`(?P<underline>__)`,
	`(?P<strike>~~)`,
	`(?P<sup>\^)`,
	`(?P<sub>,,)`,
	`(?P<mono>\{\{\{.*?\}\}\}|` + "`[^`]*`" + `)`,
	`(?P<double>\[\[[^\]]+\]\])`,
	`(?P<bracket>\[(?:wiki:|https?://|ftp://|mailto:|/)[^\s\]]+(?:\s+[^\]]*)?\])`,
	`(?P<wiki>wiki:[^\s\])'"]*[^\s\])'".,;:!?])`,
	`(?P<url>https?://[^\s<>"'\]]*[^\s<>"'\].,;:!?)])`,
}, "|"))

var (
	macroCall = regexp.MustCompile(`^(\w+)(?:\((.*)\))?$`)
	urlScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
	// linkScheme lists the schemes rendered as external links.
	linkScheme = regexp.MustCompile(`(?i)^(?:https?://|ftp://|mailto:)`)
	className  = regexp.MustCompile(`^[\w -]+$`)
	imageSize  = regexp.MustCompile(`^[0-9]+(?:px|%)?$`)
)

// labelPolicy accepts the inline markup emitted by the formatter and its
// widgets. Anything else in a label is stripped.
func labelPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowURLSchemes("ftp")
	p.AllowElements("strong", "em", "u", "del", "sup", "sub", "tt", "span")
	p.AllowAttrs("class").Matching(className).OnElements("a", "img", "span")
	p.AllowAttrs("width", "height").Matching(imageSize).OnElements("img")
	return p
}

// isExternal reports whether target is an off-site URL, including
// scheme-relative ones.
func isExternal(target string) bool {
	return linkScheme.MatchString(target) || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`)
}

// unsafeTarget reports whether target carries a scheme that is not
// rendered as a link, or characters a browser would drop from a URL.
func unsafeTarget(target string) bool {
	if strings.IndexFunc(target, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return true
	}
	return urlScheme.MatchString(target) && !linkScheme.MatchString(target)
}

var toggles = map[string][]string{
	"bolditalic": {"strong", "em"},
	"bold":       {"strong"},
	"italic":     {"em"},
	"underline":  {"u"},
	"strike":     {"del"},
	"sup":        {"sup"},
	"sub":        {"sub"},
}

// Formatter renders inline wiki markup to an XHTML fragment and reports
// the first wiki link of each line. A Formatter holds no per-line state
// and may be shared.
type Formatter struct {
	linker  Linker
	allowed map[string]bool
	widgets map[string]Widget
	policy  *bluemonday.Policy
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithAllowedMacros replaces the macro allow-list. Names are matched
// case-insensitively.
func WithAllowedMacros(names []string) Option {
	return func(f *Formatter) {
		f.allowed = make(map[string]bool, len(names))
		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				f.allowed[name] = true
			}
		}
	}
}

// WithWidget registers a macro implementation. It only runs when the
// macro is also allowed.
func WithWidget(name string, w Widget) Option {
	return func(f *Formatter) {
		f.widgets[strings.ToLower(name)] = w
	}
}

// New returns a Formatter that resolves wiki links through linker.
func New(linker Linker, opts ...Option) *Formatter {
	f := &Formatter{linker: linker, widgets: defaultWidgets(), policy: labelPolicy()}
	WithAllowedMacros(DefaultAllowedMacros)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders raw and returns the sanitized label markup and the
// target of the first wiki link, if any.
func (f *Formatter) Format(raw string) (string, string) {
	doc := etree.NewDocument()
	doc.WriteSettings = etree.WriteSettings{
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	l := &line{f: f, stack: []*etree.Element{&doc.Element}}

	pos := 0
	for _, m := range inlineRule.FindAllStringSubmatchIndex(raw, -1) {
		if m[0] > pos {
			l.text(raw[pos:m[0]])
		}
		l.token(raw, m)
		pos = m[1]
	}
	if pos < len(raw) {
		l.text(raw[pos:])
	}

	ExpandEmpty(&doc.Element)
	label, err := doc.WriteToString()
	if err != nil {
		return "", l.link
	}
	return f.policy.Sanitize(label), l.link
}

// line accumulates the markup of a single TOC line.
type line struct {
	f     *Formatter
	stack []*etree.Element
	link  string
}

func (l *line) cur() *etree.Element {
	return l.stack[len(l.stack)-1]
}

func (l *line) text(s string) {
	if s != "" {
		l.cur().CreateText(s)
	}
}

func (l *line) open(tag string) *etree.Element {
	el := l.cur().CreateElement(tag)
	l.stack = append(l.stack, el)
	return el
}

// toggle closes tag when it is open, reopening anything nested inside
// it, and opens it otherwise.
func (l *line) toggle(tag string) {
	for i := len(l.stack) - 1; i > 0; i-- {
		if l.stack[i].Tag != tag {
			continue
		}
		var reopen []string
		for _, el := range l.stack[i+1:] {
			reopen = append(reopen, el.Tag)
		}
		l.stack = l.stack[:i]
		for _, t := range reopen {
			l.open(t)
		}
		return
	}
	l.open(tag)
}

func (l *line) token(raw string, m []int) {
	s := raw[m[0]:m[1]]
	for _, name := range inlineRule.SubexpNames() {
		if name == "" {
			continue
		}
		g := inlineRule.SubexpIndex(name)
		if m[2*g] < 0 {
			continue
		}
		switch name {
		case "escaped":
			l.text(s[1:])
		case "mono":
			el := l.cur().CreateElement("tt")
			if strings.HasPrefix(s, "{{{") {
				el.CreateText(s[3 : len(s)-3])
			} else {
				el.CreateText(s[1 : len(s)-1])
			}
		case "double":
			l.double(s[2 : len(s)-2])
		case "bracket":
			l.bracket(s[1 : len(s)-1])
		case "wiki":
			l.wikiLink(strings.TrimPrefix(s, "wiki:"), s)
		case "url":
			l.extLink(s, s)
		default:
			for _, tag := range toggles[name] {
				l.toggle(tag)
			}
		}
		return
	}
	l.text(s)
}

// double handles [[...]], which is either a macro call or a link.
func (l *line) double(inner string) {
	if m := macroCall.FindStringSubmatch(inner); m != nil {
		name := m[1]
		hasArgs := strings.Contains(inner, "(")
		if hasArgs || l.f.isMacro(name) {
			l.macro(name, m[2], hasArgs)
			return
		}
	}

	target, label, _ := strings.Cut(inner, "|")
	target = strings.TrimSpace(target)
	label = strings.TrimSpace(label)
	if strings.HasPrefix(target, "wiki:") {
		page := strings.TrimPrefix(target, "wiki:")
		if label == "" {
			label = page
		}
		l.wikiLink(page, label)
		return
	}
	if isExternal(target) {
		if label == "" {
			label = target
		}
		l.extLink(target, label)
		return
	}
	if urlScheme.MatchString(target) {
		l.text("[[" + inner + "]]")
		return
	}
	page := target
	if label == "" {
		label = page
	}
	l.wikiLink(page, label)
}

func (l *line) bracket(inner string) {
	target, label := inner, ""
	if i := strings.IndexAny(inner, " \t"); i >= 0 {
		target, label = inner[:i], strings.TrimSpace(inner[i:])
	}
	switch {
	case strings.HasPrefix(target, "wiki:"):
		page := strings.TrimPrefix(target, "wiki:")
		if label == "" {
			label = page
		}
		l.wikiLink(page, label)
	default:
		if label == "" {
			label = target
		}
		l.extLink(target, label)
	}
}

// wikiLink emits a link to a wiki page and records it when it is the
// first one of the line.
func (l *line) wikiLink(target, label string) {
	page, fragment := target, ""
	if i := strings.IndexAny(target, "#?"); i >= 0 {
		page, fragment = target[:i], target[i:]
	}
	if page == "" {
		l.text(label)
		return
	}
	if l.link == "" {
		l.link = page
	}
	a := l.cur().CreateElement("a")
	a.CreateAttr("class", "wiki")
	a.CreateAttr("href", l.f.linker.Href(page)+fragment)
	a.CreateText(label)
}

// extLink emits a link to a local path or an external URL. Targets with
// any other scheme stay literal text.
func (l *line) extLink(href, label string) {
	if unsafeTarget(href) {
		l.text(label)
		return
	}
	a := l.cur().CreateElement("a")
	if !isExternal(href) {
		a.CreateAttr("href", href)
	} else {
		a.CreateAttr("class", "ext-link")
		a.CreateAttr("href", href)
	}
	a.CreateText(label)
}

func (l *line) macro(name, args string, hasArgs bool) {
	key := strings.ToLower(name)
	switch key {
	case "br":
		l.text(" ")
		return
	case "comment":
		return
	}
	if w, ok := l.f.widgets[key]; ok && l.f.allowed[key] {
		w(l.cur(), parseArgs(args))
		return
	}
	if hasArgs {
		l.text("[[" + name + "(...)]]")
	} else {
		l.text("[[" + name + "]]")
	}
}

func (f *Formatter) isMacro(name string) bool {
	key := strings.ToLower(name)
	if key == "br" || key == "comment" {
		return true
	}
	_, ok := f.widgets[key]
	return ok || f.allowed[key]
}

// voidElements never carry content in HTML.
var voidElements = map[string]bool{"br": true, "hr": true, "img": true, "input": true, "meta": true, "link": true}

// ExpandEmpty gives every empty non-void element below el an empty text
// child so it serializes with an explicit end tag.
func ExpandEmpty(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if len(child.Child) == 0 && !voidElements[child.Tag] {
			child.CreateText("")
			continue
		}
		ExpandEmpty(child)
	}
}
