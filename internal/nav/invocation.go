package nav

import (
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/toc"
	"github.com/salmonumbrella/wikinav/internal/wikitext"
)

// Pages is the store TOC pages are read from. A missing page is an empty
// string with a nil error.
type Pages interface {
	Text(name string) (string, error)
}

// Env describes the requester of a rendering.
type Env interface {
	CanEdit() bool
	CurrentPage() string
	Previewing() bool
	Href(page string) string
}

// Request is a fixed Env.
type Request struct {
	Page    string
	Preview bool
	Editor  bool
	// BaseURL prefixes page links, e.g. "https://wiki.example.org/wiki".
	BaseURL string
}

// CanEdit reports whether the requester may edit TOC pages.
func (r Request) CanEdit() bool { return r.Editor }

// CurrentPage returns the page being viewed, DefaultPage when unset.
func (r Request) CurrentPage() string {
	if r.Page == "" {
		return DefaultPage
	}
	return r.Page
}

// Previewing reports whether the requester is previewing an edit.
func (r Request) Previewing() bool { return r.Preview }

// Href returns the URL of a wiki page below BaseURL. Each path segment
// of the page name is escaped.
func (r Request) Href(page string) string {
	segments := strings.Split(page, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(r.BaseURL, "/") + "/" + strings.Join(segments, "/")
}

// Block is the rendering of one TOC page.
type Block struct {
	Name string `json:"name" yaml:"name"`
	// EditHref is empty when no edit link is shown.
	EditHref string `json:"edit_href,omitempty" yaml:"edit_href,omitempty"`
	// Matched reports whether the current page appears in the TOC.
	Matched bool `json:"matched" yaml:"matched"`
	// Collapsed reports whether Entries is the filtered forest.
	Collapsed bool         `json:"collapsed" yaml:"collapsed"`
	Entries   []*toc.Entry `json:"entries" yaml:"entries"`
}

// Result is a rendered navigation bar.
type Result struct {
	Title   string  `json:"title" yaml:"title"`
	Current string  `json:"current" yaml:"current"`
	Blocks  []Block `json:"blocks" yaml:"blocks"`
}

// Invocation renders the navigation bar for one request. It keeps no
// state between runs.
type Invocation struct {
	Options Options
	Pages   Pages
	Env     Env
	// PreviewText replaces the stored text of the current page while the
	// requester previews it.
	PreviewText string
	Log         *zap.Logger
}

// Run fetches, parses and filters every requested TOC.
func (inv *Invocation) Run() *Result {
	log := inv.Log
	if log == nil {
		log = zap.NewNop()
	}

	current := inv.Env.CurrentPage()
	formatter := inv.formatter()

	title := inv.Options.Title
	if title == "" {
		title = DefaultTitle
	}
	res := &Result{Title: title, Current: current}

	for _, name := range inv.Options.TOCNames() {
		forest := toc.Parse(inv.fetch(name, log), formatter)
		if len(forest) == 0 {
			log.Debug("TOC is empty", zap.String("toc", name))
			forest = toc.Parse(toc.EmptyText(name), formatter)
		}

		matched, filtered := Filter(forest, current, inv.Options.Reorder)
		block := Block{Name: name, Matched: matched, Entries: forest}
		if inv.Options.Collapse && matched {
			block.Entries = filtered
			block.Collapsed = true
		}
		if inv.Options.Edit && inv.Env.CanEdit() && !inv.Env.Previewing() {
			block.EditHref = inv.Env.Href(name) + "?action=edit"
		}

		log.Debug("TOC rendered",
			zap.String("toc", name),
			zap.String("current", current),
			zap.Int("entries", toc.Count(forest)),
			zap.Bool("matched", matched),
			zap.Bool("collapsed", block.Collapsed),
		)
		res.Blocks = append(res.Blocks, block)
	}
	return res
}

func (inv *Invocation) formatter() *wikitext.Formatter {
	var opts []wikitext.Option
	if inv.Options.AllowedMacros != nil {
		opts = append(opts, wikitext.WithAllowedMacros(inv.Options.AllowedMacros))
	}
	return wikitext.New(wikitext.LinkerFunc(inv.Env.Href), opts...)
}

// fetch returns the TOC text, or the unsaved text when the requester
// previews that very page. Store failures count as an empty page.
func (inv *Invocation) fetch(name string, log *zap.Logger) string {
	if inv.Env.Previewing() && name == inv.Env.CurrentPage() {
		return inv.PreviewText
	}
	if inv.Pages == nil {
		return ""
	}
	text, err := inv.Pages.Text(name)
	if err != nil {
		log.Warn("Unable to read TOC page, treating it as empty", zap.String("toc", name), zap.Error(err))
		return ""
	}
	return text
}

// Element builds the navigation bar markup.
func (r *Result) Element() *etree.Element {
	div := etree.NewElement("div")
	div.CreateAttr("class", "wiki-toc trac-nav")
	div.CreateElement("h2").CreateText(r.Title)

	for _, b := range r.Blocks {
		if b.EditHref != "" {
			edit := div.CreateElement("div")
			edit.CreateAttr("class", "edit")
			a := edit.CreateElement("a")
			a.CreateAttr("href", b.EditHref)
			a.CreateText("edit")
		}
		div.AddChild(Render(b.Entries, r.Current))
	}
	return div
}

// HTML serializes the navigation bar.
func (r *Result) HTML() (string, error) {
	return ToString(r.Element())
}

// Text renders the navigation bar for a terminal.
func (r *Result) Text() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(r.Title))
	sb.WriteString("\n")
	for _, b := range r.Blocks {
		if len(r.Blocks) > 1 {
			sb.WriteString(dimStyle.Render("[" + b.Name + "]"))
			sb.WriteString("\n")
		}
		sb.WriteString(RenderText(b.Entries, r.Current))
	}
	return sb.String()
}
