package nav

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mapPages map[string]string

func (m mapPages) Text(name string) (string, error) {
	return m[name], nil
}

type failingPages struct{}

func (failingPages) Text(string) (string, error) {
	return "", errors.New("backend down")
}

const sectionTOC = " * [wiki:A Section A]\n" +
	"  * [wiki:A1 Sub A1]\n" +
	"  * [wiki:A2 Sub A2]\n" +
	" * [wiki:B Section B]\n"

func TestInvocationExpandsActiveSection(t *testing.T) {
	inv := &Invocation{
		Options: DefaultOptions(),
		Pages:   mapPages{"TOC": sectionTOC},
		Env:     Request{Page: "A1", BaseURL: "/wiki"},
	}
	html, err := inv.Run().HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}

	want := `<div class="wiki-toc trac-nav"><h2>Navigation</h2><ul>` +
		`<li><h4><a class="wiki" href="/wiki/A">Section A</a></h4><ul>` +
		`<li class="active"><a class="wiki" href="/wiki/A1">Sub A1</a></li>` +
		`<li><a class="wiki" href="/wiki/A2">Sub A2</a></li>` +
		`</ul></li>` +
		`<li><a class="wiki" href="/wiki/B">Section B</a></li>` +
		`</ul></div>`
	if html != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, html)
	}
}

func TestInvocationCollapsesOtherSections(t *testing.T) {
	text := " * [wiki:A Section A]\n  * [wiki:A1 Sub A1]\n * [wiki:B Section B]\n  * [wiki:B1 Sub B1]\n"
	inv := &Invocation{
		Options: DefaultOptions(),
		Pages:   mapPages{"TOC": text},
		Env:     Request{Page: "B1", BaseURL: "/wiki"},
	}
	res := inv.Run()
	if len(res.Blocks) != 1 {
		t.Fatalf("expected one block, got %d", len(res.Blocks))
	}
	b := res.Blocks[0]
	if !b.Matched || !b.Collapsed {
		t.Fatalf("expected a matched collapsed block, got %+v", b)
	}
	if b.Entries[0].Link != "B" || !b.Entries[1].IsCollapsed() {
		t.Fatalf("expected B first and A collapsed, got %+v %+v", b.Entries[0], b.Entries[1])
	}

	html, err := res.HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, `<h4><a class="wiki" href="/wiki/A">Section A</a>...</h4>`) {
		t.Fatalf("expected collapsed Section A heading in %s", html)
	}
}

func TestInvocationUnmatchedRendersFullTree(t *testing.T) {
	inv := &Invocation{
		Options: DefaultOptions(),
		Pages:   mapPages{"TOC": sectionTOC},
		Env:     Request{Page: "Elsewhere"},
	}
	b := inv.Run().Blocks[0]
	if b.Matched || b.Collapsed {
		t.Fatalf("expected an unmatched full block, got %+v", b)
	}
	if len(b.Entries[0].Children) != 2 {
		t.Fatalf("expected Section A to keep its children")
	}
}

func TestInvocationNoCollapse(t *testing.T) {
	opts := ParseArgs("nocollapse")
	inv := &Invocation{
		Options: opts,
		Pages:   mapPages{"TOC": sectionTOC},
		Env:     Request{Page: "B"},
	}
	b := inv.Run().Blocks[0]
	if !b.Matched || b.Collapsed {
		t.Fatalf("expected matched but uncollapsed block, got %+v", b)
	}
}

func TestInvocationEditLink(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		env  Request
		want bool
	}{
		{name: "editor", opts: DefaultOptions(), env: Request{Editor: true, BaseURL: "/wiki"}, want: true},
		{name: "reader", opts: DefaultOptions(), env: Request{BaseURL: "/wiki"}},
		{name: "noedit", opts: ParseArgs("noedit"), env: Request{Editor: true, BaseURL: "/wiki"}},
		{name: "previewing", opts: DefaultOptions(), env: Request{Editor: true, Preview: true, BaseURL: "/wiki"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invocation{Options: tt.opts, Pages: mapPages{"TOC": sectionTOC}, Env: tt.env}
			html, err := inv.Run().HTML()
			if err != nil {
				t.Fatalf("HTML: %v", err)
			}
			edit := `<div class="edit"><a href="/wiki/TOC?action=edit">edit</a></div>`
			if got := strings.Contains(html, edit); got != tt.want {
				t.Fatalf("expected edit link %v in %s", tt.want, html)
			}
		})
	}
}

func TestInvocationEmptyTOC(t *testing.T) {
	inv := &Invocation{
		Options: ParseArgs("Missing"),
		Pages:   mapPages{},
		Env:     Request{},
	}
	res := inv.Run()
	entries := res.Blocks[0].Entries
	if len(entries) != 1 || !entries[0].IsLeaf() {
		t.Fatalf("expected a single placeholder leaf, got %+v", entries)
	}
	if want := `TOC &#34;Missing&#34; is empty!`; entries[0].Label != want {
		t.Fatalf("expected label %q, got %q", want, entries[0].Label)
	}
}

func TestInvocationPreviewOverride(t *testing.T) {
	pages := mapPages{
		"TOC":   " * [wiki:Stored]\n",
		"Guide": " * [wiki:GuideStored]\n",
	}
	inv := &Invocation{
		Options:     ParseArgs("TOC|Guide"),
		Pages:       pages,
		Env:         Request{Page: "TOC", Preview: true},
		PreviewText: " * [wiki:Draft]\n",
	}
	res := inv.Run()
	if len(res.Blocks) != 2 {
		t.Fatalf("expected two blocks, got %d", len(res.Blocks))
	}
	if got := res.Blocks[0].Entries[0].Link; got != "Draft" {
		t.Fatalf("expected previewed TOC to use draft text, got %q", got)
	}
	if got := res.Blocks[1].Entries[0].Link; got != "GuideStored" {
		t.Fatalf("expected other TOC to use stored text, got %q", got)
	}
}

func TestInvocationStoreErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inv := &Invocation{
		Options: DefaultOptions(),
		Pages:   failingPages{},
		Env:     Request{},
		Log:     zap.New(core),
	}
	res := inv.Run()
	if got := res.Blocks[0].Entries[0].Label; got != `TOC &#34;TOC&#34; is empty!` {
		t.Fatalf("expected empty TOC substitute, got %q", got)
	}
	if logs.FilterMessageSnippet("Unable to read TOC page").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
}

func TestInvocationAllowedMacros(t *testing.T) {
	text := " * [[Image(logo.png)]] [wiki:Home]\n"
	run := func(opts Options) string {
		inv := &Invocation{Options: opts, Pages: mapPages{"TOC": text}, Env: Request{}}
		return inv.Run().Blocks[0].Entries[0].Label
	}
	if got := run(DefaultOptions()); !strings.Contains(got, "<img") {
		t.Fatalf("expected image to render by default, got %q", got)
	}
	if got := run(ParseArgs("allowed_macros=")); !strings.Contains(got, "[[Image(...)]]") {
		t.Fatalf("expected image macro to be suppressed, got %q", got)
	}
}

func TestResultText(t *testing.T) {
	inv := &Invocation{
		Options: ParseArgs("TOC|Guide"),
		Pages:   mapPages{"TOC": sectionTOC, "Guide": " * [wiki:G Guide]\n"},
		Env:     Request{Page: "A1"},
	}
	out := inv.Run().Text()
	for _, want := range []string{"Navigation", "[TOC]", "[Guide]", "Sub A1", "Guide"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestRequestHref(t *testing.T) {
	tests := []struct {
		base, page, want string
	}{
		{"/wiki", "Guide/Install", "/wiki/Guide/Install"},
		{"/wiki/", "Start Page", "/wiki/Start%20Page"},
		{"", "A", "/A"},
		{"https://wiki.example.org/wiki", "C#", "https://wiki.example.org/wiki/C%23"},
	}
	for _, tt := range tests {
		if got := (Request{BaseURL: tt.base}).Href(tt.page); got != tt.want {
			t.Fatalf("Href(%q, %q): expected %q, got %q", tt.base, tt.page, tt.want, got)
		}
	}
	if got := (Request{}).CurrentPage(); got != DefaultPage {
		t.Fatalf("expected default page %q, got %q", DefaultPage, got)
	}
}
