package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/salmonumbrella/wikinav/internal/config"
	"github.com/salmonumbrella/wikinav/internal/nav"
)

// defaultWikiURL prefixes page links when neither --wiki-url nor the
// config names one.
const defaultWikiURL = "/wiki"

// navFlags are the flags shared by render and watch.
type navFlags struct {
	page          string
	macroArgs     string
	allowedMacros string
	previewFile   string
	wikiURL       string
	title         string
	noCollapse    bool
	noEdit        bool
	noReorder     bool
	canEdit       bool
	standalone    bool
}

func (f *navFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.page, "page", nav.DefaultPage, "Page the navigation bar is shown on")
	fs.StringVar(&f.macroArgs, "macro-args", "", `Macro argument string, e.g. "TOC|Guide/TOC|nocollapse"`)
	fs.StringVar(&f.allowedMacros, "allowed-macros", "", "Comma separated inline macros allowed in TOC labels")
	fs.StringVar(&f.wikiURL, "wiki-url", "", "URL prefix of page links (default /wiki)")
	fs.StringVar(&f.title, "title", "", "Heading of the navigation bar (default Navigation)")
	fs.BoolVar(&f.noCollapse, "nocollapse", false, "Show every group expanded")
	fs.BoolVar(&f.noEdit, "noedit", false, "Never show edit links")
	fs.BoolVar(&f.noReorder, "noreorder", false, "Keep the active group in place")
	fs.BoolVar(&f.canEdit, "can-edit", false, "Render for a user allowed to edit TOC pages")
	fs.BoolVar(&f.standalone, "standalone", false, "Wrap HTML output in a complete document with the stylesheet")
}

// options merges the macro argument string, positional TOC names, flags
// and config into rendering options.
func (f *navFlags) options(cmd *cobra.Command, names []string) nav.Options {
	opts := nav.ParseArgs(f.macroArgs)
	opts.Names = append(opts.Names, names...)
	if len(opts.Names) == 0 && cfg != nil && cfg.DefaultTOC != "" {
		opts.Names = []string{cfg.DefaultTOC}
	}

	if f.noCollapse {
		opts.Collapse = false
	}
	if f.noEdit {
		opts.Edit = false
	}
	if f.noReorder {
		opts.Reorder = false
	}

	switch {
	case flagChanged(cmd, "allowed-macros"):
		opts.AllowedMacros = append([]string{}, config.SplitList(f.allowedMacros)...)
	case opts.AllowedMacros == nil && cfg != nil && len(cfg.AllowedMacros) > 0:
		opts.AllowedMacros = cfg.AllowedMacros
	}

	opts.Title = f.title
	if opts.Title == "" && cfg != nil {
		opts.Title = cfg.Title
	}
	return opts
}

func (f *navFlags) request(preview bool) nav.Request {
	base := f.wikiURL
	if base == "" && cfg != nil {
		base = cfg.WikiURL
	}
	if base == "" {
		base = defaultWikiURL
	}
	return nav.Request{
		Page:    strings.TrimSpace(f.page),
		Preview: preview,
		Editor:  f.canEdit,
		BaseURL: base,
	}
}

// invocation builds a rendering of names against the page store.
func (f *navFlags) invocation(cmd *cobra.Command, names []string) (*nav.Invocation, error) {
	inv := &nav.Invocation{
		Options: f.options(cmd, names),
		Pages:   pageStore,
		Log:     logger,
	}

	preview := f.previewFile != ""
	if preview {
		text, err := readInputSource(f.previewFile, stdinFromContext(cmd.Context()))
		if err != nil {
			return nil, err
		}
		inv.PreviewText = text
	}
	inv.Env = f.request(preview)
	return inv, nil
}

// document is a navigation bar printed as a complete HTML page.
type document struct {
	*nav.Result
}

func (d document) HTML() (string, error) {
	body, err := d.Result.HTML()
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(nav.Document(d.Title, body), "\n"), nil
}

// renderResult wraps res for --standalone.
func (f *navFlags) renderResult(res *nav.Result) interface{} {
	if f.standalone {
		return document{res}
	}
	return res
}

var renderFlags navFlags

var renderCmd = &cobra.Command{
	Use:     "render [TOC...]",
	Aliases: []string{"jpnav"},
	Short:   "Render the navigation bar of a page",
	Long: `Render the navigation bar shown on a wiki page.

The contents of the navigation bar are wiki pages themselves: TOC pages
holding an indented bullet list of links, edited like any other page.
Nesting in the list becomes nesting in the bar. Several TOC pages may be
named; each renders as its own list below a common heading. Without a
name the page "TOC" is used.

By default the bar is collapsed to the path of the current page, the
group holding the current page moves to the top, and users who may edit
see an edit link above each TOC. The macro argument string disables
these with the flags nocollapse, noreorder and noedit, and
allowed_macros=a,b sets the inline macros allowed in labels.

A group whose children are hidden shows "..." after its label. Items
indented deeper than the item before them are grouped under an empty
placeholder.

Output is HTML unless --output says otherwise; -o text draws the bar
for a terminal and -o json|yaml prints the rendered model.

Examples:
  wikinav render --page Guide/Install
  wikinav render TOC Guide/TOC --nocollapse
  wikinav render --macro-args "Guide/TOC|noreorder" --can-edit
  wikinav render --page Guide --preview-file draft.wiki --standalone`,
	Annotations: map[string]string{
		annotationMarkup: "true",
		annotationStore:  "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := renderFlags.invocation(cmd, args)
		if err != nil {
			return err
		}
		return printResult(cmd, renderFlags.renderResult(inv.Run()))
	},
}

func init() {
	renderFlags.bind(renderCmd.Flags())
	renderCmd.Flags().StringVar(&renderFlags.previewFile, "preview-file", "", "Render a preview of --page with its unsaved text read from this file (- for stdin)")
	rootCmd.AddCommand(renderCmd)
}
