package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/nav"
	"github.com/salmonumbrella/wikinav/internal/toc"
	"github.com/salmonumbrella/wikinav/internal/wikitext"
)

// treeResult is the parsed, unfiltered forest of one TOC page.
type treeResult struct {
	Name    string       `json:"name" yaml:"name"`
	Count   int          `json:"count" yaml:"count"`
	Entries []*toc.Entry `json:"entries" yaml:"entries"`
}

func (r treeResult) Text() string {
	return nav.RenderText(r.Entries, "")
}

func (r treeResult) HTML() (string, error) {
	return nav.ToString(nav.Render(r.Entries, ""))
}

var treeFlags navFlags

var treeCmd = &cobra.Command{
	Use:   "tree [TOC]",
	Short: "Show the parsed tree of a TOC page",
	Long: `Parse a TOC page and print its entries without filtering.

Useful to check how indentation was understood: groups, leaves and the
placeholders inserted where a list skips a level.

Examples:
  wikinav tree
  wikinav tree Guide/TOC -o json`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := treeFlags.options(cmd, args)
		name := opts.TOCNames()[0]

		text, err := pageStore.Text(name)
		if err != nil {
			return err
		}

		var fopts []wikitext.Option
		if opts.AllowedMacros != nil {
			fopts = append(fopts, wikitext.WithAllowedMacros(opts.AllowedMacros))
		}
		req := treeFlags.request(false)
		forest := toc.Parse(text, wikitext.New(wikitext.LinkerFunc(req.Href), fopts...))
		logger.Debug("Parsed TOC", zap.String("toc", name), zap.Int("entries", toc.Count(forest)))

		return printResult(cmd, treeResult{Name: name, Count: toc.Count(forest), Entries: forest})
	},
}

func init() {
	fs := treeCmd.Flags()
	fs.StringVar(&treeFlags.allowedMacros, "allowed-macros", "", "Comma separated inline macros allowed in TOC labels")
	fs.StringVar(&treeFlags.wikiURL, "wiki-url", "", "URL prefix of page links (default /wiki)")
	rootCmd.AddCommand(treeCmd)
}
