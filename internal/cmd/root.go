// Package cmd implements the wikinav command line.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/salmonumbrella/wikinav/internal/config"
	"github.com/salmonumbrella/wikinav/internal/logging"
	"github.com/salmonumbrella/wikinav/internal/output"
	"github.com/salmonumbrella/wikinav/internal/store"
)

var (
	// Version is set at build time
	version = "dev"
	// Commit is set at build time
	commit = "none"
	// Date is set at build time
	date = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(versionLine() + "\n")
}

// Command annotations read by the root command.
const (
	// annotationMarkup marks commands that print HTML unless told otherwise.
	annotationMarkup = "wikinav/markup"
	// annotationStore marks commands that read pages.
	annotationStore = "wikinav/store"
	// annotationNoConfig marks command trees that manage the config file
	// and so must not fail on a broken one.
	annotationNoConfig = "wikinav/no-config"
)

// Global flags
var (
	outputFmt   string
	outputType  output.Format
	debug       bool
	logLevel    string
	configFile  string
	queryExpr   string
	queryFile   string
	errorFmt    string
	resultLimit int
	resultSort  string
	resultDesc  bool
	backendName string
	pagesDir    string
	graphName   string
	apiToken    string
	useLocal    bool
)

// Shared state set up before a command runs.
var (
	cfg       *config.Config
	pageStore store.PageStore
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "wikinav",
	Short: "Render wiki navigation bars from TOC pages",
	Long: `wikinav renders the navigation bar of a wiki page from one or more
TOC pages: indented bullet lists of links.

TOC pages are read from a directory of .wiki files or from a Roam
Research graph.

Environment Variables:
  WIKINAV_PAGES_DIR         Page directory of the dir backend
  WIKINAV_KEYRING_BACKEND   Keyring backend (auto|keychain|file|...)
  ROAM_API_TOKEN            Roam API token for the roam backend
  ROAM_GRAPH_NAME           Roam graph for the roam backend`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isConfigCommand(cmd) {
			loaded, err := loadConfigFromFlag()
			if err != nil {
				return formatConfigLoadError(err)
			}
			cfg = loaded
		} else {
			cfg = &config.Config{}
		}

		format, err := resolveOutputFormat(cmd, cfg)
		if err != nil {
			return err
		}
		outputType = format
		outputFmt = string(format)

		if queryExpr != "" && queryFile != "" {
			return fmt.Errorf("use only one of --query or --query-file")
		}
		if queryFile != "" {
			loaded, err := readInputSource(queryFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			queryExpr = strings.TrimSpace(loaded)
		}

		if err := validateErrorFormat(errorFmt); err != nil {
			return err
		}

		level := logLevel
		if !flagChanged(cmd, "log-level") && cfg.LogLevel != "" {
			level = cfg.LogLevel
		}
		if debug {
			level = logging.LevelDebug
		}
		log, err := newLogger(level, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = log

		ctx := cmd.Context()
		ctx = withIO(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		ctx = output.WithFormat(ctx, outputType)
		ctx = output.WithQuery(ctx, queryExpr)
		ctx = output.WithLimit(ctx, resultLimit)
		ctx = output.WithSort(ctx, resultSort, resultDesc)
		ctx = WithErrorFormat(ctx, errorFmt)
		cmd.SetContext(ctx)

		if cmd.Annotations[annotationStore] == "" {
			return nil
		}
		pageStore, err = newPageStore(cmd, cfg, logger)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		ctx := rootCmd.Context()
		if cmd != nil && cmd.Context() != nil {
			ctx = cmd.Context()
		}
		printCommandError(ctx, err)
		return err
	}
	return nil
}

// GetOutputFormat returns the configured output format
func GetOutputFormat() output.Format {
	if outputType != "" {
		return outputType
	}
	parsed, err := output.ParseFormat(outputFmt)
	if err != nil {
		return output.FormatText
	}
	return parsed
}

func init() {
	rootCmd.SetVersionTemplate(versionLine() + "\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&outputFmt, "output", "o", "text", "Output format (text|json|ndjson|table|yaml|html)")
	pf.StringVar(&queryExpr, "query", "", "jq expression to filter JSON output")
	pf.StringVar(&queryFile, "query-file", "", "Read jq expression from file (use - for stdin)")
	pf.StringVar(&errorFmt, "error-format", "auto", "Error output format (auto|text|json|yaml)")
	pf.IntVar(&resultLimit, "result-limit", 0, "Limit number of results in list output (0 = unlimited)")
	pf.StringVar(&resultSort, "result-sort-by", "", "Sort list output by field")
	pf.BoolVar(&resultDesc, "result-desc", false, "Sort list output in descending order")
	pf.BoolVar(&debug, "debug", false, "Enable debug logging")
	pf.StringVar(&logLevel, "log-level", logging.LevelNormal, "Log level (none|normal|debug)")
	pf.StringVar(&configFile, "config", "", "Config file (default: ~/.config/wikinav/config.yaml)")
	pf.StringVar(&backendName, "backend", "", "Page store backend (dir|roam)")
	pf.StringVar(&pagesDir, "pages-dir", "", "Page directory of the dir backend (env: WIKINAV_PAGES_DIR)")
	pf.StringVarP(&graphName, "graph", "g", "", "Roam graph name (env: ROAM_GRAPH_NAME)")
	pf.StringVar(&apiToken, "token", "", "Roam API token (env: ROAM_API_TOKEN)")
	pf.BoolVar(&useLocal, "local", false, "Read the Roam graph through the desktop app's Local API")
}

// resolveOutputFormat picks the format: --output, then config, then the
// command default. Data commands switch to JSON when stdout is not a
// terminal; markup commands keep HTML.
func resolveOutputFormat(cmd *cobra.Command, cfg *config.Config) (output.Format, error) {
	if flagChanged(cmd, "output") {
		return output.ParseFormat(outputFmt)
	}
	if cfg != nil && strings.TrimSpace(cfg.OutputFormat) != "" {
		return output.ParseFormat(cfg.OutputFormat)
	}
	if cmd.Annotations[annotationMarkup] != "" {
		return output.FormatHTML, nil
	}
	if !isTerminal(cmd.OutOrStdout()) {
		return output.FormatJSON, nil
	}
	return output.FormatText, nil
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoConfig] != "" {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func versionLine() string {
	return fmt.Sprintf("wikinav version %s (commit: %s, built: %s)", version, commit, date)
}
