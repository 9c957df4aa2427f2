package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliRun is the result of one command line execution.
type cliRun struct {
	out    string
	stderr string
	err    error
}

// runCLI executes args against rootCmd with captured IO, an empty
// environment and a fresh HOME. Global CLI state is restored afterwards.
func runCLI(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()
	restore := snapshotCLIState()
	defer restore()

	t.Setenv("HOME", t.TempDir())
	prevEnvGet := envGet
	envGet = func(string) string { return "" }
	defer func() { envGet = prevEnvGet }()

	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetContext(context.Background())
	rootCmd.SetArgs(args)

	err := Execute()
	return cliRun{out: out.String(), stderr: errBuf.String(), err: err}
}

// writePages creates a page directory holding pages, keyed by page name.
func writePages(t *testing.T, pages map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range pages {
		path := filepath.Join(dir, filepath.FromSlash(name)+".wiki")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatalf("write page: %v", err)
		}
	}
	return dir
}

// writeConfig writes a config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func snapshotCLIState() func() {
	prevOutputFmt := outputFmt
	prevOutputType := outputType
	prevDebug := debug
	prevLogLevel := logLevel
	prevConfig := configFile
	prevQueryExpr := queryExpr
	prevQueryFile := queryFile
	prevErrorFmt := errorFmt
	prevResultLimit := resultLimit
	prevResultSort := resultSort
	prevResultDesc := resultDesc
	prevBackend := backendName
	prevPagesDir := pagesDir
	prevGraph := graphName
	prevToken := apiToken
	prevUseLocal := useLocal

	prevCfg := cfg
	prevStore := pageStore
	prevLogger := logger

	prevRender := renderFlags
	prevTree := treeFlags
	prevWatch := watchFlags
	prevWatchOut := watchOut
	prevWatchDebounce := watchDebounce
	prevLoginToken := loginToken
	prevLoginGraph := loginGraph
	prevEncrypted := encryptedGraph
	prevVerify := verifyAuth

	prevOut := rootCmd.OutOrStdout()
	prevErr := rootCmd.ErrOrStderr()
	prevIn := rootCmd.InOrStdin()
	prevCtx := rootCmd.Context()

	return func() {
		outputFmt = prevOutputFmt
		outputType = prevOutputType
		debug = prevDebug
		logLevel = prevLogLevel
		configFile = prevConfig
		queryExpr = prevQueryExpr
		queryFile = prevQueryFile
		errorFmt = prevErrorFmt
		resultLimit = prevResultLimit
		resultSort = prevResultSort
		resultDesc = prevResultDesc
		backendName = prevBackend
		pagesDir = prevPagesDir
		graphName = prevGraph
		apiToken = prevToken
		useLocal = prevUseLocal

		cfg = prevCfg
		pageStore = prevStore
		logger = prevLogger

		renderFlags = prevRender
		treeFlags = prevTree
		watchFlags = prevWatch
		watchOut = prevWatchOut
		watchDebounce = prevWatchDebounce
		loginToken = prevLoginToken
		loginGraph = prevLoginGraph
		encryptedGraph = prevEncrypted
		verifyAuth = prevVerify

		rootCmd.SetOut(prevOut)
		rootCmd.SetErr(prevErr)
		rootCmd.SetIn(prevIn)
		rootCmd.SetContext(prevCtx)
		rootCmd.SetArgs(nil)
		resetCommands(rootCmd)
	}
}

// resetFlagChanges clears the changed state of every flag of cmd.
func resetFlagChanges(cmdFlagSet interface {
	Flags() *pflag.FlagSet
	PersistentFlags() *pflag.FlagSet
	InheritedFlags() *pflag.FlagSet
},
) {
	if cmdFlagSet == nil {
		return
	}
	cmdFlagSet.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
	cmdFlagSet.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
	cmdFlagSet.InheritedFlags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
}

// resetCommands clears flag and context state left on the command tree
// by an execution.
func resetCommands(cmd *cobra.Command) {
	resetFlagChanges(cmd)
	if cmd != rootCmd {
		cmd.SetContext(context.Background())
	}
	for _, sub := range cmd.Commands() {
		resetCommands(sub)
	}
}
