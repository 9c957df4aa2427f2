package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/nav"
	"github.com/salmonumbrella/wikinav/internal/output"
	"github.com/salmonumbrella/wikinav/internal/store"
)

var (
	watchFlags    navFlags
	watchOut      string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [TOC...]",
	Short: "Re-render the navigation bar whenever a TOC page changes",
	Long: `Render the navigation bar, then render it again every time one of
its TOC pages changes on disk. Only the dir backend can be watched.

The result replaces --out on every change, or is printed to stdout when
no file is given. Stop with Ctrl-C.

Examples:
  wikinav watch --pages-dir wiki --out nav.html
  wikinav watch TOC Guide/TOC --page Guide --standalone --out preview.html`,
	Annotations: map[string]string{
		annotationMarkup: "true",
		annotationStore:  "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, ok := pageStore.(*store.Dir)
		if !ok {
			return fmt.Errorf("watch needs the dir backend")
		}

		inv, err := watchFlags.invocation(cmd, args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runWatch(ctx, cmd, dir, inv)
	},
}

func init() {
	watchFlags.bind(watchCmd.Flags())
	watchCmd.Flags().StringVar(&watchOut, "out", "", "File the rendering is written to (default stdout)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", store.DefaultDebounce, "Quiet period before re-rendering")
	rootCmd.AddCommand(watchCmd)
}

// runWatch renders once and again after every change to a TOC page of
// inv, until ctx is done.
func runWatch(ctx context.Context, cmd *cobra.Command, dir *store.Dir, inv *nav.Invocation) error {
	render := func() error {
		var buf bytes.Buffer
		res := watchFlags.renderResult(inv.Run())
		if err := output.NewPrinter(&buf, GetOutputFormat()).Print(ctx, res); err != nil {
			return err
		}
		return writeRendering(cmd, buf.Bytes())
	}

	if err := render(); err != nil {
		return err
	}

	names := inv.Options.TOCNames()
	return dir.Watch(ctx, func(pages []string) {
		if !slices.ContainsFunc(pages, func(p string) bool { return slices.Contains(names, p) }) {
			logger.Debug("Changed pages are not TOC pages", zap.Strings("pages", pages))
			return
		}
		if err := render(); err != nil {
			logger.Error("Unable to render navigation bar", zap.Error(err))
			return
		}
		logger.Info("Navigation bar updated", zap.Strings("pages", pages), zap.String("out", watchOut))
	}, store.WithDebounce(watchDebounce), store.WithWatchLogger(logger))
}

// writeRendering replaces --out, or prints to stdout without it.
func writeRendering(cmd *cobra.Command, data []byte) error {
	if watchOut == "" {
		_, err := stdout(cmd).Write(data)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(watchOut), ".wikinav-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", watchOut, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", watchOut, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", watchOut, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", watchOut, err)
	}
	if err := os.Rename(tmp.Name(), watchOut); err != nil {
		return fmt.Errorf("write %s: %w", watchOut, err)
	}
	return nil
}
