package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/api"
	"github.com/salmonumbrella/wikinav/internal/roamdb"
)

// DefaultRoamTimeout bounds a single page read from a graph.
const DefaultRoamTimeout = time.Minute

// Roam reads pages from a Roam graph. A page's block tree becomes a
// bullet list, one space of indent per level.
type Roam struct {
	client  api.RoamAPI
	timeout time.Duration
	log     *zap.Logger
}

// RoamOption configures a Roam store.
type RoamOption func(*Roam)

// WithRoamTimeout sets the per-read timeout.
func WithRoamTimeout(d time.Duration) RoamOption {
	return func(r *Roam) { r.timeout = d }
}

// WithRoamLogger sets the logger.
func WithRoamLogger(log *zap.Logger) RoamOption {
	return func(r *Roam) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRoam returns a store backed by client.
func NewRoam(client api.RoamAPI, opts ...RoamOption) *Roam {
	r := &Roam{client: client, timeout: DefaultRoamTimeout, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Text returns the bullet list of page name, or "" when the graph has no
// such page.
func (r *Roam) Text(name string) (string, error) {
	return r.TextContext(context.Background(), name)
}

// TextContext is Text with a caller supplied context.
func (r *Roam) TextContext(ctx context.Context, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	page, err := r.client.GetPageByTitle(ctx, name)
	if err != nil {
		var nf api.NotFoundError
		if errors.As(err, &nf) {
			r.log.Debug("Page not in graph", zap.String("graph", r.client.GraphName()), zap.String("page", name))
			return "", nil
		}
		return "", fmt.Errorf("read page %s from graph %s: %w", name, r.client.GraphName(), err)
	}
	return BlocksText(page.Children), nil
}

// List returns the titles of all pages in the graph.
func (r *Roam) List() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	refs, err := r.client.ListPages(ctx, time.Time{}, 0)
	if err != nil {
		return nil, fmt.Errorf("list pages of graph %s: %w", r.client.GraphName(), err)
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Title)
	}
	return names, nil
}

// BlocksText renders a block tree as a bullet list. Multi-line blocks are
// joined onto one line. Empty blocks emit no bullet of their own.
func BlocksText(blocks []roamdb.Block) string {
	var sb strings.Builder
	writeBlocks(&sb, blocks, 1)
	return sb.String()
}

func writeBlocks(sb *strings.Builder, blocks []roamdb.Block, depth int) {
	for _, block := range blocks {
		text := strings.Join(strings.Fields(block.String), " ")
		if text != "" {
			sb.WriteString(strings.Repeat(" ", depth))
			sb.WriteString("* ")
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		if len(block.Children) > 0 {
			writeBlocks(sb, block.Children, depth+1)
		}
	}
}
