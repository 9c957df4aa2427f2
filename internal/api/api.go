// Package api reads pages from a Roam Research graph, either through the
// cloud API or through the desktop app's Local API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/salmonumbrella/wikinav/internal/roamdb"
)

// RoamAPI is the read surface wikinav needs from a graph. Both the cloud
// Client and the LocalClient implement it.
type RoamAPI interface {
	// Query executes a Datalog query against the graph.
	Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error)

	// Pull retrieves an entity by ID with the given selector pattern.
	// The eid can be an entity ID or a lookup ref like [:block/uid "xxx"].
	Pull(ctx context.Context, eid interface{}, selector string) (json.RawMessage, error)

	// GraphName returns the name of the graph this API is connected to.
	GraphName() string

	// GetPageByTitle retrieves a page with its block tree, returning
	// NotFoundError if no page has that title.
	GetPageByTitle(ctx context.Context, title string) (*roamdb.Page, error)

	// ListPages returns page titles sorted by title. A non-zero since
	// keeps pages edited after it; a limit of 0 means no limit.
	ListPages(ctx context.Context, since time.Time, limit int) ([]roamdb.PageRef, error)
}

// Error types for specific API errors
type (
	// AuthenticationError indicates an authentication failure
	AuthenticationError struct{ Message string }
	// RateLimitError indicates rate limit exceeded
	RateLimitError struct{ Message string }
	// NotFoundError indicates a resource was not found
	NotFoundError struct{ Message string }
	// ValidationError indicates invalid input
	ValidationError struct{ Message string }
)

func (e AuthenticationError) Error() string { return e.Message }
func (e RateLimitError) Error() string      { return e.Message }
func (e NotFoundError) Error() string       { return e.Message }
func (e ValidationError) Error() string     { return e.Message }

type querier interface {
	Query(ctx context.Context, query string, args ...interface{}) ([][]interface{}, error)
	Pull(ctx context.Context, eid interface{}, selector string) (json.RawMessage, error)
}

func getPageByTitle(ctx context.Context, q querier, title string) (*roamdb.Page, error) {
	results, err := q.Query(ctx, roamdb.QueryPageByTitle(title))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || len(results[0]) == 0 {
		return nil, NotFoundError{Message: fmt.Sprintf("page not found: %s", title)}
	}

	raw, err := q.Pull(ctx, results[0][0], roamdb.PageSelector)
	if err != nil {
		return nil, err
	}
	return roamdb.ParsePage(raw)
}

func listPages(ctx context.Context, q querier, since time.Time, limit int) ([]roamdb.PageRef, error) {
	results, err := q.Query(ctx, roamdb.QueryListPages(since))
	if err != nil {
		return nil, err
	}

	refs := roamdb.ParsePageRefs(results)
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}
