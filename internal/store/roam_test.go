package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/salmonumbrella/wikinav/internal/api"
	"github.com/salmonumbrella/wikinav/internal/roamdb"
)

type fakeGraph struct {
	pages map[string]*roamdb.Page
	err   error
}

func (f *fakeGraph) Query(context.Context, string, ...interface{}) ([][]interface{}, error) {
	return nil, nil
}

func (f *fakeGraph) Pull(context.Context, interface{}, string) (json.RawMessage, error) {
	return nil, nil
}

func (f *fakeGraph) GraphName() string { return "test-graph" }

func (f *fakeGraph) GetPageByTitle(ctx context.Context, title string) (*roamdb.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("expected a deadline")
	}
	page, ok := f.pages[title]
	if !ok {
		return nil, api.NotFoundError{Message: "page not found: " + title}
	}
	return page, nil
}

func (f *fakeGraph) ListPages(context.Context, time.Time, int) ([]roamdb.PageRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []roamdb.PageRef{{Title: "Guide"}, {Title: "TOC"}}, nil
}

func TestRoamText(t *testing.T) {
	graph := &fakeGraph{pages: map[string]*roamdb.Page{
		"TOC": {Title: "TOC", Children: []roamdb.Block{
			{String: "[[Guide]]", Children: []roamdb.Block{
				{String: "[[Install]]"},
				{String: "multi\nline  block"},
			}},
			{String: "", Children: []roamdb.Block{{String: "[[Orphan]]"}}},
			{String: "[[FAQ]]"},
		}},
	}}

	r := NewRoam(graph, WithRoamLogger(zaptest.NewLogger(t)), WithRoamTimeout(time.Second))
	got, err := r.Text("TOC")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := " * [[Guide]]\n" +
		"  * [[Install]]\n" +
		"  * multi line block\n" +
		"  * [[Orphan]]\n" +
		" * [[FAQ]]\n"
	if got != want {
		t.Fatalf("expected\n%q\ngot\n%q", want, got)
	}
}

func TestRoamTextMissingPage(t *testing.T) {
	r := NewRoam(&fakeGraph{pages: map[string]*roamdb.Page{}})
	got, err := r.Text("Nope")
	if err != nil || got != "" {
		t.Fatalf("expected empty text and no error, got %q, %v", got, err)
	}
}

func TestRoamTextError(t *testing.T) {
	r := NewRoam(&fakeGraph{err: api.AuthenticationError{Message: "invalid API token"}})
	_, err := r.Text("TOC")
	var auth api.AuthenticationError
	if !errors.As(err, &auth) {
		t.Fatalf("expected wrapped AuthenticationError, got %v", err)
	}
}

func TestRoamList(t *testing.T) {
	names, err := NewRoam(&fakeGraph{}).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"Guide", "TOC"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}
