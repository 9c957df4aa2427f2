// Package store reads wiki pages from a directory or a Roam graph.
package store

// PageStore is a source of wiki page text. A missing page is not an
// error: Text returns an empty string.
type PageStore interface {
	Text(name string) (string, error)
	List() ([]string, error)
}
