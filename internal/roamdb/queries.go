package roamdb

import (
	"fmt"
	"strings"
	"time"
)

// PageSelector pulls a page with its whole block tree.
const PageSelector = "[* {:block/children ...}]"

// EscapeString escapes quotes for safe embedding in Datalog strings.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// QueryPageByTitle builds a query that finds a page entity by title.
func QueryPageByTitle(title string) string {
	return fmt.Sprintf(`[:find ?e :where [?e :node/title "%s"]]`, EscapeString(title))
}

// QueryListPages builds a query listing page titles and UIDs. A non-zero
// since restricts it to pages edited after that instant.
func QueryListPages(since time.Time) string {
	if since.IsZero() {
		return `[:find ?title ?uid
		:where
		[?p :node/title ?title]
		[?p :block/uid ?uid]]`
	}

	return fmt.Sprintf(`[:find ?title ?uid ?edit-time
		:where
		[?p :node/title ?title]
		[?p :block/uid ?uid]
		[?p :edit/time ?edit-time]
		[(> ?edit-time %d)]]`, since.UnixMilli())
}

// StartOfDay returns midnight of t in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
