package roamdb

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ParsePage parses a pull response into a Page and normalizes children order.
func ParsePage(raw json.RawMessage) (*Page, error) {
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	NormalizeBlocks(page.Children)
	return &page, nil
}

// ParsePageRefs converts the rows of a QueryListPages result, sorted by
// title. Rows that are not [title uid] or [title uid edit-time] are
// skipped.
func ParsePageRefs(rows [][]interface{}) []PageRef {
	refs := make([]PageRef, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		title, ok := row[0].(string)
		if !ok {
			continue
		}
		ref := PageRef{Title: title}
		ref.UID, _ = row[1].(string)
		if len(row) > 2 {
			switch v := row[2].(type) {
			case float64:
				ref.EditTime = int64(v)
			case json.Number:
				ref.EditTime, _ = v.Int64()
			}
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Title < refs[j].Title
	})
	return refs
}
