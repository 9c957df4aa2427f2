package roamdb

import (
	"encoding/json"
	"sort"
	"strings"
)

// Page represents a Roam page as returned by pull.
type Page struct {
	Title    string  `json:"title"`
	UID      string  `json:"uid"`
	EditTime int64   `json:"edit_time,omitempty"`
	Children []Block `json:"children,omitempty"`
}

// UnmarshalJSON accepts both the cloud API keys (node/title) and the
// Local API keys (:node/title).
func (p *Page) UnmarshalJSON(data []byte) error {
	fields, err := parsePullFields(data)
	if err != nil {
		return err
	}
	*p = Page{}
	if err := fields.decode("node/title", &p.Title); err != nil {
		return err
	}
	if err := fields.decode("block/uid", &p.UID); err != nil {
		return err
	}
	if err := fields.decode("edit/time", &p.EditTime); err != nil {
		return err
	}
	return fields.decode("block/children", &p.Children)
}

// Block represents a Roam block as returned by pull.
type Block struct {
	String   string  `json:"string"`
	UID      string  `json:"uid"`
	Order    int     `json:"order"`
	Heading  int     `json:"heading,omitempty"`
	Children []Block `json:"children,omitempty"`
}

// UnmarshalJSON accepts both the cloud API keys (block/string) and the
// Local API keys (:block/string).
func (b *Block) UnmarshalJSON(data []byte) error {
	fields, err := parsePullFields(data)
	if err != nil {
		return err
	}
	*b = Block{}
	if err := fields.decode("block/string", &b.String); err != nil {
		return err
	}
	if err := fields.decode("block/uid", &b.UID); err != nil {
		return err
	}
	if err := fields.decode("block/order", &b.Order); err != nil {
		return err
	}
	if err := fields.decode("block/heading", &b.Heading); err != nil {
		return err
	}
	return fields.decode("block/children", &b.Children)
}

// PageRef is one row of a page listing.
type PageRef struct {
	Title    string `json:"title"`
	UID      string `json:"uid"`
	EditTime int64  `json:"edit_time,omitempty"`
}

// pullFields holds the attributes of a pulled entity keyed without the
// leading colon the Local API adds.
type pullFields map[string]json.RawMessage

func parsePullFields(data []byte) (pullFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	fields := make(pullFields, len(raw))
	for k, v := range raw {
		fields[strings.TrimPrefix(k, ":")] = v
	}
	return fields, nil
}

func (f pullFields) decode(key string, dst interface{}) error {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// NormalizeBlocks sorts blocks by order and recurses into children.
func NormalizeBlocks(blocks []Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Order < blocks[j].Order
	})
	for i := range blocks {
		NormalizeBlocks(blocks[i].Children)
	}
}
