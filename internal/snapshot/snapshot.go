// Package snapshot holds the raw, positionally encoded supply-chain state for
// one timestamp and the sources that produce it.
//
// A Snapshot is consumed verbatim:
//
//	{
//	  "directed": bool,
//	  "node_types": { typeName: [attrName, ...] },
//	  "node_values": { typeName: [ [attr0, ..., nodeId], ... ] },
//	  "relationship_types": { relName: [attrName, ...] },
//	  "link_values": { relName: [ [attr0, ..., sourceId, targetId], ... ] }
//	}
//
// Snapshots are treated as immutable once decoded. Nothing in this module
// writes to one after Decode returns.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Snapshot is the complete supply-chain graph state at one timestamp.
type Snapshot struct {
	Directed          bool                `json:"directed"`
	NodeTypes         map[string][]string `json:"node_types"`
	NodeValues        map[string][][]any  `json:"node_values"`
	RelationshipTypes map[string][]string `json:"relationship_types"`
	LinkValues        map[string][][]any  `json:"link_values"`
}

// Decode reads one JSON snapshot from r.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &s, nil
}

// Encode writes s as JSON to w.
func Encode(w io.Writer, s *Snapshot) error {
	if err := json.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// SortedNodeTypes returns the node type names in lexical order.
func (s *Snapshot) SortedNodeTypes() []string {
	return sortedKeys(s.NodeValues)
}

// SortedRelationshipTypes returns the relationship names present in
// link_values in lexical order.
func (s *Snapshot) SortedRelationshipTypes() []string {
	return sortedKeys(s.LinkValues)
}

func sortedKeys(m map[string][][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
