// Package normalize turns a positionally encoded snapshot into a property
// graph and a per-type node index.
//
// Node arrays carry the node id as their last element. The schema may or may
// not name that slot, so an array is either exactly as long as its schema or
// one longer. Edge arrays end with source id then target id and may likewise
// be as long as the schema or two longer. Anything else is a schema mismatch:
// attributes are never truncated or padded.
package normalize

import (
	"fmt"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/snapshot"
)

const (
	NodeTypeAttr         = "node_type"
	RelationshipTypeAttr = "relationship_type"
)

// TypeIndex maps node type -> node id -> the node's full positional array.
type TypeIndex map[string]map[string][]any

// Build converts snap into a property graph. Types are processed in lexical
// order so that errors are reported deterministically.
func Build(snap *snapshot.Snapshot) (*propgraph.Graph, error) {
	g := propgraph.New(snap.Directed)

	for _, typ := range snap.SortedNodeTypes() {
		schema, ok := snap.NodeTypes[typ]
		if !ok {
			return nil, &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: -1, Reason: "no schema declared"}
		}
		for row, arr := range snap.NodeValues[typ] {
			id, err := NodeID(typ, schema, row, arr)
			if err != nil {
				return nil, err
			}
			n := &propgraph.Node{ID: id, Type: typ, Attrs: nodeAttrs(typ, schema, arr)}
			if err := g.AddNode(n); err != nil {
				return nil, &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row, Reason: err.Error()}
			}
		}
	}

	for _, rel := range snap.SortedRelationshipTypes() {
		schema, ok := snap.RelationshipTypes[rel]
		if !ok {
			return nil, &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: -1, Reason: "unknown relationship type"}
		}
		for row, arr := range snap.LinkValues[rel] {
			src, dst, err := EdgeEndpoints(rel, schema, row, arr)
			if err != nil {
				return nil, err
			}
			e := &propgraph.Edge{Source: src, Target: dst, Type: rel, Attrs: edgeAttrs(rel, schema, arr)}
			if err := g.AddEdge(e); err != nil {
				return nil, &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: row, Reason: err.Error()}
			}
		}
	}
	return g, nil
}

// BuildTypeIndex builds the per-type node index straight from the raw node
// arrays, without constructing a graph. The arrays are shared with snap.
func BuildTypeIndex(snap *snapshot.Snapshot) (TypeIndex, error) {
	idx := make(TypeIndex, len(snap.NodeValues))
	seen := make(map[string]string)

	for _, typ := range snap.SortedNodeTypes() {
		schema, ok := snap.NodeTypes[typ]
		if !ok {
			return nil, &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: -1, Reason: "no schema declared"}
		}
		byID := make(map[string][]any, len(snap.NodeValues[typ]))
		for row, arr := range snap.NodeValues[typ] {
			id, err := NodeID(typ, schema, row, arr)
			if err != nil {
				return nil, err
			}
			if prev, dup := seen[id]; dup {
				return nil, &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row,
					Reason: fmt.Sprintf("duplicate node id %q (already a %s)", id, prev)}
			}
			seen[id] = typ
			byID[id] = arr
		}
		idx[typ] = byID
	}
	return idx, nil
}

// NodeID validates a node array against its schema and returns its id.
func NodeID(typ string, schema []string, row int, arr []any) (string, error) {
	if len(arr) == 0 {
		return "", &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row, Reason: "empty value array"}
	}
	if len(arr) < len(schema) {
		return "", &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row,
			Reason: fmt.Sprintf("array has %d values, schema declares %d", len(arr), len(schema))}
	}
	if len(arr) > len(schema)+1 {
		return "", &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row,
			Reason: fmt.Sprintf("array has %d values, schema declares %d plus id", len(arr), len(schema))}
	}
	id, ok := arr[len(arr)-1].(string)
	if !ok || id == "" {
		return "", &errs.SchemaMismatchError{Kind: "node", Name: typ, Row: row,
			Reason: fmt.Sprintf("node id %v is not a non-empty string", arr[len(arr)-1])}
	}
	return id, nil
}

// EdgeEndpoints validates an edge array against its schema and returns its
// source and target ids.
func EdgeEndpoints(rel string, schema []string, row int, arr []any) (string, string, error) {
	if len(arr) < 2 || len(arr) < len(schema) {
		return "", "", &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: row,
			Reason: fmt.Sprintf("array has %d values, schema declares %d", len(arr), len(schema))}
	}
	if len(arr) != len(schema) && len(arr) != len(schema)+2 {
		return "", "", &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: row,
			Reason: fmt.Sprintf("array has %d values, schema declares %d plus endpoints", len(arr), len(schema))}
	}
	src, ok1 := arr[len(arr)-2].(string)
	dst, ok2 := arr[len(arr)-1].(string)
	if !ok1 || !ok2 || src == "" || dst == "" {
		return "", "", &errs.SchemaMismatchError{Kind: "relationship", Name: rel, Row: row,
			Reason: fmt.Sprintf("endpoints %v -> %v are not non-empty strings", arr[len(arr)-2], arr[len(arr)-1])}
	}
	return src, dst, nil
}

func nodeAttrs(typ string, schema []string, arr []any) map[string]any {
	attrs := make(map[string]any, len(schema)+1)
	for i, name := range schema {
		attrs[name] = arr[i]
	}
	if v, ok := attrs[NodeTypeAttr]; !ok || v == nil {
		attrs[NodeTypeAttr] = typ
	}
	return attrs
}

func edgeAttrs(rel string, schema []string, arr []any) map[string]any {
	attrs := make(map[string]any, len(schema)+1)
	for i, name := range schema {
		if i >= len(arr)-2 {
			break
		}
		attrs[name] = arr[i]
	}
	attrs[RelationshipTypeAttr] = rel
	return attrs
}
