// Package capability answers which suppliers can provide a given part type.
// The table is kept apart from snapshots; several backings are provided.
package capability

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/systemshift/supplygraph/internal/propgraph"
)

// Table maps part types to the suppliers able to provide them.
type Table interface {
	SuppliersFor(ctx context.Context, partType string) ([]string, error)
}

// Static is an in-memory table keyed by supplier id.
type Static map[string][]string

// SuppliersFor returns matching supplier ids in sorted order. Part types
// compare case-insensitively.
func (s Static) SuppliersFor(ctx context.Context, partType string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	for supplier, types := range s {
		for _, pt := range types {
			if strings.EqualFold(strings.TrimSpace(pt), strings.TrimSpace(partType)) {
				out = append(out, supplier)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// yamlFile is the on-disk layout:
//
//	suppliers:
//	  S_001: [metal, plastic]
type yamlFile struct {
	Suppliers map[string][]string `yaml:"suppliers"`
}

// LoadYAML reads a capability table from path.
func LoadYAML(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capability table: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a capability table document.
func ParseYAML(data []byte) (Static, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing capability table: %w", err)
	}
	if f.Suppliers == nil {
		return Static{}, nil
	}
	return Static(f.Suppliers), nil
}

// FromGraph derives a table from the supplied_part_types attribute of the
// SUPPLIERS nodes in g.
func FromGraph(g *propgraph.Graph) Static {
	t := Static{}
	for _, n := range g.NodesOfType("SUPPLIERS") {
		t[n.ID] = propgraph.Strings(n.Attrs, "supplied_part_types")
	}
	return t
}
