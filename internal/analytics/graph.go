// Package analytics holds the dashboard queries over one graph or over every
// timestamp of a store: product profitability and demand, warehouse capacity
// and storage cost, supplier usage and per-node details.
package analytics

import (
	"math"
	"sort"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/propgraph"
)

const (
	typeProduct   = "PRODUCT_OFFERING"
	typeWarehouse = "WAREHOUSE"
	typeSupplier  = "SUPPLIERS"

	relWarehousePart     = "WAREHOUSEToPARTS"
	relSupplierWarehouse = "SUPPLIERSToWAREHOUSE"
	relFamilyProduct     = "PRODUCT_FAMILYToPRODUCT_OFFERING"
)

// DefaultHeadroom is the free-capacity fraction under which a warehouse is
// considered near capacity.
const DefaultHeadroom = 0.15

// Product is a product offering with its cost and demand.
type Product struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Cost   float64 `json:"cost"`
	Demand float64 `json:"demand"`
}

// ProfitableProducts returns product offerings with cost <= maxCost and
// demand >= minDemand, ordered by id. A product without a cost never
// qualifies.
func ProfitableProducts(g *propgraph.Graph, maxCost, minDemand float64) []Product {
	out := []Product{}
	for _, n := range g.NodesOfType(typeProduct) {
		cost := propgraph.FloatOr(n.Attrs, "cost", math.Inf(1))
		demand := propgraph.FloatOr(n.Attrs, "demand", 0)
		if cost <= maxCost && demand >= minDemand {
			out = append(out, Product{ID: n.ID, Name: propgraph.String(n.Attrs, "name"), Cost: cost, Demand: demand})
		}
	}
	return out
}

// WarehouseLoad is a warehouse's capacity usage.
type WarehouseLoad struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Location        string  `json:"location"`
	MaxCapacity     float64 `json:"max_capacity"`
	CurrentCapacity float64 `json:"current_capacity"`
}

// WarehousesNearCapacity lists warehouses whose free capacity is at most
// headroom times their maximum capacity.
func WarehousesNearCapacity(g *propgraph.Graph, headroom float64) ([]WarehouseLoad, error) {
	if headroom < 0 || headroom > 1 {
		return nil, errs.InvalidArgument("headroom must be within [0, 1], got %g", headroom)
	}
	out := []WarehouseLoad{}
	for _, n := range g.NodesOfType(typeWarehouse) {
		maxCap := propgraph.FloatOr(n.Attrs, "max_capacity", 0)
		cur := propgraph.FloatOr(n.Attrs, "current_capacity", 0)
		if maxCap > 0 && maxCap-cur <= headroom*maxCap {
			out = append(out, WarehouseLoad{
				ID:              n.ID,
				Name:            propgraph.String(n.Attrs, "name"),
				Location:        propgraph.String(n.Attrs, "location"),
				MaxCapacity:     maxCap,
				CurrentCapacity: cur,
			})
		}
	}
	return out, nil
}

// WarehouseCost is a warehouse with the summed storage cost of its parts.
type WarehouseCost struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Location         string  `json:"location"`
	TotalStorageCost float64 `json:"total_storage_cost"`
}

// WarehouseStorageCosts totals the part storage cost of every warehouse,
// cheapest first.
func WarehouseStorageCosts(g *propgraph.Graph) []WarehouseCost {
	out := []WarehouseCost{}
	for _, n := range g.NodesOfType(typeWarehouse) {
		total := 0.0
		for _, e := range g.OutEdges(n.ID) {
			if e.Type == relWarehousePart {
				total += propgraph.FloatOr(e.Attrs, "storage_cost", 0)
			}
		}
		out = append(out, WarehouseCost{
			ID:               n.ID,
			Name:             propgraph.String(n.Attrs, "name"),
			Location:         propgraph.String(n.Attrs, "location"),
			TotalStorageCost: total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalStorageCost < out[j].TotalStorageCost })
	return out
}

// PartStock is one part held by a warehouse.
type PartStock struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Inventory   float64 `json:"inventory_level"`
	StorageCost float64 `json:"storage_cost"`
}

// PartsInWarehouse lists the parts stocked by warehouse w.
func PartsInWarehouse(g *propgraph.Graph, w string) ([]PartStock, error) {
	if _, err := nodeOfType(g, w, typeWarehouse); err != nil {
		return nil, err
	}
	out := []PartStock{}
	for _, e := range g.OutEdges(w) {
		if e.Type != relWarehousePart {
			continue
		}
		ps := PartStock{
			ID:          e.Target,
			Inventory:   propgraph.FloatOr(e.Attrs, "inventory_level", 0),
			StorageCost: propgraph.FloatOr(e.Attrs, "storage_cost", 0),
		}
		if p, ok := g.Node(e.Target); ok {
			ps.Name = propgraph.String(p.Attrs, "name")
			ps.Type = propgraph.String(p.Attrs, "type")
		}
		out = append(out, ps)
	}
	return out, nil
}

// SupplierInfo describes a supplier and the part types it provides.
type SupplierInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Reliability float64  `json:"reliability"`
	PartTypes   []string `json:"supplied_part_types"`
}

func supplierInfo(n *propgraph.Node) SupplierInfo {
	return SupplierInfo{
		ID:          n.ID,
		Name:        propgraph.String(n.Attrs, "name"),
		Location:    propgraph.String(n.Attrs, "location"),
		Reliability: propgraph.FloatOr(n.Attrs, "reliability", 0),
		PartTypes:   propgraph.Strings(n.Attrs, "supplied_part_types"),
	}
}

// SuppliersOfWarehouse lists the suppliers delivering to warehouse w.
func SuppliersOfWarehouse(g *propgraph.Graph, w string) ([]SupplierInfo, error) {
	if _, err := nodeOfType(g, w, typeWarehouse); err != nil {
		return nil, err
	}
	out := []SupplierInfo{}
	seen := make(map[string]struct{})
	for _, e := range g.InEdges(w) {
		if e.Type != relSupplierWarehouse {
			continue
		}
		if _, ok := seen[e.Source]; ok {
			continue
		}
		seen[e.Source] = struct{}{}
		if n, ok := g.Node(e.Source); ok {
			out = append(out, supplierInfo(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UnusedSuppliers lists suppliers with no edges at all.
func UnusedSuppliers(g *propgraph.Graph) []SupplierInfo {
	out := []SupplierInfo{}
	for _, n := range g.NodesOfType(typeSupplier) {
		if g.Degree(n.ID) == 0 {
			out = append(out, supplierInfo(n))
		}
	}
	return out
}

// EdgeDetail is one edge incident to a node, with its attributes.
type EdgeDetail struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   string         `json:"relationship_type"`
	Attrs  map[string]any `json:"attributes"`
}

type NodeDetail struct {
	ID    string         `json:"id"`
	Type  string         `json:"node_type"`
	Attrs map[string]any `json:"attributes"`
	Edges []EdgeDetail   `json:"edges"`
}

// NodeDetails returns a node's attributes and every edge touching it.
func NodeDetails(g *propgraph.Graph, id string) (*NodeDetail, error) {
	n, ok := g.Node(id)
	if !ok {
		return nil, errs.NotFound("node", id)
	}
	d := &NodeDetail{ID: n.ID, Type: n.Type, Attrs: n.Attrs, Edges: []EdgeDetail{}}
	for _, e := range g.Incident(id) {
		d.Edges = append(d.Edges, EdgeDetail{Source: e.Source, Target: e.Target, Type: e.Type, Attrs: e.Attrs})
	}
	return d, nil
}

func nodeOfType(g *propgraph.Graph, id, typ string) (*propgraph.Node, error) {
	n, ok := g.Node(id)
	if !ok || n.Type != typ {
		return nil, errs.NotFound(typ, id)
	}
	return n, nil
}
