// Package fixture builds small supply-chain snapshots for tests. The schemas
// match the simulator's output.
package fixture

import (
	"github.com/systemshift/supplygraph/internal/snapshot"
)

// Schemas emitted by the simulator.
var (
	NodeSchemas = map[string][]string{
		"BUSINESS_GROUP":   {"node_type", "name", "description", "revenue", "id"},
		"PRODUCT_FAMILY":   {"node_type", "name", "revenue", "id"},
		"PRODUCT_OFFERING": {"node_type", "name", "cost", "demand", "id"},
		"FACILITY":         {"node_type", "name", "type", "location", "max_capacity", "operating_cost", "id"},
		"PARTS":            {"node_type", "name", "type", "subtype", "cost", "importance_factor", "valid_from", "valid_till", "id"},
		"SUPPLIERS":        {"node_type", "name", "location", "reliability", "size", "size_category", "supplied_part_types", "id"},
		"WAREHOUSE":        {"node_type", "name", "type", "location", "size_category", "max_capacity", "current_capacity", "safety_stock", "max_parts", "id"},
	}
	RelationshipSchemas = map[string][]string{
		"BUSINESS_GROUPToPRODUCT_FAMILY":   {"relationship_type", "source", "target"},
		"PRODUCT_FAMILYToPRODUCT_OFFERING": {"relationship_type", "source", "target"},
		"FACILITYToPRODUCT_OFFERING":       {"relationship_type", "product_cost", "lead_time", "quantity", "source", "target"},
		"FACILITYToPARTS":                  {"relationship_type", "production_cost", "lead_time", "quantity", "source", "target"},
		"PARTSToFACILITY":                  {"relationship_type", "quantity", "distance", "transport_cost", "lead_time", "source", "target"},
		"SUPPLIERSToWAREHOUSE":             {"relationship_type", "transportation_cost", "lead_time", "source", "target"},
		"WAREHOUSEToPARTS":                 {"relationship_type", "inventory_level", "storage_cost", "source", "target"},
		"WAREHOUSEToPRODUCT_OFFERING":      {"relationship_type", "inventory_level", "storage_cost", "source", "target"},
	}
)

// Builder assembles a snapshot row by row.
type Builder struct {
	snap *snapshot.Snapshot
}

// New starts an empty snapshot that declares every simulator schema.
func New(directed bool) *Builder {
	s := &snapshot.Snapshot{
		Directed:          directed,
		NodeTypes:         make(map[string][]string, len(NodeSchemas)),
		NodeValues:        make(map[string][][]any),
		RelationshipTypes: make(map[string][]string, len(RelationshipSchemas)),
		LinkValues:        make(map[string][][]any),
	}
	for k, v := range NodeSchemas {
		s.NodeTypes[k] = v
	}
	for k, v := range RelationshipSchemas {
		s.RelationshipTypes[k] = v
	}
	return &Builder{snap: s}
}

// Node appends a raw node array to typ.
func (b *Builder) Node(typ string, values ...any) *Builder {
	b.snap.NodeValues[typ] = append(b.snap.NodeValues[typ], values)
	return b
}

// Link appends a raw edge array to rel.
func (b *Builder) Link(rel string, values ...any) *Builder {
	b.snap.LinkValues[rel] = append(b.snap.LinkValues[rel], values)
	return b
}

func (b *Builder) Product(id string, cost, demand float64) *Builder {
	return b.Node("PRODUCT_OFFERING", "PRODUCT_OFFERING", "product "+id, cost, demand, id)
}

func (b *Builder) Family(id string, revenue float64) *Builder {
	return b.Node("PRODUCT_FAMILY", "PRODUCT_FAMILY", "family "+id, revenue, id)
}

func (b *Builder) Warehouse(id string, maxCapacity, currentCapacity float64) *Builder {
	return b.Node("WAREHOUSE", "WAREHOUSE", "warehouse "+id, "supplier", "Berlin", "medium",
		maxCapacity, currentCapacity, 10.0, 50.0, id)
}

func (b *Builder) Facility(id string, operatingCost float64) *Builder {
	return b.Node("FACILITY", "FACILITY", "facility "+id, "outsource", "Austin", 1000.0, operatingCost, id)
}

func (b *Builder) Part(id, partType string, cost float64) *Builder {
	return b.Node("PARTS", "PARTS", "part "+id, partType, "steel", cost, 0.5, 0.0, 10.0, id)
}

func (b *Builder) Supplier(id, location string, reliability, size float64, sizeCategory string, partTypes ...string) *Builder {
	types := make([]any, len(partTypes))
	for i, pt := range partTypes {
		types[i] = pt
	}
	return b.Node("SUPPLIERS", "SUPPLIERS", "supplier "+id, location, reliability, size, sizeCategory, types, id)
}

// Stock links a warehouse to a product offering with inventory on hand.
func (b *Builder) Stock(warehouse, product string, inventory, storageCost float64) *Builder {
	return b.Link("WAREHOUSEToPRODUCT_OFFERING", "WAREHOUSEToPRODUCT_OFFERING", inventory, storageCost, warehouse, product)
}

// StockPart links a warehouse to a part with inventory on hand.
func (b *Builder) StockPart(warehouse, part string, inventory, storageCost float64) *Builder {
	return b.Link("WAREHOUSEToPARTS", "WAREHOUSEToPARTS", inventory, storageCost, warehouse, part)
}

// Produces links a facility to a product offering it manufactures.
func (b *Builder) Produces(facility, product string) *Builder {
	return b.Link("FACILITYToPRODUCT_OFFERING", "FACILITYToPRODUCT_OFFERING", 5.0, 1.0, 1.0, facility, product)
}

// Requires links a facility to a part it consumes per product unit.
func (b *Builder) Requires(facility, part string, quantity, cost, leadTime float64) *Builder {
	return b.Link("FACILITYToPARTS", "FACILITYToPARTS", cost, leadTime, quantity, facility, part)
}

func (b *Builder) Supplies(supplier, warehouse string) *Builder {
	return b.Link("SUPPLIERSToWAREHOUSE", "SUPPLIERSToWAREHOUSE", 3.0, 2.0, supplier, warehouse)
}

func (b *Builder) Offers(family, product string) *Builder {
	return b.Link("PRODUCT_FAMILYToPRODUCT_OFFERING", "PRODUCT_FAMILYToPRODUCT_OFFERING", family, product)
}

// Snapshot returns the assembled snapshot.
func (b *Builder) Snapshot() *snapshot.Snapshot { return b.snap }

// Scenario builds the fulfillment fixture: warehouse W_1 holds productStock
// units of PO_1, facility F_1 makes PO_1 from 2 units of P_1 per product unit,
// and warehouse W_2 holds partStock units of P_1. Suppliers S_1 and S_2 can
// provide "metal" parts.
func Scenario(productStock, partStock float64) *snapshot.Snapshot {
	return New(true).
		Product("PO_1", 40, 120).
		Warehouse("W_1", 2000, 1500).
		Warehouse("W_2", 5000, 4500).
		Facility("F_1", 250).
		Part("P_1", "metal", 1.5).
		Supplier("S_1", "Lyon", 0.9, 800, "large", "metal").
		Supplier("S_2", "Osaka", 0.7, 120, "small", "metal", "plastic").
		Stock("W_1", "PO_1", productStock, 1.0).
		Produces("F_1", "PO_1").
		Requires("F_1", "P_1", 2, 3, 0.5).
		StockPart("W_2", "P_1", partStock, 0.2).
		Supplies("S_1", "W_2").
		Snapshot()
}

// Chain builds the directed graph A -> B -> C plus an isolated node D.
func Chain() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Directed:          true,
		NodeTypes:         map[string][]string{"N": {"node_type", "id"}},
		NodeValues:        map[string][][]any{"N": {{"N", "A"}, {"N", "B"}, {"N", "C"}, {"N", "D"}}},
		RelationshipTypes: map[string][]string{"R": {"relationship_type", "source", "target"}},
		LinkValues:        map[string][][]any{"R": {{"R", "A", "B"}, {"R", "B", "C"}}},
	}
}
