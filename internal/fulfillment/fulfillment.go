// Package fulfillment decides whether demand for a product offering can be
// met at one timestamp: from warehouse stock, by manufacturing the shortfall
// from stocked parts, or not at all.
package fulfillment

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/systemshift/supplygraph/internal/capability"
	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/store"
)

// Schema names the relationships and attributes the resolver reads.
type Schema struct {
	ProductType      string
	WarehouseProduct string
	FacilityProduct  string
	FacilityPart     string
	WarehousePart    string

	Inventory     string
	PartQuantity  string
	PartCost      string
	PartLeadTime  string
	OperatingCost string
	PartType      string

	SupplierLocation    string
	SupplierReliability string
	SupplierCapacity    string
	SupplierSize        string
}

// DefaultSchema matches the simulator's snapshots.
func DefaultSchema() Schema {
	return Schema{
		ProductType:      "PRODUCT_OFFERING",
		WarehouseProduct: "WAREHOUSEToPRODUCT_OFFERING",
		FacilityProduct:  "FACILITYToPRODUCT_OFFERING",
		FacilityPart:     "FACILITYToPARTS",
		WarehousePart:    "WAREHOUSEToPARTS",

		Inventory:     "inventory_level",
		PartQuantity:  "quantity",
		PartCost:      "production_cost",
		PartLeadTime:  "lead_time",
		OperatingCost: "operating_cost",
		PartType:      "type",

		SupplierLocation:    "location",
		SupplierReliability: "reliability",
		SupplierCapacity:    "size",
		SupplierSize:        "size_category",
	}
}

// Evaluate resolves a request against g with the default schema.
func Evaluate(ctx context.Context, g *propgraph.Graph, productID string, units int, table capability.Table) (*Outcome, error) {
	return DefaultSchema().Evaluate(ctx, g, productID, units, table)
}

// Evaluate resolves a request for units of productID against g.
//
// Requirements of every facility producing the product are summed per part.
// Required part quantities are rounded up; stock counts whole units only.
// A nil table falls back to the suppliers' own supplied_part_types.
func (s Schema) Evaluate(ctx context.Context, g *propgraph.Graph, productID string, units int, table capability.Table) (*Outcome, error) {
	if units <= 0 {
		return nil, errs.InvalidArgument("units must be positive, got %d", units)
	}
	product, ok := g.Node(productID)
	if !ok || product.Type != s.ProductType {
		return nil, errs.NotFound("product offering", productID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{ProductID: productID, Units: units}
	var err error
	out.Warehouses, out.Available, err = s.warehouseStock(g, productID)
	if err != nil {
		return nil, err
	}
	if out.Available >= units {
		out.Tier = Tier1WarehouseSufficient
		return out, nil
	}

	out.Shortfall = units - out.Available
	out.Facilities = s.producers(g, productID)
	if len(out.Facilities) == 0 {
		out.Tier = Tier3Unfulfillable
		out.Reason = ReasonNoProducer
		return out, nil
	}

	out.Materials, err = s.materials(g, out.Facilities, out.Shortfall)
	if err != nil {
		return nil, err
	}

	var short []Material
	for i := range out.Materials {
		m := &out.Materials[i]
		if m.Stock < m.Required {
			short = append(short, *m)
			m.Remaining = 0
			continue
		}
		m.Remaining = m.Stock - m.Required
	}

	if len(short) == 0 {
		out.Tier = Tier2Manufacturable
		for _, m := range out.Materials {
			out.TotalCost += m.Cost
			out.TotalTime += m.LeadTime
		}
		for _, f := range out.Facilities {
			n, _ := g.Node(f)
			out.TotalCost += propgraph.FloatOr(n.Attrs, s.OperatingCost, 0)
		}
		return out, nil
	}

	if table == nil {
		table = capability.FromGraph(g)
	}
	out.Tier = Tier3Unfulfillable
	out.Reason = ReasonMaterialShortage
	for _, m := range short {
		ids, err := table.SuppliersFor(ctx, m.PartType)
		if err != nil {
			return nil, fmt.Errorf("looking up suppliers for %s: %w", m.PartType, err)
		}
		out.Shortages = append(out.Shortages, Shortage{
			PartID:    m.PartID,
			PartType:  m.PartType,
			Required:  m.Required,
			Stock:     m.Stock,
			Missing:   m.Required - m.Stock,
			Suppliers: s.suppliers(g, ids),
		})
	}
	return out, nil
}

func (s Schema) warehouseStock(g *propgraph.Graph, productID string) ([]WarehouseStock, int, error) {
	levels := make(map[string]float64)
	for _, e := range g.Incident(productID) {
		if e.Type != s.WarehouseProduct {
			continue
		}
		level, err := edgeFloat(e, s.Inventory)
		if err != nil {
			return nil, 0, err
		}
		levels[e.Other(productID)] += level
	}

	stocks := make([]WarehouseStock, 0, len(levels))
	total := 0
	for id, level := range levels {
		ws := WarehouseStock{ID: id, Available: wholeUnits(level)}
		if n, ok := g.Node(id); ok {
			ws.Attrs = n.Attrs
		}
		total += ws.Available
		stocks = append(stocks, ws)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].ID < stocks[j].ID })
	return stocks, total, nil
}

func (s Schema) producers(g *propgraph.Graph, productID string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range g.Incident(productID) {
		if e.Type != s.FacilityProduct {
			continue
		}
		f := e.Other(productID)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (s Schema) materials(g *propgraph.Graph, facilities []string, shortfall int) ([]Material, error) {
	byPart := make(map[string]*Material)
	for _, f := range facilities {
		for _, e := range g.Incident(f) {
			if e.Type != s.FacilityPart {
				continue
			}
			part := e.Other(f)
			m, ok := byPart[part]
			if !ok {
				m = &Material{PartID: part}
				if n, ok := g.Node(part); ok {
					m.PartType = propgraph.String(n.Attrs, s.PartType)
				}
				byPart[part] = m
			}
			var vals [3]float64
			for i, key := range []string{s.PartQuantity, s.PartCost, s.PartLeadTime} {
				v, err := edgeFloat(e, key)
				if err != nil {
					return nil, err
				}
				vals[i] = math.Max(v, 0)
			}
			m.PerUnitQuantity += vals[0]
			m.PerUnitCost += vals[1]
			m.PerUnitLeadTime += vals[2]
		}
	}

	out := make([]Material, 0, len(byPart))
	for part, m := range byPart {
		scale := float64(shortfall)
		m.Required = requiredUnits(m.PerUnitQuantity * scale)
		m.Cost = m.PerUnitCost * scale
		m.LeadTime = m.PerUnitLeadTime * scale
		stock, err := s.partStock(g, part)
		if err != nil {
			return nil, err
		}
		m.Stock = stock
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartID < out[j].PartID })
	return out, nil
}

func (s Schema) partStock(g *propgraph.Graph, part string) (int, error) {
	total := 0.0
	for _, e := range g.Incident(part) {
		if e.Type != s.WarehousePart {
			continue
		}
		level, err := edgeFloat(e, s.Inventory)
		if err != nil {
			return 0, err
		}
		total += level
	}
	return wholeUnits(total), nil
}

// edgeFloat reads a numeric relationship attribute the resolver cannot do
// without. Missing or non-numeric values are a schema mismatch, never zero.
func edgeFloat(e *propgraph.Edge, key string) (float64, error) {
	v, ok := propgraph.Float(e.Attrs, key)
	if !ok || math.IsNaN(v) {
		return 0, &errs.SchemaMismatchError{
			Kind:   "relationship",
			Name:   e.Type,
			Row:    -1,
			Reason: fmt.Sprintf("%s -> %s: %s is missing or not numeric (%v)", e.Source, e.Target, key, e.Attrs[key]),
		}
	}
	return v, nil
}

func (s Schema) suppliers(g *propgraph.Graph, ids []string) []Supplier {
	out := make([]Supplier, 0, len(ids))
	for _, id := range ids {
		sup := Supplier{ID: id}
		if n, ok := g.Node(id); ok {
			sup.Known = true
			sup.Location = propgraph.String(n.Attrs, s.SupplierLocation)
			sup.Reliability = propgraph.FloatOr(n.Attrs, s.SupplierReliability, 0)
			sup.Capacity = propgraph.FloatOr(n.Attrs, s.SupplierCapacity, 0)
			sup.SizeBucket = propgraph.String(n.Attrs, s.SupplierSize)
		}
		out = append(out, sup)
	}
	return out
}

// requiredUnits rounds a required quantity up to whole units. Float noise
// above an integer (1.1*100 = 110.00000000000001) is not a partial unit.
func requiredUnits(q float64) int {
	if q <= 0 {
		return 0
	}
	return int(math.Ceil(q - 1e-9*math.Max(1, q)))
}

// wholeUnits floors a stock level and clamps it at zero.
func wholeUnits(level float64) int {
	if level <= 0 || math.IsNaN(level) {
		return 0
	}
	return int(math.Floor(level))
}

// Resolver answers requests against the graphs of a store.
type Resolver struct {
	store  *store.Store
	table  capability.Table
	schema Schema
	logger *zap.Logger
}

// NewResolver creates a resolver. table may be nil, see Schema.Evaluate.
func NewResolver(st *store.Store, table capability.Table, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: st, table: table, schema: DefaultSchema(), logger: logger.Named("fulfillment")}
}

// WithSchema returns a copy of r using schema.
func (r *Resolver) WithSchema(schema Schema) *Resolver {
	cp := *r
	cp.schema = schema
	return &cp
}

// Resolve evaluates a request against timestamp t.
func (r *Resolver) Resolve(ctx context.Context, t int, productID string, units int) (*Outcome, error) {
	if units <= 0 {
		return nil, errs.InvalidArgument("units must be positive, got %d", units)
	}
	g, err := r.store.Graph(ctx, t)
	if err != nil {
		return nil, err
	}
	out, err := r.schema.Evaluate(ctx, g, productID, units, r.table)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved",
		zap.Int("timestamp", t),
		zap.String("product", productID),
		zap.Int("units", units),
		zap.Stringer("tier", out.Tier))
	return out, nil
}
