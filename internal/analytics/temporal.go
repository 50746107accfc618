package analytics

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/store"
)

// parallelism bounds how many timestamps are loaded at once.
const parallelism = 4

type SeriesPoint struct {
	Timestamp int     `json:"timestamp"`
	Cost      float64 `json:"cost"`
	Demand    float64 `json:"demand"`
}

// ProductSeries returns the cost and demand of productID at every timestamp
// where it exists, in timestamp order.
func ProductSeries(ctx context.Context, st *store.Store, productID string) ([]SeriesPoint, error) {
	n := st.Len()
	points := make([]*SeriesPoint, n)
	err := eachTimestamp(ctx, n, func(ctx context.Context, t int) error {
		products, err := productsAt(ctx, st, t)
		if err != nil {
			return err
		}
		for _, p := range products {
			if p.ID == productID {
				points[t] = &SeriesPoint{Timestamp: t, Cost: p.Cost, Demand: p.Demand}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := []SeriesPoint{}
	for _, p := range points {
		if p != nil {
			out = append(out, *p)
		}
	}
	if len(out) == 0 {
		return nil, errs.NotFound("product offering", productID)
	}
	return out, nil
}

type DemandRecord struct {
	Timestamp int     `json:"timestamp"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Demand    float64 `json:"demand"`
}

// TopDemand returns the n highest (timestamp, product) demand records across
// all timestamps. Ties go to the earlier timestamp, then the lower id.
func TopDemand(ctx context.Context, st *store.Store, n int) ([]DemandRecord, error) {
	if n <= 0 {
		return nil, errs.InvalidArgument("n must be positive, got %d", n)
	}
	perT := make([][]DemandRecord, st.Len())
	err := eachTimestamp(ctx, len(perT), func(ctx context.Context, t int) error {
		products, err := productsAt(ctx, st, t)
		if err != nil {
			return err
		}
		for _, p := range products {
			perT[t] = append(perT[t], DemandRecord{Timestamp: t, ProductID: p.ID, Name: p.Name, Demand: p.Demand})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var all []DemandRecord
	for _, recs := range perT {
		all = append(all, recs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Demand != all[j].Demand {
			return all[i].Demand > all[j].Demand
		}
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp < all[j].Timestamp
		}
		return all[i].ProductID < all[j].ProductID
	})
	if len(all) > n {
		all = all[:n]
	}
	if all == nil {
		all = []DemandRecord{}
	}
	return all, nil
}

type FamilyAverage struct {
	Timestamp int     `json:"timestamp"`
	FamilyID  string  `json:"family_id"`
	Products  int     `json:"products"`
	AvgCost   float64 `json:"avg_cost"`
	AvgDemand float64 `json:"avg_demand"`
}

// FamilyAverages computes, for every timestamp, the mean cost and demand of
// the product offerings in each product family.
func FamilyAverages(ctx context.Context, st *store.Store) ([]FamilyAverage, error) {
	perT := make([][]FamilyAverage, st.Len())
	err := eachTimestamp(ctx, len(perT), func(ctx context.Context, t int) error {
		g, err := st.Graph(ctx, t)
		if err != nil {
			return err
		}
		for _, fam := range g.NodesOfType("PRODUCT_FAMILY") {
			avg := FamilyAverage{Timestamp: t, FamilyID: fam.ID}
			for _, e := range g.OutEdges(fam.ID) {
				if e.Type != relFamilyProduct {
					continue
				}
				p, ok := g.Node(e.Target)
				if !ok {
					continue
				}
				avg.Products++
				avg.AvgCost += propgraph.FloatOr(p.Attrs, "cost", 0)
				avg.AvgDemand += propgraph.FloatOr(p.Attrs, "demand", 0)
			}
			if avg.Products > 0 {
				avg.AvgCost /= float64(avg.Products)
				avg.AvgDemand /= float64(avg.Products)
			}
			perT[t] = append(perT[t], avg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := []FamilyAverage{}
	for _, avgs := range perT {
		out = append(out, avgs...)
	}
	return out, nil
}

// productsAt reads product offerings from the type index, mapping positions
// through the snapshot's schema. No graph is built.
func productsAt(ctx context.Context, st *store.Store, t int) ([]Product, error) {
	idx, err := st.TypeIndex(ctx, t)
	if err != nil {
		return nil, err
	}
	snap, err := st.Raw(ctx, t)
	if err != nil {
		return nil, err
	}
	schema := snap.NodeTypes[typeProduct]

	out := make([]Product, 0, len(idx[typeProduct]))
	for id, arr := range idx[typeProduct] {
		attrs := make(map[string]any, len(schema))
		for i, name := range schema {
			attrs[name] = arr[i]
		}
		out = append(out, Product{
			ID:     id,
			Name:   propgraph.String(attrs, "name"),
			Cost:   propgraph.FloatOr(attrs, "cost", 0),
			Demand: propgraph.FloatOr(attrs, "demand", 0),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// eachTimestamp runs fn for timestamps [0, n). n is read once by the caller
// and sizes its result slice, so a source that grows meanwhile is ignored.
func eachTimestamp(ctx context.Context, n int, fn func(context.Context, int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for t := 0; t < n; t++ {
		t := t
		g.Go(func() error { return fn(ctx, t) })
	}
	return g.Wait()
}
