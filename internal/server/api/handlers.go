package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/systemshift/supplygraph/internal/analytics"
	"github.com/systemshift/supplygraph/internal/errs"
	"github.com/systemshift/supplygraph/internal/fulfillment"
	"github.com/systemshift/supplygraph/internal/observability"
	"github.com/systemshift/supplygraph/internal/propgraph"
	"github.com/systemshift/supplygraph/internal/query"
	"github.com/systemshift/supplygraph/internal/store"
)

// Server holds the HTTP server dependencies
type Server struct {
	store    *store.Store
	resolver *fulfillment.Resolver
	metrics  *observability.Collector
	logger   *zap.Logger
}

// New creates a new API server. metrics may be nil.
func New(st *store.Store, resolver *fulfillment.Resolver, metrics *observability.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: st, resolver: resolver, metrics: metrics, logger: logger.Named("api")}
}

// GraphView is the JSON form of a graph.
type GraphView struct {
	Directed bool       `json:"directed"`
	Nodes    []NodeView `json:"nodes"`
	Edges    []EdgeView `json:"edges"`
}

type NodeView struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs"`
}

type EdgeView struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   string         `json:"type"`
	Attrs  map[string]any `json:"attrs"`
}

func viewOf(g *propgraph.Graph) GraphView {
	v := GraphView{Directed: g.Directed(), Nodes: []NodeView{}, Edges: []EdgeView{}}
	for _, n := range g.Nodes() {
		v.Nodes = append(v.Nodes, NodeView{ID: n.ID, Type: n.Type, Attrs: n.Attrs})
	}
	for _, e := range g.Edges() {
		v.Edges = append(v.Edges, EdgeView{Source: e.Source, Target: e.Target, Type: e.Type, Attrs: e.Attrs})
	}
	return v
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"timestamps": s.store.Len(),
	})
}

// Timestamps handles GET /api/timestamps
func (s *Server) Timestamps(w http.ResponseWriter, r *http.Request) {
	raw, graphs, indexes := s.store.Cached()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": s.store.Len(),
		"cached": map[string]int{
			"raw":   raw,
			"graph": graphs,
			"index": indexes,
		},
	})
}

// ListNodes handles GET /api/t/{t}/nodes
// Supports query param ?type=NODE_TYPE to restrict to one type
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	t, ok := s.timestamp(w, r)
	if !ok {
		return
	}
	idx, err := s.store.TypeIndex(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make(map[string][]string)
	for typ, rows := range idx {
		if want := r.URL.Query().Get("type"); want != "" && want != typ {
			continue
		}
		ids := make([]string, 0, len(rows))
		for id := range rows {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out[typ] = ids
	}
	writeJSON(w, http.StatusOK, map[string]any{"timestamp": t, "nodes": out})
}

// GetNode handles GET /api/t/{t}/nodes/{id}
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	t, g, ok := s.graph(w, r)
	if !ok {
		return
	}
	d, err := analytics.NodeDetails(g, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timestamp": t, "node": d})
}

// Ego handles GET /api/t/{t}/ego?node=ID&radius=N
func (s *Server) Ego(w http.ResponseWriter, r *http.Request) {
	radius, err := intParam(r, "radius", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, g, ok := s.graph(w, r)
	if !ok {
		return
	}
	sub, err := query.EgoNeighborhood(g, r.URL.Query().Get("node"), radius)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sub))
}

// Path handles GET /api/t/{t}/path?from=A&to=B
func (s *Server) Path(w http.ResponseWriter, r *http.Request) {
	_, g, ok := s.graph(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	p, err := query.ShortestPath(g, q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Lineage handles GET /api/t/{t}/lineage/{id}
func (s *Server) Lineage(w http.ResponseWriter, r *http.Request) {
	_, g, ok := s.graph(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	anc, err := query.Ancestors(g, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	desc, err := query.Descendants(g, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          id,
		"ancestors":   anc,
		"descendants": desc,
	})
}

// Centrality handles GET /api/t/{t}/centrality
// Computed from the raw snapshot, no graph is built.
func (s *Server) Centrality(w http.ResponseWriter, r *http.Request) {
	t, ok := s.timestamp(w, r)
	if !ok {
		return
	}
	snap, err := s.store.Raw(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rank, err := query.DegreeCentrality(r.Context(), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

// Fulfillment handles GET /api/t/{t}/fulfillment?product=ID&units=N
func (s *Server) Fulfillment(w http.ResponseWriter, r *http.Request) {
	t, ok := s.timestamp(w, r)
	if !ok {
		return
	}
	units, err := intParam(r, "units", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.resolver.Resolve(r.Context(), t, r.URL.Query().Get("product"), units)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Analytics handles GET /api/t/{t}/analytics/{kind}
func (s *Server) Analytics(w http.ResponseWriter, r *http.Request) {
	_, g, ok := s.graph(w, r)
	if !ok {
		return
	}

	var result any
	switch kind := chi.URLParam(r, "kind"); kind {
	case "profitable":
		maxCost, err := floatParam(r, "max_cost", math.Inf(1))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		minDemand, err := floatParam(r, "min_demand", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		result = analytics.ProfitableProducts(g, maxCost, minDemand)
	case "near-capacity":
		headroom, err := floatParam(r, "headroom", analytics.DefaultHeadroom)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		loads, err := analytics.WarehousesNearCapacity(g, headroom)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		result = loads
	case "storage-costs":
		result = analytics.WarehouseStorageCosts(g)
	case "unused-suppliers":
		result = analytics.UnusedSuppliers(g)
	default:
		s.writeError(w, r, errs.NotFound("analytics", kind))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// WarehouseParts handles GET /api/t/{t}/warehouses/{id}/parts
func (s *Server) WarehouseParts(w http.ResponseWriter, r *http.Request) {
	_, g, ok := s.graph(w, r)
	if !ok {
		return
	}
	parts, err := analytics.PartsInWarehouse(g, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

// WarehouseSuppliers handles GET /api/t/{t}/warehouses/{id}/suppliers
func (s *Server) WarehouseSuppliers(w http.ResponseWriter, r *http.Request) {
	_, g, ok := s.graph(w, r)
	if !ok {
		return
	}
	sups, err := analytics.SuppliersOfWarehouse(g, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sups)
}

// ProductSeries handles GET /api/products/{id}/series
func (s *Server) ProductSeries(w http.ResponseWriter, r *http.Request) {
	points, err := analytics.ProductSeries(r.Context(), s.store, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// TopDemand handles GET /api/products/top?n=N
func (s *Server) TopDemand(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := analytics.TopDemand(r.Context(), s.store, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// FamilyAverages handles GET /api/families/averages
func (s *Server) FamilyAverages(w http.ResponseWriter, r *http.Request) {
	avgs, err := analytics.FamilyAverages(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avgs)
}

func (s *Server) timestamp(w http.ResponseWriter, r *http.Request) (int, bool) {
	t, err := strconv.Atoi(chi.URLParam(r, "t"))
	if err != nil {
		s.writeError(w, r, errs.InvalidArgument("invalid timestamp %q", chi.URLParam(r, "t")))
		return 0, false
	}
	return t, true
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) (int, *propgraph.Graph, bool) {
	t, ok := s.timestamp(w, r)
	if !ok {
		return 0, nil, false
	}
	g, err := s.store.Graph(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return 0, nil, false
	}
	return t, g, true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errs.InvalidArgument("invalid %s parameter %q", name, v)
	}
	return n, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errs.InvalidArgument("invalid %s parameter %q", name, v)
	}
	return f, nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrNotDirected), errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
