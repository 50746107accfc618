package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/systemshift/supplygraph/internal/propgraph"
)

// exportBatch is the number of nodes or edges written per statement.
const exportBatch = 500

// Neo4jConfig holds Neo4j connection configuration
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Mirror writes built graphs into Neo4j, one subgraph per timestamp.
type Mirror struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewMirror connects to Neo4j.
func NewMirror(ctx context.Context, cfg Neo4jConfig, logger *zap.Logger) (*Mirror, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	// Verify connectivity
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{driver: driver, database: database, logger: logger.Named("neo4j")}, nil
}

// Close closes the Neo4j connection
func (m *Mirror) Close(ctx context.Context) error {
	return m.driver.Close(ctx)
}

// EnsureIndexes creates the lookup index used by Export.
func (m *Mirror) EnsureIndexes(ctx context.Context) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `CREATE INDEX sc_node_ts_id IF NOT EXISTS FOR (n:ScNode) ON (n.timestamp, n.id)`, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("creating neo4j index: %w", err)
	}
	return nil
}

// ExportResult summarises one Export.
type ExportResult struct {
	RunID     string `json:"run_id"`
	Timestamp int    `json:"timestamp"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
}

// Export replaces the mirrored subgraph for timestamp t with g. Node and
// edge attributes are stored as JSON strings since Neo4j properties cannot
// hold nested maps.
func (m *Mirror) Export(ctx context.Context, t int, g *propgraph.Graph) (ExportResult, error) {
	res := ExportResult{RunID: uuid.New().String(), Timestamp: t}

	nodes, err := nodeParams(g)
	if err != nil {
		return res, err
	}
	edges, err := edgeParams(g)
	if err != nil {
		return res, err
	}

	session := m.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: m.database})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (n:ScNode {timestamp: $ts}) DETACH DELETE n`, map[string]any{"ts": t}); err != nil {
			return nil, err
		}
		for _, batch := range chunk(nodes, exportBatch) {
			query := `
				UNWIND $nodes AS n
				CREATE (:ScNode {
					id: n.id,
					type: n.type,
					timestamp: $ts,
					run_id: $run_id,
					properties: n.properties
				})
			`
			if _, err := tx.Run(ctx, query, map[string]any{"nodes": batch, "ts": t, "run_id": res.RunID}); err != nil {
				return nil, err
			}
		}
		for _, batch := range chunk(edges, exportBatch) {
			query := `
				UNWIND $edges AS e
				MATCH (a:ScNode {timestamp: $ts, id: e.source})
				MATCH (b:ScNode {timestamp: $ts, id: e.target})
				CREATE (a)-[:SC_EDGE {
					type: e.type,
					run_id: $run_id,
					properties: e.properties
				}]->(b)
			`
			if _, err := tx.Run(ctx, query, map[string]any{"edges": batch, "ts": t, "run_id": res.RunID}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return res, fmt.Errorf("exporting timestamp %d: %w", t, err)
	}

	res.Nodes, res.Edges = len(nodes), len(edges)
	m.logger.Info("exported graph",
		zap.String("run_id", res.RunID),
		zap.Int("timestamp", t),
		zap.Int("nodes", res.Nodes),
		zap.Int("edges", res.Edges))
	return res, nil
}

func nodeParams(g *propgraph.Graph) ([]any, error) {
	out := make([]any, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		props, err := json.Marshal(n.Attrs)
		if err != nil {
			return nil, fmt.Errorf("marshaling attributes of %s: %w", n.ID, err)
		}
		out = append(out, map[string]any{"id": n.ID, "type": n.Type, "properties": string(props)})
	}
	return out, nil
}

func edgeParams(g *propgraph.Graph) ([]any, error) {
	out := make([]any, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		props, err := json.Marshal(e.Attrs)
		if err != nil {
			return nil, fmt.Errorf("marshaling attributes of %s->%s: %w", e.Source, e.Target, err)
		}
		out = append(out, map[string]any{
			"source":     e.Source,
			"target":     e.Target,
			"type":       e.Type,
			"properties": string(props),
		})
	}
	return out, nil
}

func chunk(items []any, size int) [][]any {
	var out [][]any
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
