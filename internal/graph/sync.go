package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const syncBatchSize = 500

// Syncer mirrors the inventory topology into Memgraph over Bolt.
type Syncer struct {
	driver     neo4j.DriverWithContext
	newSession sessionFactory
	logger     *slog.Logger
}

// NewSyncer connects to the graph database at uri and verifies
// connectivity.
func NewSyncer(uri, username, password string, logger *slog.Logger) (*Syncer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("creating memgraph driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("memgraph connectivity check failed: %w", err)
	}

	logger.Info("memgraph syncer initialized", "uri", uri)
	return &Syncer{driver: driver, newSession: newNeo4jSessionFactory(driver), logger: logger}, nil
}

// Close closes the driver.
func (s *Syncer) Close() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(context.Background())
}

// Sync replaces the database contents with the topology: clear, index,
// then batched creates of categories, devices and CONTAINS edges.
func (s *Syncer) Sync(ctx context.Context, t Topology) error {
	session := s.newSession(ctx)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	s.logger.Info("clearing memgraph data")
	if _, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
		return fmt.Errorf("clearing memgraph: %w", err)
	}

	for _, cypher := range []string{
		"CREATE INDEX ON :Category(id)",
		"CREATE INDEX ON :Device(id)",
		"CREATE INDEX ON :Device(category)",
	} {
		if _, err := session.Run(ctx, cypher, nil); err != nil {
			s.logger.Warn("creating index (may already exist)", "error", err)
		}
	}

	var categories, devices []map[string]any
	for _, n := range t.Nodes {
		switch n.Kind {
		case KindCategory:
			categories = append(categories, nodeToParams(n))
		case KindDevice:
			devices = append(devices, nodeToParams(n))
		}
	}

	if err := runBatches(ctx, session, "categories", categories, `
		UNWIND $categories AS c
		CREATE (:Category {id: c.id, name: c.name})
	`); err != nil {
		return err
	}
	if err := runBatches(ctx, session, "devices", devices, `
		UNWIND $devices AS d
		CREATE (:Device {
			id: d.id, name: d.name, category: d.category, device_id: d.deviceID,
			status: d.status, provider: d.provider, region: d.region
		})
	`); err != nil {
		return err
	}

	edges := make([]map[string]any, 0, len(t.Edges))
	for _, e := range t.Edges {
		edges = append(edges, edgeToParams(e))
	}
	if err := runBatches(ctx, session, "edges", edges, `
		UNWIND $edges AS e
		MATCH (c:Category {id: e.from})
		MATCH (d:Device {id: e.to})
		CREATE (c)-[:CONTAINS]->(d)
	`); err != nil {
		return err
	}

	s.logger.Info("memgraph sync complete", "categories", len(categories), "devices", len(devices), "edges", len(edges))
	return nil
}

func runBatches(ctx context.Context, session sessionRunner, key string, rows []map[string]any, cypher string) error {
	for i := 0; i < len(rows); i += syncBatchSize {
		end := min(i+syncBatchSize, len(rows))
		if _, err := session.Run(ctx, cypher, map[string]any{key: rows[i:end]}); err != nil {
			return fmt.Errorf("syncing %s batch %d-%d: %w", key, i, end, err)
		}
	}
	return nil
}

// Counts reads the number of categories and devices stored in the
// database.
func (s *Syncer) Counts(ctx context.Context) (categories, devices int64, err error) {
	session := s.newSession(ctx)
	defer session.Close(ctx) //nolint:errcheck // best-effort cleanup

	result, err := session.Run(ctx, `
		MATCH (n)
		RETURN sum(CASE WHEN n:Category THEN 1 ELSE 0 END) AS categories,
		       sum(CASE WHEN n:Device THEN 1 ELSE 0 END) AS devices
	`, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("counting nodes: %w", err)
	}
	if result.Next(ctx) {
		rec := result.Record()
		categories = recordInt(rec, "categories")
		devices = recordInt(rec, "devices")
	}
	if err := result.Err(); err != nil {
		return 0, 0, fmt.Errorf("reading counts: %w", err)
	}
	return categories, devices, nil
}

func recordInt(rec *neo4j.Record, key string) int64 {
	if rec == nil {
		return 0
	}
	v, ok := rec.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func nodeToParams(n Node) map[string]any {
	return map[string]any{
		"id":       n.ID,
		"name":     n.Name,
		"category": n.Category,
		"deviceID": n.DeviceID,
		"status":   n.Status,
		"provider": n.Provider,
		"region":   n.Region,
	}
}

func edgeToParams(e Edge) map[string]any {
	return map[string]any{
		"from": e.From,
		"to":   e.To,
		"type": e.Type,
	}
}
