package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// resultIterator is the part of neo4j.ResultWithContext the syncer reads.
type resultIterator interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// sessionRunner is the part of neo4j.SessionWithContext the syncer uses.
type sessionRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (resultIterator, error)
	Close(ctx context.Context) error
}

type sessionFactory func(ctx context.Context) sessionRunner

type neo4jSessionAdapter struct {
	session neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (resultIterator, error) {
	return a.session.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.session.Close(ctx)
}

func newNeo4jSessionFactory(driver neo4j.DriverWithContext) sessionFactory {
	return func(ctx context.Context) sessionRunner {
		return &neo4jSessionAdapter{session: driver.NewSession(ctx, neo4j.SessionConfig{})}
	}
}
