package driver

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Querier runs a single Cypher statement and returns its records.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error)
}

type GraphDriver interface {
	Querier
	ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error)
	// ExecuteWrite runs fn inside one managed write transaction.
	ExecuteWrite(ctx context.Context, fn func(q Querier) error) error
	BuildIndices(ctx context.Context, labels []string, key string) error
	Close(ctx context.Context) error
}
