package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"go.uber.org/zap"
)

type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
	Logger *zap.Logger
}

func NewMemgraphDriver(ctx context.Context, uri, username, password string, logger *zap.Logger) (*MemgraphDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""), withoutRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach %s: %w", uri, err)
	}

	logger.Info("Connected to graph database", zap.String("uri", uri))
	return &MemgraphDriver{Driver: driver, Logger: logger}, nil
}

// withoutRetries makes a managed transaction report its first failure instead of
// replaying the callback.
func withoutRetries(c *config.Config) {
	c.MaxTransactionRetryTime = 0
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *MemgraphDriver) Query(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	result, err := d.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

func (d *MemgraphDriver) ExecuteWrite(ctx context.Context, fn func(q Querier) error) error {
	session := d.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(txQuerier{tx: tx})
	})
	return err
}

// BuildIndices indexes key on every label. Failures are logged and skipped since
// the index usually exists already.
func (d *MemgraphDriver) BuildIndices(ctx context.Context, labels []string, key string) error {
	for _, label := range labels {
		q := fmt.Sprintf(CreateIndexQuery, QuoteIdentifier(label), QuoteIdentifier(key))
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			d.Logger.Warn("failed to create index", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

type txQuerier struct {
	tx neo4j.ManagedTransaction
}

func (q txQuerier) Query(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	result, err := q.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect records: %w", err)
	}
	return records, nil
}
