package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/atag/internal/driver"
)

type executedQuery struct {
	Query  string
	Params map[string]interface{}
}

// MockDriver answers queries from Results in order and records what was run.
type MockDriver struct {
	Executed []executedQuery
	Results  [][]*neo4j.Record
	Err      error
	InTx     bool
	TxErr    error
}

func (m *MockDriver) Query(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	m.Executed = append(m.Executed, executedQuery{Query: query, Params: params})
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Results) == 0 {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	records := m.Results[0]
	m.Results = m.Results[1:]
	return records, nil
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	records, err := m.Query(ctx, query, params)
	if err != nil {
		return neo4j.EagerResult{}, err
	}
	return neo4j.EagerResult{Records: records}, nil
}

func (m *MockDriver) ExecuteWrite(ctx context.Context, fn func(q driver.Querier) error) error {
	m.InTx = true
	defer func() { m.InTx = false }()
	if err := fn(m); err != nil {
		return err
	}
	return m.TxErr
}

func (m *MockDriver) BuildIndices(ctx context.Context, labels []string, key string) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func record(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}
