// Package graph implements the Store contract on Memgraph or Neo4j through the bolt driver.
package graph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/driver"
	"github.com/agenthands/atag/internal/store"
)

// Store runs every primitive as one Cypher statement through Querier. Bound to a
// GraphDriver it auto-commits each statement; inside WithinTx it is bound to a
// managed transaction.
type Store struct {
	Querier driver.Querier
	Driver  driver.GraphDriver
}

var _ store.Backend = (*Store)(nil)

func NewStore(d driver.GraphDriver) *Store {
	return &Store{Querier: d, Driver: d}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return s.Driver.ExecuteWrite(ctx, func(q driver.Querier) error {
		return fn(ctx, &Store{Querier: q, Driver: s.Driver})
	})
}

func (s *Store) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

func (s *Store) CreateElement(ctx context.Context, tag string) (model.Element, error) {
	records, err := s.Querier.Query(ctx, fmt.Sprintf(driver.CreateElementQuery, driver.QuoteIdentifier(tag)), nil)
	if err != nil {
		return model.Element{}, fmt.Errorf("failed to create %s element: %w", tag, err)
	}
	if len(records) != 1 {
		return model.Element{}, fmt.Errorf("%w: create returned %d records", model.ErrInternalConsistency, len(records))
	}
	id, err := recordID(records[0], "id")
	if err != nil {
		return model.Element{}, err
	}
	return model.Element{ID: id, Tag: tag, Properties: model.Properties{}}, nil
}

func (s *Store) GetElement(ctx context.Context, id string) (model.Element, error) {
	nid, err := parseID(id)
	if err != nil {
		return model.Element{}, err
	}
	records, err := s.Querier.Query(ctx, driver.GetElementQuery, map[string]interface{}{"id": nid})
	if err != nil {
		return model.Element{}, fmt.Errorf("failed to get element %s: %w", id, err)
	}
	if len(records) == 0 {
		return model.Element{}, fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}

	rec := records[0]
	e := model.Element{ID: id}
	if raw, ok := rec.Get("labels"); ok {
		if labels, ok := raw.([]interface{}); ok && len(labels) > 0 {
			e.Tag, _ = labels[0].(string)
		}
	}
	raw, _ := rec.Get("props")
	e.Properties, err = propertiesFromDriver(raw)
	if err != nil {
		return model.Element{}, fmt.Errorf("element %s: %w", id, err)
	}
	return e, nil
}

func (s *Store) GetProperty(ctx context.Context, id, key string) (model.Value, bool, error) {
	nid, err := parseID(id)
	if err != nil {
		return model.Value{}, false, err
	}
	q := fmt.Sprintf(driver.GetPropertyQuery, driver.QuoteIdentifier(key))
	records, err := s.Querier.Query(ctx, q, map[string]interface{}{"id": nid})
	if err != nil {
		return model.Value{}, false, fmt.Errorf("failed to read %s of %s: %w", key, id, err)
	}
	if len(records) == 0 {
		return model.Value{}, false, fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}
	raw, _ := records[0].Get("value")
	if raw == nil {
		return model.Value{}, false, nil
	}
	v, err := fromDriver(raw)
	if err != nil {
		return model.Value{}, false, fmt.Errorf("property %q of %s: %w", key, id, err)
	}
	return v, true, nil
}

func (s *Store) SetProperty(ctx context.Context, id, key string, value model.Value) error {
	nid, err := parseID(id)
	if err != nil {
		return err
	}
	dv, err := toDriver(value)
	if err != nil {
		return fmt.Errorf("property %q: %w", key, err)
	}
	q := fmt.Sprintf(driver.SetPropertyQuery, driver.QuoteIdentifier(key))
	records, err := s.Querier.Query(ctx, q, map[string]interface{}{"id": nid, "value": dv})
	if err != nil {
		return fmt.Errorf("failed to set %s of %s: %w", key, id, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Store) ReplaceProperties(ctx context.Context, id string, props model.Properties) error {
	nid, err := parseID(id)
	if err != nil {
		return err
	}
	dp, err := propertiesToDriver(props)
	if err != nil {
		return err
	}
	records, err := s.Querier.Query(ctx, driver.ReplacePropertiesQuery, map[string]interface{}{"id": nid, "props": dp})
	if err != nil {
		return fmt.Errorf("failed to replace properties of %s: %w", id, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateLink(ctx context.Context, relation, from, to string) (model.Link, error) {
	fid, err := parseID(from)
	if err != nil {
		return model.Link{}, err
	}
	tid, err := parseID(to)
	if err != nil {
		return model.Link{}, err
	}
	q := fmt.Sprintf(driver.CreateLinkQuery, driver.QuoteIdentifier(relation))
	records, err := s.Querier.Query(ctx, q, map[string]interface{}{"from": fid, "to": tid})
	if err != nil {
		return model.Link{}, fmt.Errorf("failed to link %s -[%s]-> %s: %w", from, relation, to, err)
	}
	if len(records) == 0 {
		return model.Link{}, fmt.Errorf("link %s -[%s]-> %s: %w", from, relation, to, model.ErrNotFound)
	}
	id, err := recordID(records[0], "id")
	if err != nil {
		return model.Link{}, err
	}
	return model.Link{ID: id, Relation: relation, From: from, To: to}, nil
}

func (s *Store) DeleteLink(ctx context.Context, link model.Link) error {
	lid, err := parseID(link.ID)
	if err != nil {
		return err
	}
	records, err := s.Querier.Query(ctx, driver.DeleteLinkQuery, map[string]interface{}{"id": lid})
	if err != nil {
		return fmt.Errorf("failed to delete link %s: %w", link.ID, err)
	}
	if count(records, "deleted") == 0 {
		return fmt.Errorf("link %s: %w", link.ID, model.ErrNotFound)
	}
	return nil
}

func (s *Store) SingleLink(ctx context.Context, relation, id string, dir model.Direction) (*model.Link, error) {
	nid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	template := driver.OutgoingLinksQuery
	if dir == model.Incoming {
		template = driver.IncomingLinksQuery
	}
	q := fmt.Sprintf(template, driver.QuoteIdentifier(relation))
	records, err := s.Querier.Query(ctx, q, map[string]interface{}{"id": nid})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s links of %s: %w", dir, relation, id, err)
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		l, err := linkFromRecord(records[0], relation)
		if err != nil {
			return nil, err
		}
		return &l, nil
	default:
		return nil, fmt.Errorf("%w: %s has %d %s %s links", model.ErrInternalConsistency, id, len(records), dir, relation)
	}
}

func (s *Store) Links(ctx context.Context, id string) ([]model.Link, error) {
	nid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	records, err := s.Querier.Query(ctx, driver.IncidentLinksQuery, map[string]interface{}{"id": nid})
	if err != nil {
		return nil, fmt.Errorf("failed to read links of %s: %w", id, err)
	}
	links := make([]model.Link, 0, len(records))
	for _, rec := range records {
		raw, _ := rec.Get("relation")
		relation, _ := raw.(string)
		l, err := linkFromRecord(rec, relation)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

func (s *Store) FindElementByKey(ctx context.Context, tag, key string, value model.Value) (*model.Element, error) {
	dv, err := toDriver(value)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(driver.FindElementByKeyQuery, driver.QuoteIdentifier(tag), driver.QuoteIdentifier(key))
	records, err := s.Querier.Query(ctx, q, map[string]interface{}{"value": dv})
	if err != nil {
		return nil, fmt.Errorf("failed to find %s by %s: %w", tag, key, err)
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("%w: several %s elements with %s = %s", model.ErrInternalConsistency, tag, key, value)
	}

	id, err := recordID(records[0], "id")
	if err != nil {
		return nil, err
	}
	raw, _ := records[0].Get("props")
	props, err := propertiesFromDriver(raw)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", id, err)
	}
	return &model.Element{ID: id, Tag: tag, Properties: props}, nil
}

func (s *Store) DeleteElement(ctx context.Context, id string) error {
	nid, err := parseID(id)
	if err != nil {
		return err
	}
	params := map[string]interface{}{"id": nid}
	records, err := s.Querier.Query(ctx, driver.ElementDegreeQuery, params)
	if err != nil {
		return fmt.Errorf("failed to count links of %s: %w", id, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}
	if degree := count(records, "degree"); degree > 0 {
		return fmt.Errorf("%w: %s has %d links", model.ErrElementHasLinks, id, degree)
	}

	records, err = s.Querier.Query(ctx, driver.DeleteElementQuery, params)
	if err != nil {
		return fmt.Errorf("failed to delete element %s: %w", id, err)
	}
	if count(records, "deleted") == 0 {
		return fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q: %w", id, model.ErrNotFound)
	}
	return n, nil
}

func recordID(rec *neo4j.Record, key string) (string, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: record has no %q column", model.ErrInternalConsistency, key)
	}
	n, ok := raw.(int64)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, not an integer id", model.ErrInternalConsistency, key, raw)
	}
	return strconv.FormatInt(n, 10), nil
}

func linkFromRecord(rec *neo4j.Record, relation string) (model.Link, error) {
	id, err := recordID(rec, "id")
	if err != nil {
		return model.Link{}, err
	}
	from, err := recordID(rec, "from")
	if err != nil {
		return model.Link{}, err
	}
	to, err := recordID(rec, "to")
	if err != nil {
		return model.Link{}, err
	}
	return model.Link{ID: id, Relation: relation, From: from, To: to}, nil
}

func count(records []*neo4j.Record, key string) int64 {
	if len(records) == 0 {
		return 0
	}
	raw, _ := records[0].Get(key)
	n, _ := raw.(int64)
	return n
}
