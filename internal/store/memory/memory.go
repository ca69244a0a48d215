// Package memory is an in-process Store: an arena of elements keyed by id with a
// bidirectional relation index.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

type endpoint struct {
	id       string
	relation string
}

type element struct {
	tag   string
	props model.Properties
}

type state struct {
	elements map[string]*element
	links    map[string]model.Link
	out      map[endpoint][]string
	in       map[endpoint][]string
	incident map[string]map[string]struct{}
}

func newState() state {
	return state{
		elements: make(map[string]*element),
		links:    make(map[string]model.Link),
		out:      make(map[endpoint][]string),
		in:       make(map[endpoint][]string),
		incident: make(map[string]map[string]struct{}),
	}
}

func (s state) clone() state {
	c := newState()
	for id, e := range s.elements {
		c.elements[id] = &element{tag: e.tag, props: e.props.Clone()}
	}
	maps.Copy(c.links, s.links)
	for k, v := range s.out {
		c.out[k] = slices.Clone(v)
	}
	for k, v := range s.in {
		c.in[k] = slices.Clone(v)
	}
	for k, v := range s.incident {
		c.incident[k] = maps.Clone(v)
	}
	return c
}

// Store keeps the whole graph in memory. Relations are sequential (no branch, no
// merge) unless declared with FanOut.
type Store struct {
	mu     sync.Mutex
	st     state
	fanOut map[string]bool
	newID  func() string
}

type Option func(*Store)

// FanOut exempts relations from the single outgoing/incoming link invariant.
func FanOut(relations ...string) Option {
	return func(s *Store) {
		for _, r := range relations {
			s.fanOut[r] = true
		}
	}
}

// WithIDGenerator replaces uuid generation for element and link ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		st:     newState(),
		fanOut: make(map[string]bool),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Backend = (*Store)(nil)

// WithinTx serializes callers and restores the previous graph if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, s); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) CreateElement(ctx context.Context, tag string) (model.Element, error) {
	id := s.newID()
	if _, exists := s.st.elements[id]; exists {
		return model.Element{}, fmt.Errorf("%w: element id %s reused", model.ErrInternalConsistency, id)
	}
	s.st.elements[id] = &element{tag: tag, props: model.Properties{}}
	return model.Element{ID: id, Tag: tag, Properties: model.Properties{}}, nil
}

func (s *Store) GetElement(ctx context.Context, id string) (model.Element, error) {
	e, err := s.element(id)
	if err != nil {
		return model.Element{}, err
	}
	return model.Element{ID: id, Tag: e.tag, Properties: e.props.Clone()}, nil
}

func (s *Store) GetProperty(ctx context.Context, id, key string) (model.Value, bool, error) {
	e, err := s.element(id)
	if err != nil {
		return model.Value{}, false, err
	}
	v, ok := e.props[key]
	return v, ok, nil
}

func (s *Store) SetProperty(ctx context.Context, id, key string, value model.Value) error {
	e, err := s.element(id)
	if err != nil {
		return err
	}
	if !value.IsValid() {
		return fmt.Errorf("%w: property %q", model.ErrUnsupportedValue, key)
	}
	e.props[key] = value
	return nil
}

func (s *Store) ReplaceProperties(ctx context.Context, id string, props model.Properties) error {
	e, err := s.element(id)
	if err != nil {
		return err
	}
	for k, v := range props {
		if !v.IsValid() {
			return fmt.Errorf("%w: property %q", model.ErrUnsupportedValue, k)
		}
	}
	e.props = props.Clone()
	return nil
}

func (s *Store) CreateLink(ctx context.Context, relation, from, to string) (model.Link, error) {
	if _, err := s.element(from); err != nil {
		return model.Link{}, err
	}
	if _, err := s.element(to); err != nil {
		return model.Link{}, err
	}

	src := endpoint{id: from, relation: relation}
	dst := endpoint{id: to, relation: relation}
	if !s.fanOut[relation] {
		if len(s.st.out[src]) > 0 {
			return model.Link{}, fmt.Errorf("%w: %s already has an outgoing %s link", model.ErrInternalConsistency, from, relation)
		}
		if len(s.st.in[dst]) > 0 {
			return model.Link{}, fmt.Errorf("%w: %s already has an incoming %s link", model.ErrInternalConsistency, to, relation)
		}
	}

	link := model.Link{ID: s.newID(), Relation: relation, From: from, To: to}
	s.st.links[link.ID] = link
	s.st.out[src] = append(s.st.out[src], link.ID)
	s.st.in[dst] = append(s.st.in[dst], link.ID)
	s.attach(from, link.ID)
	s.attach(to, link.ID)
	return link, nil
}

func (s *Store) DeleteLink(ctx context.Context, link model.Link) error {
	l, ok := s.st.links[link.ID]
	if !ok {
		return fmt.Errorf("link %s: %w", link.ID, model.ErrNotFound)
	}
	delete(s.st.links, l.ID)
	s.detachIndex(s.st.out, endpoint{id: l.From, relation: l.Relation}, l.ID)
	s.detachIndex(s.st.in, endpoint{id: l.To, relation: l.Relation}, l.ID)
	delete(s.st.incident[l.From], l.ID)
	delete(s.st.incident[l.To], l.ID)
	return nil
}

func (s *Store) SingleLink(ctx context.Context, relation, id string, dir model.Direction) (*model.Link, error) {
	if _, err := s.element(id); err != nil {
		return nil, err
	}
	index := s.st.out
	if dir == model.Incoming {
		index = s.st.in
	}
	ids := index[endpoint{id: id, relation: relation}]
	switch len(ids) {
	case 0:
		return nil, nil
	case 1:
		l := s.st.links[ids[0]]
		return &l, nil
	default:
		return nil, fmt.Errorf("%w: %s has %d %s %s links", model.ErrInternalConsistency, id, len(ids), dir, relation)
	}
}

func (s *Store) Links(ctx context.Context, id string) ([]model.Link, error) {
	if _, err := s.element(id); err != nil {
		return nil, err
	}
	ids := slices.Sorted(maps.Keys(s.st.incident[id]))
	links := make([]model.Link, 0, len(ids))
	for _, lid := range ids {
		links = append(links, s.st.links[lid])
	}
	return links, nil
}

func (s *Store) FindElementByKey(ctx context.Context, tag, key string, value model.Value) (*model.Element, error) {
	var found *model.Element
	for _, id := range slices.Sorted(maps.Keys(s.st.elements)) {
		e := s.st.elements[id]
		if e.tag != tag {
			continue
		}
		v, ok := e.props[key]
		if !ok || !v.Equal(value) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: several %s elements with %s = %s", model.ErrInternalConsistency, tag, key, value)
		}
		found = &model.Element{ID: id, Tag: e.tag, Properties: e.props.Clone()}
	}
	return found, nil
}

func (s *Store) DeleteElement(ctx context.Context, id string) error {
	if _, err := s.element(id); err != nil {
		return err
	}
	if n := len(s.st.incident[id]); n > 0 {
		return fmt.Errorf("%w: %s has %d links", model.ErrElementHasLinks, id, n)
	}
	delete(s.st.elements, id)
	delete(s.st.incident, id)
	return nil
}

// Counts reports the number of elements and links held.
func (s *Store) Counts() (elements, links int) {
	return len(s.st.elements), len(s.st.links)
}

func (s *Store) element(id string) (*element, error) {
	e, ok := s.st.elements[id]
	if !ok {
		return nil, fmt.Errorf("element %s: %w", id, model.ErrNotFound)
	}
	return e, nil
}

func (s *Store) attach(id, linkID string) {
	set, ok := s.st.incident[id]
	if !ok {
		set = make(map[string]struct{})
		s.st.incident[id] = set
	}
	set[linkID] = struct{}{}
}

func (s *Store) detachIndex(index map[endpoint][]string, key endpoint, linkID string) {
	ids := slices.DeleteFunc(index[key], func(x string) bool { return x == linkID })
	if len(ids) == 0 {
		delete(index, key)
		return
	}
	index[key] = ids
}
