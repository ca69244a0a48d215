// Package store defines the graph primitives the chain algorithms run against.
package store

import (
	"context"

	"github.com/agenthands/atag/internal/core/model"
)

// Store is the minimal property-graph surface used by the chain algorithms.
// Implementations perform no locking of their own beyond what WithinTx provides;
// callers hold exclusive write scope over the region they touch.
type Store interface {
	CreateElement(ctx context.Context, tag string) (model.Element, error)
	GetElement(ctx context.Context, id string) (model.Element, error)
	GetProperty(ctx context.Context, id, key string) (model.Value, bool, error)
	SetProperty(ctx context.Context, id, key string, value model.Value) error
	// ReplaceProperties overwrites the whole property bag of an element.
	ReplaceProperties(ctx context.Context, id string, props model.Properties) error

	CreateLink(ctx context.Context, relation, from, to string) (model.Link, error)
	DeleteLink(ctx context.Context, link model.Link) error
	// SingleLink returns the only link of relation in the given direction, or nil.
	// More than one such link is model.ErrInternalConsistency.
	SingleLink(ctx context.Context, relation, id string, dir model.Direction) (*model.Link, error)
	// Links returns every link incident to the element, in either direction.
	Links(ctx context.Context, id string) ([]model.Link, error)

	// FindElementByKey returns the element tagged tag whose key property equals value, or nil.
	FindElementByKey(ctx context.Context, tag, key string, value model.Value) (*model.Element, error)
	// DeleteElement fails with model.ErrElementHasLinks while any link is incident.
	DeleteElement(ctx context.Context, id string) error
}

// Transactor runs fn with exclusive write access. A non-nil error from fn
// discards every mutation fn made.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}

// Backend is a store that can also open its own transactional boundary.
type Backend interface {
	Store
	Transactor
	Close(ctx context.Context) error
}
