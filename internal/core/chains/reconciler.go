package chains

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

// Boundary names an existing element delimiting an edit range. None stands for the
// start of the chain (as before) or its end (as after). It is the only way to say
// "no boundary": At("") is looked up like any other identity and fails.
type Boundary struct {
	id  string
	set bool
}

var None = Boundary{}

func At(identity string) Boundary {
	return Boundary{id: identity, set: true}
}

func (b Boundary) Identity() (string, bool) { return b.id, b.set }

func (b Boundary) String() string {
	if !b.set {
		return "none"
	}
	return b.id
}

// Entry is one desired chain element: its identity and its complete property bag.
type Entry struct {
	Identity   string           `json:"identity"`
	Properties model.Properties `json:"properties,omitempty"`
}

type UpdateRequest struct {
	// Anchor is the identity of the element the chain hangs off.
	Anchor  string
	Before  Boundary
	After   Boundary
	Desired []Entry
}

type Stats struct {
	Created  int `json:"created"`
	Reused   int `json:"reused"`
	Relinked int `json:"relinked"`
	Deleted  int `json:"deleted"`
}

type UpdateResult struct {
	Elements []model.Element `json:"elements"`
	Stats    Stats           `json:"stats"`
}

// pool holds the elements of the edited range, keyed by identity.
type pool struct {
	byIdentity map[string]model.Element
	// order lists every collected element id, in chain order.
	order      []string
	consumed   map[string]bool
}

// Update reconciles the part of the chain strictly between Before and After with
// the desired entries. Elements whose identity reappears keep their id and are only
// relinked when their predecessor changed; others are created; the rest of the
// range is deleted. Running it twice with the same input changes nothing the
// second time.
//
// All validation happens before the first mutation. A model.ErrInternalConsistency
// may leave partial changes behind, which the caller's transaction must discard.
func (c *Chains) Update(ctx context.Context, s store.Store, req UpdateRequest, opts UpdateOptions) (*UpdateResult, error) {
	identities := make(map[string]bool, len(req.Desired))
	for i, entry := range req.Desired {
		if entry.Identity == "" {
			return nil, fmt.Errorf("%w: entry %d", model.ErrMissingIdentity, i)
		}
		if identities[entry.Identity] {
			return nil, fmt.Errorf("%w: %q", model.ErrDuplicateIdentity, entry.Identity)
		}
		identities[entry.Identity] = true
	}

	anchor, err := c.resolve(ctx, s, opts.AnchorTag, opts.IdentityKey, req.Anchor)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	before, err := c.resolveBoundary(ctx, s, req.Before, opts)
	if err != nil {
		return nil, fmt.Errorf("before: %w", err)
	}
	after, err := c.resolveBoundary(ctx, s, req.After, opts)
	if err != nil {
		return nil, fmt.Errorf("after: %w", err)
	}
	if before != nil && after != nil && before.ID == after.ID {
		return nil, fmt.Errorf("%w: before and after are both %s", model.ErrInvalidRange, req.Before)
	}
	for _, b := range []Boundary{req.Before, req.After} {
		if id, ok := b.Identity(); ok && identities[id] {
			return nil, fmt.Errorf("%w: boundary %q is also a desired entry", model.ErrInvalidRange, id)
		}
	}

	current := anchor.ID
	if before != nil {
		current = before.ID
	}
	p, err := c.collect(ctx, s, current, after, opts)
	if err != nil {
		return nil, err
	}

	var stats Stats
	elements := make([]model.Element, 0, len(req.Desired))
	for _, entry := range req.Desired {
		el, reused := p.byIdentity[entry.Identity]
		if reused {
			delete(p.byIdentity, entry.Identity)
			p.consumed[el.ID] = true
			stats.Reused++

			incoming, err := s.SingleLink(ctx, opts.Relation, el.ID, model.Incoming)
			if err != nil {
				return nil, err
			}
			if incoming == nil || incoming.From != current {
				if incoming != nil {
					if err := s.DeleteLink(ctx, *incoming); err != nil {
						return nil, fmt.Errorf("failed to unlink %s: %w", el.ID, err)
					}
				}
				if err := c.link(ctx, s, opts.Relation, current, el.ID); err != nil {
					return nil, err
				}
				stats.Relinked++
			}
		} else {
			el, err = s.CreateElement(ctx, opts.ElementTag)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s element: %w", opts.ElementTag, err)
			}
			if err := c.link(ctx, s, opts.Relation, current, el.ID); err != nil {
				return nil, err
			}
			stats.Created++
		}

		props := entry.Properties.Clone()
		props[opts.IdentityKey] = model.String(entry.Identity)
		if err := s.ReplaceProperties(ctx, el.ID, props); err != nil {
			return nil, fmt.Errorf("failed to write properties of %s: %w", el.ID, err)
		}
		el.Properties = props

		elements = append(elements, el)
		current = el.ID
	}

	for _, id := range p.order {
		if p.consumed[id] {
			continue
		}
		if err := c.remove(ctx, s, id); err != nil {
			return nil, err
		}
		stats.Deleted++
	}

	if after != nil {
		out, err := s.SingleLink(ctx, opts.Relation, current, model.Outgoing)
		if err != nil {
			return nil, err
		}
		switch {
		case out == nil:
			stale, err := s.SingleLink(ctx, opts.Relation, after.ID, model.Incoming)
			if err != nil {
				return nil, err
			}
			if stale != nil {
				if err := s.DeleteLink(ctx, *stale); err != nil {
					return nil, fmt.Errorf("failed to unlink %s: %w", after.ID, err)
				}
			}
			if _, err := s.CreateLink(ctx, opts.Relation, current, after.ID); err != nil {
				return nil, fmt.Errorf("failed to reconnect %s: %w", after.ID, err)
			}
			stats.Relinked++
		case out.To != after.ID:
			return nil, fmt.Errorf("%w: %s is followed by %s instead of %s", model.ErrInternalConsistency, current, out.To, after.ID)
		}
	}

	c.Logger.Debug("reconciled chain",
		zap.String("anchor", req.Anchor),
		zap.Stringer("before", req.Before),
		zap.Stringer("after", req.After),
		zap.String("relation", opts.Relation),
		zap.Int("created", stats.Created),
		zap.Int("reused", stats.Reused),
		zap.Int("relinked", stats.Relinked),
		zap.Int("deleted", stats.Deleted),
	)
	return &UpdateResult{Elements: elements, Stats: stats}, nil
}

func (c *Chains) resolve(ctx context.Context, s store.Store, tag, key, identity string) (*model.Element, error) {
	e, err := s.FindElementByKey(ctx, tag, key, model.String(identity))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s with %s %q: %w", tag, key, identity, model.ErrNotFound)
	}
	return e, nil
}

func (c *Chains) resolveBoundary(ctx context.Context, s store.Store, b Boundary, opts UpdateOptions) (*model.Element, error) {
	identity, ok := b.Identity()
	if !ok {
		return nil, nil
	}
	return c.resolve(ctx, s, opts.ElementTag, opts.IdentityKey, identity)
}

// collect walks the range after startID up to after (or the end of the chain)
// without mutating anything. Elements lacking an identity, or repeating one, stay
// out of the identity index and end up deleted as orphans.
func (c *Chains) collect(ctx context.Context, s store.Store, startID string, after *model.Element, opts UpdateOptions) (*pool, error) {
	p := &pool{
		byIdentity: make(map[string]model.Element),
		consumed:   make(map[string]bool),
	}
	seen := map[string]bool{startID: true}

	current := startID
	for {
		link, err := s.SingleLink(ctx, opts.Relation, current, model.Outgoing)
		if err != nil {
			return nil, err
		}
		if link == nil {
			if after != nil {
				return nil, fmt.Errorf("%w: %s does not follow %s along %s", model.ErrInvalidRange, after.ID, startID, opts.Relation)
			}
			return p, nil
		}
		if after != nil && link.To == after.ID {
			return p, nil
		}
		if seen[link.To] {
			return nil, fmt.Errorf("%w: %s chain loops back to %s", model.ErrInternalConsistency, opts.Relation, link.To)
		}
		seen[link.To] = true

		e, err := s.GetElement(ctx, link.To)
		if err != nil {
			return nil, err
		}
		p.order = append(p.order, e.ID)
		if v, ok := e.Property(opts.IdentityKey); ok {
			if _, taken := p.byIdentity[v.String()]; !taken {
				p.byIdentity[v.String()] = e
			}
		}
		current = e.ID
	}
}

// link makes from -> to the only outgoing relation link of from.
func (c *Chains) link(ctx context.Context, s store.Store, relation, from, to string) error {
	out, err := s.SingleLink(ctx, relation, from, model.Outgoing)
	if err != nil {
		return err
	}
	if out != nil {
		if err := s.DeleteLink(ctx, *out); err != nil {
			return fmt.Errorf("failed to unlink %s: %w", from, err)
		}
	}
	if _, err := s.CreateLink(ctx, relation, from, to); err != nil {
		return fmt.Errorf("failed to link %s -> %s: %w", from, to, err)
	}
	return nil
}

// remove detaches an element from every link and deletes it.
func (c *Chains) remove(ctx context.Context, s store.Store, id string) error {
	links, err := s.Links(ctx, id)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := s.DeleteLink(ctx, l); err != nil {
			return fmt.Errorf("failed to detach %s: %w", id, err)
		}
	}
	if err := s.DeleteElement(ctx, id); err != nil {
		return fmt.Errorf("failed to delete orphan %s: %w", id, err)
	}
	return nil
}
