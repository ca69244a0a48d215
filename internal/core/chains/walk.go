package chains

import (
	"context"
	"fmt"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

// Walk follows outgoing relation links from startID, excluding the start element,
// and returns the elements reached and the links traversed, in order.
func Walk(ctx context.Context, s store.Store, startID, relation string) ([]model.Element, []model.Link, error) {
	elements := []model.Element{}
	links := []model.Link{}
	seen := map[string]bool{startID: true}

	current := startID
	for {
		link, err := s.SingleLink(ctx, relation, current, model.Outgoing)
		if err != nil {
			return nil, nil, err
		}
		if link == nil {
			return elements, links, nil
		}
		if seen[link.To] {
			return nil, nil, fmt.Errorf("%w: %s chain loops back to %s", model.ErrInternalConsistency, relation, link.To)
		}
		seen[link.To] = true

		e, err := s.GetElement(ctx, link.To)
		if err != nil {
			return nil, nil, err
		}
		elements = append(elements, e)
		links = append(links, *link)
		current = link.To
	}
}
