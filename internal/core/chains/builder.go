package chains

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

// Build splits text per opts.Pattern and creates a fresh chain, one element per
// segment, linked in order by opts.Relation. Offsets count characters.
func (c *Chains) Build(ctx context.Context, s store.Store, text string, opts BuildOptions) ([]model.Element, error) {
	segments, err := Split(text, opts.Pattern)
	if err != nil {
		return nil, err
	}

	chain := make([]model.Element, 0, len(segments))
	offset := 0
	previousID := ""
	for _, segment := range segments {
		e, err := s.CreateElement(ctx, opts.Tag)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s element: %w", opts.Tag, err)
		}

		props := model.Properties{model.PropertyText: model.String(segment)}
		length := utf8.RuneCountInString(segment)
		if opts.RecordIndices {
			props[model.PropertyStartIndex] = model.Int(int32(offset))
			props[model.PropertyEndIndex] = model.Int(int32(offset + length - 1))
		}
		if opts.IdentityKey != "" {
			props[opts.IdentityKey] = model.String(c.NewIdentity())
		}
		offset += length

		if err := s.ReplaceProperties(ctx, e.ID, props); err != nil {
			return nil, fmt.Errorf("failed to set properties of %s: %w", e.ID, err)
		}
		e.Properties = props

		if previousID != "" {
			if _, err := s.CreateLink(ctx, opts.Relation, previousID, e.ID); err != nil {
				return nil, fmt.Errorf("failed to link %s: %w", opts.Relation, err)
			}
		}
		chain = append(chain, e)
		previousID = e.ID
	}

	c.Logger.Debug("built chain",
		zap.String("tag", opts.Tag),
		zap.String("relation", opts.Relation),
		zap.Int("elements", len(chain)),
	)
	return chain, nil
}

func (c *Chains) CharacterChain(ctx context.Context, s store.Store, text string, opts BuildOptions) ([]model.Element, error) {
	opts.Pattern = ""
	return c.Build(ctx, s, text, opts)
}

func (c *Chains) TokenChain(ctx context.Context, s store.Store, text string, opts BuildOptions) ([]model.Element, error) {
	if opts.Pattern == "" {
		opts.Pattern = TokenPattern
	}
	return c.Build(ctx, s, text, opts)
}
