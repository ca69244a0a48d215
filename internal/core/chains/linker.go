package chains

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

// CrossLink attaches a character chain and a token chain built from the same text
// to anchor, then links every token to the characters at its start and end offsets.
// tokens must carry startIndex/endIndex; offsets beyond the character chain are a
// model.ErrContractViolation, reported before any link is created.
func (c *Chains) CrossLink(ctx context.Context, s store.Store, anchor model.Element, characters, tokens []model.Element, opts LinkOptions) error {
	type span struct{ start, end int64 }
	spans := make([]span, len(tokens))
	for i, token := range tokens {
		start, ok := integerProperty(token, model.PropertyStartIndex)
		if !ok {
			return fmt.Errorf("%w: token %s has no %s", model.ErrContractViolation, token.ID, model.PropertyStartIndex)
		}
		end, ok := integerProperty(token, model.PropertyEndIndex)
		if !ok {
			return fmt.Errorf("%w: token %s has no %s", model.ErrContractViolation, token.ID, model.PropertyEndIndex)
		}
		if start < 0 || end < start || end >= int64(len(characters)) {
			return fmt.Errorf("%w: token %s spans [%d, %d] but the character chain has %d elements",
				model.ErrContractViolation, token.ID, start, end, len(characters))
		}
		spans[i] = span{start: start, end: end}
	}

	if len(characters) > 0 {
		if _, err := s.CreateLink(ctx, opts.CharacterRelation, anchor.ID, characters[0].ID); err != nil {
			return fmt.Errorf("failed to attach character chain: %w", err)
		}
	}
	if len(tokens) > 0 {
		if _, err := s.CreateLink(ctx, opts.TokenRelation, anchor.ID, tokens[0].ID); err != nil {
			return fmt.Errorf("failed to attach token chain: %w", err)
		}
	}

	for i, token := range tokens {
		if _, err := s.CreateLink(ctx, opts.TokenStart, token.ID, characters[spans[i].start].ID); err != nil {
			return fmt.Errorf("failed to link start of token %s: %w", token.ID, err)
		}
		if _, err := s.CreateLink(ctx, opts.TokenEnd, token.ID, characters[spans[i].end].ID); err != nil {
			return fmt.Errorf("failed to link end of token %s: %w", token.ID, err)
		}
	}

	c.Logger.Debug("cross-linked chains",
		zap.String("anchor", anchor.ID),
		zap.Int("characters", len(characters)),
		zap.Int("tokens", len(tokens)),
	)
	return nil
}

// FullChain reads the text held in propertyKey of the anchor, builds its character
// and token chains and cross-links them.
func (c *Chains) FullChain(ctx context.Context, s store.Store, anchorID, propertyKey string, opts FullChainOptions) error {
	anchor, err := s.GetElement(ctx, anchorID)
	if err != nil {
		return err
	}
	raw, ok := anchor.Property(propertyKey)
	if !ok {
		return fmt.Errorf("property %q of %s: %w", propertyKey, anchorID, model.ErrNotFound)
	}
	text, ok := raw.AsString()
	if !ok {
		return fmt.Errorf("%w: property %q of %s is %s, not a string", model.ErrUnsupportedValue, propertyKey, anchorID, raw.Kind())
	}

	characters, err := c.CharacterChain(ctx, s, text, opts.Characters)
	if err != nil {
		return fmt.Errorf("failed to build character chain: %w", err)
	}
	tokenOpts := opts.Tokens
	tokenOpts.RecordIndices = true
	tokens, err := c.TokenChain(ctx, s, text, tokenOpts)
	if err != nil {
		return fmt.Errorf("failed to build token chain: %w", err)
	}
	return c.CrossLink(ctx, s, anchor, characters, tokens, opts.Links)
}

func integerProperty(e model.Element, key string) (int64, bool) {
	v, ok := e.Property(key)
	if !ok {
		return 0, false
	}
	return v.AsInteger()
}
