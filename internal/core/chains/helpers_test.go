package chains

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agenthands/atag/internal/config"
	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store/memory"
)

// newTestChains numbers identities m1, m2, ... in creation order.
func newTestChains() *Chains {
	c := New(nil)
	n := 0
	c.NewIdentity = func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
	return c
}

func testConfig() config.ChainsConfig {
	return config.Default().Chains
}

// seed creates a Text anchor "t1" carrying a character chain of text.
func seed(t *testing.T, s *memory.Store, c *Chains, text string) (model.Element, []model.Element) {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig()

	anchor, err := s.CreateElement(ctx, cfg.TextLabel)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceProperties(ctx, anchor.ID, model.Properties{
		cfg.IdentityKey:  model.String("t1"),
		cfg.TextProperty: model.String(text),
	}))

	chain, err := c.CharacterChain(ctx, s, text, CharacterOptions(cfg, false))
	require.NoError(t, err)
	if len(chain) > 0 {
		_, err = s.CreateLink(ctx, cfg.NextCharacter, anchor.ID, chain[0].ID)
		require.NoError(t, err)
	}
	return anchor, chain
}

// texts returns the text of every element after startID along relation.
func texts(t *testing.T, s *memory.Store, startID, relation string) string {
	t.Helper()
	elements, _, err := Walk(context.Background(), s, startID, relation)
	require.NoError(t, err)
	var out string
	for _, e := range elements {
		v, _ := e.Property(model.PropertyText)
		out += v.String()
	}
	return out
}

func entry(identity, text string) Entry {
	return Entry{Identity: identity, Properties: model.Properties{model.PropertyText: model.String(text)}}
}
