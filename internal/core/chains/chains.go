// Package chains builds and edits ordered sequences of elements ("chains") kept in a
// property graph as paths of a single relation type.
//
// Every operation runs against the store it is handed and assumes the caller holds
// exclusive write scope over the touched region for the duration of the call.
package chains

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/config"
)

type BuildOptions struct {
	// Pattern is an RE2 separator expression; empty splits into characters.
	Pattern       string
	Tag           string
	Relation      string
	RecordIndices bool
	// IdentityKey, when set, stores a fresh identity on every element so the chain
	// can later be edited with Update.
	IdentityKey   string
}

type LinkOptions struct {
	CharacterRelation string
	TokenRelation     string
	TokenStart        string
	TokenEnd          string
}

type FullChainOptions struct {
	Characters BuildOptions
	Tokens     BuildOptions
	Links      LinkOptions
}

type UpdateOptions struct {
	AnchorTag   string
	ElementTag  string
	Relation    string
	IdentityKey string
}

// Chains carries the collaborators shared by all chain operations.
type Chains struct {
	Logger      *zap.Logger
	NewIdentity func() string
}

func New(logger *zap.Logger) *Chains {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chains{Logger: logger, NewIdentity: uuid.NewString}
}

// CharacterOptions builds a one-element-per-character chain.
func CharacterOptions(cfg config.ChainsConfig, recordIndices bool) BuildOptions {
	return BuildOptions{
		Pattern:       "",
		Tag:           cfg.CharacterLabel,
		Relation:      cfg.NextCharacter,
		RecordIndices: recordIndices,
		IdentityKey:   cfg.IdentityKey,
	}
}

func TokenOptions(cfg config.ChainsConfig, recordIndices bool) BuildOptions {
	pattern := cfg.TokenPattern
	if pattern == "" {
		pattern = TokenPattern
	}
	return BuildOptions{
		Pattern:       pattern,
		Tag:           cfg.TokenLabel,
		Relation:      cfg.NextToken,
		RecordIndices: recordIndices,
		IdentityKey:   cfg.IdentityKey,
	}
}

func FullOptions(cfg config.ChainsConfig, characterIndices bool) FullChainOptions {
	return FullChainOptions{
		Characters: CharacterOptions(cfg, characterIndices),
		Tokens:     TokenOptions(cfg, true),
		Links: LinkOptions{
			CharacterRelation: cfg.NextCharacter,
			TokenRelation:     cfg.NextToken,
			TokenStart:        cfg.TokenStart,
			TokenEnd:          cfg.TokenEnd,
		},
	}
}

// UpdateDefaults edits the chain named by relation; element tag and relation may
// be overridden per call.
func UpdateDefaults(cfg config.ChainsConfig) UpdateOptions {
	return UpdateOptions{
		AnchorTag:   cfg.TextLabel,
		ElementTag:  cfg.CharacterLabel,
		Relation:    cfg.NextCharacter,
		IdentityKey: cfg.IdentityKey,
	}
}
