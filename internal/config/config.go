package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type StoreConfig struct {
	// Backend is "memory" or "memgraph".
	Backend string `toml:"backend"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// ChainsConfig names the labels and relationship types chains are stored under.
type ChainsConfig struct {
	TextLabel      string `toml:"text_label"`
	CharacterLabel string `toml:"character_label"`
	TokenLabel     string `toml:"token_label"`
	NextCharacter  string `toml:"next_character"`
	NextToken      string `toml:"next_token"`
	TokenStart     string `toml:"token_start"`
	TokenEnd       string `toml:"token_end"`
	IdentityKey    string `toml:"identity_key"`
	TextProperty   string `toml:"text_property"`
	TokenPattern   string `toml:"token_pattern"`
}

type AnnotationsConfig struct {
	Label             string `toml:"label"`
	Relationship      string `toml:"relationship"`
	PlainTextProperty string `toml:"plain_text_property"`
	// XPath selects the nodes an XML import reads when the request names none.
	XPath             string `toml:"xpath"`
}

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Store       StoreConfig       `toml:"store"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Logging     LoggingConfig     `toml:"logging"`
	Chains      ChainsConfig      `toml:"chains"`
	Annotations AnnotationsConfig `toml:"annotations"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Store:  StoreConfig{Backend: "memory"},
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Logging: LoggingConfig{Level: "info"},
		Chains: ChainsConfig{
			TextLabel:      "Text",
			CharacterLabel: "Character",
			TokenLabel:     "Token",
			NextCharacter:  "NEXT_CHARACTER",
			NextToken:      "NEXT_TOKEN",
			TokenStart:     "TOKEN_START",
			TokenEnd:       "TOKEN_END",
			IdentityKey:    "uuid",
			TextProperty:   "text",
			TokenPattern:   `[^\p{L}\p{M}\p{Nd}\p{Pc}\x{200C}\x{200D}]`,
		},
		Annotations: AnnotationsConfig{
			Label:             "Annotation",
			Relationship:      "HAS_ANNOTATION",
			PlainTextProperty: "plainText",
			XPath:             "/TEI/text/body//node()",
		},
	}
}

// Load reads a TOML file on top of Default, so the file only needs the keys it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	override := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override("PORT", &c.Server.Port)
	override("ATAG_STORE", &c.Store.Backend)
	override("MEMGRAPH_URI", &c.Memgraph.URI)
	override("MEMGRAPH_USER", &c.Memgraph.User)
	override("MEMGRAPH_PASSWORD", &c.Memgraph.Password)
	override("LOG_LEVEL", &c.Logging.Level)
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "memgraph":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	if c.Chains.IdentityKey == "" {
		return fmt.Errorf("chains.identity_key must not be empty")
	}
	return nil
}
