package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/config"
	"github.com/agenthands/atag/internal/core/annotate"
	"github.com/agenthands/atag/internal/core/chains"
	"github.com/agenthands/atag/internal/core/jgf"
	"github.com/agenthands/atag/internal/core/load"
	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

// Atag runs every operation inside one transaction of its store backend.
type Atag struct {
	Store     store.Backend
	Config    *config.Config
	Chains    *chains.Chains
	Importer  *jgf.Importer
	Annotator *annotate.Annotator
	Loader    *load.Loader
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewAtag(backend store.Backend, cfg *config.Config, logger *zap.Logger) *Atag {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Atag{
		Store:     backend,
		Config:    cfg,
		Chains:    chains.New(logger.Named("chains")),
		Importer:  jgf.NewImporter(logger.Named("jgf")),
		Annotator: annotate.NewAnnotator(logger.Named("annotate")),
		Loader:    load.NewLoader(nil),
		Logger:    logger,
		Now:       time.Now,
	}
}

// CreateText creates an anchor element holding text. When uri is set the text is
// loaded from it first.
func (a *Atag) CreateText(ctx context.Context, identity, text, uri string) (*model.Element, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: text", model.ErrMissingIdentity)
	}
	if uri != "" {
		loaded, err := a.Loader.Load(ctx, uri)
		if err != nil {
			return nil, err
		}
		text = loaded
	}

	cfg := a.Config.Chains
	var created model.Element
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		existing, err := s.FindElementByKey(ctx, cfg.TextLabel, cfg.IdentityKey, model.String(identity))
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s %q exists", model.ErrDuplicateIdentity, cfg.TextLabel, identity)
		}
		e, err := s.CreateElement(ctx, cfg.TextLabel)
		if err != nil {
			return err
		}
		props := model.Properties{
			cfg.IdentityKey:  model.String(identity),
			cfg.TextProperty: model.String(text),
		}
		if err := s.ReplaceProperties(ctx, e.ID, props); err != nil {
			return err
		}
		e.Properties = props
		created = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// FullChain builds the character and token chains of a text anchor.
func (a *Atag) FullChain(ctx context.Context, identity string, characterIndices bool) error {
	cfg := a.Config.Chains
	return a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		anchor, err := a.findText(ctx, s, identity)
		if err != nil {
			return err
		}
		return a.Chains.FullChain(ctx, s, anchor.ID, cfg.TextProperty, chains.FullOptions(cfg, characterIndices))
	})
}

func (a *Atag) BuildChain(ctx context.Context, text string, opts chains.BuildOptions) ([]model.Element, error) {
	var chain []model.Element
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		var err error
		chain, err = a.Chains.Build(ctx, s, text, opts)
		return err
	})
	return chain, err
}

func (a *Atag) UpdateChain(ctx context.Context, req chains.UpdateRequest, opts chains.UpdateOptions) (*chains.UpdateResult, error) {
	var result *chains.UpdateResult
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		var err error
		result, err = a.Chains.Update(ctx, s, req, opts)
		return err
	})
	if err != nil {
		a.Logger.Warn("chain update rejected",
			zap.String("anchor", req.Anchor),
			zap.Stringer("before", req.Before),
			zap.Stringer("after", req.After),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

// ExportChain renders the anchor and the chain hanging off it along relation as JGF.
func (a *Atag) ExportChain(ctx context.Context, identity, relation string) (*jgf.Document, error) {
	var doc *jgf.Document
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		anchor, err := a.findText(ctx, s, identity)
		if err != nil {
			return err
		}
		elements, links, err := chains.Walk(ctx, s, anchor.ID, relation)
		if err != nil {
			return err
		}
		doc, err = jgf.Export(append([]model.Element{*anchor}, elements...), links, a.Now())
		return err
	})
	return doc, err
}

func (a *Atag) ImportJGF(ctx context.Context, data []byte, opts jgf.ImportOptions) (*jgf.ImportResult, error) {
	var result *jgf.ImportResult
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		var err error
		result, err = a.Importer.Import(ctx, s, data, opts)
		return err
	})
	return result, err
}

func (a *Atag) ImportHTML(ctx context.Context, identity, propertyKey string) ([]model.Element, error) {
	ann := a.Config.Annotations
	opts := annotate.HTMLOptions{
		PropertyKey:       propertyKey,
		Label:             ann.Label,
		PlainTextProperty: ann.PlainTextProperty,
		Relation:          ann.Relationship,
	}
	var annotations []model.Element
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		anchor, err := a.findText(ctx, s, identity)
		if err != nil {
			return err
		}
		annotations, err = a.Annotator.ImportHTML(ctx, s, anchor.ID, opts)
		return err
	})
	return annotations, err
}

// ImportXML annotates the text anchor from the XML held in propertyKey. An empty
// xpath falls back to the configured one.
func (a *Atag) ImportXML(ctx context.Context, identity, propertyKey, xpath string) ([]model.Element, error) {
	ann := a.Config.Annotations
	if xpath == "" {
		xpath = ann.XPath
	}
	opts := annotate.XMLOptions{
		PropertyKey:       propertyKey,
		XPath:             xpath,
		Label:             ann.Label,
		PlainTextProperty: ann.PlainTextProperty,
		Relation:          ann.Relationship,
	}
	var annotations []model.Element
	err := a.Store.WithinTx(ctx, func(ctx context.Context, s store.Store) error {
		anchor, err := a.findText(ctx, s, identity)
		if err != nil {
			return err
		}
		annotations, err = a.Annotator.ImportXML(ctx, s, anchor.ID, opts)
		return err
	})
	return annotations, err
}

func (a *Atag) findText(ctx context.Context, s store.Store, identity string) (*model.Element, error) {
	cfg := a.Config.Chains
	e, err := s.FindElementByKey(ctx, cfg.TextLabel, cfg.IdentityKey, model.String(identity))
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%s %q: %w", cfg.TextLabel, identity, model.ErrNotFound)
	}
	return e, nil
}
