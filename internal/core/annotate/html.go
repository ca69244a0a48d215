// Package annotate turns markup held in an element's property into annotation
// elements carrying character offsets into the document's plain text.
package annotate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

const PropertyTag = "tag"

type HTMLOptions struct {
	PropertyKey       string
	Label             string
	PlainTextProperty string
	Relation          string
}

type Annotator struct {
	Logger *zap.Logger
}

func NewAnnotator(logger *zap.Logger) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Annotator{Logger: logger}
}

// ImportHTML parses the HTML stored under opts.PropertyKey of the start element and
// creates one annotation per element inside <body>. startIndex and endIndex are
// character offsets into the plain text; endIndex is exclusive. The plain text is
// stored on the start element under opts.PlainTextProperty.
func (a *Annotator) ImportHTML(ctx context.Context, s store.Store, startID string, opts HTMLOptions) ([]model.Element, error) {
	v, ok, err := s.GetProperty(ctx, startID, opts.PropertyKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("property %q of %s: %w", opts.PropertyKey, startID, model.ErrNotFound)
	}
	source, ok := v.AsString()
	if !ok {
		return nil, fmt.Errorf("%w: property %q of %s is %s", model.ErrUnsupportedValue, opts.PropertyKey, startID, v.Kind())
	}

	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidDocument, err)
	}
	body := findBody(doc)
	if body == nil {
		return nil, fmt.Errorf("%w: no body element", model.ErrInvalidDocument)
	}

	w := &walker{ctx: ctx, store: s, startID: startID, opts: opts, logger: a.Logger}
	var plain strings.Builder
	if _, err := w.traverse(body, 0, 0, &plain); err != nil {
		return nil, err
	}
	if err := s.SetProperty(ctx, startID, opts.PlainTextProperty, model.String(plain.String())); err != nil {
		return nil, err
	}

	sort.SliceStable(w.annotations, func(i, j int) bool {
		si, _ := w.annotations[i].Properties[model.PropertyStartIndex].AsInteger()
		sj, _ := w.annotations[j].Properties[model.PropertyStartIndex].AsInteger()
		return si < sj
	})
	a.Logger.Debug("imported html annotations",
		zap.String("start", startID),
		zap.Int("annotations", len(w.annotations)),
		zap.Int("length", utf8.RuneCountInString(plain.String())),
	)
	return w.annotations, nil
}

type walker struct {
	ctx         context.Context
	store       store.Store
	startID     string
	opts        HTMLOptions
	logger      *zap.Logger
	annotations []model.Element
}

func (w *walker) traverse(n *html.Node, depth int, index int64, plain *strings.Builder) (int64, error) {
	switch n.Type {
	case html.TextNode:
		text := collapseSpace(n.Data)
		plain.WriteString(text)
		return index + int64(utf8.RuneCountInString(text)), nil
	case html.ElementNode:
	default:
		return index, nil
	}

	start := index
	slot := -1
	if depth > 0 {
		e, err := w.store.CreateElement(w.ctx, w.opts.Label)
		if err != nil {
			return index, fmt.Errorf("failed to create annotation: %w", err)
		}
		if _, err := w.store.CreateLink(w.ctx, w.opts.Relation, w.startID, e.ID); err != nil {
			return index, fmt.Errorf("failed to attach annotation: %w", err)
		}
		slot = len(w.annotations)
		w.annotations = append(w.annotations, e)
	}

	var local strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		var err error
		index, err = w.traverse(child, depth+1, index, &local)
		if err != nil {
			return index, err
		}
	}
	plain.WriteString(local.String())

	if slot < 0 {
		return index, nil
	}

	props := model.Properties{
		PropertyTag:              model.String(n.Data),
		model.PropertyStartIndex: model.Long(start),
		model.PropertyEndIndex:   model.Long(index),
		w.opts.PlainTextProperty: model.String(local.String()),
	}
	e := &w.annotations[slot]
	if err := w.store.ReplaceProperties(w.ctx, e.ID, props); err != nil {
		return index, err
	}
	e.Properties = props

	w.logger.Debug("annotation",
		zap.Int("depth", depth),
		zap.String("tag", n.Data),
		zap.Int64("start", start),
		zap.Int64("end", index),
	)
	return index, nil
}

// collapseSpace turns every run of whitespace (including no-break space) into a
// single space and drops zero-width spaces and soft hyphens. Leading and trailing
// runs are kept as one space, so "a <br/> b" still yields two spaces around the break.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\f', '\r', '\u00a0':
			if lastSpace {
				continue
			}
			b.WriteByte(' ')
			lastSpace = true
		case '\u200b', '\u00ad':
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return b.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if body := findBody(child); body != nil {
			return body
		}
	}
	return nil
}
