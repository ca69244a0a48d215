package annotate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

// DefaultXPath selects everything inside the body of a TEI document.
const DefaultXPath = "/TEI/text/body//node()"

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

type XMLOptions struct {
	PropertyKey string
	// XPath selects the nodes to import; empty selects the document root.
	XPath             string
	Label             string
	PlainTextProperty string
	Relation          string
}

// ImportXML evaluates opts.XPath against the XML stored under opts.PropertyKey of
// the start element. Selected text nodes are appended to the plain text; every
// selected element becomes an annotation spanning its text content from the
// current end of the plain text, with its attributes copied as properties.
// Annotations are returned in document order.
func (a *Annotator) ImportXML(ctx context.Context, s store.Store, startID string, opts XMLOptions) ([]model.Element, error) {
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

	path := opts.XPath
	if path == "" {
		path = "/"
	}
	expr, err := xpath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: xpath %q: %v", model.ErrInvalidPattern, path, err)
	}

	doc, err := xmlquery.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidDocument, err)
	}
	if hasDoctype(doc) {
		return nil, fmt.Errorf("%w: DOCTYPE is not allowed", model.ErrInvalidDocument)
	}

	var plain strings.Builder
	var length int64
	annotations := []model.Element{}
	for _, n := range xmlquery.QuerySelectorAll(doc, expr) {
		switch n.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			plain.WriteString(n.Data)
			length += int64(utf8.RuneCountInString(n.Data))
		case xmlquery.ElementNode:
			content := n.InnerText()
			props := model.Properties{
				PropertyTag:              model.String(qualifiedName(n.Prefix, n.Data)),
				model.PropertyStartIndex: model.Long(length),
				model.PropertyEndIndex:   model.Long(length + int64(utf8.RuneCountInString(content))),
			}
			for _, attr := range n.Attr {
				props[attributeName(attr)] = model.String(attr.Value)
			}
			if content != "" {
				props[opts.PlainTextProperty] = model.String(content)
			}

			e, err := annotation(ctx, s, startID, opts.Label, opts.Relation, props)
			if err != nil {
				return nil, err
			}
			annotations = append(annotations, e)

			a.Logger.Debug("annotation",
				zap.Int("depth", n.Level()),
				zap.String("tag", qualifiedName(n.Prefix, n.Data)),
				zap.Int64("start", length),
				zap.Int("attributes", len(n.Attr)),
			)
		default:
			return nil, fmt.Errorf("%w: unsupported node %s selected by %q", model.ErrInvalidDocument, nodeKind(n.Type), path)
		}
	}

	if err := s.SetProperty(ctx, startID, opts.PlainTextProperty, model.String(plain.String())); err != nil {
		return nil, err
	}
	a.Logger.Debug("imported xml annotations",
		zap.String("start", startID),
		zap.String("xpath", path),
		zap.Int("annotations", len(annotations)),
		zap.Int64("length", length),
	)
	return annotations, nil
}

func annotation(ctx context.Context, s store.Store, startID, label, relation string, props model.Properties) (model.Element, error) {
	e, err := s.CreateElement(ctx, label)
	if err != nil {
		return e, fmt.Errorf("failed to create annotation: %w", err)
	}
	if _, err := s.CreateLink(ctx, relation, startID, e.ID); err != nil {
		return e, fmt.Errorf("failed to attach annotation: %w", err)
	}
	if err := s.ReplaceProperties(ctx, e.ID, props); err != nil {
		return e, err
	}
	e.Properties = props
	return e, nil
}

// hasDoctype looks through the prolog, which the parser may hang next to the
// document node as well as below it.
func hasDoctype(doc *xmlquery.Node) bool {
	isDoctype := func(n *xmlquery.Node) bool {
		return n.Type == xmlquery.NotationNode && strings.HasPrefix(strings.TrimSpace(n.Data), "DOCTYPE")
	}
	for top := doc; top != nil; top = top.NextSibling {
		if isDoctype(top) {
			return true
		}
		for n := top.FirstChild; n != nil; n = n.NextSibling {
			if isDoctype(n) {
				return true
			}
		}
	}
	return false
}

func qualifiedName(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

// attributeName spells attributes the way they appear in the source: xml:id,
// xmlns:tei, or the bare name.
func attributeName(attr xmlquery.Attr) string {
	if attr.NamespaceURI == xmlNamespace {
		return qualifiedName("xml", attr.Name.Local)
	}
	return qualifiedName(attr.Name.Space, attr.Name.Local)
}

func nodeKind(t xmlquery.NodeType) string {
	switch t {
	case xmlquery.DocumentNode:
		return "document"
	case xmlquery.DeclarationNode:
		return "declaration"
	case xmlquery.CommentNode:
		return "comment"
	case xmlquery.AttributeNode:
		return "attribute"
	case xmlquery.NotationNode:
		return "notation"
	case xmlquery.ProcessingInstruction:
		return "processing instruction"
	default:
		return fmt.Sprintf("type %d", t)
	}
}
