// Package jgf converts between store elements and the JSON Graph Format.
package jgf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store"
)

type Document struct {
	Graph Graph `json:"graph"`
}

type Graph struct {
	Label    string          `json:"label,omitempty"`
	Directed bool            `json:"directed"`
	Nodes    map[string]Node `json:"nodes"`
	Edges    []Edge          `json:"edges"`
}

type Node struct {
	Label    string                     `json:"label"`
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

type Edge struct {
	Source   string                     `json:"source"`
	Target   string                     `json:"target"`
	Relation string                     `json:"relation"`
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Export renders elements and links as a directed JGF document labelled with now.
func Export(elements []model.Element, links []model.Link, now time.Time) (*Document, error) {
	doc := &Document{Graph: Graph{
		Label:    now.Format(time.RFC3339),
		Directed: true,
		Nodes:    make(map[string]Node, len(elements)),
		Edges:    make([]Edge, 0, len(links)),
	}}

	for _, e := range elements {
		metadata, err := encodeMetadata(e.Properties)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", e.ID, err)
		}
		doc.Graph.Nodes[e.ID] = Node{Label: e.Tag, Metadata: metadata}
	}
	for _, l := range links {
		doc.Graph.Edges = append(doc.Graph.Edges, Edge{Source: l.From, Target: l.To, Relation: l.Relation})
	}
	return doc, nil
}

func encodeMetadata(props model.Properties) (map[string]json.RawMessage, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(props))
	for k, v := range props {
		if !v.IsValid() {
			return nil, fmt.Errorf("%w: property %q", model.ErrUnsupportedValue, k)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

type ImportOptions struct {
	// MergeLabel enables reuse of existing elements with this tag whose
	// PropertyKey matches the node's metadata value.
	MergeLabel  string
	PropertyKey string
	// Overwrite replaces the properties of merged elements.
	Overwrite   bool
}

type ImportResult struct {
	NodeCount         int `json:"nodeCount"`
	RelationshipCount int `json:"relationshipCount"`
}

type Importer struct {
	Logger *zap.Logger
}

func NewImporter(logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{Logger: logger}
}

// Import creates the nodes and edges of a JGF document. Counts cover created
// elements and links only; merged elements are not counted.
func (imp *Importer) Import(ctx context.Context, s store.Store, data []byte, opts ImportOptions) (*ImportResult, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidDocument, err)
	}

	nodes := make(map[string]model.Properties, len(doc.Graph.Nodes))
	for id, n := range doc.Graph.Nodes {
		props, err := decodeMetadata(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		nodes[id] = props
	}

	result := &ImportResult{}
	ids := make(map[string]string, len(doc.Graph.Nodes))
	keys := make([]string, 0, len(doc.Graph.Nodes))
	for id := range doc.Graph.Nodes {
		keys = append(keys, id)
	}
	sort.Strings(keys)

	for _, id := range keys {
		n := doc.Graph.Nodes[id]
		props := nodes[id]
		tag, _, _ := strings.Cut(n.Label, ",")

		var existing *model.Element
		if opts.MergeLabel != "" {
			if v, ok := props[opts.PropertyKey]; ok {
				found, err := s.FindElementByKey(ctx, opts.MergeLabel, opts.PropertyKey, v)
				if err != nil {
					return nil, err
				}
				existing = found
			}
			if existing == nil {
				imp.Logger.Info("no element to merge with",
					zap.String("label", opts.MergeLabel),
					zap.String("key", opts.PropertyKey),
					zap.String("node", id),
				)
			}
		}

		if existing != nil {
			ids[id] = existing.ID
			if opts.Overwrite {
				if err := s.ReplaceProperties(ctx, existing.ID, props); err != nil {
					return nil, err
				}
			}
			continue
		}

		e, err := s.CreateElement(ctx, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to create node %s: %w", id, err)
		}
		if err := s.ReplaceProperties(ctx, e.ID, props); err != nil {
			return nil, err
		}
		ids[id] = e.ID
		result.NodeCount++
	}

	for i, edge := range doc.Graph.Edges {
		from, ok := ids[edge.Source]
		if !ok {
			return nil, fmt.Errorf("edge %d source %s: %w", i, edge.Source, model.ErrNotFound)
		}
		to, ok := ids[edge.Target]
		if !ok {
			return nil, fmt.Errorf("edge %d target %s: %w", i, edge.Target, model.ErrNotFound)
		}
		if _, err := s.CreateLink(ctx, edge.Relation, from, to); err != nil {
			return nil, fmt.Errorf("failed to create edge %d: %w", i, err)
		}
		result.RelationshipCount++
	}

	return result, nil
}

// decodeMetadata turns strings shaped like dates into Date values.
func decodeMetadata(metadata map[string]json.RawMessage) (model.Properties, error) {
	props := make(model.Properties, len(metadata))
	for k, raw := range metadata {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var x any
		if err := dec.Decode(&x); err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", model.ErrInvalidDocument, k, err)
		}
		if x == nil {
			continue
		}
		if str, ok := x.(string); ok {
			if t, err := time.Parse(model.DateLayout, str); err == nil {
				props[k] = model.Date(t)
				continue
			}
		}
		v, err := model.FromAny(x)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		props[k] = v
	}
	return props, nil
}
