package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/agenthands/atag/internal/config"
	"github.com/agenthands/atag/internal/core"
	"github.com/agenthands/atag/internal/core/chains"
	"github.com/agenthands/atag/internal/core/jgf"
	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/driver"
	"github.com/agenthands/atag/internal/store"
	"github.com/agenthands/atag/internal/store/graph"
	"github.com/agenthands/atag/internal/store/memory"
)

func init() {
	// Keep integers integral when decoding property bags.
	binding.EnableDecoderUseNumber = true
}

type Server struct {
	Atag   *core.Atag
	Logger *zap.Logger
}

func NewServer(a *core.Atag, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Atag: a, Logger: logger}
}

// NewBackend opens the store selected by cfg.Store.Backend.
func NewBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Store.Backend {
	case "memory":
		return memory.New(memory.FanOut(cfg.Annotations.Relationship)), nil
	case "memgraph":
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger.Named("driver"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Memgraph: %w", err)
		}
		labels := []string{cfg.Chains.TextLabel, cfg.Chains.CharacterLabel, cfg.Chains.TokenLabel}
		if err := d.BuildIndices(ctx, labels, cfg.Chains.IdentityKey); err != nil {
			return nil, err
		}
		return graph.NewStore(d), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/texts", s.CreateText)
	r.POST("/texts/:uuid/chains", s.FullChain)
	r.GET("/texts/:uuid/chains/:relation", s.ExportChain)
	r.POST("/texts/:uuid/annotations/html", s.ImportHTML)
	r.POST("/texts/:uuid/annotations/xml", s.ImportXML)
	r.POST("/chains", s.BuildChain)
	r.POST("/chains/update", s.UpdateChain)
	r.POST("/graph/jgf", s.ImportJGF)

	return r
}

type CreateTextRequest struct {
	UUID string `json:"uuid" binding:"required"`
	Text string `json:"text"`
	URI  string `json:"uri"`
}

func (s *Server) CreateText(c *gin.Context) {
	var req CreateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	e, err := s.Atag.CreateText(c.Request.Context(), req.UUID, req.Text, req.URI)
	if err != nil {
		s.fail(c, "create text", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"element": e})
}

type FullChainRequest struct {
	CharacterIndices *bool `json:"character_indices"`
}

func (s *Server) FullChain(c *gin.Context) {
	var req FullChainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
	}
	indices := true
	if req.CharacterIndices != nil {
		indices = *req.CharacterIndices
	}

	if err := s.Atag.FullChain(c.Request.Context(), c.Param("uuid"), indices); err != nil {
		s.fail(c, "full chain", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

type BuildChainRequest struct {
	Text          string `json:"text"`
	Pattern       string `json:"pattern"`
	Label         string `json:"label" binding:"required"`
	Relation      string `json:"relation" binding:"required"`
	RecordIndices bool   `json:"record_indices"`
}

func (s *Server) BuildChain(c *gin.Context) {
	var req BuildChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	chain, err := s.Atag.BuildChain(c.Request.Context(), req.Text, chains.BuildOptions{
		Pattern:       req.Pattern,
		Tag:           req.Label,
		Relation:      req.Relation,
		RecordIndices: req.RecordIndices,
		IdentityKey:   s.Atag.Config.Chains.IdentityKey,
	})
	if err != nil {
		s.fail(c, "build chain", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"elements": chain})
}

// UpdateChainRequest mirrors chains.UpdateRequest. A null or absent before/after
// means the start/end of the chain; an empty string is an identity like any other.
// Each element is a property bag that must hold the identity key.
type UpdateChainRequest struct {
	Anchor   string                   `json:"anchor" binding:"required"`
	Before   *string                  `json:"before"`
	After    *string                  `json:"after"`
	Elements []map[string]interface{} `json:"elements"`
	Config   *UpdateConfig            `json:"config"`
}

type UpdateConfig struct {
	TextLabel        string `json:"textLabel"`
	ElementLabel     string `json:"elementLabel"`
	RelationshipType string `json:"relationshipType"`
}

func (s *Server) UpdateChain(c *gin.Context) {
	var req UpdateChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	opts := chains.UpdateDefaults(s.Atag.Config.Chains)
	if req.Config != nil {
		if req.Config.TextLabel != "" {
			opts.AnchorTag = req.Config.TextLabel
		}
		if req.Config.ElementLabel != "" {
			opts.ElementTag = req.Config.ElementLabel
		}
		if req.Config.RelationshipType != "" {
			opts.Relation = req.Config.RelationshipType
		}
	}

	desired, err := entries(req.Elements, opts.IdentityKey)
	if err != nil {
		s.fail(c, "update chain", err)
		return
	}
	result, err := s.Atag.UpdateChain(c.Request.Context(), chains.UpdateRequest{
		Anchor:  req.Anchor,
		Before:  boundary(req.Before),
		After:   boundary(req.After),
		Desired: desired,
	}, opts)
	if err != nil {
		s.fail(c, "update chain", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ExportChain(c *gin.Context) {
	doc, err := s.Atag.ExportChain(c.Request.Context(), c.Param("uuid"), c.Param("relation"))
	if err != nil {
		s.fail(c, "export chain", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type ImportHTMLRequest struct {
	PropertyKey string `json:"property_key"`
}

func (s *Server) ImportHTML(c *gin.Context) {
	var req ImportHTMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.PropertyKey == "" {
		req.PropertyKey = s.Atag.Config.Chains.TextProperty
	}

	annotations, err := s.Atag.ImportHTML(c.Request.Context(), c.Param("uuid"), req.PropertyKey)
	if err != nil {
		s.fail(c, "import html", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": annotations})
}

type ImportXMLRequest struct {
	PropertyKey string `json:"property_key"`
	XPath       string `json:"xpath"`
}

func (s *Server) ImportXML(c *gin.Context) {
	var req ImportXMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.PropertyKey == "" {
		req.PropertyKey = s.Atag.Config.Chains.TextProperty
	}

	annotations, err := s.Atag.ImportXML(c.Request.Context(), c.Param("uuid"), req.PropertyKey, req.XPath)
	if err != nil {
		s.fail(c, "import xml", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": annotations})
}

// ImportJGF takes the JGF document as the body; merge settings come from the query
// string (label, key, overwrite).
func (s *Server) ImportJGF(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := s.Atag.ImportJGF(c.Request.Context(), data, jgf.ImportOptions{
		MergeLabel:  c.Query("label"),
		PropertyKey: c.DefaultQuery("key", s.Atag.Config.Chains.IdentityKey),
		Overwrite:   c.Query("overwrite") == "true",
	})
	if err != nil {
		s.fail(c, "import jgf", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", zap.String("op", op), zap.Error(err))
	} else {
		s.Logger.Info("request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrMissingIdentity),
		errors.Is(err, model.ErrDuplicateIdentity),
		errors.Is(err, model.ErrInvalidPattern),
		errors.Is(err, model.ErrUnsupportedValue),
		errors.Is(err, model.ErrInvalidDocument),
		errors.Is(err, model.ErrUnsupportedScheme):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrContractViolation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func boundary(id *string) chains.Boundary {
	if id == nil {
		return chains.None
	}
	return chains.At(*id)
}

// entries splits each bag into its identity and the remaining properties.
func entries(elements []map[string]interface{}, identityKey string) ([]chains.Entry, error) {
	out := make([]chains.Entry, 0, len(elements))
	for i, raw := range elements {
		props, err := model.PropertiesFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		var identity string
		if v, ok := props[identityKey]; ok {
			identity = v.String()
		}
		delete(props, identityKey)
		out = append(out, chains.Entry{Identity: identity, Properties: props})
	}
	return out, nil
}
