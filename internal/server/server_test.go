package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/atag/internal/config"
	"github.com/agenthands/atag/internal/core"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	backend, err := NewBackend(context.Background(), cfg, nil)
	require.NoError(t, err)
	return NewServer(core.NewAtag(backend, cfg, nil), nil).SetupRouter()
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type exported struct {
	Graph struct {
		Nodes map[string]struct {
			Label    string                 `json:"label"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
	} `json:"graph"`
}

// chainText follows the exported edges from the Text node and joins the texts.
func chainText(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var doc exported
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	next := map[string]string{}
	for _, e := range doc.Graph.Edges {
		next[e.Source] = e.Target
	}
	var start string
	for id, n := range doc.Graph.Nodes {
		if n.Label == "Text" {
			start = id
		}
	}
	var out string
	for id, ok := next[start]; ok; id, ok = next[id] {
		out += doc.Graph.Nodes[id].Metadata["text"].(string)
	}
	return out
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTextLifecycle(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/texts", gin.H{"uuid": "t1", "text": "abc"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/texts", gin.H{"uuid": "t1", "text": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/texts/t1/chains", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/texts/t1/chains/NEXT_CHARACTER", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", chainText(t, w))

	var doc exported
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	var first string
	for _, e := range doc.Graph.Edges {
		if doc.Graph.Nodes[e.Source].Label == "Text" {
			first = doc.Graph.Nodes[e.Target].Metadata["uuid"].(string)
		}
	}
	require.NotEmpty(t, first)

	w = do(t, r, http.MethodPost, "/chains/update", gin.H{
		"anchor": "t1",
		"before": first,
		"elements": []gin.H{
			{"uuid": "x1", "text": "X", "weight": 3},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		Stats struct {
			Created int `json:"created"`
			Deleted int `json:"deleted"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Stats.Created)
	assert.Equal(t, 2, result.Stats.Deleted)

	w = do(t, r, http.MethodGet, "/texts/t1/chains/NEXT_CHARACTER", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "aX", chainText(t, w))
}

func TestUpdateChain_Errors(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/texts", gin.H{"uuid": "t1", "text": "ab"}).Code)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/texts/t1/chains", nil).Code)

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"unknown anchor", gin.H{"anchor": "t9", "elements": []gin.H{}}, http.StatusNotFound},
		{"empty boundary", gin.H{"anchor": "t1", "after": "", "elements": []gin.H{}}, http.StatusNotFound},
		{"missing identity", gin.H{"anchor": "t1", "elements": []gin.H{{"text": "x"}}}, http.StatusBadRequest},
		{"unsupported value", gin.H{"anchor": "t1", "elements": []gin.H{{"uuid": "x", "nested": gin.H{"a": 1}}}}, http.StatusBadRequest},
		{"no anchor", gin.H{"elements": []gin.H{}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/chains/update", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	w := do(t, r, http.MethodGet, "/texts/t1/chains/NEXT_CHARACTER", nil)
	assert.Equal(t, "ab", chainText(t, w))
}

func TestBuildChain(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/chains", gin.H{
		"text":     "what a nice text",
		"pattern":  `\s`,
		"label":    "Word",
		"relation": "NEXT_WORD",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Elements []json.RawMessage `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Elements, 7)

	w = do(t, r, http.MethodPost, "/chains", gin.H{"text": "x", "pattern": "(", "label": "Word", "relation": "NEXT_WORD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHTML(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/texts", gin.H{"uuid": "t1", "text": "<p>Hi <b>there</b></p>"}).Code)

	w := do(t, r, http.MethodPost, "/texts/t1/annotations/html", gin.H{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Annotations []json.RawMessage `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Annotations, 2)

	w = do(t, r, http.MethodPost, "/texts/t9/annotations/html", gin.H{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportXML(t *testing.T) {
	r := newTestRouter(t)
	xml := `<TEI><text><body><p>Hi <hi rend="b">there</hi></p></body></text></TEI>`
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/texts", gin.H{"uuid": "t1", "text": xml}).Code)

	w := do(t, r, http.MethodPost, "/texts/t1/annotations/xml", gin.H{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Annotations []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Annotations, 2)
	assert.Equal(t, "p", body.Annotations[0].Properties["tag"])
	assert.Equal(t, "hi", body.Annotations[1].Properties["tag"])
	assert.Equal(t, "b", body.Annotations[1].Properties["rend"])
	assert.Equal(t, float64(3), body.Annotations[1].Properties["startIndex"])

	w = do(t, r, http.MethodPost, "/texts/t1/annotations/xml", gin.H{"xpath": "//["})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/texts/t9/annotations/xml", gin.H{"xpath": "//p"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportJGF(t *testing.T) {
	r := newTestRouter(t)

	doc := `{"graph":{"nodes":{"a":{"label":"Text","metadata":{"uuid":"t5","text":"z"}}},"edges":[]}}`
	req := httptest.NewRequest(http.MethodPost, "/graph/jgf", bytes.NewBufferString(doc))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"nodeCount":1,"relationshipCount":0}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/texts/t5/chains/NEXT_CHARACTER", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/graph/jgf", bytes.NewBufferString(`{"graph"`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
