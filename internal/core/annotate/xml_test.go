package annotate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store/memory"
)

const teiDocument = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
<teiHeader><title>ignored</title></teiHeader>
<text><body><p xml:id="p1">Der <choice><sic>Trabant</sic><corr>Trabanten</corr></choice> fährt.</p><p rend="italic">Ende</p></body></text>
</TEI>`

var xmlOptions = XMLOptions{
	PropertyKey:       "html",
	XPath:             DefaultXPath,
	Label:             "Annotation",
	PlainTextProperty: "plainText",
	Relation:          "HAS_ANNOTATION",
}

func TestImportXML(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, teiDocument)

	annotations, err := NewAnnotator(nil).ImportXML(ctx, s, doc.ID, xmlOptions)
	require.NoError(t, err)

	assert.Equal(t, []span{
		{tag: "p", start: 0, end: 27, text: "Der TrabantTrabanten fährt."},
		{tag: "choice", start: 4, end: 20, text: "TrabantTrabanten"},
		{tag: "sic", start: 4, end: 11, text: "Trabant"},
		{tag: "corr", start: 11, end: 20, text: "Trabanten"},
		{tag: "p", start: 27, end: 31, text: "Ende"},
	}, spans(annotations))

	assert.Equal(t, model.String("p1"), annotations[0].Properties["xml:id"])
	assert.Equal(t, model.String("italic"), annotations[4].Properties["rend"])
	assert.Equal(t, model.Long(4), annotations[1].Properties[model.PropertyStartIndex])

	plain, ok, err := s.GetProperty(ctx, doc.ID, "plainText")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.String("Der TrabantTrabanten fährt.Ende"), plain)
	assert.Equal(t, "TrabantTrabanten", string([]rune(plain.String())[4:20]))

	links, err := s.Links(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, links, 5)

	stored, err := s.GetElement(ctx, annotations[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "Annotation", stored.Tag)
	assert.True(t, stored.Properties.Equal(annotations[2].Properties))
}

func TestImportXML_EmptyElement(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, `<TEI><text><body>a<lb n="1"/>b</body></text></TEI>`)

	annotations, err := NewAnnotator(nil).ImportXML(ctx, s, doc.ID, xmlOptions)
	require.NoError(t, err)
	require.Len(t, annotations, 1)

	lb := annotations[0]
	assert.Equal(t, model.String("lb"), lb.Properties[PropertyTag])
	assert.Equal(t, model.Long(1), lb.Properties[model.PropertyStartIndex])
	assert.Equal(t, model.Long(1), lb.Properties[model.PropertyEndIndex])
	assert.Equal(t, model.String("1"), lb.Properties["n"])
	_, ok := lb.Properties["plainText"]
	assert.False(t, ok)

	plain, _, err := s.GetProperty(ctx, doc.ID, "plainText")
	require.NoError(t, err)
	assert.Equal(t, model.String("ab"), plain)
}

func TestImportXML_ElementsOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, teiDocument)

	opts := xmlOptions
	opts.XPath = "//p"
	annotations, err := NewAnnotator(nil).ImportXML(ctx, s, doc.ID, opts)
	require.NoError(t, err)

	// Without selected text nodes the plain text never grows.
	assert.Equal(t, []span{
		{tag: "p", start: 0, end: 27, text: "Der TrabantTrabanten fährt."},
		{tag: "p", start: 0, end: 4, text: "Ende"},
	}, spans(annotations))

	plain, _, err := s.GetProperty(ctx, doc.ID, "plainText")
	require.NoError(t, err)
	assert.Equal(t, model.String(""), plain)
}

func TestImportXML_NothingSelected(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, `<doc><p>text</p></doc>`)

	annotations, err := NewAnnotator(nil).ImportXML(ctx, s, doc.ID, xmlOptions)
	require.NoError(t, err)
	assert.NotNil(t, annotations)
	assert.Empty(t, annotations)
}

func TestImportXML_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		source  string
		xpath   string
		wantErr error
	}{
		{
			name:    "doctype",
			source:  `<?xml version="1.0"?><!DOCTYPE TEI SYSTEM "tei.dtd"><TEI><text><body>x</body></text></TEI>`,
			xpath:   DefaultXPath,
			wantErr: model.ErrInvalidDocument,
		},
		{
			name:    "doctype without declaration",
			source:  `<!DOCTYPE TEI><TEI><text><body>x</body></text></TEI>`,
			xpath:   DefaultXPath,
			wantErr: model.ErrInvalidDocument,
		},
		{
			name:    "internal entity",
			source:  `<!DOCTYPE TEI [<!ENTITY x "y">]><TEI><text><body>&x;</body></text></TEI>`,
			xpath:   DefaultXPath,
			wantErr: model.ErrInvalidDocument,
		},
		{
			name:    "malformed",
			source:  `<TEI><text><body>open`,
			xpath:   DefaultXPath,
			wantErr: model.ErrInvalidDocument,
		},
		{
			name:    "bad xpath",
			source:  teiDocument,
			xpath:   "//[",
			wantErr: model.ErrInvalidPattern,
		},
		{
			name:    "comment selected",
			source:  `<TEI><text><body>a<!-- note -->b</body></text></TEI>`,
			xpath:   DefaultXPath,
			wantErr: model.ErrInvalidDocument,
		},
		{
			name:    "empty xpath selects the document",
			source:  teiDocument,
			wantErr: model.ErrInvalidDocument,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := memory.New(fanOut())
			doc := newDocument(t, s, tc.source)

			opts := xmlOptions
			opts.XPath = tc.xpath
			_, err := NewAnnotator(nil).ImportXML(ctx, s, doc.ID, opts)
			assert.ErrorIs(t, err, tc.wantErr)

			_, ok, err := s.GetProperty(ctx, doc.ID, "plainText")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestImportXML_MissingProperty(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	e, err := s.CreateElement(ctx, "Text")
	require.NoError(t, err)

	_, err = NewAnnotator(nil).ImportXML(ctx, s, e.ID, xmlOptions)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
