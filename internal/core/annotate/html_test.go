package annotate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/atag/internal/core/model"
	"github.com/agenthands/atag/internal/store/memory"
)

var testOptions = HTMLOptions{
	PropertyKey:       "html",
	Label:             "Annotation",
	PlainTextProperty: "plainText",
	Relation:          "HAS_ANNOTATION",
}

func newDocument(t *testing.T, s *memory.Store, markup string) model.Element {
	t.Helper()
	e, err := s.CreateElement(context.Background(), "Text")
	require.NoError(t, err)
	require.NoError(t, s.SetProperty(context.Background(), e.ID, "html", model.String(markup)))
	return e
}

type span struct {
	tag        string
	start, end int64
	text       string
}

func spans(annotations []model.Element) []span {
	out := make([]span, 0, len(annotations))
	for _, a := range annotations {
		tag, _ := a.Properties[PropertyTag].AsString()
		start, _ := a.Properties[model.PropertyStartIndex].AsInteger()
		end, _ := a.Properties[model.PropertyEndIndex].AsInteger()
		text, _ := a.Properties["plainText"].AsString()
		out = append(out, span{tag: tag, start: start, end: end, text: text})
	}
	return out
}

func TestImportHTML(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, `<html><head><title>ignored</title></head><body><p>Hello <b>Wörld</b></p><p>again</p></body></html>`)

	annotations, err := NewAnnotator(nil).ImportHTML(ctx, s, doc.ID, testOptions)
	require.NoError(t, err)

	assert.Equal(t, []span{
		{tag: "p", start: 0, end: 11, text: "Hello Wörld"},
		{tag: "b", start: 6, end: 11, text: "Wörld"},
		{tag: "p", start: 11, end: 16, text: "again"},
	}, spans(annotations))

	plain, ok, err := s.GetProperty(ctx, doc.ID, "plainText")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.String("Hello Wörldagain"), plain)

	links, err := s.Links(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, links, 3)
	for _, l := range links {
		assert.Equal(t, "HAS_ANNOTATION", l.Relation)
		assert.Equal(t, doc.ID, l.From)
	}

	stored, err := s.GetElement(ctx, annotations[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Annotation", stored.Tag)
	assert.Equal(t, model.Long(6), stored.Properties[model.PropertyStartIndex])
}

func TestImportHTML_Fragment(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, `plain <i>text</i>`)

	annotations, err := NewAnnotator(nil).ImportHTML(ctx, s, doc.ID, testOptions)
	require.NoError(t, err)
	assert.Equal(t, []span{{tag: "i", start: 6, end: 10, text: "text"}}, spans(annotations))
}

func TestImportHTML_InlineMarkup(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, `This <em>is</em> a <em>emphasized test with a <a href='ref'>link</a></em>. We also have a <br/> line break.`)

	annotations, err := NewAnnotator(nil).ImportHTML(ctx, s, doc.ID, testOptions)
	require.NoError(t, err)
	assert.Equal(t, []span{
		{tag: "em", start: 5, end: 7, text: "is"},
		{tag: "em", start: 10, end: 37, text: "emphasized test with a link"},
		{tag: "a", start: 33, end: 37, text: "link"},
		{tag: "br", start: 54, end: 54, text: ""},
	}, spans(annotations))

	plain, _, err := s.GetProperty(ctx, doc.ID, "plainText")
	require.NoError(t, err)
	assert.Equal(t, model.String("This is a emphasized test with a link. We also have a  line break."), plain)
}

func TestImportHTML_CollapsesWhitespace(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	doc := newDocument(t, s, "<body>\n  <p>Hello\n    <b>big \t world</b>\n  </p>\n</body>")

	annotations, err := NewAnnotator(nil).ImportHTML(ctx, s, doc.ID, testOptions)
	require.NoError(t, err)
	assert.Equal(t, []span{
		{tag: "p", start: 1, end: 17, text: "Hello big world "},
		{tag: "b", start: 7, end: 16, text: "big world"},
	}, spans(annotations))

	plain, _, err := s.GetProperty(ctx, doc.ID, "plainText")
	require.NoError(t, err)
	assert.Equal(t, model.String(" Hello big world  "), plain)
}

func TestCollapseSpace(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"a", "a"},
		{"  a \n\n b  ", " a b "},
		{"a\u00a0\u00a0b", "a b"},
		{"soft\u00adhy\u200bphen", "softhyphen"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, collapseSpace(tc.in), "%q", tc.in)
	}
}

func TestImportHTML_MissingProperty(t *testing.T) {
	ctx := context.Background()
	s := memory.New(fanOut())
	e, err := s.CreateElement(ctx, "Text")
	require.NoError(t, err)

	_, err = NewAnnotator(nil).ImportHTML(ctx, s, e.ID, testOptions)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.SetProperty(ctx, e.ID, "html", model.Long(1)))
	_, err = NewAnnotator(nil).ImportHTML(ctx, s, e.ID, testOptions)
	assert.ErrorIs(t, err, model.ErrUnsupportedValue)
}

func fanOut() memory.Option {
	return memory.FanOut(testOptions.Relation)
}
