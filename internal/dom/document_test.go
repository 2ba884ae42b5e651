package dom

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saintjustus/windowshell/internal/shared/types"
)

const page = `<!doctype html>
<html><head>
<title>home</title>
<meta name="description" content="old">
<meta itemprop="description" content="old">
</head><body>
<nav><a href="/" data-nav-link="home">home</a><a href="/art" data-nav-link="art">art</a></nav>
<main data-page-root><section data-page-fragment data-page="home"><p>hi</p></section></main>
<div data-window-layer="art"><article class="shell-window"></article></div>
<div class="audio-player" data-height="72px"></div>
<script type="application/json" data-page-bootstrap>{"id":"home"}</script>
</body></html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	d, err := ParseString(page)
	require.NoError(t, err)
	return d
}

func TestApplyMeta(t *testing.T) {
	d := mustParse(t)
	d.Do(func(q *goquery.Document) {
		d.ApplyMeta(types.PagePayload{ID: "art", Route: "/art", Title: "art | saint justus", Description: "paintings"})
		d.SetActiveNav("art")

		assert.Equal(t, "art | saint justus", d.Title())
		assert.Equal(t, "art", d.CurrentPage())
		route, _ := q.Find("body").Attr(AttrRoute)
		assert.Equal(t, "/art", route)
		desc, _ := q.Find(`meta[name="description"]`).Attr("content")
		assert.Equal(t, "paintings", desc)
		item, _ := q.Find(`meta[itemprop="description"]`).Attr("content")
		assert.Equal(t, "paintings", item)

		_, homeCurrent := q.Find(`[data-nav-link="home"]`).Attr(AttrAriaCurrent)
		artCurrent, _ := q.Find(`[data-nav-link="art"]`).Attr(AttrAriaCurrent)
		assert.False(t, homeCurrent)
		assert.Equal(t, "page", artCurrent)
	})
}

func TestApplyMetaWithoutTitleKeepsMarkers(t *testing.T) {
	d := mustParse(t)
	d.Do(func(*goquery.Document) {
		d.ApplyMeta(types.PagePayload{ID: "art", Description: "only desc"})
		assert.Equal(t, "home", d.Title())
		assert.Equal(t, "", d.CurrentPage())
	})
}

func TestBootstrapRemovesElement(t *testing.T) {
	d := mustParse(t)
	text, ok := d.Bootstrap()
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"home"}`, text)

	_, ok = d.Bootstrap()
	assert.False(t, ok)
}

func TestLayerLookup(t *testing.T) {
	d := mustParse(t)
	d.Do(func(*goquery.Document) {
		layer := d.Layer("art")
		require.NotNil(t, layer)
		assert.Len(t, FindAll(layer, ".shell-window"), 1)
		assert.Nil(t, d.Layer("music"))
		assert.Nil(t, d.Layer("x' or '1'='1"))
		assert.Contains(t, d.Layers(), "art")

		frag := d.CurrentFragment()
		require.NotNil(t, frag)
		v, _ := Attr(frag, "data-page")
		assert.Equal(t, "home", v)
	})
}

func TestMeasureFooter(t *testing.T) {
	d := mustParse(t)
	d.SetViewport(1280, 800)
	assert.Equal(t, 72.0, d.MeasureFooter())
	l := d.Layout()
	assert.Equal(t, 1280.0, l.ViewportWidth)
	assert.Equal(t, 72.0, l.FooterHeight)

	d.Do(func(q *goquery.Document) { q.Find(SelectorAudioPlayer).Remove() })
	assert.Equal(t, 0.0, d.MeasureFooter())
}

func TestStyleRoundTrip(t *testing.T) {
	n := NewElement("div", "shell-window")
	SetStyle(n, map[string]string{"left": Px(10), "z-index": "11"})
	SetStyle(n, map[string]string{"top": Px(20.5)})
	v, ok := StylePx(n, "top")
	require.True(t, ok)
	assert.Equal(t, 20.5, v)
	assert.Equal(t, "11", Style(n)["z-index"])

	SetStyle(n, map[string]string{"z-index": ""})
	assert.NotContains(t, Style(n), "z-index")
	raw, _ := Attr(n, "style")
	assert.Equal(t, "left: 10px; top: 20.5px", raw)
}

func TestClassHelpers(t *testing.T) {
	n := NewElement("article", "shell-window")
	SetClass(n, "is-active", true)
	AddClass(n, "is-visible")
	assert.True(t, HasClass(n, "is-active"))
	SetClass(n, "is-active", false)
	assert.False(t, HasClass(n, "is-active"))
	assert.True(t, HasClass(n, "is-visible"))
	assert.True(t, HasClass(n, "shell-window"))
}

func TestDetachAndConnected(t *testing.T) {
	parent := NewElement("div")
	child := NewElement("span")
	Append(parent, child)
	assert.True(t, Connected(parent, child))
	Detach(child)
	assert.False(t, Connected(parent, child))
	assert.Nil(t, child.Parent)
	Detach(child)
}
