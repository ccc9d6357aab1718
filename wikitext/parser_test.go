package wikitext

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text only",
		"{{Cite_web| unnamed1 | unnamed2 | foo = value | bar = value2 }}",
		"<ref name=john/>",
		"<ref name = 'a b' >x</ref>",
		"[https://example.com {{ flag | USA }}]",
		"[[Foo_bar|baz]] and [[Qux]]",
		"{{a|{{b|c=d}}|e=[[f|g]]}}",
		"{{unclosed|x",
		"[[unclosed",
		"[not a link]",
		"<ref>never closed",
		"<!-- unterminated",
		"a <!-- c --> b",
		"{{{1|default}}}",
		"<nowiki>{{x}}</nowiki>",
		"<br> <br/> <div>a<div>b</div></div>",
		"}} ]] |= stray",
		"<ref name=\"x\">{{cite|a=<ref>b</ref>}}</ref>",
		"[http://x.org\nbroken]",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Parse(in).String(), "round trip of %q", in)
	}
}

func TestParseTemplate(t *testing.T) {
	code := Parse("{{Cite web| a | b=c | {{x|y=z}} |d = [[e|f]] }}")
	require.Len(t, code.Nodes, 1)
	tpl, ok := code.Nodes[0].(*Template)
	require.True(t, ok)

	assert.Equal(t, "Cite web", tpl.Name)
	require.Len(t, tpl.Params, 4)

	assert.Equal(t, "1", tpl.Params[0].Name)
	assert.False(t, tpl.Params[0].ShowKey)
	assert.Equal(t, " a ", tpl.Params[0].Value)

	assert.Equal(t, " b", tpl.Params[1].Name)
	assert.True(t, tpl.Params[1].ShowKey)
	assert.Equal(t, "c ", tpl.Params[1].Value)

	// '=' innerhalb einer verschachtelten Vorlage macht den Parameter nicht benannt
	assert.Equal(t, "2", tpl.Params[2].Name)
	assert.False(t, tpl.Params[2].ShowKey)

	p, ok := tpl.Get("d")
	require.True(t, ok)
	assert.Equal(t, " [[e|f]] ", p.Value)
}

func TestParseTags(t *testing.T) {
	code := Parse(`x<ref name=john/>y<REF name="a">{{c}}</REF>`)
	require.Len(t, code.Nodes, 4)

	self, ok := code.Nodes[1].(*Tag)
	require.True(t, ok)
	assert.True(t, self.SelfClosing)
	assert.True(t, self.Is("ref"))
	attr, ok := self.Attr("name")
	require.True(t, ok)
	assert.Equal(t, "john", attr.Value)
	assert.Empty(t, attr.Quote)

	full, ok := code.Nodes[3].(*Tag)
	require.True(t, ok)
	assert.False(t, full.SelfClosing)
	assert.Equal(t, "{{c}}", full.Contents)
	assert.Equal(t, "</REF>", full.CloseTag)
	attr, ok = full.Attr("NAME")
	require.True(t, ok)
	assert.Equal(t, `"`, attr.Quote)
}

func TestParseNestedSameNameTags(t *testing.T) {
	code := Parse("<div>a<div>b</div>c</div>d")
	require.Len(t, code.Nodes, 2)
	tag := code.Nodes[0].(*Tag)
	assert.Equal(t, "a<div>b</div>c", tag.Contents)
	assert.Equal(t, "d", code.Nodes[1].String())
}

func TestParseLiteralTagContentsAreOpaque(t *testing.T) {
	code := Parse("<nowiki><nowiki>{{x}}</nowiki>")
	require.Len(t, code.Nodes, 1)
	tag := code.Nodes[0].(*Tag)
	assert.Equal(t, "<nowiki>{{x}}", tag.Contents)
}

func TestParseLinks(t *testing.T) {
	code := Parse("[[Honolulu_Star-Bulletin]] [https://example.com  {{flag|USA}}] [//x.org]")
	var links []Node
	for _, n := range code.Nodes {
		if _, ok := n.(*Text); !ok {
			links = append(links, n)
		}
	}
	require.Len(t, links, 3)

	wl := links[0].(*Wikilink)
	assert.Equal(t, "Honolulu_Star-Bulletin", wl.Title)
	assert.False(t, wl.HasText)

	el := links[1].(*ExternalLink)
	assert.Equal(t, "https://example.com", el.URL)
	assert.Equal(t, "  ", el.Space)
	assert.Equal(t, "{{flag|USA}}", el.Title)

	bare := links[2].(*ExternalLink)
	assert.Equal(t, "//x.org", bare.URL)
	assert.Empty(t, bare.Title)
}

func TestParseUnmatchedDegradesToText(t *testing.T) {
	for _, in := range []string{"{{x", "[[y", "<ref>z", "[https://a.b title"} {
		code := Parse(in)
		require.Len(t, code.Nodes, 1, in)
		_, ok := code.Nodes[0].(*Text)
		assert.True(t, ok, in)
	}
}

func TestParseComment(t *testing.T) {
	code := Parse("a<!-- {{x}} -->b")
	require.Len(t, code.Nodes, 3)
	c, ok := code.Nodes[1].(*Comment)
	require.True(t, ok)
	assert.Equal(t, "<!-- {{x}} -->", c.Raw)
}

func TestParseEmptyAttributeValue(t *testing.T) {
	for _, in := range []string{"<ref group=/>", "<ref group= />", "<ref name= >x</ref>"} {
		code := Parse(in)
		require.Len(t, code.Nodes, 1, in)
		tag, ok := code.Nodes[0].(*Tag)
		require.True(t, ok, in)
		require.Len(t, tag.Attributes, 1, in)
		attr := tag.Attributes[0]
		assert.True(t, attr.HasValue, in)
		assert.Equal(t, "=", attr.Eq, in)
		assert.Empty(t, attr.Value, in)
		assert.Equal(t, in, code.String())
	}

	tag := Parse("<ref group= />").Nodes[0].(*Tag)
	assert.Equal(t, " ", tag.Padding)
}

func TestParseLinkTitleNewlines(t *testing.T) {
	_, ok := Parse("[[a\nb]]").Nodes[0].(*Wikilink)
	assert.False(t, ok)

	// Umbrüche in eingebetteten Vorlagen zählen nicht
	code := Parse("[[a {{x|\n}}]]")
	require.Len(t, code.Nodes, 1)
	link, ok := code.Nodes[0].(*Wikilink)
	require.True(t, ok)
	assert.Equal(t, "a {{x|\n}}", link.Title)

	link, ok = Parse("[[a|b\nc]]").Nodes[0].(*Wikilink)
	require.True(t, ok)
	assert.Equal(t, "b\nc", link.Text)
}

func TestParseRemembersUnclosedOpeners(t *testing.T) {
	p := newParser("{{a {{b")
	p.parse()
	assert.True(t, p.isUnclosed("}}", 2))
	assert.True(t, p.isUnclosed("}}", 6))

	p = newParser("[[a [[b")
	p.parse()
	assert.True(t, p.isUnclosed("]]", 2))
	assert.True(t, p.isUnclosed("]]", 6))

	p = newParser("<span>a<span>b")
	p.parse()
	assert.True(t, p.isUnclosed("</span", 6))
	assert.True(t, p.isUnclosed("</span", 13))

	// ein geschlossener innerer Öffner wird weiterhin erkannt
	code := Parse("{{ {{a}}")
	require.Len(t, code.Nodes, 2)
	assert.IsType(t, &Template{}, code.Nodes[1])

	code = Parse("<span>a<span>b</span>")
	require.Len(t, code.Nodes, 2)
	assert.Equal(t, "b", code.Nodes[1].(*Tag).Contents)
}

func TestParseManyUnclosedOpeners(t *testing.T) {
	inputs := []string{
		strings.Repeat("{{x ", 20000),
		strings.Repeat("[[x ", 20000),
		strings.Repeat("<span>x ", 20000),
		strings.Repeat("{{x [[y <div>z ", 10000),
	}
	for _, in := range inputs {
		start := time.Now()
		code := Parse(in)
		assert.Equal(t, in, code.String())
		assert.Less(t, time.Since(start), 5*time.Second)
	}
}
