// Package wikitext zerlegt Wikitext in einen Baum typisierter Knoten und serialisiert ihn verlustfrei zurück.
package wikitext

import "strings"

// Node ist ein Knoten im Wikitext-Baum. Die Menge der Knotentypen ist geschlossen.
type Node interface {
	String() string
	node()
}

// Wikicode ist eine geordnete Folge von Knoten.
type Wikicode struct {
	Nodes []Node
}

func (w *Wikicode) String() string {
	var b strings.Builder
	for _, n := range w.Nodes {
		b.WriteString(n.String())
	}
	return b.String()
}

// Text ist unstrukturierter Fließtext.
type Text struct {
	Value string
}

func (t *Text) String() string { return t.Value }
func (*Text) node()            {}

// Comment ist ein HTML-Kommentar, inklusive Begrenzer. Er wird nie verändert.
type Comment struct {
	Raw string
}

func (c *Comment) String() string { return c.Raw }
func (*Comment) node()            {}

// Template ist eine Vorlageneinbindung {{Name|...}}.
type Template struct {
	Name   string
	Params []*Parameter
}

// Parameter ist ein Vorlagenparameter. Positionsparameter tragen implizite Namen ("1", "2", ...)
// und ShowKey=false.
type Parameter struct {
	Name    string
	Value   string
	ShowKey bool
}

func (p *Parameter) String() string {
	if p.ShowKey {
		return p.Name + "=" + p.Value
	}
	return p.Value
}

func (t *Template) String() string {
	var b strings.Builder
	b.WriteString("{{")
	b.WriteString(t.Name)
	for _, p := range t.Params {
		b.WriteByte('|')
		b.WriteString(p.String())
	}
	b.WriteString("}}")
	return b.String()
}

func (*Template) node() {}

// Get liefert den ersten Parameter mit dem (getrimmten) Namen.
func (t *Template) Get(name string) (*Parameter, bool) {
	for _, p := range t.Params {
		if strings.TrimSpace(p.Name) == name {
			return p, true
		}
	}
	return nil, false
}

// Wikilink ist ein interner Link [[Titel|Text]].
type Wikilink struct {
	Title   string
	Text    string
	HasText bool
}

func (l *Wikilink) String() string {
	if l.HasText {
		return "[[" + l.Title + "|" + l.Text + "]]"
	}
	return "[[" + l.Title + "]]"
}

func (*Wikilink) node() {}

// ExternalLink ist ein geklammerter externer Link [URL Titel].
type ExternalLink struct {
	URL   string
	Space string
	Title string
}

func (l *ExternalLink) String() string {
	return "[" + l.URL + l.Space + l.Title + "]"
}

func (*ExternalLink) node() {}

// Attribute ist ein Tag-Attribut. Pad und Eq halten den Original-Leerraum fest.
type Attribute struct {
	Pad      string
	Name     string
	HasValue bool
	Eq       string
	Quote    string
	Value    string
}

func (a *Attribute) String() string {
	if !a.HasValue {
		return a.Pad + a.Name
	}
	return a.Pad + a.Name + a.Eq + a.Quote + a.Value + a.Quote
}

// Tag ist ein HTML- oder Extension-Tag wie <ref>.
type Tag struct {
	Name        string
	Attributes  []*Attribute
	Padding     string
	SelfClosing bool
	Contents    string
	CloseTag    string
}

func (t *Tag) String() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(t.Name)
	for _, a := range t.Attributes {
		b.WriteString(a.String())
	}
	b.WriteString(t.Padding)
	if t.SelfClosing {
		b.WriteString("/>")
		return b.String()
	}
	b.WriteByte('>')
	b.WriteString(t.Contents)
	b.WriteString(t.CloseTag)
	return b.String()
}

func (*Tag) node() {}

// Attr liefert das erste Attribut mit dem Namen (Groß-/Kleinschreibung egal).
func (t *Tag) Attr(name string) (*Attribute, bool) {
	for _, a := range t.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return nil, false
}

// Is meldet, ob der Tag den Namen trägt (Groß-/Kleinschreibung egal).
func (t *Tag) Is(name string) bool {
	return strings.EqualFold(t.Name, name)
}

// literalTags sind Tags, deren Inhalt nicht als Wikitext geparst wird.
var literalTags = map[string]bool{
	"categorytree":    true,
	"ce":              true,
	"chem":            true,
	"gallery":         true,
	"graph":           true,
	"hiero":           true,
	"imagemap":        true,
	"inputbox":        true,
	"math":            true,
	"nowiki":          true,
	"pre":             true,
	"score":           true,
	"section":         true,
	"source":          true,
	"syntaxhighlight": true,
	"templatedata":    true,
	"timeline":        true,
}

// IsLiteralTag meldet, ob der Inhalt eines Tags dieses Namens wörtlich zu behandeln ist.
func IsLiteralTag(name string) bool {
	return literalTags[strings.ToLower(name)]
}
