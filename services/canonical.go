package services

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"wikicite/wikitext"
)

// Canonicalize bringt Zitat-Markup in eine stabile, formatierungsunabhängige Textform.
// Die Funktion ist rein und idempotent: Canonicalize(Canonicalize(s)) == Canonicalize(s).
func Canonicalize(text string) string {
	return strings.TrimSpace(CanonicalizeTree(wikitext.Parse(text)).String())
}

// CanonicalizeTree kanonisiert alle Knoten der obersten Ebene in ihrer Reihenfolge.
// Der Eingabebaum bleibt unverändert.
func CanonicalizeTree(code *wikitext.Wikicode) *wikitext.Wikicode {
	out := &wikitext.Wikicode{Nodes: make([]wikitext.Node, len(code.Nodes))}
	for i, n := range code.Nodes {
		out.Nodes[i] = canonicalizeNode(n)
	}
	return out
}

func canonicalizeNode(n wikitext.Node) wikitext.Node {
	switch n := n.(type) {
	case *wikitext.Template:
		return canonicalizeTemplate(n)
	case *wikitext.Tag:
		return canonicalizeTag(n)
	case *wikitext.ExternalLink:
		return &wikitext.ExternalLink{URL: n.URL, Space: n.Space, Title: canonicalizeFragment(n.Title)}
	case *wikitext.Wikilink:
		return canonicalizeWikilink(n)
	default:
		// Text, Kommentare und Unbekanntes bleiben wie sie sind.
		return n
	}
}

func canonicalizeFragment(s string) string {
	return CanonicalizeTree(wikitext.Parse(s)).String()
}

// canonicalizeWikilink ersetzt Unterstriche im Titel. Ein Titel, der dadurch leer würde,
// bleibt stehen, da [[ |x]] kein Link mehr wäre.
func canonicalizeWikilink(l *wikitext.Wikilink) *wikitext.Wikilink {
	title := strings.ReplaceAll(l.Title, "_", " ")
	if strings.TrimSpace(title) == "" {
		title = l.Title
	}
	return &wikitext.Wikilink{Title: title, Text: l.Text, HasText: l.HasText}
}

func canonicalizeTemplate(t *wikitext.Template) *wikitext.Template {
	out := &wikitext.Template{Name: templateName(t.Name)}

	var named []*wikitext.Parameter
	for _, p := range t.Params {
		if p.ShowKey {
			named = append(named, &wikitext.Parameter{Name: parameterKey(p.Name), Value: p.Value, ShowKey: true})
			continue
		}
		out.Params = append(out.Params, &wikitext.Parameter{Name: p.Name, Value: parameterValue(p.Value)})
	}
	sort.SliceStable(named, func(i, j int) bool { return named[i].Name < named[j].Name })
	for _, p := range named {
		p.Value = parameterValue(p.Value)
		out.Params = append(out.Params, p)
	}
	return out
}

// templateName entfernt Leerraum, ersetzt Unterstriche und setzt den ersten Buchstaben groß,
// sofern der Name nicht vollständig in Großbuchstaben steht (z.B. CURRENTYEAR).
func templateName(name string) string {
	if strings.ContainsAny(name, "{}") {
		// dynamische Namen ({{ {{x}} }}) würden nach dem Trimmen anders geparst
		return name
	}
	n := strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if n == "" {
		// {{_}} bleibt eine Vorlage
		return name
	}
	if isUpper(n) {
		return n
	}
	r, size := utf8.DecodeRuneInString(n)
	return string(unicode.ToUpper(r)) + n[size:]
}

func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func parameterKey(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

// parameterValue normalisiert Leerraum und kanonisiert direkt eingebettete Vorlagen und Wikilinks.
func parameterValue(value string) string {
	v := collapseWhitespace(value)

	var lines []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	v = strings.Join(lines, "\n")

	code := wikitext.Parse(v)
	for i, n := range code.Nodes {
		switch n := n.(type) {
		case *wikitext.Template:
			code.Nodes[i] = canonicalizeTemplate(n)
		case *wikitext.Wikilink:
			code.Nodes[i] = canonicalizeWikilink(n)
		}
	}
	// Unterstriche neben Leerzeichen können neue Leerraumfolgen erzeugen.
	return collapseWhitespace(code.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func canonicalizeTag(t *wikitext.Tag) *wikitext.Tag {
	out := &wikitext.Tag{
		Name:        t.Name,
		Attributes:  make([]*wikitext.Attribute, len(t.Attributes)),
		Padding:     t.Padding,
		SelfClosing: t.SelfClosing,
		Contents:    t.Contents,
		CloseTag:    t.CloseTag,
	}
	isRef := t.Is("ref")
	for i, a := range t.Attributes {
		if isRef && strings.EqualFold(a.Name, "name") && a.HasValue {
			out.Attributes[i] = refNameAttribute(a)
			continue
		}
		cp := *a
		out.Attributes[i] = &cp
	}
	if isRef && t.SelfClosing {
		out.Padding = " "
	}
	if !t.SelfClosing && !wikitext.IsLiteralTag(t.Name) {
		out.Contents = canonicalizeFragment(t.Contents)
	}
	return out
}

// refNameAttribute schreibt name als ` name="…"`. Enthält der Wert selbst ein doppeltes
// Anführungszeichen, wird auf einfache ausgewichen, damit das Ergebnis wieder gleich geparst wird.
func refNameAttribute(a *wikitext.Attribute) *wikitext.Attribute {
	value := strings.TrimSpace(strings.Trim(strings.TrimSpace(a.Value), `"'`))
	quote := `"`
	if strings.Contains(value, `"`) {
		if strings.Contains(value, "'") {
			cp := *a
			return &cp
		}
		quote = "'"
	}
	return &wikitext.Attribute{Pad: " ", Name: "name", HasValue: true, Eq: "=", Quote: quote, Value: value}
}
