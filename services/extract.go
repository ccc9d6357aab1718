package services

import (
	"strings"

	"wikicite/wikitext"
)

// ExtractReferences liefert die Roh-Texte aller Zitate einer Revision in Dokumentreihenfolge:
// <ref>-Tags mit Inhalt sowie Zitiervorlagen außerhalb von <ref>-Tags.
// Selbstschließende Refs (<ref name=x/>) sind reine Verweise und werden übergangen.
func ExtractReferences(text string) []string {
	var refs []string
	collectReferences(wikitext.Parse(text), &refs)
	return refs
}

func collectReferences(code *wikitext.Wikicode, refs *[]string) {
	for _, n := range code.Nodes {
		switch n := n.(type) {
		case *wikitext.Tag:
			switch {
			case n.Is("ref"):
				if !n.SelfClosing && strings.TrimSpace(n.Contents) != "" {
					*refs = append(*refs, n.String())
				}
			case !n.SelfClosing && !wikitext.IsLiteralTag(n.Name):
				// z.B. <references> mit listendefinierten Refs
				collectReferences(wikitext.Parse(n.Contents), refs)
			}
		case *wikitext.Template:
			if isCitationTemplate(n.Name) {
				*refs = append(*refs, n.String())
				continue
			}
			for _, p := range n.Params {
				collectReferences(wikitext.Parse(p.Value), refs)
			}
		}
	}
}

func isCitationTemplate(name string) bool {
	n := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	return n == "cite" || n == "citation" || strings.HasPrefix(n, "cite ")
}

// RefName liefert den name-Wert des ersten <ref>-Tags im Roh-Zitat, sonst nil.
func RefName(raw string) *string {
	return findRefName(wikitext.Parse(raw))
}

func findRefName(code *wikitext.Wikicode) *string {
	for _, n := range code.Nodes {
		tag, ok := n.(*wikitext.Tag)
		if !ok {
			continue
		}
		if tag.Is("ref") {
			if a, ok := tag.Attr("name"); ok && a.HasValue {
				name := strings.TrimSpace(a.Value)
				return &name
			}
		}
		if !tag.SelfClosing && !wikitext.IsLiteralTag(tag.Name) {
			if name := findRefName(wikitext.Parse(tag.Contents)); name != nil {
				return name
			}
		}
	}
	return nil
}

// Subreferences zerlegt ein kanonisches Zitat, das mehrere Werke bündelt, in seine Teile.
// Teile sind der Text vor der ersten Aufzählungszeile und jede Aufzählungszeile ("* ...").
// Bei weniger als zwei Teilen handelt es sich nicht um ein Bündel und das Ergebnis ist leer.
func Subreferences(canonical string) []string {
	body := canonical
	code := wikitext.Parse(canonical)
	if len(code.Nodes) == 1 {
		if tag, ok := code.Nodes[0].(*wikitext.Tag); ok && tag.Is("ref") {
			body = tag.Contents
		}
	}

	var (
		parts   []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "*") {
			flush()
			current.WriteString(strings.TrimSpace(strings.TrimLeft(trimmed, "*")))
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(trimmed)
	}
	flush()

	if len(parts) < 2 {
		return nil
	}
	return parts
}
