package wikitext

import (
	"strconv"
	"strings"
)

// Parse zerlegt Text in Knoten. Nicht geschlossene Konstrukte bleiben Text,
// sodass Parse(s).String() == s für jede Eingabe gilt.
func Parse(text string) *Wikicode {
	return &Wikicode{Nodes: newParser(text).parse()}
}

type parser struct {
	src   string
	nodes []Node
	text  strings.Builder

	// lastTriple ist die Position des letzten "}}}" oder -1.
	lastTriple int
	// unclosed merkt sich Inhaltsanfänge, hinter denen kein Schließer mehr folgt.
	unclosed map[closeKey]bool
}

type closeKey struct {
	closer string // "}}", "]]" oder "</name"
	start  int
}

func newParser(src string) *parser {
	return &parser{src: src, lastTriple: strings.LastIndex(src, "}}}")}
}

func (p *parser) markUnclosed(closer string, starts ...int) {
	if len(starts) == 0 {
		return
	}
	if p.unclosed == nil {
		p.unclosed = make(map[closeKey]bool)
	}
	for _, start := range starts {
		p.unclosed[closeKey{closer: closer, start: start}] = true
	}
}

func (p *parser) isUnclosed(closer string, start int) bool {
	return p.unclosed[closeKey{closer: closer, start: start}]
}

// tripleBrace liefert das Ende eines Vorlagenarguments ({{{1}}}) ab i.
func (p *parser) tripleBrace(i int) (int, bool) {
	if p.lastTriple < i+3 {
		return 0, false
	}
	e := strings.Index(p.src[i+3:], "}}}")
	if e < 0 {
		return 0, false
	}
	return i + 3 + e + 3, true
}

func (p *parser) parse() []Node {
	s := p.src
	for i := 0; i < len(s); {
		var (
			n   Node
			end int
			ok  bool
		)
		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			n, end, ok = parseComment(s, i)
		case strings.HasPrefix(rest, "{{{"):
			// Vorlagenargumente ({{{1}}}) bleiben Text.
			if e, found := p.tripleBrace(i); found {
				p.text.WriteString(s[i:e])
				i = e
				continue
			}
		case strings.HasPrefix(rest, "{{"):
			n, end, ok = p.parseTemplate(i)
		case strings.HasPrefix(rest, "[["):
			n, end, ok = p.parseWikilink(i)
		case rest[0] == '[':
			n, end, ok = parseExternalLink(s, i)
		case rest[0] == '<':
			n, end, ok = p.parseTag(i)
		}
		if ok {
			p.flush()
			p.nodes = append(p.nodes, n)
			i = end
			continue
		}
		p.text.WriteByte(s[i])
		i++
	}
	p.flush()
	return p.nodes
}

func (p *parser) flush() {
	if p.text.Len() == 0 {
		return
	}
	p.nodes = append(p.nodes, &Text{Value: p.text.String()})
	p.text.Reset()
}

func parseComment(s string, i int) (Node, int, bool) {
	e := strings.Index(s[i+4:], "-->")
	if e < 0 {
		return &Comment{Raw: s[i:]}, len(s), true
	}
	end := i + 4 + e + 3
	return &Comment{Raw: s[i:end]}, end, true
}

// scan läuft ab start über den Text und überspringt verschachtelte Vorlagen, Links, Kommentare und Tags.
// visit wird für jedes Byte auf oberster Ebene aufgerufen; liefert visit false, endet der Lauf dort.
// Rückgabe ist die Position des Schließers (closer) bzw. des Abbruchs, sonst -1.
//
// Bleiben verschachtelte Öffner bis zum Ende offen, findet auch ein Scan ab ihrem Inhalt keinen
// Schließer. Das wird vermerkt; ein offener "{{" beendet außerdem jeden umgebenden Scan.
func (p *parser) scan(start int, closer string, visit func(int) bool) int {
	s := p.src
	var braces, links []int
	fail := func() int {
		p.markUnclosed("}}", braces...)
		p.markUnclosed("]]", links...)
		if closer == "}}" || closer == "]]" {
			p.markUnclosed(closer, start)
		}
		return -1
	}
	openBrace := func(j int) bool {
		if p.isUnclosed("}}", j+2) {
			return false
		}
		braces = append(braces, j+2)
		return true
	}

	for j := start; j < len(s); {
		rest := s[j:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			e := strings.Index(rest[4:], "-->")
			if e < 0 {
				return fail()
			}
			j += 4 + e + 3
		case rest[0] == '<':
			if _, end, ok := p.parseTag(j); ok {
				j = end
			} else {
				j++
			}
		case strings.HasPrefix(rest, "{{{"):
			if end, ok := p.tripleBrace(j); ok {
				j = end
				continue
			}
			if !openBrace(j) {
				return fail()
			}
			j += 2
		case strings.HasPrefix(rest, "{{"):
			if !openBrace(j) {
				return fail()
			}
			j += 2
		case strings.HasPrefix(rest, "}}"):
			if len(braces) == 0 {
				if closer == "}}" {
					return j
				}
				j += 2
				continue
			}
			braces = braces[:len(braces)-1]
			j += 2
		case strings.HasPrefix(rest, "[["):
			links = append(links, j+2)
			j += 2
		case strings.HasPrefix(rest, "]]"):
			if len(links) == 0 {
				if closer == "]]" && len(braces) == 0 {
					return j
				}
				j += 2
				continue
			}
			links = links[:len(links)-1]
			j += 2
		default:
			if len(braces) == 0 && len(links) == 0 && visit != nil && !visit(j) {
				return j
			}
			j++
		}
	}
	return fail()
}

func (p *parser) parseTemplate(i int) (Node, int, bool) {
	if p.isUnclosed("}}", i+2) {
		return nil, 0, false
	}
	s := p.src
	var pipes []int
	end := p.scan(i+2, "}}", func(j int) bool {
		if s[j] == '|' {
			pipes = append(pipes, j)
		}
		return true
	})
	if end < 0 {
		return nil, 0, false
	}

	segStart := i + 2
	segments := make([]string, 0, len(pipes)+1)
	for _, pos := range pipes {
		segments = append(segments, s[segStart:pos])
		segStart = pos + 1
	}
	segments = append(segments, s[segStart:end])
	if strings.TrimSpace(segments[0]) == "" {
		return nil, 0, false
	}

	t := &Template{Name: segments[0]}
	position := 0
	for _, seg := range segments[1:] {
		if eq := topLevelEquals(seg); eq >= 0 {
			t.Params = append(t.Params, &Parameter{Name: seg[:eq], Value: seg[eq+1:], ShowKey: true})
			continue
		}
		position++
		t.Params = append(t.Params, &Parameter{Name: strconv.Itoa(position), Value: seg})
	}
	return t, end + 2, true
}

func topLevelEquals(seg string) int {
	return newParser(seg).scan(0, "", func(j int) bool { return seg[j] != '=' })
}

// parseWikilink erkennt [[Titel|Text]]. Ein Zeilenumbruch im Titel ist nur auf oberster Ebene
// verboten; Umbrüche in eingebetteten Vorlagen oder Tags zählen nicht.
func (p *parser) parseWikilink(i int) (Node, int, bool) {
	if p.isUnclosed("]]", i+2) {
		return nil, 0, false
	}
	s := p.src
	pipe := -1
	broken := false
	end := p.scan(i+2, "]]", func(j int) bool {
		switch {
		case pipe >= 0:
		case s[j] == '|':
			pipe = j
		case s[j] == '\n':
			broken = true
		}
		return true
	})
	if end < 0 || broken {
		return nil, 0, false
	}
	link := &Wikilink{Title: s[i+2 : end]}
	if pipe >= 0 {
		link.Title = s[i+2 : pipe]
		link.Text = s[pipe+1 : end]
		link.HasText = true
	}
	if strings.TrimSpace(link.Title) == "" {
		return nil, 0, false
	}
	return link, end + 2, true
}

var urlSchemes = []string{
	"http://", "https://", "ftp://", "ftps://", "sftp://", "//", "mailto:", "news:",
	"irc://", "ircs://", "gopher://", "git://", "svn://", "ssh://", "telnet://",
	"nntp://", "mms://", "urn:", "xmpp:", "sip:", "sips:", "sms:", "tel:", "geo:", "magnet:",
}

func hasURLScheme(s string) bool {
	for _, scheme := range urlSchemes {
		if len(s) > len(scheme) && strings.EqualFold(s[:len(scheme)], scheme) {
			return true
		}
	}
	return false
}

func parseExternalLink(s string, i int) (Node, int, bool) {
	start := i + 1
	if !hasURLScheme(s[start:]) {
		return nil, 0, false
	}
	k := start
	for k < len(s) && !isSpace(s[k]) && s[k] != ']' && s[k] != '[' && s[k] != '<' {
		k++
	}
	if k >= len(s) {
		return nil, 0, false
	}
	url := s[start:k]
	if s[k] == ']' {
		return &ExternalLink{URL: url}, k + 1, true
	}
	if s[k] != ' ' && s[k] != '\t' {
		return nil, 0, false
	}
	m := k
	for m < len(s) && (s[m] == ' ' || s[m] == '\t') {
		m++
	}
	depth := 0
	for n := m; n < len(s); {
		switch {
		case strings.HasPrefix(s[n:], "{{"):
			depth++
			n += 2
		case strings.HasPrefix(s[n:], "}}") && depth > 0:
			depth--
			n += 2
		case s[n] == '\n' && depth == 0:
			return nil, 0, false
		case s[n] == ']' && depth == 0:
			return &ExternalLink{URL: url, Space: s[k:m], Title: s[m:n]}, n + 1, true
		default:
			n++
		}
	}
	return nil, 0, false
}

// voidTags haben nie einen schließenden Tag.
var voidTags = map[string]bool{
	"br": true, "hr": true, "wbr": true, "img": true, "meta": true, "link": true, "input": true, "col": true,
}

func (p *parser) parseTag(i int) (Node, int, bool) {
	s := p.src
	j := i + 1
	if j >= len(s) || !isLetter(s[j]) {
		return nil, 0, false
	}
	k := j
	for k < len(s) && isNameChar(s[k]) {
		k++
	}
	tag := &Tag{Name: s[j:k]}

	pos := k
	afterQuoted := false
	for {
		ws := pos
		for ws < len(s) && isSpace(s[ws]) {
			ws++
		}
		if ws >= len(s) {
			return nil, 0, false
		}
		pad := s[pos:ws]
		if s[ws] == '>' {
			tag.Padding = pad
			pos = ws + 1
			break
		}
		if strings.HasPrefix(s[ws:], "/>") {
			tag.Padding = pad
			tag.SelfClosing = true
			return tag, ws + 2, true
		}
		if pad == "" && !afterQuoted {
			return nil, 0, false
		}
		attr, next, ok := parseAttribute(s, ws)
		if !ok {
			return nil, 0, false
		}
		attr.Pad = pad
		tag.Attributes = append(tag.Attributes, attr)
		afterQuoted = attr.Quote != ""
		pos = next
	}

	if voidTags[strings.ToLower(tag.Name)] {
		return nil, 0, false
	}
	closeStart, closeEnd, ok := p.findCloseTag(pos, tag.Name)
	if !ok {
		return nil, 0, false
	}
	tag.Contents = s[pos:closeStart]
	tag.CloseTag = s[closeStart:closeEnd]
	return tag, closeEnd, true
}

func parseAttribute(s string, i int) (*Attribute, int, bool) {
	k := i
	for k < len(s) && !isSpace(s[k]) && s[k] != '=' && s[k] != '>' && !strings.HasPrefix(s[k:], "/>") {
		k++
	}
	if k == i {
		return nil, 0, false
	}
	a := &Attribute{Name: s[i:k]}

	m := k
	for m < len(s) && isSpace(s[m]) {
		m++
	}
	if m >= len(s) || s[m] != '=' {
		return a, k, true
	}
	eq := m + 1
	m = eq
	for m < len(s) && isSpace(s[m]) {
		m++
	}
	if m >= len(s) {
		return nil, 0, false
	}
	a.HasValue = true
	if s[m] == '>' || strings.HasPrefix(s[m:], "/>") {
		// leerer Wert: der Leerraum davor gehört zum Tag, nicht zum Attribut
		a.Eq = s[k:eq]
		return a, eq, true
	}
	a.Eq = s[k:m]

	if q := s[m]; q == '"' || q == '\'' {
		e := strings.IndexByte(s[m+1:], q)
		if e < 0 {
			return nil, 0, false
		}
		a.Quote = string(q)
		a.Value = s[m+1 : m+1+e]
		return a, m + 1 + e + 1, true
	}
	v := m
	for v < len(s) && !isSpace(s[v]) && s[v] != '>' && !strings.HasPrefix(s[v:], "/>") {
		v++
	}
	a.Value = s[m:v]
	return a, v, true
}

// findCloseTag sucht den passenden schließenden Tag ab start. Gleichnamige, nicht selbstschließende
// Tags im Inhalt werden mitgezählt, außer bei wörtlichen Tags.
func (p *parser) findCloseTag(start int, name string) (int, int, bool) {
	key := "</" + strings.ToLower(name)
	if p.isUnclosed(key, start) {
		return 0, 0, false
	}
	s := p.src
	literal := IsLiteralTag(name)
	var opens []int
	fail := func() (int, int, bool) {
		p.markUnclosed(key, start)
		p.markUnclosed(key, opens...)
		return 0, 0, false
	}

	for j := start; j < len(s); {
		if s[j] != '<' {
			j++
			continue
		}
		if !literal && strings.HasPrefix(s[j:], "<!--") {
			e := strings.Index(s[j+4:], "-->")
			if e < 0 {
				return fail()
			}
			j += 4 + e + 3
			continue
		}
		if j+1 < len(s) && s[j+1] == '/' {
			if matchName(s, j+2, name) {
				k := j + 2 + len(name)
				for k < len(s) && isSpace(s[k]) {
					k++
				}
				if k < len(s) && s[k] == '>' {
					if len(opens) == 0 {
						return j, k + 1, true
					}
					opens = opens[:len(opens)-1]
					j = k + 1
					continue
				}
			}
			j++
			continue
		}
		if !literal && matchName(s, j+1, name) {
			gt := strings.IndexByte(s[j:], '>')
			if gt < 0 {
				return fail()
			}
			if s[j+gt-1] != '/' {
				if p.isUnclosed(key, j+gt+1) {
					return fail()
				}
				opens = append(opens, j+gt+1)
			}
			j += gt + 1
			continue
		}
		j++
	}
	return fail()
}

func matchName(s string, pos int, name string) bool {
	end := pos + len(name)
	if end > len(s) || !strings.EqualFold(s[pos:end], name) {
		return false
	}
	return end == len(s) || !isNameChar(s[end])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == ':'
}
