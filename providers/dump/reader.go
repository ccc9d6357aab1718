// Package dump liest MediaWiki-XML-Exporte (bz2, gzip oder unkomprimiert) revisionsweise.
package dump

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"wikicite/models"
)

type xmlRevision struct {
	ID        string `xml:"id"`
	Timestamp string `xml:"timestamp"`
	Text      string `xml:"text"`
}

// pageHeader hält die Felder der aktuellen Seite; er wird bei jedem <page> ersetzt.
type pageHeader struct {
	depth int
	title string
	ns    string
	id    string
}

// Reader liefert die Revisionen eines Dumps in Dateireihenfolge. Es wird immer nur eine
// Revision dekodiert, der Speicherbedarf hängt also nicht von der Dateigröße ab.
type Reader struct {
	name    string
	dec     *xml.Decoder
	closers []io.Closer
	page    *pageHeader
	depth   int
	skipped int
}

// Open öffnet eine Dump-Datei. Die Kompression wird an der Endung erkannt.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader liest einen Dump aus src; name bestimmt die Kompression (.bz2, .gz, sonst keine).
func NewReader(src io.Reader, name string) (*Reader, error) {
	r := &Reader{name: name}
	in := io.Reader(bufio.NewReaderSize(src, 1<<20))
	switch {
	case strings.HasSuffix(name, ".bz2"):
		in = bzip2.NewReader(in)
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", name, err)
		}
		r.closers = append(r.closers, gz)
		in = gz
	}
	r.dec = xml.NewDecoder(in)
	return r, nil
}

// Next gibt die nächste vollständige Revision zurück. Unvollständige Datensätze werden
// übersprungen und gezählt. Am Ende liefert Next io.EOF.
func (r *Reader) Next() (*models.Revision, error) {
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if r.page != nil && r.depth == r.page.depth {
				switch t.Name.Local {
				case "title", "ns", "id":
					var value string
					if err := r.dec.DecodeElement(&value, &t); err != nil {
						return nil, fmt.Errorf("read %s: %w", r.name, err)
					}
					r.page.set(t.Name.Local, value)
					continue
				case "revision":
					var x xmlRevision
					if err := r.dec.DecodeElement(&x, &t); err != nil {
						return nil, fmt.Errorf("read %s: %w", r.name, err)
					}
					rev, err := r.page.revision(x)
					if err != nil {
						r.skipped++
						continue
					}
					return rev, nil
				}
			}
			r.depth++
			if t.Name.Local == "page" {
				r.page = &pageHeader{depth: r.depth}
			}
		case xml.EndElement:
			if t.Name.Local == "page" && r.page != nil && r.depth == r.page.depth {
				r.page = nil
			}
			r.depth--
		}
	}
}

func (p *pageHeader) set(field, value string) {
	value = strings.TrimSpace(value)
	switch field {
	case "title":
		p.title = value
	case "ns":
		p.ns = value
	case "id":
		if p.id == "" {
			p.id = value
		}
	}
}

func (p *pageHeader) revision(x xmlRevision) (*models.Revision, error) {
	ns, err := strconv.Atoi(p.ns)
	if err != nil {
		return nil, fmt.Errorf("%w: page %q has namespace %q", models.ErrMalformedRevision, p.title, p.ns)
	}
	pageID, _ := strconv.ParseInt(p.id, 10, 64)
	revID, _ := strconv.ParseInt(strings.TrimSpace(x.ID), 10, 64)
	rev := &models.Revision{
		Title:      p.title,
		Namespace:  ns,
		PageID:     pageID,
		RevisionID: revID,
		Timestamp:  models.NormalizeTimestamp(strings.TrimSpace(x.Timestamp)),
		Text:       x.Text,
	}
	if err := rev.Validate(); err != nil {
		return nil, err
	}
	return rev, nil
}

// Skipped gibt die Zahl übersprungener Revisionen zurück.
func (r *Reader) Skipped() int { return r.skipped }

// Close schließt Dekompressor und Datei.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
