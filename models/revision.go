package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRevision markiert Revisionen, denen Pflichtfelder fehlen.
var ErrMalformedRevision = errors.New("malformed revision")

// MainNamespace ist der Artikelnamensraum.
const MainNamespace = 0

// Revision ist ein einzelner Revisionsdatensatz aus Dump oder API.
type Revision struct {
	Title      string `json:"title"`
	Namespace  int    `json:"namespace"`
	PageID     int64  `json:"page_id"`
	RevisionID int64  `json:"revision_id"`
	Timestamp  string `json:"timestamp"`
	Text       string `json:"-"`
}

// Validate prüft die Pflichtfelder.
func (r *Revision) Validate() error {
	switch {
	case r.Title == "":
		return fmt.Errorf("%w: empty title", ErrMalformedRevision)
	case r.PageID <= 0:
		return fmt.Errorf("%w: page %q has no page id", ErrMalformedRevision, r.Title)
	case r.RevisionID <= 0:
		return fmt.Errorf("%w: page %q has a revision without id", ErrMalformedRevision, r.Title)
	case r.Timestamp == "":
		return fmt.Errorf("%w: revision %d has no timestamp", ErrMalformedRevision, r.RevisionID)
	}
	return nil
}

// InMainNamespace meldet, ob die Revision zu einem Artikel gehört.
func (r *Revision) InMainNamespace() bool { return r.Namespace == MainNamespace }

// NormalizeTimestamp wandelt "2004-03-21T10:00:00Z" in "2004-03-21 10:00:00" um.
func NormalizeTimestamp(ts string) string {
	return strings.ReplaceAll(strings.ReplaceAll(ts, "T", " "), "Z", "")
}
