package providers

import (
	"context"
	"errors"
	"time"

	"wikicite/models"
)

// ErrPageNotFound wird geliefert, wenn ein Artikel nicht existiert oder keine Revision hat.
var ErrPageNotFound = errors.New("page not found")

// RevisionSource liefert Revisionen einer Quelle (z.B. eines Dumps) nacheinander.
type RevisionSource interface {
	// Next gibt die nächste gültige Revision zurück, io.EOF am Ende.
	Next() (*models.Revision, error)

	// Skipped gibt die Zahl übersprungener, unvollständiger Datensätze zurück.
	Skipped() int

	Close() error
}

// RevisionFetcher holt einzelne Revisionen über eine entfernte API.
type RevisionFetcher interface {
	// FetchRevision holt die neueste Revision eines Artikels, oder die letzte vor asOf, falls asOf gesetzt ist.
	FetchRevision(ctx context.Context, domain, title string, asOf time.Time) (*models.Revision, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "mediawiki").
	Name() string
}
