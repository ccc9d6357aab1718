package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"wikicite/models"
	"wikicite/storage"
)

// BatchProcessor führt für einen Worker die Kette Kanonisierung → Hashing → Anker → Speichern aus.
// Eine Instanz wird nie von mehreren Goroutinen gleichzeitig benutzt.
type BatchProcessor struct {
	Domain   string
	store    *storage.CitationStore
	resolver *storage.Resolver
	logger   *zap.Logger
	articles map[articleKey]uint
}

// articleKey enthält den Titel, damit nach einer Umbenennung auch die neue Artikel-URL angelegt wird.
type articleKey struct {
	pageID int64
	title  string
}

// NewBatchProcessor erstellt einen Processor mit eigenem Identity-Cache.
func NewBatchProcessor(db *gorm.DB, cache storage.IdentityCache, domain string, logger *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		Domain:   domain,
		store:    storage.NewCitationStore(db),
		resolver: storage.NewResolver(db, cache),
		logger:   logger,
		articles: make(map[articleKey]uint),
	}
}

// ProcessBatch verarbeitet die Revisionen in Reihenfolge und schreibt das Ergebnis in einer Transaktion.
// Zurückgegeben wird die Zahl der geschriebenen Zitat-Vorkommen.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, revisions []*models.Revision) (int, error) {
	batch := &storage.Batch{}
	for _, rev := range revisions {
		articleID, err := p.article(ctx, rev)
		if err != nil {
			return 0, err
		}
		p.appendRevision(batch, rev, articleID)
	}
	if batch.Empty() {
		return 0, nil
	}
	if err := p.store.Apply(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch.Citations), nil
}

// article löst die Anker eines Artikels auf: Container, Domain, Dokument und die Artikel-URL.
// Die Artikel-ID ist die ID des Dokument-Ankers.
func (p *BatchProcessor) article(ctx context.Context, rev *models.Revision) (uint, error) {
	key := articleKey{pageID: rev.PageID, title: rev.Title}
	if id, ok := p.articles[key]; ok {
		return id, nil
	}

	containerID, err := p.resolver.ResolveContainer(ctx, p.Domain, Family(p.Domain))
	if err != nil {
		return 0, fmt.Errorf("resolve container: %w", err)
	}
	domainID, err := p.resolver.ResolveDomain(ctx, p.Domain)
	if err != nil {
		return 0, fmt.Errorf("resolve domain: %w", err)
	}
	documentID, err := p.resolver.ResolveDocument(ctx, rev.PageID, containerID, LanguageCode(p.Domain))
	if err != nil {
		return 0, fmt.Errorf("resolve document: %w", err)
	}
	if _, err := p.resolver.ResolveWebResource(ctx, ArticleURL(p.Domain, rev.Title), domainID, &documentID); err != nil {
		return 0, fmt.Errorf("resolve article url: %w", err)
	}

	p.articles[key] = documentID
	return documentID, nil
}

func (p *BatchProcessor) appendRevision(batch *storage.Batch, rev *models.Revision, articleID uint) {
	for _, raw := range ExtractReferences(rev.Text) {
		canonical := Canonicalize(raw)
		if canonical == "" {
			continue
		}
		recordKey := RecordKey(p.Domain, rev.PageID, canonical)
		canonicalKey := CanonicalKey(canonical)
		rawKey := RawKey(raw)

		batch.Citations = append(batch.Citations, models.Citation{
			RecordKey:     recordKey,
			RawKey:        rawKey,
			ReferenceRaw:  raw,
			CanonicalKey:  canonicalKey,
			ReferenceName: RefName(raw),
			ArticleID:     articleID,
		})
		batch.Normalized = append(batch.Normalized, models.NormalizedCitation{
			RecordKey:     recordKey,
			CanonicalKey:  canonicalKey,
			CanonicalText: canonical,
			ArticleID:     articleID,
		})
		batch.Histories = append(batch.Histories, models.CitationHistory{
			RecordKey:         recordKey,
			RevisionID:        rev.RevisionID,
			RawKey:            rawKey,
			CanonicalKey:      canonicalKey,
			RevisionTimestamp: rev.Timestamp,
		})
		for _, sub := range Subreferences(canonical) {
			batch.ReferencedDocuments = append(batch.ReferencedDocuments, models.ReferencedDocument{
				RecordKey:             recordKey,
				SubreferenceKey:       CanonicalKey(sub),
				SubreferenceCanonical: sub,
			})
		}
	}
}
