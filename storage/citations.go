package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wikicite/models"
)

// insertChunkSize hält jedes INSERT unter den Bind-Parameter-Grenzen von PostgreSQL und SQLite.
const insertChunkSize = 1000

// Batch sammelt die Zeilen einer Revisionsgruppe in Verarbeitungsreihenfolge.
type Batch struct {
	Citations           []models.Citation
	Histories           []models.CitationHistory
	Normalized          []models.NormalizedCitation
	ReferencedDocuments []models.ReferencedDocument
}

// Empty meldet, ob der Batch keine Zeilen enthält.
func (b *Batch) Empty() bool {
	return len(b.Citations) == 0 && len(b.Histories) == 0 && len(b.Normalized) == 0 && len(b.ReferencedDocuments) == 0
}

var (
	citationConflict = clause.OnConflict{
		Columns: []clause.Column{{Name: "record_key"}, {Name: "raw_key"}},
		DoUpdates: append(
			clause.AssignmentColumns([]string{"reference_raw", "canonical_key", "article_id", "updated_at"}),
			// ein fehlender Name überschreibt nie einen vorhandenen
			clause.Assignment{Column: clause.Column{Name: "reference_name"}, Value: gorm.Expr("COALESCE(excluded.reference_name, citations.reference_name)")},
		),
	}
	normalizedConflict = clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_text", "canonical_key", "article_id", "updated_at"}),
	}
	historyConflict = clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}, {Name: "revision_id"}},
		DoNothing: true,
	}
	referencedDocumentConflict = clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}, {Name: "subreference_key"}},
		DoNothing: true,
	}
)

// CitationStore schreibt Batches per Upsert. Upsert ist die einzige Schreiboperation.
type CitationStore struct {
	db *gorm.DB
}

func NewCitationStore(db *gorm.DB) *CitationStore {
	return &CitationStore{db: db}
}

// Apply schreibt einen Batch in einer Transaktion: entweder werden alle Tabellen sichtbar oder keine.
func (s *CitationStore) Apply(ctx context.Context, b *Batch) error {
	citations := DedupCitations(b.Citations)
	normalized := DedupNormalized(b.Normalized)
	histories := DedupHistories(b.Histories)
	referenced := DedupReferencedDocuments(b.ReferencedDocuments)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(citations) > 0 {
			if err := tx.Clauses(citationConflict).CreateInBatches(&citations, insertChunkSize).Error; err != nil {
				return fmt.Errorf("upsert citations: %w", err)
			}
		}
		if len(normalized) > 0 {
			if err := tx.Clauses(normalizedConflict).CreateInBatches(&normalized, insertChunkSize).Error; err != nil {
				return fmt.Errorf("upsert normalized citations: %w", err)
			}
		}
		if len(histories) > 0 {
			if err := tx.Clauses(historyConflict).CreateInBatches(&histories, insertChunkSize).Error; err != nil {
				return fmt.Errorf("insert citation history: %w", err)
			}
		}
		if len(referenced) > 0 {
			if err := tx.Clauses(referencedDocumentConflict).CreateInBatches(&referenced, insertChunkSize).Error; err != nil {
				return fmt.Errorf("insert referenced documents: %w", err)
			}
		}
		return nil
	})
}

// DedupCitations fasst Zeilen mit gleichem (RecordKey, RawKey) zusammen. Die letzte gewinnt;
// fehlt ihr der Name, wird der zuvor gesehene übernommen, wie bei sequenziellen Upserts.
func DedupCitations(rows []models.Citation) []models.Citation {
	index := make(map[[2]string]int, len(rows))
	out := make([]models.Citation, 0, len(rows))
	for _, row := range rows {
		key := [2]string{row.RecordKey, row.RawKey}
		if i, ok := index[key]; ok {
			if row.ReferenceName == nil {
				row.ReferenceName = out[i].ReferenceName
			}
			out[i] = row
			continue
		}
		index[key] = len(out)
		out = append(out, row)
	}
	return out
}

// DedupNormalized behält pro RecordKey die letzte Zeile.
func DedupNormalized(rows []models.NormalizedCitation) []models.NormalizedCitation {
	index := make(map[string]int, len(rows))
	out := make([]models.NormalizedCitation, 0, len(rows))
	for _, row := range rows {
		if i, ok := index[row.RecordKey]; ok {
			out[i] = row
			continue
		}
		index[row.RecordKey] = len(out)
		out = append(out, row)
	}
	return out
}

// DedupHistories behält pro (RecordKey, RevisionID) die erste Zeile.
func DedupHistories(rows []models.CitationHistory) []models.CitationHistory {
	type key struct {
		record   string
		revision int64
	}
	seen := make(map[key]struct{}, len(rows))
	out := make([]models.CitationHistory, 0, len(rows))
	for _, row := range rows {
		k := key{row.RecordKey, row.RevisionID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}

// DedupReferencedDocuments behält pro (RecordKey, SubreferenceKey) die erste Zeile.
func DedupReferencedDocuments(rows []models.ReferencedDocument) []models.ReferencedDocument {
	seen := make(map[[2]string]struct{}, len(rows))
	out := make([]models.ReferencedDocument, 0, len(rows))
	for _, row := range rows {
		k := [2]string{row.RecordKey, row.SubreferenceKey}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}
