package storage

import (
	"context"

	"wikicite/models"
)

// Normalized liefert die kanonische Zeile zu einem RecordKey oder gorm.ErrRecordNotFound.
func (s *CitationStore) Normalized(ctx context.Context, recordKey string) (*models.NormalizedCitation, error) {
	var n models.NormalizedCitation
	if err := s.db.WithContext(ctx).Where("record_key = ?", recordKey).Take(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// Variants liefert alle Roh-Varianten zu einem RecordKey.
func (s *CitationStore) Variants(ctx context.Context, recordKey string) ([]models.Citation, error) {
	var rows []models.Citation
	err := s.db.WithContext(ctx).Where("record_key = ?", recordKey).Order("created_at, raw_key").Find(&rows).Error
	return rows, err
}

// History liefert die Revisionen, in denen das Zitat vorkam, aufsteigend.
func (s *CitationStore) History(ctx context.Context, recordKey string) ([]models.CitationHistory, error) {
	var rows []models.CitationHistory
	err := s.db.WithContext(ctx).Where("record_key = ?", recordKey).Order("revision_id").Find(&rows).Error
	return rows, err
}

// ArticleCitations liefert alle kanonischen Zitate eines Artikels.
func (s *CitationStore) ArticleCitations(ctx context.Context, articleID uint, limit int) ([]models.NormalizedCitation, error) {
	q := s.db.WithContext(ctx).Where("article_id = ?", articleID).Order("created_at, record_key")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.NormalizedCitation
	err := q.Find(&rows).Error
	return rows, err
}

// FindArticle sucht den Document-Anker eines Artikels über Domain (= Container-Label) und Page-ID.
func (s *CitationStore) FindArticle(ctx context.Context, domain string, pageID int64) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Joins("JOIN containers ON containers.concept_id = documents.container_id").
		Where("containers.label = ? AND documents.page_id = ?", domain, pageID).
		Take(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
