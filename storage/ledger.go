package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wikicite/models"
)

// SourceLedger merkt sich vollständig verarbeitete Quelldateien.
type SourceLedger struct {
	db *gorm.DB
}

func NewSourceLedger(db *gorm.DB) *SourceLedger {
	return &SourceLedger{db: db}
}

// IsCompleted meldet, ob die Datei in genau dieser Größe und Version bereits verarbeitet wurde.
func (l *SourceLedger) IsCompleted(ctx context.Context, path string, size int64, modTime time.Time) (bool, error) {
	var sf models.SourceFile
	err := l.db.WithContext(ctx).Where("path = ?", path).Take(&sf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sf.Size == size && sf.ModTime.Unix() == modTime.Unix(), nil
}

// MarkCompleted trägt eine Datei ein oder aktualisiert ihren Eintrag.
func (l *SourceLedger) MarkCompleted(ctx context.Context, sf *models.SourceFile) error {
	if sf.CompletedAt.IsZero() {
		sf.CompletedAt = time.Now().UTC()
	}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		UpdateAll: true,
	}).Create(sf).Error
}
