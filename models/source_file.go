package models

import (
	"time"

	"gorm.io/datatypes"
)

// SourceFile protokolliert vollständig verarbeitete Dump-Dateien.
type SourceFile struct {
	Path          string         `json:"path" gorm:"primaryKey;size:1024"`
	Size          int64          `json:"size"`
	ModTime       time.Time      `json:"mod_time"`
	Revisions     int            `json:"revisions"`
	Citations     int            `json:"citations"`
	Batches       int            `json:"batches"`
	FailedBatches int            `json:"failed_batches"`
	Stats         datatypes.JSON `json:"stats"`
	CompletedAt   time.Time      `json:"completed_at"`
}

func (SourceFile) TableName() string { return "source_files" }
