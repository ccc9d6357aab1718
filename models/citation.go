package models

import (
	"time"
)

// Citation ist ein Roh-Vorkommen eines Zitats: genau eine Zeile pro (RecordKey, RawKey).
type Citation struct {
	RecordKey     string    `json:"record_key" gorm:"primaryKey;size:40"`
	RawKey        string    `json:"raw_key" gorm:"primaryKey;size:40"`
	ReferenceRaw  string    `json:"reference_raw" gorm:"type:text;not null"`
	CanonicalKey  string    `json:"canonical_key" gorm:"size:40;index;not null"`
	ReferenceName *string   `json:"reference_name,omitempty" gorm:"size:512"`
	ArticleID     uint      `json:"article_id" gorm:"index;not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Citation) TableName() string { return "citations" }

// NormalizedCitation ist die kanonische Form eines Zitats auf einem Artikel.
type NormalizedCitation struct {
	RecordKey     string    `json:"record_key" gorm:"primaryKey;size:40"`
	CanonicalKey  string    `json:"canonical_key" gorm:"size:40;index;not null"`
	CanonicalText string    `json:"canonical_text" gorm:"type:text;not null"`
	ArticleID     uint      `json:"article_id" gorm:"index;not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (NormalizedCitation) TableName() string { return "normalized_citations" }

// CitationHistory ist ein reiner Append-Eintrag: in welcher Revision ein Zitat vorkam.
// Einmal geschriebene Zeilen werden nicht mehr verändert.
type CitationHistory struct {
	RecordKey         string    `json:"record_key" gorm:"primaryKey;size:40"`
	RevisionID        int64     `json:"revision_id" gorm:"primaryKey;autoIncrement:false"`
	RawKey            string    `json:"raw_key" gorm:"size:40;not null"`
	CanonicalKey      string    `json:"canonical_key" gorm:"size:40;not null"`
	RevisionTimestamp string    `json:"revision_timestamp" gorm:"size:19;not null"`
	CreatedAt         time.Time `json:"created_at"`
}

func (CitationHistory) TableName() string { return "citation_history" }

// ReferencedDocument verknüpft ein kanonisches Zitat mit einem einzelnen darin gebündelten Werk.
type ReferencedDocument struct {
	RecordKey             string `json:"record_key" gorm:"primaryKey;size:40"`
	SubreferenceKey       string `json:"subreference_key" gorm:"primaryKey;size:40"`
	SubreferenceCanonical string `json:"subreference_canonical" gorm:"type:text;not null"`
	ReferencedDocumentID  *uint  `json:"referenced_document_id,omitempty"`
}

func (ReferencedDocument) TableName() string { return "referenced_documents" }
