package models

import (
	"time"
)

// Concept-Arten, die ein typisierter Anker erweitern kann.
const (
	KindDomain      = "domain"
	KindContainer   = "container"
	KindDocument    = "document"
	KindWebResource = "web_resource"
)

// Concept ist der abstrakte Identitätsanker. Jede typisierte Entität teilt sich ihre ID mit genau einem Concept.
// Eine einmal vergebene ID wird nie geändert oder wiederverwendet.
type Concept struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Label      string    `json:"label"`
	Kind       string    `json:"kind" gorm:"size:32;index"`
	WikidataID *int64    `json:"wikidata_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Concept) TableName() string { return "concepts" }

// Domain ist ein Hostname, eindeutig über seinen Wert.
type Domain struct {
	ConceptID      uint      `json:"concept_id" gorm:"primaryKey;autoIncrement:false"`
	Value          string    `json:"value" gorm:"uniqueIndex;size:255;not null"`
	TopLevelDomain string    `json:"top_level_domain" gorm:"size:64"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Domain) TableName() string { return "domains" }

// Container ist ein Publikationsort, z.B. eine Wiki-Instanz.
type Container struct {
	ConceptID uint      `json:"concept_id" gorm:"primaryKey;autoIncrement:false"`
	Label     string    `json:"label" gorm:"uniqueIndex;size:255;not null"`
	Family    string    `json:"family" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
}

func (Container) TableName() string { return "containers" }

// Document ist eine Publikation: ein Artikel oder ein zitiertes Werk.
type Document struct {
	ConceptID    uint      `json:"concept_id" gorm:"primaryKey;autoIncrement:false"`
	PageID       int64     `json:"page_id" gorm:"uniqueIndex:idx_documents_page_container;not null"`
	ContainerID  uint      `json:"container_id" gorm:"uniqueIndex:idx_documents_page_container;not null"`
	LanguageCode string    `json:"language_code" gorm:"size:32"`
	PartOf       *uint     `json:"part_of,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Document) TableName() string { return "documents" }

// WebResource ist eine URL-Instanz eines Documents.
type WebResource struct {
	ConceptID  uint      `json:"concept_id" gorm:"primaryKey;autoIncrement:false"`
	URL        string    `json:"url" gorm:"uniqueIndex;size:2048;not null"`
	DomainID   uint      `json:"domain_id" gorm:"index;not null"`
	DocumentID *uint     `json:"document_id,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (WebResource) TableName() string { return "web_resources" }
