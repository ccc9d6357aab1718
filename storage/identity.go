package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wikicite/models"
)

// errAnchorExists signalisiert, dass ein paralleler Schreiber den Anker zuerst angelegt hat.
var errAnchorExists = errors.New("anchor already exists")

// Resolver bildet natürliche Schlüssel auf stabile Anker-IDs ab und legt fehlende Anker an.
// Ein Resolver gehört einem Worker; mehrere Resolver dürfen gleichzeitig dieselben Schlüssel auflösen.
type Resolver struct {
	db    *gorm.DB
	cache IdentityCache
}

// NewResolver erstellt einen Resolver. Ohne Cache wird ein privater LocalCache verwendet.
func NewResolver(db *gorm.DB, cache IdentityCache) *Resolver {
	if cache == nil {
		cache = NewLocalCache()
	}
	return &Resolver{db: db, cache: cache}
}

type anchor struct {
	kind     string
	label    string
	cacheKey string
	lookup   func(db *gorm.DB) (uint, error)
	insert   func(tx *gorm.DB, conceptID uint) (int64, error)
}

func (r *Resolver) resolve(ctx context.Context, a anchor) (uint, error) {
	if id, ok := r.cache.Get(ctx, a.cacheKey); ok {
		return id, nil
	}

	id, err := a.lookup(r.db.WithContext(ctx))
	if err == nil {
		r.cache.Set(ctx, a.cacheKey, id)
		return id, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("lookup %s %q: %w", a.kind, a.label, err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		concept := models.Concept{Label: a.label, Kind: a.kind}
		if err := tx.Create(&concept).Error; err != nil {
			return err
		}
		inserted, err := a.insert(tx, concept.ID)
		if err != nil {
			return err
		}
		if inserted == 0 {
			// Rollback verwirft das Concept; seine ID wird nicht vergeben.
			return errAnchorExists
		}
		id = concept.ID
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, errAnchorExists):
		if id, err = a.lookup(r.db.WithContext(ctx)); err != nil {
			return 0, fmt.Errorf("lookup %s %q after concurrent create: %w", a.kind, a.label, err)
		}
	default:
		return 0, fmt.Errorf("create %s %q: %w", a.kind, a.label, err)
	}

	r.cache.Set(ctx, a.cacheKey, id)
	return id, nil
}

func insertIgnoringConflict(tx *gorm.DB, row interface{}, columns ...string) (int64, error) {
	conflict := clause.OnConflict{DoNothing: true}
	for _, c := range columns {
		conflict.Columns = append(conflict.Columns, clause.Column{Name: c})
	}
	res := tx.Clauses(conflict).Create(row)
	return res.RowsAffected, res.Error
}

// ResolveDomain liefert den Anker eines Hostnamens. Der Wert wird IDNA-normalisiert.
func (r *Resolver) ResolveDomain(ctx context.Context, value string) (uint, error) {
	host := NormalizeHost(value)
	return r.resolve(ctx, anchor{
		kind:     models.KindDomain,
		label:    host,
		cacheKey: "domain:" + host,
		lookup: func(db *gorm.DB) (uint, error) {
			var d models.Domain
			err := db.Where("value = ?", host).Take(&d).Error
			return d.ConceptID, err
		},
		insert: func(tx *gorm.DB, conceptID uint) (int64, error) {
			tld, _ := publicsuffix.PublicSuffix(host)
			return insertIgnoringConflict(tx, &models.Domain{ConceptID: conceptID, Value: host, TopLevelDomain: tld}, "value")
		},
	})
}

// ResolveContainer liefert den Anker eines Publikationsorts.
func (r *Resolver) ResolveContainer(ctx context.Context, label, family string) (uint, error) {
	return r.resolve(ctx, anchor{
		kind:     models.KindContainer,
		label:    label,
		cacheKey: "container:" + label,
		lookup: func(db *gorm.DB) (uint, error) {
			var c models.Container
			err := db.Where("label = ?", label).Take(&c).Error
			return c.ConceptID, err
		},
		insert: func(tx *gorm.DB, conceptID uint) (int64, error) {
			return insertIgnoringConflict(tx, &models.Container{ConceptID: conceptID, Label: label, Family: family}, "label")
		},
	})
}

// ResolveDocument liefert den Anker eines Artikels, eindeutig über (pageID, containerID).
func (r *Resolver) ResolveDocument(ctx context.Context, pageID int64, containerID uint, lang string) (uint, error) {
	label := fmt.Sprintf("%d@%d", pageID, containerID)
	return r.resolve(ctx, anchor{
		kind:     models.KindDocument,
		label:    label,
		cacheKey: "document:" + label,
		lookup: func(db *gorm.DB) (uint, error) {
			var d models.Document
			err := db.Where("page_id = ? AND container_id = ?", pageID, containerID).Take(&d).Error
			return d.ConceptID, err
		},
		insert: func(tx *gorm.DB, conceptID uint) (int64, error) {
			doc := &models.Document{ConceptID: conceptID, PageID: pageID, ContainerID: containerID, LanguageCode: CanonicalLanguage(lang)}
			return insertIgnoringConflict(tx, doc, "page_id", "container_id")
		},
	})
}

// ResolveWebResource liefert den Anker einer URL.
func (r *Resolver) ResolveWebResource(ctx context.Context, url string, domainID uint, documentID *uint) (uint, error) {
	return r.resolve(ctx, anchor{
		kind:     models.KindWebResource,
		label:    url,
		cacheKey: "web:" + url,
		lookup: func(db *gorm.DB) (uint, error) {
			var w models.WebResource
			err := db.Where("url = ?", url).Take(&w).Error
			return w.ConceptID, err
		},
		insert: func(tx *gorm.DB, conceptID uint) (int64, error) {
			return insertIgnoringConflict(tx, &models.WebResource{ConceptID: conceptID, URL: url, DomainID: domainID, DocumentID: documentID}, "url")
		},
	})
}

// NormalizeHost senkt einen Hostnamen auf Kleinbuchstaben und wandelt ihn in die ASCII-Form.
// Ist der Name kein gültiger IDNA-Name, bleibt er (kleingeschrieben) erhalten.
func NormalizeHost(value string) string {
	host := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// CanonicalLanguage bringt ein Sprachkürzel in BCP-47-Form, sofern es sich parsen lässt.
func CanonicalLanguage(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}
