// Package mediawiki holt einzelne Artikelrevisionen über die MediaWiki Action API.
package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"wikicite/config"
	"wikicite/models"
	"wikicite/providers"
)

// CustomTransport fügt jeder Anfrage den konfigurierten User-Agent hinzu.
// Wikimedia lehnt Anfragen ohne aussagekräftigen User-Agent ab.
type CustomTransport struct {
	Transport http.RoundTripper
	UserAgent string
}

func (t *CustomTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", t.UserAgent)
	return t.Transport.RoundTrip(req)
}

// Fetcher implementiert providers.RevisionFetcher für MediaWiki-Wikis.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *http.Client
	// Endpoint liefert die API-URL für eine Domain.
	Endpoint func(domain string) string
}

var _ providers.RevisionFetcher = (*Fetcher)(nil)

// NewFetcher erstellt einen neuen MediaWiki-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		Client: &http.Client{
			Timeout: cfg.MediaWikiTimeout,
			Transport: &CustomTransport{
				Transport: http.DefaultTransport,
				UserAgent: cfg.MediaWikiUserAgent,
			},
		},
		Endpoint: func(domain string) string {
			return fmt.Sprintf(cfg.MediaWikiAPIURL, domain)
		},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "mediawiki"
}

// FetchRevision holt die neueste Revision von title, oder die letzte Revision bis einschließlich asOf.
func (f *Fetcher) FetchRevision(ctx context.Context, domain, title string, asOf time.Time) (*models.Revision, error) {
	log := f.Logger.With(zap.String("provider", f.Name()), zap.String("domain", domain), zap.String("title", title))

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("prop", "revisions")
	params.Set("titles", title)
	params.Set("rvprop", "ids|timestamp|content")
	params.Set("rvslots", "main")
	params.Set("rvlimit", "1")
	if !asOf.IsZero() {
		params.Set("rvstart", asOf.UTC().Format(time.RFC3339))
		params.Set("rvdir", "older")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Endpoint(domain)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fehler beim Erstellen der Anfrage: %w", err)
	}

	log.Debug("Frage MediaWiki API ab")
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fehler bei der MediaWiki-Anfrage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("MediaWiki API lieferte unerwarteten Status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("unerwarteter Status von der MediaWiki API: %s", resp.Status)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("fehler beim Dekodieren der MediaWiki-Antwort: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("MediaWiki API Fehler %s: %s", apiResp.Error.Code, apiResp.Error.Info)
	}
	if len(apiResp.Query.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s", providers.ErrPageNotFound, title)
	}

	page := apiResp.Query.Pages[0]
	if page.Missing || page.Invalid || len(page.Revisions) == 0 {
		log.Info("Artikel nicht gefunden oder ohne Revision")
		return nil, fmt.Errorf("%w: %s", providers.ErrPageNotFound, title)
	}

	rev := page.Revisions[0]
	revision := &models.Revision{
		Title:      page.Title,
		Namespace:  page.NS,
		PageID:     page.PageID,
		RevisionID: rev.RevID,
		Timestamp:  models.NormalizeTimestamp(rev.Timestamp),
		Text:       rev.Slots.Main.Content,
	}
	if err := revision.Validate(); err != nil {
		return nil, err
	}

	log.Debug("Revision geladen", zap.Int64("revision_id", revision.RevisionID))
	return revision, nil
}
