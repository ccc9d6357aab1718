package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"wikicite/config"
	"wikicite/models"
	"wikicite/services"
	"wikicite/storage"
)

func newTestRouter(t *testing.T, apiKey string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "wikicite.db"))
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := &config.Config{WikiDomain: "en.wikipedia.org", APISecretKey: apiKey}
	return newRouter(cfg, db, zaptest.NewLogger(t)), db
}

func seed(t *testing.T, db *gorm.DB, revisions ...*models.Revision) {
	t.Helper()
	proc := services.NewBatchProcessor(db, nil, "en.wikipedia.org", zaptest.NewLogger(t))
	_, err := proc.ProcessBatch(context.Background(), revisions)
	require.NoError(t, err)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCanonicalizeRoute(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := doJSON(t, router, http.MethodPost, "/citations/canonicalize", gin.H{"text": "<ref name=smith>{{cite_web| url = x | title = T }}</ref>"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		CanonicalText string  `json:"canonical_text"`
		CanonicalKey  string  `json:"canonical_key"`
		ReferenceName *string `json:"reference_name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, `<ref name="smith">{{Cite web|title=T|url=x}}</ref>`, resp.CanonicalText)
	assert.Equal(t, services.CanonicalKey(resp.CanonicalText), resp.CanonicalKey)
	require.NotNil(t, resp.ReferenceName)
	assert.Equal(t, "smith", *resp.ReferenceName)

	w = doJSON(t, router, http.MethodPost, "/citations/canonicalize", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupRoute(t *testing.T) {
	router, db := newTestRouter(t, "")
	seed(t, db,
		&models.Revision{Title: "Foo", PageID: 42, RevisionID: 1, Timestamp: "2004-03-21 10:00:00", Text: "<ref>{{cite web|title=Foo}}</ref>"},
		&models.Revision{Title: "Foo", PageID: 42, RevisionID: 2, Timestamp: "2004-03-22 10:00:00", Text: "<ref>{{Cite_web | title = Foo }}</ref>"},
	)

	w := doJSON(t, router, http.MethodPost, "/citations/lookup", gin.H{"page_id": 42, "text": "<ref>{{ cite web |title=Foo}}</ref>"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RecordKey string                   `json:"record_key"`
		Seen      bool                     `json:"seen"`
		Variants  []models.Citation        `json:"variants"`
		History   []models.CitationHistory `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Seen)
	assert.Equal(t, services.RecordKey("en.wikipedia.org", 42, "<ref>{{Cite web|title=Foo}}</ref>"), resp.RecordKey)
	assert.Len(t, resp.Variants, 2)
	require.Len(t, resp.History, 2)
	assert.Equal(t, int64(1), resp.History[0].RevisionID)

	// anderer Artikel: gleicher Inhalt, aber nicht gesehen
	w = doJSON(t, router, http.MethodPost, "/citations/lookup", gin.H{"page_id": 43, "text": "<ref>{{cite web|title=Foo}}</ref>"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Seen)

	w = doJSON(t, router, http.MethodPost, "/citations/lookup", gin.H{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCitationRoute(t *testing.T) {
	router, db := newTestRouter(t, "")
	seed(t, db, &models.Revision{Title: "Foo", PageID: 42, RevisionID: 1, Timestamp: "2004-03-21 10:00:00",
		Text: "<ref name=a>{{cite book|title=A}}</ref>"})

	recordKey := services.RecordKey("en.wikipedia.org", 42, `<ref name="a">{{Cite book|title=A}}</ref>`)
	w := doJSON(t, router, http.MethodGet, "/citations/"+recordKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var detail citationDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.NotNil(t, detail.Normalized)
	assert.Equal(t, recordKey, detail.Normalized.RecordKey)
	require.Len(t, detail.Variants, 1)
	assert.Equal(t, "a", *detail.Variants[0].ReferenceName)

	w = doJSON(t, router, http.MethodGet, "/citations/unbekannt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArticleCitationsRoute(t *testing.T) {
	router, db := newTestRouter(t, "")
	seed(t, db, &models.Revision{Title: "Foo", PageID: 42, RevisionID: 1, Timestamp: "2004-03-21 10:00:00",
		Text: "<ref>{{cite book|title=A}}</ref><ref>{{cite book|title=B}}</ref>"})

	w := doJSON(t, router, http.MethodGet, "/articles/42/citations?domain=en.wikipedia.org", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Citations []models.NormalizedCitation `json:"citations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Citations, 2)

	w = doJSON(t, router, http.MethodGet, "/articles/42/citations?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Citations, 1)

	for path, code := range map[string]int{
		"/articles/99/citations":                          http.StatusNotFound,
		"/articles/42/citations?domain=de.wikipedia.org": http.StatusNotFound,
		"/articles/abc/citations":                         http.StatusBadRequest,
	} {
		w := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, code, w.Code, path)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	router, _ := newTestRouter(t, "geheim")

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-KEY", "geheim")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wikicite_citations_written_total")
}

func TestOrchestrationError(t *testing.T) {
	log := zaptest.NewLogger(t)
	fileErr := errors.New("open broken.xml.gz: gzip: invalid header")

	assert.NoError(t, orchestrationError(log, nil))
	assert.NoError(t, orchestrationError(log, services.ErrBatchesFailed))
	assert.NoError(t, orchestrationError(log, errors.Join(nil, services.ErrBatchesFailed)))
	assert.ErrorIs(t, orchestrationError(log, errors.Join(errors.Join(fileErr), services.ErrBatchesFailed)), fileErr)
	assert.ErrorIs(t, orchestrationError(log, fileErr), fileErr)
	assert.ErrorIs(t, orchestrationError(log, fmt.Errorf("x: %w", context.Canceled)), context.Canceled)
}
