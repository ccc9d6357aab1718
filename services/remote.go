package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"wikicite/models"
	"wikicite/providers"
)

// RemoteService holt einzelne Artikel über die API und verarbeitet sie wie Dump-Revisionen.
type RemoteService struct {
	Ingest  *IngestService
	Fetcher providers.RevisionFetcher
	Logger  *zap.Logger
}

func NewRemoteService(ingest *IngestService, fetcher providers.RevisionFetcher, logger *zap.Logger) *RemoteService {
	return &RemoteService{Ingest: ingest, Fetcher: fetcher, Logger: logger}
}

// FetchArticles holt für jeden Titel die neueste Revision (oder die letzte bis asOf) und speichert ihre Zitate.
// Artikel, die nicht geladen werden können, werden protokolliert und übersprungen.
func (r *RemoteService) FetchArticles(ctx context.Context, domain string, titles []string, asOf time.Time) (*FileResult, error) {
	log := r.Logger.With(zap.String("provider", r.Fetcher.Name()), zap.String("domain", domain))
	log.Info("Starte Abruf einzelner Artikel", zap.Int("articles", len(titles)))

	src := &sliceSource{}
	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rev, err := r.Fetcher.FetchRevision(ctx, domain, title, asOf)
		switch {
		case err == nil:
			remoteFetchesCounter.WithLabelValues("ok").Inc()
			src.revisions = append(src.revisions, rev)
		case errors.Is(err, providers.ErrPageNotFound):
			remoteFetchesCounter.WithLabelValues("not_found").Inc()
			log.Warn("Artikel nicht gefunden, wird übersprungen", zap.String("title", title))
			src.skipped++
		default:
			remoteFetchesCounter.WithLabelValues("failed").Inc()
			log.Error("Artikel konnte nicht geladen werden, wird übersprungen", zap.String("title", title), zap.Error(err))
			src.skipped++
		}
	}

	res, err := r.Ingest.ProcessSource(ctx, r.Ingest.NewProcessorFor(domain), src, fmt.Sprintf("%s:%s", r.Fetcher.Name(), domain))
	if err != nil {
		return res, err
	}
	if res.FailedBatches > 0 {
		return res, ErrBatchesFailed
	}
	return res, nil
}

// sliceSource liefert bereits geladene Revisionen als RevisionSource.
type sliceSource struct {
	revisions []*models.Revision
	pos       int
	skipped   int
}

func (s *sliceSource) Next() (*models.Revision, error) {
	if s.pos >= len(s.revisions) {
		return nil, io.EOF
	}
	rev := s.revisions[s.pos]
	s.revisions[s.pos] = nil
	s.pos++
	return rev, nil
}

func (s *sliceSource) Skipped() int { return s.skipped }

func (s *sliceSource) Close() error { return nil }
