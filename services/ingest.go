package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wikicite/config"
	"wikicite/models"
	"wikicite/providers"
	"wikicite/providers/dump"
	"wikicite/storage"
)

// ErrBatchesFailed meldet, dass mindestens ein Batch verworfen wurde. Alle übrigen Batches sind geschrieben.
var ErrBatchesFailed = errors.New("one or more batches failed")

// PipelineState ist der Zustand der Verarbeitung einer Quelle.
type PipelineState int

const (
	StateStreaming PipelineState = iota
	StateBatching
	StateDispatching
	StateDrained
)

func (s PipelineState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateBatching:
		return "batching"
	case StateDispatching:
		return "dispatching"
	case StateDrained:
		return "drained"
	}
	return "unknown"
}

// FileResult fasst die Verarbeitung einer Quelle zusammen.
type FileResult struct {
	Path          string        `json:"path"`
	State         PipelineState `json:"-"`
	Revisions     int           `json:"revisions"`
	Filtered      int           `json:"filtered"`
	Skipped       int           `json:"skipped"`
	Citations     int           `json:"citations"`
	Batches       int           `json:"batches"`
	FailedBatches int           `json:"failed_batches"`
	// AlreadyCompleted ist gesetzt, wenn die Quelle laut Ledger schon verarbeitet war.
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

// RunResult fasst einen Lauf über mehrere Quellen zusammen.
type RunResult struct {
	Files []*FileResult
}

func (r *RunResult) FailedBatches() int {
	n := 0
	for _, f := range r.Files {
		if f != nil {
			n += f.FailedBatches
		}
	}
	return n
}

func (r *RunResult) Citations() int {
	n := 0
	for _, f := range r.Files {
		if f != nil {
			n += f.Citations
		}
	}
	return n
}

// IngestService verteilt Dump-Quellen auf einen begrenzten Worker-Pool.
type IngestService struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	S3Client storage.ObjectAPI
	Logger   *zap.Logger
	Ledger   *storage.SourceLedger
}

// NewIngestService erstellt den Service. redisClient und s3Client sind optional.
func NewIngestService(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, s3Client storage.ObjectAPI, logger *zap.Logger) *IngestService {
	return &IngestService{
		Config:   cfg,
		DB:       db,
		Redis:    redisClient,
		S3Client: s3Client,
		Logger:   logger,
		Ledger:   storage.NewSourceLedger(db),
	}
}

// NewProcessor erstellt einen BatchProcessor für WIKI_DOMAIN.
func (s *IngestService) NewProcessor() *BatchProcessor {
	return s.NewProcessorFor(s.Config.WikiDomain)
}

// NewProcessorFor erstellt einen BatchProcessor mit privatem Cache, ergänzt um Redis falls konfiguriert.
func (s *IngestService) NewProcessorFor(domain string) *BatchProcessor {
	var cache storage.IdentityCache = storage.NewLocalCache()
	if s.Redis != nil {
		cache = &storage.TieredCache{
			Local:  storage.NewLocalCache(),
			Shared: storage.NewRedisCache(s.Redis, s.Config.IdentityCacheTTL),
		}
	}
	return NewBatchProcessor(s.DB, cache, domain, s.Logger)
}

// ProcessSource streamt eine Quelle in Batches von BATCH_SIZE Revisionen.
// Ein fehlgeschlagener Batch wird protokolliert und gezählt, der Stream läuft weiter.
func (s *IngestService) ProcessSource(ctx context.Context, proc *BatchProcessor, src providers.RevisionSource, name string) (*FileResult, error) {
	log := s.Logger.With(zap.String("source", name))
	res := &FileResult{Path: name, State: StateStreaming}
	batch := make([]*models.Revision, 0, s.Config.BatchSize)

	dispatch := func() {
		res.State = StateDispatching
		batchID := ulid.Make().String()
		start := time.Now()
		n, err := proc.ProcessBatch(ctx, batch)
		batchDuration.Observe(time.Since(start).Seconds())
		res.Batches++
		if err != nil {
			res.FailedBatches++
			batchesCounter.WithLabelValues("failed").Inc()
			log.Error("Batch fehlgeschlagen, wird verworfen",
				zap.String("batch_id", batchID),
				zap.Int64("first_revision", batch[0].RevisionID),
				zap.Int("revisions", len(batch)),
				zap.Error(err))
		} else {
			res.Citations += n
			batchesCounter.WithLabelValues("ok").Inc()
			citationsCounter.Add(float64(n))
			log.Debug("Batch geschrieben", zap.String("batch_id", batchID), zap.Int("citations", n))
		}
		clear(batch)
		batch = batch[:0]
		res.State = StateStreaming
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Skipped = src.Skipped()
			return res, fmt.Errorf("read %s: %w", name, err)
		}
		if !rev.InMainNamespace() {
			res.Filtered++
			revisionsCounter.WithLabelValues("filtered").Inc()
			continue
		}

		res.State = StateBatching
		batch = append(batch, rev)
		res.Revisions++
		revisionsCounter.WithLabelValues("processed").Inc()
		if len(batch) >= s.Config.BatchSize {
			dispatch()
		}
	}
	if len(batch) > 0 {
		dispatch()
	}

	res.State = StateDrained
	res.Skipped = src.Skipped()
	revisionsCounter.WithLabelValues("skipped").Add(float64(res.Skipped))
	log.Info("Quelle verarbeitet",
		zap.Int("revisions", res.Revisions),
		zap.Int("filtered", res.Filtered),
		zap.Int("skipped", res.Skipped),
		zap.Int("citations", res.Citations),
		zap.Int("batches", res.Batches),
		zap.Int("failed_batches", res.FailedBatches))
	return res, nil
}

// sourceJob ist eine zu verarbeitende Quelle, lokal oder in S3.
type sourceJob struct {
	path    string
	size    int64
	modTime time.Time
	open    func(ctx context.Context) (providers.RevisionSource, error)
}

// ProcessFile verarbeitet eine einzelne Dump-Datei, auch wenn sie bereits im Ledger steht.
func (s *IngestService) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	job, err := localJob(path)
	if err != nil {
		return nil, err
	}
	res, err := s.processJob(ctx, s.NewProcessor(), job, false)
	if err != nil {
		return res, err
	}
	if res.FailedBatches > 0 {
		return res, ErrBatchesFailed
	}
	return res, nil
}

// ProcessDirectory verarbeitet alle Dump-Dateien eines Verzeichnisses in Dump-Reihenfolge.
// Im Ledger als vollständig markierte Dateien werden übersprungen.
func (s *IngestService) ProcessDirectory(ctx context.Context, dir string) (*RunResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsDumpFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	SortSourceFiles(paths)

	jobs := make([]sourceJob, 0, len(paths))
	for _, p := range paths {
		job, err := localJob(p)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	s.Logger.Info("Starte Verarbeitung des Verzeichnisses", zap.String("dir", dir), zap.Int("files", len(jobs)))
	return s.run(ctx, jobs)
}

// ProcessS3 verarbeitet alle Dump-Objekte unter s3://bucket/prefix.
func (s *IngestService) ProcessS3(ctx context.Context, uri string) (*RunResult, error) {
	if s.S3Client == nil {
		return nil, errors.New("s3 is not configured")
	}
	bucket, prefix, ok := storage.ParseS3URI(uri)
	if !ok {
		return nil, fmt.Errorf("invalid s3 uri %q", uri)
	}
	objects, err := storage.ListObjects(ctx, s.S3Client, bucket, prefix)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]storage.S3Object)
	var paths []string
	for _, obj := range objects {
		if !IsDumpFile(obj.Key) {
			continue
		}
		path := "s3://" + bucket + "/" + obj.Key
		byPath[path] = obj
		paths = append(paths, path)
	}
	SortSourceFiles(paths)

	jobs := make([]sourceJob, 0, len(paths))
	for _, p := range paths {
		obj := byPath[p]
		jobs = append(jobs, sourceJob{
			path:    p,
			size:    obj.Size,
			modTime: obj.LastModified,
			open: func(ctx context.Context) (providers.RevisionSource, error) {
				body, err := storage.OpenObject(ctx, s.S3Client, bucket, obj.Key)
				if err != nil {
					return nil, err
				}
				r, err := dump.NewReader(body, obj.Key)
				if err != nil {
					body.Close()
					return nil, err
				}
				return &objectSource{Reader: r, body: body}, nil
			},
		})
	}
	s.Logger.Info("Starte Verarbeitung aus S3", zap.String("uri", uri), zap.Int("files", len(jobs)))
	return s.run(ctx, jobs)
}

// objectSource schließt zusätzlich den S3-Body.
type objectSource struct {
	*dump.Reader
	body io.Closer
}

func (o *objectSource) Close() error {
	err := o.Reader.Close()
	if cerr := o.body.Close(); err == nil {
		err = cerr
	}
	return err
}

func localJob(path string) (sourceJob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return sourceJob{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return sourceJob{
		path:    path,
		size:    info.Size(),
		modTime: info.ModTime(),
		open: func(context.Context) (providers.RevisionSource, error) {
			return dump.Open(path)
		},
	}, nil
}

// run verteilt die Quellen auf höchstens WORKERS gleichzeitige Worker.
// Jeder Worker erhält einen eigenen BatchProcessor und damit eigenen Cache und eigene Sitzung.
func (s *IngestService) run(ctx context.Context, jobs []sourceJob) (*RunResult, error) {
	result := &RunResult{Files: make([]*FileResult, len(jobs))}
	fileErrs := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(s.Config.Workers)
	for i, job := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := s.processJob(ctx, s.NewProcessor(), job, true)
			result.Files[i] = res
			if err != nil && !errors.Is(err, context.Canceled) {
				s.Logger.Error("Quelle fehlgeschlagen", zap.String("source", job.path), zap.Error(err))
				fileErrs[i] = fmt.Errorf("%s: %w", job.path, err)
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	err := errors.Join(fileErrs...)
	if result.FailedBatches() > 0 {
		err = errors.Join(err, ErrBatchesFailed)
	}
	s.Logger.Info("Lauf abgeschlossen",
		zap.Int("files", len(jobs)),
		zap.Int("citations", result.Citations()),
		zap.Int("failed_batches", result.FailedBatches()))
	return result, err
}

func (s *IngestService) processJob(ctx context.Context, proc *BatchProcessor, job sourceJob, skipCompleted bool) (*FileResult, error) {
	if skipCompleted {
		done, err := s.Ledger.IsCompleted(ctx, job.path, job.size, job.modTime)
		if err != nil {
			return nil, err
		}
		if done {
			s.Logger.Info("Quelle bereits verarbeitet, wird übersprungen", zap.String("source", job.path))
			return &FileResult{Path: job.path, State: StateDrained, AlreadyCompleted: true}, nil
		}
	}

	src, err := job.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", job.path, err)
	}
	defer src.Close()

	res, err := s.ProcessSource(ctx, proc, src, job.path)
	if err != nil || res.FailedBatches > 0 {
		return res, err
	}

	stats, _ := json.Marshal(res)
	sf := &models.SourceFile{
		Path:      job.path,
		Size:      job.size,
		ModTime:   job.modTime,
		Revisions: res.Revisions,
		Citations: res.Citations,
		Batches:   res.Batches,
		Stats:     datatypes.JSON(stats),
	}
	if err := s.Ledger.MarkCompleted(ctx, sf); err != nil {
		return res, fmt.Errorf("mark %s completed: %w", job.path, err)
	}
	return res, nil
}

var dumpPart = regexp.MustCompile(`\.xml-p\d+p\d+$`)

// IsDumpFile erkennt Dateinamen von XML-Dumps, komprimiert oder nicht,
// einschließlich Wikimedia-Teildateien wie "enwiki-...-history1.xml-p1p812.bz2".
func IsDumpFile(name string) bool {
	base := filepath.Base(name)
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".bz2"), ".gz")
	return strings.HasSuffix(base, ".xml") || dumpPart.MatchString(base)
}

var dumpOrder = regexp.MustCompile(`history(\d+).*?p(\d+)`)

// SortSourceFiles ordnet Dumps nach Teilnummer und erster Seiten-ID. Andere Namen kommen ans Ende.
func SortSourceFiles(paths []string) {
	type key struct {
		ok      bool
		history int
		page    int
	}
	keyOf := func(p string) key {
		m := dumpOrder.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			return key{}
		}
		h, _ := strconv.Atoi(m[1])
		pg, _ := strconv.Atoi(m[2])
		return key{ok: true, history: h, page: pg}
	}
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := keyOf(paths[i]), keyOf(paths[j])
		if a.ok != b.ok {
			return a.ok
		}
		if a.history != b.history {
			return a.history < b.history
		}
		return a.page < b.page
	})
}
