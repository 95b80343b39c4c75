package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/models"
)

var (
	ingestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_ingest_runs_total",
			Help: "Ingestion runs by result.",
		},
		[]string{"result"},
	)

	ingestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_ingest_rows_total",
			Help: "Ingested rows by outcome.",
		},
		[]string{"outcome"},
	)

	ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telemetry_ingest_duration_seconds",
			Help:    "Duration of ingestion runs.",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900},
		},
	)
)

// Loader persists a batch of decoded records as one atomic write.
type Loader interface {
	Load(ctx context.Context, records []models.EventRecord) (int64, error)
}

// Report summarises one ingestion run.
type Report struct {
	RunID    string
	Path     string
	Rows     int
	Decoded  int
	Skipped  int
	Inserted int64
	Duration time.Duration
}

func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID),
		slog.String("path", r.Path),
		slog.Int("rows", r.Rows),
		slog.Int("decoded", r.Decoded),
		slog.Int("skipped", r.Skipped),
		slog.Int64("inserted", r.Inserted),
		slog.Duration("duration", r.Duration),
	)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDelimiter sets the field delimiter. Default ','.
func WithDelimiter(d rune) Option {
	return func(p *Pipeline) { p.delimiter = d }
}

// WithOnLoaded registers a hook run after every successful load.
func WithOnLoaded(fn func(Report)) Option {
	return func(p *Pipeline) { p.onLoaded = append(p.onLoaded, fn) }
}

// Pipeline reads one file, decodes its rows and hands the result to the
// loader in a single batch.
type Pipeline struct {
	opener    Opener
	loader    Loader
	lock      Locker
	delimiter rune
	onLoaded  []func(Report)
	logger    *slog.Logger
}

func NewPipeline(opener Opener, loader Loader, lock Locker, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		opener:    opener,
		loader:    loader,
		lock:      lock,
		delimiter: ',',
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests path synchronously. It fails fast with ErrRunInProgress when
// another run holds the lock.
func (p *Pipeline) Run(ctx context.Context, path string) (Report, error) {
	if err := p.opener.Validate(path); err != nil {
		return Report{Path: path}, err
	}
	unlock, err := p.lock.TryLock(ctx)
	if err != nil {
		return Report{Path: path}, err
	}
	defer unlock()

	return p.run(ctx, newRunID(), path)
}

// run does the work. The caller holds the lock.
func (p *Pipeline) run(ctx context.Context, runID, path string) (report Report, err error) {
	start := time.Now()
	report = Report{RunID: runID, Path: path}
	logger := p.logger.With("run_id", runID, "path", path)

	result := "failed"
	defer func() {
		report.Duration = time.Since(start)
		ingestRunsTotal.WithLabelValues(result).Inc()
		ingestDuration.Observe(report.Duration.Seconds())
		ingestRowsTotal.WithLabelValues("decoded").Add(float64(report.Decoded))
		ingestRowsTotal.WithLabelValues("skipped").Add(float64(report.Skipped))
		ingestRowsTotal.WithLabelValues("inserted").Add(float64(report.Inserted))
		if err != nil {
			logger.Error("ingestion failed", "error", err, "report", report)
		}
	}()

	logger.Info("ingestion started")

	src, err := p.opener.Open(ctx, path)
	if err != nil {
		return report, err
	}
	defer src.Close()

	records, err := p.decodeAll(ctx, src, &report, logger)
	if err != nil {
		return report, err
	}

	if len(records) == 0 {
		result = "empty"
		logger.Info("no data found", "report", report)
		return report, nil
	}

	n, err := p.loader.Load(ctx, records)
	if err != nil {
		return report, err
	}
	report.Inserted = n
	report.Duration = time.Since(start)

	for _, fn := range p.onLoaded {
		fn(report)
	}

	result = "succeeded"
	logger.Info("ingestion finished", "report", report)
	return report, nil
}

// decodeAll streams rows from src. Rows that fail to decode are skipped and
// counted; a read failure aborts the run.
func (p *Pipeline) decodeAll(ctx context.Context, src io.Reader, report *Report, logger *slog.Logger) ([]models.EventRecord, error) {
	rr, err := newRowReader(src, p.delimiter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}

	var records []models.EventRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, line, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
			}
			report.Rows++
			report.Skipped++
			logger.Warn("skipping malformed row", "line", line, "error", pe.Err)
			continue
		}
		report.Rows++

		rec, err := Decode(row)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				de.Line = line
			}
			report.Skipped++
			logger.Warn("skipping row", "error", err)
			continue
		}
		records = append(records, rec)
	}
	report.Decoded = len(records)
	return records, nil
}

func newRunID() string {
	return uuid.NewString()
}
