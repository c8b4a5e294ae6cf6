// Package pipeline implements the fetch-validate-parse-aggregate pipeline
// that turns one day of per-minute VDLive archives into one ordered table
// per detector.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/vd-data-etl-service/internal/adapter/table"
	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
	"github.com/couchcryptid/vd-data-etl-service/internal/lifecycle"
	"github.com/couchcryptid/vd-data-etl-service/internal/observability"
)

// Pipeline runs whole days through fetch, decompress+parse, aggregation,
// table output, and lifecycle cleanup.
type Pipeline struct {
	fetcher   *Fetcher
	processor *Processor
	tables    *table.Writer
	publisher SnapshotPublisher // nil when publishing is disabled
	lifecycle *lifecycle.Manager
	baseDir   string
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New wires the pipeline stages together. publisher may be nil.
func New(fetcher *Fetcher, processor *Processor, tables *table.Writer, publisher SnapshotPublisher, lc *lifecycle.Manager, baseDir string, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		processor: processor,
		tables:    tables,
		publisher: publisher,
		lifecycle: lc,
		baseDir:   baseDir,
		logger:    logger,
		metrics:   metrics,
	}
}

// DayResult summarizes one day's run. The day completed with gaps when
// SlotsAbandoned, DecompressErrors, or ParseErrors are non-zero; values are
// never fabricated for missing minutes.
type DayResult struct {
	Day              domain.DaySpec
	SlotsRequested   int
	SlotsFetched     int
	SlotsAbandoned   int
	DecompressErrors int
	ParseErrors      int
	Snapshots        int
	Detectors        int
	SeriesDir        string
	ZipPath          string
	Duration         time.Duration
}

// CheckReadiness returns nil once at least one day has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no day has completed yet")
	}
	return nil
}

// Run processes days walking backwards from start. The first fatal day
// (aggregation contract violation, I/O failure, cancellation) aborts the
// remaining days.
func (p *Pipeline) Run(ctx context.Context, start domain.DaySpec, days int) error {
	day := start
	for i := 0; i < days; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := p.RunDay(ctx, day)
		if err != nil {
			return fmt.Errorf("day %s: %w", day.Label(), err)
		}
		p.logger.Info("day complete",
			"day", res.Day.Label(),
			"slots_fetched", res.SlotsFetched,
			"slots_abandoned", res.SlotsAbandoned,
			"decompress_errors", res.DecompressErrors,
			"parse_errors", res.ParseErrors,
			"detectors", res.Detectors,
			"zip", res.ZipPath,
			"duration", res.Duration,
		)
		p.ready.Store(true)
		day = day.Previous()
	}
	return nil
}

// RunDay executes the full pipeline for one day.
func (p *Pipeline) RunDay(ctx context.Context, day domain.DaySpec) (DayResult, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	layout := domain.NewDayLayout(p.baseDir, day)
	ret := p.lifecycle.Retention()

	// Artifacts are only written when retention keeps them; the lifecycle
	// pass would delete them right after otherwise.
	var payloadDir string
	if ret.KeepCompressed {
		payloadDir = layout.CompressedDir()
	}
	dirs := PersistDirs{}
	if ret.KeepDecompressed {
		dirs.RawDir = layout.DecompressedDir()
	}
	if ret.KeepMinuteTables {
		dirs.TableDir = layout.MinuteTableDir()
	}

	slots := domain.Slots()
	p.logger.Info("day started", "day", day.Label(), "slots", len(slots))

	results, err := p.fetcher.FetchDay(ctx, day, slots, payloadDir)
	if err != nil {
		return DayResult{}, err
	}

	fetched, abandoned := 0, 0
	for _, res := range results {
		if res.Outcome == domain.FetchOK {
			fetched++
		} else {
			abandoned++
		}
	}
	p.logger.Info("fetch complete", "day", day.Label(), "fetched", fetched, "abandoned", abandoned)

	agg := NewAggregator()
	stats, err := p.processor.ProcessDay(ctx, day, results, agg, p.publisher, dirs)
	if err != nil {
		_, _ = agg.Finalize() // stop the collector before bailing
		return DayResult{}, err
	}

	series, err := agg.Finalize()
	if err != nil {
		// Duplicate (VDID, minute): upstream contract breach, fatal for the day.
		return DayResult{}, err
	}

	written, err := p.tables.WriteSeries(layout.SeriesDir(), series)
	if err != nil {
		return DayResult{}, err
	}
	p.metrics.SeriesWritten.Add(float64(written))

	zipPath, err := p.lifecycle.Finalize(layout)
	if err != nil {
		return DayResult{}, err
	}

	p.metrics.DayDuration.Observe(time.Since(start).Seconds())

	return DayResult{
		Day:              day,
		SlotsRequested:   len(slots),
		SlotsFetched:     fetched,
		SlotsAbandoned:   abandoned,
		DecompressErrors: stats.DecompressErrors,
		ParseErrors:      stats.ParseErrors,
		Snapshots:        stats.Snapshots,
		Detectors:        written,
		SeriesDir:        layout.SeriesDir(),
		ZipPath:          zipPath,
		Duration:         time.Since(start),
	}, nil
}
