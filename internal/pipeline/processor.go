package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/vd-data-etl-service/internal/adapter/table"
	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
	"github.com/couchcryptid/vd-data-etl-service/internal/observability"
)

// SnapshotSink receives parsed snapshots for aggregation. Implementations
// must be safe for concurrent calls from parse workers.
type SnapshotSink interface {
	Add(ctx context.Context, snap domain.DetectorSnapshot) error
}

// SnapshotPublisher forwards a minute's snapshots to an external sink.
type SnapshotPublisher interface {
	PublishSnapshots(ctx context.Context, day domain.DaySpec, snaps []domain.DetectorSnapshot) error
}

// PersistDirs names optional intermediate artifact locations; an empty
// string disables that artifact.
type PersistDirs struct {
	RawDir   string // decompressed VDLive_<HHMM>.xml documents
	TableDir string // per-minute CSV tables, one row per detector
}

// ProcessStats counts the decompress+parse stage outcomes for one day.
type ProcessStats struct {
	MinutesParsed    int
	DecompressErrors int
	ParseErrors      int
	Snapshots        int
}

// Processor inflates fetched payloads and parses detector snapshots under
// its own concurrency bound, independent of the download bound since this
// stage is CPU-bound. Decompression and parse failures are scoped to their
// minute; the day continues with the rest.
type Processor struct {
	concurrency int
	tables      *table.Writer
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func NewProcessor(concurrency int, tables *table.Writer, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		concurrency: concurrency,
		tables:      tables,
		logger:      logger,
		metrics:     metrics,
	}
}

// ProcessDay feeds every successfully fetched slot through decompress and
// parse, handing snapshots to sink and, when publisher is non-nil, to the
// external sink as one batch per minute.
func (p *Processor) ProcessDay(ctx context.Context, day domain.DaySpec, results []domain.FetchResult, sink SnapshotSink, publisher SnapshotPublisher, dirs PersistDirs) (ProcessStats, error) {
	for _, dir := range []string{dirs.RawDir, dirs.TableDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ProcessStats{}, fmt.Errorf("create artifact dir: %w", err)
		}
	}

	var minutesParsed, decompressErrors, parseErrors, snapshots atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, res := range results {
		if res.Outcome != domain.FetchOK {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			defer func() {
				p.metrics.ParseDuration.Observe(time.Since(start).Seconds())
			}()

			raw, err := inflate(res.Payload)
			if err != nil {
				decompressErrors.Add(1)
				p.metrics.DecompressErrors.Inc()
				p.logger.Warn("decompress failed, dropping minute", "slot", res.Slot.Label(), "error", err)
				return nil
			}
			p.persistRaw(dirs.RawDir, res.Slot, raw)

			snaps, err := ParseVDLive(bytes.NewReader(raw), res.Slot)
			if err != nil {
				parseErrors.Add(1)
				p.metrics.ParseErrors.Inc()
				p.logger.Warn("parse failed, dropping minute", "slot", res.Slot.Label(), "error", err)
				return nil
			}

			if dirs.TableDir != "" {
				if err := p.tables.WriteMinute(dirs.TableDir, res.Slot, snaps); err != nil {
					p.logger.Warn("persist minute table failed", "slot", res.Slot.Label(), "error", err)
				}
			}
			if publisher != nil {
				if err := publisher.PublishSnapshots(gctx, day, snaps); err != nil {
					p.logger.Warn("publish snapshots failed", "slot", res.Slot.Label(), "error", err)
				}
			}

			for _, snap := range snaps {
				if err := sink.Add(gctx, snap); err != nil {
					return err
				}
			}

			minutesParsed.Add(1)
			snapshots.Add(int64(len(snaps)))
			p.metrics.SnapshotsParsed.Add(float64(len(snaps)))
			return nil
		})
	}

	err := g.Wait()
	stats := ProcessStats{
		MinutesParsed:    int(minutesParsed.Load()),
		DecompressErrors: int(decompressErrors.Load()),
		ParseErrors:      int(parseErrors.Load()),
		Snapshots:        int(snapshots.Load()),
	}
	return stats, err
}

// persistRaw is best-effort, same as payload retention in the fetcher.
func (p *Processor) persistRaw(dir string, slot domain.MinuteSlot, raw []byte) {
	if dir == "" {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("VDLive_%s.xml", slot.Label()))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		p.logger.Warn("persist raw document failed", "slot", slot.Label(), "error", err)
	}
}

func inflate(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecompress, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecompress, err)
	}
	return raw, nil
}
