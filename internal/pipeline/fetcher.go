package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
	"github.com/couchcryptid/vd-data-etl-service/internal/observability"
)

// PayloadFetcher acquires one minute's compressed payload from the source.
type PayloadFetcher interface {
	FetchPayload(ctx context.Context, day domain.DaySpec, slot domain.MinuteSlot) ([]byte, error)
}

// Fetcher drains a day's slot list through a bounded pool of download
// workers, validating payload size and retrying per policy. A slot that
// exhausts its retry budget is recorded as abandoned, never fatal.
type Fetcher struct {
	client      PayloadFetcher
	minSize     int
	concurrency int
	policy      RetryPolicy
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewFetcher creates a Fetcher. minSize is the corrupt-payload threshold in
// bytes; concurrency bounds the download pool.
func NewFetcher(client PayloadFetcher, minSize, concurrency int, policy RetryPolicy, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		client:      client,
		minSize:     minSize,
		concurrency: concurrency,
		policy:      policy,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// FetchDay acquires every slot of the day and returns one FetchResult per
// slot, index-aligned with slots. When persistDir is non-empty, validated
// payloads are written there and payloads already present from an earlier
// run are reused without re-downloading.
func (f *Fetcher) FetchDay(ctx context.Context, day domain.DaySpec, slots []domain.MinuteSlot, persistDir string) ([]domain.FetchResult, error) {
	if persistDir != "" {
		if err := os.MkdirAll(persistDir, 0o755); err != nil {
			return nil, fmt.Errorf("create payload dir: %w", err)
		}
	}

	results := make([]domain.FetchResult, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, slot := range slots {
		g.Go(func() error {
			results[i] = f.fetchSlot(gctx, day, slot, persistDir)
			return nil
		})
	}
	_ = g.Wait() // workers report via results, never via error

	return results, ctx.Err()
}

func (f *Fetcher) fetchSlot(ctx context.Context, day domain.DaySpec, slot domain.MinuteSlot, persistDir string) domain.FetchResult {
	start := f.clock.Now()
	defer func() {
		f.metrics.FetchDuration.Observe(f.clock.Since(start).Seconds())
	}()

	if persistDir != "" {
		if payload := f.reusePersisted(persistDir, slot); payload != nil {
			f.metrics.SlotsFetched.Inc()
			return domain.FetchResult{Slot: slot, Payload: payload, Outcome: domain.FetchOK}
		}
	}

	outcome := domain.FetchTransportError
	attempts := 0
	for {
		attempts++
		if attempts > 1 {
			f.metrics.FetchRetries.Inc()
		}

		payload, err := f.client.FetchPayload(ctx, day, slot)
		switch {
		case err != nil:
			outcome = domain.FetchTransportError
			f.logger.Warn("fetch attempt failed",
				"slot", slot.Label(), "attempt", attempts, "error", err)
		case len(payload) < f.minSize:
			outcome = domain.FetchTooSmall
			f.metrics.CorruptPayloads.Inc()
			f.logger.Warn("fetch attempt rejected",
				"slot", slot.Label(), "attempt", attempts,
				"error", fmt.Errorf("%w: %d bytes < %d", domain.ErrCorruptPayload, len(payload), f.minSize))
		default:
			f.persist(persistDir, slot, payload)
			f.metrics.SlotsFetched.Inc()
			return domain.FetchResult{Slot: slot, Payload: payload, Outcome: domain.FetchOK, Attempts: attempts}
		}

		delay, retry := f.policy.Retry(attempts)
		if !retry {
			break
		}
		select {
		case <-ctx.Done():
			return f.abandon(slot, domain.FetchTransportError, attempts)
		case <-f.clock.After(delay):
		}
	}

	return f.abandon(slot, outcome, attempts)
}

func (f *Fetcher) abandon(slot domain.MinuteSlot, outcome domain.FetchOutcome, attempts int) domain.FetchResult {
	f.metrics.SlotsAbandoned.WithLabelValues(outcome.String()).Inc()
	f.logger.Warn("slot abandoned",
		"slot", slot.Label(), "outcome", outcome.String(), "attempts", attempts)
	return domain.FetchResult{Slot: slot, Outcome: outcome, Attempts: attempts}
}

// reusePersisted returns a previously retained payload of valid size, or nil.
func (f *Fetcher) reusePersisted(dir string, slot domain.MinuteSlot) []byte {
	payload, err := os.ReadFile(payloadPath(dir, slot))
	if err != nil || len(payload) < f.minSize {
		return nil
	}
	f.logger.Debug("reusing retained payload", "slot", slot.Label(), "size", len(payload))
	return payload
}

// persist is best-effort: a retention write failure costs the artifact, not
// the slot.
func (f *Fetcher) persist(dir string, slot domain.MinuteSlot, payload []byte) {
	if dir == "" {
		return
	}
	if err := os.WriteFile(payloadPath(dir, slot), payload, 0o644); err != nil {
		f.logger.Warn("persist payload failed", "slot", slot.Label(), "error", err)
	}
}

func payloadPath(dir string, slot domain.MinuteSlot) string {
	return filepath.Join(dir, fmt.Sprintf("VDLive_%s.xml.gz", slot.Label()))
}
