package pipeline

import (
	"context"
	"sort"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// Aggregator merges per-minute snapshots into ordered per-detector series.
// A single collector goroutine owns the buffers and receives snapshots over
// a channel, so parse workers never touch shared state and the ordering
// invariant is enforced in exactly one place, at finalize.
type Aggregator struct {
	ch     chan domain.DetectorSnapshot
	done   chan struct{}
	series map[string]*domain.DetectorSeries
}

// NewAggregator starts the collector goroutine. Callers must end the
// aggregator with Finalize even on error paths, or the collector leaks.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		ch:     make(chan domain.DetectorSnapshot, 256),
		done:   make(chan struct{}),
		series: make(map[string]*domain.DetectorSeries),
	}
	go a.collect()
	return a
}

func (a *Aggregator) collect() {
	defer close(a.done)
	for snap := range a.ch {
		s, ok := a.series[snap.VDID]
		if !ok {
			s = &domain.DetectorSeries{VDID: snap.VDID}
			a.series[snap.VDID] = s
		}
		s.Snapshots = append(s.Snapshots, snap)
	}
}

// Add hands one snapshot to the collector, honoring cancellation.
func (a *Aggregator) Add(ctx context.Context, snap domain.DetectorSnapshot) error {
	select {
	case a.ch <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize closes intake, waits for the collector to drain, and returns the
// series sorted by VDID, each ascending by minute. A duplicate
// (VDID, minute) pair fails the whole day; it signals an upstream contract
// breach, not a condition to paper over.
func (a *Aggregator) Finalize() ([]domain.DetectorSeries, error) {
	close(a.ch)
	<-a.done

	vdids := make([]string, 0, len(a.series))
	for vdid := range a.series {
		vdids = append(vdids, vdid)
	}
	sort.Strings(vdids)

	out := make([]domain.DetectorSeries, 0, len(vdids))
	for _, vdid := range vdids {
		s := a.series[vdid]
		if err := s.Finalize(); err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}
