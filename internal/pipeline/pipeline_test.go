package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vd-data-etl-service/internal/adapter/table"
	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
	"github.com/couchcryptid/vd-data-etl-service/internal/lifecycle"
	"github.com/couchcryptid/vd-data-etl-service/internal/observability"
)

// archiveSource fabricates a full day of gzipped VDLive documents, with an
// optional set of hours whose payloads come back undersized every time.
type archiveSource struct {
	mu       sync.Mutex
	calls    int
	deadHour int // slots in this hour always return a placeholder; -1 disables
}

func (a *archiveSource) FetchPayload(_ context.Context, _ domain.DaySpec, slot domain.MinuteSlot) ([]byte, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	if slot.Hour == a.deadHour {
		return []byte("<html>404</html>"), nil
	}

	doc := fmt.Sprintf(`<VDLives>
	  <VDLive>
	    <VDID>VD-A</VDID>
	    <LinkFlows><LinkFlow><Lanes>
	      <Lane><LaneID>0</LaneID><Speed>%d</Speed><Occupancy>10</Occupancy>
	        <Vehicles><Vehicle><VehicleType>S</VehicleType><Volume>5</Volume><Speed>%d</Speed></Vehicle></Vehicles>
	      </Lane>
	    </Lanes></LinkFlow></LinkFlows>
	  </VDLive>
	  <VDLive>
	    <VDID>VD-B</VDID>
	    <LinkFlows><LinkFlow><Lanes>
	      <Lane><LaneID>0</LaneID><Speed>70</Speed><Occupancy>15</Occupancy></Lane>
	      <Lane><LaneID>1</LaneID><Speed>80</Speed><Occupancy>5</Occupancy></Lane>
	    </Lanes></LinkFlow></LinkFlows>
	  </VDLive>
	</VDLives>`, 50+slot.Index()%40, 50+slot.Index()%40)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(doc)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *archiveSource) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestPipeline(src PayloadFetcher, baseDir string, ret lifecycle.Retention) *Pipeline {
	logger := testLogger()
	metrics := observability.NewMetricsForTesting()
	tables := table.NewWriter(logger)
	fetcher := NewFetcher(src, 64, 16, fastPolicy(), clockwork.NewRealClock(), logger, metrics)
	processor := NewProcessor(8, tables, logger, metrics)
	lc := lifecycle.NewManager(ret, logger)
	return New(fetcher, processor, tables, nil, lc, baseDir, logger, metrics)
}

func TestRunDay_EndToEnd(t *testing.T) {
	base := t.TempDir()
	src := &archiveSource{deadHour: 3}
	p := newTestPipeline(src, base, lifecycle.Retention{})

	day := testDay(t)
	res, err := p.RunDay(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, domain.SlotsPerDay, res.SlotsRequested)
	assert.Equal(t, domain.SlotsPerDay-60, res.SlotsFetched)
	assert.Equal(t, 60, res.SlotsAbandoned, "every slot of the dead hour is abandoned")
	assert.Equal(t, 2, res.Detectors)
	assert.Equal(t, 2*(domain.SlotsPerDay-60), res.Snapshots)
	assert.Empty(t, res.ZipPath)

	rows := readCSV(t, filepath.Join(res.SeriesDir, "VD-A.csv"))
	require.Len(t, rows, 1+domain.SlotsPerDay-60)
	assert.Equal(t, []string{"VDID", "Minute", "L0_Speed", "L0_Occupancy", "L0_S_Volume", "L0_S_Vehicle_Speed"}, rows[0])

	// Rows ascend by minute and skip the dead hour entirely.
	assert.Equal(t, "0000", rows[1][1])
	assert.Equal(t, "0259", rows[180][1])
	assert.Equal(t, "0400", rows[181][1], "dead hour leaves a gap, never fabricated rows")
	assert.Equal(t, "2359", rows[len(rows)-1][1])

	bRows := readCSV(t, filepath.Join(res.SeriesDir, "VD-B.csv"))
	assert.Equal(t, []string{"VDID", "Minute", "L0_Speed", "L0_Occupancy", "L1_Speed", "L1_Occupancy"}, bRows[0])
}

func TestRunDay_ZipsAndRemovesDayFolder(t *testing.T) {
	base := t.TempDir()
	src := &archiveSource{deadHour: -1}
	p := newTestPipeline(src, base, lifecycle.Retention{ZipDay: true})

	day := testDay(t)
	res, err := p.RunDay(context.Background(), day)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, day.Label()+".zip"), res.ZipPath)
	_, err = os.Stat(res.ZipPath)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, day.Label()))
	assert.True(t, os.IsNotExist(err), "day folder is removed after bundling")
}

func TestRunDay_RerunIsIdempotent(t *testing.T) {
	base := t.TempDir()
	src := &archiveSource{deadHour: -1}
	ret := lifecycle.Retention{KeepCompressed: true}
	p := newTestPipeline(src, base, ret)

	day := testDay(t)
	res1, err := p.RunDay(context.Background(), day)
	require.NoError(t, err)
	firstCalls := src.callCount()
	assert.Equal(t, domain.SlotsPerDay, firstCalls)

	first, err := os.ReadFile(filepath.Join(res1.SeriesDir, "VD-A.csv"))
	require.NoError(t, err)

	res2, err := p.RunDay(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, firstCalls, src.callCount(), "retained payloads are reused, not re-downloaded")

	second, err := os.ReadFile(filepath.Join(res2.SeriesDir, "VD-A.csv"))
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-running a day yields byte-identical tables")
}

func TestRun_WalksDaysBackwards(t *testing.T) {
	base := t.TempDir()
	src := &archiveSource{deadHour: -1}
	p := newTestPipeline(src, base, lifecycle.Retention{})

	start := testDay(t)
	require.NoError(t, p.Run(context.Background(), start, 2))

	for _, label := range []string{"20240530", "20240529"} {
		_, err := os.Stat(filepath.Join(base, label, "VDID"))
		assert.NoError(t, err, "day %s output missing", label)
	}
}

func TestCheckReadiness(t *testing.T) {
	base := t.TempDir()
	src := &archiveSource{deadHour: -1}
	p := newTestPipeline(src, base, lifecycle.Retention{})

	assert.Error(t, p.CheckReadiness(context.Background()), "not ready before any day completes")

	require.NoError(t, p.Run(context.Background(), testDay(t), 1))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

// TestSingleMinuteRoundTrip drives parse, aggregation, and table output for
// one minute and checks the tables cell by cell.
func TestSingleMinuteRoundTrip(t *testing.T) {
	doc := `<VDLives>
	  <VDLive>
	    <VDID>VD-A</VDID>
	    <LinkFlows><LinkFlow><Lanes>
	      <Lane><LaneID>0</LaneID><Speed>61.5</Speed><Occupancy>12</Occupancy></Lane>
	      <Lane><LaneID>1</LaneID><Speed>72.0</Speed><Occupancy>4</Occupancy></Lane>
	    </Lanes></LinkFlow></LinkFlows>
	  </VDLive>
	  <VDLive>
	    <VDID>VD-B</VDID>
	    <LinkFlows><LinkFlow><Lanes>
	      <Lane><LaneID>0</LaneID><Speed>55.1</Speed><Occupancy>20</Occupancy></Lane>
	      <Lane><LaneID>1</LaneID><Speed>58.3</Speed><Occupancy>17</Occupancy></Lane>
	    </Lanes></LinkFlow></LinkFlows>
	  </VDLive>
	</VDLives>`

	slot := domain.MinuteSlot{Hour: 14, Minute: 25}
	snaps, err := ParseVDLive(bytes.NewReader([]byte(doc)), slot)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	ctx := context.Background()
	agg := NewAggregator()
	for _, s := range snaps {
		require.NoError(t, agg.Add(ctx, s))
	}
	series, err := agg.Finalize()
	require.NoError(t, err)

	dir := t.TempDir()
	n, err := table.NewWriter(testLogger()).WriteSeries(dir, series)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	aRows := readCSV(t, filepath.Join(dir, "VD-A.csv"))
	require.Len(t, aRows, 2)
	assert.Equal(t, []string{"VD-A", "1425", "61.5", "12", "72.0", "4"}, aRows[1])

	bRows := readCSV(t, filepath.Join(dir, "VD-B.csv"))
	require.Len(t, bRows, 2)
	assert.Equal(t, []string{"VD-B", "1425", "55.1", "20", "58.3", "17"}, bRows[1])
}

// retryingSource serves one slot a valid document only on its third attempt.
type retryingSource struct {
	inner    *archiveSource
	mu       sync.Mutex
	attempts map[string]int
	flaky    domain.MinuteSlot
}

func (r *retryingSource) FetchPayload(ctx context.Context, day domain.DaySpec, slot domain.MinuteSlot) ([]byte, error) {
	if slot == r.flaky {
		r.mu.Lock()
		r.attempts[slot.Label()]++
		n := r.attempts[slot.Label()]
		r.mu.Unlock()
		if n < 3 {
			return []byte("stub"), nil
		}
	}
	return r.inner.FetchPayload(ctx, day, slot)
}

func TestRunDay_RetriedMinuteLeavesNoTrace(t *testing.T) {
	base := t.TempDir()
	src := &retryingSource{
		inner:    &archiveSource{deadHour: -1},
		attempts: make(map[string]int),
		flaky:    domain.MinuteSlot{Hour: 0, Minute: 1},
	}
	p := newTestPipeline(src, base, lifecycle.Retention{})

	res, err := p.RunDay(context.Background(), testDay(t))
	require.NoError(t, err)

	assert.Equal(t, domain.SlotsPerDay, res.SlotsFetched)
	assert.Zero(t, res.SlotsAbandoned)
	assert.Equal(t, 3, src.attempts["0001"])

	rows := readCSV(t, filepath.Join(res.SeriesDir, "VD-A.csv"))
	require.Len(t, rows, 1+domain.SlotsPerDay)
	assert.Equal(t, "0001", rows[2][1], "the retried minute appears once, like any other")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
