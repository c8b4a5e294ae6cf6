// Package table materializes detector snapshots as CSV tables, the output
// contract consumed by downstream analytics.
package table

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// Writer writes per-VDID series tables and per-minute intermediate tables.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger}
}

// Columns derives the lane/metric column names for a set of snapshots:
// lanes ascending by numeric ID, per lane Speed then Occupancy, then each
// vehicle class's Volume and Vehicle_Speed in first-seen order. The naming
// (L<lane>_<metric>, <class>_Volume, <class>_Vehicle_Speed) is the hard
// contract with downstream consumers.
func Columns(snaps []domain.DetectorSnapshot) []string {
	var laneOrder []string
	classes := make(map[string][]string) // lane ID -> class types, first seen
	seenLane := make(map[string]bool)

	for _, snap := range snaps {
		for _, ln := range snap.Lanes {
			if !seenLane[ln.ID] {
				seenLane[ln.ID] = true
				laneOrder = append(laneOrder, ln.ID)
			}
			for _, c := range ln.Classes {
				if !slices.Contains(classes[ln.ID], c.Type) {
					classes[ln.ID] = append(classes[ln.ID], c.Type)
				}
			}
		}
	}

	sort.SliceStable(laneOrder, func(i, j int) bool { return laneLess(laneOrder[i], laneOrder[j]) })

	var cols []string
	for _, id := range laneOrder {
		prefix := "L" + id
		cols = append(cols, prefix+"_Speed", prefix+"_Occupancy")
		for _, vt := range classes[id] {
			cols = append(cols, prefix+"_"+vt+"_Volume", prefix+"_"+vt+"_Vehicle_Speed")
		}
	}
	return cols
}

// WriteSeries writes one table per series under dir, one row per available
// minute ascending. Returns the number of tables written.
func (w *Writer) WriteSeries(dir string, series []domain.DetectorSeries) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create series dir: %w", err)
	}

	for _, s := range series {
		cols := Columns(s.Snapshots)
		header := append([]string{"VDID", "Minute"}, cols...)

		rows := make([][]string, 0, len(s.Snapshots)+1)
		rows = append(rows, header)
		for _, snap := range s.Snapshots {
			row := make([]string, 0, len(header))
			row = append(row, s.VDID, snap.Slot.Label())
			cells := cellValues(snap)
			for _, col := range cols {
				row = append(row, cells[col])
			}
			rows = append(rows, row)
		}

		path := filepath.Join(dir, s.VDID+".csv")
		if err := writeCSV(path, rows); err != nil {
			return 0, fmt.Errorf("write series %s: %w", s.VDID, err)
		}
	}
	return len(series), nil
}

// WriteMinute writes the intermediate per-minute table, one row per detector
// present in that minute's document.
func (w *Writer) WriteMinute(dir string, slot domain.MinuteSlot, snaps []domain.DetectorSnapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create minute table dir: %w", err)
	}

	cols := Columns(snaps)
	rows := make([][]string, 0, len(snaps)+1)
	rows = append(rows, append([]string{"VDID"}, cols...))
	for _, snap := range snaps {
		row := make([]string, 0, len(cols)+1)
		row = append(row, snap.VDID)
		cells := cellValues(snap)
		for _, col := range cols {
			row = append(row, cells[col])
		}
		rows = append(rows, row)
	}

	path := filepath.Join(dir, fmt.Sprintf("VDLive_%s.csv", slot.Label()))
	if err := writeCSV(path, rows); err != nil {
		return fmt.Errorf("write minute table %s: %w", slot.Label(), err)
	}
	return nil
}

// cellValues flattens one snapshot into column name -> value. Columns a
// snapshot does not report stay absent and render as empty cells.
func cellValues(snap domain.DetectorSnapshot) map[string]string {
	cells := make(map[string]string)
	for _, ln := range snap.Lanes {
		prefix := "L" + ln.ID
		cells[prefix+"_Speed"] = ln.Speed
		cells[prefix+"_Occupancy"] = ln.Occupancy
		for _, c := range ln.Classes {
			cells[prefix+"_"+c.Type+"_Volume"] = c.Volume
			cells[prefix+"_"+c.Type+"_Vehicle_Speed"] = c.Speed
		}
	}
	return cells
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// laneLess orders lane IDs numerically when both parse, lexically otherwise.
func laneLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
