package domain

import (
	"fmt"
	"sort"
)

// VehicleClass holds one vehicle class's volume and average speed within a
// lane. Class codes vary between detector hardware generations, so the set
// of classes per lane is open-ended.
type VehicleClass struct {
	Type   string `json:"type"`
	Volume string `json:"volume"`
	Speed  string `json:"speed"`
}

// Lane holds one physical lane's metrics for one minute. Values keep the
// exact strings the source reported.
type Lane struct {
	ID        string         `json:"id"`
	Speed     string         `json:"speed"`
	Occupancy string         `json:"occupancy"`
	Classes   []VehicleClass `json:"classes,omitempty"`
}

// DetectorSnapshot is one detector station's measurements for one minute.
// Immutable once produced by the parser.
type DetectorSnapshot struct {
	VDID  string
	Slot  MinuteSlot
	Lanes []Lane
}

// DetectorSeries is one detector's snapshots across a day, ascending by
// minute with no duplicates once Finalize has run.
type DetectorSeries struct {
	VDID      string
	Snapshots []DetectorSnapshot
}

// Finalize sorts the series ascending by minute and verifies that no minute
// appears twice. Parse workers complete out of order, so arrival order says
// nothing about slot order. A duplicate is a contract breach of the source
// format and is surfaced rather than deduplicated.
func (s *DetectorSeries) Finalize() error {
	sort.SliceStable(s.Snapshots, func(i, j int) bool {
		return s.Snapshots[i].Slot.Index() < s.Snapshots[j].Slot.Index()
	})
	for i := 1; i < len(s.Snapshots); i++ {
		if s.Snapshots[i].Slot == s.Snapshots[i-1].Slot {
			return fmt.Errorf("%w: vdid %s minute %s", ErrDuplicateSlot, s.VDID, s.Snapshots[i].Slot.Label())
		}
	}
	return nil
}
