package domain

import (
	"fmt"
	"strconv"
	"time"
)

// dateLayout is the YYYYMMDD form used in archive URLs and directory names.
const dateLayout = "20060102"

// SlotsPerDay is the number of per-minute snapshots a complete day publishes.
const SlotsPerDay = 24 * 60

// DaySpec identifies one calendar day in a fixed IANA timezone. It is
// immutable and fully determines the day's 1,440 minute slots.
type DaySpec struct {
	date time.Time // midnight in loc
	loc  *time.Location
}

// NewDaySpec builds a DaySpec from a YYYYMMDD date and an IANA zone name.
func NewDaySpec(date, tz string) (DaySpec, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DaySpec{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	d, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return DaySpec{}, fmt.Errorf("parse date %q: expected YYYYMMDD: %w", date, err)
	}
	return DaySpec{date: d, loc: loc}, nil
}

// Yesterday returns the most recently completed day in tz, the default
// processing target since the current day's archive is still being published.
func Yesterday(tz string) (DaySpec, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DaySpec{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	y := clock.Now().In(loc).AddDate(0, 0, -1)
	return NewDaySpec(y.Format(dateLayout), tz)
}

// Label returns the day in YYYYMMDD form.
func (d DaySpec) Label() string { return d.date.Format(dateLayout) }

// Previous returns the preceding calendar day in the same timezone.
func (d DaySpec) Previous() DaySpec {
	return DaySpec{date: d.date.AddDate(0, 0, -1), loc: d.loc}
}

func (d DaySpec) String() string { return d.Label() }

// MinuteSlot is one calendar minute of a day, the atomic unit of source data.
type MinuteSlot struct {
	Hour   int
	Minute int
}

// Label returns the zero-padded 24-hour "HHMM" form used in archive names.
func (s MinuteSlot) Label() string { return fmt.Sprintf("%02d%02d", s.Hour, s.Minute) }

// Index returns the slot's position within the day, 0 through 1439.
func (s MinuteSlot) Index() int { return s.Hour*60 + s.Minute }

// ParseSlotLabel parses a zero-padded "HHMM" label back into a MinuteSlot.
func ParseSlotLabel(label string) (MinuteSlot, error) {
	if len(label) != 4 {
		return MinuteSlot{}, fmt.Errorf("parse slot %q: expected HHMM", label)
	}
	h, err := strconv.Atoi(label[:2])
	if err != nil || h < 0 || h > 23 {
		return MinuteSlot{}, fmt.Errorf("parse slot %q: bad hour", label)
	}
	m, err := strconv.Atoi(label[2:])
	if err != nil || m < 0 || m > 59 {
		return MinuteSlot{}, fmt.Errorf("parse slot %q: bad minute", label)
	}
	return MinuteSlot{Hour: h, Minute: m}, nil
}

// Slots enumerates the day's 1,440 minute slots in ascending order.
func Slots() []MinuteSlot {
	slots := make([]MinuteSlot, 0, SlotsPerDay)
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			slots = append(slots, MinuteSlot{Hour: h, Minute: m})
		}
	}
	return slots
}
