package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDaySpec(t *testing.T) {
	day, err := NewDaySpec("20240530", "Asia/Taipei")
	require.NoError(t, err)
	assert.Equal(t, "20240530", day.Label())
	assert.Equal(t, "20240529", day.Previous().Label())
}

func TestNewDaySpec_BadDate(t *testing.T) {
	_, err := NewDaySpec("2024-05-30", "Asia/Taipei")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYYMMDD")
}

func TestNewDaySpec_BadTimezone(t *testing.T) {
	_, err := NewDaySpec("20240530", "Mars/Olympus")
	assert.Error(t, err)
}

func TestYesterday(t *testing.T) {
	// At 00:30 June 1 in Taipei the most recent complete archive is May 31.
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 0, 30, 0, 0, time.FixedZone("CST", 8*3600))))
	t.Cleanup(func() { SetClock(nil) })

	day, err := Yesterday("Asia/Taipei")
	require.NoError(t, err)
	assert.Equal(t, "20240531", day.Label())
}

func TestSlots(t *testing.T) {
	slots := Slots()
	require.Len(t, slots, SlotsPerDay)

	assert.Equal(t, "0000", slots[0].Label())
	assert.Equal(t, "0930", slots[570].Label())
	assert.Equal(t, "2359", slots[1439].Label())

	for i, s := range slots {
		require.Equal(t, i, s.Index())
	}
}

func TestParseSlotLabel(t *testing.T) {
	s, err := ParseSlotLabel("1510")
	require.NoError(t, err)
	assert.Equal(t, MinuteSlot{Hour: 15, Minute: 10}, s)

	for _, bad := range []string{"", "9:30", "2460", "0060", "abcd", "12345"} {
		_, err := ParseSlotLabel(bad)
		assert.Error(t, err, "label %q", bad)
	}
}

func TestDayLayout(t *testing.T) {
	day, err := NewDaySpec("20240530", "Asia/Taipei")
	require.NoError(t, err)

	l := NewDayLayout("/data", day)
	assert.Equal(t, "/data/20240530", l.Root())
	assert.Equal(t, "/data/20240530/compressed", l.CompressedDir())
	assert.Equal(t, "/data/20240530/decompressed", l.DecompressedDir())
	assert.Equal(t, "/data/20240530/csv", l.MinuteTableDir())
	assert.Equal(t, "/data/20240530/VDID", l.SeriesDir())
	assert.Equal(t, "/data/20240530.zip", l.ZipPath())
}
