package domain

import "path/filepath"

// DayLayout is the working-directory layout for one day. The pipeline writes
// into it and the lifecycle manager prunes it, so both sides derive paths
// from the same place.
type DayLayout struct {
	root string
}

// NewDayLayout places a day's folder under the base working directory.
func NewDayLayout(baseDir string, day DaySpec) DayLayout {
	return DayLayout{root: filepath.Join(baseDir, day.Label())}
}

// Root is the per-day directory, BASE_DIR/<YYYYMMDD>.
func (l DayLayout) Root() string { return l.root }

// CompressedDir holds retained VDLive_<HHMM>.xml.gz payloads.
func (l DayLayout) CompressedDir() string { return filepath.Join(l.root, "compressed") }

// DecompressedDir holds retained raw VDLive_<HHMM>.xml documents.
func (l DayLayout) DecompressedDir() string { return filepath.Join(l.root, "decompressed") }

// MinuteTableDir holds retained per-minute tables, one row per detector.
func (l DayLayout) MinuteTableDir() string { return filepath.Join(l.root, "csv") }

// SeriesDir holds the final output tables, one per VDID.
func (l DayLayout) SeriesDir() string { return filepath.Join(l.root, "VDID") }

// ZipPath is the day bundle written next to the day folder.
func (l DayLayout) ZipPath() string { return l.root + ".zip" }
