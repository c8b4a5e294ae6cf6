// Command validate checks the integrity of a day's per-detector output
// tables: filename/VDID agreement, strictly ascending unique minutes, and
// per-file column consistency. It exits non-zero when any check fails.
//
// Usage:
//
//	go run ./cmd/validate -series-dir /data/20240530/VDID
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	seriesDir := flag.String("series-dir", "", "directory containing per-VDID output tables")
	flag.Parse()

	if *seriesDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*seriesDir))
}

func run(seriesDir string) int {
	fmt.Println("=== VD Output Table Validation ===")
	fmt.Println()

	tables, err := loadTables(seriesDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load tables: %v\n", err)
		return 1
	}
	if len(tables) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no .csv tables under %s\n", seriesDir)
		return 1
	}

	phases := []*phase{
		validateNaming(tables),
		validateMinuteOrder(tables),
		validateColumns(tables),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       - %s\n", e)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("validation FAILED")
		return 1
	}
	fmt.Printf("validation passed: %d tables\n", len(tables))
	return 0
}

// seriesTable is one loaded per-VDID table.
type seriesTable struct {
	file string // base filename
	rows [][]string
}

func loadTables(dir string) ([]seriesTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var tables []seriesTable
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1 // ragged rows are reported by a phase, not here
		rows, err := r.ReadAll()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		tables = append(tables, seriesTable{file: e.Name(), rows: rows})
	}
	return tables, nil
}

// validateNaming checks that each file is named <VDID>.csv and every data row
// carries that VDID in its first cell.
func validateNaming(tables []seriesTable) *phase {
	p := &phase{name: "filename / VDID agreement"}
	for _, t := range tables {
		vdid := strings.TrimSuffix(t.file, ".csv")
		if len(t.rows) < 2 {
			p.errorf("%s: no data rows", t.file)
			continue
		}
		if len(t.rows[0]) < 2 || t.rows[0][0] != "VDID" || t.rows[0][1] != "Minute" {
			p.errorf("%s: header must start with VDID,Minute", t.file)
			continue
		}
		for i, row := range t.rows[1:] {
			if len(row) == 0 || row[0] != vdid {
				p.errorf("%s: row %d VDID %q does not match filename", t.file, i+2, cell(row, 0))
				break
			}
		}
	}
	return p
}

// validateMinuteOrder checks that minutes parse, are unique, ascend strictly,
// and never exceed a day's worth of rows.
func validateMinuteOrder(tables []seriesTable) *phase {
	p := &phase{name: "minute ordering"}
	for _, t := range tables {
		if len(t.rows) < 2 {
			continue
		}
		if len(t.rows)-1 > domain.SlotsPerDay {
			p.errorf("%s: %d rows exceeds one day", t.file, len(t.rows)-1)
		}
		prev := -1
		for i, row := range t.rows[1:] {
			slot, err := domain.ParseSlotLabel(cell(row, 1))
			if err != nil {
				p.errorf("%s: row %d: %v", t.file, i+2, err)
				break
			}
			if slot.Index() <= prev {
				p.errorf("%s: row %d minute %s not strictly ascending", t.file, i+2, slot.Label())
				break
			}
			prev = slot.Index()
		}
	}
	return p
}

// validateColumns checks that every row matches its header width and that
// header columns are unique.
func validateColumns(tables []seriesTable) *phase {
	p := &phase{name: "column consistency"}
	for _, t := range tables {
		if len(t.rows) == 0 {
			continue
		}
		header := t.rows[0]
		seen := make(map[string]bool, len(header))
		for _, col := range header {
			if col == "" {
				p.errorf("%s: empty column name in header", t.file)
			}
			if seen[col] {
				p.errorf("%s: duplicate column %q", t.file, col)
			}
			seen[col] = true
		}
		for i, row := range t.rows[1:] {
			if len(row) != len(header) {
				p.errorf("%s: row %d has %d cells, header has %d", t.file, i+2, len(row), len(header))
				break
			}
		}
	}
	return p
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
