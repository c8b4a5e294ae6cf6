// Command genday fabricates one day of per-minute VDLive archives for local
// pipeline runs and demos, without hitting the real archive host. Documents
// use the MOTC element layout the parser consumes and compress to the same
// VDLive_<HHMM>.xml.gz naming the fetcher persists.
//
// Usage:
//
//	go run ./cmd/genday -date 20240530 -out /data/mock/20240530 -detectors 20 -minutes 1440
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

var classTypes = []string{"S", "L", "T"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	date := flag.String("date", "", "day to fabricate, YYYYMMDD")
	out := flag.String("out", "", "output directory for the compressed documents")
	detectors := flag.Int("detectors", 20, "number of detector stations per document")
	minutes := flag.Int("minutes", domain.SlotsPerDay, "number of minutes to generate, from 0000 upward")
	seed := flag.Int64("seed", 1, "random seed, fixed for reproducible output")
	flag.Parse()

	if *date == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -date, -out")
	}
	if _, err := domain.NewDaySpec(*date, "Asia/Taipei"); err != nil {
		return err
	}
	if *minutes < 1 || *minutes > domain.SlotsPerDay {
		return fmt.Errorf("-minutes must be in [1, %d]", domain.SlotsPerDay)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	slots := domain.Slots()[:*minutes]
	for _, slot := range slots {
		doc := buildDocument(rng, *detectors)
		if err := writeCompressed(filepath.Join(*out, "VDLive_"+slot.Label()+".xml.gz"), doc); err != nil {
			return fmt.Errorf("minute %s: %w", slot.Label(), err)
		}
	}

	log.Printf("wrote %d documents to %s", len(slots), *out)
	return nil
}

// buildDocument renders one minute's document. Lane counts vary per detector
// and a small fraction of stations report offline sentinels, matching what
// the real archive looks like.
func buildDocument(rng *rand.Rand, detectors int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<VDLives>\n")

	for i := 0; i < detectors; i++ {
		vdid := fmt.Sprintf("VD-N1-N-%d.%d", 10+i, i%10)
		offline := rng.Intn(20) == 0
		laneCount := 1 + i%3

		b.WriteString("  <VDLive>\n")
		fmt.Fprintf(&b, "    <VDID>%s</VDID>\n", vdid)
		b.WriteString("    <LinkFlows><LinkFlow>\n      <Lanes>\n")
		for lane := 0; lane < laneCount; lane++ {
			writeLane(&b, rng, lane, offline)
		}
		b.WriteString("      </Lanes>\n    </LinkFlow></LinkFlows>\n  </VDLive>\n")
	}

	b.WriteString("</VDLives>\n")
	return b.String()
}

func writeLane(b *strings.Builder, rng *rand.Rand, lane int, offline bool) {
	speed := fmt.Sprintf("%.1f", 40+rng.Float64()*70)
	occupancy := fmt.Sprintf("%d", rng.Intn(40))
	if offline {
		speed, occupancy = "-99", "-99"
	}

	fmt.Fprintf(b, "        <Lane>\n          <LaneID>%d</LaneID>\n", lane)
	fmt.Fprintf(b, "          <Speed>%s</Speed>\n          <Occupancy>%s</Occupancy>\n", speed, occupancy)
	b.WriteString("          <Vehicles>\n")
	for _, vt := range classTypes {
		volume := fmt.Sprintf("%d", rng.Intn(30))
		vspeed := fmt.Sprintf("%.1f", 40+rng.Float64()*70)
		if offline {
			volume, vspeed = "-99", "-99"
		}
		fmt.Fprintf(b, "            <Vehicle><VehicleType>%s</VehicleType><Volume>%s</Volume><Speed>%s</Speed></Vehicle>\n",
			vt, volume, vspeed)
	}
	b.WriteString("          </Vehicles>\n        </Lane>\n")
}

func writeCompressed(path, doc string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(doc)); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
