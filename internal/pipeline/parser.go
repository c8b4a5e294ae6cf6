package pipeline

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// vdLiveElem mirrors one <VDLive> element of the MOTC standard document.
// Only the fields the pipeline extracts are declared; everything else in the
// element is skipped by the decoder.
type vdLiveElem struct {
	VDID      string `xml:"VDID"`
	LinkFlows []struct {
		Lanes []laneElem `xml:"Lanes>Lane"`
	} `xml:"LinkFlows>LinkFlow"`
}

type laneElem struct {
	LaneID    string        `xml:"LaneID"`
	Speed     string        `xml:"Speed"`
	Occupancy string        `xml:"Occupancy"`
	Vehicles  []vehicleElem `xml:"Vehicles>Vehicle"`
}

type vehicleElem struct {
	VehicleType string `xml:"VehicleType"`
	Volume      string `xml:"Volume"`
	Speed       string `xml:"Speed"`
}

// ParseVDLive streams one decompressed VDLive document and returns one
// snapshot per detector present, in document order. The token loop decodes
// one <VDLive> element at a time so peak memory stays bounded no matter how
// many minutes parse concurrently.
//
// A repeated VDID within the document merges into a single snapshot, lanes
// keyed by LaneID with later values overwriting earlier ones, so a minute
// yields at most one snapshot per detector by construction. Entries without
// a VDID are skipped. Any malformed markup fails the whole minute.
func ParseVDLive(r io.Reader, slot domain.MinuteSlot) ([]domain.DetectorSnapshot, error) {
	builders := make(map[string]*snapshotBuilder)
	var order []string

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: minute %s: %v", domain.ErrParse, slot.Label(), err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "VDLive" {
			continue
		}

		var el vdLiveElem
		if err := dec.DecodeElement(&el, &se); err != nil {
			return nil, fmt.Errorf("%w: minute %s: %v", domain.ErrParse, slot.Label(), err)
		}

		vdid := strings.TrimSpace(el.VDID)
		if vdid == "" {
			continue
		}

		b, ok := builders[vdid]
		if !ok {
			b = &snapshotBuilder{lanes: make(map[string]*domain.Lane)}
			builders[vdid] = b
			order = append(order, vdid)
		}
		for _, lf := range el.LinkFlows {
			for _, lane := range lf.Lanes {
				b.merge(lane)
			}
		}
	}

	snapshots := make([]domain.DetectorSnapshot, 0, len(order))
	for _, vdid := range order {
		snapshots = append(snapshots, builders[vdid].build(vdid, slot))
	}
	return snapshots, nil
}

// snapshotBuilder accumulates one detector's lanes across the document,
// preserving first-seen lane order.
type snapshotBuilder struct {
	lanes map[string]*domain.Lane
	order []string
}

func (b *snapshotBuilder) merge(el laneElem) {
	id := strings.TrimSpace(el.LaneID)
	ln, ok := b.lanes[id]
	if !ok {
		ln = &domain.Lane{ID: id}
		b.lanes[id] = ln
		b.order = append(b.order, id)
	}
	ln.Speed = strings.TrimSpace(el.Speed)
	ln.Occupancy = strings.TrimSpace(el.Occupancy)

	for _, veh := range el.Vehicles {
		vt := strings.TrimSpace(veh.VehicleType)
		if vt == "" {
			continue
		}
		cls := domain.VehicleClass{
			Type:   vt,
			Volume: strings.TrimSpace(veh.Volume),
			Speed:  strings.TrimSpace(veh.Speed),
		}
		replaced := false
		for i := range ln.Classes {
			if ln.Classes[i].Type == vt {
				ln.Classes[i] = cls
				replaced = true
				break
			}
		}
		if !replaced {
			ln.Classes = append(ln.Classes, cls)
		}
	}
}

func (b *snapshotBuilder) build(vdid string, slot domain.MinuteSlot) domain.DetectorSnapshot {
	lanes := make([]domain.Lane, 0, len(b.order))
	for _, id := range b.order {
		lanes = append(lanes, *b.lanes[id])
	}
	return domain.DetectorSnapshot{VDID: vdid, Slot: slot, Lanes: lanes}
}
