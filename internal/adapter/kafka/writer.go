// Package kafka publishes parsed detector snapshots to a Kafka topic for
// consumers that want the minute feed without scraping the archive themselves.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/vd-data-etl-service/internal/config"
	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

// Writer produces snapshot messages to a Kafka topic.
// It implements pipeline.SnapshotPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshots serializes one minute's snapshots and publishes them in a
// single WriteMessages call, keyed by VDID so a detector's feed stays ordered
// within its partition.
func (w *Writer) PublishSnapshots(ctx context.Context, day domain.DaySpec, snaps []domain.DetectorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snaps))
	for i := range snaps {
		msg, err := serializeToMessage(day, snaps[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// snapshotRecord is the wire form of one detector-minute.
type snapshotRecord struct {
	VDID   string        `json:"vdid"`
	Date   string        `json:"date"`
	Minute string        `json:"minute"`
	Lanes  []domain.Lane `json:"lanes"`
}

// serializeToMessage marshals a DetectorSnapshot into a Kafka message.
func serializeToMessage(day domain.DaySpec, snap domain.DetectorSnapshot) (kafkago.Message, error) {
	rec := snapshotRecord{
		VDID:   snap.VDID,
		Date:   day.Label(),
		Minute: snap.Slot.Label(),
		Lanes:  snap.Lanes,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.VDID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "date", Value: []byte(day.Label())},
			{Key: "minute", Value: []byte(snap.Slot.Label())},
		},
	}, nil
}
