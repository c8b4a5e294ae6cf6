//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/vd-data-etl-service/internal/adapter/kafka"
	"github.com/couchcryptid/vd-data-etl-service/internal/config"
	"github.com/couchcryptid/vd-data-etl-service/internal/domain"
)

const testSnapshotTopic = "test-vd-snapshots"

// snapshotMessage holds one deserialized message read back from the topic.
type snapshotMessage struct {
	VDID    string            `json:"vdid"`
	Date    string            `json:"date"`
	Minute  string            `json:"minute"`
	Lanes   []domain.Lane     `json:"lanes"`
	Key     string            `json:"-"`
	Headers map[string]string `json:"-"`
}

func readSnapshot(ctx context.Context, t *testing.T, consumer *kafkago.Reader) snapshotMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from snapshot topic")

	var sm snapshotMessage
	require.NoError(t, json.Unmarshal(msg.Value, &sm), "unmarshal snapshot message")
	sm.Key = string(msg.Key)
	sm.Headers = make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		sm.Headers[h.Key] = string(h.Value)
	}
	return sm
}

// TestKafkaPublisher verifies that a minute's snapshots round-trip through a
// real broker with key, headers, and payload intact.
func TestKafkaPublisher(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSnapshotTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testSnapshotTopic,
	}

	day, err := domain.NewDaySpec("20240530", "Asia/Taipei")
	require.NoError(t, err)

	snaps := []domain.DetectorSnapshot{
		{
			VDID: "VD-N1-N-23.5",
			Slot: domain.MinuteSlot{Hour: 8, Minute: 0},
			Lanes: []domain.Lane{
				{ID: "0", Speed: "88.4", Occupancy: "12", Classes: []domain.VehicleClass{
					{Type: "S", Volume: "14", Speed: "90.1"},
				}},
			},
		},
		{
			VDID:  "VD-N1-S-23.5",
			Slot:  domain.MinuteSlot{Hour: 8, Minute: 0},
			Lanes: []domain.Lane{{ID: "0", Speed: "-99", Occupancy: "-99"}},
		},
	}

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.PublishSnapshots(ctx, day, snaps))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSnapshotTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readSnapshot(ctx, t, consumer)
	assert.Equal(t, "VD-N1-N-23.5", first.Key)
	assert.Equal(t, "VD-N1-N-23.5", first.VDID)
	assert.Equal(t, "20240530", first.Date)
	assert.Equal(t, "0800", first.Minute)
	assert.Equal(t, "20240530", first.Headers["date"])
	assert.Equal(t, "0800", first.Headers["minute"])
	require.Len(t, first.Lanes, 1)
	assert.Equal(t, "88.4", first.Lanes[0].Speed)
	require.Len(t, first.Lanes[0].Classes, 1)
	assert.Equal(t, "14", first.Lanes[0].Classes[0].Volume)

	second := readSnapshot(ctx, t, consumer)
	assert.Equal(t, "VD-N1-S-23.5", second.Key)
	assert.Equal(t, "-99", second.Lanes[0].Speed, "offline sentinel survives the round trip")
	assert.Empty(t, second.Lanes[0].Classes)
}
