package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"staybook/internal/domain/shared/events"
)

type sampleEvent struct {
	StayID string `json:"stay_id"`
	At     time.Time
}

func (e sampleEvent) EventName() string     { return "reservation.booked" }
func (e sampleEvent) AggregateID() string   { return "r1" }
func (e sampleEvent) OccurredAt() time.Time { return e.At }

type recordingBox struct {
	records []EventRecord
}

func (b *recordingBox) Add(_ context.Context, rec EventRecord) error {
	b.records = append(b.records, rec)
	return nil
}

func (b *recordingBox) Flush(context.Context) error { return nil }

func TestTopicFor(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "reservation.booked", "reservation.events.v1"},
		{"dev.", "stay.listed", "dev.stay.events.v1"},
		{"", "plain", "plain.events.v1"},
	}
	for _, tt := range tests {
		if got := TopicFor(tt.prefix, tt.name); got != tt.want {
			t.Errorf("TopicFor(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestRecordDomainEventsAndEnvelope(t *testing.T) {
	box := &recordingBox{}
	enc := JSONEventEncoder{IDGenerator: func() string { return "evt-1" }}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := RecordDomainEvents(context.Background(), box, enc, []events.DomainEvent{sampleEvent{StayID: "s1", At: at}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(box.records) != 1 || box.records[0].ID != "evt-1" || box.records[0].Aggregate != "r1" {
		t.Fatalf("unexpected records: %+v", box.records)
	}

	payload, headers, err := Envelope(box.records[0], "")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if headers["content-type"] != "application/cloudevents+json" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["type"] != "reservation.booked.v1" || doc["source"] != "app://staybook" {
		t.Fatalf("unexpected envelope: %v", doc)
	}
	data, _ := doc["data"].(map[string]any)
	if data["stay_id"] != "s1" {
		t.Fatalf("payload not embedded: %v", doc["data"])
	}
}
