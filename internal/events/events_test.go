package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/cario/internal/models"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysBySession(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)
	ev := models.Event{Type: models.EventRideBooked, SessionID: "s1", Status: models.StatusBooked}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "s1" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	var got models.Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != models.EventRideBooked || got.Status != models.StatusBooked {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestKafkaPublisherWrapsError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: boom})
	if err := p.Publish(context.Background(), models.Event{SessionID: "s1"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestFanoutContinuesPastFailingSink(t *testing.T) {
	var seen []string
	failing := SinkFunc(func(context.Context, models.Event) error { seen = append(seen, "a"); return errors.New("nope") })
	ok := SinkFunc(func(context.Context, models.Event) error { seen = append(seen, "b"); return nil })
	f := NewFanout(nil, failing, nil, ok)
	if err := f.Publish(context.Background(), models.Event{Type: models.EventLogin}); err != nil {
		t.Fatalf("fanout should swallow sink errors, got %v", err)
	}
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("unexpected order %v", seen)
	}
}
