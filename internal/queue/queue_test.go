package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	if err := q.Publish(ctx, Message{Type: "mark", Body: []byte(`{"session_id":1}`)}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case msg := <-msgs:
		if msg.Type != "mark" || string(msg.Body) != `{"session_id":1}` {
			t.Errorf("unexpected message: %+v", msg)
		}
		if msg.ID == "" {
			t.Error("publish did not assign an id")
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestInMemoryPublishCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	if err := q.Publish(ctx, Message{Type: "mark"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	cancel()
	// Queue is full and the context is gone; publish must not block.
	if err := q.Publish(ctx, Message{Type: "mark"}); err == nil {
		t.Error("expected context error on full queue")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	in := Message{ID: "abc", Type: "mark", Body: []byte(`{"course":"CS|101"}`)}
	out := deserialize(serialize(in))
	if out.ID != in.ID || out.Type != in.Type || string(out.Body) != string(in.Body) {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	out := deserialize("not-a-message")
	if string(out.Body) != "not-a-message" {
		t.Errorf("malformed payload: %+v", out)
	}
}
