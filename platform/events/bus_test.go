package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type pingEvent struct{ BaseEvent }

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls int32
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("first")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestPublishRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var delivered int32
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}))

	bus.Publish(context.Background(), pingEvent{NewBaseEvent()})
	bus.Wait()

	if atomic.LoadInt32(&delivered) != 1 {
		t.Fatal("expected healthy handler to run despite panic in sibling")
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(nil)
	if err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type pongEvent struct{ BaseEvent }

func (pongEvent) EventName() string { return "test.pong" }

func TestSubscribeAllRoutesEveryListedEvent(t *testing.T) {
	bus := NewInMemoryBus(nil)
	seen := make(map[string]int)
	SubscribeAll(bus, HandlerFunc(func(_ context.Context, e Event) error {
		seen[e.EventName()]++
		return nil
	}), pingEvent{}, pongEvent{})

	ctx := context.Background()
	if err := bus.PublishSync(ctx, pingEvent{NewBaseEvent()}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := bus.PublishSync(ctx, pongEvent{NewBaseEvent()}); err != nil {
		t.Fatalf("pong: %v", err)
	}
	if seen["test.ping"] != 1 || seen["test.pong"] != 1 {
		t.Fatalf("unexpected deliveries: %v", seen)
	}
}
