package notifications_test

import (
	"testing"
	"time"

	"montage/internal/notifications"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := notifications.NewBus()
	sub := bus.Subscribe(4)
	defer sub.Cancel()

	bus.Publish("proj-1", notifications.EventJobStarted, notifications.Payload{"jobId": int64(1)})

	select {
	case msg := <-sub.C():
		if msg.ProjectID != "proj-1" || msg.Event != notifications.EventJobStarted {
			t.Fatalf("unexpected message: %#v", msg)
		}
		if msg.Payload["jobId"] != int64(1) {
			t.Fatalf("unexpected payload: %#v", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected message delivery")
	}
}

func TestSlowSubscriberNeverBlocksPublisher(t *testing.T) {
	bus := notifications.NewBus()
	sub := bus.Subscribe(2)
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish("proj-1", notifications.EventJobProgress, notifications.Payload{"progress": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}

	// The newest message survives the overflow eviction.
	var last notifications.Message
	for {
		select {
		case msg := <-sub.C():
			last = msg
			continue
		default:
		}
		break
	}
	if last.Payload["progress"] != 99 {
		t.Fatalf("expected most recent progress retained, got %#v", last.Payload)
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	bus := notifications.NewBus()
	sub := bus.Subscribe(1)
	if bus.SubscriberCount() != 1 {
		t.Fatalf("expected one subscriber, got %d", bus.SubscriberCount())
	}
	sub.Cancel()
	if bus.SubscriberCount() != 0 {
		t.Fatalf("expected zero subscribers, got %d", bus.SubscriberCount())
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel after cancel")
	}
	// Cancel is idempotent.
	sub.Cancel()
}
