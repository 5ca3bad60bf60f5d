package server

import (
	"context"
	"testing"
	"time"
)

func TestEventDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewEventDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "project-1")
	defer cleanup()

	event := ProjectEvent{
		ProjectID: "project-1",
		EventType: EventMessagesSynced,
		Languages: []string{"en-US", "zh-CN"},
		Timestamp: time.Now().UTC(),
	}
	dispatcher.Publish(event)

	select {
	case received := <-stream:
		if received.EventType != EventMessagesSynced {
			t.Fatalf("expected event type %s, got %s", EventMessagesSynced, received.EventType)
		}
		if len(received.Languages) != 2 {
			t.Fatalf("expected 2 languages, got %d", len(received.Languages))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected project event within deadline")
	}
}

func TestEventDispatcherIsolatedByProject(t *testing.T) {
	dispatcher := NewEventDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otherCtx, otherCancel := context.WithCancel(context.Background())
	defer otherCancel()

	projectStream, cleanup := dispatcher.Subscribe(ctx, "project-2")
	defer cleanup()

	otherStream, otherCleanup := dispatcher.Subscribe(otherCtx, "project-3")
	defer otherCleanup()

	dispatcher.Publish(ProjectEvent{
		ProjectID: "project-3",
		EventType: EventMessageEdited,
		Keys:      []string{"hello"},
		Timestamp: time.Now().UTC(),
	})

	select {
	case <-projectStream:
		t.Fatal("did not expect project event for unrelated project")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case event := <-otherStream:
		if event.ProjectID != "project-3" {
			t.Fatalf("expected project-3, received %s", event.ProjectID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected project event for subscribed project")
	}
}

func TestEventDispatcherUnsubscribesOnContextEnd(t *testing.T) {
	dispatcher := NewEventDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	_, cleanup := dispatcher.Subscribe(ctx, "project-4")
	defer cleanup()
	if dispatcher.subscriberCount("project-4") != 1 {
		t.Fatalf("expected one subscriber")
	}

	cancel()
	deadline := time.Now().Add(500 * time.Millisecond)
	for dispatcher.subscriberCount("project-4") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected subscriber to be removed after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventDispatcherEmptyProjectReturnsClosedStream(t *testing.T) {
	dispatcher := NewEventDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background(), "")
	defer cleanup()

	if _, ok := <-stream; ok {
		t.Fatal("expected closed stream for empty project id")
	}
}

func (d *EventDispatcher) subscriberCount(projectID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[projectID])
}
