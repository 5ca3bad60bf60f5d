package server

import (
	"context"
	"sync"
	"time"
)

const (
	EventMessagesSynced   = "messages-synced"
	EventMessagesImported = "messages-imported"
	EventMessageEdited    = "message-edited"
	EventMessagesRemoved  = "messages-removed"
	EventProjectCleared   = "project-cleared"
	EventProjectRemoved   = "project-removed"
	eventHeartbeat        = "heartbeat"
	eventSourceBackend    = "lexicon-backend"
)

// ProjectEvent announces a change to the stored messages of one project.
type ProjectEvent struct {
	ProjectID string
	EventType string
	Languages []string
	Keys      []string
	Timestamp time.Time
}

// EventDispatcher fans project events out to subscribed streams.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
}

type eventSubscriber struct {
	id     int64
	stream chan ProjectEvent
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[string]map[int64]*eventSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for projectID until ctx ends or cleanup runs.
func (d *EventDispatcher) Subscribe(ctx context.Context, projectID string) (<-chan ProjectEvent, func()) {
	if projectID == "" {
		ch := make(chan ProjectEvent)
		close(ch)
		return ch, func() {}
	}
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan ProjectEvent, d.bufferSize),
	}
	d.registerSubscriber(projectID, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(projectID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers event to every subscriber of its project. Slow subscribers miss events.
func (d *EventDispatcher) Publish(event ProjectEvent) {
	if d == nil || event.ProjectID == "" || event.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.ProjectID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*eventSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *EventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *EventDispatcher) registerSubscriber(projectID string, subscriber *eventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[projectID]; !ok {
		d.subscribers[projectID] = make(map[int64]*eventSubscriber)
	}
	d.subscribers[projectID][subscriber.id] = subscriber
}

func (d *EventDispatcher) unregisterSubscriber(projectID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[projectID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, projectID)
		}
	}
	d.mu.Unlock()
}
