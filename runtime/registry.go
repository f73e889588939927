// Package runtime handles event propagation towards connected subscribers.
// It orchestrates delivery without containing business logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"duo-chat/contract"
	"duo-chat/domain/event"
)

// Registry tracks the active sink of each connected participant and fans
// domain events out to their recipients. Participants without a sink simply
// miss the event: delivery guarantees belong to the transport, not to the
// core.
type Registry struct {
	mu              sync.RWMutex
	sinks           map[string]contract.EventSink
	log             *slog.Logger
	deliveryTimeout time.Duration
}

func NewRegistry(log *slog.Logger, deliveryTimeout time.Duration) *Registry {
	return &Registry{
		sinks:           make(map[string]contract.EventSink),
		log:             log,
		deliveryTimeout: deliveryTimeout,
	}
}

// Subscribe registers a participant's active connection. A reconnect simply
// replaces the previous sink.
func (r *Registry) Subscribe(participantID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[participantID] = sink
}

// Unsubscribe removes the participant's sink so no further events are
// delivered to a dead connection.
func (r *Registry) Unsubscribe(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, participantID)
}

// UnsubscribeSink removes the participant's entry only while it still points
// at the given sink. A reconnect replaces the sink, and the old connection's
// teardown must not take the replacement down with it.
func (r *Registry) UnsubscribeSink(participantID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sinks[participantID]; ok && current == sink {
		delete(r.sinks, participantID)
	}
}

// Sink returns the participant's active sink, if any.
func (r *Registry) Sink(participantID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[participantID]
	return sink, ok
}

// Broadcast delivers the event to every recipient that currently holds an
// active sink. Each delivery is bounded by the configured timeout so one
// stuck subscriber cannot stall the operation that produced the event.
func (r *Registry) Broadcast(ctx context.Context, e event.DomainEvent) {
	type target struct {
		participantID string
		sink          contract.EventSink
	}

	r.mu.RLock()
	var targets []target
	for _, participantID := range e.Recipients() {
		if sink, ok := r.sinks[participantID]; ok {
			targets = append(targets, target{participantID: participantID, sink: sink})
		}
	}
	r.mu.RUnlock()

	for _, t := range targets {
		deliveryCtx, cancel := context.WithTimeout(ctx, r.deliveryTimeout)
		if err := t.sink.Consume(deliveryCtx, e); err != nil {
			r.log.Warn("event delivery failed",
				"participant_id", t.participantID,
				"error", err)
		}
		cancel()
	}
}
