//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"duo-chat/domain/event"
)

// EventSink is one subscriber's delivery channel. Implementations decide how
// far the event travels (in-process buffer, SSE stream, test capture).
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// INotifier fans events out to the sinks of their recipients. Delivery is
// best-effort: a missing or slow subscriber never fails the operation that
// produced the event.
type INotifier interface {
	Broadcast(ctx context.Context, e event.DomainEvent)
}

// IRegistry tracks which participants currently hold an active sink.
// UnsubscribeSink only removes the entry while it still points at the given
// sink, so a stale connection cannot tear down its replacement.
type IRegistry interface {
	INotifier
	Subscribe(participantID string, sink EventSink)
	Unsubscribe(participantID string)
	UnsubscribeSink(participantID string, sink EventSink)
}
