package sink

import (
	"context"
	"log/slog"

	"duo-chat/domain/event"
)

// StreamSink buffers events for one connected subscriber. The transport end
// (an SSE handler, a test) drains Events; when the buffer is full the event
// is dropped rather than blocking the producer, slow consumers only hurt
// themselves.
type StreamSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
}

func NewStreamSink(log *slog.Logger, bufferSize int) *StreamSink {
	return &StreamSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume implements the EventSink interface.
func (s *StreamSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		s.log.Warn("subscriber too slow, dropping event")
		return ctx.Err()
	}
}
