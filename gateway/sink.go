package gateway

import (
	"context"

	"yalla-chat/domain/event"
)

// Sink adapts a live websocket connection to the delivery pipeline.
// Encoding failures and unknown event types are swallowed: a broken
// push must never stall the pipeline.
type Sink struct {
	conn *Connection
}

func NewSink(conn *Connection) *Sink {
	return &Sink{conn: conn}
}

func (s *Sink) Consume(_ context.Context, e event.DomainEvent) error {
	payload := encodeDomainEvent(e)
	if payload == nil {
		return nil
	}
	return s.conn.Send(payload)
}
