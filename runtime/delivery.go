package runtime

import (
	"context"
	"log/slog"
	"time"

	"yalla-chat/contract"
	"yalla-chat/domain/event"
)

// DeliveryWorker fans persisted domain events out to the recipients'
// live connections through the presence registry.
//
// Delivery is best-effort with no guarantees regarding retries or
// durability: an offline recipient simply gets nothing pushed, the data
// stays retrievable through conversation history. DeliveryWorker never
// blocks the relay.
type DeliveryWorker struct {
	log         *slog.Logger
	presence    contract.IPresence
	events      <-chan event.DomainEvent
	sinkTimeout time.Duration
}

func NewDeliveryWorker(log *slog.Logger, presence contract.IPresence,
	events <-chan event.DomainEvent, sinkTimeout time.Duration) *DeliveryWorker {
	return &DeliveryWorker{
		log:         log,
		presence:    presence,
		events:      events,
		sinkTimeout: sinkTimeout,
	}
}

func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping delivery")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed")
				return nil
			}
			w.fanout(ctx, evt)
		}
	}
}

// fanout pushes one event to every live connection of every recipient.
// A slow sink only loses its own push.
func (w *DeliveryWorker) fanout(ctx context.Context, evt event.DomainEvent) {
	for _, userID := range evt.RecipientIDs() {
		sinks := w.presence.SinksFor(userID)
		if len(sinks) == 0 {
			continue
		}
		for _, sink := range sinks {
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Debug("live push dropped",
					"event", evt.EventName(),
					"user_id", userID,
					"error", err)
			}
			cancel()
		}
	}
}
