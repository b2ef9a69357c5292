package events

import (
	"context"
	"sync"

	"github.com/preclinical-platform/platform/pkg/common/logger"
)

// Handler consumes a published event. Errors are logged by the bus and
// never surfaced to the publisher.
type Handler func(ctx context.Context, evt Event) error

type subscriber struct {
	name    string
	handler Handler
}

// Bus is an in-process synchronous event bus. Publish fans out to every
// subscriber on the calling goroutine; there is no durability and no retry.
// Subscriber failures must never roll back the write that triggered the
// event, so they are contained here.
type Bus struct {
	mu          sync.RWMutex
	subscribers []subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a named handler. The name identifies the capability
// (audit, notify, stream) in failure logs.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, handler: h})
}

func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(ctx, sub, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(map[string]interface{}{
				"subscriber": sub.name,
				"event_type": evt.EventType(),
			}).Errorf("subscriber panicked: %v", r)
		}
	}()
	if err := sub.handler(ctx, evt); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"subscriber": sub.name,
			"event_type": evt.EventType(),
		}).Error("subscriber failed to process event")
	}
}
