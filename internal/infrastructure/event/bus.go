package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// ErrBusStopped is returned by Publish after Stop on an asynchronous bus.
var ErrBusStopped = errors.New("event: bus stopped")

// HandlerObserver is told the outcome of every handler invocation.
type HandlerObserver func(ctx context.Context, handler string, err error)

// InMemoryEventBus implements EventBus with in-memory pub/sub. Handler
// errors and panics are logged and never reach the publisher.
//
// By default Publish dispatches synchronously. WithAsync makes Publish
// enqueue events for a single dispatch goroutine, started by Start and
// drained by Stop, so slow subscribers do not hold up the publisher.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	observer HandlerObserver

	queue   chan queued
	running atomic.Bool
	mu      sync.RWMutex // guards queue close against concurrent Publish
	wg      sync.WaitGroup
}

type queued struct {
	ctx   context.Context
	event shared.DomainEvent
}

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithAsync enables asynchronous dispatch with a queue of size buffer.
func WithAsync(buffer int) BusOption {
	return func(b *InMemoryEventBus) {
		if buffer < 1 {
			buffer = 1
		}
		b.queue = make(chan queued, buffer)
	}
}

// WithHandlerObserver reports every handler outcome to observer.
func WithHandlerObserver(observer HandlerObserver) BusOption {
	return func(b *InMemoryEventBus) { b.observer = observer }
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers events to their handlers.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.queue == nil {
		for _, e := range events {
			b.dispatch(ctx, e)
		}
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running.Load() {
		return ErrBusStopped
	}
	// The queued context outlives the publisher's request.
	detached := context.WithoutCancel(ctx)
	for _, e := range events {
		select {
		case b.queue <- queued{ctx: detached, event: e}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler for specific event types. With no event
// types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.String("handler", HandlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed", zap.String("handler", HandlerName(handler)))
}

// Start starts the dispatch goroutine of an asynchronous bus.
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return nil
	}
	if b.queue != nil {
		b.wg.Add(1)
		go b.loop()
	}
	b.logger.Info("event bus started", zap.Bool("async", b.queue != nil))
	return nil
}

// Stop stops accepting events and waits for queued events to be handled
// or for ctx to expire.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	if !b.running.CompareAndSwap(true, false) {
		return nil
	}
	if b.queue != nil {
		b.mu.Lock()
		close(b.queue)
		b.mu.Unlock()

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("event bus drain: %w", ctx.Err())
		}
	}
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InMemoryEventBus) loop() {
	defer b.wg.Done()
	for q := range b.queue {
		b.dispatch(q.ctx, q.event)
	}
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, event shared.DomainEvent) {
	for _, handler := range b.registry.GetHandlers(event.EventType()) {
		err := b.dispatchToHandler(ctx, handler, event)
		if b.observer != nil {
			b.observer(ctx, HandlerName(handler), err)
		}
		if err != nil {
			logger.L(ctx, b.logger).Error("handler failed to process event",
				zap.String("handler", HandlerName(handler)),
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

// dispatchToHandler runs handler, converting a panic into an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
