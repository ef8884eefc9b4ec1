package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taixiu/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange EventType = "balance_change"
	EventTypeUserCreated   EventType = "user_created"
	EventTypeBetPlaced     EventType = "bet_placed"
	EventTypeRoundOpened   EventType = "round_opened"
	EventTypeRoundLocked   EventType = "round_locked"
	EventTypeRoundFinished EventType = "round_finished"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64
	OldBalance      int64
	NewBalance      int64
	TransactionType models.TransactionType
	ChangeAmount    int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new user creation
type UserCreatedEvent struct {
	TelegramID     int64
	Username       string
	InitialBalance int64
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// BetPlacedEvent represents a bet accepted into an open round
type BetPlacedEvent struct {
	BetID       int64
	RoundID     int64
	RoundNumber int64
	UserID      int64
	DisplayName string
	Side        models.Side
	Amount      int64
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// RoundOpenedEvent is emitted when a new round starts accepting bets
type RoundOpenedEvent struct {
	RoundID       int64
	RoundNumber   int64
	BettingEndsAt time.Time
}

func (e RoundOpenedEvent) Type() EventType {
	return EventTypeRoundOpened
}

// RoundLockedEvent is emitted when betting closes on a round
type RoundLockedEvent struct {
	RoundID     int64
	RoundNumber int64
}

func (e RoundLockedEvent) Type() EventType {
	return EventTypeRoundLocked
}

// RoundFinishedEvent is emitted after a round is resolved and settled
type RoundFinishedEvent struct {
	RoundID      int64
	RoundNumber  int64
	Dice         [3]int
	Total        int
	Result       models.Side
	Policy       models.ResolutionPolicy
	TotalStaked  int64
	TotalPaidOut int64
	WinnerCount  int
	LoserCount   int
}

func (e RoundFinishedEvent) Type() EventType {
	return EventTypeRoundFinished
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	ordered  map[EventType][]*orderedQueue
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		ordered:  make(map[EventType][]*orderedQueue),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds the same handler for several event types
func (b *Bus) SubscribeAll(handler Handler, eventTypes ...EventType) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

// SubscribeOrdered adds a handler that receives its events one at a time in emit order.
// The handler runs on a dedicated goroutine fed by an unbounded queue, so Emit never
// waits for it.
func (b *Bus) SubscribeOrdered(handler Handler, eventTypes ...EventType) {
	queue := newOrderedQueue(handler)
	go queue.run()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, eventType := range eventTypes {
		b.ordered[eventType] = append(b.ordered[eventType], queue)
	}

	log.WithField("eventTypes", eventTypes).Debug("Subscribed ordered handler")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	queues := make([]*orderedQueue, len(b.ordered[event.Type()]))
	copy(queues, b.ordered[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
		"orderedCount": len(queues),
	}).Debug("Emitting event to handlers")

	for _, queue := range queues {
		queue.enqueue(ctx, event)
	}

	// Handlers run asynchronously so a slow subscriber never blocks a request
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

type queuedEvent struct {
	ctx   context.Context
	event Event
}

// orderedQueue delivers events to a single handler sequentially
type orderedQueue struct {
	handler Handler
	mu      sync.Mutex
	pending []queuedEvent
	wake    chan struct{}
}

func newOrderedQueue(handler Handler) *orderedQueue {
	return &orderedQueue{
		handler: handler,
		wake:    make(chan struct{}, 1),
	}
}

func (q *orderedQueue) enqueue(ctx context.Context, event Event) {
	q.mu.Lock()
	q.pending = append(q.pending, queuedEvent{ctx: ctx, event: event})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *orderedQueue) run() {
	for range q.wake {
		for {
			q.mu.Lock()
			batch := q.pending
			q.pending = nil
			q.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, item := range batch {
				q.deliver(item)
			}
		}
	}
}

func (q *orderedQueue) deliver(item queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType": item.event.Type(),
				"panic":     r,
			}).Error("Ordered event handler panicked")
		}
	}()
	q.handler(item.ctx, item.event)
}

// TransactionalBus holds pending events coupled to a unit of work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the number of events waiting for a commit
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing pending events to main event bus")

	// Events outlive the request that committed them
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
