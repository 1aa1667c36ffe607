package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event phases fired by the cart. Event names are "{instanceName}.{phase}".
const (
	EventCreated  = "created"
	EventAdding   = "adding"
	EventAdded    = "added"
	EventUpdating = "updating"
	EventUpdated  = "updated"
	EventRemoving = "removing"
	EventRemoved  = "removed"
	EventClearing = "clearing"
	EventCleared  = "cleared"
)

// DispatchResult is the outcome of dispatching a lifecycle event.
type DispatchResult int

const (
	// Proceed lets the mutation continue.
	Proceed DispatchResult = iota

	// Cancel vetoes the mutation before any store write. A vetoed mutation
	// is a normal no-op outcome, not an error.
	Cancel
)

// Event is a cart lifecycle notification. The "-ing" phases are dispatched
// before the store write and may be vetoed; the "-ed" phases after it.
type Event struct {
	ID         string
	Name       string
	OccurredAt time.Time
	Payload    any
}

// Dispatcher receives lifecycle events synchronously. Returning Cancel from
// a vetoable phase aborts the mutation with no state change; dispatch is a
// cooperative cancellation point, not a failure path.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) DispatchResult
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, event Event) DispatchResult

// Dispatch calls the wrapped function.
func (f DispatcherFunc) Dispatch(ctx context.Context, event Event) DispatchResult {
	return f(ctx, event)
}

// NopDispatcher discards all events and always proceeds.
type NopDispatcher struct{}

// Dispatch always returns Proceed.
func (NopDispatcher) Dispatch(_ context.Context, _ Event) DispatchResult {
	return Proceed
}

// ObserverChain dispatches to observers in registration order and
// short-circuits on the first Cancel.
type ObserverChain struct {
	observers []Dispatcher
}

// NewObserverChain creates a chain over the given observers.
func NewObserverChain(observers ...Dispatcher) *ObserverChain {
	return &ObserverChain{observers: observers}
}

// Register appends an observer to the chain.
func (oc *ObserverChain) Register(observer Dispatcher) {
	oc.observers = append(oc.observers, observer)
}

// Dispatch forwards the event to every observer until one cancels.
func (oc *ObserverChain) Dispatch(ctx context.Context, event Event) DispatchResult {
	for _, observer := range oc.observers {
		if observer.Dispatch(ctx, event) == Cancel {
			return Cancel
		}
	}

	return Proceed
}

func buildEvent(instanceName, phase string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       instanceName + "." + phase,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
}
