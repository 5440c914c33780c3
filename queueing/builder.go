package queueing

import (
	"log"
	"strings"

	"github.com/sarchlab/asyncqueue/hooking"
	"github.com/sarchlab/asyncqueue/idgen"
)

// Builder can build queues.
type Builder[T any] struct {
	capacity     int
	order        Order
	ids          idgen.Generator
	panicHandler hooking.PanicHandler
}

// MakeBuilder creates a builder with default parameters: an unbounded FIFO
// queue whose wake-handles are numbered sequentially.
func MakeBuilder[T any]() Builder[T] {
	return Builder[T]{
		order: FIFO,
	}
}

// WithCapacity sets the maximum number of items the queue holds. Zero means
// unbounded.
func (b Builder[T]) WithCapacity(capacity int) Builder[T] {
	b.capacity = capacity
	return b
}

// WithOrder sets the order in which items are returned.
func (b Builder[T]) WithOrder(order Order) Builder[T] {
	b.order = order
	return b
}

// WithIDGenerator sets the generator that names wake-handles.
func (b Builder[T]) WithIDGenerator(ids idgen.Generator) Builder[T] {
	b.ids = ids
	return b
}

// WithPanicHandler sets the handler that receives panics recovered from
// hooks.
func (b Builder[T]) WithPanicHandler(handler hooking.PanicHandler) Builder[T] {
	b.panicHandler = handler
	return b
}

// Build creates a new queue with the given name.
func (b Builder[T]) Build(name string) *Queue[T] {
	nameMustBeValid(name)

	if b.capacity < 0 {
		log.Panicf("queue %s: capacity must not be negative, got %d",
			name, b.capacity)
	}

	if b.order != FIFO && b.order != LIFO {
		log.Panicf("queue %s: unknown order %d", name, int(b.order))
	}

	ids := b.ids
	if ids == nil {
		ids = idgen.NewSequential()
	}

	q := &Queue[T]{
		name:     name,
		order:    b.order,
		ids:      ids,
		capacity: b.capacity,
		items:    buffer[T]{order: b.order},
	}

	q.SetPanicHandler(b.panicHandler)

	return q
}

// NewQueue creates a queue named "Queue" with the given capacity and order.
func NewQueue[T any](capacity int, order Order) *Queue[T] {
	return MakeBuilder[T]().
		WithCapacity(capacity).
		WithOrder(order).
		Build("Queue")
}

func nameMustBeValid(name string) {
	if name == "" {
		log.Panic("queue name must not be empty")
	}

	if strings.ContainsAny(name, " \t\n/") {
		log.Panicf("queue name %q must not contain spaces or slashes", name)
	}
}
