package queueing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sarchlab/asyncqueue/hooking"
	"github.com/sarchlab/asyncqueue/idgen"
)

// Order determines which item a queue returns next.
type Order int

const (
	// FIFO returns the oldest item first.
	FIFO Order = iota
	// LIFO returns the most recently pushed item first.
	LIFO
)

func (o Order) String() string {
	switch o {
	case FIFO:
		return "FIFO"
	case LIFO:
		return "LIFO"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder parses "fifo" or "lifo", ignoring case.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	default:
		return 0, fmt.Errorf("queueing: unknown order %q", s)
	}
}

// Queue is a bounded, order-configurable queue whose Get and Push block until
// the queue can serve them. It is safe for concurrent use.
type Queue[T any] struct {
	hooking.HookableBase[T]

	name  string
	order Order
	ids   idgen.Generator

	mu        sync.Mutex
	capacity  int
	items     buffer[T]
	consumers waiterList[T]
	producers waiterList[T]
}

// Name returns the name of the queue.
func (q *Queue[T]) Name() string {
	return q.name
}

// Order returns the order the queue was built with.
func (q *Queue[T]) Order() Order {
	return q.order
}

// Capacity returns the current capacity. Zero means unbounded.
func (q *Queue[T]) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.capacity
}

// Size returns the number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.len()
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// IsFull reports whether a Push would block. An unbounded queue is never
// full.
func (q *Queue[T]) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.isFull()
}

func (q *Queue[T]) isFull() bool {
	return q.capacity != 0 && q.items.len() >= q.capacity
}

// NumWaitingConsumers returns the number of blocked Get calls.
func (q *Queue[T]) NumWaitingConsumers() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.consumers.len()
}

// NumWaitingProducers returns the number of blocked Push calls.
func (q *Queue[T]) NumWaitingProducers() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.producers.len()
}

// Peek returns the item the next Get would return, without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.peek()
}

// Snapshot returns a copy of the queued items, the next item to be returned
// first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.snapshot()
}

// On registers fn to be called whenever the queue reports the event at pos.
// Registering the same function twice makes it run twice.
func (q *Queue[T]) On(pos hooking.HookPos, fn func(ctx hooking.HookCtx[T])) {
	q.AcceptHookAt(pos, hooking.HookFunc[T](fn))
}

// Get removes and returns the head item, blocking while the queue is empty.
// Blocked calls are served in the order they were issued: each pushed item
// goes straight to the longest waiting Get.
//
// If ctx is done before an item arrives, Get removes its own wake-handle and
// returns an error: one matching ErrTimeout when the deadline passed, or
// ctx.Err() otherwise. The queue is not modified in that case.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	q.mu.Lock()

	if q.items.len() > 0 {
		item, events := q.removeHead()
		q.mu.Unlock()

		q.emit(events)

		return item, nil
	}

	w := q.enlist(&q.consumers)
	q.mu.Unlock()

	err := q.await(ctx, w, &q.consumers)
	if err != nil {
		var zero T
		return zero, err
	}

	q.emit(w.events)

	return w.item, nil
}

// GetTimeout is Get bounded by a timeout. A non-positive timeout waits
// forever.
func (q *Queue[T]) GetTimeout(timeout time.Duration) (T, error) {
	ctx, cancel := timeoutContext(timeout)
	defer cancel()

	return q.Get(ctx)
}

// GetNowait removes and returns the head item if there is one. It never
// blocks; on an empty queue it returns false, wakes nobody and reports no
// event.
func (q *Queue[T]) GetNowait() (T, bool) {
	q.mu.Lock()

	if q.items.len() == 0 {
		q.mu.Unlock()

		var zero T
		return zero, false
	}

	item, events := q.removeHead()
	q.mu.Unlock()

	q.emit(events)

	return item, true
}

// Push inserts item, blocking while the queue is full. Blocked calls are
// served in the order they were issued: each freed slot is filled with the
// item of the longest waiting Push.
//
// If ctx is done first, Push removes its own wake-handle and returns an
// error as Get does. If the queue is cleared while Push is blocked, Push
// returns ErrQueueCleared without inserting.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	q.mu.Lock()

	if !q.isFull() {
		events := q.insert(item)
		q.mu.Unlock()

		q.emit(events)

		return nil
	}

	w := q.enlist(&q.producers)
	w.item = item
	q.mu.Unlock()

	err := q.await(ctx, w, &q.producers)
	if err != nil {
		return err
	}

	if w.cleared {
		return ErrQueueCleared
	}

	q.emit(w.events)

	return nil
}

// PushTimeout is Push bounded by a timeout. A non-positive timeout waits
// forever.
func (q *Queue[T]) PushTimeout(item T, timeout time.Duration) error {
	ctx, cancel := timeoutContext(timeout)
	defer cancel()

	return q.Push(ctx, item)
}

// PushNowait inserts item if there is a free slot and returns ErrQueueFull
// otherwise. It never blocks.
func (q *Queue[T]) PushNowait(item T) error {
	q.mu.Lock()

	if q.isFull() {
		q.mu.Unlock()
		return ErrQueueFull
	}

	events := q.insert(item)
	q.mu.Unlock()

	q.emit(events)

	return nil
}

// Clear discards every queued item. Blocked Push calls are released and fail
// with ErrQueueCleared. Blocked Get calls keep waiting for the next push.
func (q *Queue[T]) Clear() {
	q.mu.Lock()

	for _, w := range q.producers.drain() {
		w.cleared = true
		w.wake()
	}

	q.items.clear()
	q.mu.Unlock()

	q.emit([]hooking.HookCtx[T]{{Pos: hooking.HookPosQueueCleared}})
}

// SetSize changes the capacity of the queue. Zero makes the queue unbounded.
//
// Shrinking below the number of queued items fails with ErrSizeError unless
// forceResize is set. With forceResize, the capacity changes regardless and,
// if truncateItems is also set, only the newSize items closest to the head
// are kept. Discarded items are dropped silently.
//
// The items of blocked Push calls fill the slots the new capacity frees, in
// the order the calls were issued.
func (q *Queue[T]) SetSize(newSize int, forceResize, truncateItems bool) error {
	if newSize < 0 {
		return fmt.Errorf("%w: size must not be negative, got %d",
			ErrSizeError, newSize)
	}

	q.mu.Lock()

	if !forceResize && newSize < q.items.len() {
		size := q.items.len()
		q.mu.Unlock()

		return fmt.Errorf("%w: size %d is smaller than the %d queued items",
			ErrSizeError, newSize, size)
	}

	if forceResize && truncateItems {
		q.items.truncate(newSize)
	}

	q.capacity = newSize
	q.admitProducers()
	q.mu.Unlock()

	q.emit([]hooking.HookCtx[T]{{Pos: hooking.HookPosSizeChanged}})

	return nil
}

// enlist registers a new wake-handle at the back of list. The queue lock
// must be held.
func (q *Queue[T]) enlist(list *waiterList[T]) *waiter[T] {
	w := &waiter[T]{
		id:    q.ids.Generate(),
		ready: make(chan struct{}),
	}

	list.pushBack(w)

	return w
}

// await blocks until w is served or ctx is done. The queue lock must not be
// held. A waiter that was served at the same time its context ended counts
// as served, so the hand-off it received is not lost.
func (q *Queue[T]) await(
	ctx context.Context,
	w *waiter[T],
	list *waiterList[T],
) error {
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	removed := list.remove(w)
	q.mu.Unlock()

	if !removed {
		return nil
	}

	return waitErr(ctx)
}

// removeHead pops the head item and fills the freed slot with the item of
// the longest waiting producer. The queue lock must be held.
func (q *Queue[T]) removeHead() (T, []hooking.HookCtx[T]) {
	item, _ := q.items.pop()

	events := []hooking.HookCtx[T]{
		{Pos: hooking.HookPosItemRemoved, Item: item},
	}

	if q.items.len() == 0 {
		events = append(events, hooking.HookCtx[T]{Pos: hooking.HookPosEmpty})
	}

	q.admitProducers()

	return item, events
}

// insert adds item, or hands it to the longest waiting consumer if there is
// one, and returns the events of the push. The queue lock must be held.
func (q *Queue[T]) insert(item T) []hooking.HookCtx[T] {
	w := q.consumers.popFront()
	if w == nil {
		q.items.insert(item)
		return q.pushEvents(item, q.items.len())
	}

	// Consumers only wait on an empty buffer, so the item passes through
	// it without being stored.
	events := q.pushEvents(item, q.items.len()+1)

	w.item = item
	w.events = []hooking.HookCtx[T]{
		{Pos: hooking.HookPosItemRemoved, Item: item},
	}

	if q.items.len() == 0 {
		w.events = append(w.events, hooking.HookCtx[T]{Pos: hooking.HookPosEmpty})
	}

	w.wake()

	return events
}

// pushEvents returns the events of pushing item into a buffer that then
// holds size items.
func (q *Queue[T]) pushEvents(item T, size int) []hooking.HookCtx[T] {
	var events []hooking.HookCtx[T]
	if q.capacity != 0 && size >= q.capacity {
		events = append(events, hooking.HookCtx[T]{Pos: hooking.HookPosFull})
	}

	return append(events,
		hooking.HookCtx[T]{Pos: hooking.HookPosItemPushed, Item: item})
}

// admitProducers inserts the items of waiting producers, longest waiting
// first, while the queue has free slots. The queue lock must be held.
func (q *Queue[T]) admitProducers() {
	for q.producers.len() > 0 && !q.isFull() {
		w := q.producers.popFront()
		if w.cleared {
			// Released by Clear already.
			continue
		}

		w.events = q.insert(w.item)
		w.wake()
	}
}

func (q *Queue[T]) emit(events []hooking.HookCtx[T]) {
	for _, ctx := range events {
		ctx.Domain = q
		q.InvokeHook(ctx)
	}
}

func timeoutContext(
	timeout time.Duration,
) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}

	return context.WithTimeout(context.Background(), timeout)
}
