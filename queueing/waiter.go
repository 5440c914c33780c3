package queueing

import "github.com/sarchlab/asyncqueue/hooking"

// A waiter is the wake-handle of one blocked Get or Push. Whoever removes
// the waiter from its list serves it under the queue lock and then closes
// ready, exactly once.
//
// A consumer waiter is served by receiving item. A producer waiter carries
// the item it wants to push and is served once that item is in the buffer.
// events holds what the served call reports after it wakes.
type waiter[T any] struct {
	id    string
	ready chan struct{}

	item   T
	events []hooking.HookCtx[T]

	// cleared is set by Clear on producer waiters that are released without
	// inserting their item.
	cleared bool
}

func (w *waiter[T]) wake() {
	close(w.ready)
}

// waiterList is a FIFO of waiters. It is guarded by the owning queue's lock.
type waiterList[T any] struct {
	waiters []*waiter[T]
}

func (l *waiterList[T]) len() int {
	return len(l.waiters)
}

func (l *waiterList[T]) pushBack(w *waiter[T]) {
	l.waiters = append(l.waiters, w)
}

func (l *waiterList[T]) popFront() *waiter[T] {
	if len(l.waiters) == 0 {
		return nil
	}

	w := l.waiters[0]
	l.waiters[0] = nil
	l.waiters = l.waiters[1:]

	if len(l.waiters) == 0 {
		l.waiters = nil
	}

	return w
}

// remove deletes w from the list. It returns false if w is not in the list,
// which means w has already been served.
func (l *waiterList[T]) remove(w *waiter[T]) bool {
	for i, x := range l.waiters {
		if x == w {
			copy(l.waiters[i:], l.waiters[i+1:])
			l.waiters[len(l.waiters)-1] = nil
			l.waiters = l.waiters[:len(l.waiters)-1]

			return true
		}
	}

	return false
}

func (l *waiterList[T]) drain() []*waiter[T] {
	ws := l.waiters
	l.waiters = nil

	return ws
}

func (l *waiterList[T]) ids() []string {
	ids := make([]string, len(l.waiters))
	for i, w := range l.waiters {
		ids[i] = w.id
	}

	return ids
}
