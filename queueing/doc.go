// Package queueing provides Queue, a bounded asynchronous queue for
// coordinating producers and consumers inside one process.
//
// A Queue holds items in FIFO or LIFO order and an optional capacity. Get
// and Push block the calling goroutine when the queue is empty or full. A
// blocked caller is served by a direct hand-off: a pushed item goes straight
// to the longest waiting consumer, and a freed slot is filled with the item
// of the longest waiting producer. Waiters are served in the order they
// arrived, whatever the item order of the queue. Blocked calls
// honor their context, so a deadline turns into ErrTimeout and only removes
// the caller's own wake-handle.
//
//	q := queueing.MakeBuilder[int]().
//		WithCapacity(2).
//		WithOrder(queueing.FIFO).
//		Build("Tasks")
//
//	q.On(hooking.HookPosFull, func(ctx hooking.HookCtx[int]) {
//		log.Printf("%s is full", ctx.Domain.Name())
//	})
//
//	go func() {
//		for item := range q.All(ctx) {
//			process(item)
//		}
//	}()
//
//	err := q.Push(ctx, 1)
//
// Hooks run synchronously after the queue's lock is released, so they may
// call back into the queue. A blocked call that is served by another
// goroutine reports its own events once it wakes. The events of one call
// arrive in order, but events of calls on different goroutines may reach
// hooks in a different order than the state changes behind them; use
// Snapshot or Stats when the exact state matters. A hook that panics is
// recovered and reported to the queue's panic handler; the operation that
// triggered it still succeeds.
package queueing
