package queueing

import (
	"context"
	"iter"
)

// All returns an endless sequence of Get results. Every step of the range
// calls Get(ctx) again; the sequence ends when the loop breaks or ctx is
// done. Ranging again simply continues with the next item in the queue.
func (q *Queue[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, err := q.Get(ctx)
			if err != nil {
				return
			}

			if !yield(item) {
				return
			}
		}
	}
}
