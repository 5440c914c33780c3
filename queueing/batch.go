package queueing

import (
	"context"
	"fmt"

	"github.com/sarchlab/asyncqueue/hooking"
)

// GetBatch removes count items, one Get at a time, and returns them in the
// order they were removed. Each Get may block on its own.
//
// The itemsRemoved event is reported once, after all items are collected. If
// one Get fails, GetBatch returns the items removed so far together with the
// error. Those items are no longer in the queue.
func (q *Queue[T]) GetBatch(ctx context.Context, count int) ([]T, error) {
	if count <= 0 {
		return []T{}, nil
	}

	items := make([]T, 0, count)
	for len(items) < count {
		item, err := q.Get(ctx)
		if err != nil {
			return items, fmt.Errorf("get batch item %d of %d: %w",
				len(items)+1, count, err)
		}

		items = append(items, item)
	}

	q.emit([]hooking.HookCtx[T]{{Pos: hooking.HookPosItemsRemoved, Items: items}})

	return items, nil
}

// PushBatch pushes items in sequence order, one Push at a time. Each Push
// may block on its own.
//
// The itemsPushed event is reported once, after every item is inserted. If
// one Push fails, the items before it stay in the queue and the error names
// the index of the failed item.
func (q *Queue[T]) PushBatch(ctx context.Context, items []T) error {
	for i, item := range items {
		err := q.Push(ctx, item)
		if err != nil {
			return fmt.Errorf("push batch item %d: %w", i, err)
		}
	}

	q.emit([]hooking.HookCtx[T]{{Pos: hooking.HookPosItemsPushed, Items: items}})

	return nil
}
