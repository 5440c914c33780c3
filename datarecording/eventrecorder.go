package datarecording

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sarchlab/asyncqueue/hooking"
	"github.com/sarchlab/asyncqueue/idgen"
)

// EventTableName is the table EventRecorder writes into.
const EventTableName = "queue_events"

// EventEntry is one row of the event table.
type EventEntry struct {
	ID    string
	Queue string
	Event string
	Item  string
	Count int
	Size  int
	Time  float64
}

type sizer interface {
	Size() int
}

// EventRecorder is a hook that records every queue event it observes. Several
// queues may share one recorder; the Queue column tells them apart.
type EventRecorder[T any] struct {
	recorder DataRecorder
	ids      idgen.Generator
	start    time.Time
}

// NewEventRecorder creates an EventRecorder that writes into the recorder,
// creating the event table if the recorder does not have it yet.
func NewEventRecorder[T any](recorder DataRecorder) *EventRecorder[T] {
	if !slices.Contains(recorder.ListTables(), EventTableName) {
		recorder.CreateTable(EventTableName, EventEntry{})
	}

	return &EventRecorder[T]{
		recorder: recorder,
		ids:      idgen.NewParallel(),
		start:    time.Now(),
	}
}

// Func records the event.
func (r *EventRecorder[T]) Func(ctx hooking.HookCtx[T]) {
	entry := EventEntry{
		ID:    r.ids.Generate(),
		Event: ctx.Pos.String(),
		Time:  time.Since(r.start).Seconds(),
	}

	if ctx.Domain != nil {
		entry.Queue = ctx.Domain.Name()

		if s, ok := ctx.Domain.(sizer); ok {
			entry.Size = s.Size()
		}
	}

	switch ctx.Pos {
	case hooking.HookPosItemRemoved, hooking.HookPosItemPushed:
		entry.Item = fmt.Sprint(ctx.Item)
		entry.Count = 1
	case hooking.HookPosItemsRemoved, hooking.HookPosItemsPushed:
		entry.Item = fmt.Sprint(ctx.Items)
		entry.Count = len(ctx.Items)
	}

	r.recorder.InsertData(EventTableName, entry)
}

// Flush writes the buffered events into the database.
func (r *EventRecorder[T]) Flush() error {
	return r.recorder.Flush()
}

// ReadEvents returns recorded events in recording order. An empty queue name
// selects the events of all queues; a limit of 0 returns all of them.
func ReadEvents(
	ctx context.Context,
	reader DataReader,
	queue string,
	limit int,
) ([]EventEntry, error) {
	reader.MapTable(EventTableName, EventEntry{})

	params := QueryParams{OrderBy: "rowid", Limit: limit}
	if queue != "" {
		params.Where = "Queue = ?"
		params.Args = []any{queue}
	}

	results, _, err := reader.Query(ctx, EventTableName, params)
	if err != nil {
		return nil, err
	}

	events := make([]EventEntry, len(results))
	for i, r := range results {
		events[i] = *r.(*EventEntry)
	}

	return events, nil
}
