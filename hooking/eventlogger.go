package hooking

import (
	"log"
)

// EventLogger is a hook that prints one line per queue event.
type EventLogger[T any] struct {
	*log.Logger
}

// NewEventLogger returns a new EventLogger which will write into the logger.
func NewEventLogger[T any](logger *log.Logger) *EventLogger[T] {
	h := new(EventLogger[T])
	h.Logger = logger

	return h
}

// Func writes the event information into the logger.
func (h *EventLogger[T]) Func(ctx HookCtx[T]) {
	name := ""
	if ctx.Domain != nil {
		name = ctx.Domain.Name()
	}

	switch ctx.Pos {
	case HookPosItemRemoved, HookPosItemPushed:
		h.Printf("%s, %s, %v", name, ctx.Pos, ctx.Item)
	case HookPosItemsRemoved, HookPosItemsPushed:
		h.Printf("%s, %s, %v", name, ctx.Pos, ctx.Items)
	default:
		h.Printf("%s, %s", name, ctx.Pos)
	}
}
