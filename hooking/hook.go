// Package hooking defines the event kinds a queue reports and the hooks that
// observe them.
package hooking

import (
	"fmt"
	"log"
	"sync"
)

// HookPos defines the enum of possible hooking positions.
type HookPos int

// The positions at which a queue invokes its hooks.
const (
	// HookPosItemRemoved carries the single item removed by a get.
	HookPosItemRemoved HookPos = iota
	// HookPosItemsRemoved carries the ordered items of a completed batch get.
	HookPosItemsRemoved
	// HookPosItemPushed carries the single item inserted by a push.
	HookPosItemPushed
	// HookPosItemsPushed carries the input items of a completed batch push.
	HookPosItemsPushed
	HookPosSizeChanged
	HookPosQueueCleared
	HookPosFull
	HookPosEmpty

	numHookPos
)

var hookPosNames = [numHookPos]string{
	HookPosItemRemoved:  "itemRemoved",
	HookPosItemsRemoved: "itemsRemoved",
	HookPosItemPushed:   "itemPushed",
	HookPosItemsPushed:  "itemsPushed",
	HookPosSizeChanged:  "sizeChanged",
	HookPosQueueCleared: "queueCleared",
	HookPosFull:         "full",
	HookPosEmpty:        "empty",
}

// String returns the event name of the position.
func (p HookPos) String() string {
	if p < 0 || p >= numHookPos {
		return fmt.Sprintf("HookPos(%d)", int(p))
	}

	return hookPosNames[p]
}

// Valid reports whether p is one of the defined positions.
func (p HookPos) Valid() bool {
	return p >= 0 && p < numHookPos
}

// ParseHookPos converts an event name such as "itemPushed" back to its
// position.
func ParseHookPos(name string) (HookPos, error) {
	for i, n := range hookPosNames {
		if n == name {
			return HookPos(i), nil
		}
	}

	return 0, fmt.Errorf("hooking: unknown event %q", name)
}

// AllHookPos lists every position in declaration order.
func AllHookPos() []HookPos {
	poses := make([]HookPos, 0, numHookPos)
	for p := HookPos(0); p < numHookPos; p++ {
		poses = append(poses, p)
	}

	return poses
}

// Named describes an object that has a name.
type Named interface {
	Name() string
}

// HookCtx is the context that holds all the information about the site that a
// hook is triggered.
//
// Item is set for the single-item positions, Items for the batch positions.
// The remaining positions carry no payload.
type HookCtx[T any] struct {
	Domain Named
	Pos    HookPos
	Item   T
	Items  []T
}

// Hookable defines an object that accept Hooks.
type Hookable[T any] interface {
	// AcceptHook registers a hook for every position.
	AcceptHook(hook Hook[T])

	// AcceptHookAt registers a hook for a single position.
	AcceptHookAt(pos HookPos, hook Hook[T])

	// NumHooks returns the number of hooks registered at a position.
	NumHooks(pos HookPos) int
}

// Hook is a short piece of program that can be invoked by a hookable object.
type Hook[T any] interface {
	// Func determines what to do if hook is invoked.
	Func(ctx HookCtx[T])
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc[T any] func(ctx HookCtx[T])

// Func calls f(ctx).
func (f HookFunc[T]) Func(ctx HookCtx[T]) {
	f(ctx)
}

// PanicHandler receives the value recovered from a hook that panicked.
type PanicHandler func(pos HookPos, recovered any)

// LogPanic is the default PanicHandler. It reports the failure through the
// standard logger.
func LogPanic(pos HookPos, recovered any) {
	log.Printf("hooking: hook at %s panicked: %v", pos, recovered)
}

// A HookableBase provides some utility function for other type that implement
// the Hookable interface. The zero value is ready to use and safe for
// concurrent registration and invocation.
type HookableBase[T any] struct {
	mu           sync.RWMutex
	hooks        [numHookPos][]Hook[T]
	panicHandler PanicHandler
}

// AcceptHook registers a hook at every position. The same hook may be
// registered more than once, in which case it is invoked once per
// registration.
func (h *HookableBase[T]) AcceptHook(hook Hook[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for p := range h.hooks {
		h.hooks[p] = append(h.hooks[p], hook)
	}
}

// AcceptHookAt registers a hook at a single position.
func (h *HookableBase[T]) AcceptHookAt(pos HookPos, hook Hook[T]) {
	mustBeValidPos(pos)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks[pos] = append(h.hooks[pos], hook)
}

// NumHooks returns the number of hooks registered at a position.
func (h *HookableBase[T]) NumHooks(pos HookPos) int {
	if !pos.Valid() {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.hooks[pos])
}

// SetPanicHandler replaces the handler that receives recovered hook panics.
// A nil handler restores LogPanic.
func (h *HookableBase[T]) SetPanicHandler(handler PanicHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.panicHandler = handler
}

// InvokeHook triggers the registered hooks of ctx.Pos in registration order.
// A hook that panics is reported to the panic handler and does not prevent
// the remaining hooks from running.
func (h *HookableBase[T]) InvokeHook(ctx HookCtx[T]) {
	if !ctx.Pos.Valid() {
		return
	}

	h.mu.RLock()
	hooks := h.hooks[ctx.Pos]
	handler := h.panicHandler
	h.mu.RUnlock()

	if handler == nil {
		handler = LogPanic
	}

	for _, hook := range hooks {
		invokeOne(hook, ctx, handler)
	}
}

func invokeOne[T any](hook Hook[T], ctx HookCtx[T], handler PanicHandler) {
	defer func() {
		if r := recover(); r != nil {
			handler(ctx.Pos, r)
		}
	}()

	hook.Func(ctx)
}

func mustBeValidPos(pos HookPos) {
	if !pos.Valid() {
		log.Panicf("invalid hook position %d", int(pos))
	}
}
