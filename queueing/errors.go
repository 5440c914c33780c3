package queueing

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Get and Push when the caller's deadline passes
	// before the queue can serve the call. The error also matches
	// context.DeadlineExceeded.
	ErrTimeout = errors.New("queueing: timeout")

	// ErrQueueFull is returned by PushNowait when the queue has no free slot.
	ErrQueueFull = errors.New("queueing: queue is full")

	// ErrQueueCleared is returned by a blocked Push that was released by
	// Clear. The item is not inserted; the caller may retry.
	ErrQueueCleared = errors.New("queueing: queue was cleared")

	// ErrSizeError is returned by SetSize when the new size cannot be applied.
	ErrSizeError = errors.New("queueing: size error")
)

func waitErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return err
}
