package queueing

// buffer stores the queued items. Both orders append new elements to the end
// of the slice; they differ in where the head is. The head of a FIFO buffer
// is the oldest element at index 0, the head of a LIFO buffer is the newest
// element at the end.
type buffer[T any] struct {
	order    Order
	elements []T
}

func (b *buffer[T]) len() int {
	return len(b.elements)
}

func (b *buffer[T]) insert(e T) {
	b.elements = append(b.elements, e)
}

func (b *buffer[T]) peek() (T, bool) {
	var zero T

	if len(b.elements) == 0 {
		return zero, false
	}

	if b.order == LIFO {
		return b.elements[len(b.elements)-1], true
	}

	return b.elements[0], true
}

func (b *buffer[T]) pop() (T, bool) {
	var zero T

	n := len(b.elements)
	if n == 0 {
		return zero, false
	}

	var e T
	if b.order == LIFO {
		e = b.elements[n-1]
		b.elements[n-1] = zero
		b.elements = b.elements[:n-1]
	} else {
		e = b.elements[0]
		b.elements[0] = zero
		b.elements = b.elements[1:]
	}

	if len(b.elements) == 0 {
		b.elements = nil
	}

	return e, true
}

// truncate keeps the n elements closest to the head.
func (b *buffer[T]) truncate(n int) {
	if n >= len(b.elements) {
		return
	}

	if n <= 0 {
		b.elements = nil
		return
	}

	kept := make([]T, n)
	if b.order == LIFO {
		copy(kept, b.elements[len(b.elements)-n:])
	} else {
		copy(kept, b.elements[:n])
	}

	b.elements = kept
}

// snapshot returns a copy of the elements, head first.
func (b *buffer[T]) snapshot() []T {
	out := make([]T, len(b.elements))
	if b.order == LIFO {
		for i, e := range b.elements {
			out[len(out)-1-i] = e
		}
	} else {
		copy(out, b.elements)
	}

	return out
}

func (b *buffer[T]) clear() {
	b.elements = nil
}
