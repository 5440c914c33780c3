package queueing

// Stats is a point-in-time view of a queue.
type Stats struct {
	Name             string   `json:"name"`
	Order            string   `json:"order"`
	Capacity         int      `json:"capacity"`
	Size             int      `json:"size"`
	WaitingConsumers []string `json:"waiting_consumers"`
	WaitingProducers []string `json:"waiting_producers"`
}

// Stats returns the current state of the queue. The waiter lists hold the
// IDs of the blocked calls in the order they will be served.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Name:             q.name,
		Order:            q.order.String(),
		Capacity:         q.capacity,
		Size:             q.items.len(),
		WaitingConsumers: q.consumers.ids(),
		WaitingProducers: q.producers.ids(),
	}
}
