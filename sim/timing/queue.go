package timing

import (
	"container/heap"
	"sync"
)

// eventQueue orders events by time, then primary before secondary, then by
// the order they were scheduled in.
type eventQueue struct {
	lock    sync.Mutex
	events  eventHeap
	nextSeq uint64
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(&q.events)

	return q
}

func (q *eventQueue) Push(evt ScheduledEvent) {
	q.lock.Lock()
	defer q.lock.Unlock()

	evt.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.events, &evt)
}

func (q *eventQueue) Pop() *ScheduledEvent {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*ScheduledEvent)
}

func (q *eventQueue) Peek() *ScheduledEvent {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

func (q *eventQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.events.Len()
}

type eventHeap []*ScheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	if h[i].IsSecondary != h[j].IsSecondary {
		return !h[i].IsSecondary
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*ScheduledEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
