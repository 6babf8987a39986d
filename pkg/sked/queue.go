package sked

import (
	"container/heap"
	"time"
)

// entry is one pending occurrence of a task.
type entry struct {
	due time.Time
	seq uint64 // insertion order among equal due instants
	id  ID
}

// entryHeap implements heap.Interface ordered by (due, seq).
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// dueQueue is a time-ordered multimap from due instant to task ID.
// It is not safe for concurrent use; the Engine guards it with its mutex.
type dueQueue struct {
	h   entryHeap
	seq uint64
	// pending tracks the queued due instant per ID so at most one entry exists.
	pending map[ID]time.Time
}

func newDueQueue() *dueQueue {
	return &dueQueue{pending: map[ID]time.Time{}}
}

func (q *dueQueue) Len() int { return q.h.Len() }

// push queues id at due. An ID that already has a pending entry is left alone.
func (q *dueQueue) push(due time.Time, id ID) bool {
	if _, ok := q.pending[id]; ok {
		return false
	}
	q.seq++
	heap.Push(&q.h, entry{due: due, seq: q.seq, id: id})
	q.pending[id] = due
	return true
}

// peek returns the smallest pending due instant.
func (q *dueQueue) peek() (time.Time, bool) {
	if q.h.Len() == 0 {
		return time.Time{}, false
	}
	return q.h[0].due, true
}

// popEqual removes and returns every entry whose due instant equals due,
// in insertion order.
func (q *dueQueue) popEqual(due time.Time) []entry {
	var out []entry
	for q.h.Len() > 0 && q.h[0].due.Equal(due) {
		e := heap.Pop(&q.h).(entry)
		delete(q.pending, e.id)
		out = append(out, e)
	}
	return out
}

func (q *dueQueue) next(id ID) (time.Time, bool) {
	t, ok := q.pending[id]
	return t, ok
}

// clear drops every pending entry.
func (q *dueQueue) clear() {
	q.h = nil
	q.pending = map[ID]time.Time{}
}
