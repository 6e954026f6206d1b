package sched

import "container/heap"

// item is one unit of pending work.
type item struct {
	task      *task
	msg       any
	scheduled Instant
}

// ring is a fixed-capacity FIFO sized at Seal; it never grows.
type ring struct {
	buf  []item
	head int
	n    int
}

func newRing(capacity int) ring { return ring{buf: make([]item, capacity)} }

func (r *ring) push(it item) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[(r.head+r.n)%len(r.buf)] = it
	r.n++
	return true
}

func (r *ring) pop() (item, bool) {
	if r.n == 0 {
		return item{}, false
	}
	it := r.buf[r.head]
	r.buf[r.head] = item{}
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return it, true
}

func (r *ring) len() int { return r.n }

// timer entries ordered by (due, seq) so equal instants release FIFO.
type timer struct {
	due   Instant
	seq   uint64
	item  item
	index int
}

type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due.Before(h[j].due)
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)   { t := x.(*timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
func (h timerHeap) top() *timer {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

type timerQueue struct {
	h   timerHeap
	seq uint64
}

func (q *timerQueue) add(due Instant, it item) {
	q.seq++
	heap.Push(&q.h, &timer{due: due, seq: q.seq, item: it})
}

// popDue removes the earliest timer if it is due at now.
func (q *timerQueue) popDue(now Instant) (item, bool) {
	t := q.h.top()
	if t == nil || t.due.After(now) {
		return item{}, false
	}
	heap.Pop(&q.h)
	return t.item, true
}

func (q *timerQueue) next() (Instant, bool) {
	t := q.h.top()
	if t == nil {
		return 0, false
	}
	return t.due, true
}

func (q *timerQueue) len() int { return len(q.h) }
