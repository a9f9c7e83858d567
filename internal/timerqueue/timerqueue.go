// Package timerqueue implements a background timer service backing the
// task package's Delay combinator: a min-heap of entries ordered by fire
// time, popped with container/heap. The queue owns its own goroutine and
// wakes itself with a time.Timer, since the task package has no tick loop
// of its own to piggyback on.
package timerqueue

import (
	"container/heap"
	"sync"
	"time"
)

type entry struct {
	when     time.Time
	seq      uint64
	fn       func()
	canceled bool
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Queue is a background timer service. The zero value is not usable; use
// New.
type Queue struct {
	mu      sync.Mutex
	heap    entryHeap
	nextSeq uint64
	wake    chan struct{}
}

// New creates and starts a Queue's background goroutine.
func New() *Queue {
	q := &Queue{wake: make(chan struct{}, 1)}
	go q.run()
	return q
}

// Schedule arranges for fn to run after d elapses, returning a cancel
// function. Calling cancel before fn has run prevents it from ever running;
// calling it afterward, or more than once, is a safe no-op.
func (q *Queue) Schedule(d time.Duration, fn func()) (cancel func()) {
	q.mu.Lock()
	q.nextSeq++
	e := &entry{when: time.Now().Add(d), seq: q.nextSeq, fn: fn}
	heap.Push(&q.heap, e)
	becameEarliest := q.heap[0] == e
	q.mu.Unlock()

	if becameEarliest {
		q.nudge()
	}

	return func() {
		q.mu.Lock()
		e.canceled = true
		q.mu.Unlock()
	}
}

func (q *Queue) nudge() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		q.mu.Lock()
		for len(q.heap) > 0 && q.heap[0].canceled {
			heap.Pop(&q.heap)
		}
		var wait time.Duration
		if len(q.heap) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(q.heap[0].when)
			if wait < 0 {
				wait = 0
			}
		}
		q.mu.Unlock()

		timer.Reset(wait)
		select {
		case <-timer.C:
			q.fireExpired()
		case <-q.wake:
			timer.Stop()
		}
	}
}

// fireExpired pops and runs every entry whose fire time has arrived. Each
// fn runs inline on the queue's own goroutine rather than fanning out to a
// pool.
func (q *Queue) fireExpired() {
	now := time.Now()
	for {
		q.mu.Lock()
		if len(q.heap) == 0 || q.heap[0].when.After(now) {
			q.mu.Unlock()
			return
		}
		e := heap.Pop(&q.heap).(*entry)
		q.mu.Unlock()

		if !e.canceled {
			e.fn()
		}
	}
}
