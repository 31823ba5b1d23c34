package engine

import (
	"sync"

	"github.com/roach88/uniflow/internal/ir"
)

// msgQueue is the Program's pending-message FIFO.
//
// The queue is unbounded: effect goroutines and subscriptions hand messages
// off through Accept and must never block on a busy Program.
//
// The head message stays queued while the reducer runs (peek, then pop), so
// the queue is non-empty for the whole cycle.
type msgQueue struct {
	mu   sync.Mutex
	msgs []ir.Msg
}

func newMsgQueue() *msgQueue {
	return &msgQueue{msgs: make([]ir.Msg, 0, 16)}
}

// push appends msg to the tail. Thread-safe.
func (q *msgQueue) push(msg ir.Msg) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
}

// peek returns the head message without removing it.
func (q *msgQueue) peek() (ir.Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return nil, false
	}
	return q.msgs[0], true
}

// pop removes and returns the head message.
func (q *msgQueue) pop() (ir.Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.msgs) == 0 {
		return nil, false
	}
	msg := q.msgs[0]

	// Release the slot so the backing array does not pin the payload.
	q.msgs[0] = nil
	if len(q.msgs) == 1 {
		q.msgs = q.msgs[:0]
	} else {
		q.msgs = q.msgs[1:]
	}
	return msg, true
}

func (q *msgQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

// clear drops every queued message and returns how many were dropped.
func (q *msgQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.msgs)
	for i := range q.msgs {
		q.msgs[i] = nil
	}
	q.msgs = q.msgs[:0]
	return n
}
