package audio

import (
	"container/list"
	"sync"
)

// ----- Change Queue ----- //

// ChangeQueue holds parameter edits coming from outside the audio thread.
// At most one value per parameter is kept; a newer edit replaces the older
// one and moves to the newest end.
type ChangeQueue struct {
	sync.Mutex
	queue *list.List // front: newest
	index map[parameterKey]*list.Element
}

// NewChangeQueue ...
func NewChangeQueue() *ChangeQueue {
	return &ChangeQueue{
		queue: list.New(),
		index: make(map[parameterKey]*list.Element),
	}
}

// Enqueue ...
func (q *ChangeQueue) Enqueue(p Parameter) {
	q.Lock()
	defer q.Unlock()
	key := p.key()
	if e, ok := q.index[key]; ok {
		q.queue.Remove(e)
	}
	q.index[key] = q.queue.PushFront(p)
}

// Dequeue returns the oldest edit.
func (q *ChangeQueue) Dequeue() (Parameter, bool) {
	q.Lock()
	defer q.Unlock()
	return q.dequeue()
}

func (q *ChangeQueue) dequeue() (Parameter, bool) {
	e := q.queue.Back()
	if e == nil {
		return Parameter{}, false
	}
	p := q.queue.Remove(e).(Parameter)
	delete(q.index, p.key())
	return p, true
}

// Drain empties the queue, oldest first.
func (q *ChangeQueue) Drain() []Parameter {
	q.Lock()
	defer q.Unlock()
	params := make([]Parameter, 0, q.queue.Len())
	for {
		p, ok := q.dequeue()
		if !ok {
			return params
		}
		params = append(params, p)
	}
}

// Len ...
func (q *ChangeQueue) Len() int {
	q.Lock()
	defer q.Unlock()
	return q.queue.Len()
}

// Clear ...
func (q *ChangeQueue) Clear() {
	q.Lock()
	defer q.Unlock()
	q.queue.Init()
	clear(q.index)
}
