package audio

import (
	"sync"
	"testing"
)

func TestChangeQueueKeepsLatestValue(t *testing.T) {
	q := NewChangeQueue()
	q.Enqueue(Parameter{Kind: Algorithm, Value: 1})
	q.Enqueue(Parameter{Kind: Feedback, Value: 2})
	q.Enqueue(Parameter{Kind: Algorithm, Value: 3})
	expectEqual(t, q.Len(), 2)

	expectDeepEqual(t, q.Drain(), []Parameter{
		{Kind: Feedback, Value: 2},
		{Kind: Algorithm, Value: 3},
	})
	expectEqual(t, q.Len(), 0)
}

func TestChangeQueueSeparatesSlots(t *testing.T) {
	q := NewChangeQueue()
	q.Enqueue(Parameter{Kind: TotalLevel, Slot: 0, Value: 10})
	q.Enqueue(Parameter{Kind: TotalLevel, Slot: 1, Value: 20})
	q.Enqueue(Parameter{Kind: TotalLevel, Slot: 0, Value: 30})

	p, ok := q.Dequeue()
	expectEqual(t, ok, true)
	expectEqual(t, p, Parameter{Kind: TotalLevel, Slot: 1, Value: 20})
	p, ok = q.Dequeue()
	expectEqual(t, ok, true)
	expectEqual(t, p, Parameter{Kind: TotalLevel, Slot: 0, Value: 30})
	_, ok = q.Dequeue()
	expectEqual(t, ok, false)
}

func TestChangeQueueClear(t *testing.T) {
	q := NewChangeQueue()
	q.Enqueue(Parameter{Kind: Algorithm, Value: 1})
	q.Clear()
	expectEqual(t, q.Len(), 0)
	q.Enqueue(Parameter{Kind: Algorithm, Value: 2})
	expectEqual(t, q.Len(), 1)
}

func TestChangeQueueConcurrentEnqueue(t *testing.T) {
	q := NewChangeQueue()
	var wg sync.WaitGroup
	for slot := 0; slot < slotCount; slot++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := 0; v < 100; v++ {
				q.Enqueue(Parameter{Kind: TotalLevel, Slot: slot, Value: v})
			}
		}()
	}
	wg.Wait()
	params := q.Drain()
	expectEqual(t, len(params), slotCount)
	for _, p := range params {
		expectEqual(t, p.Value, 99)
	}
}
