package cyphal

// PriorityQueue orders outbound frames before they are handed to the driver. It has one FIFO bucket per priority
// level and Pop always serves the highest priority non-empty bucket first. There is no starvation protection: low
// priority frames wait as long as there are higher priority frames queued.
type PriorityQueue struct {
	buckets [numberOfPriorities][]Frame
	size    int
}

// NewPriorityQueue creates empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Push appends frame to bucket matching priority bits of frame CAN ID.
func (q *PriorityQueue) Push(frame Frame) {
	p := priorityOf(frame.ID())
	q.buckets[p] = append(q.buckets[p], frame)
	q.size++
}

// Pop removes and returns the oldest frame of the highest priority. Returns false when queue is empty.
func (q *PriorityQueue) Pop() (Frame, bool) {
	for p := range q.buckets {
		bucket := q.buckets[p]
		if len(bucket) == 0 {
			continue
		}
		f := bucket[0]
		bucket[0] = Frame{}
		if len(bucket) == 1 {
			q.buckets[p] = bucket[:0] // reuse backing array
		} else {
			q.buckets[p] = bucket[1:]
		}
		q.size--
		return f, true
	}
	return Frame{}, false
}

// Len returns number of frames in queue.
func (q *PriorityQueue) Len() int {
	return q.size
}
