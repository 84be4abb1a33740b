// Package queue implements the bounded priority queue used for top-k search.
package queue

// Item represents a candidate in the priority queue.
// Value-based storage keeps the heap allocation-free during search.
type Item struct {
	ID       string  // Identifier of the candidate
	Distance float32 // Priority of the candidate
}

// Worse reports whether a ranks after b in result order: larger distance
// first, ties broken by descending identifier. This is the max-heap ordering
// used to keep the k best candidates with the worst on top.
func Worse(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.ID > b.ID
}

// TopK is a bounded max-heap that retains the k best (smallest) items.
type TopK struct {
	k     int
	items []Item
}

// NewTopK creates a bounded heap retaining the k best items.
func NewTopK(k int) *TopK {
	return &TopK{k: k, items: make([]Item, 0, k)}
}

// Len returns the number of retained items.
func (q *TopK) Len() int { return len(q.items) }

// Push offers an item. If the heap is full and the item ranks after the
// current worst, it is dropped.
func (q *TopK) Push(item Item) {
	if len(q.items) < q.k {
		q.items = append(q.items, item)
		q.siftUp(len(q.items) - 1)
		return
	}
	// Full: replace the root only if item ranks before it.
	if Worse(q.items[0], item) {
		q.items[0] = item
		q.siftDown(0)
	}
}

// Drain removes all items and returns them in result order:
// ascending distance, ties broken by ascending identifier.
func (q *TopK) Drain() []Item {
	out := make([]Item, len(q.items))
	for i := len(q.items) - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}

func (q *TopK) pop() Item {
	n := len(q.items)
	root := q.items[0]
	last := q.items[n-1]
	q.items[n-1] = Item{}
	q.items = q.items[:n-1]
	if n-1 > 0 {
		q.items[0] = last
		q.siftDown(0)
	}
	return root
}

func (q *TopK) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !Worse(q.items[i], q.items[p]) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *TopK) siftDown(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		worst := l
		if r := l + 1; r < n && Worse(q.items[r], q.items[l]) {
			worst = r
		}
		if !Worse(q.items[worst], q.items[i]) {
			return
		}
		q.items[i], q.items[worst] = q.items[worst], q.items[i]
		i = worst
	}
}
