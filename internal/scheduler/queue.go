package scheduler

import "container/heap"

// priorityQueue - min-куча записей по расстоянию до центра окна,
// при равенстве - по порядку вставки
type priorityQueue []*record

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].order < q[j].order
}

func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priorityQueue) Push(x any) {
	r := x.(*record)
	r.index = len(*q)
	*q = append(*q, r)
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*q = old[:n-1]
	return r
}

func (q *priorityQueue) push(r *record) {
	heap.Push(q, r)
}

func (q *priorityQueue) pop() *record {
	return heap.Pop(q).(*record)
}

func (q *priorityQueue) remove(r *record) {
	if r.index >= 0 {
		heap.Remove(q, r.index)
	}
}

func (q *priorityQueue) fix(r *record) {
	if r.index >= 0 {
		heap.Fix(q, r.index)
	}
}
