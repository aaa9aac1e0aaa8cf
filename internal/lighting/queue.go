package lighting

import "github.com/annel0/voxel-engine/internal/vec"

// node - элемент очереди заливки
type node struct {
	pos   vec.Vec3
	value uint8
}

// queue - FIFO поверх среза; память переиспользуется между проходами
type queue struct {
	items []node
	head  int
}

func (q *queue) push(pos vec.Vec3, value uint8) {
	q.items = append(q.items, node{pos: pos, value: value})
}

func (q *queue) pop() (node, bool) {
	if q.head >= len(q.items) {
		return node{}, false
	}
	n := q.items[q.head]
	q.head++
	return n, true
}

func (q *queue) len() int {
	return len(q.items) - q.head
}

func (q *queue) reset() {
	q.items = q.items[:0]
	q.head = 0
}
