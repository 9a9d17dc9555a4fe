package container

import "container/heap"

// entry 队列元素，seq为入队序号，同时刻的元素按入队顺序出队
type entry[T any] struct {
	value T
	at    float64
	seq   uint64
}

type entryHeap[T any] []entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{}
	*h = old[:n-1]
	return e
}

// TimeQueue 按时刻排序的最小堆
// 功能：保存带有事件时刻的元素，按时刻从早到晚取出
// 说明：非并发安全，由单个协程（模拟主循环）使用
type TimeQueue[T any] struct {
	h   entryHeap[T]
	seq uint64
}

// NewTimeQueue 创建时刻队列
func NewTimeQueue[T any]() *TimeQueue[T] {
	return &TimeQueue[T]{}
}

// Len 队列长度
func (q *TimeQueue[T]) Len() int {
	return len(q.h)
}

// Push 加入元素，at为事件时刻
func (q *TimeQueue[T]) Push(value T, at float64) {
	heap.Push(&q.h, entry[T]{value: value, at: at, seq: q.seq})
	q.seq++
}

// Pop 取出最早的元素，队列为空时panic
func (q *TimeQueue[T]) Pop() (value T, at float64) {
	e := heap.Pop(&q.h).(entry[T])
	return e.value, e.at
}

// PopDue 取出所有时刻不晚于t的元素
// 返回：按时刻（同时刻按入队顺序）排列的元素
func (q *TimeQueue[T]) PopDue(t float64) []T {
	var due []T
	for len(q.h) > 0 && q.h[0].at <= t {
		v, _ := q.Pop()
		due = append(due, v)
	}
	return due
}
