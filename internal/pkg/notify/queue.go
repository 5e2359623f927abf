package notify

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// QueueEntry 离线队列条目，Payload 为通知的快照
type QueueEntry[T any] struct {
	ID       string
	Priority int
	QueuedAt time.Time
	Payload  T
	seq      uint64
}

// before 排序规则：优先级降序，入队时间升序，同一时刻按入队序号
func (e *QueueEntry[T]) before(o *QueueEntry[T]) bool {
	if e.Priority != o.Priority {
		return e.Priority > o.Priority
	}
	if !e.QueuedAt.Equal(o.QueuedAt) {
		return e.QueuedAt.Before(o.QueuedAt)
	}
	return e.seq < o.seq
}

type queueShard[T any] struct {
	mu     sync.Mutex
	queues map[uint64][]*QueueEntry[T]
}

// OfflineQueue 按用户分片的有界优先级队列
type OfflineQueue[T any] struct {
	capacity int
	maxAge   time.Duration
	shards   [shardCount]queueShard[T]
	seq      atomic.Uint64
	total    atomic.Int64
	now      func() time.Time
}

func NewOfflineQueue[T any](capacity int, maxAge time.Duration) *OfflineQueue[T] {
	q := &OfflineQueue[T]{capacity: capacity, maxAge: maxAge, now: time.Now}
	for i := range q.shards {
		q.shards[i].queues = make(map[uint64][]*QueueEntry[T])
	}
	return q
}

// Enqueue 有序插入；超出容量时淘汰优先级最低中最早入队的一条并返回
func (q *OfflineQueue[T]) Enqueue(userID uint64, id string, priority int, payload T) (evicted *QueueEntry[T]) {
	entry := &QueueEntry[T]{
		ID:       id,
		Priority: priority,
		QueuedAt: q.now(),
		Payload:  payload,
		seq:      q.seq.Add(1),
	}
	shard := &q.shards[shardOfUser(userID)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	list := shard.queues[userID]
	// 同 ID 重复入队时先移除旧条目
	for i, e := range list {
		if e.ID == id {
			list = append(list[:i], list[i+1:]...)
			q.total.Add(-1)
			break
		}
	}

	idx := sort.Search(len(list), func(i int) bool { return entry.before(list[i]) })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = entry
	q.total.Add(1)

	if q.capacity > 0 && len(list) > q.capacity {
		lowest := list[len(list)-1].Priority
		victim := sort.Search(len(list), func(i int) bool { return list[i].Priority <= lowest })
		evicted = list[victim]
		list = append(list[:victim], list[victim+1:]...)
		q.total.Add(-1)
	}
	shard.queues[userID] = list
	return evicted
}

// Drain 取出并清空用户队列；超过 maxAge 的条目被丢弃，只返回其数量
func (q *OfflineQueue[T]) Drain(userID uint64) (live []QueueEntry[T], expired int) {
	shard := &q.shards[shardOfUser(userID)]

	shard.mu.Lock()
	list := shard.queues[userID]
	delete(shard.queues, userID)
	shard.mu.Unlock()

	q.total.Add(-int64(len(list)))
	now := q.now()
	live = make([]QueueEntry[T], 0, len(list))
	for _, e := range list {
		if q.maxAge > 0 && now.Sub(e.QueuedAt) > q.maxAge {
			expired++
			continue
		}
		live = append(live, *e)
	}
	return live, expired
}

// RemoveIfPresent 移除指定通知，返回是否存在
func (q *OfflineQueue[T]) RemoveIfPresent(userID uint64, id string) bool {
	shard := &q.shards[shardOfUser(userID)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	list, ok := shard.queues[userID]
	if !ok {
		return false
	}
	for i, e := range list {
		if e.ID != id {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		q.total.Add(-1)
		if len(list) == 0 {
			delete(shard.queues, userID)
		} else {
			shard.queues[userID] = list
		}
		return true
	}
	return false
}

// PurgeExpired 清理从未重连用户的过期条目
func (q *OfflineQueue[T]) PurgeExpired() int {
	if q.maxAge <= 0 {
		return 0
	}
	cutoff := q.now().Add(-q.maxAge)
	purged := 0
	for i := range q.shards {
		shard := &q.shards[i]
		shard.mu.Lock()
		for userID, list := range shard.queues {
			kept := list[:0]
			for _, e := range list {
				if e.QueuedAt.Before(cutoff) {
					purged++
					continue
				}
				kept = append(kept, e)
			}
			if len(kept) == 0 {
				delete(shard.queues, userID)
			} else {
				shard.queues[userID] = kept
			}
		}
		shard.mu.Unlock()
	}
	q.total.Add(-int64(purged))
	return purged
}

// Len 单个用户的队列长度
func (q *OfflineQueue[T]) Len(userID uint64) int {
	shard := &q.shards[shardOfUser(userID)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return len(shard.queues[userID])
}

// Total 全部队列长度之和
func (q *OfflineQueue[T]) Total() int {
	return int(q.total.Load())
}
