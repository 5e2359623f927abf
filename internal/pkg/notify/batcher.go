package notify

import (
	"strconv"
	"sync"
	"time"
)

// FlushFunc 聚合窗口结束时回调，items 按加入顺序排列
type FlushFunc[T any] func(userID uint64, t Type, items []T)

type batchGroup[T any] struct {
	items     []T
	createdAt time.Time
}

type batchShard[T any] struct {
	mu     sync.Mutex
	groups map[string]*batchGroup[T]
}

// Batcher 按 (userID, type) 聚合高频通知，每次 Add 重置窗口定时器
type Batcher[T any] struct {
	window time.Duration
	sched  *Scheduler
	flush  FlushFunc[T]
	shards [shardCount]batchShard[T]
	now    func() time.Time
}

func NewBatcher[T any](window time.Duration, sched *Scheduler, flush FlushFunc[T]) *Batcher[T] {
	b := &Batcher[T]{
		window: window,
		sched:  sched,
		flush:  flush,
		now:    time.Now,
	}
	for i := range b.shards {
		b.shards[i].groups = make(map[string]*batchGroup[T])
	}
	return b
}

func batchKey(userID uint64, t Type) string {
	return strconv.FormatUint(userID, 10) + ":" + t.String()
}

// Add 追加一条通知并重新计时
func (b *Batcher[T]) Add(userID uint64, t Type, item T) {
	key := batchKey(userID, t)
	shard := &b.shards[shardOf(key)]

	shard.mu.Lock()
	group, ok := shard.groups[key]
	if !ok {
		group = &batchGroup[T]{createdAt: b.now()}
		shard.groups[key] = group
	}
	group.items = append(group.items, item)
	shard.mu.Unlock()

	b.sched.Arm(KindBatch, key, b.window, func() {
		b.fire(userID, t, key)
	})
}

func (b *Batcher[T]) fire(userID uint64, t Type, key string) {
	shard := &b.shards[shardOf(key)]

	shard.mu.Lock()
	group, ok := shard.groups[key]
	if ok {
		delete(shard.groups, key)
	}
	shard.mu.Unlock()

	if !ok || len(group.items) == 0 {
		return
	}
	b.flush(userID, t, group.items)
}

// Purge 丢弃创建时间早于 horizon 的分组（定时器未触发时的兜底），返回丢弃分组数
func (b *Batcher[T]) Purge(horizon time.Duration) int {
	cutoff := b.now().Add(-horizon)
	purged := 0
	for i := range b.shards {
		shard := &b.shards[i]
		shard.mu.Lock()
		for key, group := range shard.groups {
			if group.createdAt.Before(cutoff) {
				delete(shard.groups, key)
				b.sched.Cancel(KindBatch, key)
				purged++
			}
		}
		shard.mu.Unlock()
	}
	return purged
}

// Pending 等待中的分组数
func (b *Batcher[T]) Pending() int {
	n := 0
	for i := range b.shards {
		shard := &b.shards[i]
		shard.mu.Lock()
		n += len(shard.groups)
		shard.mu.Unlock()
	}
	return n
}
