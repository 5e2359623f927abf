package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimerKind 定时器种类
type TimerKind string

const (
	KindBatch   TimerKind = "batch"
	KindConfirm TimerKind = "confirm"
)

type timerKey struct {
	kind TimerKind
	key  string
}

type timerEntry struct {
	t   *time.Timer
	gen uint64
}

type schedulerShard struct {
	mu     sync.Mutex
	timers map[timerKey]*timerEntry
}

// Scheduler 统一的 (kind, key) 定时器表：Arm 覆盖旧定时器，Cancel 与触发互斥，只有一方生效
type Scheduler struct {
	shards  [shardCount]schedulerShard
	gen     atomic.Uint64
	stopped atomic.Bool
}

func NewScheduler() *Scheduler {
	s := &Scheduler{}
	for i := range s.shards {
		s.shards[i].timers = make(map[timerKey]*timerEntry)
	}
	return s
}

// Arm 在 d 之后执行 fn；同一 (kind, key) 已有定时器时替换之
func (s *Scheduler) Arm(kind TimerKind, key string, d time.Duration, fn func()) {
	if s.stopped.Load() {
		return
	}
	gen := s.gen.Add(1)
	k := timerKey{kind: kind, key: key}
	shard := &s.shards[shardOf(string(kind)+":"+key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if old, exists := shard.timers[k]; exists {
		old.t.Stop()
	}
	entry := &timerEntry{gen: gen}
	entry.t = time.AfterFunc(d, func() {
		if s.take(shard, k, gen) {
			fn()
		}
	})
	shard.timers[k] = entry
}

// take 触发时摘除自身，被替换或已取消则返回 false
func (s *Scheduler) take(shard *schedulerShard, k timerKey, gen uint64) bool {
	shard.mu.Lock()
	defer shard.mu.Unlock()
	cur, ok := shard.timers[k]
	if !ok || cur.gen != gen {
		return false
	}
	delete(shard.timers, k)
	return true
}

// Cancel 取消定时器，返回是否在触发前成功取消
func (s *Scheduler) Cancel(kind TimerKind, key string) bool {
	k := timerKey{kind: kind, key: key}
	shard := &s.shards[shardOf(string(kind)+":"+key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	entry, ok := shard.timers[k]
	if !ok {
		return false
	}
	entry.t.Stop()
	delete(shard.timers, k)
	return true
}

// Armed 定时器是否仍在等待
func (s *Scheduler) Armed(kind TimerKind, key string) bool {
	k := timerKey{kind: kind, key: key}
	shard := &s.shards[shardOf(string(kind)+":"+key)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	_, ok := shard.timers[k]
	return ok
}

// Pending 某类定时器的等待数
func (s *Scheduler) Pending(kind TimerKind) int {
	n := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for k := range shard.timers {
			if k.kind == kind {
				n++
			}
		}
		shard.mu.Unlock()
	}
	return n
}

// Stop 停止全部定时器，之后的 Arm 为空操作
func (s *Scheduler) Stop() {
	s.stopped.Store(true)

	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for k, entry := range shard.timers {
			entry.t.Stop()
			delete(shard.timers, k)
		}
		shard.mu.Unlock()
	}
}
