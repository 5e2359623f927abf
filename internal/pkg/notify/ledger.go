package notify

import (
	"sync"
	"time"
)

type ledgerShard struct {
	mu      sync.Mutex
	entries map[string]time.Time // fingerprint -> firstSeenAt
}

// Ledger 近期已发送通知的指纹表，用于窗口内去重
type Ledger struct {
	window time.Duration
	shards [shardCount]ledgerShard
	now    func() time.Time
}

func NewLedger(window time.Duration) *Ledger {
	l := &Ledger{window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i].entries = make(map[string]time.Time)
	}
	return l
}

// Reserve 检查并登记指纹：窗口内已存在返回 false；否则登记并返回 true。
// 检查与登记在同一分片锁内完成，并发的相同通知只有一个能通过
func (l *Ledger) Reserve(fp string) bool {
	now := l.now()
	shard := &l.shards[shardOf(fp)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if firstSeen, ok := shard.entries[fp]; ok && now.Sub(firstSeen) < l.window {
		return false
	}
	shard.entries[fp] = now
	return true
}

// Release 持久化失败时撤销登记
func (l *Ledger) Release(fp string) {
	shard := &l.shards[shardOf(fp)]
	shard.mu.Lock()
	delete(shard.entries, fp)
	shard.mu.Unlock()
}

// Seen 指纹是否仍在去重窗口内
func (l *Ledger) Seen(fp string) bool {
	now := l.now()
	shard := &l.shards[shardOf(fp)]

	shard.mu.Lock()
	defer shard.mu.Unlock()
	firstSeen, ok := shard.entries[fp]
	return ok && now.Sub(firstSeen) < l.window
}

// Purge 清理早于 horizon 的指纹，返回清理数量；逐分片加锁
func (l *Ledger) Purge(horizon time.Duration) int {
	cutoff := l.now().Add(-horizon)
	purged := 0
	for i := range l.shards {
		shard := &l.shards[i]
		shard.mu.Lock()
		for fp, firstSeen := range shard.entries {
			if firstSeen.Before(cutoff) {
				delete(shard.entries, fp)
				purged++
			}
		}
		shard.mu.Unlock()
	}
	return purged
}

func (l *Ledger) Len() int {
	n := 0
	for i := range l.shards {
		shard := &l.shards[i]
		shard.mu.Lock()
		n += len(shard.entries)
		shard.mu.Unlock()
	}
	return n
}
