package presence

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

type entry struct {
	conns      map[string]struct{}
	lastSeenAt time.Time
}

type userShard struct {
	mu    sync.RWMutex
	users map[uint64]*entry
}

type connShard struct {
	mu    sync.RWMutex
	conns map[string]uint64
}

// ConnRef 连接快照，供心跳巡检使用
type ConnRef struct {
	ConnID string
	UserID uint64
}

// Registry 在线状态表：userID <-> connectionID 双向索引 + 最近活跃时间。
// 用户侧与连接侧各自分片加锁，不持有任何全局锁
type Registry struct {
	users  [shardCount]userShard
	conns  [shardCount]connShard
	online atomic.Int64
	total  atomic.Int64
	now    func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{now: time.Now}
	for i := 0; i < shardCount; i++ {
		r.users[i].users = make(map[uint64]*entry)
		r.conns[i].conns = make(map[string]uint64)
	}
	return r
}

func (r *Registry) userShard(userID uint64) *userShard {
	return &r.users[userID&(shardCount-1)]
}

func (r *Registry) connShard(connID string) *connShard {
	return &r.conns[xxhash.Sum64String(connID)&(shardCount-1)]
}

// Register 登记连接，返回该用户是否由离线变为在线。
// 加锁顺序固定为用户分片在前、连接分片在后，两侧索引在同一临界区内更新
func (r *Registry) Register(userID uint64, connID string) (becameOnline bool) {
	us := r.userShard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	cs := r.connShard(connID)
	cs.mu.Lock()
	if _, exists := cs.conns[connID]; !exists {
		r.total.Add(1)
	}
	cs.conns[connID] = userID
	cs.mu.Unlock()

	e, ok := us.users[userID]
	if !ok {
		e = &entry{conns: make(map[string]struct{}, 1)}
		us.users[userID] = e
		r.online.Add(1)
		becameOnline = true
	}
	e.conns[connID] = struct{}{}
	e.lastSeenAt = r.now()
	return becameOnline
}

// Unregister 注销连接，可重复调用；返回所属用户、该用户是否已无连接、连接是否存在
func (r *Registry) Unregister(connID string) (userID uint64, wentOffline bool, ok bool) {
	userID, ok = r.UserOf(connID)
	if !ok {
		return 0, false, false
	}

	us := r.userShard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()

	// 拿到用户分片锁后复核，期间连接可能已被并发注销
	cs := r.connShard(connID)
	cs.mu.Lock()
	owner, exists := cs.conns[connID]
	if exists && owner == userID {
		delete(cs.conns, connID)
		r.total.Add(-1)
	}
	cs.mu.Unlock()
	if !exists || owner != userID {
		return 0, false, false
	}

	e, found := us.users[userID]
	if !found {
		return userID, false, true
	}
	delete(e.conns, connID)
	e.lastSeenAt = r.now()
	if len(e.conns) == 0 {
		delete(us.users, userID)
		r.online.Add(-1)
		wentOffline = true
	}
	return userID, wentOffline, true
}

func (r *Registry) IsOnline(userID uint64) bool {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()
	_, ok := us.users[userID]
	return ok
}

// ConnectionsFor 返回用户当前全部连接的副本
func (r *Registry) ConnectionsFor(userID uint64) []string {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()
	e, ok := us.users[userID]
	if !ok {
		return nil
	}
	res := make([]string, 0, len(e.conns))
	for id := range e.conns {
		res = append(res, id)
	}
	return res
}

// Touch 刷新最近活跃时间
func (r *Registry) Touch(userID uint64) {
	us := r.userShard(userID)
	us.mu.Lock()
	if e, ok := us.users[userID]; ok {
		e.lastSeenAt = r.now()
	}
	us.mu.Unlock()
}

func (r *Registry) LastSeen(userID uint64) (time.Time, bool) {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()
	e, ok := us.users[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastSeenAt, true
}

// UserOf 连接所属用户
func (r *Registry) UserOf(connID string) (uint64, bool) {
	cs := r.connShard(connID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	userID, ok := cs.conns[connID]
	return userID, ok
}

// Connections 全部连接快照，逐分片读取
func (r *Registry) Connections() []ConnRef {
	res := make([]ConnRef, 0, r.total.Load())
	for i := 0; i < shardCount; i++ {
		cs := &r.conns[i]
		cs.mu.RLock()
		for connID, userID := range cs.conns {
			res = append(res, ConnRef{ConnID: connID, UserID: userID})
		}
		cs.mu.RUnlock()
	}
	return res
}

// OnlineCount 在线用户数
func (r *Registry) OnlineCount() int { return int(r.online.Load()) }

// ConnectionCount 连接总数
func (r *Registry) ConnectionCount() int { return int(r.total.Load()) }
