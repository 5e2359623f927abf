package presence

import "sync"

type convShard struct {
	mu sync.Mutex
	// userID -> counterpartID -> 打开该会话的连接数
	open map[uint64]map[uint64]int
}

// Conversations 记录用户当前打开的私信会话，用于抑制新消息通知。
// 同一用户多个连接可同时打开同一会话，按引用计数维护
type Conversations struct {
	shards [shardCount]convShard
}

func NewConversations() *Conversations {
	c := &Conversations{}
	for i := range c.shards {
		c.shards[i].open = make(map[uint64]map[uint64]int)
	}
	return c
}

func (c *Conversations) shard(userID uint64) *convShard {
	return &c.shards[userID&(shardCount-1)]
}

// Enter 进入与 counterpartID 的会话
func (c *Conversations) Enter(userID, counterpartID uint64) {
	s := c.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.open[userID]
	if !ok {
		set = make(map[uint64]int)
		s.open[userID] = set
	}
	set[counterpartID]++
}

// Leave 离开会话，未进入时为空操作
func (c *Conversations) Leave(userID, counterpartID uint64) {
	s := c.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.open[userID]
	if !ok {
		return
	}
	if n, exists := set[counterpartID]; exists {
		if n <= 1 {
			delete(set, counterpartID)
		} else {
			set[counterpartID] = n - 1
		}
	}
	if len(set) == 0 {
		delete(s.open, userID)
	}
}

// IsActive userID 是否正打开与 counterpartID 的会话
func (c *Conversations) IsActive(userID, counterpartID uint64) bool {
	s := c.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[userID][counterpartID] > 0
}

// ActiveCount 打开会话的用户数
func (c *Conversations) ActiveCount() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.open)
		s.mu.Unlock()
	}
	return n
}
