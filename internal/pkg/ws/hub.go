package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub 按 connectionID 索引的连接表，实现推送通道
type Hub struct {
	conns       sync.Map // connID -> *Conn
	buffer      int
	aliveWindow time.Duration
}

// NewHub buffer 为每个连接的发送缓冲，aliveWindow 内无 pong 即视为失联
func NewHub(buffer int, aliveWindow time.Duration) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, aliveWindow: aliveWindow}
}

// Attach 接管已升级的连接并启动读写协程
func (h *Hub) Attach(ws *websocket.Conn, userID uint64) *Conn {
	c := newConn(uuid.NewString(), userID, ws, h.buffer)
	h.conns.Store(c.ID, c)
	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) get(connID string) (*Conn, bool) {
	v, ok := h.conns.Load(connID)
	if !ok {
		return nil, false
	}
	return v.(*Conn), true
}

// Send 非阻塞投递，缓冲满或连接已关闭时返回错误
func (h *Hub) Send(connID string, payload []byte) error {
	c, ok := h.get(connID)
	if !ok {
		return ErrConnNotFound
	}
	return c.enqueue(payload)
}

func (h *Hub) Ping(connID string) error {
	c, ok := h.get(connID)
	if !ok {
		return ErrConnNotFound
	}
	return c.ping()
}

func (h *Hub) Alive(connID string) bool {
	c, ok := h.get(connID)
	if !ok {
		return false
	}
	return c.alive(h.aliveWindow)
}

// Close 关闭并移除连接，可重复调用
func (h *Hub) Close(connID string) {
	v, ok := h.conns.LoadAndDelete(connID)
	if !ok {
		return
	}
	v.(*Conn).close()
}

// CloseAll 进程退出时关闭全部连接
func (h *Hub) CloseAll() {
	h.conns.Range(func(key, value any) bool {
		h.conns.Delete(key)
		value.(*Conn).close()
		return true
	})
}

func (h *Hub) Len() int {
	n := 0
	h.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
