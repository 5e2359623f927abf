package ws

import (
	"errors"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnNotFound   = errors.New("ws: connection not found")
	ErrConnClosed     = errors.New("ws: connection closed")
	ErrSendBufferFull = errors.New("ws: send buffer full")
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
)

// Conn 单个 WebSocket 连接。写操作全部经由 writePump 串行化，
// 读操作由 readPump 解码为原始帧投递到 inbound
type Conn struct {
	ID     string
	UserID uint64

	ws       *websocket.Conn
	send     chan []byte
	inbound  chan []byte
	done     chan struct{}
	once     sync.Once
	lastPong atomic.Int64
}

func newConn(id string, userID uint64, ws *websocket.Conn, buffer int) *Conn {
	c := &Conn{
		ID:      id,
		UserID:  userID,
		ws:      ws,
		send:    make(chan []byte, buffer),
		inbound: make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
	c.lastPong.Store(time.Now().UnixNano())

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return nil
	})
	return c
}

// Inbound 客户端发来的文本帧，连接关闭后 channel 被关闭
func (c *Conn) Inbound() <-chan []byte { return c.inbound }

// Done 连接关闭信号
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

func (c *Conn) ping() error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	// WriteControl 可与其他写方法并发调用
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Conn) alive(window time.Duration) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	return time.Since(time.Unix(0, c.lastPong.Load())) <= window
}

func (c *Conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}

func (c *Conn) writePump() {
	defer c.close()
	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn("WS 推送失败", "connID", c.ID, "userID", c.UserID, "err", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) readPump() {
	defer func() {
		close(c.inbound)
		c.close()
	}()
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("WS 连接异常断开", "connID", c.ID, "userID", c.UserID, "err", err)
			}
			return
		}
		// 任何入站帧都视为存活
		c.lastPong.Store(time.Now().UnixNano())
		if msgType != websocket.TextMessage {
			continue
		}
		select {
		case c.inbound <- data:
		case <-c.done:
			return
		}
	}
}
