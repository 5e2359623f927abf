package handler

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/logger"
	"Carhub/internal/pkg/presence"
	"Carhub/internal/pkg/response"
	"Carhub/internal/pkg/ws"
	"Carhub/internal/service"
	"context"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 CORS 中间件与 token 鉴权共同约束
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	hub           *ws.Hub
	notifications service.NotificationService
	preferences   service.PreferenceService
	conversations *presence.Conversations
}

func NewWsHandler(
	hub *ws.Hub,
	notifications service.NotificationService,
	preferences service.PreferenceService,
	conversations *presence.Conversations,
) *WsHandler {
	return &WsHandler{
		hub:           hub,
		notifications: notifications,
		preferences:   preferences,
		conversations: conversations,
	}
}

// Connect 升级为 WebSocket 连接，鉴权由 AuthMiddleware 通过 ?token= 完成
func (s *WsHandler) Connect(c *gin.Context) {
	userID := c.GetUint64("user_id")
	if userID == 0 {
		response.Error(c, service.UnauthorizedError)
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "userID", userID, "err", err)
		return
	}
	conn := s.hub.Attach(wsConn, userID)

	// 连接生命周期独立于 HTTP 请求
	ctx := logger.WithTraceID(context.Background(), "ws-"+conn.ID)
	log.InfoContext(ctx, "用户 WS 连接已建立", "userID", userID, "connID", conn.ID)

	s.notifications.OnConnect(ctx, userID, conn.ID)
	s.dispatch(ctx, conn)
}

// dispatch 串行处理该连接的客户端事件，连接关闭后清理会话与在线状态
func (s *WsHandler) dispatch(ctx context.Context, conn *ws.Conn) {
	entered := make(map[uint64]int)
	defer func() {
		for counterpartID, n := range entered {
			for range n {
				s.conversations.Leave(conn.UserID, counterpartID)
			}
		}
		s.notifications.OnDisconnect(ctx, conn.ID)
		s.hub.Close(conn.ID)
		log.InfoContext(ctx, "用户 WS 连接已断开", "userID", conn.UserID, "connID", conn.ID)
	}()

	for raw := range conn.Inbound() {
		var ev dto.ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.replyError(ctx, conn.ID, "", service.ErrParamInvalid)
			continue
		}
		if err := s.handleEvent(ctx, conn, &ev, entered); err != nil {
			log.WarnContext(ctx, "客户端事件处理失败", "connID", conn.ID, "event", ev.Event, "err", err)
			s.replyError(ctx, conn.ID, ev.Event, err)
		}
	}
}

func (s *WsHandler) handleEvent(ctx context.Context, conn *ws.Conn, ev *dto.ClientEvent, entered map[uint64]int) error {
	switch ev.Event {
	case dto.EventNotificationDelivered:
		var req dto.NotificationRefReq
		if err := decodeEventData(ev, &req); err != nil {
			return err
		}
		return s.notifications.Confirm(ctx, conn.UserID, req.ID)

	case dto.EventMarkNotificationRead:
		var req dto.NotificationRefReq
		if err := decodeEventData(ev, &req); err != nil {
			return err
		}
		return s.notifications.MarkRead(ctx, conn.UserID, req.ID)

	case dto.EventUpdatePreferences:
		var req dto.PreferenceDTO
		if err := decodeEventData(ev, &req); err != nil {
			return err
		}
		_, err := s.preferences.Update(ctx, conn.UserID, &req)
		return err

	case dto.EventEnterConversation:
		var req dto.ConversationReq
		if err := decodeEventData(ev, &req); err != nil {
			return err
		}
		if req.CounterpartID == 0 || req.CounterpartID == conn.UserID {
			return service.ErrParamInvalid
		}
		s.conversations.Enter(conn.UserID, req.CounterpartID)
		entered[req.CounterpartID]++
		return nil

	case dto.EventLeaveConversation:
		var req dto.ConversationReq
		if err := decodeEventData(ev, &req); err != nil {
			return err
		}
		// 只能离开本连接进入过的会话，避免影响同一用户的其他连接
		if entered[req.CounterpartID] == 0 {
			return nil
		}
		s.conversations.Leave(conn.UserID, req.CounterpartID)
		if entered[req.CounterpartID]--; entered[req.CounterpartID] == 0 {
			delete(entered, req.CounterpartID)
		}
		return nil

	default:
		return service.ErrUnknownClientEvent
	}
}

func decodeEventData(ev *dto.ClientEvent, v any) error {
	if len(ev.Data) == 0 {
		return service.ErrParamInvalid
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return service.ErrParamInvalid
	}
	return nil
}

func (s *WsHandler) replyError(ctx context.Context, connID, event string, err error) {
	payload, encErr := json.Marshal(dto.PushEvent{
		Event: dto.EventError,
		Data:  dto.ErrorEvent{Event: event, Message: clientErrorMessage(err)},
	})
	if encErr != nil {
		return
	}
	if sendErr := s.hub.Send(connID, payload); sendErr != nil {
		log.DebugContext(ctx, "WS 错误回执发送失败", "connID", connID, "err", sendErr)
	}
}

// clientErrorMessage 只向客户端暴露业务错误文案
func clientErrorMessage(err error) string {
	for known := range service.ErrorMap {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return service.UnExpectedError.Error()
}
