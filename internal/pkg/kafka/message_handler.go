package kafka

import (
	"Carhub/internal/service"
	"context"

	"github.com/IBM/sarama"
)

type messageHandler struct {
	messages service.MessageNotifier
}

// NewMessageHandler messages 表：私信通知，交给 MessageNotifier 处理会话抑制与未读合并
func NewMessageHandler(messages service.MessageNotifier) sarama.ConsumerGroupHandler {
	h := &messageHandler{messages: messages}
	return newCanalHandler("message", h.handleRow, "messages")
}

func (h *messageHandler) handleRow(ctx context.Context, msg *CanalMessage, i int) error {
	if msg.Type != INSERT {
		return nil
	}
	row := msg.Data[i]
	_, err := h.messages.OnMessage(ctx, &service.MessageEvent{
		MessageID:   StrToUint64(row["id"]),
		SenderID:    StrToUint64(row["sender_id"]),
		RecipientID: StrToUint64(row["recipient_id"]),
		ThreadID:    StrValue(row["thread_id"]),
		Content:     StrValue(row["content"]),
	})
	return err
}
