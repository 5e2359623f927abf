package kafka

import (
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

const (
	MetaIP     = "ip"
	MetaDevice = "device"
)

type loginHandler struct {
	notifier Notifier
}

// NewLoginHandler user_logins 表：新设备登录提醒
func NewLoginHandler(notifier Notifier) sarama.ConsumerGroupHandler {
	h := &loginHandler{notifier: notifier}
	return newCanalHandler("login", h.handleRow, "user_logins")
}

func (h *loginHandler) handleRow(ctx context.Context, msg *CanalMessage, i int) error {
	if msg.Type != INSERT {
		return nil
	}
	row := msg.Data[i]
	if !BoolValue(row["is_new_device"]) {
		return nil
	}
	userID := StrToUint64(row["user_id"])
	if userID == 0 {
		return nil
	}
	device := StrValue(row["device"])
	if device == "" {
		device = "an unknown device"
	}
	ip := StrValue(row["ip"])

	_, err := h.notifier.CreateAndDeliver(ctx, userID,
		"New sign-in",
		fmt.Sprintf("Your account was accessed from %s (%s)", device, ip),
		notify.TypeAccountActivity,
		&service.NotifyOptions{
			Link:     "/settings/security",
			Metadata: map[string]any{MetaIP: ip, MetaDevice: device},
			Source:   sourceOf(msg),
			DedupKey: "login:" + idStr(StrToUint64(row["id"])),
		})
	return err
}
