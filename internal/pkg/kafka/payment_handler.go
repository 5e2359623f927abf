package kafka

import (
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

const (
	MetaPaymentID = "paymentId"
	MetaAmount    = "amount"
	MetaCurrency  = "currency"
)

type paymentHandler struct {
	notifier Notifier
}

// NewPaymentHandler payments 表：支付成功 / 失败
func NewPaymentHandler(notifier Notifier) sarama.ConsumerGroupHandler {
	h := &paymentHandler{notifier: notifier}
	return newCanalHandler("payment", h.handleRow, "payments")
}

func (h *paymentHandler) handleRow(ctx context.Context, msg *CanalMessage, i int) error {
	row := msg.Data[i]
	status := StrValue(row["status"])
	if status != consts.PaymentStatusCompleted && status != consts.PaymentStatusFailed {
		return nil
	}
	switch msg.Type {
	case INSERT:
	case UPDATE:
		old, ok := msg.Changed(i, "status")
		if !ok || StrValue(old) == status {
			return nil
		}
	default:
		return nil
	}

	paymentID := StrToUint64(row["id"])
	userID := StrToUint64(row["user_id"])
	if paymentID == 0 || userID == 0 {
		return nil
	}
	amount := StrValue(row["amount"])
	currency := StrValue(row["currency"])

	t := notify.TypePaymentCompleted
	title := "Payment completed"
	message := fmt.Sprintf("Your payment of %s %s was successful", amount, currency)
	if status == consts.PaymentStatusFailed {
		t = notify.TypePaymentFailed
		title = "Payment failed"
		message = fmt.Sprintf("Your payment of %s %s could not be processed", amount, currency)
	}

	_, err := h.notifier.CreateAndDeliver(ctx, userID, title, message, t, &service.NotifyOptions{
		Link:      "/payments/" + idStr(paymentID),
		SubjectID: paymentID,
		Metadata:  map[string]any{MetaPaymentID: paymentID, MetaAmount: amount, MetaCurrency: currency},
		Source:    sourceOf(msg),
		DedupKey:  fmt.Sprintf("payment:%d:%s", paymentID, status),
	})
	return err
}
