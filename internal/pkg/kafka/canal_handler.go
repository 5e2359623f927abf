package kafka

import (
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"strconv"

	"github.com/IBM/sarama"
)

// Notifier 生产者侧的投递入口
type Notifier interface {
	CreateAndDeliver(ctx context.Context, userID uint64, title, message string, t notify.Type, opts *service.NotifyOptions) (*mongo.Notification, error)
}

// RowFunc 处理 canal 消息中的第 i 行
type RowFunc func(ctx context.Context, msg *CanalMessage, i int) error

// canalHandler 通用的 canal 表消费者，逐行交给 handle
type canalHandler struct {
	name   string
	tables []string
	handle RowFunc
}

func newCanalHandler(name string, handle RowFunc, tables ...string) *canalHandler {
	return &canalHandler{name: name, tables: tables, handle: handle}
}

func (h *canalHandler) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *canalHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (h *canalHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return pullMessageBatch(session, claim, h.consume)
}

// consume 行级失败会让整条消息重试，已投递的行由去重账本拦截
func (h *canalHandler) consume(ctx context.Context, m *sarama.ConsumerMessage) error {
	msg, err := ToCanalMessage(m, h.tables...)
	if err != nil {
		return err
	}
	for i := range msg.Data {
		if err = h.handle(ctx, msg, i); err != nil {
			return err
		}
	}
	return nil
}

func sourceOf(msg *CanalMessage) string {
	return consts.SourceKafka + ":" + msg.Table
}

func idStr(id uint64) string {
	return strconv.FormatUint(id, 10)
}
