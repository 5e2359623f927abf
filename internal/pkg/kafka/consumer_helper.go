package kafka

import (
	"Carhub/internal/pkg/logger"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/codeGROOVE-dev/retry"
	"github.com/goccy/go-json"
)

const (
	batchSize    = 32
	batchTimeout = 1 * time.Second

	maxAttempts = 8
)

// ErrSkipMessage 无法处理且重试无意义的消息，记录后直接提交
var ErrSkipMessage = errors.New("skip message")

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 拉取一批消息并执行业务逻辑
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				if len(batch) > 0 {
					processBatch(session, batch, logic)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				// 清空缓冲区 & 重置定时器
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 并发处理一批消息，单条失败按退避重试，超过次数后放弃
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	var wg sync.WaitGroup

	for _, msg := range messages {
		wg.Add(1)
		go func(m *sarama.ConsumerMessage) {
			defer wg.Done()
			handleMessage(session.Context(), m, logic)
		}(msg)
	}

	wg.Wait()

	if len(messages) > 0 {
		lastMsg := messages[len(messages)-1]
		session.MarkMessage(lastMsg, "")
	}
}

func handleMessage(ctx context.Context, m *sarama.ConsumerMessage, logic LogicFunc) {
	ctx = logger.NewTrace(ctx, "kafka-"+m.Topic)
	err := retry.Do(
		func() error {
			return logic(ctx, m)
		},
		retry.Attempts(maxAttempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrSkipMessage)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WarnContext(ctx, "process message error, retrying", "attempt", n, "err", err)
		}),
	)
	if err == nil || ctx.Err() != nil {
		return
	}
	if errors.Is(err, ErrSkipMessage) {
		log.WarnContext(ctx, "message skipped", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
		return
	}
	log.ErrorContext(ctx, "message dropped after retries",
		"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
}

// ToCanalMessage 将kafka消息转换为canal消息结构体，只接受 tables 中的表
func ToCanalMessage(msg *sarama.ConsumerMessage, tables ...string) (*CanalMessage, error) {
	var canalMsg CanalMessage
	if err := json.Unmarshal(msg.Value, &canalMsg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal canal message: %v", ErrSkipMessage, err)
	}
	if canalMsg.IsDDL {
		return nil, fmt.Errorf("%w: ddl on %s", ErrSkipMessage, canalMsg.Table)
	}
	if !slices.Contains(tables, canalMsg.Table) {
		return nil, fmt.Errorf("%w: unexpected table %s", ErrSkipMessage, canalMsg.Table)
	}
	if len(canalMsg.Data) == 0 {
		return nil, fmt.Errorf("%w: data is empty", ErrSkipMessage)
	}
	return &canalMsg, nil
}

// StrToUint64 canal 的列值均为字符串，解析失败返回 0
func StrToUint64(v interface{}) uint64 {
	switch val := v.(type) {
	case string:
		n, _ := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
		return n
	case float64:
		return uint64(val)
	case json.Number:
		n, _ := strconv.ParseUint(val.String(), 10, 64)
		return n
	default:
		return 0
	}
}

// StrValue 列值转字符串，NULL 返回空串
func StrValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// BoolValue tinyint(1) 列的取值
func BoolValue(v interface{}) bool {
	switch StrValue(v) {
	case "1", "true", "TRUE":
		return true
	default:
		return false
	}
}
