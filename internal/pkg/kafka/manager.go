package kafka

import (
	"Carhub/internal/api/config"
	"Carhub/internal/service"
	"context"
	"errors"
	log "log/slog"
	"sync"

	"github.com/IBM/sarama"
)

type consumerEntry struct {
	name    string
	topic   string
	group   sarama.ConsumerGroup
	handler sarama.ConsumerGroupHandler
}

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	consumers []consumerEntry
}

// NewConsumerManager 为每个配置了 topic 的 canal 表创建消费组
func NewConsumerManager(
	cfg *config.Config,
	notifications service.NotificationService,
	messages service.MessageNotifier,
	listings service.ListingDirectory,
) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg.Kafka)

	specs := []struct {
		name     string
		consumer config.KafkaConsumer
		handler  sarama.ConsumerGroupHandler
	}{
		{name: "listing", consumer: cfg.KafkaListingConsumer, handler: NewListingHandler(notifications)},
		{name: "favorite", consumer: cfg.KafkaFavoriteConsumer, handler: NewFavoriteHandler(notifications, listings)},
		{name: "view", consumer: cfg.KafkaViewConsumer, handler: NewViewHandler(notifications, listings)},
		{name: "payment", consumer: cfg.KafkaPaymentConsumer, handler: NewPaymentHandler(notifications)},
		{name: "login", consumer: cfg.KafkaLoginConsumer, handler: NewLoginHandler(notifications)},
		{name: "message", consumer: cfg.KafkaMessageConsumer, handler: NewMessageHandler(messages)},
	}

	m := &ConsumerManager{}
	for _, spec := range specs {
		if spec.consumer.Topic == "" {
			log.Warn("kafka consumer disabled: topic not configured", "consumer", spec.name)
			continue
		}
		group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, spec.consumer.GroupID, saramaCfg)
		if err != nil {
			m.close()
			return nil, err
		}
		m.consumers = append(m.consumers, consumerEntry{
			name:    spec.name,
			topic:   spec.consumer.Topic,
			group:   group,
			handler: spec.handler,
		})
	}
	return m, nil
}

// Start 启动所有消费者，阻塞到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range m.consumers {
		wg.Add(2)
		go func(c consumerEntry) {
			defer wg.Done()
			log.Info("Kafka consumer started", "consumer", c.name, "topic", c.topic)
			for {
				if err := c.group.Consume(ctx, []string{c.topic}, c.handler); err != nil {
					if errors.Is(err, sarama.ErrClosedConsumerGroup) {
						return
					}
					log.Error("Error from consumer", "consumer", c.name, "err", err)
				}
				if ctx.Err() != nil {
					return
				}
			}
		}(c)
		go func(c consumerEntry) {
			defer wg.Done()
			for {
				select {
				case err, ok := <-c.group.Errors():
					if !ok {
						return
					}
					log.Error("Kafka consumer group error", "consumer", c.name, "err", err)
				case <-ctx.Done():
					return
				}
			}
		}(c)
	}

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")
	m.close()
	wg.Wait()
	return nil
}

func (m *ConsumerManager) close() {
	for _, c := range m.consumers {
		if err := c.group.Close(); err != nil {
			log.Error("Failed to close consumer", "consumer", c.name, "err", err)
		}
	}
}
