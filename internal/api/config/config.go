package config

import "time"

// Config 配置主体
type Config struct {
	Server                ServerConfig   `mapstructure:"server"`
	DB                    DBConfig       `mapstructure:"database"`
	Redis                 RedisConfig    `mapstructure:"redis"`
	Mongo                 MongoConfig    `mapstructure:"mongo"`
	Logstash              LogstashConfig `mapstructure:"logstash"`
	JWT                   JWTConfig      `mapstructure:"jwt"`
	Notify                NotifyConfig   `mapstructure:"notify"`
	Kafka                 KafkaConfig    `mapstructure:"kafka"`
	KafkaListingConsumer  KafkaConsumer  `mapstructure:"kafka_listing_consumer"`
	KafkaFavoriteConsumer KafkaConsumer  `mapstructure:"kafka_favorite_consumer"`
	KafkaViewConsumer     KafkaConsumer  `mapstructure:"kafka_view_consumer"`
	KafkaPaymentConsumer  KafkaConsumer  `mapstructure:"kafka_payment_consumer"`
	KafkaLoginConsumer    KafkaConsumer  `mapstructure:"kafka_login_consumer"`
	KafkaMessageConsumer  KafkaConsumer  `mapstructure:"kafka_message_consumer"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // 为空时放行所有来源
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// SlowThreshold 超过该耗时的命令记为慢命令
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// LogstashConfig 远程日志，Addr 为空时只输出到 stdout
type LogstashConfig struct {
	Addr  string `mapstructure:"addr"`
	Index string `mapstructure:"index"`
	Token string `mapstructure:"token"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // 小时
}

// NotifyConfig 通知投递参数
type NotifyConfig struct {
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	BatchWindow     time.Duration `mapstructure:"batch_window"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	QueueMaxAge     time.Duration `mapstructure:"queue_max_age"`
	ReplayBatchSize int           `mapstructure:"replay_batch_size"`
	ReplayPacing    time.Duration `mapstructure:"replay_pacing"`
	HeartbeatPeriod time.Duration `mapstructure:"heartbeat_period"`
	CleanupHorizon  time.Duration `mapstructure:"cleanup_horizon"`
	SendBuffer      int           `mapstructure:"send_buffer"`
}

type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	ClientID string         `mapstructure:"client_id"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

// KafkaConsumer 单个 canal 主题的消费配置
type KafkaConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}
