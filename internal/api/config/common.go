package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg，环境变量 CARHUB_* 可覆盖文件配置
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.SetEnvPrefix("CARHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Notify = cfg.Notify.WithDefaults()

	Cfg = &cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("jwt.expire", 72)
	v.SetDefault("logstash.index", "logstash-carhub")
	v.SetDefault("notify.heartbeat_period", "30s")
}

// WithDefaults 未配置或为零值的项回落到默认值
func (c NotifyConfig) WithDefaults() NotifyConfig {
	if c.DedupWindow <= 0 {
		c.DedupWindow = 5 * time.Minute
	}
	if c.BatchWindow <= 0 {
		c.BatchWindow = 2 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 30 * time.Second
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	if c.QueueMaxAge <= 0 {
		c.QueueMaxAge = 24 * time.Hour
	}
	if c.ReplayBatchSize <= 0 {
		c.ReplayBatchSize = 5
	}
	if c.ReplayPacing <= 0 {
		c.ReplayPacing = 300 * time.Millisecond
	}
	if c.HeartbeatPeriod <= 0 {
		c.HeartbeatPeriod = 30 * time.Second
	}
	if c.CleanupHorizon <= 0 {
		c.CleanupHorizon = time.Hour
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// HeartbeatSpec 心跳巡检的 cron 表达式
func (c NotifyConfig) HeartbeatSpec() string {
	return "@every " + c.HeartbeatPeriod.String()
}
