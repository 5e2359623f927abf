package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisSlow = 100 * time.Millisecond
	redisArgMaxLen   = 256
	redisRedacted    = "[PROTECTED]"
	lockKeyMarker    = ":lock:"
)

// RedisLoggerHook 记录 Redis 错误与慢命令。
// 缓存命中失败 (redis.Nil) 是偏好/目录缓存的常态，不记录
type RedisLoggerHook struct {
	slow time.Duration
}

func NewRedisLogger(slow time.Duration) *RedisLoggerHook {
	if slow <= 0 {
		slow = defaultRedisSlow
	}
	return &RedisLoggerHook{slow: slow}
}

func (s *RedisLoggerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis Dial Error",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

func (s *RedisLoggerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		if err != nil && ignorableRedisErr(cmd.Name(), err) {
			return err
		}
		if err == nil && elapsed < s.slow {
			return nil
		}

		fields := []any{
			log.String("command", cmd.Name()),
			log.String("args", redisArgs(cmd.Name(), cmd.Args())),
			log.Duration("latency", elapsed),
		}
		if err != nil {
			log.ErrorContext(ctx, "Redis Error", append(fields, log.Any("err", err))...)
		} else {
			log.WarnContext(ctx, "Redis Slow", fields...)
		}
		return err
	}
}

func (s *RedisLoggerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)

		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			log.ErrorContext(ctx, "Redis Pipeline Error",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", elapsed),
				log.Any("err", err))
		case elapsed >= s.slow:
			log.WarnContext(ctx, "Redis Pipeline Slow",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", elapsed))
		}
		return err
	}
}

func ignorableRedisErr(cmdName string, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	return cmdName == "client" && strings.Contains(err.Error(), "setinfo")
}

// redisArgs 格式化命令参数：认证命令整体脱敏，锁的持有者标识脱敏，缓存值截断
func redisArgs(cmdName string, args []any) string {
	if cmdName == "auth" || cmdName == "hello" {
		return redisRedacted
	}

	parts := make([]string, 0, len(args))
	lockKey := false
	for i, arg := range args {
		v := fmt.Sprint(arg)
		switch {
		case i == 1 && strings.Contains(v, lockKeyMarker):
			lockKey = true
		case i == 2 && lockKey:
			v = redisRedacted
		}
		if len(v) > redisArgMaxLen {
			v = v[:redisArgMaxLen] + "...(truncated)"
		}
		parts = append(parts, v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
