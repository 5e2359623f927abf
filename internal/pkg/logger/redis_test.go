package logger

import (
	"strings"
	"testing"
)

func TestRedisArgs(t *testing.T) {
	long := strings.Repeat("x", redisArgMaxLen+10)
	cases := []struct {
		name string
		cmd  string
		args []any
		want string
	}{
		{name: "auth", cmd: "auth", args: []any{"auth", "secret"}, want: redisRedacted},
		{name: "plain get", cmd: "get", args: []any{"get", "notify:pref:1"}, want: "[get notify:pref:1]"},
		{name: "lock owner", cmd: "set", args: []any{"set", "notify:msg:lock:1:2", "owner-uuid", "nx"}, want: "[set notify:msg:lock:1:2 " + redisRedacted + " nx]"},
		{name: "cache value", cmd: "set", args: []any{"set", "notify:pref:1", long}, want: "[set notify:pref:1 " + long[:redisArgMaxLen] + "...(truncated)]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := redisArgs(tc.cmd, tc.args); got != tc.want {
				t.Fatalf("redisArgs = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewRedisLoggerDefaultThreshold(t *testing.T) {
	if got := NewRedisLogger(0).slow; got != defaultRedisSlow {
		t.Fatalf("slow = %v, want %v", got, defaultRedisSlow)
	}
}
