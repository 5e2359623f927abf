package notify

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// shardCount 分片数，必须是 2 的幂
const shardCount = 64

func shardOf(key string) int {
	return int(xxhash.Sum64String(key) & (shardCount - 1))
}

func shardOfUser(userID uint64) int {
	return int(userID & (shardCount - 1))
}

// Fingerprint 去重指纹 hash(userID, type, message)
func Fingerprint(userID uint64, t Type, message string) string {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(userID, 10))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(t.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(message)
	return strconv.FormatUint(d.Sum64(), 16)
}
