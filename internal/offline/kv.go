package offline

import "context"

// KV 本地持久化键值存储，pkg/database 下的 SQLite / Redis / 内存实现均满足该接口
type KV interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
}
