package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	KVDriverSQLite = "sqlite"
	KVDriverRedis  = "redis"
	KVDriverMemory = "memory"
)

const MimeJSON = "application/json"

// ModuleContentKey 模块离线内容在对象存储中的路径
func ModuleContentKey(moduleID string) string {
	return "modules/" + moduleID + ".json"
}
