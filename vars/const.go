package vars

import (
	"os"
)

// GetEnv 获取环境变量，如果不存在则返回默认值
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

const (
	// 服务名称, 用于日志和 /health
	ServiceName = "letter-portal"

	// API 前缀
	APIPrefix = "/api/v1"

	// 请求头
	HeaderRequestID = "X-Request-ID"
	HeaderActorID   = "X-Actor-ID"

	// 列表分页
	DefaultPageSize = 20
	MaxPageSize     = 100

	// 审计任务每批读取的信件数
	AuditBatchSize = 200
)

// 环境变量名（支持 Docker 部署）
const (
	EnvConfigFile = "LETTER_CONFIG"
	EnvHTTPAddr   = "LETTER_HTTP_ADDR"
	EnvDBDriver   = "LETTER_DB_DRIVER"
	EnvDBDSN      = "LETTER_DB_DSN"
	EnvLogLevel   = "LOG_LEVEL"
	EnvLogEnv     = "LOG_ENV"

	// PG
	EnvPGHost = "PGHOST"
	EnvPGPort = "PGPORT"
	EnvPGUser = "PGUSER"
	EnvPGPwd  = "PGPWD"
	EnvPGDB   = "PGDB"
)
