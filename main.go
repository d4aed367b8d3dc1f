// @title CoderEdu 离线同步网关 API
// @version 1.0
// @description 学习进度离线同步网关：幂等 upsert 接口与模块离线内容包。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"coder_edu_sync/internal/cli"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env 不存在时忽略，环境变量仍然生效
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
