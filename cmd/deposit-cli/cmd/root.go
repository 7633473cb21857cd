package cmd

import (
	"fmt"
	"os"

	"deposit-core/pkg/config"

	"github.com/spf13/cobra"
)

var (
	appID     string
	appSecret string
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "deposit-cli",
	Short: "充值服务运维命令行工具",
	Long: `deposit-core 的运维工具。
支持计算/校验回调签名、查询服务商资产、校验提币地址以及订阅入账事件。`,
	SilenceUsage: true,
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appID, "app-id", "", "provider app id (默认读取配置 provider.app_id)")
	rootCmd.PersistentFlags().StringVar(&appSecret, "app-secret", "", "provider app secret (默认读取配置 provider.app_secret)")
}

// loadConfig 读取 config.yaml / 环境变量, 命令行参数优先
func loadConfig() config.Config {
	config.Init()
	cfg := config.Global
	if appID != "" {
		cfg.Provider.AppID = appID
	}
	if appSecret != "" {
		cfg.Provider.AppSecret = appSecret
	}
	return cfg
}

// credentials 优先使用命令行参数, 避免 sign/verify 依赖配置文件
func credentials() (string, string) {
	if appID != "" && appSecret != "" {
		return appID, appSecret
	}
	cfg := loadConfig()
	return cfg.Provider.AppID, cfg.Provider.AppSecret
}
