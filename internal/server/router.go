package server

import (
	"deposit-core/internal/handler"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers 聚合所有路由依赖
type Handlers struct {
	Webhook  *handler.WebhookHandler
	Balance  *handler.BalanceHandler
	Settings *handler.SettingsHandler
	Ledger   *handler.LedgerHandler
	Wallet   *handler.WalletHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers, internalToken string) *gin.Engine {
	// 0. 初始化监控指标与校验器
	monitor.Init()
	validator.Init()

	// 1. 创建 Engine
	r := gin.New()

	// 2. 注册通用中间件
	r.Use(gin.Recovery(), RequestID(), AccessLog(), monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 对外 API
	api := r.Group("/api/v1")
	{
		api.POST("/webhooks/provider", h.Webhook.Receive)

		users := api.Group("/users/:id")
		users.GET("/balances", h.Balance.GetBalances)
		users.GET("/transactions", h.Balance.ListTransactions)
	}

	// 5. 内部 API (需要 X-Internal-Token)
	internal := r.Group("/internal/v1", InternalAuth(internalToken))
	{
		users := internal.Group("/users/:id")
		users.GET("/auto-convert", h.Settings.GetAutoConvert)
		users.PUT("/auto-convert", h.Settings.SetAutoConvert)
		users.POST("/welcome-bonus", h.Ledger.GrantWelcomeBonus)
		users.POST("/deposit-address", h.Wallet.GetDepositAddress)

		internal.POST("/ledger/entries", h.Ledger.CreateEntry)
		internal.POST("/withdrawals", h.Wallet.CreateWithdrawal)
	}

	return r
}
