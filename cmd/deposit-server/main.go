package main

import (
	"context"
	"time"

	"deposit-core/internal/handler"
	"deposit-core/internal/model"
	"deposit-core/internal/provider"
	"deposit-core/internal/server"
	"deposit-core/internal/service"
	"deposit-core/internal/service/balance"
	"deposit-core/internal/service/conversion"
	"deposit-core/internal/service/ledger"
	"deposit-core/internal/service/mq"
	"deposit-core/internal/service/settings"
	"deposit-core/internal/service/webhook"

	"deposit-core/pkg/address"
	"deposit-core/pkg/config"
	"deposit-core/pkg/database"
	"deposit-core/pkg/lock"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/signature"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "deposit-core/docs/swagger"
)

// @title Deposit Core API
// @version 1.0
// @description Payment provider deposits, ledger and cached balances

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 2. 连接数据库
	dsn := database.PostgresDSN(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
	db, err := database.ConnectPostgres(dsn, cfg.App.Env == "development")
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 3. 连接 Redis
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 4. 开发环境自动迁移, 生产环境使用 cmd/migrate
	if cfg.App.Env == "development" {
		logger.Info("开发环境: GORM AutoMigrate...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. 缓存与锁
	balanceCache := newBalanceCache(cfg.Cache, rdb)
	locker := lock.NewRedisLock(rdb)

	// 6. 账本 / 余额 / 设置
	store := ledger.NewStore(db)
	balances := balance.NewService(store, balanceCache, balance.Config{
		BalanceTTL:    cfg.Cache.BalanceTTL,
		ListTTL:       cfg.Cache.ListTTL,
		MaxPendingAge: cfg.Cache.MaxPendingAge,
	})
	if err := balances.RegisterMetrics(); err != nil {
		logger.Fatal("注册缓存指标失败", zap.Error(err))
	}
	go balances.Run(ctx, cfg.Cache.SweepInterval)

	bonus, err := decimal.NewFromString(cfg.Ledger.WelcomeBonus)
	if err != nil {
		logger.Fatal("ledger.welcome_bonus 配置错误", zap.Error(err))
	}
	ledgerSvc := ledger.NewService(store, balances, locker, ledger.Config{
		PlatformCurrency: cfg.Conversion.PlatformCurrency,
		WelcomeBonus:     bonus,
	})
	settingsSvc := settings.NewService(db, cfg.Conversion.DefaultAutoConvert)

	// 7. 汇率与兑换策略: 数据库汇率优先, 配置汇率兜底
	static, err := conversion.NewStaticRates(cfg.Conversion.Rates)
	if err != nil {
		logger.Fatal("conversion.rates 配置错误", zap.Error(err))
	}
	dbRates := conversion.NewDBRates(db)
	engine := conversion.NewEngine(conversion.Config{
		PlatformCurrency: cfg.Conversion.PlatformCurrency,
		PlatformDecimals: cfg.Conversion.PlatformDecimals,
	}, conversion.ChainRates{dbRates, static},
		conversion.WithSource("static", static),
		conversion.WithSource("db", dbRates),
	)

	// 8. 支付服务商与回调处理
	client := provider.NewClient(cfg.Provider)
	signer := signature.NewSigner(cfg.Provider.AppID, cfg.Provider.AppSecret)

	opts := []webhook.Option{
		webhook.WithAppliedIndex(webhook.NewCacheIndex(newAppliedCache(cfg.Cache, rdb), cfg.Cache.AppliedTTL)),
		webhook.WithMaxSkew(cfg.Webhook.MaxSkew),
		webhook.WithTopic(cfg.Kafka.Topic),
	}
	if cfg.Provider.ConfirmDeposits {
		opts = append(opts, webhook.WithConfirmation(client))
	}
	processor := webhook.NewProcessor(db, signer, settingsSvc, engine, balances, opts...)

	// 9. 消息中继 (Outbox -> MQ)
	var producer mq.Producer
	if cfg.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		producer = mq.NewKafkaProducer(cfg.Kafka.Brokers)
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
	}
	relay := service.NewRelayService(db, producer, 0)
	go relay.Start(ctx)

	// 10. 定时对账
	cronSvc := service.NewCronService(cfg.Cron.ReconcileSpec, locker, client, store, cfg.Conversion.PlatformCurrency)
	if err := cronSvc.Start(); err != nil {
		logger.Fatal("定时任务启动失败", zap.Error(err))
	}

	// 11. HTTP
	router := server.NewHTTPRouter(server.Handlers{
		Webhook:  handler.NewWebhookHandler(processor),
		Balance:  handler.NewBalanceHandler(balances),
		Settings: handler.NewSettingsHandler(settingsSvc),
		Ledger:   handler.NewLedgerHandler(ledgerSvc),
		Wallet:   handler.NewWalletHandler(client, store, address.NewValidator(nil)),
	}, cfg.App.InternalToken)

	app := server.New(server.Config{HttpPort: cfg.App.HttpPort, ShutdownTimeout: 15 * time.Second}, router)
	app.OnStop(func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("close redis", zap.Error(err))
		}
	})
	app.OnStop(func() {
		if err := producer.Close(); err != nil {
			logger.Warn("close producer", zap.Error(err))
		}
	})
	app.OnStop(cronSvc.Stop)
	app.OnStop(cancel)
	app.Run()
}
