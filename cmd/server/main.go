// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remittance-service/config"
	"remittance-service/internal/chains"
	"remittance-service/internal/chains/ethereum"
	"remittance-service/internal/chains/stellar"
	"remittance-service/internal/handler"
	"remittance-service/internal/lock"
	"remittance-service/internal/provider"
	"remittance-service/internal/provider/flutterwave"
	"remittance-service/internal/provider/linkio"
	"remittance-service/internal/provider/moonpay"
	"remittance-service/internal/provider/yellowcard"
	"remittance-service/internal/pub"
	"remittance-service/internal/rates"
	"remittance-service/internal/repository"
	"remittance-service/internal/router"
	"remittance-service/internal/security"
	"remittance-service/internal/usecase"
	"remittance-service/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting remittance service",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("settlement_ledger", cfg.Ledger.Settlement))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- storage ----
	dbPool, err := config.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Database.AutoMigrate {
		if err := config.RunMigrations(cfg.Database, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb, err := config.ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	txRepo := repository.NewTransactionRepository(dbPool)
	remRepo := repository.NewRemittanceRepository(dbPool)
	walletRepo := repository.NewWalletRepository(dbPool)
	recipientRepo := repository.NewRecipientRepository(dbPool)
	settingsRepo := repository.NewSettingsRepository(dbPool, cfg.Policy)

	// ---- ledgers ----
	ledgers := chains.NewRegistry()
	ledgers.Register(stellar.NewStellarLedger(stellar.Config{
		HorizonURL:        cfg.Ledger.StellarHorizonURL,
		NetworkPassphrase: cfg.Ledger.StellarPassphrase,
		Reserve:           cfg.Ledger.StellarReserve,
		BaseFee:           cfg.Ledger.StellarBaseFee,
		Friendbot:         cfg.Ledger.StellarFriendbot,
		Read:              chains.DefaultReadPolicy(),
	}, logger))

	if cfg.Ledger.EthereumEnabled {
		eth, err := ethereum.NewEthereumLedger(ctx, ethereum.Config{
			RPCURL:      cfg.Ledger.EthereumRPCURL,
			ChainID:     cfg.Ledger.EthereumChainID,
			MaxGasPrice: new(big.Int).Mul(big.NewInt(cfg.Ledger.EthereumMaxGasGwei), big.NewInt(1e9)),
			Precision:   cfg.Ledger.EthereumPrecision,
			Read:        chains.DefaultReadPolicy(),
		}, logger)
		if err != nil {
			logger.Fatal("failed to initialize ethereum ledger", zap.Error(err))
		}
		ledgers.Register(eth)
	}

	if _, err := ledgers.Get(cfg.Ledger.Settlement); err != nil {
		logger.Fatal("settlement ledger is not registered", zap.String("ledger", cfg.Ledger.Settlement), zap.Error(err))
	}

	// ---- rates ----
	seedRates, err := rates.ParseSeed(cfg.Rates.Seed)
	if err != nil {
		logger.Fatal("invalid RATES_SEED", zap.Error(err))
	}
	seed, err := rates.NewTable(seedRates, time.Now(), "seed")
	if err != nil {
		logger.Fatal("invalid seed rate table", zap.Error(err))
	}
	refresher := rates.NewRefresher(rates.RefresherConfig{
		SourceURL: cfg.Rates.SourceURL,
		APIKey:    cfg.Rates.APIKey,
		MaxAge:    cfg.Rates.MaxAge,
		CacheTTL:  cfg.Rates.MaxAge,
	}, seed, rdb, logger)
	if err := refresher.LoadCached(ctx); err != nil {
		logger.Warn("no cached rate snapshot", zap.Error(err))
	}

	// ---- providers ----
	providers := provider.NewRegistry()
	for name, pc := range cfg.Providers {
		pcfg := provider.Config{
			BaseURL:           pc.BaseURL,
			APIKey:            pc.APIKey,
			WebhookSecret:     pc.WebhookSecret,
			RequestsPerSecond: pc.RequestsPerSecond,
			Timeout:           pc.Timeout,
		}
		switch name {
		case moonpay.Name:
			providers.Register(moonpay.New(pcfg, logger))
		case linkio.Name:
			providers.Register(linkio.New(pcfg, logger))
		case yellowcard.Name:
			providers.Register(yellowcard.New(pcfg, logger))
		case flutterwave.Name:
			providers.Register(flutterwave.New(pcfg, logger))
		}
	}
	logger.Info("payment providers registered", zap.Strings("providers", providers.Names()))

	var payoutRail provider.PaymentProvider
	if cfg.PayoutProvider != "" {
		payoutRail, err = providers.Get(cfg.PayoutProvider)
		if err != nil {
			logger.Fatal("payout provider not registered", zap.String("provider", cfg.PayoutProvider), zap.Error(err))
		}
	}

	// ---- events ----
	var events usecase.EventPublisher
	if rdb != nil {
		events = pub.NewTransactionEventPublisher(rdb, logger)
	}

	var payouts usecase.PayoutNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		notifier := pub.NewPayoutNotifier(pub.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.PayoutTopic, logger), logger)
		defer notifier.Close()
		payouts = notifier
	} else {
		logger.Warn("KAFKA_BROKERS not set, payout-ready notifications disabled")
	}

	// ---- usecases ----
	cipher, err := security.NewKeyCipher(cfg.Security.MasterKey, cfg.Security.PreviousKey)
	if err != nil {
		logger.Fatal("invalid master encryption key", zap.Error(err))
	}

	walletUC := usecase.NewWalletUsecase(walletRepo, ledgers, cfg.Ledger.Settlement, cipher,
		usecase.CustodyAccount{Address: cfg.Custody.Address, EncryptedSecret: cfg.Custody.EncryptedSecret}, logger)

	reconcileUC := usecase.NewReconcileUsecase(txRepo, remRepo, ledgers, providers, events, payouts, logger)

	var (
		scheduler usecase.Scheduler
		locker    lock.Locker
		workers   []interface{ Stop() }
	)
	if rdb != nil {
		redisScheduler := worker.NewRedisScheduler(rdb, logger)
		reconcileWorker := worker.NewReconcileWorker(redisScheduler, reconcileUC, cfg.Reconcile.PollInterval, time.Minute, logger)
		go reconcileWorker.Start(ctx)
		workers = append(workers, reconcileWorker)

		scheduler = redisScheduler
		locker = lock.NewRedisLocker(rdb, cfg.Ledger.LockTTL, cfg.Ledger.LockWait, logger)
	} else {
		memoryScheduler := worker.NewMemoryScheduler(reconcileUC, time.Minute, logger)
		workers = append(workers, memoryScheduler)

		scheduler = memoryScheduler
		locker = lock.NewLocalLocker(cfg.Ledger.LockWait)
	}

	sweeper := worker.NewStaleSweeper(txRepo, scheduler, cfg.Reconcile.SweepAge, cfg.Reconcile.SweepInterval, logger)
	go sweeper.Start(ctx)
	workers = append(workers, sweeper)

	if cfg.Rates.SourceURL != "" {
		rateWorker := worker.NewRateWorker(refresher, cfg.Rates.RefreshInterval, logger)
		go rateWorker.Start(ctx)
		workers = append(workers, rateWorker)
	}

	transferUC := usecase.NewTransferUsecase(
		txRepo, remRepo, recipientRepo, settingsRepo, refresher, ledgers, walletUC,
		usecase.NewBalanceGuard(ledgers, logger), locker, scheduler, events, payouts, payoutRail,
		usecase.TransferConfig{
			SettlementLedger:  cfg.Ledger.Settlement,
			SubmitTimeout:     cfg.Ledger.SubmitTimeout,
			ReconcileDelay:    cfg.Reconcile.TransferDelay,
			PayoutCallbackURL: cfg.Server.CallbackBaseURL + "/api/v1/webhooks/" + cfg.PayoutProvider,
		},
		logger,
	)

	depositUC := usecase.NewDepositUsecase(txRepo, remRepo, walletUC, ledgers, refresher, providers, scheduler, events,
		usecase.DepositConfig{
			SettlementLedger: cfg.Ledger.Settlement,
			WebhookBaseURL:   cfg.Server.CallbackBaseURL + "/api/v1/webhooks",
			ReconcileDelay:   cfg.Reconcile.DepositDelay,
		}, logger)

	webhookUC := usecase.NewWebhookUsecase(txRepo, remRepo, providers, events, payouts, logger)
	recipientUC := usecase.NewRecipientUsecase(recipientRepo)

	// ---- http ----
	checks := map[string]handler.Check{
		"postgres": dbPool.Ping,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	r := router.SetupRoutes(router.Handlers{
		Transfers:  handler.NewTransferHandler(transferUC, logger),
		Wallets:    handler.NewWalletHandler(walletUC, depositUC, logger),
		Recipients: handler.NewRecipientHandler(recipientUC, logger),
		Webhooks:   handler.NewWebhookHandler(webhookUC, providers.Names(), cfg.Server.WebhookRPS, cfg.Server.WebhookBurst, logger),
		Health:     handler.NewHealthHandler(checks),
	}, router.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	for _, w := range workers {
		w.Stop()
	}
	cancel()

	logger.Info("server stopped")
}
