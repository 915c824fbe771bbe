// Command triarb runs the triangular-arbitrage / correlation-recovery
// FX trading engine: it wires the Broker Gateway, Symbol Mapper, Order
// Tracker, Arbitrage Detector, Correlation Manager, and Adaptive
// Coordinator together and runs the 30-second control loop until
// signaled to stop.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"triarb/internal/advisor"
	"triarb/internal/arbitrage"
	"triarb/internal/broker"
	"triarb/internal/cache"
	"triarb/internal/calc"
	"triarb/internal/config"
	"triarb/internal/coordinator"
	"triarb/internal/correlation"
	"triarb/internal/logging"
	"triarb/internal/monitoring"
	"triarb/internal/symbolmap"
	"triarb/internal/tracker"
)

// defaultSymbolUniverse is the default tradable set when no broker
// symbol discovery call has populated a narrower list (spec §4.1's
// "major and minor" pairs, matching arbitrage.majorMinorCurrencies).
var defaultSymbolUniverse = []string{
	"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD", "NZDUSD", "USDCAD",
	"EURJPY", "EURGBP", "EURCHF", "GBPJPY", "AUDJPY", "CHFJPY", "CADJPY",
}

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "configuration file path")
		envPath    = flag.String("env", ".env", "environment overrides file path")
		simulate   = flag.Bool("simulate", true, "run the in-process SimBroker without connecting; false still uses SimBroker but connects it with the configured broker credentials")
	)
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("no environment file at %s, continuing with process environment", *envPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("could not load %s, falling back to defaults: %v", *configPath, err)
		cfg = config.Default()
	}
	if err := config.NewValidator(cfg).Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	envMgr := config.NewEnvManager("", "TRIARB_")
	cfg.Broker.Password = envMgr.GetEncryptedString("broker_password", cfg.Broker.Password)
	cfg.Redis.Password = envMgr.GetEncryptedString("redis_password", cfg.Redis.Password)

	logger, err := logging.NewLogger(&logging.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		LogDir:     cfg.Logging.LogDir,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger.WithField("app", cfg.App.Name).WithField("version", cfg.App.Version).Info("starting triarb engine")

	metrics := monitoring.NewMetrics(nil)

	var br broker.Broker
	if *simulate {
		sim := broker.NewSimBroker(defaultSymbolUniverse, cfg.PositionSizing.LotCalculation.BaseBalance)
		br = sim
		logger.Warn("running against SimBroker; no live broker connection will be made")
	} else {
		sim := broker.NewSimBroker(defaultSymbolUniverse, cfg.PositionSizing.LotCalculation.BaseBalance)
		if _, err := sim.Connect(context.Background(), &broker.Credentials{
			Login: cfg.Broker.Login, Password: cfg.Broker.Password, Server: cfg.Broker.Server,
		}); err != nil {
			logger.WithError(err).Fatal("broker connect failed")
		}
		br = sim
	}
	guarded := broker.NewGuarded(br, broker.DefaultGuardConfig(), logger)

	if err := os.MkdirAll(cfg.Broker.DataDir, 0o755); err != nil {
		logger.WithError(err).Fatal("failed to create broker data directory")
	}
	mapper := symbolmap.New(cfg.Broker.SymbolFile, logger)
	trk := tracker.New(tracker.Config{
		PersistPath:   cfg.Broker.OrderFile,
		MaxChainDepth: cfg.Recovery.ChainRecovery.MaxChainDepth,
	}, logger, metrics)

	lotCfg := calc.LotSizingConfig{
		Step: cfg.PositionSizing.LotCalculation.LotStep,
		Min:  cfg.PositionSizing.LotCalculation.MinLot,
		Max:  cfg.PositionSizing.LotCalculation.MaxLot,
	}
	detCfg := arbitrage.DetectionConfig{
		MinThresholdPips:   cfg.Arbitrage.Detection.MinThresholdPips,
		MaxSpreadRatio:     cfg.Arbitrage.Detection.MaxSpreadRatio,
		MinVolumeThreshold: cfg.Arbitrage.Detection.MinVolumeScore,
		MinConfidence:      cfg.Arbitrage.Detection.MinConfidence,
		PriceSampleCount:   cfg.Arbitrage.Detection.PriceSampleCount,
		SampleInterval:     time.Duration(cfg.Arbitrage.Detection.SampleIntervalMS) * time.Millisecond,
		MaxPriceVariance:   cfg.Arbitrage.Detection.MaxPriceVariance,
		MaxActiveTriangles: cfg.Arbitrage.Triangles.MaxActiveTriangles,
		MinOrderInterval:   time.Duration(cfg.RateLimit.MinOrderIntervalSeconds) * time.Second,
		MaxOrdersPerDay:    cfg.RateLimit.MaxOrdersPerDay,
	}
	detector := arbitrage.New(guarded, mapper, trk, detCfg, lotCfg, logger, metrics)

	var matrixCache cache.MatrixCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cache.Config{
			Enabled:  true,
			Host:     redisHost(cfg.Redis.Addr),
			Port:     redisPort(cfg.Redis.Addr),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Warn("redis matrix cache unavailable, falling back to in-memory cache")
			matrixCache = cache.NewMemoryCache()
		} else {
			matrixCache = redisCache
		}
	} else {
		matrixCache = cache.NewMemoryCache()
	}

	corrCfg := correlation.Config{
		MinCorr:                   cfg.Recovery.Correlation.MinCorrelation,
		MaxCorr:                   cfg.Recovery.Correlation.MaxCorrelation,
		LookbackDays:              cfg.Recovery.Correlation.LookbackDays,
		RefreshInterval:           cfg.Recovery.Correlation.RefreshInterval,
		MaxRecoveryTimeHours:      cfg.Recovery.MaxRecoveryTime.Hours(),
		RebalancingEnabled:        cfg.Recovery.Rebalancing.Enabled,
		RebalancingFrequencyHours: cfg.Recovery.Rebalancing.FrequencyHours.Hours(),
		PortfolioBalanceThreshold: cfg.Recovery.Rebalancing.PortfolioBalanceThreshold,
		DecayLambda:               cfg.Recovery.Correlation.DecayLambda,
		MinConfidenceToExecute:    cfg.Recovery.MinAdvisorConfidence,
	}
	corrManager := correlation.New(corrCfg, guarded, mapper, trk, advisor.PassthroughAdvisor{}, matrixCache, logger, metrics)

	universe := defaultSymbolUniverse
	if err := corrManager.LoadFromCache(context.Background()); err != nil {
		logger.WithError(err).Debug("no cached correlation matrix to restore")
	}
	if err := corrManager.Start(context.Background(), universe); err != nil {
		logger.WithError(err).Fatal("failed to start correlation manager")
	}
	defer corrManager.Stop()

	coordCfg := coordinator.Config{
		TickInterval:     cfg.Coordinator.TickInterval,
		ShutdownTimeout:  cfg.Coordinator.ShutdownGrace,
		AvailableSymbols: universe,
		MinLossPercent:   cfg.Recovery.LossThresholds.MinLossPercent,
	}
	coord := coordinator.New(coordCfg, guarded, detector, corrManager, trk, logger, metrics)

	if cfg.Monitoring.PrometheusEnabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Monitoring.PrometheusPath, monitoring.Handler())
		srv := &http.Server{Addr: cfg.Monitoring.ListenAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
		defer srv.Close()
		logger.WithField("addr", cfg.Monitoring.ListenAddr).Info("metrics endpoint listening")
	}

	if watcher, err := config.NewWatcher(*configPath); err != nil {
		logger.WithError(err).Debug("config file watch unavailable")
	} else {
		go watchConfig(watcher, *configPath, logger)
		defer watcher.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	coord.Run(ctx)
	logger.Info("coordinator started")

	<-sigCh
	logger.Info("shutdown signal received, stopping coordinator")
	cancel()
	coord.Stop()
	logger.Info("triarb engine stopped")
}

// watchConfig reloads and revalidates the configuration file whenever the
// Watcher reports a modification. Live components keep running on the
// config they were built with; a revalidation failure is logged so an
// operator can restart the engine with a corrected file.
func watchConfig(watcher *config.Watcher, path string, logger *logging.Logger) {
	for event := range watcher.Events() {
		if event.Type != config.FileModified {
			continue
		}
		reloaded, err := config.Load(path)
		if err != nil {
			logger.WithError(err).Warn("config reload failed, keeping running configuration")
			continue
		}
		if err := config.NewValidator(reloaded).Validate(); err != nil {
			logger.WithError(err).Warn("reloaded configuration failed validation, keeping running configuration")
			continue
		}
		logger.Info("configuration file changed and revalidated; restart the engine to apply it")
	}
}

// redisHost/redisPort split a "host:port" address into the discrete
// fields cache.Config expects, defaulting the port when absent.
func redisHost(addr string) string {
	for i := 0; i < len(addr); i++ {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

func redisPort(addr string) int {
	for i := 0; i < len(addr); i++ {
		if addr[i] == ':' {
			port := 0
			for _, c := range addr[i+1:] {
				if c < '0' || c > '9' {
					break
				}
				port = port*10 + int(c-'0')
			}
			return port
		}
	}
	return 6379
}
