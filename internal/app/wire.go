package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/alanyoungcy/polyhedge/internal/blob/s3"
	"github.com/alanyoungcy/polyhedge/internal/cache/redis"
	"github.com/alanyoungcy/polyhedge/internal/config"
	"github.com/alanyoungcy/polyhedge/internal/crypto"
	"github.com/alanyoungcy/polyhedge/internal/domain"
	"github.com/alanyoungcy/polyhedge/internal/executor"
	"github.com/alanyoungcy/polyhedge/internal/hedging"
	"github.com/alanyoungcy/polyhedge/internal/notify"
	"github.com/alanyoungcy/polyhedge/internal/platform/polymarket"
	"github.com/alanyoungcy/polyhedge/internal/server"
	"github.com/alanyoungcy/polyhedge/internal/server/handler"
	"github.com/alanyoungcy/polyhedge/internal/service"
	"github.com/alanyoungcy/polyhedge/internal/store/postgres"
)

// Dependencies is everything Run starts or schedules. Optional parts are nil
// when their config section is disabled.
type Dependencies struct {
	Wallet   string
	Clob     *polymarket.ClobClient
	Books    *service.BookService
	Executor *executor.Service
	Reserve  hedging.ReservePlanner
	Engine   *hedging.Engine
	Registry *prometheus.Registry

	Archiver *s3blob.Archiver
	Server   *server.Server
}

// Wire builds the object graph from cfg. The returned cleanup releases
// every resource in reverse order of acquisition and is safe to call on a
// partially built graph.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}
	health := map[string]handler.Pinger{}

	// --- Venue ---
	signer, err := loadSigner(cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}
	pm := cfg.Polymarket
	sigType := uint8(pm.SignatureType)
	clob := polymarket.NewClobClient(pm.ClobHost, pm.RequestsPerS, signer, sigType)
	gamma := polymarket.NewGammaClient(pm.GammaHost, pm.RequestsPerS)
	data := polymarket.NewDataClient(pm.DataHost, pm.RequestsPerS)
	deps.Clob = clob

	var (
		placer  executor.MarketPlacer
		balance executor.BalanceReader
	)
	if signer != nil {
		if _, err := clob.EnsureCreds(ctx); err != nil {
			if !cfg.DryRun() {
				return fail(fmt.Errorf("wire: clob credentials: %w", err))
			}
			logger.WarnContext(ctx, "wire: clob credentials unavailable, balance reads disabled",
				slog.String("error", err.Error()))
		} else {
			balance = clob
		}
		ex, err := exchangesFor(pm.ChainID)
		if err != nil {
			return fail(err)
		}
		builder := polymarket.NewOrderBuilder(signer, cfg.Wallet.FunderAddress, sigType, ex, int64(pm.FeeRateBps))
		placer = polymarket.NewTrader(clob, builder)
		deps.Wallet = builder.Funder().Hex()
	} else {
		deps.Wallet = cfg.Wallet.FunderAddress
	}

	// --- Redis ---
	var (
		locks       domain.LockManager = hedging.NewLocalLocks()
		marketCache domain.MarketCache
	)
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		locks = redis.NewLockManager(rc)
		marketCache = redis.NewMarketCache(rc, cfg.Redis.MarketTTL.Duration)
		health["redis"] = rc
	}

	// --- Postgres ---
	var journal notify.Journal
	var events *postgres.HedgeEventStore
	if cfg.Postgres.Enabled {
		pc, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pc.Close)
		if cfg.Postgres.RunMigrations {
			if err := pc.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		events = postgres.NewHedgeEventStore(pc.Pool())
		journal = events
		health["postgres"] = pc
	}

	// --- S3 archive ---
	if cfg.S3.Enabled && events != nil {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(sc), events, s3blob.ArchiverConfig{Purge: cfg.S3.Purge}, logger)
		health["s3"] = handler.PingFunc(sc.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	sink := notify.NewSink(
		notify.NewNotifier(senders, cfg.Notify.Events, logger),
		journal,
		notify.SinkConfig{Timeout: cfg.Notify.Timeout.Duration},
		logger,
	)
	closers = append(closers, sink.Close)

	// --- Services ---
	books := service.NewBookService(clob, pm.BookMaxAge.Duration, logger)
	deps.Books = books
	markets := service.NewMarketService(marketCache, gamma, logger)

	posCfg := service.DefaultPositionConfig()
	posCfg.Wallet = deps.Wallet
	posCfg.MinShares = cfg.Hedging.MinShares
	posCfg.QuoteConcurrency = cfg.Hedging.QuoteConcurrency
	posCfg.MaxMarkDivergence = cfg.Hedging.MaxMarkDivergence
	posCfg.MaxAge = cfg.Hedging.Interval.Duration
	positions := service.NewPositionService(data, books, posCfg, logger)

	deps.Executor = executor.New(executorConfig(cfg), books, balance, placer, logger)

	var balanceReserve *service.BalanceReserve
	switch {
	case cfg.Reserve.Unlimited:
		deps.Reserve = hedging.UnlimitedReserve{}
	case balance == nil:
		logger.WarnContext(ctx, "wire: no readable balance, running with an unlimited reserve")
		deps.Reserve = hedging.UnlimitedReserve{}
	default:
		balanceReserve = service.NewBalanceReserve(clob, service.ReserveConfig{
			MinReserveUSD: cfg.Reserve.MinReserveUSD,
			ReservePct:    cfg.Reserve.ReservePct,
		}, logger)
		deps.Reserve = balanceReserve
	}

	// --- Engine ---
	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engine, err := hedging.New(hedgingOptions(cfg.Hedging), hedging.Deps{
		Orders:    deps.Executor,
		Positions: positions,
		Markets:   markets,
		Books:     books,
		Reserve:   deps.Reserve,
		Events:    sink,
		Locks:     locks,
		Metrics:   hedging.NewMetrics(deps.Registry),
		Logger:    logger,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: engine: %w", err))
	}
	deps.Engine = engine
	if balanceReserve != nil {
		balanceReserve.SetRequired(engine.RequiredReserve)
	}

	// --- HTTP ---
	if cfg.Server.Enabled {
		var eventsHandler *handler.EventsHandler
		if events != nil {
			eventsHandler = handler.NewEventsHandler(events, logger)
		}
		deps.Server = server.NewServer(server.Config{
			Port:         cfg.Server.Port,
			CORSOrigins:  cfg.Server.CORSOrigins,
			APIKey:       cfg.Server.APIKey,
			RequestsPerS: cfg.Server.RateLimitRPS,
			Burst:        cfg.Server.RateLimitBurst,
		}, server.Handlers{
			Health:  handler.NewHealthHandler(health, logger),
			Hedging: handler.NewHedgingHandler(engine, deps.Reserve, 2*cfg.Hedging.Interval.Duration, logger),
			Orders:  handler.NewOrderHandler(deps.Executor, locks, cfg.Hedging.LockTTL.Duration, logger),
			Events:  eventsHandler,
		}, deps.Registry, logger)
	}

	return deps, cleanup, nil
}

// loadSigner returns nil without error when no key is configured.
func loadSigner(cfg *config.Config) (*crypto.Signer, error) {
	src := crypto.KeySource{
		RawHex:     cfg.Wallet.PrivateKey,
		SealedPath: cfg.Wallet.EncryptedKeyPath,
		Password:   cfg.Wallet.KeyPassword,
	}
	if !src.Configured() {
		return nil, nil
	}
	key, err := src.Resolve()
	if err != nil {
		return nil, err
	}
	return crypto.NewSigner(key, int64(cfg.Polymarket.ChainID))
}

func exchangesFor(chainID int) (polymarket.Exchanges, error) {
	if chainID == 137 {
		return polymarket.PolygonExchanges, nil
	}
	return polymarket.Exchanges{}, fmt.Errorf("wire: no exchange contracts known for chain %d", chainID)
}

func executorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		DryRun:        cfg.DryRun(),
		DedupWindow:   cfg.Executor.DedupWindow.Duration,
		MaxAttempts:   cfg.Executor.MaxAttempts,
		RetryBackoff:  cfg.Executor.RetryBackoff.Duration,
		MinOrderUSD:   cfg.Executor.MinOrderUSD,
		FillTolerance: cfg.Executor.FillTolerance,
	}
}

func hedgingOptions(h config.HedgingConfig) hedging.Options {
	return hedging.Options{
		TriggerLossPct:      h.TriggerLossPct,
		ForceLiquidationPct: h.ForceLiquidationPct,
		EmergencyLossPct:    h.EmergencyLossPct,
		MaxEntryPrice:       h.MaxEntryPrice,
		MinHoldTime:         h.MinHoldTime.Duration,
		MaxBookSpread:       h.MaxBookSpread,
		MaxMarkDivergence:   h.MaxMarkDivergence,

		MaxHedgeUSD:        h.MaxHedgeUSD,
		MinHedgeUSD:        h.MinHedgeUSD,
		BreakEvenBufferPct: h.BreakEvenBufferPct,
		SlippagePct:        h.SlippagePct,
		TakerFeePct:        h.TakerFeePct,

		TooExpensivePrice:               h.TooExpensivePrice,
		NearResolutionTooExpensivePrice: h.NearResolutionTooExpensivePrice,
		MarketResolvedPrice:             h.MarketResolvedPrice,

		NearResolutionHedge:     h.NearResolutionHedge,
		NoHedgeWindow:           h.NoHedgeWindow.Duration,
		NoHedgeWindowMinLossPct: h.NoHedgeWindowMinLossPct,
		NearCloseWindow:         h.NearCloseWindow.Duration,
		NearCloseMinDropCents:   h.NearCloseMinDropCents,
		NearCloseMinLossPct:     h.NearCloseMinLossPct,

		HedgeUpEnabled:  h.HedgeUpEnabled,
		HedgeUpMinPrice: h.HedgeUpMinPrice,
		HedgeUpMaxPrice: h.HedgeUpMaxPrice,
		HedgeUpAnytime:  h.HedgeUpAnytime,
		HedgeUpWindow:   h.HedgeUpWindow.Duration,
		HedgeUpMaxUSD:   h.HedgeUpMaxUSD,

		ExitEnabled: h.ExitEnabled,
		ExitPrice:   h.ExitPrice,

		ReservePolicy:   hedging.ReservePolicy(strings.ToLower(h.ReservePolicy)),
		AllowPartial:    h.AllowPartial,
		MaxReserveUSD:   h.MaxReserveUSD,
		FundingEnabled:  h.FundingEnabled,
		FundingMaxSales: h.FundingMaxSales,

		CooldownDuration: h.CooldownDuration.Duration,
		MaxCooldowns:     h.MaxCooldowns,
		PairingTTL:       h.PairingTTL.Duration,
		MaxPairings:      h.MaxPairings,
		MaxTracked:       h.MaxTracked,

		LockTTL:         h.LockTTL.Duration,
		SkipLogInterval: h.SkipLogInterval.Duration,
	}
}
