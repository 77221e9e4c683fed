package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pfcontrol/stripsync/internal/airport"
	"github.com/pfcontrol/stripsync/internal/atis"
	"github.com/pfcontrol/stripsync/internal/auth"
	"github.com/pfcontrol/stripsync/internal/config"
	"github.com/pfcontrol/stripsync/internal/database"
	"github.com/pfcontrol/stripsync/internal/directory"
	"github.com/pfcontrol/stripsync/internal/handler"
	"github.com/pfcontrol/stripsync/internal/presence"
	"github.com/pfcontrol/stripsync/internal/realtime"
	"github.com/pfcontrol/stripsync/internal/router"
	"github.com/pfcontrol/stripsync/internal/service"
	"github.com/pfcontrol/stripsync/internal/store"
	"github.com/pfcontrol/stripsync/pkg/constants"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg    *config.Config
	srv    *http.Server
	db     *gorm.DB
	rdb    *redis.Client
	fabric realtime.Fabric
	cron   *cron.Cron
	logger *zap.Logger
}

// NewLogger builds the process logger: development output in development, JSON otherwise.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

// NewAPI creates the API application: validates config, opens the store and the
// presence backend, wires services and builds the router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &API{cfg: cfg, logger: logger}
	checks := map[string]handler.ReadyCheck{}

	var (
		st  store.Store
		dir directory.Directory
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := store.NewMemoryStore()
		for _, s := range store.DemoSessions() {
			mem.PutSession(s)
		}
		st = mem
		dir = directory.NewStaticDirectory()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		a.db = db
		st = store.NewGormStore(db)
		dir = directory.NewGormDirectory(db)
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	hub := realtime.NewHub(logger)
	var ps presence.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		a.rdb = redis.NewClient(opts)
		ps = presence.NewRedisStore(a.rdb, cfg.FieldLockTTL)
		a.fabric = realtime.NewRedisFabric(hub, a.rdb, realtime.DefaultRedisChannel, logger)
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	} else {
		ps = presence.NewMemoryStore(cfg.FieldLockTTL)
		a.fabric = realtime.NewLocalFabric(hub)
		logger.Info("REDIS_URL not set; presence and broadcasts are local to this process")
	}

	airports, err := airport.Load()
	if err != nil {
		return nil, fmt.Errorf("airport data: %w", err)
	}
	verifier := auth.NewVerifier(cfg.JWTSecret)
	if !verifier.Enabled() {
		logger.Warn("JWT_SECRET not set; identities are taken from the query string")
	}

	a.cron = cron.New(cron.WithLogger(cronLogger{logger}))

	index := service.NewFlightIndex()
	arrivals := service.NewArrivalRouter(st, a.fabric, index, cfg.ArrivalFanoutLimit, cfg.OverviewFlightWindow, logger)
	flights := service.NewFlightService(st, airports, a.fabric, arrivals, index, logger)
	sched := service.NewATISScheduler(a.cron, cfg.ATISInterval, st, atis.NewClient(cfg.ATISGeneratorURL, logger), a.fabric, logger)
	presenceSvc := service.NewPresenceService(ps, hub, a.fabric, sched, logger)
	overview := service.NewOverviewService(st, presenceSvc, dir, flights, hub, a.fabric, a.cron, cfg.OverviewInterval, cfg.OverviewFlightWindow, logger)
	chat := service.NewChatService(a.fabric, service.NewMentionRouter(a.fabric, logger), logger)
	sector := service.NewSectorService(a.fabric, presenceSvc, logger)
	sessions := service.NewSessionService(st, presenceSvc, index, a.fabric, logger)
	gateway := service.NewGateway(st, dir, verifier, !verifier.Enabled() && cfg.IsDevelopment(), logger)

	sockCfg := handler.SocketConfig{
		ReadBufferSize:  cfg.WSReadBufferSize,
		WriteBufferSize: cfg.WSWriteBufferSize,
		MaxMessageSize:  cfg.WSMaxMessageSize,
	}
	ws := func(name string, ch handler.Channel) *handler.WSHandler {
		return handler.NewWSHandler(name, ch, gateway, hub, sockCfg, logger)
	}
	sockets := router.Sockets{
		Flights:  ws(realtime.ChannelFlights, handler.NewFlightsChannel(flights, hub, logger)),
		Arrivals: ws(realtime.ChannelArrivals, handler.NewArrivalsChannel(flights, hub, logger)),
		Presence: ws(realtime.ChannelPresence, handler.NewPresenceChannel(presenceSvc, sched, logger)),
		Chat:     ws(realtime.ChannelChat, handler.NewChatChannel(chat, hub, logger)),
		Sector:   ws(realtime.ChannelSector, handler.NewSectorChannel(sector, flights, hub, logger)),
		Overview: ws(realtime.ChannelOverview, handler.NewOverviewChannel(overview, logger)),
	}

	r := router.New(handler.NewSessionHandler(sessions, logger), sockets, handler.NewHealthHandler(hub, checks))

	a.srv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	defer func() { _ = a.logger.Sync() }()

	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	a.logger.Info("HTTP server listening",
		zap.String("addr", a.srv.Addr),
		zap.String("health", "http://"+host+":"+a.cfg.HTTPPort+constants.PathHealth),
		zap.String("flights", "ws://"+host+":"+a.cfg.HTTPPort+constants.PathSocketFlights),
		zap.String("store", a.cfg.StoreDriver),
		zap.Bool("redis", a.rdb != nil))

	fabricCtx, stopFabric := context.WithCancel(context.Background())
	defer stopFabric()
	go func() {
		if err := a.fabric.Run(fabricCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("room fabric stopped", zap.Error(err))
		}
	}()
	a.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	}

	a.logger.Info("shutting down")
	<-a.cron.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	stopFabric()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return nil
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, zap.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, zap.Error(err), zap.Any("kv", keysAndValues))
}
