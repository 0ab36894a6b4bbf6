package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"evquota/internal/auth"
	"evquota/internal/chargepoint"
	"evquota/internal/clients"
	"evquota/internal/config"
	"evquota/internal/energy"
	"evquota/internal/housekeeping"
	"evquota/internal/ledger"
	"evquota/internal/metrics"
	"evquota/internal/ocpp"
	"evquota/internal/registry"
	"evquota/internal/storage"
	"evquota/internal/ws"
	"evquota/libs/db"
	libredis "evquota/libs/redis"
)

// App wires all dependencies for the OCPP server.
type App struct {
	cfg        *config.Config
	httpServer *http.Server
	store      storage.Store
	ledger     *ledger.Ledger
	registry   *registry.Registry
	commands   *ocpp.CommandManager
	manager    *ws.Manager
	mqtt       *clients.MQTTPublisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New builds the application graph and loads persisted state.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	l := ledger.New(store, cfg.Quota.RosterPath, logger)
	l.Load(ctx)

	resolver := energy.NewResolver(cfg.Energy.Units, cfg.Energy.WhFamilies)
	reg := registry.New(store, resolver, cfg.Storage.ReadingCap, logger)
	reg.Load(ctx)

	commands := ocpp.NewCommandManager(ocpp.CommandManagerConfig{
		Timeout: cfg.CommandTimeout(),
		Logger:  logger,
		Metrics: m,
	})

	gateway, mqttPublisher := buildGateway(cfg, logger)

	manager := ws.NewManager(ws.ManagerConfig{
		PingInterval: cfg.PingInterval(),
		Registry:     reg,
		Commands:     commands,
		Metrics:      m,
		Logger:       logger,
	})

	a := &App{
		cfg:      cfg,
		store:    store,
		ledger:   l,
		registry: reg,
		commands: commands,
		manager:  manager,
		mqtt:     mqttPublisher,
		metrics:  m,
		logger:   logger,
	}

	var authenticator ws.Authenticator
	if cfg.Auth.Enabled {
		authenticator = auth.NewBasicAuthenticator(cfg.Auth.Chargers, nil)
	}
	wsServer := ws.NewServer(manager, a.sessionFactory(gateway), ws.ServerConfig{
		WriteTimeout: cfg.WriteTimeout(),
		ReadTimeout:  cfg.ReadTimeout(),
		Auth:         authenticator,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","connections":%d}`, manager.Count())
	})
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/ocpp/", wsServer.HandleWS)
	mux.HandleFunc("/", wsServer.HandleWS)

	a.httpServer = &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	logger.Info("opening storage", zap.String("driver", cfg.Storage.Driver))
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		sqlDB, err := db.NewSQLiteDB(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		return newSQLStore(ctx, sqlDB, storage.DialectSQLite)
	case config.DriverPostgres:
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return newSQLStore(ctx, sqlDB, storage.DialectPostgres)
	case config.DriverRedis:
		client, err := libredis.NewRedisClient(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPass, cfg.Storage.RedisDB)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(client, cfg.Storage.RedisPrefix), nil
	default:
		return storage.NewFileStore(filepath.Clean(cfg.Storage.DataDir))
	}
}

func newSQLStore(ctx context.Context, sqlDB *sql.DB, dialect storage.Dialect) (storage.Store, error) {
	store, err := storage.NewSQLStore(ctx, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// buildGateway collects the configured telemetry consumers. A broker that cannot be
// reached is logged and skipped.
func buildGateway(cfg *config.Config, logger *zap.Logger) (clients.Gateway, *clients.MQTTPublisher) {
	var gateways clients.MultiGateway

	telemetry := clients.NewTelemetryClient(clients.TelemetryClientConfig{
		URL:       cfg.Telemetry.URL,
		APIKey:    cfg.Telemetry.APIKey,
		Timeout:   cfg.TelemetryTimeout(),
		JWTSecret: cfg.Telemetry.JWTSecret,
		JWTIssuer: cfg.Telemetry.JWTIssuer,
	}, logger)
	if telemetry.Enabled() {
		gateways = append(gateways, telemetry)
	} else {
		logger.Warn("telemetry endpoint not configured, readings will not be posted")
	}

	var publisher *clients.MQTTPublisher
	if cfg.MQTT.Broker != "" {
		p, err := clients.NewMQTTPublisher(clients.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			Timeout:  cfg.TelemetryTimeout(),
		}, logger)
		if err != nil {
			logger.Error("mqtt publisher unavailable", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			publisher = p
			gateways = append(gateways, p)
		}
	}

	if len(gateways) == 0 {
		return nil, publisher
	}
	return gateways, publisher
}

// chargerSession binds the protocol processor of a connection to its charge point.
type chargerSession struct {
	*ocpp.Processor
	cp        *chargepoint.ChargePoint
	pullDelay time.Duration
}

func (s chargerSession) Connected(ctx context.Context) {
	go func() {
		timer := time.NewTimer(s.pullDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			s.cp.RequestConfiguration()
		}
	}()
}

func (a *App) sessionFactory(gateway clients.Gateway) ws.SessionFactory {
	parser := ocpp.NewParser()
	router := ocpp.NewRouter(ocpp.Defaults{HeartbeatInterval: a.cfg.HeartbeatInterval()}, a.logger)
	cpCfg := chargepoint.Config{
		HeartbeatInterval: a.cfg.HeartbeatInterval(),
		ExemptChargers:    a.cfg.OCPP.ExemptChargers,
		TelemetryTimeout:  a.cfg.TelemetryTimeout(),
	}

	return func(stationID string) ws.Session {
		cp := chargepoint.New(stationID, cpCfg, chargepoint.Dependencies{
			Ledger:   a.ledger,
			Registry: a.registry,
			Commands: a.commands,
			Gateway:  gateway,
			Metrics:  a.metrics,
			Logger:   a.logger,
		})
		return chargerSession{
			Processor: ocpp.NewProcessor(parser, router, cp, a.commands, a.metrics, a.logger),
			cp:        cp,
			pullDelay: a.cfg.ConfigPullDelay(),
		}
	}
}

// Run starts background tasks and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.manager.Start(ctx)
	go housekeeping.NewMonthlyReset(a.ledger, a.cfg.ResetInterval(), a.logger).Run(ctx)

	if a.cfg.Quota.WatchRoster {
		watcher := ledger.NewWatcher(a.ledger.RosterPath(), a.ledger, 0, a.logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				a.logger.Error("roster watcher stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		a.logger.Info("starting ocpp http server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.manager.CloseAll()
		return a.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Close releases resources.
func (a *App) Close() {
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close storage", zap.Error(err))
		}
	}
}
