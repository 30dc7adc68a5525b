package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	_ "github.com/onap/policy-clamp-acm/migrations"

	"github.com/onap/policy-clamp-acm/internal/api"
	"github.com/onap/policy-clamp-acm/internal/commissioning"
	"github.com/onap/policy-clamp-acm/internal/coordination"
	"github.com/onap/policy-clamp-acm/internal/dispatch"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/config"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/influxdb"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/logging"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/metrics"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/mqtt"
	"github.com/onap/policy-clamp-acm/internal/infrastructure/redislock"
	"github.com/onap/policy-clamp-acm/internal/instantiation"
	"github.com/onap/policy-clamp-acm/internal/store"
	"github.com/onap/policy-clamp-acm/internal/supervision"
	"github.com/onap/policy-clamp-acm/internal/transport"
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - path: Configuration file path
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, path string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting ACM runtime",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	log = logging.New(cfg.Logging, version, cfg.Runtime.ID)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", logging.Err(closeErr))
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// ─── Coordination ─────────────────────────────────────────────────

	var locker coordination.Locker = coordination.NewLocalLocker()
	if cfg.Redis.Enabled {
		leases, redisClient, redisErr := redislock.Connect(ctx, cfg.Redis)
		if redisErr != nil {
			return fmt.Errorf("connecting to Redis: %w", redisErr)
		}
		defer func() {
			log.Info("closing Redis connection")
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("error closing Redis", logging.Err(closeErr))
			}
		}()
		locker = coordination.Chain{locker, coordination.NewRedisLocker(leases, log.Component("coordination"))}
		log.Info("Redis leases enabled", "addr", cfg.Redis.Addr, "lock_ttl", cfg.LockTTL())
	}

	// ─── Stores ───────────────────────────────────────────────────────

	stores, err := openStores(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	// ─── MQTT ─────────────────────────────────────────────────────────

	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Runtime.ID)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", logging.Err(closeErr))
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", logging.Err(err))
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// ─── InfluxDB (optional) ──────────────────────────────────────────

	var influxClient *influxdb.Client
	var transitionStats dispatch.TransitionWriter
	var elementStats supervision.StatsWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", logging.Err(closeErr))
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", logging.Err(err))
		})
		transitionStats = influxClient
		elementStats = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// ─── Coordinator ──────────────────────────────────────────────────

	m := metrics.New()

	queue := transport.NewQueue(cfg.Supervision.OutboundBuffer)
	publisher := transport.NewPublisher(mqttClient, queue, cfg.Supervision.PublisherWorkers, m)
	publisher.SetLogger(log.Component("transport"))
	router := transport.NewRouter(cfg.Supervision.InboundBuffer)
	router.SetLogger(log.Component("transport"))

	recorder := dispatch.NewStoreRecorder(stores.compositions, locker)
	dispatcher := dispatch.New(queue, recorder, dispatch.Options{
		Metrics:        m,
		Stats:          transitionStats,
		TracerProvider: otel.GetTracerProvider(),
		Logger:         log.Component("dispatch"),
	})

	agg := supervision.New(supervision.Deps{
		Compositions: stores.compositions,
		Definitions:  stores.definitions,
		Participants: stores.participants,
		Locker:       locker,
		Metrics:      m,
		Stats:        elementStats,
		Logger:       log.Component("supervision"),
		Workers:      cfg.Supervision.ReportWorkers,
	})
	scanner := supervision.NewScanner(agg, supervision.ScannerConfig{
		Interval:       cfg.ScanInterval(),
		DefaultTimeout: cfg.MaxOperationWait(),
		UnhealthyAfter: secondsOf(cfg.Supervision.ParticipantUnhealthyAfter),
		OfflineAfter:   secondsOf(cfg.Supervision.ParticipantOfflineAfter),
	})

	svc := commissioning.New(commissioning.Deps{
		Definitions:  stores.definitions,
		Compositions: stores.compositions,
		Participants: stores.participants,
		Locker:       locker,
		Sender:       queue,
		Logger:       log.Component("commissioning"),
	})
	provider := instantiation.New(instantiation.Deps{
		Compositions:   stores.compositions,
		Definitions:    stores.definitions,
		Participants:   stores.participants,
		Rollbacks:      stores.rollbacks,
		Locker:         locker,
		Dispatcher:     dispatcher,
		Reporter:       agg,
		DefaultTimeout: cfg.MaxOperationWait(),
		Logger:         log.Component("instantiation"),
	})

	// ─── API ──────────────────────────────────────────────────────────

	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Metrics:       cfg.Metrics,
		Logger:        log.Component("api"),
		Provider:      provider,
		Commissioning: svc,
		Participants:  stores.participants,
		Prometheus:    m,
		DB:            db,
		MQTT:          mqttClient,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	hub := apiServer.Hub()

	// Dispatcher progress and aggregator changes both reach WebSocket
	// subscribers; aggregator changes also wake the dispatcher.
	recorder.SetOnChange(hub.PublishComposition)
	agg.OnComposition(dispatcher.Notify)
	agg.OnComposition(hub.PublishComposition)
	agg.OnDefinition(hub.PublishDefinition)
	agg.OnParticipant(hub.PublishParticipant)

	// ─── Run ──────────────────────────────────────────────────────────

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return publisher.Run(gctx) })
	g.Go(func() error { return agg.Run(gctx, router.Reports()) })
	g.Go(func() error { return agg.RunParticipants(gctx, router.Heartbeats(), router.PrimeAcks()) })
	g.Go(func() error { return scanner.Run(gctx) })

	if err := router.Start(gctx, mqttClient); err != nil {
		dispatcher.Close()
		queue.Close()
		return errors.Join(fmt.Errorf("subscribing to participant topics: %w", err), g.Wait())
	}

	if err := apiServer.Start(gctx); err != nil {
		dispatcher.Close()
		queue.Close()
		return errors.Join(fmt.Errorf("starting API server: %w", err), g.Wait())
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"runtime_id", cfg.Runtime.ID,
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Stop accepting requests, then stop in-flight transitions before the
	// outbound queue closes under them.
	if closeErr := apiServer.Close(); closeErr != nil {
		log.Error("error closing API server", logging.Err(closeErr))
	}
	dispatcher.Close()
	dispatcher.Wait()
	queue.Close()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("ACM runtime stopped")
	return nil
}

// runtimeStores groups the persistence layer the coordinator runs on.
type runtimeStores struct {
	compositions store.CompositionStore
	definitions  store.DefinitionStore
	participants store.ParticipantStore
	rollbacks    store.RollbackStore
}

// openStores builds the repositories. A single runtime serves compositions
// and definitions from warm in-memory registries; with Redis leases enabled
// other replicas write the same database, so reads go straight to SQLite.
func openStores(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*runtimeStores, error) {
	s := &runtimeStores{
		compositions: store.NewSQLiteCompositionRepository(db),
		definitions:  store.NewSQLiteDefinitionRepository(db),
		participants: store.NewSQLiteParticipantRepository(db),
		rollbacks:    store.NewSQLiteRollbackRepository(db),
	}
	if cfg.Redis.Enabled {
		log.Info("registry cache disabled for shared deployment")
		return s, nil
	}

	compositions := store.NewCompositionRegistry(s.compositions)
	compositions.SetLogger(log.Component("store"))
	if err := compositions.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading composition registry: %w", err)
	}
	definitions := store.NewDefinitionRegistry(s.definitions)
	definitions.SetLogger(log.Component("store"))
	if err := definitions.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading definition registry: %w", err)
	}

	s.compositions = compositions
	s.definitions = definitions
	return s, nil
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// secondsOf converts a config value in seconds to a Duration.
func secondsOf(n int) time.Duration {
	return time.Duration(n) * time.Second
}
