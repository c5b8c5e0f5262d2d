// gadgetd - IMF gadget inventory service
//
// This is the main entry point for gadgetd. It serves the gadget inventory
// over HTTP, runs the decommission and self-destruct lifecycle, and fans
// lifecycle events out to WebSocket clients, MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/imf-phoenix/gadgetd/migrations"

	"github.com/imf-phoenix/gadgetd/internal/api"
	"github.com/imf-phoenix/gadgetd/internal/audit"
	"github.com/imf-phoenix/gadgetd/internal/auth"
	"github.com/imf-phoenix/gadgetd/internal/gadget"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/influxdb"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/logging"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting gadgetd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", db.Driver())

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logSchema(ctx, log, db)

	repos := newRepositories(db)

	authSvc, err := auth.NewService(repos.users, auth.NewTokenService(cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL()))
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	lifecycle := gadget.NewLifecycle(repos.gadgets, nil, cfg.GetSelfDestructDelay())
	lifecycle.SetLogger(log.Component("lifecycle"))

	var sinks gadget.MultiNotifier

	mqttClient, err := connectMQTT(cfg.MQTT, log.Component("mqtt"))
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer closeMQTT(mqttClient, log)
		sinks = append(sinks, mqtt.NewEventPublisher(mqttClient, mqttClient.QoS()))
	}

	influxClient, err := connectInfluxDB(cfg.InfluxDB, log.Component("influxdb"))
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer closeInfluxDB(influxClient, log)
		sinks = append(sinks, influxdb.NewLifecycleRecorder(influxClient))
	}

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.Component("api"),
		Auth:     authSvc,
		Gadgets:  lifecycle,
		Audit:    repos.audit,
		Database: db,
		Version:  version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	lifecycle.SetNotifier(append(gadget.MultiNotifier{server.Hub()}, sinks...))

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Pending self-destruct timers live in memory only.
	if pending := lifecycle.PendingDestructions(); pending > 0 {
		log.Warn("abandoning pending self-destruct sequences", "count", pending)
	}

	log.Info("gadgetd stopped")
	return nil
}

// logSchema reports the applied schema version. Failure to read it is
// not fatal; Migrate already succeeded.
func logSchema(ctx context.Context, log *logging.Logger, db *database.DB) {
	states, err := db.MigrationStatus(ctx)
	if err != nil {
		log.Warn("reading schema status", "error", err)
		return
	}
	var current int64
	for _, st := range states {
		if st.Applied {
			current = st.Version
		}
	}
	log.Info("database schema ready", "version", current, "known_versions", len(states))
}

// connectMQTT returns nil, nil when MQTT is disabled.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.Enabled {
		log.Info("MQTT disabled")
		return nil, nil
	}
	c, err := mqtt.Connect(cfg, mqtt.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return c, nil
}

func closeMQTT(c *mqtt.Client, log *logging.Logger) {
	st := c.Stats()
	log.Info("disconnecting from MQTT", "published", st.Published, "failed", st.Failed)
	if err := c.Close(); err != nil {
		log.Error("error closing MQTT", "error", err)
	}
}

// connectInfluxDB returns nil, nil when metrics are disabled.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.Enabled {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	c, err := influxdb.Connect(cfg, influxdb.WithErrorHandler(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	}))
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return c, nil
}

func closeInfluxDB(c *influxdb.Client, log *logging.Logger) {
	log.Info("closing InfluxDB connection", "points_queued", c.Queued())
	if err := c.Close(); err != nil {
		log.Error("error closing InfluxDB", "error", err)
	}
}

// getConfigPath returns the configuration file path.
// GADGETD_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("GADGETD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// repositories groups the stores backed by the configured database.
type repositories struct {
	users   auth.UserRepository
	gadgets gadget.Repository
	audit   audit.Repository
}

// newRepositories returns the stores for the database driver.
func newRepositories(db *database.DB) repositories {
	if db.Driver() == config.DriverPostgres {
		return repositories{
			users:   auth.NewPostgresUserRepository(db),
			gadgets: gadget.NewPostgresRepository(db),
			audit:   audit.NewPostgresRepository(db),
		}
	}
	return repositories{
		users:   auth.NewUserRepository(db),
		gadgets: gadget.NewSQLiteRepository(db.DB),
		audit:   audit.NewSQLiteRepository(db.DB),
	}
}

// healthCheck verifies all connected dependencies. Optional clients may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
