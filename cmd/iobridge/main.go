// iobridge exposes digital I/O channels (Phidget-style interface kits,
// Raspberry Pi GPIO, USB relay boards) over MQTT, webhooks and an HTTP API.
//
// The channel registry owns liveness and output state. Hardware events and
// inbound commands are applied there, and every resulting transition is
// handed to a bounded notification queue that delivers it to the broker,
// webhooks, InfluxDB and WebSocket subscribers.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-iobridge/migrations"

	"github.com/nerrad567/gray-logic-iobridge/internal/api"
	"github.com/nerrad567/gray-logic-iobridge/internal/audit"
	"github.com/nerrad567/gray-logic-iobridge/internal/bridges/mqttbridge"
	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/hardware"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-iobridge/internal/notify"
	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// envConfigPath names the environment variable consulted when --config is absent.
const envConfigPath = "IOBRIDGE_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean, signal-initiated shutdown.
func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("iobridge", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to the YAML configuration file (env "+envConfigPath+")")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("iobridge %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting iobridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := resolveConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).With("bridge", cfg.Bridge.ID)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	// Open database
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
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Output policy
	store := policy.NewStore(policy.NewSQLiteRepository(db.DB))
	store.SetLogger(log)
	if loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading output policy: %w", loadErr)
	}
	commands := audit.NewSQLiteRepository(db.DB)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Notification dispatcher and its sinks
	dispatcher := notify.NewDispatcher(notify.DispatcherOptions{
		QueueSize:       cfg.Dispatcher.QueueSize,
		DeliveryTimeout: time.Duration(cfg.Dispatcher.DeliveryTimeout) * time.Second,
		DrainTimeout:    time.Duration(cfg.Dispatcher.DrainTimeout) * time.Second,
		Logger:          log.With("component", "dispatcher"),
		Metrics:         notify.NewMetrics(reg),
	})
	dispatcher.AddSink(notify.NewWebhookSink(nil))

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		dispatcher.AddSink(notify.NewMQTTSink(mqttClient, byte(cfg.MQTT.QoS)))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		dispatcher.AddSink(notify.NewInfluxSink(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
		dispatcher.AddSink(hub)
	}

	publisher, err := notify.NewPublisher(notify.PublisherOptions{
		Queue:     dispatcher,
		MQTT:      mqttClient != nil,
		Discovery: cfg.MQTT.Discovery.Enabled,
		Topics:    mqtt.Topics{DiscoveryPrefix: cfg.MQTT.Discovery.Prefix},
		Webhooks:  webhookRoutes(cfg.Webhooks),
		Influx:    cfg.InfluxDB.Enabled,
		WebSocket: hub != nil,
		Logger:    log.With("component", "publisher"),
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	// Channel registry and hardware sources
	registry, err := channel.NewRegistry(channel.Options{
		Store:         store,
		Listener:      publisher,
		Logger:        log.With("component", "registry"),
		Metrics:       channel.NewMetrics(reg),
		AttachTimeout: cfg.GetAttachTimeout(),
	})
	if err != nil {
		return fmt.Errorf("creating channel registry: %w", err)
	}

	sources, buildErr := hardware.Build(cfg.Hardware, log.With("component", "hardware"))
	if buildErr != nil {
		log.Error("some hardware backends could not be configured", "error", buildErr)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no hardware backend available: %w", errors.Join(channel.ErrNoSources, buildErr))
	}
	for _, src := range sources {
		if addErr := registry.AddSource(src); addErr != nil {
			return fmt.Errorf("registering source %s: %w", src.Name(), addErr)
		}
	}

	// The queue must be running before the first attach is applied.
	if startErr := dispatcher.Start(ctx); startErr != nil {
		return fmt.Errorf("starting dispatcher: %w", startErr)
	}
	defer func() {
		log.Info("draining notification queue", "queued", dispatcher.Len())
		dispatcher.Stop()
	}()

	// MQTT command bridge
	var bridge *mqttbridge.Bridge
	if mqttClient != nil {
		bridge, err = mqttbridge.NewBridge(mqttbridge.BridgeOptions{
			MQTT:           mqttClient,
			Registry:       registry,
			Announcer:      publisher,
			BridgeID:       cfg.Bridge.ID,
			Version:        version,
			HealthInterval: time.Duration(cfg.MQTT.HealthInterval) * time.Second,
			QoS:            byte(cfg.MQTT.QoS),
			Stats: func() mqttbridge.Statistics {
				return mqttbridge.Statistics{Notifications: dispatcher.Stats()}
			},
			Audit:  commands,
			Logger: log.With("component", "mqttbridge"),
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			bridge.OnReconnect()
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	if bridge != nil {
		if startErr := bridge.Start(gctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			bridge.Stop()
		}()
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log.With("component", "api"),
			Registry:   registry,
			Dispatcher: dispatcher,
			DB:         db,
			Audit:      commands,
			Gatherer:   reg,
			Hub:        hub,
			Version:    version,
		}
		if bridge != nil {
			deps.Health = bridge
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// Sources start last so command subscriptions exist before the first attach.
	g.Go(func() error {
		if runErr := registry.Run(gctx); runErr != nil {
			return fmt.Errorf("channel registry: %w", runErr)
		}
		return nil
	})

	log.Info("initialisation complete", "sources", len(sources))

	// Run returns when the signal context is cancelled or a component fails.
	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred cleanup runs in reverse order: API, MQTT bridge, dispatcher
	// drain, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// resolveConfigPath picks the configuration file: the --config flag, then
// IOBRIDGE_CONFIG, then the default path.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(envConfigPath); path != "" {
		return path
	}
	return defaultConfigPath
}

func webhookRoutes(hooks []config.WebhookConfig) []notify.WebhookRoute {
	routes := make([]notify.WebhookRoute, 0, len(hooks))
	for _, h := range hooks {
		routes = append(routes, notify.WebhookRoute{
			BaseURL:    h.URL,
			Token:      h.Token,
			AuthScheme: h.AuthScheme,
		})
	}
	return routes
}
