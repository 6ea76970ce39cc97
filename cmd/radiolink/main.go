// Radiolink Core - Network Radio Device Agent
//
// This is the main entry point for the Radiolink Core agent. The agent
// maintains a live mirror of one networked radio receiver over its UDP
// control protocol and exposes it through:
//   - A readings store with change history (SQLite)
//   - MQTT state/command/health topics
//   - A local REST API
//   - Optional InfluxDB telemetry
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/radiolink/radiolink-core/migrations"

	"github.com/radiolink/radiolink-core/internal/api"
	"github.com/radiolink/radiolink-core/internal/bridges/netradio"
	"github.com/radiolink/radiolink-core/internal/infrastructure/config"
	"github.com/radiolink/radiolink-core/internal/infrastructure/database"
	"github.com/radiolink/radiolink-core/internal/infrastructure/influxdb"
	"github.com/radiolink/radiolink-core/internal/infrastructure/logging"
	"github.com/radiolink/radiolink-core/internal/infrastructure/mqtt"
	"github.com/radiolink/radiolink-core/internal/readings"
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

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Radiolink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Create the readings store for the mirrored receiver
	store := readings.NewStore(cfg.Radio.DeviceID, netradio.DeclaredReadings())
	store.SetLogger(log)
	defer store.Close()

	// Persist every reading change to SQLite
	history := readings.NewSQLiteHistoryRepository(db.DB)
	store.Subscribe(readings.Recorder(ctx, history, log))
	log.Info("readings store initialised", "device_id", cfg.Radio.DeviceID)

	// Connect to MQTT broker (optional). The last will makes the broker
	// flip the health topic to offline if the agent dies.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		will, willErr := buildHealthWill(cfg.Radio.DeviceID)
		if willErr != nil {
			return fmt.Errorf("building MQTT will: %w", willErr)
		}

		mqttClient, err = mqtt.Connect(cfg.MQTT, will)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Chart numeric readings and reachability transitions
		store.Subscribe(metricsSubscriber(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the receiver bridge
	bridge, err := startBridge(ctx, cfg, store, mqttClient, log)
	if err != nil {
		return fmt.Errorf("starting receiver bridge: %w", err)
	}
	defer func() {
		log.Info("stopping receiver bridge")
		bridge.Stop()
	}()

	// Start the REST API
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Bridge:  bridge,
		Store:   store,
		History: history,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Receiver bridge
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Readings store
	// 6. Database

	log.Info("Radiolink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RADIOLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RADIOLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildHealthWill builds the MQTT Last Will and Testament: an offline health
// message on the bridge health topic, retained so late subscribers see it.
func buildHealthWill(deviceID string) (*mqtt.Will, error) {
	payload, err := json.Marshal(netradio.NewLWTMessage(deviceID))
	if err != nil {
		return nil, fmt.Errorf("encoding LWT message: %w", err)
	}

	return &mqtt.Will{
		Topic:    netradio.HealthTopic(),
		Payload:  payload,
		QoS:      1,
		Retained: true,
	}, nil
}

// startBridge initialises and starts the network radio bridge.
//
// Parameters:
//   - ctx: Context for startup and the health report loop
//   - cfg: Application configuration
//   - store: Readings store for the mirrored receiver
//   - mqttClient: MQTT client (may be nil if disabled)
//   - log: Logger instance
//
// Returns:
//   - *netradio.Bridge: Running bridge
//   - error: If the bridge fails to start
func startBridge(ctx context.Context, cfg *config.Config, store *readings.Store, mqttClient *mqtt.Client, log *logging.Logger) (*netradio.Bridge, error) {
	transport := netradio.NewUDPTransport()
	transport.SetLogger(log)

	// Adapt the infrastructure MQTT client to the bridge's interface
	var bridgeMQTT netradio.MQTTClient
	if mqttClient != nil {
		bridgeMQTT = &mqttBridgeAdapter{client: mqttClient}
	}

	bridge, err := netradio.NewBridge(netradio.BridgeOptions{
		Config:     cfg.Radio,
		Transport:  transport,
		Store:      store,
		MQTTClient: bridgeMQTT,
		Logger:     log,
		Version:    version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("receiver bridge started",
		"device_id", cfg.Radio.DeviceID,
		"host", cfg.Radio.Host,
		"listen_port", cfg.Radio.UDPListenPort,
	)

	return bridge, nil
}

// metricsSubscriber returns a readings subscriber that forwards chartable
// changes to InfluxDB. The state reading becomes the reachability gauge;
// numeric readings become their own measurements. Sentinel values that do
// not parse as numbers (the muted volume marker) are skipped.
func metricsSubscriber(influx *influxdb.Client) func(readings.ChangeSet) {
	return func(cs readings.ChangeSet) {
		for name, value := range cs.Changed {
			if name == netradio.ReadingState {
				influx.WriteReachability(cs.DeviceID, netradio.ReachabilityGauge(value))
				continue
			}

			measurement, ok := netradio.MetricMeasurement(name)
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			influx.WriteReadingMetric(cs.DeviceID, measurement, v)
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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

	// Bridge health is covered by its own reporter: it publishes status
	// on the MQTT health topic from startup onwards.

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements netradio.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements netradio.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements netradio.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements netradio.MQTTClient.
// No-op: the MQTT client lifecycle is managed by run's defer chain.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {
}
