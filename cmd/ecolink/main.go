// Ecolink Core - cloud-connected vacuum protocol engine
//
// This is the main entry point for the Ecolink Core daemon. It logs in
// to the vendor cloud, connects to the push broker, wires the event bus
// for one device and keeps the optional history and telemetry observers
// fed until shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/ecolink-core/internal/auth"
	"github.com/nerrad567/ecolink-core/internal/capability"
	"github.com/nerrad567/ecolink-core/internal/history"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/config"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ecolink-core/internal/mapdata"
	"github.com/nerrad567/ecolink-core/internal/protocol"
	"github.com/nerrad567/ecolink-core/internal/session"
	"github.com/nerrad567/ecolink-core/internal/telemetry"
	"github.com/nerrad567/ecolink-core/internal/transport"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Ecolink Core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Log in before anything else touches the cloud; a bad credential
	// should fail fast, not on the first command.
	authClient := auth.NewClient(cfg, log)
	creds, err := authClient.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	log.Info("authenticated", "user_id", creds.UserID)

	device := protocol.DeviceInfo{
		ID:       cfg.Device.ID,
		Class:    cfg.Device.Class,
		Resource: cfg.Device.Resource,
		DataType: protocol.DataType(cfg.Device.DataType),
	}
	caps := capability.New(device, log)
	executor := protocol.NewExecutor(authClient, device, log)

	// Connect to the vendor broker. The portal token doubles as the
	// broker password; the credential function re-authenticates as needed
	// so reconnects always carry a live token.
	brokerURL := auth.BrokerURL(cfg.Account.Country, cfg.MQTT.URLOverride)
	clientID := fmt.Sprintf("%s@ecouser/%s", creds.UserID, auth.ResourceID(cfg.Account.ClientID))
	mqttClient, err := mqtt.Connect(cfg.MQTT, brokerURL, clientID, func() (string, string) {
		current, authErr := authClient.Authenticate(context.Background())
		if authErr != nil {
			log.Error("broker credential refresh failed", "error", authErr)
			return "", ""
		}
		return current.UserID, current.Token
	})
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer func() {
		log.Info("disconnecting from broker")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing broker connection", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("broker connected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("broker disconnected", "error", err) })
	log.Info("broker connected", "url", brokerURL, "client_id", clientID)

	// A rotated token invalidates the running broker session; force a
	// reconnect so the new one is picked up.
	unsubscribeAuth := authClient.Subscribe(func(auth.Credentials) {
		log.Info("credentials rotated, restarting broker session")
		mqttClient.Restart()
	})
	defer unsubscribeAuth()

	sess := session.New(device, caps, executor, nil, log)
	defer func() {
		log.Info("tearing down session")
		sess.Teardown()
	}()

	correlator := transport.NewCorrelator(mqttClient, sess.Bus(), device, log, transport.Hooks{
		OnTraffic:         sess.MarkTraffic,
		OnFirmwareVersion: sess.SetFirmwareVersion,
	})
	sess.SetBinder(correlator)

	// Map bookkeeping: composes room lists from the map streams.
	rooms := mapdata.NewTracker(sess.Bus(), log)
	rooms.Attach()
	defer rooms.Detach()

	// Event history (optional)
	if cfg.History.Enabled {
		store, openErr := history.Open(cfg.History.Path, cfg.History.BusyTimeout, log)
		if openErr != nil {
			return fmt.Errorf("opening history store: %w", openErr)
		}
		defer func() {
			log.Info("closing history store")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing history store", "error", closeErr)
			}
		}()

		if deleted, trimErr := store.Trim(ctx, cfg.History.Retain); trimErr != nil {
			log.Warn("history trim failed", "error", trimErr)
		} else if deleted > 0 {
			log.Info("history trimmed", "deleted", deleted)
		}

		store.Attach(sess.Bus())
		defer store.Detach()
		log.Info("history store attached", "path", cfg.History.Path)
	} else {
		log.Info("history store disabled")
	}

	// Metric sink (optional)
	if cfg.Telemetry.Enabled {
		sink, connErr := telemetry.Connect(cfg.Telemetry, device.ID, log)
		if connErr != nil {
			return fmt.Errorf("connecting telemetry sink: %w", connErr)
		}
		defer func() {
			log.Info("closing telemetry sink")
			if closeErr := sink.Close(); closeErr != nil {
				log.Error("error closing telemetry sink", "error", closeErr)
			}
		}()

		sink.Attach(sess.Bus())
		defer sink.Detach()
		log.Info("telemetry sink attached", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	} else {
		log.Info("telemetry sink disabled")
	}

	if err := sess.Start(); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"device", device.ID, "class", device.Class)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Ecolink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ECOLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ECOLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
