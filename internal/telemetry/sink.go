package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/config"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// metricKinds is the set of event kinds mirrored into InfluxDB.
var metricKinds = []event.Kind{
	event.KindBattery,
	event.KindState,
	event.KindError,
	event.KindStats,
	event.KindTotalStats,
	event.KindLifeSpan,
	event.KindFanSpeed,
	event.KindWaterInfo,
	event.KindVolume,
	event.KindNetworkInfo,
}

// Sink mirrors numeric device events into InfluxDB.
//
// Writes are non-blocking and batched; a failed write never reaches the
// event subscribers that triggered it.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Sink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	deviceID string
	log      *logging.Logger

	connected bool
	mu        sync.RWMutex

	unsubs []func()
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication
//  2. Verifies connectivity with a ping
//  3. Configures the non-blocking write API with batching
//  4. Starts draining async write errors into the log
//
// Parameters:
//   - cfg: Telemetry configuration from config.yaml
//   - deviceID: Device identifier used as a point tag
//   - log: Logger for async write failures (nil uses the default)
//
// Returns:
//   - *Sink: Connected sink ready for use
//   - error: If telemetry is disabled or connection fails
func Connect(cfg config.TelemetryConfig, deviceID string, log *logging.Logger) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logging.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	s := &Sink{
		client:    client,
		writeAPI:  writeAPI,
		deviceID:  deviceID,
		log:       log.With("component", "telemetry"),
		connected: true,
	}

	go s.drainWriteErrors(writeAPI.Errors())

	return s, nil
}

// drainWriteErrors logs async write errors from the WriteAPI.
func (s *Sink) drainWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		s.log.Warn("metric write failed", "error", err)
	}
}

// Attach subscribes the sink to the metric event kinds on the bus.
// Call Detach when the session shuts down.
func (s *Sink) Attach(bus *event.Bus) {
	for _, kind := range metricKinds {
		s.unsubs = append(s.unsubs, bus.Subscribe(kind, s.onEvent))
	}
}

// Detach unsubscribes the sink from the bus.
func (s *Sink) Detach() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// onEvent converts one delivered event into a point and queues it.
func (s *Sink) onEvent(e event.Event) {
	if !s.IsConnected() {
		return
	}
	point := pointFor(s.deviceID, e)
	if point == nil {
		return
	}
	s.writeAPI.WritePoint(point)
}

// pointFor maps an event to an InfluxDB point.
//
// Returns nil for events that carry nothing worth charting.
func pointFor(deviceID string, e event.Event) *write.Point {
	tags := map[string]string{"device_id": deviceID}
	now := time.Now()

	switch ev := e.(type) {
	case event.BatteryEvent:
		return write.NewPoint("battery", tags,
			map[string]interface{}{"percent": ev.Value}, now)

	case event.StateEvent:
		tags["state"] = ev.State.String()
		return write.NewPoint("state", tags,
			map[string]interface{}{"value": int(ev.State)}, now)

	case event.ErrorEvent:
		return write.NewPoint("device_error", tags,
			map[string]interface{}{"code": ev.Code, "description": ev.Description}, now)

	case event.StatsEvent:
		fields := map[string]interface{}{}
		if ev.Area != nil {
			fields["area_m2"] = *ev.Area
		}
		if ev.Time != nil {
			fields["duration_s"] = *ev.Time
		}
		if len(fields) == 0 {
			return nil
		}
		return write.NewPoint("clean_stats", tags, fields, now)

	case event.TotalStatsEvent:
		return write.NewPoint("total_stats", tags, map[string]interface{}{
			"area_m2":    ev.Area,
			"duration_s": ev.Time,
			"cleanings":  ev.Cleanings,
		}, now)

	case event.LifeSpanEvent:
		tags["component"] = string(ev.Component)
		return write.NewPoint("life_span", tags, map[string]interface{}{
			"percent":       ev.Percent,
			"remaining_min": ev.Remaining,
		}, now)

	case event.FanSpeedEvent:
		return write.NewPoint("fan_speed", tags,
			map[string]interface{}{"level": int(ev.Speed)}, now)

	case event.WaterInfoEvent:
		fields := map[string]interface{}{"amount": int(ev.Amount)}
		if ev.MopAttached != nil {
			fields["mop_attached"] = *ev.MopAttached
		}
		return write.NewPoint("water_info", tags, fields, now)

	case event.VolumeEvent:
		return write.NewPoint("volume", tags,
			map[string]interface{}{"level": ev.Volume}, now)

	case event.NetworkInfoEvent:
		tags["ssid"] = ev.SSID
		return write.NewPoint("network", tags,
			map[string]interface{}{"rssi": ev.RSSI}, now)

	default:
		return nil
	}
}

// HealthCheck verifies the InfluxDB connection is alive and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Sink) HealthCheck(ctx context.Context) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := s.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("telemetry health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("telemetry health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the current connection state.
func (s *Sink) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Flush forces all pending writes to be sent to InfluxDB.
//
// Blocks until all buffered points are written. Safe to call after
// Close (no-op).
func (s *Sink) Flush() {
	if s.writeAPI == nil || !s.IsConnected() {
		return
	}
	s.writeAPI.Flush()
}

// Close flushes pending writes and shuts down the InfluxDB connection.
//
// Returns:
//   - error: nil (the InfluxDB client Close doesn't return errors)
func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}

	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.writeAPI.Flush()
	s.client.Close()

	return nil
}
