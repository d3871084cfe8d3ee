package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nerrad567/ecolink-core/internal/commands"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// Pending p2p requests are short-lived; a device that has not answered
// within a minute never will.
const (
	pendingTTL     = 60 * time.Second
	pendingCleanup = 60 * time.Second
)

// Topic segment indices of the vendor broker hierarchies. The patterns
// are built by the mqtt package; parsing here must stay in sync with
// those builders.
const (
	segmentsReport = 7
	segmentsP2P    = 12

	reportName = 2

	p2pName      = 2
	p2pRole      = 9
	p2pRequestID = 10
)

// Broker is the narrow view the correlator needs of the mqtt client.
type Broker interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Hooks are optional observations the session layers on top of the
// message stream.
type Hooks struct {
	// OnTraffic fires for every message of the bound device, regardless
	// of whether it could be handled. Drives the availability monitor.
	OnTraffic func()

	// OnFirmwareVersion fires when a message header carries the device
	// firmware version.
	OnFirmwareVersion func(version string)
}

// Correlator binds the broker message streams of one device to the event
// bus.
//
// Unsolicited reports are routed through the push message registry. For
// p2p exchanges the correlator watches requests from other controllers
// (the vendor app, mostly), remembers them briefly by request id and
// pairs the device's answer back to the observed command, so settings
// changed elsewhere update the local event cache without a refresh.
type Correlator struct {
	broker Broker
	bus    protocol.EventBus
	device protocol.DeviceInfo
	log    *logging.Logger
	hooks  Hooks

	// pending maps request ids to the reconstructed commands awaiting
	// their response.
	pending *gocache.Cache

	topics []string
}

// NewCorrelator creates a correlator for one device.
//
// Parameters:
//   - broker: Subscription surface of the mqtt client
//   - bus: Event bus receiving decoded events
//   - device: Device identity used in topic patterns
//   - log: Logger for routing diagnostics
//   - hooks: Optional stream observations; zero value disables them
//
// Returns:
//   - *Correlator: Unbound correlator; call Bind to start receiving
func NewCorrelator(broker Broker, bus protocol.EventBus, device protocol.DeviceInfo, log *logging.Logger, hooks Hooks) *Correlator {
	if log == nil {
		log = logging.Default()
	}
	return &Correlator{
		broker:  broker,
		bus:     bus,
		device:  device,
		log:     log.With("component", "transport"),
		hooks:   hooks,
		pending: gocache.New(pendingTTL, pendingCleanup),
	}
}

// Bind subscribes to the report and p2p streams of the device.
func (c *Correlator) Bind() error {
	topics := mqtt.Topics{}
	dt := string(c.device.DataType)

	subscriptions := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topics.DeviceReports(c.device.ID, c.device.Class, c.device.Resource, dt), c.handleReport},
		{topics.P2PRequests(c.device.ID, c.device.Class, c.device.Resource, dt), c.handleP2P},
		{topics.P2PResponses(c.device.ID, c.device.Class, c.device.Resource, dt), c.handleP2P},
	}

	for _, sub := range subscriptions {
		if err := c.broker.Subscribe(sub.topic, sub.handler); err != nil {
			c.unbind()
			return fmt.Errorf("binding %s: %w", sub.topic, err)
		}
		c.topics = append(c.topics, sub.topic)
	}
	return nil
}

// Unbind drops the device subscriptions.
func (c *Correlator) Unbind() {
	c.unbind()
}

func (c *Correlator) unbind() {
	for _, topic := range c.topics {
		if err := c.broker.Unsubscribe(topic); err != nil {
			c.log.Warn("unsubscribe failed", "topic", topic, "error", err)
		}
	}
	c.topics = nil
}

// handleReport routes one unsolicited device report.
func (c *Correlator) handleReport(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != segmentsReport {
		return fmt.Errorf("malformed report topic %q", topic)
	}
	c.observe(payload)

	name := parts[reportName]
	handler, ok := commands.MessageHandlerFor(name)
	if !ok {
		c.log.Debug("unhandled report", "name", name)
		return nil
	}

	state := handler(c.bus, payload)
	switch state {
	case protocol.HandlingSuccess:
	case protocol.HandlingAnalyse, protocol.HandlingAnalyseLogged:
		c.log.Debug("report needs analysis", "name", name, "payload", string(payload))
	default:
		c.log.Warn("report handling failed", "name", name, "state", state.String())
	}
	return nil
}

// handleP2P routes one p2p message, request or response side.
func (c *Correlator) handleP2P(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != segmentsP2P {
		return fmt.Errorf("malformed p2p topic %q", topic)
	}
	c.observe(payload)

	name := parts[p2pName]
	requestID := parts[p2pRequestID]

	switch parts[p2pRole] {
	case "q":
		c.trackRequest(name, requestID, payload)
	case "p":
		c.resolveResponse(name, requestID, payload)
	default:
		return fmt.Errorf("unknown p2p role in topic %q", topic)
	}
	return nil
}

// trackRequest remembers a command another controller sent, keyed by its
// request id.
func (c *Correlator) trackRequest(name, requestID string, payload []byte) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		c.log.Debug("undecodable p2p request", "name", name, "error", err)
		return
	}
	args := map[string]any{}
	if body, ok := doc["body"].(map[string]any); ok {
		if data, ok := body["data"].(map[string]any); ok {
			args = data
		}
	}

	cmd, ok := commands.NewP2PCommand(name, args)
	if !ok {
		c.log.Debug("untracked p2p command", "name", name)
		return
	}
	c.pending.Set(requestID, cmd, gocache.DefaultExpiration)
}

// resolveResponse pairs a device answer with its tracked request.
func (c *Correlator) resolveResponse(name, requestID string, payload []byte) {
	entry, ok := c.pending.Get(requestID)
	if !ok {
		// Either we never saw the request or it expired; both are routine.
		c.log.Debug("p2p response without pending request", "name", name, "request_id", requestID)
		return
	}
	c.pending.Delete(requestID)

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		c.log.Debug("undecodable p2p response", "name", name, "error", err)
		return
	}

	cmd := entry.(commands.P2PHandler)
	if state := cmd.HandleP2PResponse(c.bus, doc); state != protocol.HandlingSuccess {
		c.log.Debug("p2p response handling failed", "name", name, "state", state.String())
	}
}

// observe fires the stream hooks for one message.
func (c *Correlator) observe(payload []byte) {
	if c.hooks.OnTraffic != nil {
		c.hooks.OnTraffic()
	}
	if c.hooks.OnFirmwareVersion == nil {
		return
	}
	var doc struct {
		Header struct {
			FwVer string `json:"fwVer"`
		} `json:"header"`
	}
	if err := json.Unmarshal(payload, &doc); err == nil && doc.Header.FwVer != "" {
		c.hooks.OnFirmwareVersion(doc.Header.FwVer)
	}
}

// PendingCount returns the number of tracked p2p requests.
func (c *Correlator) PendingCount() int {
	return c.pending.ItemCount()
}
