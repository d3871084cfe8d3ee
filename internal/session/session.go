package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/ecolink-core/internal/capability"
	"github.com/nerrad567/ecolink-core/internal/commands"
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

const (
	// maxConcurrentCommands bounds outbound command execution. The portal
	// throttles chatty clients; three permits matches the vendor app.
	maxConcurrentCommands = 3

	// defaultAvailabilityInterval is how often the monitor checks for
	// traffic before probing the device.
	defaultAvailabilityInterval = 60 * time.Second
)

// CommandExecutor sends one command and reports whether the physical
// device confirmed it. Implemented by the protocol executor.
type CommandExecutor interface {
	Execute(ctx context.Context, bus protocol.EventBus, cmd protocol.Command) (bool, error)
}

// TopicBinder manages the broker subscriptions of one device. Implemented
// by the transport correlator. May be nil when running portal-only.
type TopicBinder interface {
	Bind() error
	Unbind()
}

// Session wires the event bus, capabilities and executor together for one
// physical device.
//
// It bounds concurrent outbound execution, runs the availability monitor
// and installs the cross-event side effects: a position update on the
// charger re-checks the operating state, docking refreshes the clean log
// and totals, fresh stats refresh the consumable life spans, and custom
// command replies are re-dispatched through the push message registry.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Session struct {
	device  protocol.DeviceInfo
	caps    *capability.Capabilities
	exec    CommandExecutor
	binder  TopicBinder
	log     *logging.Logger
	bus     *event.Bus
	permits *semaphore.Weighted

	// interval drives the availability monitor; fixed after Start.
	interval time.Duration

	mu          sync.Mutex
	lastTraffic time.Time
	firmware    string
	mac         string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()
}

// New creates a session for one device.
//
// The session owns the event bus it creates: refresh commands resolve
// through the capability registry and execute through the session's
// permit gate.
//
// Parameters:
//   - device: Target device identity
//   - caps: Capability registry resolving refresh commands per kind
//   - exec: Command executor for outbound traffic
//   - binder: Broker subscription surface; nil disables the push channel
//   - log: Logger for session diagnostics
//
// Returns:
//   - *Session: Idle session; call Start to bind and begin monitoring
func New(device protocol.DeviceInfo, caps *capability.Capabilities, exec CommandExecutor, binder TopicBinder, log *logging.Logger) *Session {
	if log == nil {
		log = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		device:   device,
		caps:     caps,
		exec:     exec,
		binder:   binder,
		log:      log.With("component", "session"),
		permits:  semaphore.NewWeighted(maxConcurrentCommands),
		interval: defaultAvailabilityInterval,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.bus = event.New(log, s.executeRefresh, caps.RefreshCommands)
	return s
}

// Bus returns the event bus of this session.
func (s *Session) Bus() *event.Bus {
	return s.bus
}

// SetBinder installs the broker subscription surface. The correlator
// needs the session's bus to exist first, so the binder arrives after
// construction. Must be called before Start.
func (s *Session) SetBinder(binder TopicBinder) {
	s.binder = binder
}

// Start binds the broker subscriptions, installs the cross-event wiring
// and launches the availability monitor.
//
// Returns:
//   - error: If binding the broker subscriptions fails
func (s *Session) Start() error {
	if s.binder != nil {
		if err := s.binder.Bind(); err != nil {
			return fmt.Errorf("binding device topics: %w", err)
		}
	}

	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(event.KindPositions, s.onPositions),
		s.bus.Subscribe(event.KindState, s.onState),
		s.bus.Subscribe(event.KindStats, s.onStats),
		s.bus.Subscribe(event.KindCustomCommand, s.onCustomCommand),
		s.bus.Subscribe(event.KindNetworkInfo, s.onNetworkInfo),
	)

	s.wg.Add(1)
	go s.monitorAvailability()

	return nil
}

// Execute sends one command through the permit gate.
//
// A confirmed exchange marks the device available and resets the
// staleness clock. A failed one leaves availability untouched; a single
// failed command is not conclusive.
//
// Parameters:
//   - ctx: Cancellation context; also bounds the wait for a permit
//   - cmd: Command to execute
//
// Returns:
//   - bool: Whether the physical device confirmed the request
//   - error: Transport-level failure
func (s *Session) Execute(ctx context.Context, cmd protocol.Command) (bool, error) {
	if err := s.permits.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquiring command permit: %w", err)
	}
	defer s.permits.Release(1)

	reached, err := s.exec.Execute(ctx, s.bus, cmd)
	if err != nil {
		return false, err
	}
	if reached {
		s.MarkTraffic()
		s.bus.Notify(event.AvailabilityEvent{Available: true})
	}
	return reached, nil
}

// executeRefresh adapts Execute to the bus refresh callback.
func (s *Session) executeRefresh(ctx context.Context, cmd event.Command) error {
	pc, ok := cmd.(protocol.Command)
	if !ok {
		return fmt.Errorf("refresh command %q is not executable", cmd.Name())
	}
	_, err := s.Execute(ctx, pc)
	return err
}

// MarkTraffic resets the staleness clock. Wire it to the transport's
// traffic hook so pushes count as proof of life.
func (s *Session) MarkTraffic() {
	s.mu.Lock()
	s.lastTraffic = time.Now()
	s.mu.Unlock()
}

// SetFirmwareVersion records the firmware version seen on the stream.
// Wire it to the transport's firmware hook.
func (s *Session) SetFirmwareVersion(version string) {
	s.mu.Lock()
	if s.firmware != version {
		s.firmware = version
		s.log.Info("device firmware version", "version", version)
	}
	s.mu.Unlock()
}

// FirmwareVersion returns the last firmware version seen on the stream.
func (s *Session) FirmwareVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firmware
}

// MACAddress returns the device MAC as reported by the network query.
func (s *Session) MACAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mac
}

// monitorAvailability probes the device whenever the stream goes quiet
// for a full interval. The loop only exits on teardown.
func (s *Session) monitorAvailability() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			quiet := time.Since(s.lastTraffic) >= s.interval-time.Second
			s.mu.Unlock()
			if !quiet {
				continue
			}
			s.checkAvailability()
		}
	}
}

// checkAvailability fans out the availability probes and publishes the
// verdict. The device counts as available only when every probe reached
// it; any error makes this cycle unavailable without stopping the loop.
func (s *Session) checkAvailability() {
	probes := s.caps.AvailabilityCommands()
	if len(probes) == 0 {
		return
	}

	allReached := true
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(s.ctx)
	for _, probe := range probes {
		g.Go(func() error {
			reached, err := s.Execute(ctx, probe)
			if err != nil || !reached {
				mu.Lock()
				allReached = false
				mu.Unlock()
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("availability probe failed", "error", err)
	}

	s.bus.Notify(event.AvailabilityEvent{Available: allReached})
}

// onPositions re-checks the operating state when the device sits on the
// charger. The position stream sees the docking before the state stream
// reports it.
func (s *Session) onPositions(e event.Event) {
	pe, ok := e.(event.PositionsEvent)
	if !ok {
		return
	}

	var robot, charger *event.Position
	for i := range pe.Positions {
		switch pe.Positions[i].Type {
		case event.PositionDevice:
			robot = &pe.Positions[i]
		case event.PositionCharger:
			charger = &pe.Positions[i]
		}
	}
	if robot == nil || charger == nil || robot.X != charger.X || robot.Y != charger.Y {
		return
	}

	if last, ok := s.bus.GetLastEvent(event.KindState); ok {
		if se, ok := last.(event.StateEvent); ok && se.State == event.StateDocked {
			return
		}
	}
	s.log.Debug("device on charger position, re-checking state")
	s.bus.RequestRefresh(event.KindState)
}

// onState refreshes the clean log and totals when a job ends on the dock.
func (s *Session) onState(e event.Event) {
	se, ok := e.(event.StateEvent)
	if !ok || se.State != event.StateDocked {
		return
	}
	s.bus.RequestRefresh(event.KindCleanLog)
	s.bus.RequestRefresh(event.KindTotalStats)
}

// onStats refreshes the consumable life spans; fresh stats mean wear.
func (s *Session) onStats(event.Event) {
	s.bus.RequestRefresh(event.KindLifeSpan)
}

// onCustomCommand re-dispatches an opaque command reply through the push
// registry, so a custom query for a known report still feeds the typed
// event kinds.
func (s *Session) onCustomCommand(e event.Event) {
	ce, ok := e.(event.CustomCommandEvent)
	if !ok {
		return
	}
	handler, ok := commands.MessageHandlerFor(ce.Name)
	if !ok {
		return
	}
	// The stored response is the full portal document, the same shape the
	// push handlers parse.
	payload, err := json.Marshal(ce.Response)
	if err != nil {
		s.log.Warn("custom command response not re-dispatchable", "name", ce.Name, "error", err)
		return
	}
	if state := handler(s.bus, payload); state != protocol.HandlingSuccess {
		s.log.Debug("custom command re-dispatch not handled", "name", ce.Name, "state", state.String())
	}
}

// onNetworkInfo keeps the reported MAC for identification.
func (s *Session) onNetworkInfo(e event.Event) {
	ne, ok := e.(event.NetworkInfoEvent)
	if !ok {
		return
	}
	s.mu.Lock()
	s.mac = ne.MAC
	s.mu.Unlock()
}

// Teardown unbinds the broker subscriptions, stops the availability
// monitor and tears down the event bus. The session must not be used
// afterwards.
func (s *Session) Teardown() {
	s.cancel()

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	if s.binder != nil {
		s.binder.Unbind()
	}

	s.wg.Wait()
	s.bus.Teardown()
}
