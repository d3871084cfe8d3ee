package protocol

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
)

// Portal endpoint and client identification constants. The portal rejects
// requests whose app fingerprint it does not recognise, so these mirror a
// released vendor app.
const (
	pathIOTDevManager = "iot/devmanager.do"

	queryClientVersion = "1.67.3"
	queryClientType    = "a"
	queryAppVersion    = "1.3.1"

	payloadVersion  = "0.0.50"
	payloadTimezone = 480
)

// Portal errno values carried in rejected responses.
const (
	errnoDeviceOffline  = 4200
	errnoRequestTimeout = 500
)

// Poster issues authenticated portal requests. Implemented by the auth
// package; the indirection keeps command execution testable without a
// cloud account.
type Poster interface {
	PostAuthenticated(ctx context.Context, path string, body map[string]any, query url.Values) (map[string]any, error)
}

// Executor sends commands to a device through the cloud portal and routes
// the responses into the event bus.
//
// Thread Safety:
//   - Execute is safe for concurrent use; the executor itself is stateless
//     beyond its configuration.
type Executor struct {
	poster Poster
	device DeviceInfo
	log    *logging.Logger
}

// NewExecutor creates a command executor for one device.
func NewExecutor(poster Poster, device DeviceInfo, log *logging.Logger) *Executor {
	if log == nil {
		log = logging.Default()
	}
	return &Executor{
		poster: poster,
		device: device,
		log:    log.With("component", "executor"),
	}
}

// Execute sends one command and processes its response.
//
// Follow-up commands produced by the response run concurrently before
// Execute returns. Parser misbehaviour is contained: a panicking response
// handler degrades the command to an error outcome instead of crashing
// the caller.
//
// Parameters:
//   - ctx: Cancellation context for the portal request and any follow-ups
//   - bus: Event bus receiving the events extracted from the response
//   - cmd: Command to execute
//
// Returns:
//   - bool: Whether the physical device confirmed the request. Always
//     false for commands answered by the portal alone.
//   - error: Transport-level failure; handling failures are reported
//     through the returned bool and the logs instead
func (x *Executor) Execute(ctx context.Context, bus EventBus, cmd Command) (bool, error) {
	result, err := x.executeRequest(ctx, bus, cmd)
	if err != nil {
		return false, err
	}

	if result.State == HandlingSuccess && len(result.Next) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, next := range result.Next {
			g.Go(func() error {
				_, err := x.Execute(gctx, bus, next)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			x.log.Warn("follow-up command failed", "command", cmd.Name(), "error", err)
		}
	}

	return result.State == HandlingSuccess && cmd.TargetsDevice(), nil
}

func (x *Executor) executeRequest(ctx context.Context, bus EventBus, cmd Command) (CommandResult, error) {
	if p, ok := cmd.(Preparer); ok {
		p.Prepare(bus)
	}

	path, body, query, err := x.buildRequest(cmd)
	if err != nil {
		return ResultFailed(), err
	}

	resp, err := x.poster.PostAuthenticated(ctx, path, body, query)
	if err != nil {
		return ResultFailed(), err
	}
	if resp == nil {
		return ResultFailed(), ErrNoResponse
	}

	if ret, _ := resp["ret"].(string); ret != "ok" {
		return x.handleRejection(bus, cmd, resp), nil
	}

	// Endpoints outside the device manager answer without the resp
	// wrapper; those commands digest the whole document.
	payload := resp["resp"]
	if _, ok := cmd.(RequestOverride); ok {
		payload = any(resp)
	}

	result := x.handleResponse(bus, cmd, payload)
	switch result.State {
	case HandlingError:
		x.log.Error("response handling crashed", "command", cmd.Name())
	case HandlingFailed:
		x.log.Warn("command failed", "command", cmd.Name())
	}
	return result, nil
}

// buildRequest assembles the portal path, envelope and query parameters
// for one command.
func (x *Executor) buildRequest(cmd Command) (string, map[string]any, url.Values, error) {
	if override, ok := cmd.(RequestOverride); ok {
		body, query := override.PortalBody(x.device)
		return override.PortalPath(), body, query, nil
	}

	args, err := cmd.Payload()
	if err != nil {
		return "", nil, nil, err
	}

	var payload any
	switch cmd.DataType() {
	case DataTypeXML:
		payload = args
	default:
		payload = map[string]any{
			"header": map[string]any{
				"pri": "1",
				"ts":  strconv.FormatInt(time.Now().UnixMilli(), 10),
				"tzm": payloadTimezone,
				"ver": payloadVersion,
			},
			"body": map[string]any{
				"data": args,
			},
		}
	}

	body := map[string]any{
		"cmdName":     cmd.Name(),
		"payload":     payload,
		"payloadType": string(cmd.DataType()),
		"td":          "q",
		"toId":        x.device.ID,
		"toRes":       x.device.Resource,
		"toType":      x.device.Class,
	}

	query := url.Values{
		"mid": {x.device.Class},
		"did": {x.device.ID},
		"td":  {"q"},
		"cv":  {queryClientVersion},
		"t":   {queryClientType},
		"av":  {queryAppVersion},
	}

	return pathIOTDevManager, body, query, nil
}

// handleRejection classifies a portal response whose ret field is not ok.
func (x *Executor) handleRejection(bus EventBus, cmd Command, resp map[string]any) CommandResult {
	errno, _ := resp["errno"].(float64)
	switch int(errno) {
	case errnoDeviceOffline:
		x.log.Info("device is offline", "command", cmd.Name())
		bus.Notify(event.AvailabilityEvent{Available: false})
		return ResultFailed()
	case errnoRequestTimeout:
		x.log.Info("portal request timed out", "command", cmd.Name())
		return ResultFailed()
	default:
		x.log.Debug("unexpected portal rejection", "command", cmd.Name(), "response", resp)
		return CommandResult{State: HandlingAnalyseLogged}
	}
}

// handleResponse runs the command's response handler with panic
// containment and promotes unanalysed payloads to the debug log.
func (x *Executor) handleResponse(bus EventBus, cmd Command, resp any) (result CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			x.log.Error("response handler panicked", "command", cmd.Name(), "panic", r)
			result = CommandResult{State: HandlingError}
		}
	}()

	result = cmd.HandleResponse(bus, resp)
	if result.State == HandlingAnalyse {
		x.log.Debug("unknown response shape", "command", cmd.Name(), "response", resp)
		result.State = HandlingAnalyseLogged
	}
	return result
}
