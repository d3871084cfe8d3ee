package capability

import (
	"github.com/nerrad567/ecolink-core/internal/commands"
	"github.com/nerrad567/ecolink-core/internal/event"
	"github.com/nerrad567/ecolink-core/internal/infrastructure/logging"
	"github.com/nerrad567/ecolink-core/internal/protocol"
)

// manifest lists the event kinds one device model supports. Kinds outside
// the manifest are never refreshed for that model.
type manifest map[event.Kind]bool

// modelManifests restricts well-known model classes to what their
// firmware actually answers. Unknown classes fall back to the full kind
// set of their payload dialect; a refresh for an unsupported kind then
// fails once and stays quiet, which beats silently hiding data on models
// the table does not know yet.
var modelManifests = map[string]manifest{
	// Deebot Ozmo 950
	"yna5xi": without(event.KindTrueDetect, event.KindCleanPreference),
	// Deebot T8 AIVI
	"vi829v": without(event.KindCleanPreference),
	// Deebot T9+
	"vdehg6": without(),
	// Deebot N8 Pro, no mop pressure or obstacle sensors
	"7bryc5": without(event.KindTrueDetect, event.KindCleanPreference, event.KindAdvancedMode),
}

// without builds a full manifest minus the given kinds.
func without(unsupported ...event.Kind) manifest {
	m := make(manifest, len(event.Kinds()))
	for _, k := range event.Kinds() {
		m[k] = true
	}
	for _, k := range unsupported {
		m[k] = false
	}
	return m
}

// xmlKinds is what the XML device generation can answer at all.
var xmlKinds = manifest{
	event.KindAvailability: true,
	event.KindBattery:      true,
	event.KindState:        true,
	event.KindError:        true,
	event.KindFanSpeed:     true,
	event.KindCleanLog:     true,
}

// Capabilities resolves what a concrete device supports and which
// commands re-query the state behind each event kind.
type Capabilities struct {
	device   protocol.DeviceInfo
	manifest manifest
	log      *logging.Logger
}

// New resolves the capabilities of one device.
//
// Parameters:
//   - device: Target device identity including its payload dialect
//   - log: Logger for manifest diagnostics
//
// Returns:
//   - *Capabilities: Resolver used by the bus and the session
func New(device protocol.DeviceInfo, log *logging.Logger) *Capabilities {
	if log == nil {
		log = logging.Default()
	}
	log = log.With("component", "capability")

	m, ok := modelManifests[device.Class]
	switch {
	case ok:
		log.Debug("model manifest found", "class", device.Class)
	case device.DataType == protocol.DataTypeXML:
		m = xmlKinds
		log.Info("unknown model class, using xml defaults", "class", device.Class)
	default:
		m = without()
		log.Info("unknown model class, using full defaults", "class", device.Class)
	}

	return &Capabilities{device: device, manifest: m, log: log}
}

// Supports reports whether the device can answer queries for kind.
func (c *Capabilities) Supports(kind event.Kind) bool {
	return c.manifest[kind]
}

// RefreshCommands returns the commands that re-query the device state
// behind kind. The empty slice marks the kind as not refreshable, either
// because the model does not support it or because its data only arrives
// through pushes and chained queries.
func (c *Capabilities) RefreshCommands(kind event.Kind) []event.Command {
	if !c.manifest[kind] {
		return nil
	}
	if c.device.DataType == protocol.DataTypeXML {
		return c.xmlRefreshCommands(kind)
	}
	return c.jsonRefreshCommands(kind)
}

func (c *Capabilities) jsonRefreshCommands(kind event.Kind) []event.Command {
	switch kind {
	case event.KindBattery:
		return one(commands.NewGetBattery())
	case event.KindState:
		// Charging and cleaning are reported through different queries;
		// both feed the same state kind.
		return []event.Command{commands.NewGetChargeState(), commands.NewGetCleanInfo()}
	case event.KindError:
		return one(commands.NewGetError())
	case event.KindStats:
		return one(commands.NewGetStats())
	case event.KindTotalStats:
		return one(commands.NewGetTotalStats())
	case event.KindCleanLog:
		return one(commands.NewGetCleanLogs())
	case event.KindCleanCount:
		return one(commands.NewGetCleanCount())
	case event.KindLifeSpan:
		return one(commands.NewGetLifeSpan())
	case event.KindFanSpeed:
		return one(commands.NewGetFanSpeed())
	case event.KindWaterInfo:
		return one(commands.NewGetWaterInfo())
	case event.KindVolume:
		return one(commands.NewGetVolume())
	case event.KindNetworkInfo:
		return one(commands.NewGetNetInfo())
	case event.KindPositions:
		return one(commands.NewGetPos())
	case event.KindCachedMapInfo, event.KindRooms:
		return one(commands.NewGetCachedMapInfo())
	case event.KindMapTrace:
		return one(commands.NewGetMapTrace(0))
	case event.KindMajorMap:
		return one(commands.NewGetMajorMap())
	case event.KindAdvancedMode, event.KindContinuousCleaning,
		event.KindCarpetAutoFanBoost, event.KindCleanPreference,
		event.KindMultimapState, event.KindTrueDetect:
		if cmd, ok := commands.NewGetEnable(kind); ok {
			return one(cmd)
		}
		return nil
	default:
		// Availability is monitor-driven; map sets, subsets and minor
		// pieces arrive through chained queries and pushes only.
		return nil
	}
}

func (c *Capabilities) xmlRefreshCommands(kind event.Kind) []event.Command {
	switch kind {
	case event.KindBattery:
		return one(commands.NewXMLGetBattery())
	case event.KindState:
		return one(commands.NewXMLGetChargeState())
	case event.KindError:
		return one(commands.NewXMLGetError())
	case event.KindFanSpeed:
		return one(commands.NewXMLGetFanSpeed())
	case event.KindCleanLog:
		return one(commands.NewGetCleanLogs())
	default:
		return nil
	}
}

// AvailabilityCommands returns the probes the availability monitor sends
// when no traffic arrived for a full interval.
func (c *Capabilities) AvailabilityCommands() []protocol.Command {
	if c.device.DataType == protocol.DataTypeXML {
		return []protocol.Command{commands.NewXMLGetBattery(), commands.NewXMLGetChargeState()}
	}
	return []protocol.Command{commands.NewGetBattery(), commands.NewGetChargeState()}
}

func one(cmd protocol.Command) []event.Command {
	return []event.Command{cmd}
}
