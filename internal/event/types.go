package event

import (
	"reflect"
	"slices"
)

// Kind identifies one event variant. Every event carries exactly one Kind
// and the bus keeps independent state per Kind.
type Kind int

// Event variants.
const (
	KindAvailability Kind = iota
	KindBattery
	KindState
	KindError
	KindStats
	KindReportStats
	KindTotalStats
	KindCleanLog
	KindCleanCount
	KindLifeSpan
	KindFanSpeed
	KindWaterInfo
	KindVolume
	KindNetworkInfo
	KindPositions
	KindRooms
	KindCachedMapInfo
	KindMapSet
	KindMapSubset
	KindMapTrace
	KindMajorMap
	KindMinorMap
	KindMapChanged
	KindAdvancedMode
	KindContinuousCleaning
	KindCarpetAutoFanBoost
	KindCleanPreference
	KindMultimapState
	KindTrueDetect
	KindCustomCommand

	numKinds // keep last
)

var kindNames = map[Kind]string{
	KindAvailability:       "availability",
	KindBattery:            "battery",
	KindState:              "state",
	KindError:              "error",
	KindStats:              "stats",
	KindReportStats:        "report_stats",
	KindTotalStats:         "total_stats",
	KindCleanLog:           "clean_log",
	KindCleanCount:         "clean_count",
	KindLifeSpan:           "life_span",
	KindFanSpeed:           "fan_speed",
	KindWaterInfo:          "water_info",
	KindVolume:             "volume",
	KindNetworkInfo:        "network_info",
	KindPositions:          "positions",
	KindRooms:              "rooms",
	KindCachedMapInfo:      "cached_map_info",
	KindMapSet:             "map_set",
	KindMapSubset:          "map_subset",
	KindMapTrace:           "map_trace",
	KindMajorMap:           "major_map",
	KindMinorMap:           "minor_map",
	KindMapChanged:         "map_changed",
	KindAdvancedMode:       "advanced_mode",
	KindContinuousCleaning: "continuous_cleaning",
	KindCarpetAutoFanBoost: "carpet_auto_fan_boost",
	KindCleanPreference:    "clean_preference",
	KindMultimapState:      "multimap_state",
	KindTrueDetect:         "true_detect",
	KindCustomCommand:      "custom_command",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Kinds returns all registered event kinds.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Event is an immutable snapshot of one aspect of device state.
//
// Two events of the same kind with equal field values are the same event;
// the bus uses Equal to suppress duplicate notifications.
type Event interface {
	Kind() Kind
	Equal(other Event) bool
}

// sameEvent compares a comparable event value against another event.
func sameEvent[T comparable](e T, other Event) bool {
	o, ok := other.(T)
	return ok && o == e
}

// State describes the device's operating state.
type State int

// Operating states.
const (
	StateIdle State = iota + 1
	StateCleaning
	StateReturning
	StateDocked
	StateError
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCleaning:
		return "cleaning"
	case StateReturning:
		return "returning"
	case StateDocked:
		return "docked"
	case StateError:
		return "error"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// AvailabilityEvent reports whether the physical device is reachable.
type AvailabilityEvent struct {
	Available bool
}

func (AvailabilityEvent) Kind() Kind               { return KindAvailability }
func (e AvailabilityEvent) Equal(other Event) bool { return sameEvent(e, other) }

// BatteryEvent reports the battery charge percentage.
type BatteryEvent struct {
	Value int
}

func (BatteryEvent) Kind() Kind               { return KindBattery }
func (e BatteryEvent) Equal(other Event) bool { return sameEvent(e, other) }

// StateEvent reports the operating state.
type StateEvent struct {
	State State
}

func (StateEvent) Kind() Kind               { return KindState }
func (e StateEvent) Equal(other Event) bool { return sameEvent(e, other) }

// ErrorEvent reports the most recent device error code.
// Description is empty when the code is not in the known table.
type ErrorEvent struct {
	Code        int
	Description string
}

func (ErrorEvent) Kind() Kind               { return KindError }
func (e ErrorEvent) Equal(other Event) bool { return sameEvent(e, other) }

// StatsEvent reports statistics of the current or last job.
// Fields are pointers because devices omit values they do not track.
type StatsEvent struct {
	Area *int
	Time *int
	Type string
}

func (StatsEvent) Kind() Kind { return KindStats }
func (e StatsEvent) Equal(other Event) bool {
	o, ok := other.(StatsEvent)
	return ok && equalIntPtr(e.Area, o.Area) && equalIntPtr(e.Time, o.Time) && e.Type == o.Type
}

// CleanJobStatus is the stop reason of a clean job.
type CleanJobStatus int

// Clean job statuses.
const (
	CleanJobNoStatus             CleanJobStatus = -2
	CleanJobCleaning             CleanJobStatus = -1
	CleanJobFinished             CleanJobStatus = 1
	CleanJobManuallyStopped      CleanJobStatus = 2
	CleanJobFinishedWithWarnings CleanJobStatus = 3
)

// ReportStatsEvent is the per-job statistics push sent while cleaning.
type ReportStatsEvent struct {
	Area       *int
	Time       *int
	Type       string
	CleaningID string
	Status     CleanJobStatus
	Content    []int
}

func (ReportStatsEvent) Kind() Kind { return KindReportStats }
func (e ReportStatsEvent) Equal(other Event) bool {
	o, ok := other.(ReportStatsEvent)
	return ok && equalIntPtr(e.Area, o.Area) && equalIntPtr(e.Time, o.Time) &&
		e.Type == o.Type && e.CleaningID == o.CleaningID && e.Status == o.Status &&
		slices.Equal(e.Content, o.Content)
}

// TotalStatsEvent reports lifetime statistics.
type TotalStatsEvent struct {
	Area      int
	Time      int
	Cleanings int
}

func (TotalStatsEvent) Kind() Kind               { return KindTotalStats }
func (e TotalStatsEvent) Equal(other Event) bool { return sameEvent(e, other) }

// CleanLogEntry is one entry of the cleaning log.
type CleanLogEntry struct {
	Timestamp  int64
	ImageURL   string
	Type       string
	Area       int
	StopReason CleanJobStatus
	Duration   int // seconds
}

// CleanLogEvent reports the recent cleaning log.
type CleanLogEvent struct {
	Logs []CleanLogEntry
}

func (CleanLogEvent) Kind() Kind { return KindCleanLog }
func (e CleanLogEvent) Equal(other Event) bool {
	o, ok := other.(CleanLogEvent)
	return ok && slices.Equal(e.Logs, o.Logs)
}

// CleanCountEvent reports the configured number of cleaning passes.
type CleanCountEvent struct {
	Count int
}

func (CleanCountEvent) Kind() Kind               { return KindCleanCount }
func (e CleanCountEvent) Equal(other Event) bool { return sameEvent(e, other) }

// LifeSpanComponent identifies a consumable component.
type LifeSpanComponent string

// Known consumable components.
const (
	ComponentBrush     LifeSpanComponent = "brush"
	ComponentFilter    LifeSpanComponent = "heap"
	ComponentSideBrush LifeSpanComponent = "sideBrush"
	ComponentUnitCare  LifeSpanComponent = "unitCare"
	ComponentRoundMop  LifeSpanComponent = "roundMop"
)

// LifeSpanEvent reports remaining life of one consumable component.
type LifeSpanEvent struct {
	Component LifeSpanComponent
	Percent   float64
	Remaining int // minutes
}

func (LifeSpanEvent) Kind() Kind               { return KindLifeSpan }
func (e LifeSpanEvent) Equal(other Event) bool { return sameEvent(e, other) }

// FanSpeedLevel is the suction power level.
type FanSpeedLevel int

// Fan speed levels.
const (
	FanSpeedQuiet   FanSpeedLevel = 1000
	FanSpeedNormal  FanSpeedLevel = 0
	FanSpeedMax     FanSpeedLevel = 1
	FanSpeedMaxPlus FanSpeedLevel = 2
)

// FanSpeedEvent reports the configured fan speed.
type FanSpeedEvent struct {
	Speed FanSpeedLevel
}

func (FanSpeedEvent) Kind() Kind               { return KindFanSpeed }
func (e FanSpeedEvent) Equal(other Event) bool { return sameEvent(e, other) }

// WaterAmount is the water flow level for mopping.
type WaterAmount int

// Water amounts.
const (
	WaterLow       WaterAmount = 1
	WaterMedium    WaterAmount = 2
	WaterHigh      WaterAmount = 3
	WaterUltraHigh WaterAmount = 4
)

// WaterInfoEvent reports mopping water configuration.
// MopAttached is nil when the device does not report it.
type WaterInfoEvent struct {
	Amount      WaterAmount
	MopAttached *bool
}

func (WaterInfoEvent) Kind() Kind { return KindWaterInfo }
func (e WaterInfoEvent) Equal(other Event) bool {
	o, ok := other.(WaterInfoEvent)
	if !ok || e.Amount != o.Amount {
		return false
	}
	if e.MopAttached == nil || o.MopAttached == nil {
		return e.MopAttached == o.MopAttached
	}
	return *e.MopAttached == *o.MopAttached
}

// VolumeEvent reports the speaker volume.
// Maximum is nil when the device does not report it.
type VolumeEvent struct {
	Volume  int
	Maximum *int
}

func (VolumeEvent) Kind() Kind { return KindVolume }
func (e VolumeEvent) Equal(other Event) bool {
	o, ok := other.(VolumeEvent)
	return ok && e.Volume == o.Volume && equalIntPtr(e.Maximum, o.Maximum)
}

// NetworkInfoEvent reports the device's network details.
type NetworkInfoEvent struct {
	IP   string
	SSID string
	RSSI int
	MAC  string
}

func (NetworkInfoEvent) Kind() Kind               { return KindNetworkInfo }
func (e NetworkInfoEvent) Equal(other Event) bool { return sameEvent(e, other) }

// PositionType distinguishes reported positions.
type PositionType string

// Position types.
const (
	PositionDevice  PositionType = "deebotPos"
	PositionCharger PositionType = "chargePos"
)

// Position is one reported coordinate.
type Position struct {
	Type PositionType
	X    int
	Y    int
	A    int
}

// PositionsEvent reports the device and charger positions.
type PositionsEvent struct {
	Positions []Position
}

func (PositionsEvent) Kind() Kind { return KindPositions }
func (e PositionsEvent) Equal(other Event) bool {
	o, ok := other.(PositionsEvent)
	return ok && slices.Equal(e.Positions, o.Positions)
}

// Room is one named map region.
type Room struct {
	Name        string
	ID          int
	Coordinates string
}

// RoomsEvent reports the full set of known rooms.
type RoomsEvent struct {
	Rooms []Room
}

func (RoomsEvent) Kind() Kind { return KindRooms }
func (e RoomsEvent) Equal(other Event) bool {
	o, ok := other.(RoomsEvent)
	return ok && slices.Equal(e.Rooms, o.Rooms)
}

// CachedMapInfoEvent reports the currently active map.
type CachedMapInfoEvent struct {
	Name   string
	Active bool
}

func (CachedMapInfoEvent) Kind() Kind               { return KindCachedMapInfo }
func (e CachedMapInfoEvent) Equal(other Event) bool { return sameEvent(e, other) }

// MapSetType identifies a map subset category.
type MapSetType string

// Map set types.
const (
	MapSetRooms        MapSetType = "ar"
	MapSetVirtualWalls MapSetType = "vw"
	MapSetNoMopZones   MapSetType = "mw"
)

// MapSetTypes lists all map set types.
func MapSetTypes() []MapSetType {
	return []MapSetType{MapSetRooms, MapSetVirtualWalls, MapSetNoMopZones}
}

// ValidMapSetType reports whether s is a known map set type.
func ValidMapSetType(s string) bool {
	switch MapSetType(s) {
	case MapSetRooms, MapSetVirtualWalls, MapSetNoMopZones:
		return true
	}
	return false
}

// MapSetEvent reports the subset ids of one map set.
type MapSetEvent struct {
	Type    MapSetType
	Subsets []int
}

func (MapSetEvent) Kind() Kind { return KindMapSet }
func (e MapSetEvent) Equal(other Event) bool {
	o, ok := other.(MapSetEvent)
	return ok && e.Type == o.Type && slices.Equal(e.Subsets, o.Subsets)
}

// MapSubsetEvent reports one map subset (room, virtual wall, no-mop zone).
type MapSubsetEvent struct {
	ID          int
	Type        MapSetType
	Coordinates string
	Name        string
}

func (MapSubsetEvent) Kind() Kind               { return KindMapSubset }
func (e MapSubsetEvent) Equal(other Event) bool { return sameEvent(e, other) }

// MapTraceEvent reports one page of the movement trace.
type MapTraceEvent struct {
	Start int
	Total int
	Data  string
}

func (MapTraceEvent) Kind() Kind               { return KindMapTrace }
func (e MapTraceEvent) Equal(other Event) bool { return sameEvent(e, other) }

// MajorMapEvent reports the map piece checksums.
type MajorMapEvent struct {
	MapID     string
	Values    []string
	Requested bool
}

func (MajorMapEvent) Kind() Kind { return KindMajorMap }
func (e MajorMapEvent) Equal(other Event) bool {
	o, ok := other.(MajorMapEvent)
	return ok && e.MapID == o.MapID && e.Requested == o.Requested && slices.Equal(e.Values, o.Values)
}

// MinorMapEvent reports one compressed map piece.
type MinorMapEvent struct {
	Index int
	Value string
}

func (MinorMapEvent) Kind() Kind               { return KindMinorMap }
func (e MinorMapEvent) Equal(other Event) bool { return sameEvent(e, other) }

// MapChangedEvent signals that the composed map materially changed.
// When is excluded from equality on purpose: consumers subscribe for the
// signal, not the timestamp, and repeated identical signals are coalesced
// by the bus debounce instead.
type MapChangedEvent struct {
	When int64
}

func (MapChangedEvent) Kind() Kind       { return KindMapChanged }
func (MapChangedEvent) Equal(Event) bool { return false }

// EnableEvent is the shared shape of all on/off settings.
type EnableEvent struct {
	Enabled bool
}

// AdvancedModeEvent reports the advanced mode setting.
type AdvancedModeEvent struct{ EnableEvent }

func (AdvancedModeEvent) Kind() Kind               { return KindAdvancedMode }
func (e AdvancedModeEvent) Equal(other Event) bool { return sameEvent(e, other) }

// ContinuousCleaningEvent reports the resumed cleaning setting.
type ContinuousCleaningEvent struct{ EnableEvent }

func (ContinuousCleaningEvent) Kind() Kind               { return KindContinuousCleaning }
func (e ContinuousCleaningEvent) Equal(other Event) bool { return sameEvent(e, other) }

// CarpetAutoFanBoostEvent reports the carpet pressure setting.
type CarpetAutoFanBoostEvent struct{ EnableEvent }

func (CarpetAutoFanBoostEvent) Kind() Kind               { return KindCarpetAutoFanBoost }
func (e CarpetAutoFanBoostEvent) Equal(other Event) bool { return sameEvent(e, other) }

// CleanPreferenceEvent reports the clean preference setting.
type CleanPreferenceEvent struct{ EnableEvent }

func (CleanPreferenceEvent) Kind() Kind               { return KindCleanPreference }
func (e CleanPreferenceEvent) Equal(other Event) bool { return sameEvent(e, other) }

// MultimapStateEvent reports the multi map setting.
type MultimapStateEvent struct{ EnableEvent }

func (MultimapStateEvent) Kind() Kind               { return KindMultimapState }
func (e MultimapStateEvent) Equal(other Event) bool { return sameEvent(e, other) }

// TrueDetectEvent reports the obstacle detection setting.
type TrueDetectEvent struct{ EnableEvent }

func (TrueDetectEvent) Kind() Kind               { return KindTrueDetect }
func (e TrueDetectEvent) Equal(other Event) bool { return sameEvent(e, other) }

// CustomCommandEvent carries the raw response of a user-supplied command.
type CustomCommandEvent struct {
	Name     string
	Response map[string]any
}

func (CustomCommandEvent) Kind() Kind { return KindCustomCommand }
func (e CustomCommandEvent) Equal(other Event) bool {
	o, ok := other.(CustomCommandEvent)
	return ok && e.Name == o.Name && reflect.DeepEqual(e.Response, o.Response)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
