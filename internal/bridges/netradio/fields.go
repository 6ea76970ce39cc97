package netradio

import (
	"fmt"
	"strings"
)

// Verb is a protocol command carried in the COMMAND line.
type Verb string

// Protocol verbs understood by the bridge.
const (
	VerbGet          Verb = "GET"
	VerbSet          Verb = "SET"
	VerbPlay         Verb = "PLAY"
	VerbDiscover     Verb = "DISCOVER"
	VerbNotification Verb = "NOTIFICATION"
)

// ParseVerb maps a wire token to a known verb. ok is false for anything
// outside the closed verb set; callers decide whether that is noise to drop
// or an unknown verb to log.
func ParseVerb(s string) (Verb, bool) {
	switch Verb(s) {
	case VerbGet, VerbSet, VerbPlay, VerbDiscover, VerbNotification:
		return Verb(s), true
	default:
		return "", false
	}
}

// Event is a notification sub-event carried in the EVENT field.
type Event string

// Notification events emitted by the receiver.
const (
	EventSystemBooted   Event = "SYSTEM_BOOTED"
	EventPowerOn        Event = "POWER_ON"
	EventPowerOff       Event = "POWER_OFF"
	EventVolumeChanged  Event = "VOLUME_CHANGED"
	EventStationChanged Event = "STATION_CHANGED"
	EventURLPlaying     Event = "URL_IS_PLAYING"
)

// ParseEvent maps a wire token to a known event. ok is false for
// unrecognised events, which are logged at low severity and ignored.
func ParseEvent(s string) (Event, bool) {
	switch Event(s) {
	case EventSystemBooted, EventPowerOn, EventPowerOff,
		EventVolumeChanged, EventStationChanged, EventURLPlaying:
		return Event(s), true
	default:
		return "", false
	}
}

// Info blocks addressable by GET. A full refresh requests all blocks in one
// frame; lighter re-queries request single blocks.
const (
	BlockStatus  = "STATUS"
	BlockVolume  = "VOLUME"
	BlockPlay    = "PLAY"
	BlockPresets = "PRESETS"
	BlockSys     = "SYS"
)

// allBlocks returns the GET parameters for a full-field refresh.
func allBlocks() []string {
	return []string{BlockStatus, BlockVolume, BlockPlay, BlockPresets, BlockSys}
}

// Reading names published by the bridge. These are the fixed superset of
// keys the readings store accepts; the engine also maintains the synthetic
// "state" reading mirroring the reachability status.
const (
	ReadingState      = "state"
	ReadingPower      = "power"
	ReadingVolume     = "volume"
	ReadingMute       = "mute"
	ReadingPlayMode   = "play_mode"
	ReadingStation    = "station"
	ReadingTitle      = "title"
	ReadingURL        = "url"
	ReadingNowPlaying = "now_playing"
	ReadingIP         = "ip"
	ReadingName       = "name"
	ReadingVersion    = "version"
)

// MaxPresets is the number of station preset slots on the receiver.
const MaxPresets = 10

// MutedVolume is the sentinel value stored in the volume reading while the
// receiver is muted. The true volume is re-queried on unmute.
const MutedVolume = "muted"

// presetReading returns the reading name for preset slot n (1-based).
func presetReading(n int) string {
	return fmt.Sprintf("preset_%d", n)
}

// DeclaredReadings returns the full pre-declared reading superset derived
// from the field dictionary. The readings store rejects anything outside
// this set.
func DeclaredReadings() []string {
	names := []string{
		ReadingState,
		ReadingPower,
		ReadingVolume,
		ReadingMute,
		ReadingPlayMode,
		ReadingStation,
		ReadingTitle,
		ReadingURL,
		ReadingNowPlaying,
		ReadingIP,
		ReadingName,
		ReadingVersion,
	}
	for i := 1; i <= MaxPresets; i++ {
		names = append(names, presetReading(i))
	}
	return names
}

// fieldMap is the static dictionary mapping (verb, wire field) pairs to
// reading names. Repeated PRESET lines arrive suffixed by the codec and map
// onto the numbered preset slots. Immutable after initialisation.
var fieldMap = map[Verb]map[string]string{
	VerbGet: buildGetFields(),
	VerbDiscover: {
		"IP":      ReadingIP,
		"NAME":    ReadingName,
		"VERSION": ReadingVersion,
	},
	VerbSet: {
		"POWER":  ReadingPower,
		"VOLUME": ReadingVolume,
		"MUTE":   ReadingMute,
	},
}

func buildGetFields() map[string]string {
	m := map[string]string{
		"POWER":   ReadingPower,
		"VOLUME":  ReadingVolume,
		"MUTE":    ReadingMute,
		"MODE":    ReadingPlayMode,
		"STATION": ReadingStation,
		"TITLE":   ReadingTitle,
		"URL":     ReadingURL,
		"NAME":    ReadingName,
		"VERSION": ReadingVersion,
		"IP":      ReadingIP,
	}
	// PRESET, PRESET_1, ... PRESET_9 map to preset_1 ... preset_10.
	m["PRESET"] = presetReading(1)
	for i := 1; i < MaxPresets; i++ {
		m[fmt.Sprintf("PRESET_%d", i)] = presetReading(i + 1)
	}
	return m
}

// onOffValues translates the receiver's ON/OFF tokens into reading values.
var onOffValues = map[string]string{
	"ON":  "on",
	"OFF": "off",
}

// MapField resolves a wire field seen under the given verb to its reading
// name and translated value. ok is false for fields outside the dictionary,
// which the dispatcher skips.
func MapField(verb Verb, field, raw string) (reading, value string, ok bool) {
	fields, ok := fieldMap[verb]
	if !ok {
		return "", "", false
	}
	reading, ok = fields[field]
	if !ok {
		return "", "", false
	}
	return reading, translateValue(reading, raw), true
}

// translateValue applies the per-reading value translation table.
func translateValue(reading, raw string) string {
	switch reading {
	case ReadingPower, ReadingMute:
		if v, ok := onOffValues[strings.ToUpper(raw)]; ok {
			return v
		}
		return strings.ToLower(raw)
	case ReadingPlayMode:
		return strings.ToLower(raw)
	default:
		return raw
	}
}

// nowPlayingInputs are the readings whose change triggers a recompute of the
// derived now_playing reading within the same batch.
var nowPlayingInputs = map[string]struct{}{
	ReadingPlayMode: {},
	ReadingStation:  {},
	ReadingTitle:    {},
	ReadingURL:      {},
}

// deriveNowPlaying computes the combined now_playing descriptor.
//
// Station playback is described by the station name alone; URL playback by
// the title with the stream URL in parentheses (or whichever of the two is
// known). Any other mode (aux and future inputs) falls back to the mode
// token itself.
func deriveNowPlaying(mode, station, title, url string) string {
	switch mode {
	case "station":
		return station
	case "url":
		switch {
		case title == "":
			return url
		case url == "":
			return title
		default:
			return title + " (" + url + ")"
		}
	case "":
		return ""
	default:
		return mode
	}
}

// metricReadings maps numeric readings to their time-series measurement
// names. Used by the metrics subscriber; non-numeric values are skipped.
var metricReadings = map[string]string{
	ReadingVolume: "volume",
}

// MetricMeasurement returns the time-series measurement name for a reading,
// or ok=false when the reading is not numeric.
func MetricMeasurement(reading string) (string, bool) {
	m, ok := metricReadings[reading]
	return m, ok
}

// ReachabilityGauge maps a state reading to its gauge value: 1 for online
// and on, 0 for off, offline, and host_error.
func ReachabilityGauge(state string) float64 {
	switch Status(state) {
	case StatusOnline, StatusOn:
		return 1
	default:
		return 0
	}
}
