package netradio

import "testing"

func TestParseVerb(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		want   Verb
		wantOK bool
	}{
		{"get", "GET", VerbGet, true},
		{"set", "SET", VerbSet, true},
		{"play", "PLAY", VerbPlay, true},
		{"discover", "DISCOVER", VerbDiscover, true},
		{"notification", "NOTIFICATION", VerbNotification, true},
		{"unknown verb", "REBOOT", "", false},
		{"lowercase not accepted", "get", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseVerb(tt.token)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseVerb(%q) = (%q, %v), want (%q, %v)", tt.token, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		want   Event
		wantOK bool
	}{
		{"system booted", "SYSTEM_BOOTED", EventSystemBooted, true},
		{"power on", "POWER_ON", EventPowerOn, true},
		{"power off", "POWER_OFF", EventPowerOff, true},
		{"volume changed", "VOLUME_CHANGED", EventVolumeChanged, true},
		{"station changed", "STATION_CHANGED", EventStationChanged, true},
		{"url playing", "URL_IS_PLAYING", EventURLPlaying, true},
		{"unknown event", "FIRMWARE_UPDATED", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEvent(tt.token)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseEvent(%q) = (%q, %v), want (%q, %v)", tt.token, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMapField(t *testing.T) {
	tests := []struct {
		name        string
		verb        Verb
		field       string
		raw         string
		wantReading string
		wantValue   string
		wantOK      bool
	}{
		{"get power translated", VerbGet, "POWER", "ON", ReadingPower, "on", true},
		{"get power off", VerbGet, "POWER", "OFF", ReadingPower, "off", true},
		{"get mode lowercased", VerbGet, "MODE", "STATION", ReadingPlayMode, "station", true},
		{"get station verbatim", VerbGet, "STATION", "Jazz FM", ReadingStation, "Jazz FM", true},
		{"get first preset", VerbGet, "PRESET", "Jazz FM", "preset_1", true},
		{"get suffixed preset", VerbGet, "PRESET_3", "News 24", "preset_4", true},
		{"discover ip", VerbDiscover, "IP", "10.0.0.5", ReadingIP, "10.0.0.5", true},
		{"discover name", VerbDiscover, "NAME", "Kitchen Radio", ReadingName, "Kitchen Radio", true},
		{"set mute", VerbSet, "MUTE", "ON", ReadingMute, "on", true},
		{"unknown field dropped", VerbGet, "BASS", "5", "", "", false},
		{"notification has no mapped fields", VerbNotification, "EVENT", "POWER_ON", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, value, ok := MapField(tt.verb, tt.field, tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("MapField(%q, %q) ok = %v, want %v", tt.verb, tt.field, ok, tt.wantOK)
			}
			if reading != tt.wantReading || value != tt.wantValue {
				t.Errorf("MapField(%q, %q) = (%q, %q), want (%q, %q)",
					tt.verb, tt.field, reading, value, tt.wantReading, tt.wantValue)
			}
		})
	}
}

func TestDeclaredReadings(t *testing.T) {
	names := DeclaredReadings()

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate declared reading %q", n)
		}
		seen[n] = true
	}

	for _, want := range []string{ReadingState, ReadingPower, ReadingNowPlaying, "preset_1", "preset_10"} {
		if !seen[want] {
			t.Errorf("declared readings missing %q", want)
		}
	}
	if seen["preset_11"] {
		t.Error("declared readings should stop at preset_10")
	}

	// Every dictionary target must be declared.
	for verb, fields := range fieldMap {
		for field, reading := range fields {
			if !seen[reading] {
				t.Errorf("dictionary target %q (verb %s field %s) not declared", reading, verb, field)
			}
		}
	}
}

func TestDeriveNowPlaying(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		station string
		title   string
		url     string
		want    string
	}{
		{"station mode uses station name", "station", "Jazz FM", "", "", "Jazz FM"},
		{"url mode combines title and url", "url", "", "Morning Show", "http://r.example/s", "Morning Show (http://r.example/s)"},
		{"url mode without title", "url", "", "", "http://r.example/s", "http://r.example/s"},
		{"url mode without url", "url", "", "Morning Show", "", "Morning Show"},
		{"aux falls back to mode token", "aux", "", "", "", "aux"},
		{"unset mode yields empty", "", "Jazz FM", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveNowPlaying(tt.mode, tt.station, tt.title, tt.url)
			if got != tt.want {
				t.Errorf("deriveNowPlaying() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMetricMeasurement(t *testing.T) {
	if m, ok := MetricMeasurement(ReadingVolume); !ok || m != "volume" {
		t.Errorf("MetricMeasurement(volume) = (%q, %v), want (volume, true)", m, ok)
	}
	for _, reading := range []string{ReadingState, ReadingStation, ReadingMute, "preset_1"} {
		if _, ok := MetricMeasurement(reading); ok {
			t.Errorf("MetricMeasurement(%q) ok = true, want false", reading)
		}
	}
}

func TestReachabilityGauge(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{string(StatusOnline), 1},
		{string(StatusOn), 1},
		{string(StatusOff), 0},
		{string(StatusOffline), 0},
		{string(StatusHostError), 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := ReachabilityGauge(tt.state); got != tt.want {
			t.Errorf("ReachabilityGauge(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
