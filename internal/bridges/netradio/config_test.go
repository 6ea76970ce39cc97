package netradio

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.UDPPort != 4244 {
		t.Errorf("UDPPort = %d, want 4244", cfg.UDPPort)
	}
	if cfg.UDPListenPort != 4242 {
		t.Errorf("UDPListenPort = %d, want 4242", cfg.UDPListenPort)
	}
	if cfg.PollInterval != 60 {
		t.Errorf("PollInterval = %d, want 60", cfg.PollInterval)
	}
	if cfg.FullUpdateInterval != 86400 {
		t.Errorf("FullUpdateInterval = %d, want 86400", cfg.FullUpdateInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing device id",
			mutate:  func(c *Config) { c.DeviceID = "" },
			wantErr: "device_id",
		},
		{
			name:    "udp port out of range",
			mutate:  func(c *Config) { c.UDPPort = 70000 },
			wantErr: "udp_port",
		},
		{
			name:    "listen port zero",
			mutate:  func(c *Config) { c.UDPListenPort = 0 },
			wantErr: "udp_listen_port",
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.PollInterval = -1 },
			wantErr: "poll_interval",
		},
		{
			name:   "zero poll interval disables polling",
			mutate: func(c *Config) { c.PollInterval = 0 },
		},
		{
			name:   "zero full update interval disables refreshes",
			mutate: func(c *Config) { c.FullUpdateInterval = 0 },
		},
		{
			name:    "bad broadcast address",
			mutate:  func(c *Config) { c.BroadcastAddress = "not-an-ip" },
			wantErr: "broadcast_address",
		},
		{
			name:    "ipv6 broadcast address rejected",
			mutate:  func(c *Config) { c.BroadcastAddress = "::1" },
			wantErr: "broadcast_address",
		},
		{
			name:   "valid broadcast override",
			mutate: func(c *Config) { c.BroadcastAddress = "192.168.1.255" },
		},
		{
			name:    "health interval too small",
			mutate:  func(c *Config) { c.HealthInterval = 0 },
			wantErr: "health_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigGetters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeviceID = "kitchen"

	if got := cfg.GetIdentity(); got != "kitchen" {
		t.Errorf("GetIdentity() = %q, want device id fallback %q", got, "kitchen")
	}
	cfg.Identity = "radio1"
	if got := cfg.GetIdentity(); got != "radio1" {
		t.Errorf("GetIdentity() = %q, want %q", got, "radio1")
	}

	if got := cfg.GetPollInterval(); got != 60*time.Second {
		t.Errorf("GetPollInterval() = %v, want 60s", got)
	}
	cfg.PollInterval = 0
	if got := cfg.GetPollInterval(); got != 0 {
		t.Errorf("GetPollInterval() with polling disabled = %v, want 0", got)
	}

	if got := cfg.GetFullUpdateInterval(); got != 24*time.Hour {
		t.Errorf("GetFullUpdateInterval() = %v, want 24h", got)
	}
}
