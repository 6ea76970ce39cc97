package netradio

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Default ports of the receiver's control protocol.
const (
	// DefaultUDPPort is the port the receiver listens on for commands.
	DefaultUDPPort = 4244

	// DefaultUDPListenPort is the local port the receiver sends replies
	// and notifications to.
	DefaultUDPListenPort = 4242
)

// Volume range accepted by the receiver.
const (
	minVolume = 0
	maxVolume = 32
)

// Config holds the configuration for one receiver bridge instance.
type Config struct {
	// DeviceID identifies the receiver in readings, MQTT topics, and
	// history rows.
	DeviceID string `yaml:"device_id"`

	// DeviceName optionally seeds the name reading before the first
	// discovery reply. A seeded name lets a freshly started bridge
	// re-acquire a receiver whose DHCP address changed while the
	// configured host still points at the old one.
	DeviceName string `yaml:"device_name,omitempty"`

	// Identity is the token embedded in outbound frames. Replies to
	// GET/SET/PLAY must echo it. Default: DeviceID.
	Identity string `yaml:"identity,omitempty"`

	// Host is the receiver's host name or address. Empty means the bridge
	// relies on broadcast discovery alone.
	Host string `yaml:"host,omitempty"`

	// BroadcastAddress overrides the derived discovery target. The bridge
	// normally replaces the last octet of the resolved address with 255.
	BroadcastAddress string `yaml:"broadcast_address,omitempty"`

	// UDPPort is the receiver's command port.
	// Default: 4244
	UDPPort int `yaml:"udp_port"`

	// UDPListenPort is the local listener port. Changing it at runtime
	// restarts the listener.
	// Default: 4242
	UDPListenPort int `yaml:"udp_listen_port"`

	// PollInterval is the poll timer period in seconds. 0 disables
	// polling entirely. Shortening it takes effect immediately;
	// lengthening waits for the next natural rearm.
	// Default: 60
	PollInterval int `yaml:"poll_interval"`

	// FullUpdateInterval is how often a full-field refresh replaces the
	// status-only poll, in seconds. 0 disables full refreshes.
	// Default: 86400
	FullUpdateInterval int `yaml:"full_update_interval"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30
	HealthInterval int `yaml:"health_interval"`

	// ResolveTimeout bounds host name resolution (seconds).
	// Default: 5
	ResolveTimeout int `yaml:"resolve_timeout"`

	// CommandTimeout bounds how long an external call waits for the
	// engine loop to pick it up (seconds).
	// Default: 5
	CommandTimeout int `yaml:"command_timeout"`
}

// DefaultConfig returns a Config with protocol defaults applied.
func DefaultConfig() Config {
	return Config{
		DeviceID:           "netradio",
		UDPPort:            DefaultUDPPort,
		UDPListenPort:      DefaultUDPListenPort,
		PollInterval:       60,
		FullUpdateInterval: 86400,
		HealthInterval:     30,
		ResolveTimeout:     5,
		CommandTimeout:     5,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.DeviceID == "" {
		errs = append(errs, "device_id is required")
	} else if strings.ContainsAny(c.DeviceID, "/+#") {
		// Device IDs appear verbatim in MQTT topics.
		errs = append(errs, "device_id must not contain '/', '+', or '#'")
	}
	if c.UDPPort < 1 || c.UDPPort > 65535 {
		errs = append(errs, "udp_port must be between 1 and 65535")
	}
	if c.UDPListenPort < 1 || c.UDPListenPort > 65535 {
		errs = append(errs, "udp_listen_port must be between 1 and 65535")
	}
	if c.PollInterval < 0 {
		errs = append(errs, "poll_interval must not be negative (0 disables polling)")
	}
	if c.FullUpdateInterval < 0 {
		errs = append(errs, "full_update_interval must not be negative (0 disables full refreshes)")
	}
	if c.HealthInterval < 1 {
		errs = append(errs, "health_interval must be at least 1 second")
	}
	if c.ResolveTimeout < 1 {
		errs = append(errs, "resolve_timeout must be at least 1 second")
	}
	if c.CommandTimeout < 1 {
		errs = append(errs, "command_timeout must be at least 1 second")
	}
	if c.BroadcastAddress != "" {
		if ip := net.ParseIP(c.BroadcastAddress); ip == nil || ip.To4() == nil {
			errs = append(errs, fmt.Sprintf("broadcast_address %q is not a valid IPv4 address", c.BroadcastAddress))
		}
	}
	// Host is deliberately not resolved here: it may only become
	// resolvable after the network is up. Resolution happens when the
	// bridge applies the host.

	if len(errs) > 0 {
		return fmt.Errorf("netradio config errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetIdentity returns the identity token, defaulting to the device ID.
func (c *Config) GetIdentity() string {
	if c.Identity != "" {
		return c.Identity
	}
	return c.DeviceID
}

// GetPollInterval returns the poll period, zero when polling is disabled.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// GetFullUpdateInterval returns the full-refresh period, zero when disabled.
func (c *Config) GetFullUpdateInterval() time.Duration {
	return time.Duration(c.FullUpdateInterval) * time.Second
}

// GetHealthInterval returns the health reporting interval.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.HealthInterval) * time.Second
}

// GetResolveTimeout returns the host resolution timeout.
func (c *Config) GetResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeout) * time.Second
}

// GetCommandTimeout returns the external call timeout.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}
