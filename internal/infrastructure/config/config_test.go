package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/radiolink/radiolink-core/internal/bridges/netradio"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
agent:
  id: "test-agent"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "127.0.0.1"
  port: 8080
radio:
  device_id: "kitchen-radio"
  host: "radio.local"
  poll_interval: 30
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.ID != "test-agent" {
		t.Errorf("Agent.ID = %q, want %q", cfg.Agent.ID, "test-agent")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if cfg.Radio.DeviceID != "kitchen-radio" {
		t.Errorf("Radio.DeviceID = %q, want %q", cfg.Radio.DeviceID, "kitchen-radio")
	}

	if cfg.Radio.Host != "radio.local" {
		t.Errorf("Radio.Host = %q, want %q", cfg.Radio.Host, "radio.local")
	}

	if cfg.Radio.PollInterval != 30 {
		t.Errorf("Radio.PollInterval = %d, want 30", cfg.Radio.PollInterval)
	}

	// Fields the file omits keep their defaults.
	if cfg.Radio.UDPPort != netradio.DefaultUDPPort {
		t.Errorf("Radio.UDPPort = %d, want %d", cfg.Radio.UDPPort, netradio.DefaultUDPPort)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
agent:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty agent.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				Agent: AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{
					Path: "/data/radiolink.db",
				},
				MQTT: MQTTConfig{
					QoS: 1,
				},
				API: APIConfig{
					Port: 8080,
				},
				Radio: netradio.DefaultConfig(),
			},
			wantErr: false,
		},
		{
			name: "missing agent ID",
			config: &Config{
				Agent:    AgentConfig{ID: ""},
				Database: DatabaseConfig{Path: "/data/radiolink.db"},
				API:      APIConfig{Port: 8080},
				Radio:    netradio.DefaultConfig(),
			},
			wantErr: true,
		},
		{
			name: "missing database path",
			config: &Config{
				Agent:    AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{Path: ""},
				API:      APIConfig{Port: 8080},
				Radio:    netradio.DefaultConfig(),
			},
			wantErr: true,
		},
		{
			name: "invalid QoS",
			config: &Config{
				Agent:    AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{Path: "/data/radiolink.db"},
				MQTT:     MQTTConfig{QoS: 3},
				API:      APIConfig{Port: 8080},
				Radio:    netradio.DefaultConfig(),
			},
			wantErr: true,
		},
		{
			name: "invalid port low",
			config: &Config{
				Agent:    AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{Path: "/data/radiolink.db"},
				MQTT:     MQTTConfig{QoS: 1},
				API:      APIConfig{Port: 0},
				Radio:    netradio.DefaultConfig(),
			},
			wantErr: true,
		},
		{
			name: "invalid port high",
			config: &Config{
				Agent:    AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{Path: "/data/radiolink.db"},
				MQTT:     MQTTConfig{QoS: 1},
				API:      APIConfig{Port: 70000},
				Radio:    netradio.DefaultConfig(),
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			config: &Config{
				Agent:    AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{Path: "/data/radiolink.db"},
				MQTT:     MQTTConfig{QoS: 1},
				API:      APIConfig{Port: 8080},
				InfluxDB: InfluxDBConfig{Enabled: true, Bucket: "readings"},
				Radio:    netradio.DefaultConfig(),
			},
			wantErr: true,
		},
		{
			name: "invalid radio section",
			config: &Config{
				Agent:    AgentConfig{ID: "agent-001"},
				Database: DatabaseConfig{Path: "/data/radiolink.db"},
				MQTT:     MQTTConfig{QoS: 1},
				API:      APIConfig{Port: 8080},
				Radio:    netradio.Config{DeviceID: "bad/id"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("RADIOLINK_DATABASE_PATH", "/custom/path.db")
	t.Setenv("RADIOLINK_MQTT_HOST", "mqtt.example.com")
	t.Setenv("RADIOLINK_MQTT_USERNAME", "testuser")
	t.Setenv("RADIOLINK_MQTT_PASSWORD", "testpass")
	t.Setenv("RADIOLINK_API_HOST", "192.168.1.1")
	t.Setenv("RADIOLINK_API_PORT", "9090")
	t.Setenv("RADIOLINK_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("RADIOLINK_RADIO_HOST", "10.0.0.40")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Radio.Host != "10.0.0.40" {
		t.Errorf("Radio.Host = %q, want %q", cfg.Radio.Host, "10.0.0.40")
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("RADIOLINK_API_PORT", "not-a-number")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080 for unparseable override", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Agent.ID == "" {
		t.Error("defaultConfig should have non-empty Agent.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("defaultConfig API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}

	if err := cfg.Radio.Validate(); err != nil {
		t.Errorf("defaultConfig radio section should validate, got %v", err)
	}
}
