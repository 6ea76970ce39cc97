package netradio

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/radiolink/radiolink-core/internal/readings"
)

// protocolName identifies this bridge in message payloads and topics.
const protocolName = "netradio"

// CommandMessage is sent from Core to Bridge to control the receiver.
// Topic: radiolink/command/netradio/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with
	// acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Radiolink device identifier. Empty means the
	// bridge's managed device.
	DeviceID string `json:"device_id,omitempty"`

	// Action is the command name (e.g., "power_on", "set_volume",
	// "play_preset").
	Action string `json:"action"`

	// Value carries the action parameter, such as a volume level,
	// preset number, or stream URL.
	Value string `json:"value,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source,omitempty"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// MarshalJSON marshals a CommandMessage to JSON.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// ParseCommandMessage parses and validates an inbound command payload.
func ParseCommandMessage(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{}, err
	}
	if cmd.Action == "" {
		return CommandMessage{}, fmt.Errorf("command message missing action")
	}
	return cmd, nil
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and sent to the
	// receiver.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the engine did not pick the command up in
	// time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: radiolink/ack/netradio/{device_id}
//
// Acceptance means the frame went out on the wire. The protocol has no
// delivery confirmation; whether the receiver acted shows up later as
// reading changes on the state topic.
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Radiolink device identifier.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("netradio").
	Protocol string `json:"protocol"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "NO_ADDRESS", "INVALID_ACTION").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidAction  = "INVALID_ACTION"
	ErrCodeHostUnresolved = "HOST_UNRESOLVED"
	ErrCodeNoAddress      = "NO_ADDRESS"
	ErrCodeSendFailed     = "SEND_FAILED"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeBridgeStopped  = "BRIDGE_STOPPED"
)

// ackErrorCode maps a command execution error to its wire code.
func ackErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAction):
		return ErrCodeInvalidAction
	case errors.Is(err, ErrHostUnresolved):
		return ErrCodeHostUnresolved
	case errors.Is(err, ErrNoAddress):
		return ErrCodeNoAddress
	case errors.Is(err, ErrCommandTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrBridgeStopped):
		return ErrCodeBridgeStopped
	default:
		return ErrCodeSendFailed
	}
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, deviceID string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    status,
		Protocol:  protocolName,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, deviceID, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    status,
		Protocol:  protocolName,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// StateMessage is sent from Bridge to Core when readings change.
// Topic: radiolink/state/netradio/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the Radiolink device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the change was applied (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Changed holds only the readings this change set touched.
	Changed map[string]string `json:"changed"`

	// Readings is the full mirror after the change.
	Readings map[string]string `json:"readings"`

	// Source tells what produced the change: "poll", "event",
	// "command", or "discovery".
	Source string `json:"source"`

	// Protocol is the protocol identifier ("netradio").
	Protocol string `json:"protocol"`
}

// NewStateMessage creates a state message from a readings change set.
func NewStateMessage(cs readings.ChangeSet) StateMessage {
	return StateMessage{
		DeviceID:  cs.DeviceID,
		Timestamp: cs.At.UTC(),
		Changed:   cs.Changed,
		Readings:  cs.Snapshot,
		Source:    cs.Source,
		Protocol:  protocolName,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from Bridge to Core to report operational status.
// Topic: radiolink/health/netradio
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier ("netradio").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// DeviceID is the managed receiver's identifier.
	DeviceID string `json:"device_id,omitempty"`

	// DeviceState is the receiver's reachability state ("offline",
	// "host_error", "online", "on", "off").
	DeviceState string `json:"device_state,omitempty"`

	// Listener describes the UDP listener socket.
	Listener *ListenerStatus `json:"listener,omitempty"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ListenerStatus describes the UDP listener state.
type ListenerStatus struct {
	// Status is "listening" or "closed".
	Status string `json:"status"`

	// Port is the bound local port, 0 when closed.
	Port int `json:"port,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// DatagramsReceived is the total number of UDP datagrams received.
	DatagramsReceived uint64 `json:"datagrams_received"`

	// DatagramsSent is the total number of UDP datagrams sent.
	DatagramsSent uint64 `json:"datagrams_sent"`

	// DatagramsDropped is the number dropped on a full engine queue.
	DatagramsDropped uint64 `json:"datagrams_dropped"`

	// Errors is the total number of transport errors encountered.
	Errors uint64 `json:"errors"`

	// ListenerRestarts counts listen-port changes applied at runtime.
	ListenerRestarts uint64 `json:"listener_restarts"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(deviceID, version string, status HealthStatus, deviceState string, listener ListenerStatus, stats TransportStats, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:        protocolName,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		DeviceID:      deviceID,
		DeviceState:   deviceState,
		Listener:      &listener,
		Statistics: &BridgeStatistics{
			DatagramsReceived: stats.DatagramsRx,
			DatagramsSent:     stats.DatagramsTx,
			DatagramsDropped:  stats.DatagramsDropped,
			Errors:            stats.ErrorsTotal,
			ListenerRestarts:  stats.ListenerRestarts,
		},
	}
}

// NewLWTMessage creates a Last Will and Testament message for MQTT. The
// broker publishes it if the bridge disconnects unexpectedly.
func NewLWTMessage(deviceID string) HealthMessage {
	return HealthMessage{
		Bridge:    protocolName,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		DeviceID:  deviceID,
		Reason:    "unexpected_disconnect",
	}
}

// Topic helpers

const (
	// TopicPrefix is the base topic for all Radiolink messages.
	TopicPrefix = "radiolink"
)

// CommandTopic returns the MQTT topic for commands to a device.
// Example: radiolink/command/netradio/kitchen-radio
func CommandTopic(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocolName, deviceID)
}

// AckTopic returns the MQTT topic for command acknowledgments.
// Example: radiolink/ack/netradio/kitchen-radio
func AckTopic(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocolName, deviceID)
}

// StateTopic returns the MQTT topic for state updates.
// Example: radiolink/state/netradio/kitchen-radio
func StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocolName, deviceID)
}

// HealthTopic returns the MQTT topic for health status.
// Example: radiolink/health/netradio
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocolName)
}

// CommandSubscribeTopic returns the subscription pattern for all commands.
// Example: radiolink/command/netradio/#
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, protocolName)
}
