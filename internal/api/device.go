package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/radiolink/radiolink-core/internal/bridges/netradio"
)

// DeviceResponse is the full device view: identity and addressing, the
// reachability status, and the bridge's counters.
type DeviceResponse struct {
	DeviceID       string                 `json:"device_id"`
	Status         string                 `json:"status"`
	Host           string                 `json:"host"`
	IP             string                 `json:"ip"`
	Broadcast      string                 `json:"broadcast"`
	LastAck        time.Time              `json:"last_ack"`
	LastFullUpdate time.Time              `json:"last_full_update"`
	NextWake       time.Time              `json:"next_wake"`
	Listening      bool                   `json:"listening"`
	Stats          DeviceStatsResponse    `json:"stats"`
	Transport      TransportStatsResponse `json:"transport"`
}

// DeviceStatsResponse carries the bridge's protocol counters.
type DeviceStatsResponse struct {
	NotificationsReceived uint64 `json:"notifications_received"`
	AcksReceived          uint64 `json:"acks_received"`
	DiscoveriesReceived   uint64 `json:"discoveries_received"`
	FramesDropped         uint64 `json:"frames_dropped"`
	UnknownEvents         uint64 `json:"unknown_events"`
	CommandsSent          uint64 `json:"commands_sent"`
	SendFailures          uint64 `json:"send_failures"`
}

// TransportStatsResponse carries the UDP listener's counters.
type TransportStatsResponse struct {
	DatagramsTx      uint64    `json:"datagrams_tx"`
	DatagramsRx      uint64    `json:"datagrams_rx"`
	DatagramsDropped uint64    `json:"datagrams_dropped"`
	ErrorsTotal      uint64    `json:"errors_total"`
	ListenerRestarts uint64    `json:"listener_restarts"`
	LastActivity     time.Time `json:"last_activity"`
	Listening        bool      `json:"listening"`
}

// handleGetDevice returns the mirrored receiver: device record, reachability
// status, and bridge counters in one snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, _ *http.Request) {
	m := s.bridge.Metrics()

	writeJSON(w, http.StatusOK, DeviceResponse{
		DeviceID:       m.DeviceID,
		Status:         string(m.Status),
		Host:           m.Host,
		IP:             m.IP,
		Broadcast:      m.Broadcast,
		LastAck:        m.LastAck,
		LastFullUpdate: m.LastFullUpdate,
		NextWake:       m.NextWake,
		Listening:      m.Listening,
		Stats: DeviceStatsResponse{
			NotificationsReceived: m.Stats.NotificationsReceived,
			AcksReceived:          m.Stats.AcksReceived,
			DiscoveriesReceived:   m.Stats.DiscoveriesReceived,
			FramesDropped:         m.Stats.FramesDropped,
			UnknownEvents:         m.Stats.UnknownEvents,
			CommandsSent:          m.Stats.CommandsSent,
			SendFailures:          m.Stats.SendFailures,
		},
		Transport: TransportStatsResponse{
			DatagramsTx:      m.Transport.DatagramsTx,
			DatagramsRx:      m.Transport.DatagramsRx,
			DatagramsDropped: m.Transport.DatagramsDropped,
			ErrorsTotal:      m.Transport.ErrorsTotal,
			ListenerRestarts: m.Transport.ListenerRestarts,
			LastActivity:     m.Transport.LastActivity,
			Listening:        m.Transport.Listening,
		},
	})
}

// CommandRequest represents a control action to send to the receiver.
type CommandRequest struct {
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
}

// handleDeviceCommand sends a control action to the receiver.
//
// The UDP datagram goes out before this returns, but the receiver confirms
// asynchronously, so the response is 202 Accepted. The confirmed state
// arrives through the readings snapshot once the acknowledgement lands.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	var cmd CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Action == "" {
		writeBadRequest(w, "action field is required")
		return
	}

	if err := s.bridge.Command(cmd.Action, cmd.Value); err != nil {
		switch {
		case errors.Is(err, netradio.ErrInvalidAction):
			writeBadRequest(w, err.Error())
		case errors.Is(err, netradio.ErrHostUnresolved),
			errors.Is(err, netradio.ErrNoAddress):
			writeUnavailable(w, "receiver unreachable: "+err.Error())
		case errors.Is(err, netradio.ErrBridgeStopped),
			errors.Is(err, netradio.ErrCommandTimeout):
			writeUnavailable(w, err.Error())
		default:
			writeInternalError(w, "failed to send command")
		}
		return
	}

	s.logger.Info("device command sent", "action", cmd.Action, "value", cmd.Value)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"action":  cmd.Action,
		"message": "command sent, state update follows on acknowledgement",
	})
}

// SettingsRequest is a partial update of the runtime settings. Absent fields
// keep their current values.
type SettingsRequest struct {
	Host               *string `json:"host,omitempty"`
	BroadcastAddress   *string `json:"broadcast_address,omitempty"`
	UDPPort            *int    `json:"udp_port,omitempty"`
	UDPListenPort      *int    `json:"udp_listen_port,omitempty"`
	PollInterval       *int    `json:"poll_interval,omitempty"`
	FullUpdateInterval *int    `json:"full_update_interval,omitempty"`
}

// SettingsResponse echoes the settings now in effect. Warning is set when
// the settings were applied but the new host did not resolve.
type SettingsResponse struct {
	Host               string `json:"host"`
	BroadcastAddress   string `json:"broadcast_address"`
	UDPPort            int    `json:"udp_port"`
	UDPListenPort      int    `json:"udp_listen_port"`
	PollInterval       int    `json:"poll_interval"`
	FullUpdateInterval int    `json:"full_update_interval"`
	Warning            string `json:"warning,omitempty"`
}

// handleUpdateSettings merges the request onto the current settings and
// applies the result on the engine goroutine. A changed listen port restarts
// the listener; a changed host re-resolves immediately.
//
// A host that fails to resolve is not an error here: the settings stick, the
// bridge enters host_error, and the response carries a warning.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	next := s.bridge.Settings()
	if req.Host != nil {
		next.Host = *req.Host
	}
	if req.BroadcastAddress != nil {
		next.BroadcastAddress = *req.BroadcastAddress
	}
	if req.UDPPort != nil {
		next.UDPPort = *req.UDPPort
	}
	if req.UDPListenPort != nil {
		next.UDPListenPort = *req.UDPListenPort
	}
	if req.PollInterval != nil {
		next.PollInterval = *req.PollInterval
	}
	if req.FullUpdateInterval != nil {
		next.FullUpdateInterval = *req.FullUpdateInterval
	}

	if err := next.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp := SettingsResponse{
		Host:               next.Host,
		BroadcastAddress:   next.BroadcastAddress,
		UDPPort:            next.UDPPort,
		UDPListenPort:      next.UDPListenPort,
		PollInterval:       next.PollInterval,
		FullUpdateInterval: next.FullUpdateInterval,
	}

	if err := s.bridge.ApplySettings(next); err != nil {
		switch {
		case errors.Is(err, netradio.ErrResolveFailed):
			// Settings are in effect; the bridge sits in host_error
			// until the host setting changes again.
			resp.Warning = "settings applied, but host did not resolve: " + err.Error()
		case errors.Is(err, netradio.ErrBridgeStopped),
			errors.Is(err, netradio.ErrCommandTimeout):
			writeUnavailable(w, err.Error())
			return
		default:
			writeInternalError(w, "failed to apply settings")
			return
		}
	}

	s.logger.Info("device settings updated",
		"host", resp.Host,
		"udp_port", resp.UDPPort,
		"listen_port", resp.UDPListenPort,
		"poll_interval", resp.PollInterval)

	writeJSON(w, http.StatusOK, resp)
}
