package netradio

import "time"

// Status is the reachability/power state of the receiver. Exactly one is
// current at any time.
type Status string

// Receiver states.
const (
	// StatusOffline means the receiver is unreachable or not yet acquired.
	StatusOffline Status = "offline"

	// StatusHostError means the configured host name failed to resolve.
	// Only an explicit transition to offline clears this state.
	StatusHostError Status = "host_error"

	// StatusOnline means the receiver answered but its power state is not
	// yet known.
	StatusOnline Status = "online"

	// StatusOn means the receiver reported power on.
	StatusOn Status = "on"

	// StatusOff means the receiver reported power off.
	StatusOff Status = "off"
)

// DeviceRecord is the engine-owned record for the managed receiver. It is
// mutated only on the engine goroutine; exported accessors hand out copies.
type DeviceRecord struct {
	// Identity is the token embedded in outbound frames and echoed by the
	// receiver to correlate GET/SET/PLAY replies.
	Identity string

	// Host is the configured host name or address, empty when the bridge
	// relies on discovery alone.
	Host string

	// HostIP is the address Host resolved to, preferred over IP for
	// unicast sends while set.
	HostIP string

	// IP is the address the receiver itself reported in a discovery
	// reply. Notification and discovery correlation match against it;
	// host resolution never writes it.
	IP string

	// Broadcast is the discovery target address, derived from IP by
	// replacing the last octet with 255 or overridden by configuration.
	Broadcast string

	// Status is the current state machine value.
	Status Status

	// LastAck is the last time the receiver gave any sign of life.
	LastAck time.Time

	// LastFullUpdate is the last time a full-field refresh was issued.
	LastFullUpdate time.Time
}

// applyStatus applies the guarded transition rules and reports whether the
// state actually changed.
//
// The rules encode operational intent and are deliberate:
//
//   - Attempting online refreshes LastAck unconditionally, even when the
//     transition itself is rejected. Any alive signal counts for liveness.
//   - online is rejected while the state is on or off: an alive signal must
//     not erase a more specific power state already known.
//   - While in host_error, only offline is accepted. Clearing a resolver
//     error requires going through offline (or a successful re-resolution,
//     which does exactly that).
//   - Everything else is accepted unconditionally.
//
// The machine has no timeouts of its own; dead-peer detection is a poll
// scheduler policy that calls in here.
func (d *DeviceRecord) applyStatus(target Status, now time.Time) bool {
	if target == StatusOnline {
		d.LastAck = now
	}

	cur := d.Status
	if target == StatusOnline && (cur == StatusOn || cur == StatusOff) {
		return false
	}
	if cur == StatusHostError && target != StatusOffline {
		return false
	}

	if cur == target {
		return false
	}
	d.Status = target
	return true
}

// Reachable reports whether the receiver is believed reachable: online in
// any form, including a known power state.
func (d *DeviceRecord) Reachable() bool {
	switch d.Status {
	case StatusOnline, StatusOn, StatusOff:
		return true
	default:
		return false
	}
}
