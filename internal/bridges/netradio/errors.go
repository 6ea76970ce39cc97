package netradio

import "errors"

// Domain errors for the netradio bridge package.
var (
	// ErrResolveFailed is returned when the configured host name cannot be
	// resolved to an IPv4 address. The bridge enters host_error and
	// suppresses all sends until the host is changed or cleared.
	ErrResolveFailed = errors.New("netradio: host name resolution failed")

	// ErrHostUnresolved is returned when a send is refused because the
	// bridge is in host_error.
	ErrHostUnresolved = errors.New("netradio: sends suppressed while host is unresolved")

	// ErrNoAddress is returned when a unicast send is refused because
	// neither a configured host nor a discovered address is known.
	ErrNoAddress = errors.New("netradio: no device address known")

	// ErrListenerClosed is returned when an operation requires the UDP
	// listener but it has been closed.
	ErrListenerClosed = errors.New("netradio: listener closed")

	// ErrBridgeStopped is returned when a call arrives after Stop.
	ErrBridgeStopped = errors.New("netradio: bridge stopped")

	// ErrInvalidAction is returned for a command action outside the
	// supported set, or with an out-of-range value.
	ErrInvalidAction = errors.New("netradio: invalid command action")

	// ErrCommandTimeout is returned when the engine loop does not pick up
	// a marshalled call within the command timeout.
	ErrCommandTimeout = errors.New("netradio: command timed out")
)
