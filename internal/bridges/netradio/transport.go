package netradio

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// datagramQueueSize is the buffer between the listener goroutine and the
// engine loop. The engine drains quickly; overflow datagrams are dropped
// and counted rather than blocking the listener.
const datagramQueueSize = 64

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Datagram is one received UDP payload with its source address.
type Datagram struct {
	Data []byte
	Addr *net.UDPAddr
}

// TransportStats holds operational statistics for the UDP transport.
type TransportStats struct {
	DatagramsTx      uint64
	DatagramsRx      uint64
	DatagramsDropped uint64 // Dropped due to full engine queue
	ErrorsTotal      uint64 // Send and read failures
	ListenerRestarts uint64
	LastActivity     time.Time
	Listening        bool
}

// Transport abstracts the receiver's UDP plumbing for testability.
//
// Sends are fire-and-forget: no delivery confirmation and no retry. Retry is
// a poll scheduler policy, not a transport concern.
type Transport interface {
	Start(port int) error
	Restart(port int) error
	SendUnicast(addr string, port int, payload []byte) error
	SendBroadcast(addr string, port int, payload []byte) error
	Datagrams() <-chan Datagram
	IsListening() bool
	Port() int
	Stats() TransportStats
	Close() error
}

// Ensure UDPTransport implements Transport.
var _ Transport = (*UDPTransport)(nil)

// UDPTransport sends and receives the receiver's control datagrams.
//
// One socket bound to the configured listen port receives replies and
// unsolicited notifications; the receiver targets that port by protocol
// convention, so outbound commands go through short-lived ephemeral sockets.
//
// Thread Safety: all methods are safe for concurrent use. Received
// datagrams are delivered on a single channel in arrival order.
type UDPTransport struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	port   int
	closed bool

	datagrams chan Datagram
	readerWG  sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	datagramsTx      atomic.Uint64
	datagramsRx      atomic.Uint64
	datagramsDropped atomic.Uint64
	errorsTotal      atomic.Uint64
	listenerRestarts atomic.Uint64
	lastActivity     atomic.Int64 // Unix timestamp
}

// NewUDPTransport creates a transport. The listener is not started until
// Start is called.
func NewUDPTransport() *UDPTransport {
	return &UDPTransport{
		datagrams: make(chan Datagram, datagramQueueSize),
	}
}

// Start binds the listener socket on the given port and begins delivering
// datagrams. Starting an already started transport is an error; use Restart
// to change ports.
func (t *UDPTransport) Start(port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrListenerClosed
	}
	if t.conn != nil {
		return fmt.Errorf("netradio: listener already started on port %d", t.port)
	}
	return t.startLocked(port)
}

// startLocked binds and spawns the reader. Caller holds t.mu.
func (t *UDPTransport) startLocked(port int) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return fmt.Errorf("netradio: bind listener on port %d: %w", port, err)
	}

	t.conn = conn
	t.port = conn.LocalAddr().(*net.UDPAddr).Port
	t.readerWG.Add(1)
	go t.readLoop(conn)

	t.logInfo("listener started", "port", port)
	return nil
}

// stopLocked closes the current listener and waits for its reader to exit.
// Caller holds t.mu.
func (t *UDPTransport) stopLocked() {
	if t.conn == nil {
		return
	}
	t.conn.Close()
	t.conn = nil
	t.readerWG.Wait()
}

// Restart atomically stops the listener and starts it on a new port. The
// old socket is fully released before the new bind, so a port change can
// never leave an orphaned socket or a duplicate reader behind.
func (t *UDPTransport) Restart(port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrListenerClosed
	}

	t.stopLocked()
	t.listenerRestarts.Add(1)
	return t.startLocked(port)
}

// readLoop reads one datagram at a time and hands it to the engine queue.
// Exits when its socket is closed by Restart or Close.
func (t *UDPTransport) readLoop(conn *net.UDPConn) {
	defer t.readerWG.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// UDP read errors other than closure are transient.
			t.errorsTotal.Add(1)
			t.logWarn("listener read failed", "error", err)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		t.datagramsRx.Add(1)
		t.lastActivity.Store(time.Now().Unix())

		select {
		case t.datagrams <- Datagram{Data: payload, Addr: addr}:
		default:
			t.datagramsDropped.Add(1)
			t.logWarn("engine queue full, dropping datagram", "from", addr.String())
		}
	}
}

// SendUnicast sends one datagram to addr:port through an ephemeral socket.
func (t *UDPTransport) SendUnicast(addr string, port int, payload []byte) error {
	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("netradio: resolve unicast target %s: %w", addr, err)
	}

	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("netradio: open unicast socket: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("netradio: unicast send to %s: %w", raddr, err)
	}

	t.datagramsTx.Add(1)
	t.lastActivity.Store(time.Now().Unix())
	return nil
}

// SendBroadcast sends one datagram to a broadcast address:port.
//
// The socket is bound ephemerally and written to directly. The net package
// already sets the broadcast socket option on UDP sockets, so no further
// setup is needed.
func (t *UDPTransport) SendBroadcast(addr string, port int, payload []byte) error {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("netradio: invalid broadcast address %q", addr)
	}

	uc, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("netradio: open broadcast socket: %w", err)
	}
	defer uc.Close()

	raddr := &net.UDPAddr{IP: ip.To4(), Port: port}
	if _, err := uc.WriteToUDP(payload, raddr); err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("netradio: broadcast send to %s: %w", raddr, err)
	}

	t.datagramsTx.Add(1)
	t.lastActivity.Store(time.Now().Unix())
	return nil
}

// Datagrams returns the channel of received datagrams. The channel stays
// open across listener restarts.
func (t *UDPTransport) Datagrams() <-chan Datagram {
	return t.datagrams
}

// IsListening reports whether the listener socket is currently bound.
func (t *UDPTransport) IsListening() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Port reports the local port of the bound listener socket, or 0 when the
// listener is not running. When Start was given port 0 this is the port
// the kernel chose.
func (t *UDPTransport) Port() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return 0
	}
	return t.port
}

// Stats returns current operational statistics.
func (t *UDPTransport) Stats() TransportStats {
	return TransportStats{
		DatagramsTx:      t.datagramsTx.Load(),
		DatagramsRx:      t.datagramsRx.Load(),
		DatagramsDropped: t.datagramsDropped.Load(),
		ErrorsTotal:      t.errorsTotal.Load(),
		ListenerRestarts: t.listenerRestarts.Load(),
		LastActivity:     time.Unix(t.lastActivity.Load(), 0),
		Listening:        t.IsListening(),
	}
}

// Close releases the listener socket and stops datagram delivery.
// Idempotent. Start and Restart fail with ErrListenerClosed afterwards.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.stopLocked()

	t.logInfo("listener closed")
	return nil
}

// SetLogger sets the logger for this transport.
func (t *UDPTransport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// logInfo logs an info message if logger is set.
func (t *UDPTransport) logInfo(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (t *UDPTransport) logWarn(msg string, keysAndValues ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
