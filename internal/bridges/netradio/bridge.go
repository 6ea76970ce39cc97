package netradio

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radiolink/radiolink-core/internal/readings"
)

// callQueueSize buffers external calls headed for the engine goroutine.
const callQueueSize = 16

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection gracefully.
	Disconnect(quiesce uint)
}

// Bridge mirrors one network radio receiver over its UDP control protocol.
//
// All protocol state (device record, poll scheduler, mute memory) is
// confined to a single engine goroutine started by Start. Inbound
// datagrams, poll ticks, and external calls are serialised through one
// select loop, so handlers never race and never block each other beyond
// their own run time. External methods (Command, ApplySettings, Metrics)
// marshal closures onto the loop and wait for the result.
type Bridge struct {
	// Immutable after NewBridge.
	deviceID       string
	version        string
	commandTimeout time.Duration

	transport Transport
	store     *readings.Store
	mqtt      MQTTClient // May be nil (optional)
	health    *HealthReporter

	// Engine-confined: touched only on the run goroutine.
	cfg           Config
	record        DeviceRecord
	sched         *pollScheduler
	preMuteVolume string

	// lookupIP resolves the configured host. Swapped out in tests.
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)

	calls    chan func()
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Bridge-level context, cancelled on Stop to abort in-flight
	// host resolution.
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Statistics (atomic)
	notificationsRx atomic.Uint64
	acksRx          atomic.Uint64
	discoveriesRx   atomic.Uint64
	framesDropped   atomic.Uint64
	unknownEvents   atomic.Uint64
	commandsSent    atomic.Uint64
	sendFailures    atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	// Config is the bridge configuration. Must validate.
	Config Config

	// Transport carries the UDP datagrams. Required.
	Transport Transport

	// Store receives the mirrored readings. Required, and must be
	// created for the same device ID the config names.
	Store *readings.Store

	// MQTTClient publishes state changes and receives commands. May be
	// nil (optional); the bridge then serves the API surface only.
	MQTTClient MQTTClient

	// Logger receives structured log output. May be nil (optional).
	Logger Logger

	// Version is reported in health messages. Defaults to "dev".
	Version string
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("readings store is required")
	}
	if got := opts.Store.DeviceID(); got != opts.Config.DeviceID {
		return nil, fmt.Errorf("readings store is for device %q, config names %q", got, opts.Config.DeviceID)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		deviceID:       opts.Config.DeviceID,
		version:        version,
		commandTimeout: opts.Config.GetCommandTimeout(),
		transport:      opts.Transport,
		store:          opts.Store,
		mqtt:           opts.MQTTClient,
		cfg:            opts.Config,
		sched:          newPollScheduler(),
		calls:          make(chan func(), callQueueSize),
		done:           make(chan struct{}),
		ctx:            ctx,
		ctxCancel:      ctxCancel,
		logger:         opts.Logger,
	}

	b.record = DeviceRecord{
		Identity: opts.Config.GetIdentity(),
		Host:     opts.Config.Host,
		Status:   StatusOffline,
	}

	b.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		return net.DefaultResolver.LookupIP(ctx, "ip4", host)
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		DeviceID:  opts.Config.DeviceID,
		Version:   version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Transport: opts.Transport,
		Store:     opts.Store,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start binds the UDP listener and launches the engine goroutine.
//
// The context bounds startup work and the health report loop; cancelling
// it does not stop the bridge itself — call Stop for that.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.transport.Start(b.cfg.UDPListenPort); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logWarn("failed to publish starting status", "error", err)
	}

	if b.mqtt != nil {
		topic := CommandSubscribeTopic()
		if err := b.mqtt.Subscribe(topic, 1, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to commands: %w", err)
		}
		b.logInfo("subscribed to commands", "topic", topic)

		b.store.Subscribe(b.publishState)
	}

	b.wg.Add(1)
	go b.run()

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logWarn("failed to publish health status", "error", err)
	}

	b.logInfo("bridge started",
		"device_id", b.deviceID,
		"listen_port", b.cfg.UDPListenPort,
		"host", b.cfg.Host)
	return nil
}

// Stop gracefully shuts the bridge down: the engine goroutine drains, the
// listener socket closes, and the pending poll wake is cancelled, in that
// order. Idempotent.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()

		if err := b.transport.Close(); err != nil {
			b.logWarn("listener close failed", "error", err)
		}
		b.sched.cancel()
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// run is the engine loop. Every mutation of the device record, scheduler,
// and mute memory happens here.
func (b *Bridge) run() {
	defer b.wg.Done()

	b.startup()

	for {
		select {
		case <-b.done:
			return
		case dg, ok := <-b.transport.Datagrams():
			if !ok {
				return
			}
			b.handleDatagram(dg)
		case now := <-b.sched.C():
			b.sched.fired()
			b.handleTick(now)
		case fn := <-b.calls:
			fn()
		}
	}
}

// startup seeds the mirror and schedules the first poll tick.
func (b *Bridge) startup() {
	now := time.Now()

	batch := b.store.Begin(readings.SourcePoll)
	b.stage(batch, ReadingState, string(StatusOffline))
	if b.cfg.DeviceName != "" {
		b.stage(batch, ReadingName, b.cfg.DeviceName)
	}
	b.commit(batch)

	if b.cfg.Host != "" {
		// Resolution failure is carried in the state; startup proceeds.
		b.applyHost(b.cfg.Host, now)
	}

	if b.cfg.GetPollInterval() > 0 {
		b.sched.rearm(now, 0, true)
	}
}

// handleTick runs one scheduled poll action for the current state.
func (b *Bridge) handleTick(now time.Time) {
	switch b.record.Status {
	case StatusHostError:
		// Sends stay suppressed until the host setting changes.
		return
	case StatusOffline:
		b.sendDiscover()
	case StatusOnline, StatusOn:
		if !b.checkDeadPeer(now) {
			if b.fullRefreshDue(now) {
				b.sendFullRefresh(now)
			} else {
				b.sendCommand(VerbGet, []string{BlockStatus})
			}
		}
	case StatusOff:
		// A powered-down receiver does not answer polls; its wake-up
		// arrives as a notification.
	}

	b.rearmPoll(now, false)
}

// checkDeadPeer declares the receiver gone when nothing has been heard
// from it for deadPeerThreshold. Reports whether the declaration happened.
func (b *Bridge) checkDeadPeer(now time.Time) bool {
	if now.Sub(b.record.LastAck) < deadPeerThreshold {
		return false
	}

	b.logWarn("receiver unresponsive, marking offline",
		"last_ack", b.record.LastAck.Format(time.RFC3339))

	batch := b.store.Begin(readings.SourcePoll)
	b.stage(batch, ReadingPower, "off")
	b.setStatus(batch, StatusOffline, now)
	b.commit(batch)
	return true
}

// fullRefreshDue reports whether the periodic full-field refresh should
// replace the status-only poll. A zero interval disables full refreshes.
func (b *Bridge) fullRefreshDue(now time.Time) bool {
	interval := b.cfg.GetFullUpdateInterval()
	if interval <= 0 {
		return false
	}
	if b.record.LastFullUpdate.IsZero() {
		return true
	}
	return now.Sub(b.record.LastFullUpdate) >= interval
}

// sendFullRefresh requests every info block in one frame and stamps the
// full-update time on a successful send.
func (b *Bridge) sendFullRefresh(now time.Time) error {
	if err := b.sendCommand(VerbGet, allBlocks()); err != nil {
		return err
	}
	b.record.LastFullUpdate = now
	return nil
}

// rearmPoll schedules the next wake at the configured poll interval. A
// zero interval disables polling entirely.
func (b *Bridge) rearmPoll(now time.Time, force bool) {
	interval := b.cfg.GetPollInterval()
	if interval <= 0 {
		return
	}
	b.sched.rearm(now, interval, force)
}

// sendCommand builds and sends one unicast command frame to the receiver.
func (b *Bridge) sendCommand(verb Verb, params []string) error {
	if b.record.Status == StatusHostError {
		b.logWarn("send refused, host unresolved", "verb", string(verb))
		return ErrHostUnresolved
	}

	addr := b.unicastAddr()
	if addr == "" {
		b.logWarn("send refused, no device address", "verb", string(verb))
		return ErrNoAddress
	}

	payload := BuildFrame(string(verb), params, b.record.Identity)
	if err := b.transport.SendUnicast(addr, b.cfg.UDPPort, payload); err != nil {
		b.sendFailures.Add(1)
		b.logWarn("command send failed", "verb", string(verb), "addr", addr, "error", err)
		return fmt.Errorf("send %s: %w", verb, err)
	}

	b.commandsSent.Add(1)
	b.logDebug("command sent", "verb", string(verb), "params", strings.Join(params, " "), "addr", addr)
	return nil
}

// sendDiscover broadcasts a DISCOVER frame on the protocol port.
func (b *Bridge) sendDiscover() error {
	if b.record.Status == StatusHostError {
		b.logWarn("discover refused, host unresolved")
		return ErrHostUnresolved
	}

	addr := b.broadcastAddr()
	payload := BuildFrame(string(VerbDiscover), nil, b.record.Identity)
	if err := b.transport.SendBroadcast(addr, b.cfg.UDPPort, payload); err != nil {
		b.sendFailures.Add(1)
		b.logWarn("discover send failed", "addr", addr, "error", err)
		return fmt.Errorf("send DISCOVER: %w", err)
	}

	b.commandsSent.Add(1)
	b.logDebug("discover sent", "addr", addr)
	return nil
}

// unicastAddr picks the send target: the configured-host address wins over
// a discovered one.
func (b *Bridge) unicastAddr() string {
	if b.record.HostIP != "" {
		return b.record.HostIP
	}
	return b.record.IP
}

// broadcastAddr picks the discovery target: a configured override first,
// then the address derived from the resolved host, then the limited
// broadcast address.
func (b *Bridge) broadcastAddr() string {
	if b.cfg.BroadcastAddress != "" {
		return b.cfg.BroadcastAddress
	}
	if b.record.Broadcast != "" {
		return b.record.Broadcast
	}
	return "255.255.255.255"
}

// handleDatagram classifies one inbound payload and dispatches it. The
// gate is strict: anything without the RESPONSE:ACK marker or with an
// unknown verb is dropped silently.
func (b *Bridge) handleDatagram(dg Datagram) {
	frame := ParseFrame(dg.Data)

	verb, known := ParseVerb(frame.Verb())
	if !frame.IsAck() || !known {
		b.framesDropped.Add(1)
		b.logDebug("dropped non-protocol datagram",
			"from", dg.Addr.String(), "verb", frame.Verb(), "bytes", len(dg.Data))
		return
	}

	now := time.Now()
	switch verb {
	case VerbNotification:
		b.handleNotification(frame, now)
	case VerbDiscover:
		b.handleDiscoverReply(frame, dg, now)
	default:
		b.handleAck(verb, frame, now)
	}
}

// handleAck processes a GET, SET, or PLAY acknowledgment. The identity
// token must match; a matching reply is proof of life, so the state is
// pushed toward online before the verb effects apply.
func (b *Bridge) handleAck(verb Verb, frame Frame, now time.Time) {
	if frame.Identity() != b.record.Identity {
		b.framesDropped.Add(1)
		b.logDebug("dropped reply for foreign identity", "identity", frame.Identity())
		return
	}
	b.acksRx.Add(1)

	source := readings.SourcePoll
	if verb == VerbSet || verb == VerbPlay {
		source = readings.SourceCommand
	}

	batch := b.store.Begin(source)
	b.setStatus(batch, StatusOnline, now)

	var followUp func()
	switch verb {
	case VerbGet:
		b.applyGetFields(batch, frame)
	case VerbSet:
		followUp = b.applySetEffects(batch, frame, now)
	case VerbPlay:
		// A play ack confirms the receiver acted; what it now plays
		// arrives separately as notifications.
	}

	b.commit(batch)
	if followUp != nil {
		followUp()
	}
}

// applyGetFields maps a GET reply's fields onto readings in one batch and
// recomputes the derived now_playing descriptor when its inputs moved.
func (b *Bridge) applyGetFields(batch *readings.Batch, frame Frame) {
	touched := false
	for _, key := range frame.Keys() {
		if key == KeyCommand || key == KeyResponse || key == KeyIdentity ||
			strings.HasPrefix(key, KeyBareLine) {
			continue
		}

		reading, value, ok := MapField(VerbGet, key, frame.Value(key))
		if !ok {
			b.logDebug("unmapped field in GET reply", "field", key)
			continue
		}
		b.stage(batch, reading, value)
		if _, isInput := nowPlayingInputs[reading]; isInput {
			touched = true
		}
	}

	// While muted the volume reading shows the sentinel; the true value
	// reported by the receiver is kept aside for the unmute restore.
	if mute, _ := batch.Get(ReadingMute); mute == "on" {
		if v, _ := batch.Get(ReadingVolume); v != "" && v != MutedVolume {
			b.preMuteVolume = v
		}
		b.stage(batch, ReadingVolume, MutedVolume)
	}

	if touched {
		mode, _ := batch.Get(ReadingPlayMode)
		station, _ := batch.Get(ReadingStation)
		title, _ := batch.Get(ReadingTitle)
		url, _ := batch.Get(ReadingURL)
		b.stage(batch, ReadingNowPlaying, deriveNowPlaying(mode, station, title, url))
	}
}

// applySetEffects applies the verb-specific effects of a SET
// acknowledgment. The returned follow-up, if any, must run after the
// batch commits.
func (b *Bridge) applySetEffects(batch *readings.Batch, frame Frame, now time.Time) func() {
	var followUp func()

	if v, ok := frame.Get("POWER"); ok {
		switch strings.ToUpper(v) {
		case "ON":
			b.setStatus(batch, StatusOn, now)
			b.stage(batch, ReadingPower, "on")
		case "OFF":
			b.setStatus(batch, StatusOff, now)
			b.stage(batch, ReadingPower, "off")
		}
	}

	if v, ok := frame.Get("MUTE"); ok {
		switch strings.ToUpper(v) {
		case "ON":
			if cur, _ := batch.Get(ReadingVolume); cur != "" && cur != MutedVolume {
				b.preMuteVolume = cur
			}
			b.stage(batch, ReadingMute, "on")
			b.stage(batch, ReadingVolume, MutedVolume)
		case "OFF":
			b.stage(batch, ReadingMute, "off")
			if b.preMuteVolume != "" {
				b.stage(batch, ReadingVolume, b.preMuteVolume)
			}
			// The remembered value may be stale; reconcile against
			// the receiver's own report.
			followUp = func() {
				b.sendCommand(VerbGet, []string{BlockVolume})
			}
		}
	}

	return followUp
}

// handleNotification processes an unsolicited event push. Notifications
// correlate by source address rather than identity: the payload's IP
// field must match the known device address.
func (b *Bridge) handleNotification(frame Frame, now time.Time) {
	ip := frame.Value("IP")
	if ip == "" || ip != b.record.IP {
		b.framesDropped.Add(1)
		b.logDebug("dropped notification from unknown address", "ip", ip)
		return
	}
	b.notificationsRx.Add(1)

	// An IP-matched push is a sign of life even with no ack pending.
	b.record.LastAck = now

	raw := frame.Value("EVENT")
	event, known := ParseEvent(raw)
	if !known {
		b.unknownEvents.Add(1)
		b.logDebug("unrecognised notification event", "event", raw)
		return
	}

	switch event {
	case EventSystemBooted:
		b.sendCommand(VerbGet, []string{BlockStatus})
	case EventPowerOn:
		batch := b.store.Begin(readings.SourceEvent)
		b.setStatus(batch, StatusOn, now)
		b.stage(batch, ReadingPower, "on")
		b.commit(batch)
	case EventPowerOff:
		batch := b.store.Begin(readings.SourceEvent)
		b.setStatus(batch, StatusOff, now)
		b.stage(batch, ReadingPower, "off")
		b.commit(batch)
	case EventVolumeChanged:
		b.sendCommand(VerbGet, []string{BlockVolume})
	case EventStationChanged, EventURLPlaying:
		b.sendCommand(VerbGet, []string{BlockPlay})
	}
}

// handleDiscoverReply processes a DISCOVER response and decides whether
// it belongs to the managed receiver: the first reply ever seen is
// adopted, later ones must match the known address or the known device
// name. The name match is what re-acquires a receiver whose DHCP address
// changed.
func (b *Bridge) handleDiscoverReply(frame Frame, dg Datagram, now time.Time) {
	if b.record.Status == StatusHostError {
		b.framesDropped.Add(1)
		b.logDebug("discovery reply ignored while host unresolved")
		return
	}

	ip := frame.Value("IP")
	if ip == "" {
		ip = dg.Addr.IP.String()
	}
	name := frame.Value("NAME")

	knownName, _ := b.store.Get(ReadingName)
	switch {
	case b.record.IP == "":
	case ip == b.record.IP:
	case name != "" && name == knownName:
	default:
		b.framesDropped.Add(1)
		b.logDebug("dropped discovery reply from foreign receiver", "ip", ip, "name", name)
		return
	}
	b.discoveriesRx.Add(1)

	first := b.record.IP == ""
	b.record.IP = ip

	batch := b.store.Begin(readings.SourceDiscovery)
	b.setStatus(batch, StatusOnline, now)
	b.stage(batch, ReadingIP, ip)
	for _, key := range frame.Keys() {
		reading, value, ok := MapField(VerbDiscover, key, frame.Value(key))
		if !ok {
			continue
		}
		b.stage(batch, reading, value)
	}
	b.commit(batch)

	b.logInfo("receiver acquired", "ip", ip, "name", name)

	if first {
		b.sendFullRefresh(now)
	}
}

// setStatus runs the state machine and stages the state reading when the
// transition is accepted.
func (b *Bridge) setStatus(batch *readings.Batch, target Status, now time.Time) {
	prev := b.record.Status
	if !b.record.applyStatus(target, now) {
		return
	}
	b.stage(batch, ReadingState, string(b.record.Status))
	b.logInfo("state changed", "from", string(prev), "to", string(b.record.Status))
}

// commitStatus is setStatus for paths that move nothing but the state:
// the accepted transition commits immediately instead of via a batch.
func (b *Bridge) commitStatus(target Status, now time.Time, source string) {
	prev := b.record.Status
	if !b.record.applyStatus(target, now) {
		return
	}
	if _, err := b.store.UpdateIfChanged(ReadingState, string(b.record.Status), source); err != nil {
		b.logError("commit state reading", "error", err)
	}
	b.logInfo("state changed", "from", string(prev), "to", string(b.record.Status))
}

// stage adds one reading to a batch. Every name staged here comes from
// the field dictionary, so a failure indicates a bug worth surfacing.
func (b *Bridge) stage(batch *readings.Batch, name, value string) {
	if err := batch.Set(name, value); err != nil {
		b.logError("stage reading", "reading", name, "error", err)
	}
}

// commit applies a batch to the readings store.
func (b *Bridge) commit(batch *readings.Batch) {
	if _, err := batch.Commit(); err != nil {
		b.logError("commit readings", "error", err)
	}
}

// Command executes a named control action against the receiver. Safe for
// concurrent use; the work runs on the engine goroutine.
//
// Supported actions: power_on, power_off, set_volume, mute, unmute,
// play_preset, play_url, refresh, discover.
func (b *Bridge) Command(action, value string) error {
	return b.call(func() error {
		return b.executeCommand(action, value)
	})
}

// executeCommand runs on the engine goroutine.
func (b *Bridge) executeCommand(action, value string) error {
	switch action {
	case "power_on":
		return b.sendCommand(VerbSet, []string{"POWER:ON"})
	case "power_off":
		return b.sendCommand(VerbSet, []string{"POWER:OFF"})
	case "set_volume":
		n, err := strconv.Atoi(value)
		if err != nil || n < minVolume || n > maxVolume {
			return fmt.Errorf("%w: volume %q not in %d..%d", ErrInvalidAction, value, minVolume, maxVolume)
		}
		return b.sendCommand(VerbSet, []string{fmt.Sprintf("VOLUME:%d", n)})
	case "mute":
		return b.sendCommand(VerbSet, []string{"MUTE:ON"})
	case "unmute":
		return b.sendCommand(VerbSet, []string{"MUTE:OFF"})
	case "play_preset":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > MaxPresets {
			return fmt.Errorf("%w: preset %q not in 1..%d", ErrInvalidAction, value, MaxPresets)
		}
		return b.sendCommand(VerbPlay, []string{fmt.Sprintf("PRESET:%d", n)})
	case "play_url":
		if value == "" {
			return fmt.Errorf("%w: play_url needs a stream url", ErrInvalidAction)
		}
		return b.sendCommand(VerbPlay, []string{"URL:" + value})
	case "refresh":
		return b.sendFullRefresh(time.Now())
	case "discover":
		return b.sendDiscover()
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

// Settings returns a copy of the current runtime configuration. Safe for
// concurrent use. When the engine is not running, the configuration from
// construction is returned.
func (b *Bridge) Settings() Config {
	var snap Config
	if err := b.call(func() error {
		snap = b.cfg
		return nil
	}); err != nil {
		return b.cfg
	}
	return snap
}

// ApplySettings replaces the runtime configuration. Safe for concurrent
// use. The device ID is fixed for the life of the bridge; command and
// resolve timeouts take their values from the startup configuration.
//
// A changed listen port restarts the listener before anything else is
// applied. A changed host re-resolves immediately; resolution failure is
// returned to the caller while the bridge enters host_error.
func (b *Bridge) ApplySettings(next Config) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if next.DeviceID != b.deviceID {
		return fmt.Errorf("device_id cannot change at runtime (is %q)", b.deviceID)
	}
	return b.call(func() error {
		return b.applySettings(next)
	})
}

// applySettings runs on the engine goroutine.
func (b *Bridge) applySettings(next Config) error {
	prev := b.cfg
	now := time.Now()

	if next.UDPListenPort != prev.UDPListenPort {
		if err := b.transport.Restart(next.UDPListenPort); err != nil {
			return fmt.Errorf("restart listener on port %d: %w", next.UDPListenPort, err)
		}
		b.logInfo("listener moved", "port", next.UDPListenPort)
	}

	b.cfg = next
	b.record.Identity = next.GetIdentity()

	var resolveErr error
	if next.Host != prev.Host {
		resolveErr = b.applyHost(next.Host, now)
	}

	if next.GetPollInterval() <= 0 {
		b.sched.cancel()
	} else {
		switch {
		case next.Host != prev.Host,
			next.UDPPort != prev.UDPPort,
			next.BroadcastAddress != prev.BroadcastAddress:
			// Reachability inputs moved; wake almost immediately.
			b.sched.rearm(now, settingsWakeDelay, true)
		case next.PollInterval != prev.PollInterval:
			b.sched.rearm(now, next.GetPollInterval(), false)
		}
	}

	b.logInfo("settings applied",
		"host", next.Host,
		"udp_port", next.UDPPort,
		"listen_port", next.UDPListenPort,
		"poll_interval", next.PollInterval)
	return resolveErr
}

// call marshals fn onto the engine goroutine and waits for its result.
func (b *Bridge) call(fn func() error) error {
	result := make(chan error, 1)
	timer := time.NewTimer(b.commandTimeout)
	defer timer.Stop()

	select {
	case b.calls <- func() { result <- fn() }:
	case <-b.done:
		return ErrBridgeStopped
	case <-timer.C:
		return ErrCommandTimeout
	}

	select {
	case err := <-result:
		return err
	case <-b.done:
		return ErrBridgeStopped
	}
}

// publishState pushes one readings change set to the state topic. Runs on
// the readings store's notifier goroutine.
func (b *Bridge) publishState(cs readings.ChangeSet) {
	msg := NewStateMessage(cs)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("marshal state message", "error", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(cs.DeviceID), payload, 1, true); err != nil {
		b.logWarn("state publish failed", "error", err)
	}
}

// handleMQTTMessage dispatches inbound command messages.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	cmd, err := ParseCommandMessage(payload)
	if err != nil {
		b.logWarn("malformed command message", "topic", topic, "error", err)
		return
	}
	if cmd.DeviceID != "" && cmd.DeviceID != b.deviceID {
		b.logDebug("command for other device ignored", "device_id", cmd.DeviceID)
		return
	}

	execErr := b.Command(cmd.Action, cmd.Value)
	b.publishCommandAck(cmd, execErr)
}

// publishCommandAck reports command acceptance or failure on the ack
// topic.
func (b *Bridge) publishCommandAck(cmd CommandMessage, execErr error) {
	if b.mqtt == nil {
		return
	}

	var ack AckMessage
	if execErr != nil {
		ack = NewAckError(cmd, b.deviceID, ackErrorCode(execErr), execErr.Error())
	} else {
		ack = NewAckMessage(cmd, AckAccepted, b.deviceID)
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("marshal ack message", "error", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(b.deviceID), payload, 1, false); err != nil {
		b.logWarn("ack publish failed", "error", err)
	}
}

// BridgeStats are the bridge-level counters.
type BridgeStats struct {
	NotificationsReceived uint64
	AcksReceived          uint64
	DiscoveriesReceived   uint64
	FramesDropped         uint64
	UnknownEvents         uint64
	CommandsSent          uint64
	SendFailures          uint64
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	DeviceID       string
	Status         Status
	Host           string
	IP             string
	Broadcast      string
	LastAck        time.Time
	LastFullUpdate time.Time
	NextWake       time.Time
	Listening      bool
	Stats          BridgeStats
	Transport      TransportStats
}

// Metrics returns a snapshot of the bridge for the API metrics endpoint.
// When the engine is not running, counters and transport state are still
// reported and the device record fields fall back to the readings store.
func (b *Bridge) Metrics() BridgeMetrics {
	m := BridgeMetrics{
		DeviceID:  b.deviceID,
		Listening: b.transport.IsListening(),
		Stats:     b.stats(),
		Transport: b.transport.Stats(),
	}

	var snap BridgeMetrics
	err := b.call(func() error {
		snap.Status = b.record.Status
		snap.Host = b.record.Host
		snap.IP = b.record.IP
		snap.Broadcast = b.broadcastAddr()
		snap.LastAck = b.record.LastAck
		snap.LastFullUpdate = b.record.LastFullUpdate
		snap.NextWake = b.sched.next
		return nil
	})
	if err == nil {
		m.Status = snap.Status
		m.Host = snap.Host
		m.IP = snap.IP
		m.Broadcast = snap.Broadcast
		m.LastAck = snap.LastAck
		m.LastFullUpdate = snap.LastFullUpdate
		m.NextWake = snap.NextWake
	} else if state, ok := b.store.Get(ReadingState); ok {
		m.Status = Status(state)
	}

	return m
}

func (b *Bridge) stats() BridgeStats {
	return BridgeStats{
		NotificationsReceived: b.notificationsRx.Load(),
		AcksReceived:          b.acksRx.Load(),
		DiscoveriesReceived:   b.discoveriesRx.Load(),
		FramesDropped:         b.framesDropped.Load(),
		UnknownEvents:         b.unknownEvents.Load(),
		CommandsSent:          b.commandsSent.Load(),
		SendFailures:          b.sendFailures.Load(),
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning message if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
