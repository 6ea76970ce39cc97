package readings

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// notifyQueueSize is the buffer between committing writers and the notifier
// worker. Overflow change sets are dropped and counted rather than blocking
// the protocol engine.
const notifyQueueSize = 64

// Change origin labels. Recorded with each change set and history entry.
const (
	SourcePoll      = "poll"
	SourceEvent     = "event"
	SourceCommand   = "command"
	SourceDiscovery = "discovery"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ChangeSet describes one committed batch of reading changes.
type ChangeSet struct {
	// DeviceID identifies the mirrored device.
	DeviceID string

	// Changed holds only the readings whose values actually changed.
	Changed map[string]string

	// Snapshot holds all current readings after the change was applied.
	Snapshot map[string]string

	// Source labels what caused the change (poll, event, command, discovery).
	Source string

	// At is the commit time (UTC).
	At time.Time
}

// StoreStats holds operational statistics for the store.
type StoreStats struct {
	Readings             int
	NotificationsSent    uint64
	NotificationsDropped uint64
}

// Store caches the current value of every declared reading and notifies
// subscribers when values change.
//
// Thread Safety: all methods are safe for concurrent use. Subscribers are
// invoked sequentially on a single notifier goroutine in commit order.
type Store struct {
	deviceID string

	// declared is immutable after NewStore; reads need no lock.
	declared map[string]struct{}

	mu     sync.RWMutex
	values map[string]string
	closed bool

	subsMu      sync.RWMutex
	subscribers []func(ChangeSet)

	notifyQueue chan ChangeSet
	done        chan struct{}
	wg          sync.WaitGroup

	// Statistics (atomic for performance)
	notificationsSent    atomic.Uint64
	notificationsDropped atomic.Uint64

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// NewStore creates a store for the given device with the declared reading
// names and starts its notifier goroutine.
func NewStore(deviceID string, declared []string) *Store {
	s := &Store{
		deviceID:    deviceID,
		declared:    make(map[string]struct{}, len(declared)),
		values:      make(map[string]string, len(declared)),
		notifyQueue: make(chan ChangeSet, notifyQueueSize),
		done:        make(chan struct{}),
	}
	for _, name := range declared {
		s.declared[name] = struct{}{}
	}

	s.wg.Add(1)
	go s.notifyWorker()

	return s
}

// Batch stages reading writes so that every reading changed by one inbound
// message commits as a single change notification.
//
// A Batch is not safe for concurrent use; each handler builds its own.
type Batch struct {
	store  *Store
	source string
	staged map[string]string
}

// Begin starts a batch of writes attributed to the given source.
func (s *Store) Begin(source string) *Batch {
	return &Batch{
		store:  s,
		source: source,
		staged: make(map[string]string),
	}
}

// Set stages a value for a declared reading. The store is not modified
// until Commit.
func (b *Batch) Set(name, value string) error {
	if _, ok := b.store.declared[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReading, name)
	}
	b.staged[name] = value
	return nil
}

// Get returns the staged value when the batch has one, otherwise the
// committed value. Handlers that derive one reading from others read
// through this so they see their own staged writes.
func (b *Batch) Get(name string) (string, bool) {
	if v, ok := b.staged[name]; ok {
		return v, true
	}
	return b.store.Get(name)
}

// Len returns the number of staged writes.
func (b *Batch) Len() int {
	return len(b.staged)
}

// Commit applies the staged writes and returns the readings that actually
// changed. Unchanged values are discarded. When at least one value changed,
// one ChangeSet is queued for the subscribers.
func (b *Batch) Commit() (map[string]string, error) {
	s := b.store

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}

	changed := make(map[string]string)
	for name, value := range b.staged {
		if cur, ok := s.values[name]; ok && cur == value {
			continue
		}
		s.values[name] = value
		changed[name] = value
	}

	if len(changed) == 0 {
		s.mu.Unlock()
		return changed, nil
	}

	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.Unlock()

	s.enqueue(ChangeSet{
		DeviceID: s.deviceID,
		Changed:  changed,
		Snapshot: snapshot,
		Source:   b.source,
		At:       time.Now().UTC(),
	})

	return changed, nil
}

// UpdateIfChanged commits a single reading immediately, bypassing batch
// staging. It reports whether the value actually changed; a write of the
// current value is discarded without notifying subscribers. A first write
// always counts as a change, even of the empty string.
func (s *Store) UpdateIfChanged(name, value, source string) (bool, error) {
	if _, ok := s.declared[name]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownReading, name)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrStoreClosed
	}
	if cur, ok := s.values[name]; ok && cur == value {
		s.mu.Unlock()
		return false, nil
	}
	s.values[name] = value

	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.Unlock()

	s.enqueue(ChangeSet{
		DeviceID: s.deviceID,
		Changed:  map[string]string{name: value},
		Snapshot: snapshot,
		Source:   source,
		At:       time.Now().UTC(),
	})

	return true, nil
}

// Get returns the committed value of a reading.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Snapshot returns a copy of all committed readings.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot
}

// DeviceID returns the device this store mirrors.
func (s *Store) DeviceID() string {
	return s.deviceID
}

// IsDeclared reports whether name was declared when the store was created.
func (s *Store) IsDeclared(name string) bool {
	_, ok := s.declared[name]
	return ok
}

// Declared returns the declared reading names in sorted order.
func (s *Store) Declared() []string {
	names := make([]string, 0, len(s.declared))
	for name := range s.declared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers fn for committed change sets. Subscribers run
// sequentially on the notifier goroutine; a slow subscriber delays the
// ones after it, never the protocol engine.
func (s *Store) Subscribe(fn func(ChangeSet)) {
	s.subsMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subsMu.Unlock()
}

// Stats returns current operational statistics.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	readings := len(s.values)
	s.mu.RUnlock()

	return StoreStats{
		Readings:             readings,
		NotificationsSent:    s.notificationsSent.Load(),
		NotificationsDropped: s.notificationsDropped.Load(),
	}
}

// Close stops the notifier goroutine. Queued notifications are discarded
// and later commits fail with ErrStoreClosed. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// enqueue hands a change set to the notifier without blocking the caller.
func (s *Store) enqueue(cs ChangeSet) {
	select {
	case s.notifyQueue <- cs:
	default:
		s.notificationsDropped.Add(1)
		s.logWarn("notification queue full, dropping change set", "changed", len(cs.Changed))
	}
}

// notifyWorker delivers change sets to subscribers. A single worker keeps
// delivery in commit order.
func (s *Store) notifyWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			s.drainNotifyQueue()
			return
		case cs := <-s.notifyQueue:
			s.deliver(cs)
		}
	}
}

// deliver invokes every subscriber with the change set.
// Panics in subscribers are recovered and logged.
func (s *Store) deliver(cs ChangeSet) {
	s.subsMu.RLock()
	subs := make([]func(ChangeSet), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subsMu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logError("subscriber panic", "panic", fmt.Sprintf("%v", r))
				}
			}()
			fn(cs)
		}()
	}

	s.notificationsSent.Add(1)
}

// drainNotifyQueue discards queued change sets during shutdown.
func (s *Store) drainNotifyQueue() {
	for {
		select {
		case <-s.notifyQueue:
		default:
			return
		}
	}
}

// SetLogger sets the logger for this store.
func (s *Store) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// logWarn logs a warning message if logger is set.
func (s *Store) logWarn(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (s *Store) logError(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
