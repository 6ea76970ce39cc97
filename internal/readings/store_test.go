package readings

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T, names ...string) *Store {
	t.Helper()

	if len(names) == 0 {
		names = []string{"power", "volume", "station"}
	}
	s := NewStore("radio-1", names)
	t.Cleanup(s.Close)
	return s
}

// waitChange receives one change set or fails the test.
func waitChange(t *testing.T, ch <-chan ChangeSet) ChangeSet {
	t.Helper()

	select {
	case cs := <-ch:
		return cs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
		return ChangeSet{}
	}
}

func TestStoreCommitNotifiesOnce(t *testing.T) {
	s := newTestStore(t)
	ch := make(chan ChangeSet, 8)
	s.Subscribe(func(cs ChangeSet) { ch <- cs })

	batch := s.Begin(SourceEvent)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set(power) error = %v", err)
	}
	if err := batch.Set("volume", "12"); err != nil {
		t.Fatalf("Set(volume) error = %v", err)
	}
	changed, err := batch.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("changed length = %d, want 2", len(changed))
	}

	cs := waitChange(t, ch)
	if cs.DeviceID != "radio-1" {
		t.Errorf("DeviceID = %q, want %q", cs.DeviceID, "radio-1")
	}
	if cs.Source != SourceEvent {
		t.Errorf("Source = %q, want %q", cs.Source, SourceEvent)
	}
	if len(cs.Changed) != 2 || cs.Changed["power"] != "on" || cs.Changed["volume"] != "12" {
		t.Errorf("Changed = %v, want power=on volume=12", cs.Changed)
	}
	if cs.Snapshot["power"] != "on" || cs.Snapshot["volume"] != "12" {
		t.Errorf("Snapshot = %v, want power=on volume=12", cs.Snapshot)
	}
	if cs.At.IsZero() {
		t.Error("At is zero, want commit time")
	}

	// A second commit arriving as the next notification proves the first
	// batch produced exactly one.
	batch = s.Begin(SourcePoll)
	if err := batch.Set("station", "BBC 6"); err != nil {
		t.Fatalf("Set(station) error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	cs = waitChange(t, ch)
	if len(cs.Changed) != 1 || cs.Changed["station"] != "BBC 6" {
		t.Errorf("second Changed = %v, want only station", cs.Changed)
	}
}

func TestStoreUnchangedValueDoesNotNotify(t *testing.T) {
	s := newTestStore(t)
	ch := make(chan ChangeSet, 8)
	s.Subscribe(func(cs ChangeSet) { ch <- cs })

	batch := s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	waitChange(t, ch)

	// Same value again: no change, no notification.
	batch = s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	changed, err := batch.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("changed = %v, want empty", changed)
	}

	batch = s.Begin(SourcePoll)
	if err := batch.Set("volume", "5"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	cs := waitChange(t, ch)
	if _, ok := cs.Changed["power"]; ok {
		t.Errorf("Changed contains power after a no-op write: %v", cs.Changed)
	}
	if cs.Changed["volume"] != "5" {
		t.Errorf("Changed = %v, want volume=5", cs.Changed)
	}
}

func TestStoreMixedBatchKeepsOnlyChanges(t *testing.T) {
	s := newTestStore(t)
	ch := make(chan ChangeSet, 8)
	s.Subscribe(func(cs ChangeSet) { ch <- cs })

	batch := s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	waitChange(t, ch)

	// power unchanged, volume new.
	batch = s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := batch.Set("volume", "7"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	changed, err := batch.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(changed) != 1 || changed["volume"] != "7" {
		t.Fatalf("changed = %v, want only volume=7", changed)
	}

	cs := waitChange(t, ch)
	if len(cs.Changed) != 1 {
		t.Errorf("Changed = %v, want only volume", cs.Changed)
	}
	if cs.Snapshot["power"] != "on" || cs.Snapshot["volume"] != "7" {
		t.Errorf("Snapshot = %v, want both readings present", cs.Snapshot)
	}
}

func TestStoreFirstWriteOfEmptyValueNotifies(t *testing.T) {
	s := newTestStore(t)
	ch := make(chan ChangeSet, 8)
	s.Subscribe(func(cs ChangeSet) { ch <- cs })

	batch := s.Begin(SourcePoll)
	if err := batch.Set("station", ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	changed, err := batch.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(changed) != 1 {
		t.Fatalf("changed length = %d, want 1", len(changed))
	}

	cs := waitChange(t, ch)
	if v, ok := cs.Changed["station"]; !ok || v != "" {
		t.Errorf("Changed = %v, want station present with empty value", cs.Changed)
	}
}

func TestStoreUpdateIfChanged(t *testing.T) {
	s := newTestStore(t)
	ch := make(chan ChangeSet, 8)
	s.Subscribe(func(cs ChangeSet) { ch <- cs })

	changed, err := s.UpdateIfChanged("power", "on", SourceCommand)
	if err != nil {
		t.Fatalf("UpdateIfChanged() error = %v", err)
	}
	if !changed {
		t.Fatal("UpdateIfChanged() = false for a first write, want true")
	}

	cs := waitChange(t, ch)
	if len(cs.Changed) != 1 || cs.Changed["power"] != "on" {
		t.Errorf("Changed = %v, want power=on", cs.Changed)
	}
	if cs.Source != SourceCommand {
		t.Errorf("Source = %q, want %q", cs.Source, SourceCommand)
	}

	// Writing the same value back is a no-op.
	changed, err = s.UpdateIfChanged("power", "on", SourceCommand)
	if err != nil {
		t.Fatalf("UpdateIfChanged() error = %v", err)
	}
	if changed {
		t.Error("UpdateIfChanged() = true for an unchanged value, want false")
	}

	changed, err = s.UpdateIfChanged("power", "off", SourceEvent)
	if err != nil {
		t.Fatalf("UpdateIfChanged() error = %v", err)
	}
	if !changed {
		t.Fatal("UpdateIfChanged() = false after a real change, want true")
	}

	cs = waitChange(t, ch)
	if cs.Changed["power"] != "off" {
		t.Errorf("Changed = %v, want power=off", cs.Changed)
	}
	if cs.Snapshot["power"] != "off" {
		t.Errorf("Snapshot = %v, want power=off", cs.Snapshot)
	}
}

func TestStoreUpdateIfChangedEmptyFirstWrite(t *testing.T) {
	s := newTestStore(t)

	// An unset reading and an empty reading are different states.
	changed, err := s.UpdateIfChanged("station", "", SourcePoll)
	if err != nil {
		t.Fatalf("UpdateIfChanged() error = %v", err)
	}
	if !changed {
		t.Error("UpdateIfChanged() = false for a first empty write, want true")
	}

	changed, err = s.UpdateIfChanged("station", "", SourcePoll)
	if err != nil {
		t.Fatalf("UpdateIfChanged() error = %v", err)
	}
	if changed {
		t.Error("UpdateIfChanged() = true writing empty over empty, want false")
	}
}

func TestStoreRejectsUnknownReading(t *testing.T) {
	s := newTestStore(t)

	batch := s.Begin(SourcePoll)
	if err := batch.Set("bogus", "x"); !errors.Is(err, ErrUnknownReading) {
		t.Errorf("Set(bogus) error = %v, want ErrUnknownReading", err)
	}
	if _, err := s.UpdateIfChanged("bogus", "x", SourcePoll); !errors.Is(err, ErrUnknownReading) {
		t.Errorf("UpdateIfChanged(bogus) error = %v, want ErrUnknownReading", err)
	}
	if s.IsDeclared("bogus") {
		t.Error("IsDeclared(bogus) = true, want false")
	}
}

func TestStoreBatchGetSeesStagedValue(t *testing.T) {
	s := newTestStore(t)

	batch := s.Begin(SourcePoll)
	if err := batch.Set("volume", "7"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	batch = s.Begin(SourcePoll)
	if err := batch.Set("volume", "9"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if v, ok := batch.Get("volume"); !ok || v != "9" {
		t.Errorf("Get(volume) = %q, %v, want staged value 9", v, ok)
	}
	if v, ok := s.Get("volume"); !ok || v != "7" {
		t.Errorf("store Get(volume) = %q, %v, want committed value 7", v, ok)
	}
	if _, ok := batch.Get("power"); ok {
		t.Error("Get(power) found a value, want absent")
	}
	if batch.Len() != 1 {
		t.Errorf("Len() = %d, want 1", batch.Len())
	}
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := newTestStore(t)

	batch := s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	snapshot := s.Snapshot()
	snapshot["power"] = "tampered"

	if v, _ := s.Get("power"); v != "on" {
		t.Errorf("Get(power) = %q after mutating snapshot, want on", v)
	}
}

func TestStoreSubscribersSeeCommitOrder(t *testing.T) {
	s := newTestStore(t)
	ch := make(chan ChangeSet, 8)
	s.Subscribe(func(cs ChangeSet) { ch <- cs })

	writes := []struct {
		name  string
		value string
	}{
		{name: "power", value: "on"},
		{name: "volume", value: "3"},
		{name: "station", value: "Radio Paradise"},
	}
	for _, w := range writes {
		batch := s.Begin(SourcePoll)
		if err := batch.Set(w.name, w.value); err != nil {
			t.Fatalf("Set(%s) error = %v", w.name, err)
		}
		if _, err := batch.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}

	for i, w := range writes {
		cs := waitChange(t, ch)
		if cs.Changed[w.name] != w.value {
			t.Errorf("notification %d Changed = %v, want %s=%s", i, cs.Changed, w.name, w.value)
		}
	}
}

func TestStoreClose(t *testing.T) {
	s := NewStore("radio-1", []string{"power"})

	batch := s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	s.Close()
	s.Close() // idempotent

	batch = s.Begin(SourcePoll)
	if err := batch.Set("power", "off"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Commit() after Close error = %v, want ErrStoreClosed", err)
	}
	if _, err := s.UpdateIfChanged("power", "off", SourcePoll); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("UpdateIfChanged() after Close error = %v, want ErrStoreClosed", err)
	}

	// Reads still work on the frozen values.
	if v, ok := s.Get("power"); !ok || v != "on" {
		t.Errorf("Get(power) after Close = %q, %v, want on", v, ok)
	}
}

func TestStoreDeclared(t *testing.T) {
	s := newTestStore(t, "volume", "power", "station")

	want := []string{"power", "station", "volume"}
	got := s.Declared()
	if len(got) != len(want) {
		t.Fatalf("Declared() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Declared()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if !s.IsDeclared("power") {
		t.Error("IsDeclared(power) = false, want true")
	}
	if s.DeviceID() != "radio-1" {
		t.Errorf("DeviceID() = %q, want radio-1", s.DeviceID())
	}
}

func TestStoreStats(t *testing.T) {
	s := newTestStore(t)

	batch := s.Begin(SourcePoll)
	if err := batch.Set("power", "on"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := batch.Set("volume", "4"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := batch.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if got := s.Stats().Readings; got != 2 {
		t.Errorf("Stats().Readings = %d, want 2", got)
	}

	// The notifier increments the sent counter after delivery.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Stats().NotificationsSent == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.Stats().NotificationsSent; got != 1 {
		t.Errorf("Stats().NotificationsSent = %d, want 1", got)
	}
	if got := s.Stats().NotificationsDropped; got != 0 {
		t.Errorf("Stats().NotificationsDropped = %d, want 0", got)
	}
}
