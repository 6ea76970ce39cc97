// Package readings holds the mirrored state of the radio receiver as a set
// of named string readings.
//
// The Store is the single source of truth for "what the device looks like
// right now". Protocol handlers stage writes in a Batch so that every
// reading changed by one inbound datagram commits atomically and produces
// exactly one change notification. Values that do not change produce no
// notification at all, which keeps downstream consumers quiet while the
// poller re-reads an idle device.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                       Readings Store                       │
//	│                                                            │
//	│  Batch.Set ──▶ change detection ──▶ values map             │
//	│                      │                                     │
//	│                      ▼ (only when something changed)       │
//	│              notify queue ──▶ single worker ──▶ subscribers│
//	└────────────────────────────────────────────────────────────┘
//	                                           │
//	               ┌───────────────────────────┼─────────────────┐
//	               ▼                           ▼                 ▼
//	        MQTT state publish         reading_history      InfluxDB metrics
//	                                   (SQLite, uuid IDs)
//
// # Usage
//
//	store := readings.NewStore("radio-kitchen", names)
//	store.Subscribe(func(cs readings.ChangeSet) { publish(cs) })
//
//	batch := store.Begin(readings.SourceEvent)
//	batch.Set("power", "on")
//	batch.Set("volume", "12")
//	changed, err := batch.Commit() // one notification for both writes
//
// # Thread Safety
//
// All Store methods are safe for concurrent use. A Batch is not; each
// handler builds its own. Subscribers run sequentially on one notifier
// goroutine, so they observe change sets in commit order.
package readings
