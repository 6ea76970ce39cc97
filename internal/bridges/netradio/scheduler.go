package netradio

import "time"

// deadPeerThreshold is how stale LastAck may grow before a reachable device
// is declared gone. Fixed rather than configurable so a long poll interval
// cannot quietly disable the check.
const deadPeerThreshold = 5 * time.Minute

// settingsWakeDelay is the near-immediate wake after a host or port change,
// long enough for the change to settle first.
const settingsWakeDelay = 100 * time.Millisecond

// pollScheduler owns the engine wake-up timer. The engine rearms it after
// every tick and whenever configuration or reachability moves the next
// wanted wake time.
//
// Not safe for concurrent use; the engine loop is its only caller.
type pollScheduler struct {
	timer *time.Timer
	next  time.Time
}

func newPollScheduler() *pollScheduler {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &pollScheduler{timer: t}
}

// C returns the tick channel.
func (p *pollScheduler) C() <-chan time.Time {
	return p.timer.C
}

// rearm schedules the next wake for now+d. Without force, a rearm that
// would wake later than the already pending wake is skipped, so an urgent
// wake is never postponed by a routine one.
func (p *pollScheduler) rearm(now time.Time, d time.Duration, force bool) {
	if d < 0 {
		d = 0
	}
	target := now.Add(d)

	if !force && !p.next.IsZero() && p.next.After(now) && !target.Before(p.next) {
		return
	}

	if !p.timer.Stop() {
		select {
		case <-p.timer.C:
		default:
		}
	}
	p.timer.Reset(d)
	p.next = target
}

// fired marks the pending wake consumed. Call after receiving from C.
func (p *pollScheduler) fired() {
	p.next = time.Time{}
}

// cancel stops the timer and discards any undelivered tick.
func (p *pollScheduler) cancel() {
	if !p.timer.Stop() {
		select {
		case <-p.timer.C:
		default:
		}
	}
	p.next = time.Time{}
}
