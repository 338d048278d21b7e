// internal/lobby/countdown.go
package lobby

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// timerKind tags the lobby's single countdown slot. Exactly one kind is
// active per lobby at any instant; starting one cancels the other.
type timerKind int

const (
	questionTimer timerKind = iota + 1
	autoAdvanceTimer
)

// Timing holds the countdown constants. Question durations come from a
// fixed per-difficulty table looked up against the current question; the
// auto-advance window is fixed.
type Timing struct {
	EasySec        int
	MediumSec      int
	HardSec        int
	DefaultSec     int
	AutoAdvanceSec int
	Tick           time.Duration
}

// DefaultTiming returns the production table.
func DefaultTiming() Timing {
	return Timing{
		EasySec:        15,
		MediumSec:      10,
		HardSec:        5,
		DefaultSec:     15,
		AutoAdvanceSec: 5,
		Tick:           time.Second,
	}
}

// questionSeconds maps a question difficulty to its countdown duration.
// Unknown or empty difficulties (mixed-difficulty games) use the default.
func (t Timing) questionSeconds(difficulty string) int {
	switch difficulty {
	case "easy":
		return t.EasySec
	case "medium":
		return t.MediumSec
	case "hard":
		return t.HardSec
	default:
		return t.DefaultSec
	}
}

// countdown is one running per-second countdown owned by a lobby. The stop
// channel cancels it; the identity of the struct doubles as the stale-timer
// guard, since a tick may fire concurrently with a replacement. The clock
// timer is armed and re-armed only under the lobby lock, so cancellation
// removes it from the clock synchronously.
type countdown struct {
	kind      timerKind
	remaining int
	stop      chan struct{}
	timer     clockwork.Timer
}

// startCountdownLocked replaces any running countdown on l with a fresh one
// of the given kind. Caller holds l.Mu.
func (m *Manager) startCountdownLocked(l *Lobby, kind timerKind, seconds int) {
	m.cancelCountdownLocked(l)
	cd := &countdown{
		kind:      kind,
		remaining: seconds,
		stop:      make(chan struct{}),
		timer:     m.clock.NewTimer(m.Timing.Tick),
	}
	l.timer = cd
	go m.runCountdown(l, cd)
}

// cancelCountdownLocked stops whichever countdown is running, if any.
// Safe to call when none is: an explicit host advance cancels the
// auto-advance window even when the question timer is the one live.
// Caller holds l.Mu.
func (m *Manager) cancelCountdownLocked(l *Lobby) {
	if l.timer != nil {
		stopAndDrainTimer(l.timer.timer)
		close(l.timer.stop)
		l.timer = nil
	}
}

// runCountdown drives one countdown to completion or cancellation.
func (m *Manager) runCountdown(l *Lobby, cd *countdown) {
	for {
		select {
		case <-cd.stop:
			return
		case <-cd.timer.Chan():
			if !m.tick(l, cd) {
				return
			}
		}
	}
}

// tick handles a single one-second tick: broadcast the remaining time and,
// at zero, run the countdown's completion action under the lobby lock.
// Returns false when the countdown is finished or no longer current.
func (m *Manager) tick(l *Lobby, cd *countdown) bool {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.timer != cd {
		// Replaced or canceled between the timer firing and lock acquisition.
		return false
	}

	cd.remaining--
	event := "timerUpdate"
	if cd.kind == autoAdvanceTimer {
		event = "autoAdvanceUpdate"
	}
	l.broadcastUnsafe(map[string]interface{}{
		"type":     event,
		"timeLeft": cd.remaining,
	})

	if cd.remaining > 0 {
		cd.timer.Reset(m.Timing.Tick)
		return true
	}

	switch cd.kind {
	case questionTimer:
		m.questionTimedOutLocked(l)
	case autoAdvanceTimer:
		m.advanceLocked(l)
	}
	return false
}

// stopAndDrainTimer stops a timer and drains its channel if it already
// fired, so the goroutine that raced it cannot leak a buffered tick.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
