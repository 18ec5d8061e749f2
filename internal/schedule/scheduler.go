// Package schedule owns the table of pending deferred notifications. Entries
// are keyed by (machine, email); at most one entry exists per key, and a fire
// removes the entry before the callback runs, so a callback executes at most
// once per scheduled entry no matter how cancels and fires interleave.
package schedule

import (
	"log"
	"sync"
	"time"
)

// Kind identifies which notification a pending entry will send.
type Kind string

const (
	// KindAlmostDone is sent to the reservation's current user shortly
	// before their cycle completes.
	KindAlmostDone Kind = "almostDone"
	// KindAlmostAvailable is sent to a waiting subscriber shortly before
	// the machine frees up.
	KindAlmostAvailable Kind = "almostAvailable"
)

// Entry describes one pending deferred notification.
type Entry struct {
	MachineID int64
	Email     string
	Kind      Kind
	FireAt    time.Time
	// EpochEnd is the reservation's endTime at scheduling time. The fire
	// callback compares it against the machine's current endTime so an
	// entry from a superseded reservation never sends.
	EpochEnd time.Time
}

type key struct {
	machineID int64
	email     string
}

type pending struct {
	entry Entry
	timer *time.Timer
}

// Scheduler holds pending notifications and fires them through the run
// callback at or after their fire time. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	entries map[key]*pending
	run     func(Entry)
	stopped bool
}

// New creates a scheduler that invokes run for every entry that fires. The
// callback is responsible for re-checking current state before sending.
func New(run func(Entry)) *Scheduler {
	return &Scheduler{
		entries: make(map[key]*pending),
		run:     run,
	}
}

// Schedule inserts a pending entry for (e.MachineID, e.Email), replacing any
// existing entry at that key. Replacement is how a restarted reservation or a
// re-subscribe supersedes a stale timer.
func (s *Scheduler) Schedule(e Entry) {
	k := key{machineID: e.MachineID, email: e.Email}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.entries[k]; ok {
		old.timer.Stop()
		delete(s.entries, k)
		log.Printf("schedule: replaced pending %s notification for %s on machine %d", old.entry.Kind, e.Email, e.MachineID)
	}

	p := &pending{entry: e}
	p.timer = time.AfterFunc(time.Until(e.FireAt), func() { s.fire(k, p) })
	s.entries[k] = p
}

// Cancel removes the pending entry for (machineID, email) if one exists. A
// fire already past its remove step is unaffected; its callback still runs
// and decides to skip from current state.
func (s *Scheduler) Cancel(machineID int64, email string) {
	k := key{machineID: machineID, email: email}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.entries[k]; ok {
		p.timer.Stop()
		delete(s.entries, k)
		log.Printf("schedule: cancelled pending %s notification for %s on machine %d", p.entry.Kind, email, machineID)
	}
}

// CancelMachine removes every pending entry for the given machine. Called
// when a reservation epoch ends (restart or cleanup) so stale timers do not
// linger until their fire time.
func (s *Scheduler) CancelMachine(machineID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.entries {
		if k.machineID == machineID {
			p.timer.Stop()
			delete(s.entries, k)
		}
	}
}

// fire is the timer callback: remove the entry first, then run it. Each timer
// carries the pending record it was armed for; if the key now holds a
// different record the entry was cancelled or replaced after this timer
// expired, and the replacement's own timer owns it, so nothing runs here.
func (s *Scheduler) fire(k key, p *pending) {
	s.mu.Lock()
	current, ok := s.entries[k]
	if ok && current == p {
		delete(s.entries, k)
	}
	stopped := s.stopped
	s.mu.Unlock()

	if !ok || current != p || stopped {
		return
	}
	s.run(p.entry)
}

// Pending returns the entry scheduled for (machineID, email), if any.
func (s *Scheduler) Pending(machineID int64, email string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[key{machineID: machineID, email: email}]
	if !ok {
		return Entry{}, false
	}
	return p.entry, true
}

// Len reports the number of pending entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels all pending entries and refuses further scheduling. Pending
// state is process-local and not recovered after a restart.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, p := range s.entries {
		p.timer.Stop()
		delete(s.entries, k)
	}
}
