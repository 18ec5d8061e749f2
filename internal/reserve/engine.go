// Package reserve implements the machine reservation lifecycle: starting a
// timed reservation, managing the notify list, expiring finished
// reservations, and scheduling the deferred warning emails.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/notify"
	"laundry-reservation-backend/internal/schedule"
	"laundry-reservation-backend/internal/store"
)

var (
	// ErrInvalidDuration is returned when a requested duration is outside
	// the configured bounds.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrConflict is returned when starting a machine that is already in use.
	ErrConflict = errors.New("machine is already in use")
	// ErrNotInUse is returned when subscribing to an idle machine.
	ErrNotInUse = errors.New("machine is not in use")
)

// Options configures an Engine.
type Options struct {
	// Lead is how long before a reservation's end the warning fires.
	Lead time.Duration
	// MinMinutes and MaxMinutes bound the accepted reservation duration.
	MinMinutes int
	MaxMinutes int
	// Location is the timezone used to format completion times in emails.
	Location *time.Location
}

// Engine validates and performs reservation state transitions, and owns the
// notification scheduler for the process.
type Engine struct {
	store    store.Store
	notifier notify.Notifier
	pool     *notify.Pool
	sched    *schedule.Scheduler
	locks    *machineLocks

	lead       time.Duration
	minMinutes int
	maxMinutes int
	loc        *time.Location

	now func() time.Time
}

// NewEngine creates an engine and its scheduler. The scheduler's fire
// callback re-reads store state through this engine before any send.
func NewEngine(s store.Store, notifier notify.Notifier, pool *notify.Pool, opts Options) *Engine {
	if opts.Lead <= 0 {
		opts.Lead = 5 * time.Minute
	}
	if opts.MinMinutes <= 0 {
		opts.MinMinutes = 5
	}
	if opts.MaxMinutes <= 0 {
		opts.MaxMinutes = 90
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	e := &Engine{
		store:      s,
		notifier:   notifier,
		pool:       pool,
		locks:      newMachineLocks(),
		lead:       opts.Lead,
		minMinutes: opts.MinMinutes,
		maxMinutes: opts.MaxMinutes,
		loc:        opts.Location,
		now:        time.Now,
	}
	e.sched = schedule.New(e.fireEntry)
	return e
}

// Scheduler exposes the engine's pending-notification table.
func (e *Engine) Scheduler() *schedule.Scheduler {
	return e.sched
}

// Close tears down the scheduler. Pending entries are dropped; scheduling
// state does not survive a restart.
func (e *Engine) Close() {
	e.sched.Stop()
}

// Start begins a reservation of durationMinutes on the machine. When email is
// set and the duration leaves room for it, a warning is scheduled for five
// minutes before the end.
func (e *Engine) Start(ctx context.Context, machineID int64, durationMinutes int, email string) (*model.Machine, error) {
	if durationMinutes < e.minMinutes || durationMinutes > e.maxMinutes {
		return nil, fmt.Errorf("%w: must be between %d and %d minutes", ErrInvalidDuration, e.minMinutes, e.maxMinutes)
	}
	email = normalizeEmail(email)

	mu := e.locks.get(machineID)
	mu.Lock()
	defer mu.Unlock()

	m, err := e.store.Get(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if m.InUse {
		return nil, ErrConflict
	}

	now := e.now()
	end := now.Add(time.Duration(durationMinutes) * time.Minute)
	m.InUse = true
	m.StartTime = &now
	m.EndTime = &end
	m.CurrentUserEmail = email
	m.NotifyUsers = nil
	if email != "" {
		m.NotifyUsers = []model.Subscriber{{MachineID: machineID, Email: email}}
	}

	if err := e.store.Save(ctx, m); err != nil {
		return nil, err
	}

	// A new reservation is a new epoch; pending timers from the previous
	// one must not outlive it.
	e.sched.CancelMachine(machineID)
	if email != "" && time.Duration(durationMinutes)*time.Minute > e.lead {
		e.sched.Schedule(schedule.Entry{
			MachineID: machineID,
			Email:     email,
			Kind:      schedule.KindAlmostDone,
			FireAt:    end.Add(-e.lead),
			EpochEnd:  end,
		})
		log.Printf("Timer set: %s warning for %s on machine %d in %d minutes", schedule.KindAlmostDone, email, machineID, durationMinutes-int(e.lead.Minutes()))
	}
	return m, nil
}

// Subscribe adds email to the machine's notify list. Subscribing twice is a
// no-op. When fewer than five minutes remain no warning is scheduled; the
// subscription itself still succeeds.
func (e *Engine) Subscribe(ctx context.Context, machineID int64, email string) error {
	email = normalizeEmail(email)

	mu := e.locks.get(machineID)
	mu.Lock()
	defer mu.Unlock()

	m, err := e.store.Get(ctx, machineID)
	if err != nil {
		return err
	}
	if !m.InUse || m.EndTime == nil {
		return ErrNotInUse
	}
	if m.Subscribed(email) {
		return nil
	}

	m.NotifyUsers = append(m.NotifyUsers, model.Subscriber{MachineID: machineID, Email: email})
	if err := e.store.Save(ctx, m); err != nil {
		return err
	}

	end := *m.EndTime
	notifyAt := end.Add(-e.lead)
	if notifyAt.After(e.now()) {
		e.sched.Schedule(schedule.Entry{
			MachineID: machineID,
			Email:     email,
			Kind:      schedule.KindAlmostAvailable,
			FireAt:    notifyAt,
			EpochEnd:  end,
		})
		log.Printf("Notification scheduled for %s on machine %d at %s", email, machineID, notifyAt.Format(time.RFC3339))
	}
	return nil
}

// Unsubscribe cancels any pending warning for (machine, email) and removes
// the email from the notify list. It succeeds whether or not the email was
// subscribed.
func (e *Engine) Unsubscribe(ctx context.Context, machineID int64, email string) error {
	email = normalizeEmail(email)

	// Cancel before touching the store so a timer firing mid-call sees the
	// removal or skips on the re-read; either way nothing sends twice.
	e.sched.Cancel(machineID, email)

	mu := e.locks.get(machineID)
	mu.Lock()
	defer mu.Unlock()

	m, err := e.store.Get(ctx, machineID)
	if err != nil {
		return err
	}
	if m.RemoveSubscriber(email) {
		if err := e.store.Save(ctx, m); err != nil {
			return err
		}
		log.Printf("User %s unsubscribed from machine %d", email, machineID)
	}
	return nil
}

// Get returns a single machine record.
func (e *Engine) Get(ctx context.Context, machineID int64) (*model.Machine, error) {
	return e.store.Get(ctx, machineID)
}

// List returns all machines after running the cleanup pass, which closes out
// reservations whose end time has passed.
func (e *Engine) List(ctx context.Context) ([]model.Machine, error) {
	machines, err := e.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for i := range machines {
		if !expired(&machines[i], now) {
			continue
		}
		updated, err := e.expireMachine(ctx, machines[i].ID)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			machines[i] = *updated
		}
	}
	return machines, nil
}

// CleanupExpired runs one cleanup pass over all machines and reports how many
// reservations it closed out.
func (e *Engine) CleanupExpired(ctx context.Context) (int, error) {
	machines, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	now := e.now()
	for i := range machines {
		if !expired(&machines[i], now) {
			continue
		}
		updated, err := e.expireMachine(ctx, machines[i].ID)
		if err != nil {
			return closed, err
		}
		if updated != nil && !updated.InUse {
			closed++
		}
	}
	return closed, nil
}

// expireMachine re-checks and closes out one expired reservation under the
// machine's lock. The reservation's end time becomes lastEndTime; the user
// and notify list are cleared together.
func (e *Engine) expireMachine(ctx context.Context, machineID int64) (*model.Machine, error) {
	mu := e.locks.get(machineID)
	mu.Lock()
	defer mu.Unlock()

	m, err := e.store.Get(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if !expired(m, e.now()) {
		// Lost the race to a concurrent restart or cleanup; nothing to do.
		return m, nil
	}

	m.LastEndTime = m.EndTime
	m.InUse = false
	m.StartTime = nil
	m.EndTime = nil
	m.CurrentUserEmail = ""
	m.NotifyUsers = nil

	if err := e.store.Save(ctx, m); err != nil {
		return nil, err
	}
	e.sched.CancelMachine(machineID)
	log.Printf("Machine %d reservation expired and was cleaned up", machineID)
	return m, nil
}

func expired(m *model.Machine, now time.Time) bool {
	return m.InUse && m.EndTime != nil && !m.EndTime.After(now)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
