package reserve

import (
	"context"
	"log"
	"strings"

	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/notify"
	"laundry-reservation-backend/internal/schedule"
)

// completionTimeLayout matches the reference notification format, e.g. "3:04 PM".
const completionTimeLayout = "3:04 PM"

// fireEntry is the scheduler callback. The entry is already removed from the
// pending table; the verify-and-send runs on a pool worker so a slow SMTP
// round trip never stalls other timers.
func (e *Engine) fireEntry(entry schedule.Entry) {
	e.pool.Submit(func() { e.deliver(entry) })
}

// deliver re-reads current machine state, verifies the notification is still
// wanted, sends it, and marks the subscriber notified. Any failed check is a
// silent skip: the reservation ended, changed hands, or the user already got
// their warning.
func (e *Engine) deliver(entry schedule.Entry) {
	ctx := context.Background()

	mu := e.locks.get(entry.MachineID)
	mu.Lock()
	m, err := e.store.Get(ctx, entry.MachineID)
	if err != nil {
		mu.Unlock()
		log.Printf("Error re-reading machine %d for %s notification: %v", entry.MachineID, entry.Kind, err)
		return
	}

	if !e.stillWanted(m, entry) {
		mu.Unlock()
		log.Printf("Not sending %s email to %s for machine %d - state changed since scheduling", entry.Kind, entry.Email, entry.MachineID)
		return
	}

	machineName := m.Name
	completion := m.EndTime.In(e.loc).Format(completionTimeLayout)
	mu.Unlock()

	kind := notify.KindAlmostDone
	if entry.Kind == schedule.KindAlmostAvailable {
		kind = notify.KindAlmostAvailable
	}
	err = e.notifier.Send(entry.Email, kind, notify.Data{
		MachineName:    machineName,
		CompletionTime: completion,
	})
	if err != nil {
		// Delivery is at-most-one-attempt; failures are terminal.
		log.Printf("Error sending %s email to %s: %v", entry.Kind, entry.Email, err)
		return
	}
	log.Printf("%s email sent to %s for machine %s", entry.Kind, entry.Email, machineName)

	e.markNotified(ctx, entry)
}

// stillWanted applies the per-kind validity checks from the fire procedure.
// Callers hold the machine lock.
func (e *Engine) stillWanted(m *model.Machine, entry schedule.Entry) bool {
	if !m.InUse || m.EndTime == nil {
		return false
	}
	sub := m.FindSubscriber(entry.Email)
	if sub == nil || sub.Notified {
		return false
	}
	switch entry.Kind {
	case schedule.KindAlmostDone:
		// Still the same user's reservation.
		return strings.EqualFold(m.CurrentUserEmail, entry.Email)
	case schedule.KindAlmostAvailable:
		// Still the same reservation epoch: a restart changes endTime and
		// invalidates entries scheduled against the old one.
		return m.EndTime.Equal(entry.EpochEnd)
	}
	return false
}

// markNotified flips the subscriber's notified flag so the warning never
// repeats within a reservation epoch. An unsubscribe racing the send leaves
// nothing to mark, which is fine. The flag belongs to the epoch the entry was
// scheduled against: if the reservation expired and the same email re-entered
// during the unlocked send, the fresh epoch's flag must stay unset.
func (e *Engine) markNotified(ctx context.Context, entry schedule.Entry) {
	mu := e.locks.get(entry.MachineID)
	mu.Lock()
	defer mu.Unlock()

	m, err := e.store.Get(ctx, entry.MachineID)
	if err != nil {
		log.Printf("Error re-reading machine %d to mark %s notified: %v", entry.MachineID, entry.Email, err)
		return
	}
	if m.EndTime == nil || !m.EndTime.Equal(entry.EpochEnd) {
		return
	}
	sub := m.FindSubscriber(entry.Email)
	if sub == nil || sub.Notified {
		return
	}
	sub.Notified = true
	if err := e.store.Save(ctx, m); err != nil {
		log.Printf("Error marking %s notified for machine %d: %v", entry.Email, entry.MachineID, err)
	}
}

// SendTestEmail delivers the test template immediately, bypassing the
// scheduler.
func (e *Engine) SendTestEmail(email string) error {
	return e.notifier.Send(normalizeEmail(email), notify.KindTest, notify.Data{
		SentTime: e.now().In(e.loc).Format(completionTimeLayout),
	})
}
