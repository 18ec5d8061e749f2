package reserve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-reservation-backend/internal/notify"
	"laundry-reservation-backend/internal/schedule"
)

func TestDeliverAlmostDone(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Washer 1", 30)

	m, err := e.Start(ctx, id, 30, "owner@b.com")
	require.NoError(t, err)

	entry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)
	e.deliver(entry)

	sent := fake.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@b.com", sent[0].to)
	assert.Equal(t, notify.KindAlmostDone, sent[0].kind)
	assert.Equal(t, "Washer 1", sent[0].data.MachineName)
	assert.Equal(t, m.EndTime.UTC().Format("3:04 PM"), sent[0].data.CompletionTime)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.NotifyUsers, 1)
	assert.True(t, got.NotifyUsers[0].Notified, "a successful send must be recorded")
}

func TestDeliverSkipsWhenAlreadyNotified(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Washer 1", 30)

	_, err := e.Start(ctx, id, 30, "owner@b.com")
	require.NoError(t, err)

	entry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)

	e.deliver(entry)
	e.deliver(entry)

	assert.Len(t, fake.all(), 1, "the warning must never repeat within an epoch")
}

func TestDeliverSkipsAfterUnsubscribe(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Dryer 1", 60)

	_, err := e.Start(ctx, id, 60, "owner@b.com")
	require.NoError(t, err)
	require.NoError(t, e.Subscribe(ctx, id, "waiter@b.com"))

	entry, ok := e.sched.Pending(id, "waiter@b.com")
	require.True(t, ok)

	require.NoError(t, e.Unsubscribe(ctx, id, "waiter@b.com"))

	// The fire raced the unsubscribe and already passed its remove step;
	// the re-read must stop it.
	e.deliver(entry)
	assert.Empty(t, fake.all())
}

func TestDeliverAlmostAvailableSkipsStaleEpoch(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Dryer 1", 60)

	_, err := e.Start(ctx, id, 60, "owner@b.com")
	require.NoError(t, err)
	require.NoError(t, e.Subscribe(ctx, id, "waiter@b.com"))

	entry, ok := e.sched.Pending(id, "waiter@b.com")
	require.True(t, ok)

	// Forge an entry carrying a different epoch's end time: a restart
	// changed endTime after this notification was scheduled.
	stale := schedule.Entry{
		MachineID: entry.MachineID,
		Email:     entry.Email,
		Kind:      entry.Kind,
		FireAt:    entry.FireAt,
		EpochEnd:  entry.EpochEnd.Add(-10 * time.Minute),
	}
	e.deliver(stale)
	assert.Empty(t, fake.all())

	// The real epoch's entry still goes through.
	e.deliver(entry)
	sent := fake.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindAlmostAvailable, sent[0].kind)
}

func TestDeliverAlmostDoneSkipsChangedOwner(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Washer 1", 30)

	_, err := e.Start(ctx, id, 30, "owner@b.com")
	require.NoError(t, err)

	entry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)

	stale := schedule.Entry{
		MachineID: entry.MachineID,
		Email:     "previous@b.com",
		Kind:      schedule.KindAlmostDone,
		FireAt:    entry.FireAt,
		EpochEnd:  entry.EpochEnd,
	}
	e.deliver(stale)
	assert.Empty(t, fake.all())
}

func TestDeliverFailureLeavesNotifiedUnset(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Washer 1", 30)

	_, err := e.Start(ctx, id, 30, "owner@b.com")
	require.NoError(t, err)

	entry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)

	fake.err = errors.New("smtp unavailable")
	e.deliver(entry)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.NotifyUsers, 1)
	assert.False(t, got.NotifyUsers[0].Notified, "a failed send is not a delivery")
}

func TestMarkNotifiedSkipsFreshEpoch(t *testing.T) {
	e, _, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Washer 1", 30)

	base := time.Now()
	e.now = func() time.Time { return base }
	_, err := e.Start(ctx, id, 10, "owner@b.com")
	require.NoError(t, err)

	staleEntry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)

	// The reservation runs out and the same user starts a new one while the
	// stale entry's send is still in flight.
	e.now = func() time.Time { return base.Add(10 * time.Minute) }
	_, err = e.List(ctx)
	require.NoError(t, err)
	_, err = e.Start(ctx, id, 30, "owner@b.com")
	require.NoError(t, err)

	e.markNotified(ctx, staleEntry)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.NotifyUsers, 1)
	assert.False(t, got.NotifyUsers[0].Notified, "a stale send must not consume the new reservation's warning")

	// The current epoch's entry still marks its own flag.
	freshEntry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)
	e.markNotified(ctx, freshEntry)

	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.NotifyUsers, 1)
	assert.True(t, got.NotifyUsers[0].Notified)
}

func TestScheduledFireRunsThroughPool(t *testing.T) {
	e, fake, s := newTestEngine(t)
	ctx := context.Background()
	id := seedMachine(t, s, "Washer 1", 30)

	_, err := e.Start(ctx, id, 30, "owner@b.com")
	require.NoError(t, err)

	// Reschedule the pending warning to fire immediately and let the full
	// timer -> pool -> deliver path run.
	entry, ok := e.sched.Pending(id, "owner@b.com")
	require.True(t, ok)
	entry.FireAt = time.Now()
	e.sched.Schedule(entry)

	require.Eventually(t, func() bool {
		return len(fake.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, e.sched.Len(), "a fired entry is consumed")
}
