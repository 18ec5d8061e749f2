// Package status derives a display-ready machine status from stored state
// plus the current time. Stored inUse can lag wall-clock expiry until the
// next cleanup pass, so the projection never trusts it directly.
package status

import (
	"fmt"
	"time"

	"laundry-reservation-backend/internal/model"
)

// State is the projected availability of a machine.
type State string

const (
	StateAvailable State = "available"
	StateInUse     State = "inUse"
)

// Projection is the read-side view of one machine.
type Projection struct {
	State            State  `json:"status"`
	RemainingSeconds int    `json:"remainingSeconds"`
	LastUsed         string `json:"lastUsed,omitempty"`
}

// Project derives the status of m at the given instant.
func Project(m *model.Machine, now time.Time) Projection {
	if m.InUse && m.EndTime != nil && m.EndTime.After(now) {
		return Projection{
			State:            StateInUse,
			RemainingSeconds: int(m.EndTime.Sub(now).Seconds()),
		}
	}

	// The record may still say inUse with a past endTime; that reservation
	// is over, its endTime is the effective last use.
	lastEnd := m.LastEndTime
	if m.InUse && m.EndTime != nil {
		lastEnd = m.EndTime
	}
	return Projection{
		State:    StateAvailable,
		LastUsed: describeLastUsed(lastEnd, now),
	}
}

func describeLastUsed(lastEnd *time.Time, now time.Time) string {
	if lastEnd == nil || lastEnd.After(now) {
		return ""
	}
	elapsed := now.Sub(*lastEnd)
	switch {
	case elapsed < time.Minute:
		return "last used just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("last used %d minutes ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("last used %d hours ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("last used %d days ago", int(elapsed.Hours()/24))
	}
}
