package model

import (
	"strings"
	"time"
)

// Machine represents one physical laundry machine slot.
type Machine struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"size:128;not null" json:"name"`
	InUse            bool       `gorm:"index;not null" json:"inUse"`
	StartTime        *time.Time `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
	LastEndTime      *time.Time `json:"lastEndTime"`
	DefaultTime      int        `gorm:"not null" json:"defaultTime"`
	CurrentUserEmail string     `gorm:"size:256" json:"currentUserEmail,omitempty"`
	Version          int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt        time.Time  `json:"-"`
	UpdatedAt        time.Time  `json:"-"`

	// Associations
	NotifyUsers []Subscriber `gorm:"foreignKey:MachineID" json:"notifyUsers"`
}

// Subscriber is one entry of a machine's notify list. Notified flags whether
// the 5-minute warning already fired for this email in the current reservation.
type Subscriber struct {
	ID        int64     `gorm:"autoIncrement;primaryKey" json:"-"`
	MachineID int64     `gorm:"index:idx_subscriber_machine_email,unique;not null" json:"-"`
	Email     string    `gorm:"index:idx_subscriber_machine_email,unique;size:256;not null" json:"email"`
	Notified  bool      `gorm:"not null" json:"notified"`
	CreatedAt time.Time `json:"-"`
}

// Subscribed reports whether email is on the notify list. Emails are stored
// lower-cased, so the comparison is case-insensitive.
func (m *Machine) Subscribed(email string) bool {
	return m.FindSubscriber(email) != nil
}

// FindSubscriber returns the notify-list entry for email, or nil.
func (m *Machine) FindSubscriber(email string) *Subscriber {
	email = strings.ToLower(email)
	for i := range m.NotifyUsers {
		if m.NotifyUsers[i].Email == email {
			return &m.NotifyUsers[i]
		}
	}
	return nil
}

// RemoveSubscriber drops email from the notify list and reports whether an
// entry was removed.
func (m *Machine) RemoveSubscriber(email string) bool {
	email = strings.ToLower(email)
	kept := m.NotifyUsers[:0]
	removed := false
	for _, u := range m.NotifyUsers {
		if u.Email == email {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	m.NotifyUsers = kept
	return removed
}
