package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"laundry-reservation-backend/internal/model"
)

var (
	// ErrNotFound is returned when no machine exists for the given id.
	ErrNotFound = errors.New("machine not found")
	// ErrVersionConflict is returned when a save loses an optimistic-locking
	// race. Callers serialize per machine, so this indicates a writer outside
	// the engine's locks.
	ErrVersionConflict = errors.New("machine version conflict")
)

// Store defines the persistence operations for machine records.
type Store interface {
	Get(ctx context.Context, id int64) (*model.Machine, error)
	GetAll(ctx context.Context) ([]model.Machine, error)
	// Save writes the machine row and replaces its subscriber rows in one
	// transaction. The write is guarded by the machine's version; a stale
	// version yields ErrVersionConflict and no mutation.
	Save(ctx context.Context, m *model.Machine) error
	InsertMany(ctx context.Context, machines []model.Machine) error
	Count(ctx context.Context) (int64, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Get(ctx context.Context, id int64) (*model.Machine, error) {
	var m model.Machine
	err := s.db.WithContext(ctx).
		Preload("NotifyUsers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch machine %d: %w", id, err)
	}
	return &m, nil
}

func (s *gormStore) GetAll(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.db.WithContext(ctx).
		Preload("NotifyUsers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("id").
		Find(&machines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) Save(ctx context.Context, m *model.Machine) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Machine{}).
			Where("id = ? AND version = ?", m.ID, m.Version).
			Updates(map[string]any{
				"name":               m.Name,
				"in_use":             m.InUse,
				"start_time":         m.StartTime,
				"end_time":           m.EndTime,
				"last_end_time":      m.LastEndTime,
				"default_time":       m.DefaultTime,
				"current_user_email": m.CurrentUserEmail,
				"version":            m.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update machine %d: %w", m.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		// Replace the subscriber rows wholesale so the machine row and its
		// notify list always change together.
		if err := tx.Where("machine_id = ?", m.ID).Delete(&model.Subscriber{}).Error; err != nil {
			return fmt.Errorf("failed to clear subscribers for machine %d: %w", m.ID, err)
		}
		for i := range m.NotifyUsers {
			m.NotifyUsers[i].ID = 0
			m.NotifyUsers[i].MachineID = m.ID
		}
		if len(m.NotifyUsers) > 0 {
			if err := tx.Create(&m.NotifyUsers).Error; err != nil {
				return fmt.Errorf("failed to save subscribers for machine %d: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.Version++
	return nil
}

func (s *gormStore) InsertMany(ctx context.Context, machines []model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&machines).Error; err != nil {
		return fmt.Errorf("failed to insert machines: %w", err)
	}
	return nil
}

func (s *gormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Machine{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count machines: %w", err)
	}
	return n, nil
}
