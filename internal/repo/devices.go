package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devmon/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("device not found")
	ErrConflict = errors.New("device already exists")
	ErrInvalid  = errors.New("invalid input")
)

type DeviceStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// withHistory preloads events in insertion order and the maintenance row.
func withHistory(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Maintenance")
}

func findByName(tx *gorm.DB, name string) (*models.Device, error) {
	var d models.Device
	if err := tx.Where("name = ?", name).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// List returns every device ordered by name, with history.
func (s *DeviceStore) List(ctx context.Context) ([]models.Device, error) {
	var out []models.Device
	if err := withHistory(s.db.WithContext(ctx)).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

// GetByName returns one device with history.
func (s *DeviceStore) GetByName(ctx context.Context, name string) (*models.Device, error) {
	return findByName(withHistory(s.db.WithContext(ctx)), name)
}

// Create registers a new device with last_checked set to now.
func (s *DeviceStore) Create(ctx context.Context, name, status string) (*models.Device, error) {
	name = strings.TrimSpace(name)
	if name == "" || status == "" {
		return nil, fmt.Errorf("name and status required: %w", ErrInvalid)
	}

	var d models.Device
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findByName(tx, name); err == nil {
			return fmt.Errorf("%q: %w", name, ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := s.now()
		d = models.Device{Name: name, Status: status, LastChecked: &now}
		return insertDevice(tx, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// insertDevice maps a unique-name violation to ErrConflict. It catches the
// create that loses a race past the lookup in Create.
func insertDevice(tx *gorm.DB, d *models.Device) error {
	if err := tx.Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%q: %w", d.Name, ErrConflict)
		}
		return err
	}
	return nil
}

// Delete removes the device together with its events and maintenance row.
func (s *DeviceStore) Delete(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findByName(tx, name)
		if err != nil {
			return err
		}
		if err := tx.Where("device_id = ?", d.ID).Delete(&models.Event{}).Error; err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		if err := tx.Where("device_id = ?", d.ID).Delete(&models.Maintenance{}).Error; err != nil {
			return fmt.Errorf("delete maintenance: %w", err)
		}
		if err := tx.Delete(d).Error; err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
		return nil
	})
}

// RecordEvent appends an event and moves the device status to eventType.
// Event timestamp and last_checked share the same write-time clock reading.
func (s *DeviceStore) RecordEvent(ctx context.Context, name, eventType, description string) (*models.Device, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event_type required: %w", ErrInvalid)
	}

	var out *models.Device
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findByName(tx, name)
		if err != nil {
			return err
		}

		now := s.now()
		ev := models.Event{DeviceID: d.ID, EventType: eventType, Description: description, Timestamp: now}
		if err := tx.Create(&ev).Error; err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		if err := tx.Model(d).Updates(map[string]any{
			"status":       eventType,
			"last_checked": now,
		}).Error; err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		out, err = findByName(withHistory(tx), name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScheduleMaintenance creates or updates the device's single maintenance row.
func (s *DeviceStore) ScheduleMaintenance(ctx context.Context, name string, start, end time.Time) (*models.Maintenance, error) {
	var m models.Maintenance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findByName(tx, name)
		if err != nil {
			return err
		}

		start, end := start.UTC(), end.UTC()
		err = tx.Where("device_id = ?", d.ID).First(&m).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = models.Maintenance{DeviceID: d.ID, Scheduled: true, StartTime: &start, EndTime: &end}
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("create maintenance: %w", err)
			}
		case err != nil:
			return err
		default:
			m.Scheduled = true
			m.StartTime = &start
			m.EndTime = &end
			if err := tx.Save(&m).Error; err != nil {
				return fmt.Errorf("update maintenance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}
