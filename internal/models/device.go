package models

import "time"

// Device is a monitored endpoint. Name is immutable after creation; Status
// mirrors the event_type of the latest Event and is written only together
// with that event.
type Device struct {
	ID          uint       `gorm:"primaryKey"`
	Name        string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	Status      string     `gorm:"type:varchar(20);not null;default:'Unknown'"`
	LastChecked *time.Time `gorm:"column:last_checked"`

	Events      []Event      `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
	Maintenance *Maintenance `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

func (Device) TableName() string { return "devices" }

// Event is an immutable status-change record. Timestamp is set by the writer.
type Event struct {
	ID          uint      `gorm:"primaryKey"`
	DeviceID    uint      `gorm:"not null;index"`
	EventType   string    `gorm:"column:event_type;type:varchar(20);not null"`
	Description string    `gorm:"type:varchar(255)"`
	Timestamp   time.Time `gorm:"not null"`
}

func (Event) TableName() string { return "events" }

// Maintenance is the single downtime window of a device, created on first schedule.
type Maintenance struct {
	ID        uint `gorm:"primaryKey"`
	DeviceID  uint `gorm:"not null;uniqueIndex"`
	Scheduled bool `gorm:"not null;default:false"`
	StartTime *time.Time
	EndTime   *time.Time
}

func (Maintenance) TableName() string { return "maintenance" }

// All lists the models in migration order.
func All() []any {
	return []any{&Device{}, &Event{}, &Maintenance{}}
}
