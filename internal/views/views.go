// Package views holds the JSON payloads exchanged between the service and its clients.
package views

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"devmon/internal/models"
)

// TimeLayout is the wire format of every timestamp (RFC 1123, always GMT).
// Existing clients parse it verbatim; do not change it.
const TimeLayout = http.TimeFormat

// DisplayLayout is what table clients show.
const DisplayLayout = "2006-01-02 15:04:05"

// inputLayouts are accepted for incoming times; zone-less forms are UTC.
var inputLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp is a nullable time in wire format.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Time: *t}
}

func (t Timestamp) String() string { return t.UTC().Format(TimeLayout) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	v, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = v
	return nil
}

// ParseTime accepts the wire format, RFC 3339 and plain ISO date-times.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range inputLayouts {
		if v, err := time.Parse(l, s); err == nil {
			return v.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// FormatDisplay renders a wire timestamp for tables, "" if unset.
func FormatDisplay(t *Timestamp) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DisplayLayout)
}

type Event struct {
	Timestamp   *Timestamp `json:"timestamp"`
	EventType   string     `json:"event_type"`
	Description string     `json:"description"`
}

type Maintenance struct {
	Scheduled bool       `json:"scheduled"`
	StartTime *Timestamp `json:"start_time"`
	EndTime   *Timestamp `json:"end_time"`
}

// Device is the per-device payload of GET /devices and GET /device/{name}.
type Device struct {
	Status      string      `json:"status"`
	LastChecked *Timestamp  `json:"last_checked"`
	Events      []Event     `json:"events"`
	Maintenance Maintenance `json:"maintenance"`
}

// DeviceEvents is returned by POST /device/{name}/event.
type DeviceEvents struct {
	Status      string     `json:"status"`
	LastChecked *Timestamp `json:"last_checked"`
	Events      []Event    `json:"events"`
}

// Created is returned by POST /device.
type Created struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	LastChecked *Timestamp `json:"last_checked"`
}

type Error struct {
	Error string `json:"error"`
}

type Message struct {
	Message string `json:"message"`
}

// Request bodies.

type CreateDevice struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type RecordEvent struct {
	EventType   string `json:"event_type"`
	Description string `json:"description,omitempty"`
}

type ScheduleMaintenance struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func FromEvents(evs []models.Event) []Event {
	out := make([]Event, 0, len(evs))
	for i := range evs {
		out = append(out, Event{
			Timestamp:   NewTimestamp(&evs[i].Timestamp),
			EventType:   evs[i].EventType,
			Description: evs[i].Description,
		})
	}
	return out
}

// FromMaintenance defaults to an unscheduled window when m is nil.
func FromMaintenance(m *models.Maintenance) Maintenance {
	if m == nil {
		return Maintenance{}
	}
	return Maintenance{
		Scheduled: m.Scheduled,
		StartTime: NewTimestamp(m.StartTime),
		EndTime:   NewTimestamp(m.EndTime),
	}
}

func FromDevice(d *models.Device) Device {
	return Device{
		Status:      d.Status,
		LastChecked: NewTimestamp(d.LastChecked),
		Events:      FromEvents(d.Events),
		Maintenance: FromMaintenance(d.Maintenance),
	}
}

func FromDevices(ds []models.Device) map[string]Device {
	out := make(map[string]Device, len(ds))
	for i := range ds {
		out[ds[i].Name] = FromDevice(&ds[i])
	}
	return out
}

func DeviceEventsFrom(d *models.Device) DeviceEvents {
	return DeviceEvents{
		Status:      d.Status,
		LastChecked: NewTimestamp(d.LastChecked),
		Events:      FromEvents(d.Events),
	}
}

func CreatedFrom(d *models.Device) Created {
	return Created{
		ID:          d.ID,
		Name:        d.Name,
		Status:      d.Status,
		LastChecked: NewTimestamp(d.LastChecked),
	}
}
