package devices

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"devmon/internal/logs"
	"devmon/internal/middleware"
	"devmon/internal/models"
	"devmon/internal/repo"
	"devmon/internal/views"

	"github.com/gorilla/mux"
)

// Registry is the store contract used by the handlers; *repo.DeviceStore implements it.
type Registry interface {
	List(ctx context.Context) ([]models.Device, error)
	GetByName(ctx context.Context, name string) (*models.Device, error)
	Create(ctx context.Context, name, status string) (*models.Device, error)
	Delete(ctx context.Context, name string) error
	RecordEvent(ctx context.Context, name, eventType, description string) (*models.Device, error)
	ScheduleMaintenance(ctx context.Context, name string, start, end time.Time) (*models.Maintenance, error)
}

const (
	msgNotFound        = "Device not found"
	msgCreateRequired  = "Device name and status are required"
	msgDuplicate       = "Device with this name already exists"
	msgEventRequired   = "event_type is required"
	msgWindowRequired  = "start_time and end_time are required"
	msgInvalidJSONBody = "invalid JSON body"
	msgInvalidName     = "invalid device name"
)

type HTTP struct{ reg Registry }

func NewHTTP(r Registry) *HTTP { return &HTTP{reg: r} }

// RegisterRoutes expects r to match on the encoded path (mux.Router.UseEncodedPath)
// so names containing '/' reach the {name} routes.
func (h *HTTP) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)

	// POST /device  { name, status }
	r.HandleFunc("/device", h.createDevice).Methods(http.MethodPost)
	r.HandleFunc("/device/{name}", h.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/device/{name}", h.deleteDevice).Methods(http.MethodDelete)

	// POST /device/{name}/event        { event_type, description? }
	// POST /device/{name}/maintenance  { start_time, end_time }
	r.HandleFunc("/device/{name}/event", h.recordEvent).Methods(http.MethodPost)
	r.HandleFunc("/device/{name}/maintenance", h.scheduleMaintenance).Methods(http.MethodPost)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, views.Error{Error: msg})
}

// writeStoreError maps store sentinels to responses; anything else is a 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, repo.ErrConflict):
		writeError(w, http.StatusBadRequest, msgDuplicate)
	case errors.Is(err, repo.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logs.Logger.WithField("request_id", middleware.RequestIDFrom(r.Context())).
			Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON object body; an empty body decodes to the zero value.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// deviceName is the unescaped {name} path segment.
func deviceName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidName)
		return "", false
	}
	return name, true
}

func (h *HTTP) listDevices(w http.ResponseWriter, r *http.Request) {
	ds, err := h.reg.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.FromDevices(ds))
}

func (h *HTTP) getDevice(w http.ResponseWriter, r *http.Request) {
	name, ok := deviceName(w, r)
	if !ok {
		return
	}
	d, err := h.reg.GetByName(r.Context(), name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.FromDevice(d))
}

func (h *HTTP) createDevice(w http.ResponseWriter, r *http.Request) {
	var in views.CreateDevice
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}
	if strings.TrimSpace(in.Name) == "" || in.Status == "" {
		writeError(w, http.StatusBadRequest, msgCreateRequired)
		return
	}
	d, err := h.reg.Create(r.Context(), in.Name, in.Status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, views.CreatedFrom(d))
}

func (h *HTTP) deleteDevice(w http.ResponseWriter, r *http.Request) {
	name, ok := deviceName(w, r)
	if !ok {
		return
	}
	if err := h.reg.Delete(r.Context(), name); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views.Message{Message: "Device deleted"})
}

func (h *HTTP) recordEvent(w http.ResponseWriter, r *http.Request) {
	name, ok := deviceName(w, r)
	if !ok {
		return
	}
	var in views.RecordEvent
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}
	if in.EventType == "" {
		// unknown device wins over a missing field
		if _, err := h.reg.GetByName(r.Context(), name); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, msgEventRequired)
		return
	}
	d, err := h.reg.RecordEvent(r.Context(), name, in.EventType, in.Description)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, views.DeviceEventsFrom(d))
}

func (h *HTTP) scheduleMaintenance(w http.ResponseWriter, r *http.Request) {
	name, ok := deviceName(w, r)
	if !ok {
		return
	}
	var in views.ScheduleMaintenance
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSONBody)
		return
	}
	if in.StartTime == "" || in.EndTime == "" {
		if _, err := h.reg.GetByName(r.Context(), name); err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, msgWindowRequired)
		return
	}
	start, err := views.ParseTime(in.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time: "+err.Error())
		return
	}
	end, err := views.ParseTime(in.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time: "+err.Error())
		return
	}
	m, err := h.reg.ScheduleMaintenance(r.Context(), name, start, end)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, views.FromMaintenance(m))
}
