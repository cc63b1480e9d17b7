package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"devmon/internal/db"
	"devmon/internal/models"
	"devmon/internal/repo"
	"devmon/internal/views"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	gdb, err := db.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Configure(gdb, 1, 1))
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	r := mux.NewRouter().UseEncodedPath()
	NewHTTP(repo.NewDeviceStore(gdb)).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestRouter1Walkthrough(t *testing.T) {
	r := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/device", `{"name":"router1","status":"Running"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	created := decodeBody[views.Created](t, rr)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "router1", created.Name)
	assert.Equal(t, "Running", created.Status)
	require.NotNil(t, created.LastChecked)

	rr = do(t, r, http.MethodPost, "/device/router1/event", `{"event_type":"Down"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	ev := decodeBody[views.DeviceEvents](t, rr)
	assert.Equal(t, "Down", ev.Status)
	require.Len(t, ev.Events, 1)
	assert.Equal(t, "", ev.Events[0].Description)

	rr = do(t, r, http.MethodGet, "/device/router1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[views.Device](t, rr)
	assert.Equal(t, "Down", got.Status)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "Down", got.Events[len(got.Events)-1].EventType)
	assert.False(t, got.Maintenance.Scheduled)
	assert.Nil(t, got.Maintenance.StartTime)
}

func TestTimestampsOnTheWire(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"sw","status":"Running"}`).Code)

	rr := do(t, r, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	s, ok := raw["sw"]["last_checked"].(string)
	require.True(t, ok, "last_checked should be a string: %v", raw["sw"]["last_checked"])
	_, err := time.Parse(views.TimeLayout, s)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(s, " GMT"))

	m := raw["sw"]["maintenance"].(map[string]any)
	assert.Equal(t, false, m["scheduled"])
	assert.Nil(t, m["start_time"])
	assert.Nil(t, m["end_time"])
}

func TestCreateDeviceErrors(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"empty body", "", http.StatusBadRequest, msgCreateRequired},
		{"missing status", `{"name":"a"}`, http.StatusBadRequest, msgCreateRequired},
		{"missing name", `{"status":"Running"}`, http.StatusBadRequest, msgCreateRequired},
		{"blank name", `{"name":"  ","status":"Running"}`, http.StatusBadRequest, msgCreateRequired},
		{"bad json", `{"name":`, http.StatusBadRequest, msgInvalidJSONBody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, r, http.MethodPost, "/device", tc.body)
			assert.Equal(t, tc.code, rr.Code)
			assert.Equal(t, tc.msg, decodeBody[views.Error](t, rr).Error)
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"router1","status":"Running"}`).Code)

	rr := do(t, r, http.MethodPost, "/device", `{"name":"router1","status":"Down"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgDuplicate, decodeBody[views.Error](t, rr).Error)

	got := decodeBody[views.Device](t, do(t, r, http.MethodGet, "/device/router1", ""))
	assert.Equal(t, "Running", got.Status)
}

func TestNotFound(t *testing.T) {
	r := newTestRouter(t)

	for _, c := range []struct{ method, path, body string }{
		{http.MethodGet, "/device/ghost", ""},
		{http.MethodDelete, "/device/ghost", ""},
		{http.MethodPost, "/device/ghost/event", `{"event_type":"Down"}`},
		{http.MethodPost, "/device/ghost/event", `{}`},
		{http.MethodPost, "/device/ghost/maintenance", `{"start_time":"2024-06-01 22:00:00","end_time":"2024-06-02 02:00:00"}`},
		{http.MethodPost, "/device/ghost/maintenance", `{}`},
	} {
		rr := do(t, r, c.method, c.path, c.body)
		assert.Equal(t, http.StatusNotFound, rr.Code, "%s %s", c.method, c.path)
		assert.Equal(t, msgNotFound, decodeBody[views.Error](t, rr).Error)
	}
}

func TestRecordEventMissingType(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"router1","status":"Running"}`).Code)

	rr := do(t, r, http.MethodPost, "/device/router1/event", `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgEventRequired, decodeBody[views.Error](t, rr).Error)
}

func TestScheduleMaintenance(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"sw1","status":"Running"}`).Code)

	rr := do(t, r, http.MethodPost, "/device/sw1/maintenance", `{"start_time":"2024-06-01T22:00:00Z","end_time":"2024-06-02T02:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"scheduled":true,"start_time":"Sat, 01 Jun 2024 22:00:00 GMT","end_time":"Sun, 02 Jun 2024 02:00:00 GMT"}`, rr.Body.String())

	rr = do(t, r, http.MethodPost, "/device/sw1/maintenance", `{"start_time":"2024-07-01 01:00:00","end_time":"2024-07-01 03:00:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	got := decodeBody[views.Device](t, do(t, r, http.MethodGet, "/device/sw1", ""))
	assert.True(t, got.Maintenance.Scheduled)
	require.NotNil(t, got.Maintenance.StartTime)
	assert.Equal(t, "Mon, 01 Jul 2024 01:00:00 GMT", got.Maintenance.StartTime.String())

	rr = do(t, r, http.MethodPost, "/device/sw1/maintenance", `{"start_time":"2024-07-01 01:00:00"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgWindowRequired, decodeBody[views.Error](t, rr).Error)

	rr = do(t, r, http.MethodPost, "/device/sw1/maintenance", `{"start_time":"soon","end_time":"later"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[views.Error](t, rr).Error, "start_time")
}

func TestDeleteDevice(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"a","status":"Running"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"b","status":"Running"}`).Code)

	rr := do(t, r, http.MethodDelete, "/device/a", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Device deleted"}`, rr.Body.String())

	all := decodeBody[map[string]views.Device](t, do(t, r, http.MethodGet, "/devices", ""))
	assert.NotContains(t, all, "a")
	assert.Contains(t, all, "b")

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/device/a", "").Code)
}

func TestNameWithSlashRoundTrip(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"rack1/sw1","status":"Running"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/device", `{"name":"50% load","status":"Running"}`).Code)

	got := decodeBody[views.Device](t, do(t, r, http.MethodGet, "/device/rack1%2Fsw1", ""))
	assert.Equal(t, "Running", got.Status)

	rr := do(t, r, http.MethodPost, "/device/rack1%2Fsw1/event", `{"event_type":"Down"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Down", decodeBody[views.DeviceEvents](t, rr).Status)

	rr = do(t, r, http.MethodPost, "/device/rack1%2Fsw1/maintenance", `{"start_time":"2024-06-01 22:00:00","end_time":"2024-06-02 02:00:00"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	got = decodeBody[views.Device](t, do(t, r, http.MethodGet, "/device/50%25%20load", ""))
	assert.Equal(t, "Running", got.Status)

	require.Equal(t, http.StatusOK, do(t, r, http.MethodDelete, "/device/rack1%2Fsw1", "").Code)
	rr = do(t, r, http.MethodGet, "/device/rack1%2Fsw1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, msgNotFound, decodeBody[views.Error](t, rr).Error)
}

func TestMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t)
	rr := do(t, r, http.MethodPut, "/device/a", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

type failingRegistry struct{ Registry }

func (failingRegistry) List(context.Context) ([]models.Device, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailureIs500(t *testing.T) {
	r := mux.NewRouter()
	NewHTTP(failingRegistry{}).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/devices", bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "connection reset", decodeBody[views.Error](t, rr).Error)
}
