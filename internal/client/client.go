package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"devmon/internal/views"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, want int) error {
	var apiErr views.Error
	req := c.http.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() != want {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Error}
	}
	return nil
}

func devicePath(name string, suffix string) string {
	return "/device/" + url.PathEscape(name) + suffix
}

// ListDevices returns name -> device.
func (c *Client) ListDevices(ctx context.Context) (map[string]views.Device, error) {
	out := map[string]views.Device{}
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDevice(ctx context.Context, name string) (*views.Device, error) {
	var out views.Device
	if err := c.do(ctx, http.MethodGet, devicePath(name, ""), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateDevice(ctx context.Context, name, status string) (*views.Created, error) {
	var out views.Created
	in := views.CreateDevice{Name: name, Status: status}
	if err := c.do(ctx, http.MethodPost, "/device", in, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDevice(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, devicePath(name, ""), nil, nil, http.StatusOK)
}

func (c *Client) RecordEvent(ctx context.Context, name, eventType, description string) (*views.DeviceEvents, error) {
	var out views.DeviceEvents
	in := views.RecordEvent{EventType: eventType, Description: description}
	if err := c.do(ctx, http.MethodPost, devicePath(name, "/event"), in, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ScheduleMaintenance(ctx context.Context, name string, start, end time.Time) (*views.Maintenance, error) {
	var out views.Maintenance
	in := views.ScheduleMaintenance{
		StartTime: start.UTC().Format(time.RFC3339),
		EndTime:   end.UTC().Format(time.RFC3339),
	}
	if err := c.do(ctx, http.MethodPost, devicePath(name, "/maintenance"), in, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}
