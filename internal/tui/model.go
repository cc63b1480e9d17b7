// Package tui is the terminal table view over the device API. It keeps no
// state besides what is on screen and refreshes only when asked.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"devmon/internal/client"
	"devmon/internal/views"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// API is the subset of client.Client the view needs.
type API interface {
	ListDevices(ctx context.Context) (map[string]views.Device, error)
	GetDevice(ctx context.Context, name string) (*views.Device, error)
	CreateDevice(ctx context.Context, name, status string) (*views.Created, error)
	DeleteDevice(ctx context.Context, name string) error
	RecordEvent(ctx context.Context, name, eventType, description string) (*views.DeviceEvents, error)
	ScheduleMaintenance(ctx context.Context, name string, start, end time.Time) (*views.Maintenance, error)
}

// nameLimit matches the devices.name column width.
const nameLimit = 50

// Statuses offered when adding a device or changing its status.
var Statuses = []string{"Running", "Down", "Unknown"}

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeSearch
	modeMaint
)

const (
	colorAccent  = "#BD93F9"
	colorOK      = "#50FA7B"
	colorErr     = "#FF5555"
	colorComment = "#6272A4"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorOK))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorErr)).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorComment))
	tableBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(colorAccent))
)

// messages produced by commands
type (
	devicesMsg struct {
		devices map[string]views.Device
		query   string
	}
	createdMsg struct{ name string }
	deletedMsg struct{ name string }
	eventMsg   struct {
		name string
		dev  *views.DeviceEvents
	}
	detailMsg struct {
		name string
		dev  *views.Device
	}
	maintMsg struct{ name string }
	errMsg   struct {
		action string
		err    error
	}
)

type Model struct {
	api   API
	table table.Model
	input textinput.Model

	mode      mode
	statusIdx int
	query     string
	target    string // device the maintenance input applies to
	detail    string

	message string
	isErr   bool
}

func New(api API) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 24},
			{Title: "Status", Width: 12},
			{Title: "Last Checked", Width: 20},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	in := textinput.New()
	in.CharLimit = nameLimit
	in.Width = 30

	return &Model{api: api, table: t, input: in}
}

func (m *Model) Init() tea.Cmd {
	return m.refresh("")
}

// refresh lists all devices; a non-empty query keeps only matching names.
func (m *Model) refresh(query string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ds, err := api.ListDevices(context.Background())
		if err != nil {
			return errMsg{action: "Error during request", err: err}
		}
		return devicesMsg{devices: ds, query: query}
	}
}

func (m *Model) create(name, status string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		if _, err := api.CreateDevice(context.Background(), name, status); err != nil {
			return errMsg{action: "Failed to add device", err: err}
		}
		return createdMsg{name: name}
	}
}

func (m *Model) remove(name string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		if err := api.DeleteDevice(context.Background(), name); err != nil {
			return errMsg{action: "Failed to delete device", err: err}
		}
		return deletedMsg{name: name}
	}
}

func (m *Model) changeStatus(name, status string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		d, err := api.RecordEvent(context.Background(), name, status, "")
		if err != nil {
			return errMsg{action: "Failed to update device status", err: err}
		}
		return eventMsg{name: name, dev: d}
	}
}

func (m *Model) details(name string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		d, err := api.GetDevice(context.Background(), name)
		if client.IsNotFound(err) {
			return errMsg{action: "Device not found", err: fmt.Errorf("%q", name)}
		}
		if err != nil {
			return errMsg{action: "Failed to load device", err: err}
		}
		return detailMsg{name: name, dev: d}
	}
}

func (m *Model) schedule(name string, start, end time.Time) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		if _, err := api.ScheduleMaintenance(context.Background(), name, start, end); err != nil {
			return errMsg{action: "Failed to schedule maintenance", err: err}
		}
		return maintMsg{name: name}
	}
}

// parseWindow reads "start, end"; each side may use any comma-free layout
// views.ParseTime accepts.
func parseWindow(s string) (time.Time, time.Time, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected \"start, end\"")
	}
	start, err := views.ParseTime(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := views.ParseTime(strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Detail summarises one device's history for the status area.
func Detail(name string, d *views.Device) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s, %d event(s)", name, d.Status, len(d.Events))
	if n := len(d.Events); n > 0 {
		last := d.Events[n-1]
		fmt.Fprintf(&b, ", last %s at %s", last.EventType, views.FormatDisplay(last.Timestamp))
	}
	if d.Maintenance.Scheduled {
		fmt.Fprintf(&b, "; maintenance %s to %s",
			views.FormatDisplay(d.Maintenance.StartTime), views.FormatDisplay(d.Maintenance.EndTime))
	} else {
		b.WriteString("; no maintenance")
	}
	return b.String()
}

// Rows turns an API listing into sorted table rows, filtered by a
// case-insensitive substring of the name.
func Rows(ds map[string]views.Device, query string) []table.Row {
	q := strings.ToLower(query)
	names := make([]string, 0, len(ds))
	for n := range ds {
		if q == "" || strings.Contains(strings.ToLower(n), q) {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	rows := make([]table.Row, 0, len(names))
	for _, n := range names {
		d := ds[n]
		rows = append(rows, table.Row{n, d.Status, views.FormatDisplay(d.LastChecked)})
	}
	return rows
}

func (m *Model) selectedName() (string, bool) {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return "", false
	}
	return row[0], true
}

func (m *Model) setInfo(s string) { m.message, m.isErr = s, false }
func (m *Model) setErr(s string)  { m.message, m.isErr = s, true }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case devicesMsg:
		m.query = msg.query
		rows := Rows(msg.devices, msg.query)
		m.table.SetRows(rows)
		if c := m.table.Cursor(); c < 0 || c >= len(rows) {
			m.table.SetCursor(0)
		}
		return m, nil
	case createdMsg:
		m.setInfo("Device added successfully!")
		return m, m.refresh(m.query)
	case deletedMsg:
		m.setInfo("Device deleted successfully!")
		return m, m.refresh(m.query)
	case detailMsg:
		m.detail = Detail(msg.name, msg.dev)
		return m, nil
	case maintMsg:
		m.setInfo("Maintenance scheduled successfully!")
		return m, m.details(msg.name)
	case eventMsg:
		m.applyEvent(msg)
		m.setInfo("Device status updated successfully!")
		return m, nil
	case errMsg:
		m.setErr(fmt.Sprintf("%s: %v", msg.action, msg.err))
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeBrowse:
			return m.updateBrowse(msg)
		default:
			return m.updateInput(msg)
		}
	}

	var cmd tea.Cmd
	if m.mode != modeBrowse {
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// applyEvent rewrites the affected row in place from the event response.
func (m *Model) applyEvent(msg eventMsg) {
	rows := m.table.Rows()
	for i, r := range rows {
		if len(r) > 0 && r[0] == msg.name {
			rows[i] = table.Row{msg.name, msg.dev.Status, views.FormatDisplay(msg.dev.LastChecked)}
		}
	}
	m.table.SetRows(rows)
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r":
		m.message = ""
		return m, m.refresh("")
	case "a":
		m.mode = modeAdd
		m.input.Reset()
		m.input.Placeholder = "Device name"
		m.input.CharLimit = nameLimit
		m.table.Blur()
		return m, m.input.Focus()
	case "/":
		m.mode = modeSearch
		m.input.Reset()
		m.input.Placeholder = "Search device"
		m.input.CharLimit = nameLimit
		m.table.Blur()
		return m, m.input.Focus()
	case "tab":
		m.statusIdx = (m.statusIdx + 1) % len(Statuses)
		return m, nil
	case "enter":
		name, ok := m.selectedName()
		if !ok {
			m.setErr("Please select a device to view.")
			return m, nil
		}
		return m, m.details(name)
	case "m":
		name, ok := m.selectedName()
		if !ok {
			m.setErr("Please select a device to schedule maintenance.")
			return m, nil
		}
		m.mode = modeMaint
		m.target = name
		m.input.Reset()
		m.input.Placeholder = "2024-06-01 22:00:00, 2024-06-02 02:00:00"
		m.input.CharLimit = 2 * len(views.TimeLayout)
		m.table.Blur()
		return m, m.input.Focus()
	case "s":
		name, ok := m.selectedName()
		if !ok {
			m.setErr("Please select a device to change its status.")
			return m, nil
		}
		return m, m.changeStatus(name, Statuses[m.statusIdx])
	case "d", "delete":
		name, ok := m.selectedName()
		if !ok {
			m.setErr("Please select a device to delete.")
			return m, nil
		}
		return m, m.remove(name)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) leaveInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.table.Focus()
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.leaveInput()
		return m, nil
	case "tab":
		if m.mode == modeAdd {
			m.statusIdx = (m.statusIdx + 1) % len(Statuses)
			return m, nil
		}
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		current := m.mode
		m.leaveInput()
		switch current {
		case modeSearch:
			return m, m.refresh(value)
		case modeMaint:
			start, end, err := parseWindow(value)
			if err != nil {
				m.setErr("Please enter start and end times: " + err.Error())
				return m, nil
			}
			return m, m.schedule(m.target, start, end)
		}
		if value == "" {
			m.setErr("Please enter both device name and status.")
			return m, nil
		}
		return m, m.create(value, Statuses[m.statusIdx])
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Device Monitoring"))
	if m.query != "" {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  (filter: %q)", m.query)))
	}
	b.WriteString("\n")
	b.WriteString(tableBox.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Status: %s\n", titleStyle.Render(Statuses[m.statusIdx])))

	switch m.mode {
	case modeAdd:
		b.WriteString("Device Name: " + m.input.View() + "\n")
	case modeSearch:
		b.WriteString("Search Device: " + m.input.View() + "\n")
	case modeMaint:
		b.WriteString("Maintenance for " + m.target + ": " + m.input.View() + "\n")
	}

	if m.detail != "" {
		b.WriteString(helpStyle.Render(m.detail))
		b.WriteString("\n")
	}

	if m.message != "" {
		if m.isErr {
			b.WriteString(errStyle.Render(m.message))
		} else {
			b.WriteString(okStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	switch m.mode {
	case modeBrowse:
		b.WriteString(helpStyle.Render("r refresh • a add • / search • enter details • m maintenance • tab status • s set status • d delete • q quit"))
	default:
		b.WriteString(helpStyle.Render("enter confirm • tab status • esc cancel"))
	}
	return b.String()
}
