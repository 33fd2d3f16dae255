package gateway

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
)

const (
	MultiMonitorToolExe = "MultiMonitorTool.exe"
	SvclExe             = "svcl.exe"

	DefaultToolTimeout = 15 * time.Second
)

// MultiMonitorTool /scomma columns
const (
	colMonitorActive       = "Active"
	colMonitorDisconnected = "Disconnected"
	colMonitorPrimary      = "Primary"
	colMonitorName         = "Name"
	colMonitorShortID      = "Short Monitor ID"
	colMonitorDisplayName  = "Monitor Name"
	colMonitorSerial       = "Monitor Serial Number"
	colMonitorKey          = "Monitor Key"
	colMonitorAdapter      = "Adapter"
	colMonitorLeftTop      = "Left-Top"
	colMonitorResolution   = "Resolution"
)

// svcl /scomma columns
const (
	colAudioName      = "Device Name"
	colAudioItemName  = "Name"
	colAudioType      = "Type"
	colAudioDirection = "Direction"
	colAudioState     = "Device State"
	colAudioDefault   = "Default"
	colAudioCmdID     = "Command-Line Friendly ID"
	colAudioItemID    = "Item ID"
)

var ErrToolNotFound = errors.New("device tool not found")

// ToolsGateway drives the NirSoft MultiMonitorTool and svcl command line
// utilities. Every invocation is bounded by the configured timeout.
type ToolsGateway struct {
	toolsDir string
	timeout  time.Duration
}

// NewToolsGateway creates a gateway that expects the tools under
// <toolsDir>/multimonitortool and <toolsDir>/svcl
func NewToolsGateway(toolsDir string, timeout time.Duration) *ToolsGateway {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ToolsGateway{toolsDir: toolsDir, timeout: timeout}
}

// ListMonitors exports the monitor list to a temporary CSV and parses it
func (g *ToolsGateway) ListMonitors(ctx context.Context) ([]RawMonitor, error) {
	tmp, err := os.CreateTemp("", "deskd-monitors-*.csv")
	if err != nil {
		return nil, fmt.Errorf("creating monitor export file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := g.run(ctx, g.multiMonitorToolPath(), "/scomma", tmpPath); err != nil {
		return nil, fmt.Errorf("listing monitors: %w", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("reading monitor export: %w", err)
	}

	return ParseMonitorCSV(data)
}

// SetMonitorEnabled runs MultiMonitorTool /enable or /disable
func (g *ToolsGateway) SetMonitorEnabled(ctx context.Context, osHandle string, enabled bool) error {
	verb := "/disable"
	if enabled {
		verb = "/enable"
	}
	if _, err := g.run(ctx, g.multiMonitorToolPath(), verb, osHandle); err != nil {
		return fmt.Errorf("setting monitor %s enabled=%t: %w", osHandle, enabled, err)
	}
	return nil
}

// SetMonitorPrimary runs MultiMonitorTool /SetPrimary
func (g *ToolsGateway) SetMonitorPrimary(ctx context.Context, osHandle string) error {
	if _, err := g.run(ctx, g.multiMonitorToolPath(), "/SetPrimary", osHandle); err != nil {
		return fmt.Errorf("setting monitor %s primary: %w", osHandle, err)
	}
	return nil
}

// ListAudioDevices runs svcl /scomma and parses stdout
func (g *ToolsGateway) ListAudioDevices(ctx context.Context) ([]RawAudioDevice, error) {
	out, err := g.run(ctx, g.svclPath(), "/scomma")
	if err != nil {
		return nil, fmt.Errorf("listing audio devices: %w", err)
	}
	return ParseAudioCSV(out)
}

// SetDefaultOutputDevice runs svcl /SetDefault for every role
func (g *ToolsGateway) SetDefaultOutputDevice(ctx context.Context, osHandle string) error {
	if _, err := g.run(ctx, g.svclPath(), "/SetDefault", osHandle, "all"); err != nil {
		return fmt.Errorf("setting default output %s: %w", osHandle, err)
	}
	return nil
}

func (g *ToolsGateway) multiMonitorToolPath() string {
	return filepath.Join(g.toolsDir, "multimonitortool", MultiMonitorToolExe)
}

func (g *ToolsGateway) svclPath() string {
	return filepath.Join(g.toolsDir, "svcl", SvclExe)
}

func (g *ToolsGateway) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	if _, err := os.Stat(tool); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, tool)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tool, args...)
	hideConsole(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug("Running device tool", "tool", filepath.Base(tool), "args", args)
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out after %s", filepath.Base(tool), g.timeout)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(tool), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(tool), err)
	}
	return out, nil
}

// ParseMonitorCSV converts a MultiMonitorTool /scomma export into raw monitors.
// Columns are located by header name; rows missing the handle are dropped.
func ParseMonitorCSV(data []byte) ([]RawMonitor, error) {
	rows, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parsing monitor csv: %w", err)
	}

	monitors := make([]RawMonitor, 0, len(rows))
	for _, row := range rows {
		handle := row[colMonitorName]
		if handle == "" {
			continue
		}

		shortID := row[colMonitorShortID]
		manufacturer, modelID := splitShortMonitorID(shortID)

		adapter := row[colMonitorAdapter]
		if key := row[colMonitorKey]; key != "" {
			adapter = key
		}

		m := RawMonitor{
			OSHandle:       handle,
			ManufacturerID: manufacturer,
			ModelID:        modelID,
			Serial:         row[colMonitorSerial],
			AdapterPath:    adapter,
			DisplayName:    row[colMonitorDisplayName],
			IsPrimary:      yes(row[colMonitorPrimary]),
			IsEnabled:      yes(row[colMonitorActive]),
			IsActive:       !yes(row[colMonitorDisconnected]),
		}
		m.Bounds = parseBounds(row[colMonitorLeftTop], row[colMonitorResolution])
		monitors = append(monitors, m)
	}
	return monitors, nil
}

// ParseAudioCSV converts an svcl /scomma listing into raw audio endpoints.
// Application sessions and subunits are dropped.
func ParseAudioCSV(data []byte) ([]RawAudioDevice, error) {
	rows, err := readCSV(data)
	if err != nil {
		return nil, fmt.Errorf("parsing audio csv: %w", err)
	}

	devices := make([]RawAudioDevice, 0, len(rows))
	for _, row := range rows {
		if t := row[colAudioType]; t != "" && t != "Device" {
			continue
		}

		var deviceType model.AudioDeviceType
		switch row[colAudioDirection] {
		case "Render":
			deviceType = model.AudioOutput
		case "Capture":
			deviceType = model.AudioInput
		default:
			continue
		}

		name := row[colAudioName]
		if item := row[colAudioItemName]; item != "" && item != name {
			name = item + " (" + name + ")"
		}

		devices = append(devices, RawAudioDevice{
			OSHandle:     row[colAudioCmdID],
			PersistentID: row[colAudioItemID],
			Name:         name,
			Type:         deviceType,
			State:        parseEndpointState(row[colAudioState]),
			IsDefault:    deviceType == model.AudioOutput && row[colAudioDefault] == "Render",
		})
	}
	return devices, nil
}

func readCSV(data []byte) ([]map[string]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[strings.TrimSpace(col)] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func yes(v string) bool {
	return strings.EqualFold(v, "yes")
}

// splitShortMonitorID splits an EDID short id such as "GSM5B7F" into the
// three letter PnP manufacturer code and the product code
func splitShortMonitorID(id string) (string, string) {
	if len(id) <= 3 {
		return id, ""
	}
	return id[:3], id[3:]
}

func parseEndpointState(s string) model.EndpointState {
	switch strings.ToLower(strings.ReplaceAll(s, " ", "")) {
	case "active":
		return model.EndpointActive
	case "disabled":
		return model.EndpointDisabled
	case "unplugged":
		return model.EndpointUnplugged
	default:
		return model.EndpointNotPresent
	}
}

// parseBounds reads "X, Y" and "W X H" cells; unparsable cells give zeros
func parseBounds(leftTop, resolution string) model.Bounds {
	var b model.Bounds
	if parts := strings.Split(leftTop, ","); len(parts) == 2 {
		b.X = atoi32(parts[0])
		b.Y = atoi32(parts[1])
	}
	if parts := strings.Split(strings.ToUpper(resolution), "X"); len(parts) == 2 {
		b.Width = atoi32(parts[0])
		b.Height = atoi32(parts[1])
	}
	return b
}

func atoi32(s string) int32 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}
