package gateway

import (
	"context"
	"errors"

	"github.com/martinsuchenak/deskd/internal/model"
)

var (
	ErrHandleNotFound = errors.New("device handle not found")
	ErrUnsupported    = errors.New("operation not supported by this gateway")
)

// RawMonitor is a monitor exactly as the OS enumerates it. OSHandle is only
// valid for the current session.
type RawMonitor struct {
	OSHandle       string
	ManufacturerID string
	ModelID        string
	Serial         string
	AdapterPath    string
	DisplayName    string
	IsPrimary      bool
	IsEnabled      bool
	IsActive       bool
	Bounds         model.Bounds
}

// RawAudioDevice is an audio endpoint exactly as the OS enumerates it
type RawAudioDevice struct {
	OSHandle     string
	PersistentID string
	Name         string
	Type         model.AudioDeviceType
	State        model.EndpointState
	IsDefault    bool
}

// Gateway is the boundary to the OS display topology and audio endpoint APIs.
// Implementations are expected to bound each call with their own timeout.
type Gateway interface {
	ListMonitors(ctx context.Context) ([]RawMonitor, error)
	SetMonitorEnabled(ctx context.Context, osHandle string, enabled bool) error
	SetMonitorPrimary(ctx context.Context, osHandle string) error
	ListAudioDevices(ctx context.Context) ([]RawAudioDevice, error)
	SetDefaultOutputDevice(ctx context.Context, osHandle string) error
}
