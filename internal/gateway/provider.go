package gateway

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/martinsuchenak/deskd/internal/model"
)

// Options is what a provider factory receives when the server opens a gateway
type Options struct {
	ToolsDir string
	Timeout  time.Duration
}

// Factory creates a gateway instance
type Factory func(opts Options) (Gateway, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]Factory{}
)

func init() {
	Register("tools", func(opts Options) (Gateway, error) {
		return NewToolsGateway(opts.ToolsDir, opts.Timeout), nil
	})
	Register("memory", func(opts Options) (Gateway, error) {
		return NewDemoGateway(), nil
	})
}

// Register makes a gateway provider available by name, replacing any
// provider already registered under it
func Register(name string, factory Factory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Open creates the gateway registered under name
func Open(name string, opts Options) (Gateway, error) {
	providersMu.RLock()
	factory, ok := providers[name]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q", name)
	}
	return factory(opts)
}

// Providers lists the registered provider names
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewDemoGateway returns a memory gateway seeded with a three display desk
// and a handful of audio endpoints
func NewDemoGateway() *MemoryGateway {
	return NewMemoryGateway(
		[]RawMonitor{
			{
				OSHandle: `\\.\DISPLAY1`, ManufacturerID: "GSM", ModelID: "5B7F", Serial: "107NTAB12345",
				AdapterPath: `MONITOR\GSM5B7F\0001`, DisplayName: "LG ULTRAGEAR",
				IsPrimary: true, IsEnabled: true, IsActive: true,
				Bounds: model.Bounds{Width: 2560, Height: 1440},
			},
			{
				OSHandle: `\\.\DISPLAY2`, ManufacturerID: "DEL", ModelID: "4105", Serial: "CN0J2D4X",
				AdapterPath: `MONITOR\DEL4105\0002`, DisplayName: "DELL U2719D",
				IsEnabled: true, IsActive: true,
				Bounds: model.Bounds{X: 2560, Width: 2560, Height: 1440},
			},
			{
				OSHandle: `\\.\DISPLAY3`, ManufacturerID: "SAM", ModelID: "0F9A",
				AdapterPath: `MONITOR\SAM0F9A\0003`, DisplayName: "Samsung TV",
				IsActive: true,
			},
		},
		[]RawAudioDevice{
			{OSHandle: `Realtek Audio\Device\Speakers\Render`, PersistentID: "{0.0.0.00000000}.{7d1c4a52-0001}", Name: "Speakers (Realtek Audio)", Type: model.AudioOutput, State: model.EndpointActive, IsDefault: true},
			{OSHandle: `USB DAC\Device\Headphones\Render`, PersistentID: "{0.0.0.00000000}.{7d1c4a52-0002}", Name: "Headphones (USB DAC)", Type: model.AudioOutput, State: model.EndpointActive},
			{OSHandle: `Samsung TV\Device\HDMI\Render`, PersistentID: "{0.0.0.00000000}.{7d1c4a52-0003}", Name: "HDMI (Samsung TV)", Type: model.AudioOutput, State: model.EndpointUnplugged},
			{OSHandle: `USB DAC\Device\Microphone\Capture`, PersistentID: "{0.0.1.00000000}.{7d1c4a52-0004}", Name: "Microphone (USB DAC)", Type: model.AudioInput, State: model.EndpointActive},
		},
	)
}
