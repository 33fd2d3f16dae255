package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/martinsuchenak/deskd/internal/gateway"
	"github.com/martinsuchenak/deskd/internal/identity"
	"github.com/martinsuchenak/deskd/internal/log"
	"github.com/martinsuchenak/deskd/internal/model"
	"github.com/martinsuchenak/deskd/internal/storage"
	"github.com/martinsuchenak/deskd/internal/worker"
)

var (
	ErrDeviceIgnored  = errors.New("device is ignored")
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoSnapshot     = errors.New("registry has not been refreshed")
	ErrEnumeration    = errors.New("device enumeration failed")
)

// Registry holds the last enumerated view of every monitor and audio
// endpoint with the user overlays applied.
//
// Refresh and anything passed to Serialize share one queue, so OS
// enumeration never interleaves with OS mutation. Overlay writes go straight
// to storage and show up on the next refresh.
type Registry struct {
	mu       sync.RWMutex
	gateway  gateway.Gateway
	resolver *identity.Resolver
	overlays storage.OverlayStorage
	queue    *worker.Queue
	snapshot *model.Snapshot
	handles  map[model.DeviceIdentity]model.DeviceKind
}

// NewRegistry creates a registry and starts its work queue
func NewRegistry(gw gateway.Gateway, resolver *identity.Resolver, overlays storage.OverlayStorage) *Registry {
	q := worker.NewQueue("registry")
	q.Start()
	return &Registry{
		gateway:  gw,
		resolver: resolver,
		overlays: overlays,
		queue:    q,
		handles:  make(map[model.DeviceIdentity]model.DeviceKind),
	}
}

// Close stops the work queue after the running job finishes
func (r *Registry) Close() {
	r.queue.Stop()
}

// Gateway returns the gateway the registry enumerates from
func (r *Registry) Gateway() gateway.Gateway {
	return r.gateway
}

// Serialize runs fn on the registry queue. fn must not call Refresh or
// Serialize itself; use RefreshLocked instead.
func (r *Registry) Serialize(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return r.queue.Do(ctx, name, fn)
}

// Refresh re-enumerates every device and re-applies the overlay table
func (r *Registry) Refresh(ctx context.Context) (*model.Snapshot, error) {
	var snap *model.Snapshot
	err := r.Serialize(ctx, "refresh", func(ctx context.Context) error {
		var err error
		snap, err = r.RefreshLocked(ctx)
		return err
	})
	return snap, err
}

// RefreshLocked is Refresh for callers already running on the queue
func (r *Registry) RefreshLocked(ctx context.Context) (*model.Snapshot, error) {
	rawMonitors, err := r.gateway.ListMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing monitors: %w", ErrEnumeration, err)
	}
	rawAudio, err := r.gateway.ListAudioDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing audio devices: %w", ErrEnumeration, err)
	}
	overlays, err := r.overlays.ListOverlays()
	if err != nil {
		return nil, fmt.Errorf("loading overlays: %w", err)
	}

	snap := Build(r.resolver, rawMonitors, rawAudio, overlays)

	r.mu.Lock()
	r.snapshot = snap
	clear(r.handles)
	for _, m := range snap.Monitors {
		r.handles[m.Identity] = model.KindMonitor
	}
	for _, a := range snap.Audio.All() {
		r.handles[a.Identity] = model.KindAudio
	}
	r.mu.Unlock()

	log.Debug("Registry refreshed", "monitors", len(snap.Monitors),
		"audio", len(snap.Audio.Filtered), "ignored", len(snap.Audio.Ignored))
	return cloneSnapshot(snap), nil
}

// Snapshot returns the last refreshed snapshot, or nil before the first
func (r *Registry) Snapshot() *model.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil {
		return nil
	}
	return cloneSnapshot(r.snapshot)
}

// SetOverlay updates the overlay of a device and persists it immediately.
// It does not touch the OS or wait for a running refresh. Selecting an
// ignored device fails with ErrDeviceIgnored; ignoring a selected device
// keeps its selected flag.
func (r *Registry) SetOverlay(id model.DeviceIdentity, patch model.OverlayPatch) (*model.Overlay, error) {
	kind, err := r.kindOf(id)
	if err != nil {
		return nil, err
	}
	if identity.IsSession(id) {
		return nil, fmt.Errorf("%w: %s has no stable identity", identity.ErrNotPersistable, id)
	}

	overlay, err := r.overlays.UpdateOverlay(id, kind, func(o *model.Overlay) error {
		o.Kind = kind
		if patch.Nickname != nil {
			o.Nickname = strings.TrimSpace(*patch.Nickname)
		}
		if patch.Ignored != nil {
			o.Ignored = *patch.Ignored
		}
		if patch.Selected != nil {
			if *patch.Selected && o.Ignored {
				return fmt.Errorf("%w: %s cannot be selected", ErrDeviceIgnored, id)
			}
			o.Selected = *patch.Selected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug("Overlay updated", "identity", id, "nickname", overlay.Nickname,
		"ignored", overlay.Ignored, "selected", overlay.Selected)
	return overlay, nil
}

// kindOf finds the kind of a device seen in the last refresh
func (r *Registry) kindOf(id model.DeviceIdentity) (model.DeviceKind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snapshot == nil {
		return "", ErrNoSnapshot
	}
	kind, ok := r.handles[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return kind, nil
}

// Build resolves raw devices and layers overlays on top. Output is sorted
// by identity so the enumeration order never shows through.
func Build(resolver *identity.Resolver, rawMonitors []gateway.RawMonitor, rawAudio []gateway.RawAudioDevice, overlays []model.Overlay) *model.Snapshot {
	byID := make(map[model.DeviceIdentity]model.Overlay, len(overlays))
	for _, o := range overlays {
		byID[o.Identity] = o
	}

	monitorRes := make([]identity.Resolution, len(rawMonitors))
	for i, raw := range rawMonitors {
		monitorRes[i] = resolver.ResolveMonitor(raw)
	}
	for _, i := range collisions(monitorRes) {
		raw := rawMonitors[i]
		log.Warn("Monitor identity is shared with another monitor, using a session identity",
			"identity", monitorRes[i].Identity, "os_handle", raw.OSHandle)
		monitorRes[i] = resolver.Session(model.KindMonitor, raw.OSHandle, raw.DisplayName)
	}

	monitors := make([]model.MonitorState, 0, len(rawMonitors))
	for i, raw := range rawMonitors {
		res := monitorRes[i]
		m := model.MonitorState{
			Identity:    res.Identity,
			OSHandle:    raw.OSHandle,
			DisplayName: raw.DisplayName,
			IsPrimary:   raw.IsPrimary,
			IsEnabled:   raw.IsEnabled,
			IsActive:    raw.IsActive,
			Persistable: res.Persistable,
			Bounds:      raw.Bounds,
		}
		if o, ok := byID[res.Identity]; ok {
			m.Nickname = o.Nickname
		}
		monitors = append(monitors, m)
	}
	slices.SortStableFunc(monitors, func(a, b model.MonitorState) int {
		return strings.Compare(string(a.Identity), string(b.Identity))
	})

	audioRes := make([]identity.Resolution, len(rawAudio))
	for i, raw := range rawAudio {
		audioRes[i] = resolver.ResolveAudio(raw)
	}
	for _, i := range collisions(audioRes) {
		raw := rawAudio[i]
		log.Warn("Audio identity is shared with another endpoint, using a session identity",
			"identity", audioRes[i].Identity, "os_handle", raw.OSHandle)
		audioRes[i] = resolver.Session(model.KindAudio, raw.OSHandle, raw.Name)
	}

	audio := make([]model.AudioDeviceState, 0, len(rawAudio))
	for i, raw := range rawAudio {
		res := audioRes[i]
		a := model.AudioDeviceState{
			Identity:    res.Identity,
			OSHandle:    raw.OSHandle,
			Name:        raw.Name,
			Type:        raw.Type,
			State:       raw.State,
			IsDefault:   raw.IsDefault && raw.Type == model.AudioOutput,
			IsEnabled:   raw.State.IsEnabled(),
			Persistable: res.Persistable,
		}
		if o, ok := byID[res.Identity]; ok {
			a.Nickname = o.Nickname
			a.Ignored = o.Ignored
			a.Selected = o.Selected
		}
		audio = append(audio, a)
	}
	slices.SortStableFunc(audio, func(a, b model.AudioDeviceState) int {
		return strings.Compare(string(a.Identity), string(b.Identity))
	})

	return &model.Snapshot{
		Monitors: monitors,
		Audio:    Partition(audio),
	}
}

// collisions returns the indexes of every persistable resolution whose
// identity is shared with another device. Colliding devices cannot be told
// apart, so none of them may carry persisted state.
func collisions(res []identity.Resolution) []int {
	count := make(map[model.DeviceIdentity]int, len(res))
	for _, r := range res {
		if r.Persistable {
			count[r.Identity]++
		}
	}

	var out []int
	for i, r := range res {
		if r.Persistable && count[r.Identity] > 1 {
			out = append(out, i)
		}
	}
	return out
}

// Partition splits endpoints by their ignored flag, keeping order
func Partition(devices []model.AudioDeviceState) model.AudioPartition {
	p := model.AudioPartition{
		Filtered: make([]model.AudioDeviceState, 0, len(devices)),
		Ignored:  make([]model.AudioDeviceState, 0),
	}
	for _, d := range devices {
		if d.Ignored {
			p.Ignored = append(p.Ignored, d)
		} else {
			p.Filtered = append(p.Filtered, d)
		}
	}
	return p
}

func cloneSnapshot(s *model.Snapshot) *model.Snapshot {
	return &model.Snapshot{
		Monitors: slices.Clone(s.Monitors),
		Audio: model.AudioPartition{
			Filtered: slices.Clone(s.Audio.Filtered),
			Ignored:  slices.Clone(s.Audio.Ignored),
		},
	}
}
