package identity

import (
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/martinsuchenak/deskd/internal/gateway"
	"github.com/martinsuchenak/deskd/internal/model"
)

const (
	PrefixMonitor         = "mon:"
	PrefixMonitorTopology = "montopo:"
	PrefixAudio           = "aud:"
	PrefixSession         = "session:"
)

// ErrNotPersistable is returned when user data is attached to a device
// that only has a session identity
var ErrNotPersistable = errors.New("device identity is not persistable")

// Resolution is the identity derived for one raw device
type Resolution struct {
	Identity    model.DeviceIdentity
	Persistable bool
	// Source names the data the identity was derived from: hardware, topology,
	// endpoint or session
	Source string
}

// Resolver turns volatile OS enumeration data into stable device identities.
//
// Monitors resolve from the EDID manufacturer, product and serial when all
// three are known, then from the adapter topology path. Topology identities
// change when a monitor is moved to a different port. Devices with neither
// get a session identity that is stable for the lifetime of the Resolver but
// is never persisted.
type Resolver struct {
	mu       sync.Mutex
	sessions map[string]model.DeviceIdentity
}

// NewResolver creates a resolver with an empty session table
func NewResolver() *Resolver {
	return &Resolver{sessions: make(map[string]model.DeviceIdentity)}
}

// ResolveMonitor derives the identity of a monitor
func (r *Resolver) ResolveMonitor(m gateway.RawMonitor) Resolution {
	manufacturer := normalize(m.ManufacturerID)
	modelID := normalize(m.ModelID)
	serial := normalize(m.Serial)

	if manufacturer != "" && modelID != "" && serial != "" {
		return Resolution{
			Identity:    model.DeviceIdentity(PrefixMonitor + digest(manufacturer, modelID, serial)),
			Persistable: true,
			Source:      "hardware",
		}
	}

	if adapter := normalize(m.AdapterPath); adapter != "" {
		return Resolution{
			Identity:    model.DeviceIdentity(PrefixMonitorTopology + digest(adapter, manufacturer, modelID)),
			Persistable: true,
			Source:      "topology",
		}
	}

	return r.Session(model.KindMonitor, m.OSHandle, m.DisplayName)
}

// ResolveAudio derives the identity of an audio endpoint from its persistent id
func (r *Resolver) ResolveAudio(a gateway.RawAudioDevice) Resolution {
	if id := normalize(a.PersistentID); id != "" {
		return Resolution{
			Identity:    model.DeviceIdentity(PrefixAudio + id),
			Persistable: true,
			Source:      "endpoint",
		}
	}
	return r.Session(model.KindAudio, a.OSHandle, a.Name)
}

// IsSession reports whether an identity was synthesized for this session only
func IsSession(id model.DeviceIdentity) bool {
	return strings.HasPrefix(string(id), PrefixSession)
}

// Session returns the session identity for a device. The same handle and
// name map to the same identity for the lifetime of the Resolver.
func (r *Resolver) Session(kind model.DeviceKind, osHandle, name string) Resolution {
	key := string(kind) + "\x00" + osHandle + "\x00" + name

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.sessions[key]
	if !ok {
		id = model.DeviceIdentity(PrefixSession + uuid.New().String())
		r.sessions[key] = id
	}
	return Resolution{Identity: id, Persistable: false, Source: "session"}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func digest(parts ...string) string {
	h, _ := blake2b.New(16, nil)
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
