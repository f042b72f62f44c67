package view

import (
	"sync"

	"kitsune-client/internal/model"
	"kitsune-client/pkg/logger"
)

// Viewer is the embedded document. Mount replaces whatever is shown with a
// fresh document at addr.
type Viewer interface {
	Mount(addr string)
	Unmount()
}

// Mounter re-creates the viewer only when the composed address changes.
type Mounter struct {
	viewer Viewer
	suffix string

	mu      sync.Mutex
	current string
	version uint64
}

func NewMounter(viewer Viewer, suffix string) *Mounter {
	return &Mounter{viewer: viewer, suffix: suffix}
}

// Update applies one registry state. States older than one already applied
// are ignored.
func (m *Mounter) Update(state model.RegistryState) {
	addr, _ := Address(state, m.suffix)

	m.mu.Lock()
	defer m.mu.Unlock()

	if state.Version < m.version {
		return
	}
	m.version = state.Version
	if addr == m.current {
		return
	}
	m.current = addr
	if addr == "" {
		logger.Debug("viewer unmounted")
		m.viewer.Unmount()
		return
	}
	logger.Debugf("viewer mounted at %s", addr)
	m.viewer.Mount(addr)
}

// Current returns the mounted address, empty while nothing is mounted.
func (m *Mounter) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Attach feeds the mounter from subscribe, starting with initial. The
// returned function detaches it.
func (m *Mounter) Attach(initial model.RegistryState, subscribe func(func(model.RegistryState)) func()) func() {
	unsubscribe := subscribe(m.Update)
	m.Update(initial)
	return unsubscribe
}
