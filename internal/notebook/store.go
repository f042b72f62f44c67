package notebook

import (
	"sync"

	"kitsune-client/internal/broadcast"
	"kitsune-client/internal/model"
	"kitsune-client/pkg/logger"
)

// DefaultWelcome is selected on first contact when the registry has it.
const DefaultWelcome = "Welcome"

// Store is the one replica of the notebook registry for a session. It is the
// only writer of RegistryState; observers get copies.
type Store struct {
	welcome string

	mu          sync.Mutex
	state       model.RegistryState
	initialized bool

	bus *broadcast.Broadcaster[model.RegistryState]
}

func NewStore(welcome string) *Store {
	if welcome == "" {
		welcome = DefaultWelcome
	}
	return &Store{
		welcome: welcome,
		bus:     broadcast.New[model.RegistryState](),
	}
}

// Subscribe calls fn after every state change, in order. Bursts may be
// coalesced to the latest state.
func (s *Store) Subscribe(fn func(model.RegistryState)) func() {
	return s.bus.Subscribe(fn)
}

// State returns the current snapshot.
func (s *Store) State() model.RegistryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// SetActiveTab selects name if the registry has it; otherwise it does nothing.
func (s *Store) SetActiveTab(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Contains(name) {
		logger.Debugf("ignoring active tab %q: not in registry", name)
		return false
	}
	if s.state.ActiveTab == name {
		return true
	}
	s.state.ActiveTab = name
	s.publishLocked()
	return true
}

// ApplySnapshot replaces the notebook list and reconciles the active tab.
// The list is always a full snapshot, never a delta.
func (s *Store) ApplySnapshot(notebooks []model.Notebook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]model.Notebook{}, notebooks...)
	previous := s.state.ActiveTab

	if !s.initialized {
		s.initialized = true
		s.state.ActiveTab = firstContact(list, s.welcome)
	} else {
		s.state.ActiveTab = reconcile(list, previous)
	}
	s.state.Notebooks = list

	if previous != s.state.ActiveTab {
		logger.WithField("notebooks", len(list)).Debugf("active tab %q -> %q", previous, s.state.ActiveTab)
	}
	s.publishLocked()
}

// SetBaseURL records the viewer root. Setting the same value again is a no-op.
func (s *Store) SetBaseURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.BaseURL == url {
		return
	}
	s.state.BaseURL = url
	s.publishLocked()
}

func (s *Store) publishLocked() {
	s.state.Version++
	s.bus.Publish(s.state.Clone())
}

func firstContact(list []model.Notebook, welcome string) string {
	if model.IndexOf(list, welcome) >= 0 {
		return welcome
	}
	return firstName(list)
}

// reconcile keeps the current selection unless it disappeared.
func reconcile(list []model.Notebook, current string) string {
	if current != "" && model.IndexOf(list, current) >= 0 {
		return current
	}
	return firstName(list)
}

func firstName(list []model.Notebook) string {
	if len(list) == 0 {
		return ""
	}
	return list[0].Name
}
