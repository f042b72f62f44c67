package view

import (
	"sync"
	"testing"
	"time"

	"kitsune-client/internal/model"
	"kitsune-client/internal/notebook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		name  string
		state model.RegistryState
		want  string
		ok    bool
	}{
		{
			name:  "both present",
			state: model.RegistryState{BaseURL: "http://localhost:2718", ActiveTab: "Welcome"},
			want:  "http://localhost:2718/?file=Welcome.py",
			ok:    true,
		},
		{
			name:  "trailing slash on base",
			state: model.RegistryState{BaseURL: "http://localhost:2718/", ActiveTab: "Draft"},
			want:  "http://localhost:2718/?file=Draft.py",
			ok:    true,
		},
		{
			name:  "name needing escape",
			state: model.RegistryState{BaseURL: "http://viewer", ActiveTab: "Sales Q3&Q4"},
			want:  "http://viewer/?file=Sales+Q3%26Q4.py",
			ok:    true,
		},
		{
			name:  "space becomes plus",
			state: model.RegistryState{BaseURL: "http://viewer", ActiveTab: "my notebook"},
			want:  "http://viewer/?file=my+notebook.py",
			ok:    true,
		},
		{
			name:  "slash and plus are escaped",
			state: model.RegistryState{BaseURL: "http://viewer", ActiveTab: "a/b+c"},
			want:  "http://viewer/?file=a%2Fb%2Bc.py",
			ok:    true,
		},
		{
			name:  "no base url",
			state: model.RegistryState{ActiveTab: "Welcome"},
		},
		{
			name:  "no active tab",
			state: model.RegistryState{BaseURL: "http://viewer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Address(tt.state, "")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressIgnoresOtherFields(t *testing.T) {
	a := model.RegistryState{
		BaseURL:   "http://viewer",
		ActiveTab: "A",
		Notebooks: []model.Notebook{{Name: "A"}},
		Version:   3,
	}
	b := a
	b.Notebooks = []model.Notebook{{Name: "Z"}, {Name: "A", Path: "/elsewhere"}}
	b.Version = 99

	addrA, _ := Address(a, ".py")
	addrB, _ := Address(b, ".py")
	assert.Equal(t, addrA, addrB)
}

func TestCompose(t *testing.T) {
	state := model.RegistryState{
		BaseURL:   "http://viewer",
		ActiveTab: "B",
		Notebooks: []model.Notebook{{Name: "A"}, {Name: "B"}, {Name: "C"}},
	}

	p := Compose(state, "")
	assert.True(t, p.Ready)
	assert.Equal(t, "http://viewer/?file=B.py", p.Address)
	assert.Equal(t, "B", p.Title)
	assert.Equal(t, []Tab{{Name: "A"}, {Name: "B", Active: true}, {Name: "C"}}, p.Tabs)
}

func TestComposeLoading(t *testing.T) {
	p := Compose(model.RegistryState{}, "")
	assert.False(t, p.Ready)
	assert.Empty(t, p.Address)
	assert.Equal(t, DefaultTitle, p.Title)
	assert.Empty(t, p.Tabs)
}

type recordingViewer struct {
	mu     sync.Mutex
	events []string
}

func (v *recordingViewer) Mount(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, "mount "+addr)
}

func (v *recordingViewer) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, "unmount")
}

func (v *recordingViewer) Events() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.events...)
}

func TestMounterRemountsOnlyOnAddressChange(t *testing.T) {
	v := &recordingViewer{}
	m := NewMounter(v, ".py")

	base := model.RegistryState{BaseURL: "http://viewer", ActiveTab: "A", Version: 1}
	m.Update(base)

	more := base
	more.Notebooks = []model.Notebook{{Name: "A"}, {Name: "B"}}
	more.Version = 2
	m.Update(more)

	switched := more
	switched.ActiveTab = "B"
	switched.Version = 3
	m.Update(switched)

	stale := base
	m.Update(stale)

	empty := model.RegistryState{BaseURL: "http://viewer", Version: 4}
	m.Update(empty)

	assert.Equal(t, []string{
		"mount http://viewer/?file=A.py",
		"mount http://viewer/?file=B.py",
		"unmount",
	}, v.Events())
	assert.Empty(t, m.Current())
}

func TestMounterFollowsStore(t *testing.T) {
	store := notebook.NewStore("")
	store.SetBaseURL("http://viewer")

	v := &recordingViewer{}
	m := NewMounter(v, "")
	detach := m.Attach(store.State(), store.Subscribe)
	defer detach()

	store.ApplySnapshot([]model.Notebook{{Name: "Draft"}, {Name: "Welcome"}})
	require.Eventually(t, func() bool {
		return m.Current() == "http://viewer/?file=Welcome.py"
	}, 2*time.Second, time.Millisecond)

	store.ApplySnapshot([]model.Notebook{{Name: "Draft"}, {Name: "Welcome"}, {Name: "New"}})
	require.True(t, store.SetActiveTab("Draft"))
	require.Eventually(t, func() bool {
		return m.Current() == "http://viewer/?file=Draft.py"
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []string{
		"mount http://viewer/?file=Welcome.py",
		"mount http://viewer/?file=Draft.py",
	}, v.Events())
}
