package notebook

import (
	"testing"
	"time"

	"kitsune-client/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func notebooks(names ...string) []model.Notebook {
	out := make([]model.Notebook, 0, len(names))
	for _, n := range names {
		out = append(out, model.Notebook{Name: n, Path: "/srv/notebooks/" + n + ".py"})
	}
	return out
}

// waitFor blocks until an observed state satisfies cond.
func waitFor(t *testing.T, s *Store, cond func(model.RegistryState) bool) model.RegistryState {
	t.Helper()

	ch := make(chan model.RegistryState, 1)
	unsubscribe := s.Subscribe(func(st model.RegistryState) {
		for {
			select {
			case ch <- st:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	})
	defer unsubscribe()

	if st := s.State(); cond(st) {
		return st
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if cond(st) {
				return st
			}
		case <-deadline:
			t.Fatalf("condition not reached, last state %+v", s.State())
			return model.RegistryState{}
		}
	}
}

func TestFirstSnapshotPrefersWelcome(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("A", "Welcome", "B"))

	st := s.State()
	assert.Equal(t, "Welcome", st.ActiveTab)
	assert.Len(t, st.Notebooks, 3)
}

func TestFirstSnapshotWithoutWelcomePicksFirst(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("A", "B"))
	assert.Equal(t, "A", s.State().ActiveTab)
}

func TestEmptyFirstSnapshotLeavesNoActiveTab(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(nil)

	st := s.State()
	assert.False(t, st.HasActiveTab())
	assert.Empty(t, st.Notebooks)
	assert.Equal(t, uint64(1), st.Version)
}

func TestCustomWelcomeName(t *testing.T) {
	s := NewStore("Start")
	s.ApplySnapshot(notebooks("Welcome", "Start"))
	assert.Equal(t, "Start", s.State().ActiveTab)
}

func TestLaterSnapshotKeepsSelection(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("Welcome", "A"))
	require.True(t, s.SetActiveTab("A"))

	s.ApplySnapshot(notebooks("A", "C", "Welcome"))
	assert.Equal(t, "A", s.State().ActiveTab)
}

func TestLaterSnapshotDoesNotReapplyWelcome(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("A"))
	require.Equal(t, "A", s.State().ActiveTab)

	s.ApplySnapshot(notebooks("B", "Welcome"))
	assert.Equal(t, "B", s.State().ActiveTab, "vanished selection falls back to the first entry")
}

func TestSelectionClearedWhenRegistryEmpties(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("A"))
	s.ApplySnapshot(nil)
	assert.False(t, s.State().HasActiveTab())

	s.ApplySnapshot(notebooks("Welcome", "B"))
	assert.Equal(t, "Welcome", s.State().ActiveTab)
}

func TestActiveTabAlwaysNamesANotebook(t *testing.T) {
	s := NewStore("")
	snapshots := [][]model.Notebook{
		notebooks("Welcome", "A"),
		notebooks("A"),
		notebooks(),
		notebooks("X", "Y"),
		notebooks("Y"),
		notebooks("Welcome"),
	}
	for _, snap := range snapshots {
		s.ApplySnapshot(snap)
		st := s.State()
		if len(st.Notebooks) == 0 {
			assert.False(t, st.HasActiveTab())
			continue
		}
		assert.True(t, st.Contains(st.ActiveTab), "active %q not in %v", st.ActiveTab, st.Notebooks)
	}
}

func TestSetActiveTab(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("Welcome", "A"))
	before := s.State().Version

	assert.False(t, s.SetActiveTab("missing"))
	assert.Equal(t, "Welcome", s.State().ActiveTab)
	assert.Equal(t, before, s.State().Version)

	assert.True(t, s.SetActiveTab("Welcome"))
	assert.Equal(t, before, s.State().Version, "reselecting is not a change")

	assert.True(t, s.SetActiveTab("A"))
	assert.Equal(t, "A", s.State().ActiveTab)
	assert.Equal(t, before+1, s.State().Version)
}

func TestSetBaseURL(t *testing.T) {
	s := NewStore("")
	s.SetBaseURL("http://localhost:2718")
	s.SetBaseURL("http://localhost:2718")

	st := s.State()
	assert.Equal(t, "http://localhost:2718", st.BaseURL)
	assert.Equal(t, uint64(1), st.Version)
}

func TestStateIsACopy(t *testing.T) {
	s := NewStore("")
	s.ApplySnapshot(notebooks("A", "B"))

	st := s.State()
	st.Notebooks[0].Name = "mutated"
	assert.Equal(t, "A", s.State().Notebooks[0].Name)
}

func TestObserversSeeLatestState(t *testing.T) {
	s := NewStore("")

	seen := make(chan model.RegistryState, 64)
	unsubscribe := s.Subscribe(func(st model.RegistryState) { seen <- st })
	defer unsubscribe()

	for i := 0; i < 50; i++ {
		s.ApplySnapshot(notebooks("A", "B"))
	}
	s.SetBaseURL("http://viewer")

	var last uint64
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-seen:
			assert.Greater(t, st.Version, last, "versions must increase")
			last = st.Version
			if st.HasBaseURL() {
				assert.Equal(t, uint64(51), st.Version)
				assert.Equal(t, "A", st.ActiveTab)
				return
			}
		case <-deadline:
			t.Fatal("observer never saw the final state")
		}
	}
}
