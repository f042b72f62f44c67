package model

// SessionToken is the opaque per-profile identity shared by the chat and
// notebook feeds.
type SessionToken string

func (t SessionToken) String() string {
	return string(t)
}

// Notebook is one entry of a registry snapshot. Name is the identity key.
type Notebook struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// RegistryState is the replicated notebook registry. An empty ActiveTab or
// BaseURL means absent.
type RegistryState struct {
	Notebooks []Notebook `json:"notebooks"`
	ActiveTab string     `json:"active_tab,omitempty"`
	BaseURL   string     `json:"base_url,omitempty"`
	Version   uint64     `json:"version"`
}

func (s RegistryState) HasActiveTab() bool {
	return s.ActiveTab != ""
}

func (s RegistryState) HasBaseURL() bool {
	return s.BaseURL != ""
}

// Contains reports whether name is a notebook of the snapshot.
func (s RegistryState) Contains(name string) bool {
	return IndexOf(s.Notebooks, name) >= 0
}

// Clone copies the notebook slice so the result shares nothing with s.
func (s RegistryState) Clone() RegistryState {
	out := s
	if s.Notebooks != nil {
		out.Notebooks = append([]Notebook(nil), s.Notebooks...)
	}
	return out
}

func IndexOf(notebooks []Notebook, name string) int {
	for i, nb := range notebooks {
		if nb.Name == name {
			return i
		}
	}
	return -1
}
