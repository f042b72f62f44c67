// Package view derives what the embedded notebook viewer should show from
// the registry state.
package view

import (
	"net/url"
	"strings"

	"kitsune-client/internal/model"
)

const (
	DefaultSuffix = ".py"
	// DefaultTitle names the embedded document when no tab is active.
	DefaultTitle = "Marimo notebook"
)

// Address composes the viewer address for the active tab. ok is false while
// either the base URL or the active tab is missing. Equal (BaseURL,
// ActiveTab) pairs always give the identical string.
func Address(state model.RegistryState, suffix string) (addr string, ok bool) {
	if !state.HasBaseURL() || !state.HasActiveTab() {
		return "", false
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return strings.TrimRight(state.BaseURL, "/") + "/?file=" + url.QueryEscape(state.ActiveTab+suffix), true
}

type Tab struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Presentation is the render-ready view. Ready false means show the
// loading placeholder.
type Presentation struct {
	Ready   bool   `json:"ready"`
	Address string `json:"address,omitempty"`
	Title   string `json:"title"`
	Tabs    []Tab  `json:"tabs"`
}

func Compose(state model.RegistryState, suffix string) Presentation {
	addr, ok := Address(state, suffix)

	p := Presentation{
		Ready:   ok,
		Address: addr,
		Title:   DefaultTitle,
		Tabs:    make([]Tab, 0, len(state.Notebooks)),
	}
	if state.HasActiveTab() {
		p.Title = state.ActiveTab
	}
	for _, nb := range state.Notebooks {
		p.Tabs = append(p.Tabs, Tab{Name: nb.Name, Active: nb.Name == state.ActiveTab})
	}
	return p
}
