// Package browser mirrors the user's browser from extension events and
// answers which page is in front.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/runnerr0/dwell/internal/tracker"
)

// ErrInvalidEvent is returned for events with an unknown type or bad fields.
var ErrInvalidEvent = errors.New("invalid browser event")

// Event is one notification from the browser extension.
type Event struct {
	Type     string `json:"type"`
	TabID    int    `json:"tab_id,omitempty"`
	WindowID int    `json:"window_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Status   string `json:"status,omitempty"`
	Active   bool   `json:"active,omitempty"`
	State    string `json:"state,omitempty"`
	Name     string `json:"name,omitempty"`

	// Tabs is an optional full listing sent with startup.
	Tabs []Tab `json:"tabs,omitempty"`
}

// Tab is the last known state of a browser tab.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	Active   bool   `json:"active"`
}

// State implements tracker.Environment. The active surface is the active
// tab of the focused window. While no browser window has focus there is none.
type State struct {
	mu      sync.RWMutex
	tabs    map[int]*Tab
	focused int
	// seen is set once any window has been focused or activated.
	seen bool
}

// NewState returns an empty browser mirror with no focused window.
func NewState() *State {
	return &State{
		tabs:    map[int]*Tab{},
		focused: tracker.WindowNone,
	}
}

// Apply records ev and returns the tracker signal it maps to.
func (s *State) Apply(ev Event) (tracker.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := tracker.Kind(ev.Type)
	switch kind {
	case tracker.KindStartup:
		if ev.Tabs != nil {
			s.tabs = make(map[int]*Tab, len(ev.Tabs))
			for i := range ev.Tabs {
				tab := ev.Tabs[i]
				s.tabs[tab.ID] = &tab
			}
		}
		if ev.WindowID != 0 {
			s.focusLocked(ev.WindowID)
		}
		return tracker.Signal{Kind: kind}, nil

	case tracker.KindTabActivated:
		tab := s.tabLocked(ev.TabID, ev.WindowID)
		if ev.URL != "" {
			tab.URL = ev.URL
		}
		s.activateLocked(tab)
		// before the first focus report, the window the user switched tabs in
		// is taken as focused
		if !s.seen && tab.WindowID != 0 {
			s.focused, s.seen = tab.WindowID, true
		}
		return tracker.Signal{Kind: kind}, nil

	case tracker.KindTabUpdated:
		tab := s.tabLocked(ev.TabID, ev.WindowID)
		if ev.URL != "" {
			tab.URL = ev.URL
		}
		if ev.Active {
			s.activateLocked(tab)
		}
		return tracker.Signal{Kind: kind, Complete: ev.Status == "complete", Active: tab.Active}, nil

	case tracker.KindTabRemoved:
		delete(s.tabs, ev.TabID)
		return tracker.Signal{Kind: kind}, nil

	case tracker.KindWindowFocusChanged:
		s.focusLocked(ev.WindowID)
		return tracker.Signal{Kind: kind, WindowID: s.focused}, nil

	case tracker.KindIdleStateChanged:
		state := tracker.IdleState(ev.State)
		switch state {
		case tracker.IdleActive, tracker.IdleIdle, tracker.IdleLocked:
			return tracker.Signal{Kind: kind, IdleState: state}, nil
		}
		return tracker.Signal{}, fmt.Errorf("%w: idle state %q", ErrInvalidEvent, ev.State)

	case tracker.KindAlarm:
		if ev.Name == "" {
			return tracker.Signal{}, fmt.Errorf("%w: alarm without name", ErrInvalidEvent)
		}
		return tracker.Signal{Kind: kind, AlarmName: ev.Name}, nil
	}

	return tracker.Signal{}, fmt.Errorf("%w: type %q", ErrInvalidEvent, ev.Type)
}

// ActiveURL returns the URL of the active tab in the focused window. It
// reports none while the browser is in the background.
func (s *State) ActiveURL(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.focused == tracker.WindowNone {
		return "", false, nil
	}
	for _, tab := range s.tabs {
		if tab.WindowID == s.focused && tab.Active && tab.URL != "" {
			return tab.URL, true, nil
		}
	}
	return "", false, nil
}

// Tabs returns a copy of all known tabs.
func (s *State) Tabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tab, 0, len(s.tabs))
	for _, tab := range s.tabs {
		out = append(out, *tab)
	}
	return out
}

// FocusedWindow returns the focused window id, or tracker.WindowNone.
func (s *State) FocusedWindow() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused
}

func (s *State) focusLocked(windowID int) {
	if windowID == tracker.WindowNone || windowID == 0 {
		s.focused = tracker.WindowNone
		return
	}
	s.focused, s.seen = windowID, true
}

func (s *State) tabLocked(id, windowID int) *Tab {
	tab, ok := s.tabs[id]
	if !ok {
		tab = &Tab{ID: id, WindowID: windowID}
		s.tabs[id] = tab
	}
	if windowID != 0 {
		tab.WindowID = windowID
	}
	return tab
}

// activateLocked makes tab the only active tab of its window.
func (s *State) activateLocked(tab *Tab) {
	for _, other := range s.tabs {
		if other.WindowID == tab.WindowID {
			other.Active = false
		}
	}
	tab.Active = true
}
