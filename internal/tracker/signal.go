package tracker

import (
	"context"
	"fmt"
)

// Kind identifies an environment signal.
type Kind string

const (
	KindStartup            Kind = "startup"
	KindTabActivated       Kind = "tab_activated"
	KindTabUpdated         Kind = "tab_updated"
	KindTabRemoved         Kind = "tab_removed"
	KindWindowFocusChanged Kind = "window_focus_changed"
	KindIdleStateChanged   Kind = "idle_state_changed"
	KindAlarm              Kind = "alarm"
)

// WindowNone is the window id reported when no browser window has focus.
const WindowNone = -1

// IdleState is the user's input state as reported by the browser.
type IdleState string

const (
	IdleActive IdleState = "active"
	IdleIdle   IdleState = "idle"
	IdleLocked IdleState = "locked"
)

// Signal is one environment notification.
type Signal struct {
	Kind Kind

	// window_focus_changed
	WindowID int

	// tab_updated: the navigation finished loading in the active tab.
	Complete bool
	Active   bool

	// idle_state_changed
	IdleState IdleState

	// alarm
	AlarmName string
}

// Handle maps a signal onto the tracker operation it triggers.
func (t *Tracker) Handle(ctx context.Context, sig Signal) error {
	t.recorder.IncSignal(string(sig.Kind))

	switch sig.Kind {
	case KindStartup, KindTabActivated, KindTabRemoved:
		return t.Reevaluate(ctx)

	case KindTabUpdated:
		if sig.Complete && sig.Active {
			return t.Reevaluate(ctx)
		}
		return nil

	case KindWindowFocusChanged:
		if sig.WindowID == WindowNone {
			t.logger.Debug("Browser lost focus")
			return t.StopAndCommit(ctx)
		}
		return t.Reevaluate(ctx)

	case KindIdleStateChanged:
		switch sig.IdleState {
		case IdleActive:
			return t.Reevaluate(ctx)
		case IdleIdle, IdleLocked:
			t.logger.Debug("User idle", "state", string(sig.IdleState))
			return t.StopAndCommit(ctx)
		default:
			return fmt.Errorf("unknown idle state %q", sig.IdleState)
		}

	case KindAlarm:
		if sig.AlarmName != t.AlarmName() {
			return nil
		}
		return t.Commit(ctx)

	default:
		return fmt.Errorf("unknown signal kind %q", sig.Kind)
	}
}
