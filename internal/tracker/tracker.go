package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/runnerr0/dwell/internal/ledger"
	"github.com/runnerr0/dwell/internal/logfields"
	"github.com/runnerr0/dwell/internal/metrics"
)

// DefaultAlarmName is the name of the periodic flush alarm.
const DefaultAlarmName = "saveData"

// maxPending bounds the intervals kept in memory while the ledger is failing.
const maxPending = 1024

// Environment answers which navigable surface is active right now.
type Environment interface {
	// ActiveURL returns the URL of the focused tab. ok is false when there
	// is no active surface.
	ActiveURL(ctx context.Context) (rawURL string, ok bool, err error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source. Tests use a clockwork fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLocation sets the time zone that decides day keys. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithAlarmName sets the alarm name that triggers a periodic commit.
func WithAlarmName(name string) Option {
	return func(t *Tracker) { t.SetAlarmName(name) }
}

// Tracker is the activity state machine. It decides which domain is active
// and accounts elapsed time into the ledger. All methods are safe for
// concurrent use; each runs to completion before the next begins.
type Tracker struct {
	store    ledger.Store
	env      Environment
	resolver *Resolver

	clock     clockwork.Clock
	loc       *time.Location
	recorder  metrics.Recorder
	logger    *slog.Logger
	alarmName atomic.Pointer[string]

	mu      sync.Mutex
	session Session
	pending []interval
}

// New creates an idle Tracker. Nothing is tracked until the first Reevaluate.
func New(store ledger.Store, env Environment, resolver *Resolver, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		env:      env,
		resolver: resolver,
		clock:    clockwork.NewRealClock(),
		loc:      time.Local,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	t.SetAlarmName(DefaultAlarmName)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetAlarmName changes the alarm name that triggers a periodic commit.
// Alarms with any other name are ignored from then on.
func (t *Tracker) SetAlarmName(name string) {
	t.alarmName.Store(&name)
}

// AlarmName returns the alarm name that triggers a periodic commit.
func (t *Tracker) AlarmName() string {
	return *t.alarmName.Load()
}

// Session returns a copy of the current session.
func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Pending returns the number of ended intervals still waiting to be written
// to the ledger.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Commit writes the time elapsed since the session started to the ledger and
// restarts the interval at now. Tracking continues. It is a no-op when
// nothing is tracked, and commits zero when no time has passed.
//
// On a ledger failure StartedAt only moves past what was written, so the
// remainder is retried by the next commit.
func (t *Tracker) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.flushPendingLocked(ctx)
	return t.commitLocked(ctx, now)
}

// Reevaluate commits the current session, asks the environment for the
// active surface and starts tracking its domain, or stops when nothing
// trackable is active.
func (t *Tracker) Reevaluate(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.flushPendingLocked(ctx)
	commitErr := t.closeSessionLocked(ctx, now)

	rawURL, ok, err := t.env.ActiveURL(ctx)
	switch {
	case err != nil:
		t.logger.Warn("Active surface query failed, stopped tracking", logfields.Error(err))
		t.setSessionLocked(Session{})
		return commitErr
	case !ok:
		t.logger.Debug("Stopped tracking: no active tab")
		t.setSessionLocked(Session{})
		return commitErr
	}

	domain, ok := t.resolver.Resolve(rawURL)
	if !ok {
		t.logger.Debug("Stopped tracking: untracked page", logfields.URL(rawURL))
		t.setSessionLocked(Session{})
		return commitErr
	}

	t.setSessionLocked(Session{Domain: domain, StartedAt: now})
	t.logger.Debug("Started tracking", logfields.Domain(domain))
	return commitErr
}

// StopAndCommit commits the current session and stops tracking without
// looking up a new domain. Used when the browser loses focus or the user
// goes idle.
func (t *Tracker) StopAndCommit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.flushPendingLocked(ctx)
	if !t.session.Tracking() {
		return nil
	}
	err := t.closeSessionLocked(ctx, now)
	t.logger.Debug("Stopped tracking", logfields.Domain(t.session.Domain))
	t.setSessionLocked(Session{})
	return err
}

// Shutdown stops tracking and writes whatever is still pending. Intervals
// that cannot be written by now are reported and lost with the process.
func (t *Tracker) Shutdown(ctx context.Context) error {
	err := t.StopAndCommit(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) > 0 {
		var lost float64
		for _, iv := range t.pending {
			lost += iv.end.Sub(iv.start).Seconds()
		}
		t.logger.Error("Uncommitted time lost at shutdown",
			"intervals", len(t.pending),
			logfields.Seconds(lost))
	}
	return err
}

// closeSessionLocked commits the session up to now. Whatever could not be
// written is kept as a pending interval so switching domains neither loses
// it nor hands it to the next domain.
func (t *Tracker) closeSessionLocked(ctx context.Context, now time.Time) error {
	if !t.session.Tracking() {
		return nil
	}
	err := t.commitLocked(ctx, now)
	if err != nil && now.After(t.session.StartedAt) {
		t.deferLocked(interval{domain: t.session.Domain, start: t.session.StartedAt, end: now})
	}
	return err
}

func (t *Tracker) commitLocked(ctx context.Context, now time.Time) error {
	if !t.session.Tracking() {
		return nil
	}

	if now.Before(t.session.StartedAt) {
		t.logger.Warn("Clock moved backwards, restarting interval",
			logfields.Domain(t.session.Domain),
			logfields.Duration(t.session.StartedAt.Sub(now)))
		t.session.StartedAt = now
		return nil
	}

	until, err := t.writeInterval(ctx, interval{domain: t.session.Domain, start: t.session.StartedAt, end: now})
	t.session.StartedAt = until
	return err
}

// writeInterval merges iv into the ledger, split at local midnight so each
// day receives only its own share. It returns how far the interval was
// written.
func (t *Tracker) writeInterval(ctx context.Context, iv interval) (time.Time, error) {
	start := iv.start
	if !iv.end.After(start) {
		day := ledger.DayKey(start.In(t.loc))
		if err := t.store.Merge(ctx, day, iv.domain, 0); err != nil {
			return t.commitFailed(iv.domain, day, start, err)
		}
		t.recorder.IncCommit(metrics.CommitSuccess)
		return iv.end, nil
	}

	for iv.end.After(start) {
		local := start.In(t.loc)
		segEnd := iv.end
		if boundary := ledger.StartOfNextDay(local); boundary.Before(segEnd) {
			segEnd = boundary
		}

		day := ledger.DayKey(local)
		delta := segEnd.Sub(start).Seconds()
		if err := t.store.Merge(ctx, day, iv.domain, delta); err != nil {
			return t.commitFailed(iv.domain, day, start, err)
		}

		t.recorder.IncCommit(metrics.CommitSuccess)
		t.recorder.AddCommittedSeconds(delta)
		t.logger.Debug("Committed time",
			logfields.Domain(iv.domain),
			logfields.Day(day),
			logfields.Seconds(delta))
		start = segEnd
	}
	return iv.end, nil
}

func (t *Tracker) commitFailed(domain, day string, committedUntil time.Time, err error) (time.Time, error) {
	t.recorder.IncCommit(metrics.CommitFailed)
	t.logger.Error("Ledger commit failed",
		logfields.Domain(domain),
		logfields.Day(day),
		logfields.Error(err))
	return committedUntil, err
}

func (t *Tracker) deferLocked(iv interval) {
	if len(t.pending) >= maxPending {
		dropped := t.pending[0]
		t.logger.Error("Dropping uncommitted interval, ledger unavailable too long",
			logfields.Domain(dropped.domain),
			logfields.Seconds(dropped.end.Sub(dropped.start).Seconds()))
		t.pending = t.pending[1:]
	}
	t.pending = append(t.pending, iv)
}

// flushPendingLocked retries intervals left behind by failed commits.
func (t *Tracker) flushPendingLocked(ctx context.Context) {
	for len(t.pending) > 0 {
		iv := t.pending[0]
		until, err := t.writeInterval(ctx, iv)
		if err != nil {
			t.pending[0].start = until
			return
		}
		t.pending = t.pending[1:]
	}
}

func (t *Tracker) setSessionLocked(s Session) {
	t.session = s
	t.recorder.SetTracking(s.Tracking())
}
