package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// fakeEnv is a controllable active-surface source.
type fakeEnv struct {
	mu  sync.Mutex
	url string
	ok  bool
	err error
}

func (e *fakeEnv) set(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.url, e.ok, e.err = url, url != "", nil
}

func (e *fakeEnv) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

func (e *fakeEnv) ActiveURL(context.Context) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url, e.ok, e.err
}

type merge struct {
	day, domain string
	delta       float64
}

// spyStore records merges and can be told to fail them.
type spyStore struct {
	ledger.Store

	mu      sync.Mutex
	merges  []merge
	failing bool
}

func (s *spyStore) Merge(ctx context.Context, day, domain string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.merges = append(s.merges, merge{day, domain, delta})
	return s.Store.Merge(ctx, day, domain, delta)
}

func (s *spyStore) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *spyStore) recorded() []merge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]merge(nil), s.merges...)
}

type fixture struct {
	tracker *Tracker
	clock   *clockwork.FakeClock
	env     *fakeEnv
	store   *spyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := ledger.Open(":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlStore, err := ledger.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	f := &fixture{
		clock: clockwork.NewFakeClockAt(t0),
		env:   &fakeEnv{},
		store: &spyStore{Store: sqlStore},
	}
	resolver := NewResolver(config.DefaultIgnoredSchemes(), []string{"bank.example"})
	f.tracker = New(f.store, f.env, resolver,
		WithClock(f.clock),
		WithLocation(time.UTC))
	return f
}

func (f *fixture) total(t *testing.T, day, domain string) float64 {
	t.Helper()
	snap, err := f.store.Get(context.Background(), []string{day})
	require.NoError(t, err)
	return snap.Day(day)[domain]
}

func TestReevaluate_StartsTrackingResolvedDomain(t *testing.T) {
	f := newFixture(t)
	f.env.set("https://Example.COM/path?q=1")

	require.NoError(t, f.tracker.Reevaluate(context.Background()))

	s := f.tracker.Session()
	assert.Equal(t, "example.com", s.Domain)
	assert.Equal(t, t0, s.StartedAt)
	assert.True(t, s.Tracking())
}

func TestReevaluate_StopsOnUntrackablePages(t *testing.T) {
	urls := map[string]string{
		"no active tab":  "",
		"internal page":  "chrome://settings",
		"extension page": "chrome-extension://abcdef/popup.html",
		"about page":     "about:blank",
		"denylisted":     "https://www.bank.example/login",
		"malformed":      "http://[::1",
	}

	for name, u := range urls {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.env.set("https://example.com")
			require.NoError(t, f.tracker.Reevaluate(ctx))

			f.clock.Advance(10 * time.Second)
			f.env.set(u)
			require.NoError(t, f.tracker.Reevaluate(ctx))

			assert.Equal(t, Session{}, f.tracker.Session())
			assert.InDelta(t, 10.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
		})
	}
}

func TestReevaluate_QueryErrorStopsTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(5 * time.Second)
	f.env.fail(errors.New("no browser"))
	require.NoError(t, f.tracker.Reevaluate(ctx))

	assert.False(t, f.tracker.Session().Tracking())
	assert.InDelta(t, 5.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
}

func TestCommit_NoopWhenNotTracking(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tracker.Commit(context.Background()))
	assert.Empty(t, f.store.recorded())
}

func TestCommit_ContinuesTrackingAndResetsStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(90*time.Second + 500*time.Millisecond)
	require.NoError(t, f.tracker.Commit(ctx))

	s := f.tracker.Session()
	assert.Equal(t, "example.com", s.Domain)
	assert.Equal(t, t0.Add(90*time.Second+500*time.Millisecond), s.StartedAt)
	assert.InDelta(t, 90.5, f.total(t, "2024-01-01", "example.com"), 1e-9)
}

func TestCommit_SecondImmediateCommitIsZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(42 * time.Second)
	require.NoError(t, f.tracker.Commit(ctx))
	require.NoError(t, f.tracker.Commit(ctx))

	merges := f.store.recorded()
	require.Len(t, merges, 2)
	assert.InDelta(t, 42.0, merges[0].delta, 1e-9)
	assert.Zero(t, merges[1].delta)
	assert.InDelta(t, 42.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
}

func TestSwitchingDomains_CommitsOneIntervalEach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.env.set("https://a.example")
	require.NoError(t, f.tracker.Reevaluate(ctx))
	f.clock.Advance(20 * time.Second)

	f.env.set("https://b.example")
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindTabActivated}))

	merges := f.store.recorded()
	require.Len(t, merges, 1)
	assert.Equal(t, merge{"2024-01-01", "a.example", 20}, merges[0])

	s := f.tracker.Session()
	assert.Equal(t, "b.example", s.Domain)
	assert.Equal(t, t0.Add(20*time.Second), s.StartedAt)

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.tracker.Commit(ctx))
	assert.InDelta(t, 20.0, f.total(t, "2024-01-01", "a.example"), 1e-9)
	assert.InDelta(t, 30.0, f.total(t, "2024-01-01", "b.example"), 1e-9)
}

func TestFocusLossAndRegain_ExcludesGap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindStartup}))

	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindWindowFocusChanged, WindowID: WindowNone}))
	assert.False(t, f.tracker.Session().Tracking())

	f.clock.Advance(time.Hour)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindWindowFocusChanged, WindowID: 7}))
	assert.Equal(t, t0.Add(time.Hour+10*time.Second), f.tracker.Session().StartedAt)

	f.clock.Advance(15 * time.Second)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindAlarm, AlarmName: DefaultAlarmName}))

	merges := f.store.recorded()
	require.Len(t, merges, 2)
	assert.InDelta(t, 10.0, merges[0].delta, 1e-9)
	assert.InDelta(t, 15.0, merges[1].delta, 1e-9)
	assert.InDelta(t, 25.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
}

func TestIdleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(60 * time.Second)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindIdleStateChanged, IdleState: IdleIdle}))
	assert.False(t, f.tracker.Session().Tracking())

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindIdleStateChanged, IdleState: IdleActive}))
	assert.True(t, f.tracker.Session().Tracking())

	f.clock.Advance(5 * time.Second)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindIdleStateChanged, IdleState: IdleLocked}))
	assert.False(t, f.tracker.Session().Tracking())

	assert.InDelta(t, 65.0, f.total(t, "2024-01-01", "example.com"), 1e-9)

	err := f.tracker.Handle(ctx, Signal{Kind: KindIdleStateChanged, IdleState: "sleepy"})
	assert.Error(t, err)
}

func TestStopAndCommit_NoopWhenNotTracking(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tracker.StopAndCommit(context.Background()))
	assert.Empty(t, f.store.recorded())
}

func TestHandle_TabUpdatedOnlyWhenCompleteAndActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")

	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindTabUpdated, Complete: false, Active: true}))
	assert.False(t, f.tracker.Session().Tracking())

	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindTabUpdated, Complete: true, Active: false}))
	assert.False(t, f.tracker.Session().Tracking())

	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindTabUpdated, Complete: true, Active: true}))
	assert.Equal(t, "example.com", f.tracker.Session().Domain)
}

func TestHandle_IgnoresForeignAlarms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(time.Minute)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindAlarm, AlarmName: "somethingElse"}))
	assert.Empty(t, f.store.recorded())

	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindAlarm, AlarmName: DefaultAlarmName}))
	assert.Len(t, f.store.recorded(), 1)
}

func TestHandle_UnknownKind(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.tracker.Handle(context.Background(), Signal{Kind: "bogus"}))
}

func TestCommit_FailureKeepsStartForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(time.Minute)
	f.store.setFailing(true)
	require.Error(t, f.tracker.Commit(ctx))
	assert.Equal(t, t0, f.tracker.Session().StartedAt)

	f.clock.Advance(time.Minute)
	f.store.setFailing(false)
	require.NoError(t, f.tracker.Commit(ctx))

	assert.InDelta(t, 120.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
	assert.Equal(t, t0.Add(2*time.Minute), f.tracker.Session().StartedAt)
}

func TestSwitch_FailedCommitIsNotGivenToNextDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://a.example")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(40 * time.Second)
	f.store.setFailing(true)
	f.env.set("https://b.example")
	assert.Error(t, f.tracker.Reevaluate(ctx))

	s := f.tracker.Session()
	assert.Equal(t, "b.example", s.Domain)
	assert.Equal(t, t0.Add(40*time.Second), s.StartedAt)
	assert.Equal(t, 1, f.tracker.Pending())

	f.clock.Advance(20 * time.Second)
	f.store.setFailing(false)
	require.NoError(t, f.tracker.Commit(ctx))

	assert.Zero(t, f.tracker.Pending())
	assert.InDelta(t, 40.0, f.total(t, "2024-01-01", "a.example"), 1e-9)
	assert.InDelta(t, 20.0, f.total(t, "2024-01-01", "b.example"), 1e-9)
}

func TestStopAndCommit_FailureKeepsPendingInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(30 * time.Second)
	f.store.setFailing(true)
	assert.Error(t, f.tracker.StopAndCommit(ctx))
	assert.False(t, f.tracker.Session().Tracking())
	assert.Equal(t, 1, f.tracker.Pending())

	f.clock.Advance(time.Minute)
	f.store.setFailing(false)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindAlarm, AlarmName: DefaultAlarmName}))

	assert.Zero(t, f.tracker.Pending())
	assert.InDelta(t, 30.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
}

func TestCommit_SplitsAtMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Advance(13*time.Hour + 59*time.Minute) // 23:59
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(3 * time.Minute) // 00:02 next day
	require.NoError(t, f.tracker.Commit(ctx))

	assert.InDelta(t, 60.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
	assert.InDelta(t, 120.0, f.total(t, "2024-01-02", "example.com"), 1e-9)
}

func TestCommit_UsesConfiguredLocationForDayKey(t *testing.T) {
	f := newFixture(t)
	f.tracker.loc = time.FixedZone("UTC+14", 14*3600) // 10:00 UTC is 00:00 next day
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(time.Minute)
	require.NoError(t, f.tracker.Commit(ctx))

	assert.InDelta(t, 60.0, f.total(t, "2024-01-02", "example.com"), 1e-9)
}

func TestCommit_ClockMovingBackwardsCommitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.tracker.clock = clockwork.NewFakeClockAt(t0.Add(-time.Hour))
	require.NoError(t, f.tracker.Commit(ctx))

	assert.Empty(t, f.store.recorded())
	assert.Equal(t, t0.Add(-time.Hour), f.tracker.Session().StartedAt)
}

func TestSessionInvariant_HoldsAcrossSignals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sequence := []struct {
		url string
		sig Signal
	}{
		{"https://a.example", Signal{Kind: KindStartup}},
		{"https://b.example", Signal{Kind: KindTabActivated}},
		{"chrome://newtab", Signal{Kind: KindTabUpdated, Complete: true, Active: true}},
		{"https://c.example", Signal{Kind: KindWindowFocusChanged, WindowID: 3}},
		{"https://c.example", Signal{Kind: KindIdleStateChanged, IdleState: IdleIdle}},
		{"https://c.example", Signal{Kind: KindAlarm, AlarmName: DefaultAlarmName}},
		{"https://d.example", Signal{Kind: KindIdleStateChanged, IdleState: IdleActive}},
		{"https://d.example", Signal{Kind: KindAlarm, AlarmName: DefaultAlarmName}},
		{"", Signal{Kind: KindTabRemoved}},
	}

	for _, step := range sequence {
		f.env.set(step.url)
		require.NoError(t, f.tracker.Handle(ctx, step.sig))
		s := f.tracker.Session()
		assert.Equal(t, s.Domain == "", s.StartedAt.IsZero(), "after %s", step.sig.Kind)
		f.clock.Advance(10 * time.Second)
	}

	// a, b: 10s each; newtab untracked; c: 10s until idle; d: 10s to alarm + 10s to removal
	assert.InDelta(t, 10.0, f.total(t, "2024-01-01", "a.example"), 1e-9)
	assert.InDelta(t, 10.0, f.total(t, "2024-01-01", "b.example"), 1e-9)
	assert.InDelta(t, 10.0, f.total(t, "2024-01-01", "c.example"), 1e-9)
	assert.InDelta(t, 20.0, f.total(t, "2024-01-01", "d.example"), 1e-9)
}

func TestShutdown_CommitsOpenSessionAndPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://a.example")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(10 * time.Second)
	f.store.setFailing(true)
	f.env.set("https://b.example")
	assert.Error(t, f.tracker.Reevaluate(ctx))
	require.Equal(t, 1, f.tracker.Pending())

	f.clock.Advance(5 * time.Second)
	f.store.setFailing(false)
	require.NoError(t, f.tracker.Shutdown(ctx))

	assert.False(t, f.tracker.Session().Tracking())
	assert.Zero(t, f.tracker.Pending())
	assert.InDelta(t, 10.0, f.total(t, "2024-01-01", "a.example"), 1e-9)
	assert.InDelta(t, 5.0, f.total(t, "2024-01-01", "b.example"), 1e-9)
}

func TestShutdown_ReportsLostTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://a.example")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.clock.Advance(10 * time.Second)
	f.store.setFailing(true)
	assert.Error(t, f.tracker.Shutdown(ctx))
	assert.Equal(t, 1, f.tracker.Pending())
	assert.False(t, f.tracker.Session().Tracking())
}

func TestHandle_AlarmNameCanChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.set("https://example.com")
	require.NoError(t, f.tracker.Reevaluate(ctx))

	f.tracker.SetAlarmName("flush")
	assert.Equal(t, "flush", f.tracker.AlarmName())

	f.clock.Advance(time.Minute)
	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindAlarm, AlarmName: DefaultAlarmName}))
	assert.Empty(t, f.store.recorded(), "the old name no longer commits")

	require.NoError(t, f.tracker.Handle(ctx, Signal{Kind: KindAlarm, AlarmName: "flush"}))
	assert.InDelta(t, 60.0, f.total(t, "2024-01-01", "example.com"), 1e-9)
}

func TestPending_EvictsOldestWhenFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	site := func(i int) string { return fmt.Sprintf("site%04d.example", i) }

	f.env.set("https://" + site(0))
	require.NoError(t, f.tracker.Reevaluate(ctx))
	f.store.setFailing(true)

	// one more failed switch than the buffer holds
	for i := 1; i <= maxPending+1; i++ {
		f.clock.Advance(time.Second)
		f.env.set("https://" + site(i))
		assert.Error(t, f.tracker.Reevaluate(ctx))
	}

	require.Equal(t, maxPending, f.tracker.Pending())
	f.tracker.mu.Lock()
	first, last := f.tracker.pending[0].domain, f.tracker.pending[maxPending-1].domain
	f.tracker.mu.Unlock()
	assert.Equal(t, site(1), first, "the oldest interval is dropped")
	assert.Equal(t, site(maxPending), last)

	f.store.setFailing(false)
	require.NoError(t, f.tracker.Commit(ctx))
	assert.Zero(t, f.tracker.Pending())

	assert.Zero(t, f.total(t, "2024-01-01", site(0)))
	assert.InDelta(t, 1.0, f.total(t, "2024-01-01", site(1)), 1e-9)
	assert.InDelta(t, 1.0, f.total(t, "2024-01-01", site(maxPending)), 1e-9)
}
