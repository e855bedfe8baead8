package instrumentation

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/ChronoJS/pkg/guest/memheap"
	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fixture struct {
	session *Session
	tl      *timeline.Timeline
	metrics *metrics.Collector
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, capacity int, opts ...Option) fixture {
	t.Helper()
	m := metrics.New()
	tl, err := timeline.New(capacity, timeline.WithMetrics(m))
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	clock := &fakeClock{t: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithMetrics(m),
		WithClock(clock.now),
	}
	s := NewSession(tl, value.NewSerializer(value.DefaultConfig()), append(base, opts...)...)
	return fixture{session: s, tl: tl, metrics: m, logs: logs}
}

func args(kv ...any) []recorder.Input {
	var out []recorder.Input
	for i := 0; i < len(kv); i += 2 {
		out = append(out, recorder.Live(kv[i].(string), memheap.Handle(kv[i+1])))
	}
	return out
}

func TestSessionRecordsCallLifecycle(t *testing.T) {
	f := newFixture(t, 100)
	s := f.session

	entry, err := s.OnFunctionEntry("add", args("a", 2, "b", 3))
	require.NoError(t, err)
	assert.Equal(t, recorder.ID(1), entry)
	assert.Equal(t, "add", s.CurrentFunction())
	assert.Equal(t, 1, s.Depth())

	v, err := s.OnCaptureVariable("sum", memheap.Handle(5))
	require.NoError(t, err)

	exit, err := s.OnFunctionExit("add", memheap.Handle(5), false, 0)
	require.NoError(t, err)
	assert.Equal(t, GlobalFunction, s.CurrentFunction())

	snap, err := f.tl.Get(entry)
	require.NoError(t, err)
	assert.Equal(t, recorder.FunctionEntry, snap.Kind)
	assert.Equal(t, 0, snap.Depth)
	assert.Equal(t, []string{"a", "b"}, snap.Names())

	snap, err = f.tl.Get(v)
	require.NoError(t, err)
	assert.Equal(t, "add", snap.Function)
	assert.Equal(t, 1, snap.Depth)

	snap, err = f.tl.Get(exit)
	require.NoError(t, err)
	assert.Equal(t, recorder.FunctionExit, snap.Kind)
	assert.Equal(t, 0, snap.Depth)
	ret, _ := snap.Lookup(recorder.ReturnVariable)
	assert.Equal(t, value.Number(5), ret)
	assert.Equal(t, 2*time.Millisecond, snap.Duration)
}

func TestSessionExitWithThrownError(t *testing.T) {
	f := newFixture(t, 10)
	s := f.session

	_, err := s.OnFunctionEntry("boom", nil)
	require.NoError(t, err)
	id, err := s.OnFunctionExit("boom", memheap.Handle(&memheap.Error{Name: "Error", Message: "kaboom"}), true, 7*time.Millisecond)
	require.NoError(t, err)

	snap, err := f.tl.Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{recorder.ErrorVariable}, snap.Names())
	assert.Equal(t, 7*time.Millisecond, snap.Duration)
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.CallDuration))
}

func TestSessionExitErrors(t *testing.T) {
	f := newFixture(t, 10)
	s := f.session

	_, err := s.OnFunctionExit("ghost", nil, false, 0)
	var ce *recorder.CaptureError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "call stack is empty", ce.Reason)

	_, err = s.OnFunctionEntry("main", nil)
	require.NoError(t, err)
	_, err = s.OnFunctionExit("ghost", nil, false, 0)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, s.Depth())

	_, err = s.OnFunctionEntry("", nil)
	assert.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CaptureFailures.WithLabelValues("function-exit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CaptureFailures.WithLabelValues("function-entry")))
	assert.Equal(t, 3, s.Trace().CaptureErrors)
}

func TestSessionUnwindsUnbalancedExit(t *testing.T) {
	f := newFixture(t, 10)
	s := f.session

	for _, fn := range []string{"main", "outer", "inner"} {
		_, err := s.OnFunctionEntry(fn, nil)
		require.NoError(t, err)
	}

	id, err := s.OnFunctionExit("outer", nil, true, 0)
	require.NoError(t, err)
	assert.Equal(t, "main", s.CurrentFunction())
	assert.Contains(t, f.logs.String(), "unbalanced function exit")

	snap, _ := f.tl.Get(id)
	assert.Equal(t, 1, snap.Depth)
}

func TestSessionFilter(t *testing.T) {
	f := newFixture(t, 10, WithFilter(NewFilter(FilterOptions{Enabled: true, Exclude: []string{"_..."}})))
	s := f.session

	_, err := s.OnFunctionEntry("main", nil)
	require.NoError(t, err)

	id, err := s.OnFunctionEntry("_helper", args("x", 1))
	require.NoError(t, err)
	assert.Equal(t, recorder.NoID, id)
	assert.Equal(t, "_helper", s.CurrentFunction())

	id, err = s.OnCaptureVariable("tmp", memheap.Handle(1))
	require.NoError(t, err)
	assert.Equal(t, recorder.NoID, id)

	id, err = s.OnFunctionExit("_helper", nil, false, 0)
	require.NoError(t, err)
	assert.Equal(t, recorder.NoID, id)

	assert.Equal(t, 1, f.tl.Len())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CapturesFiltered))
	assert.Equal(t, 2, s.Info().FunctionCalls)
}

func TestSessionDisabledFilterRecordsNothing(t *testing.T) {
	f := newFixture(t, 10, WithFilter(NewFilter(FilterOptions{Enabled: false})))
	s := f.session

	_, err := s.OnFunctionEntry("main", nil)
	require.NoError(t, err)
	_, err = s.OnCaptureContext("phase", memheap.Handle("startup"))
	require.NoError(t, err)
	_, err = s.OnFunctionExit("main", nil, false, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, f.tl.Len())
	assert.Equal(t, 0, s.Depth())
}

func TestSessionCaptureScopeAndContext(t *testing.T) {
	f := newFixture(t, 10)
	s := f.session

	id, err := s.OnCaptureScope("", recorder.ScopeCapture, args("a", 1, "b", "two"))
	require.NoError(t, err)
	snap, _ := f.tl.Get(id)
	assert.Equal(t, GlobalFunction, snap.Function)
	assert.Equal(t, recorder.ScopeCapture, snap.Kind)

	id, err = s.OnCaptureScope("worker", recorder.VariableCapture, args("n", 3))
	require.NoError(t, err)
	snap, _ = f.tl.Get(id)
	assert.Equal(t, "worker", snap.Function)

	id, err = s.OnCaptureContext("request", memheap.Handle(memheap.NewObject("path", "/users")))
	require.NoError(t, err)
	snap, _ = f.tl.Get(id)
	assert.Equal(t, recorder.CustomContext, snap.Kind)
	assert.Equal(t, []string{"request"}, snap.Names())

	_, err = s.OnCaptureScope("", recorder.ScopeCapture, args("a", 1, "a", 2))
	assert.Error(t, err)
}

func TestSessionCaptureScopeRejectsCallKinds(t *testing.T) {
	f := newFixture(t, 10)
	s := f.session

	for _, kind := range []recorder.Kind{recorder.FunctionEntry, recorder.FunctionExit} {
		id, err := s.OnCaptureScope("main", kind, args("a", 1))
		var ce *recorder.CaptureError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, recorder.NoID, id)
	}

	id, err := s.Fail(&recorder.CaptureError{Op: "scope-capture", Reason: "bad kind"})
	assert.Error(t, err)
	assert.Equal(t, recorder.NoID, id)

	assert.Equal(t, 0, f.tl.Len())
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CaptureFailures.WithLabelValues("scope-capture")))
	assert.Equal(t, 3, s.Trace().CaptureErrors)
}

func TestSessionRedaction(t *testing.T) {
	r, err := recorder.NewRedactor(recorder.RedactionOptions{Enabled: true, Patterns: []string{"password"}})
	require.NoError(t, err)
	f := newFixture(t, 10, WithRedactor(r))

	id, err := f.session.OnCaptureVariable("password", memheap.Handle("hunter2"))
	require.NoError(t, err)
	snap, _ := f.tl.Get(id)
	pw, _ := snap.Lookup("password")
	assert.Equal(t, value.String("***REDACTED***"), pw)
}

func TestSessionInfoAndTrace(t *testing.T) {
	f := newFixture(t, 3)
	s := f.session

	_, _ = s.OnFunctionEntry("main", nil)
	for i := 0; i < 3; i++ {
		_, _ = s.OnFunctionEntry("fib", args("n", i))
		_, _ = s.OnFunctionExit("fib", memheap.Handle(i), false, 0)
	}

	info := s.Info()
	assert.Equal(t, 3, info.TotalSnapshots)
	assert.Equal(t, 4, info.FunctionCalls)
	assert.Equal(t, "main", info.CurrentFunction)
	assert.Equal(t, 1, info.CallDepth)
	assert.Len(t, info.Recent, 3)

	tr := s.Trace()
	assert.Equal(t, s.ID().String(), tr.SessionID)
	assert.Equal(t, 4, tr.TotalCalls)
	assert.Equal(t, 2, tr.MaxCallDepth)
	assert.Equal(t, []CallCount{{Function: "fib", Calls: 3}, {Function: "main", Calls: 1}}, tr.Functions)
	assert.Equal(t, []string{"main"}, tr.ActiveCalls)
	assert.Equal(t, recorder.ID(7), tr.Timeline.Issued)
	assert.Equal(t, 4, tr.Timeline.Evicted)
}

func TestSessionsHaveDistinctIDs(t *testing.T) {
	a := newFixture(t, 1).session
	b := newFixture(t, 1).session
	assert.NotEqual(t, a.ID(), b.ID())
}
