// Package instrumentation turns guest capture calls into snapshots on a
// session's timeline.
package instrumentation

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/willibrandon/ChronoJS/pkg/guest"
	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

// GlobalFunction is the function name recorded for captures made outside
// any instrumented call.
const GlobalFunction = "<global>"

// RecentCount is how many summaries Info reports.
const RecentCount = 5

type frame struct {
	function string
	entered  time.Time
	recorded bool
}

// Session is one debugging session: a timeline plus the guest call stack
// that capture calls are interpreted against. It is not safe for concurrent
// use; the guest VM drives it from a single thread.
type Session struct {
	id       uuid.UUID
	timeline *timeline.Timeline
	builder  *recorder.Builder
	filter   *Filter

	stack    []frame
	calls    map[string]int
	maxDepth int
	failures int
	filtered int

	logger  *slog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

// Option configures a Session
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) {
		s.metrics = c
	}
}

// WithFilter limits which functions produce snapshots.
func WithFilter(f *Filter) Option {
	return func(s *Session) {
		s.filter = f
	}
}

// WithRedactor scrubs sensitive values before they reach the timeline.
func WithRedactor(r *recorder.Redactor) Option {
	return func(s *Session) {
		if r != nil {
			s.builder = recorder.NewBuilder(s.timeline, s.builder.Serializer(), recorder.WithRedactor(r))
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates a session recording into tl. The timeline also issues
// the snapshot ids.
func NewSession(tl *timeline.Timeline, serializer *value.Serializer, opts ...Option) *Session {
	s := &Session{
		id:       uuid.New(),
		timeline: tl,
		builder:  recorder.NewBuilder(tl, serializer),
		calls:    make(map[string]int),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id.String())
	return s
}

func (s *Session) ID() uuid.UUID                 { return s.id }
func (s *Session) Timeline() *timeline.Timeline  { return s.timeline }
func (s *Session) Serializer() *value.Serializer { return s.builder.Serializer() }

// CurrentFunction is the innermost active call, or GlobalFunction.
func (s *Session) CurrentFunction() string {
	if len(s.stack) == 0 {
		return GlobalFunction
	}
	return s.stack[len(s.stack)-1].function
}

// Depth is the number of active calls.
func (s *Session) Depth() int {
	return len(s.stack)
}

// OnFunctionEntry pushes a call and records its arguments. Filtered calls
// are tracked on the stack but return recorder.NoID.
func (s *Session) OnFunctionEntry(function string, args []recorder.Input) (recorder.ID, error) {
	op := recorder.FunctionEntry.String()
	if function == "" {
		return s.fail(&recorder.CaptureError{Op: op, Reason: "function name is empty"})
	}

	now := s.now()
	depth := len(s.stack)
	f := frame{function: function, entered: now, recorded: s.filter.Allows(function)}
	s.stack = append(s.stack, f)
	s.calls[function]++
	if len(s.stack) > s.maxDepth {
		s.maxDepth = len(s.stack)
	}

	if !f.recorded {
		return s.skip(function)
	}
	snap, err := s.builder.Build(recorder.FunctionEntry, function, args, depth, now)
	if err != nil {
		return s.fail(err)
	}
	return s.append(snap)
}

// OnFunctionExit pops the innermost call to function and records its result
// (or thrown error). An exit for a function below the top of the stack
// unwinds the calls above it. A durationHint of zero means the duration is
// measured from the entry time.
func (s *Session) OnFunctionExit(function string, result guest.Handle, threw bool, durationHint time.Duration) (recorder.ID, error) {
	op := recorder.FunctionExit.String()
	if len(s.stack) == 0 {
		return s.fail(&recorder.CaptureError{Op: op, Function: function, Reason: "call stack is empty"})
	}

	idx := -1
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].function == function {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.fail(&recorder.CaptureError{Op: op, Function: function,
			Reason: fmt.Sprintf("no active call (innermost is %s)", s.CurrentFunction())})
	}
	if unwound := len(s.stack) - 1 - idx; unwound > 0 {
		s.logger.Warn("unbalanced function exit, unwinding calls",
			"function", function, "unwound", unwound, "innermost", s.CurrentFunction())
	}

	f := s.stack[idx]
	s.stack = s.stack[:idx]

	now := s.now()
	duration := durationHint
	if duration <= 0 {
		duration = now.Sub(f.entered)
	}
	s.metrics.ObserveCallDuration(duration)

	if !f.recorded {
		return s.skip(function)
	}
	snap, err := s.builder.BuildExit(function, recorder.Live(recorder.ReturnVariable, result), threw, idx, now, duration)
	if err != nil {
		return s.fail(err)
	}
	return s.append(snap)
}

// OnCaptureVariable records one named value in the current function.
func (s *Session) OnCaptureVariable(name string, v guest.Handle) (recorder.ID, error) {
	return s.capture(recorder.VariableCapture, "", []recorder.Input{recorder.Live(name, v)})
}

// OnCaptureScope records several values at once. An empty function means
// the current function. Entry and exit snapshots only come from
// OnFunctionEntry and OnFunctionExit, which keep the call stack balanced, so
// those kinds are rejected here.
func (s *Session) OnCaptureScope(function string, kind recorder.Kind, vars []recorder.Input) (recorder.ID, error) {
	if kind == recorder.FunctionEntry || kind == recorder.FunctionExit {
		return s.fail(&recorder.CaptureError{Op: recorder.ScopeCapture.String(), Function: function,
			Reason: fmt.Sprintf("%s snapshots are recorded by function entry and exit only", kind)})
	}
	return s.capture(kind, function, vars)
}

// OnCaptureContext records free-form execution context under label.
func (s *Session) OnCaptureContext(label string, data guest.Handle) (recorder.ID, error) {
	return s.capture(recorder.CustomContext, "", []recorder.Input{recorder.Live(label, data)})
}

func (s *Session) capture(kind recorder.Kind, function string, inputs []recorder.Input) (recorder.ID, error) {
	if function == "" {
		function = s.CurrentFunction()
	}
	if !s.filter.Allows(function) {
		return s.skip(function)
	}
	snap, err := s.builder.Build(kind, function, inputs, s.Depth(), s.now())
	if err != nil {
		return s.fail(err)
	}
	return s.append(snap)
}

func (s *Session) append(snap recorder.Snapshot) (recorder.ID, error) {
	id, err := s.timeline.Append(snap)
	if err != nil {
		return s.fail(&recorder.CaptureError{Op: snap.Kind.String(), Function: snap.Function, Reason: err.Error()})
	}
	s.logger.Debug("snapshot captured", "id", id, "kind", snap.Kind, "function", snap.Function, "variables", len(snap.Variables))
	return id, nil
}

func (s *Session) skip(function string) (recorder.ID, error) {
	s.filtered++
	s.metrics.CaptureFiltered()
	s.logger.Debug("capture filtered", "function", function)
	return recorder.NoID, nil
}

// Fail reports a capture failure found before the session was reached,
// such as a guest argument the adapter could not decode. It is logged and
// counted like any other failure.
func (s *Session) Fail(err error) (recorder.ID, error) {
	return s.fail(err)
}

func (s *Session) fail(err error) (recorder.ID, error) {
	s.failures++
	op := "capture"
	if ce, ok := err.(*recorder.CaptureError); ok {
		op = ce.Op
	}
	s.metrics.CaptureFailed(op)
	s.logger.Warn("capture failed", "error", err)
	return recorder.NoID, err
}

// Info is the snapshot info reported to the guest.
type Info struct {
	TotalSnapshots  int                `json:"total_snapshots"`
	FunctionCalls   int                `json:"function_calls"`
	CurrentFunction string             `json:"current_function"`
	CallDepth       int                `json:"call_depth"`
	Recent          []recorder.Summary `json:"recent"`
}

func (s *Session) Info() Info {
	return Info{
		TotalSnapshots:  s.timeline.Len(),
		FunctionCalls:   s.totalCalls(),
		CurrentFunction: s.CurrentFunction(),
		CallDepth:       s.Depth(),
		Recent:          s.timeline.Recent(RecentCount),
	}
}

func (s *Session) totalCalls() int {
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// CallCount is the number of calls to one function.
type CallCount struct {
	Function string `json:"function"`
	Calls    int    `json:"calls"`
}

// Trace summarizes a whole session's execution.
type Trace struct {
	SessionID     string         `json:"session_id"`
	TotalCalls    int            `json:"total_calls"`
	MaxCallDepth  int            `json:"max_call_depth"`
	Functions     []CallCount    `json:"functions"`
	Timeline      timeline.Stats `json:"timeline"`
	Filtered      int            `json:"filtered"`
	CaptureErrors int            `json:"capture_errors"`
	ActiveCalls   []string       `json:"active_calls,omitempty"`
}

// Trace returns the execution summary. Functions are sorted by call count,
// most called first.
func (s *Session) Trace() Trace {
	fns := make([]CallCount, 0, len(s.calls))
	for name, n := range s.calls {
		fns = append(fns, CallCount{Function: name, Calls: n})
	}
	slices.SortFunc(fns, func(a, b CallCount) int {
		if c := cmp.Compare(b.Calls, a.Calls); c != 0 {
			return c
		}
		return cmp.Compare(a.Function, b.Function)
	})

	var active []string
	for _, f := range s.stack {
		active = append(active, f.function)
	}

	return Trace{
		SessionID:     s.id.String(),
		TotalCalls:    s.totalCalls(),
		MaxCallDepth:  s.maxDepth,
		Functions:     fns,
		Timeline:      s.timeline.Stats(),
		Filtered:      s.filtered,
		CaptureErrors: s.failures,
		ActiveCalls:   active,
	}
}
