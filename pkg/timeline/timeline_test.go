package timeline

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(tl *Timeline, kind recorder.Kind, fn string, depth int, offset time.Duration) recorder.Snapshot {
	return recorder.Snapshot{
		ID:        tl.NextID(),
		Timestamp: epoch.Add(offset),
		Kind:      kind,
		Function:  fn,
		Depth:     depth,
	}
}

func mustAppend(t *testing.T, tl *Timeline, s recorder.Snapshot) recorder.ID {
	t.Helper()
	id, err := tl.Append(s)
	require.NoError(t, err)
	return id
}

func ids(seq []recorder.Snapshot) []recorder.ID {
	out := make([]recorder.ID, len(seq))
	for i, s := range seq {
		out[i] = s.ID
	}
	return out
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = New(-3)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	tl, err := New(10)
	require.NoError(t, err)

	var prev recorder.ID
	for i := 0; i < 5; i++ {
		id := mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, time.Duration(i)))
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, recorder.ID(1), mustFirst(t, tl).ID)
}

func mustFirst(t *testing.T, tl *Timeline) recorder.Snapshot {
	t.Helper()
	s, ok := tl.Oldest()
	require.True(t, ok)
	return s
}

func TestAppendRejectsOutOfOrderID(t *testing.T) {
	tl, _ := New(4)
	mustAppend(t, tl, recorder.Snapshot{ID: 5, Function: "f", Timestamp: epoch})

	_, err := tl.Append(recorder.Snapshot{ID: 5, Function: "f", Timestamp: epoch})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	_, err = tl.Append(recorder.Snapshot{ID: 2, Function: "f", Timestamp: epoch})
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, 1, tl.Len())

	assert.Equal(t, recorder.ID(6), tl.NextID())
}

func TestAppendClampsBackwardsTimestamp(t *testing.T) {
	var logs bytes.Buffer
	tl, _ := New(4, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, time.Second))
	id := mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))

	s, err := tl.Get(id)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Second), s.Timestamp)
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestCapacityBound(t *testing.T) {
	const capacity = 4
	tl, _ := New(capacity)

	for i := 0; i < capacity+3; i++ {
		mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, time.Duration(i)))
	}
	assert.Equal(t, capacity, tl.Len())
	assert.Equal(t, []recorder.ID{4, 5, 6, 7}, ids(slices.Collect(tl.Range(nil))))
}

func TestThreeSlotsFiveAppends(t *testing.T) {
	tl, _ := New(3)
	for i := 0; i < 5; i++ {
		mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, time.Duration(i)))
	}

	assert.Equal(t, []recorder.ID{3, 4, 5}, ids(slices.Collect(tl.Range(All()))))

	_, err := tl.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tl.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := tl.Get(4)
	require.NoError(t, err)
	assert.Equal(t, recorder.ID(4), s.ID)

	st := tl.Stats()
	assert.Equal(t, 3, st.TotalSnapshots)
	assert.Equal(t, recorder.ID(5), st.Issued)
	assert.Equal(t, 2, st.Evicted)
}

func TestGetWithGapsInIDs(t *testing.T) {
	tl, _ := New(8)
	for _, id := range []recorder.ID{2, 3, 7, 11} {
		mustAppend(t, tl, recorder.Snapshot{ID: id, Function: "f", Timestamp: epoch})
	}
	for _, id := range []recorder.ID{2, 3, 7, 11} {
		s, err := tl.Get(id)
		require.NoError(t, err)
		assert.Equal(t, id, s.ID)
	}
	for _, id := range []recorder.ID{0, 1, 4, 12} {
		_, err := tl.Get(id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestEvictionMovesCursor(t *testing.T) {
	tl, _ := New(3)
	for i := 0; i < 3; i++ {
		mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))
	}

	require.NoError(t, tl.SetCursor(2))
	mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))
	assert.Equal(t, 1, tl.Cursor())
	cur, _ := tl.At(tl.Cursor())
	assert.Equal(t, recorder.ID(3), cur.ID)

	require.NoError(t, tl.SetCursor(0))
	mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))
	assert.Equal(t, 0, tl.Cursor())
	cur, _ = tl.At(0)
	assert.Equal(t, recorder.ID(3), cur.ID)

	require.NoError(t, tl.SetCursor(Unpositioned))
	mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))
	assert.Equal(t, Unpositioned, tl.Cursor())

	assert.Error(t, tl.SetCursor(3))
}

func TestRangePredicates(t *testing.T) {
	tl, _ := New(10)
	mustAppend(t, tl, snap(tl, recorder.FunctionEntry, "main", 0, 0))
	mustAppend(t, tl, snap(tl, recorder.FunctionEntry, "helper", 1, time.Second))
	mustAppend(t, tl, snap(tl, recorder.VariableCapture, "helper", 1, 2*time.Second))
	mustAppend(t, tl, snap(tl, recorder.FunctionExit, "helper", 1, 3*time.Second))
	mustAppend(t, tl, snap(tl, recorder.FunctionExit, "main", 0, 4*time.Second))

	assert.Equal(t, []recorder.ID{2, 3, 4}, ids(slices.Collect(tl.Range(ByFunction("helper")))))
	assert.Equal(t, []recorder.ID{4, 5}, ids(slices.Collect(tl.Range(ByKind(recorder.FunctionExit)))))
	assert.Equal(t, []recorder.ID{2, 3, 4}, ids(slices.Collect(tl.Range(Between(epoch.Add(time.Second), epoch.Add(3*time.Second))))))
	assert.Empty(t, slices.Collect(tl.Range(ByFunction("missing"))))

	seq := tl.Range(nil)
	var first []recorder.ID
	for s := range seq {
		first = append(first, s.ID)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []recorder.ID{1, 2}, first)
	assert.Len(t, slices.Collect(seq), 5)
}

func TestStatsAndRecent(t *testing.T) {
	tl, _ := New(3)
	mustAppend(t, tl, snap(tl, recorder.FunctionEntry, "main", 0, 0))
	mustAppend(t, tl, snap(tl, recorder.FunctionEntry, "deep", 4, 0))
	mustAppend(t, tl, snap(tl, recorder.FunctionExit, "deep", 4, 0))
	s := snap(tl, recorder.VariableCapture, "main", 0, 0)
	s.Variables = []recorder.Variable{{Name: "a", Value: value.Null()}, {Name: "b", Value: value.Null()}}
	mustAppend(t, tl, s)

	require.NoError(t, tl.SetCursor(0))
	st := tl.Stats()
	assert.Equal(t, 3, st.TotalSnapshots)
	assert.Equal(t, 2, st.FunctionCallCount)
	assert.Equal(t, 4, st.MaxDepthReached)
	assert.Equal(t, "deep", st.CurrentCursorFunction)

	recent := tl.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, recorder.Summary{ID: 3, Function: "deep", Kind: recorder.FunctionExit}, recent[0])
	assert.Equal(t, recorder.Summary{ID: 4, Function: "main", Kind: recorder.VariableCapture, VariableCount: 2}, recent[1])

	assert.Len(t, tl.Recent(10), 3)
	assert.Empty(t, tl.Recent(0))
}

type failingArchiver struct {
	got []recorder.ID
	err error
}

func (a *failingArchiver) Archive(s recorder.Snapshot) error {
	a.got = append(a.got, s.ID)
	return a.err
}

func TestArchiverReceivesEvicted(t *testing.T) {
	arch := &failingArchiver{}
	tl, _ := New(2, WithArchiver(arch))
	for i := 0; i < 5; i++ {
		mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))
	}
	assert.Equal(t, []recorder.ID{1, 2, 3}, arch.got)
}

func TestArchiverFailureDoesNotBlockAppend(t *testing.T) {
	var logs bytes.Buffer
	arch := &failingArchiver{err: errors.New("disk full")}
	tl, _ := New(1, WithArchiver(arch), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	for i := 0; i < 3; i++ {
		mustAppend(t, tl, snap(tl, recorder.VariableCapture, "f", 0, 0))
	}
	assert.Equal(t, 1, tl.Len())
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("archiving evicted snapshot failed")))
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	tl, _ := New(2, WithMetrics(m))

	s := snap(tl, recorder.VariableCapture, "f", 0, 0)
	s.Variables = []recorder.Variable{{Name: "x", Value: value.Unserializable("opaque")}}
	mustAppend(t, tl, s)
	mustAppend(t, tl, snap(tl, recorder.FunctionEntry, "f", 0, 0))
	mustAppend(t, tl, snap(tl, recorder.FunctionEntry, "f", 0, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotsCaptured.WithLabelValues("function-entry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedValues))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotsEvicted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TimelineSize))
}
