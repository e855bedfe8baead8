// Package timeline stores snapshots in a bounded, ordered ring buffer with
// a navigation cursor.
package timeline

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"github.com/willibrandon/ChronoJS/pkg/metrics"
	"github.com/willibrandon/ChronoJS/pkg/recorder"
)

var (
	ErrInvalidCapacity = errors.New("timeline capacity must be positive")
	ErrOutOfOrder      = errors.New("snapshot id is not greater than the last appended id")
	ErrNotFound        = errors.New("snapshot not found")
)

// Unpositioned is the cursor value before any navigation.
const Unpositioned = -1

// Timeline is a fixed-capacity ring of snapshots ordered by id. When full,
// appending evicts the oldest snapshot. It is not safe for concurrent use.
type Timeline struct {
	buf      []recorder.Snapshot
	head     int
	size     int
	capacity int

	issued   recorder.ID
	lastID   recorder.ID
	lastTime time.Time

	cursor  int
	version uint64

	evicted   int
	entries   int
	maxDepth  int
	archiveOK bool

	logger   *slog.Logger
	archiver recorder.Archiver
	metrics  *metrics.Collector
}

// Option configures a Timeline
type Option func(*Timeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Timeline) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithArchiver hands every evicted snapshot to a.
func WithArchiver(a recorder.Archiver) Option {
	return func(t *Timeline) {
		t.archiver = a
	}
}

// WithMetrics records captures, evictions and size on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Timeline) {
		t.metrics = c
	}
}

// New creates an empty timeline holding at most capacity snapshots.
func New(capacity int, opts ...Option) (*Timeline, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	t := &Timeline{
		buf:       make([]recorder.Snapshot, capacity),
		capacity:  capacity,
		cursor:    Unpositioned,
		logger:    slog.Default(),
		archiveOK: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NextID issues the next snapshot id. Ids are never reused.
func (t *Timeline) NextID() recorder.ID {
	t.issued++
	return t.issued
}

// Append stores s, evicting the oldest snapshot when the timeline is full.
func (t *Timeline) Append(s recorder.Snapshot) (recorder.ID, error) {
	if s.ID <= t.lastID {
		return recorder.NoID, fmt.Errorf("%w: id %d after %d", ErrOutOfOrder, s.ID, t.lastID)
	}
	if s.ID > t.issued {
		t.issued = s.ID
	}
	if !t.lastTime.IsZero() && s.Timestamp.Before(t.lastTime) {
		t.logger.Warn("snapshot timestamp went backwards, clamping",
			"id", s.ID, "timestamp", s.Timestamp, "previous", t.lastTime)
		s.Timestamp = t.lastTime
	}

	if t.size == t.capacity {
		t.evictOldest()
	}

	t.buf[(t.head+t.size)%t.capacity] = s
	t.size++
	t.lastID = s.ID
	t.lastTime = s.Timestamp
	t.version++

	if s.Kind == recorder.FunctionEntry {
		t.entries++
	}
	if s.Depth > t.maxDepth {
		t.maxDepth = s.Depth
	}

	degraded := 0
	for _, v := range s.Variables {
		degraded += v.Value.CountDegraded()
	}
	t.metrics.SnapshotCaptured(s.Kind.String(), degraded)
	t.metrics.SetTimelineSize(t.size)
	return s.ID, nil
}

func (t *Timeline) evictOldest() {
	old := t.buf[t.head]
	t.buf[t.head] = recorder.Snapshot{}
	t.head = (t.head + 1) % t.capacity
	t.size--
	t.evicted++

	if t.cursor > 0 {
		t.cursor--
	}

	t.metrics.SnapshotEvicted()
	if t.archiver == nil {
		return
	}
	if err := t.archiver.Archive(old); err != nil {
		// Only the first failure of a streak is logged.
		if t.archiveOK {
			t.logger.Error("archiving evicted snapshot failed", "id", old.ID, "error", err)
		}
		t.archiveOK = false
		return
	}
	t.archiveOK = true
}

// At returns the snapshot at logical index i, 0 being the oldest retained.
func (t *Timeline) At(i int) (recorder.Snapshot, bool) {
	if i < 0 || i >= t.size {
		return recorder.Snapshot{}, false
	}
	return t.buf[(t.head+i)%t.capacity], true
}

// Index returns the logical index of id.
func (t *Timeline) Index(id recorder.ID) (int, bool) {
	i := sort.Search(t.size, func(i int) bool {
		s, _ := t.At(i)
		return s.ID >= id
	})
	if i < t.size {
		if s, _ := t.At(i); s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Get returns the snapshot with the given id.
func (t *Timeline) Get(id recorder.ID) (recorder.Snapshot, error) {
	i, ok := t.Index(id)
	if !ok {
		return recorder.Snapshot{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	s, _ := t.At(i)
	return s, nil
}

// Oldest and Latest return the ends of the timeline.
func (t *Timeline) Oldest() (recorder.Snapshot, bool) { return t.At(0) }
func (t *Timeline) Latest() (recorder.Snapshot, bool) { return t.At(t.size - 1) }

func (t *Timeline) Len() int      { return t.size }
func (t *Timeline) Capacity() int { return t.capacity }

// Version changes on every append, so cached query results can be keyed by it.
func (t *Timeline) Version() uint64 { return t.version }

// Cursor returns the logical index of the current snapshot, or Unpositioned.
func (t *Timeline) Cursor() int { return t.cursor }

// SetCursor moves the cursor. i must be a valid index or Unpositioned.
func (t *Timeline) SetCursor(i int) error {
	if i != Unpositioned && (i < 0 || i >= t.size) {
		return fmt.Errorf("cursor index %d out of range [0, %d)", i, t.size)
	}
	t.cursor = i
	return nil
}

// Predicate selects snapshots in Range.
type Predicate func(recorder.Snapshot) bool

func All() Predicate {
	return func(recorder.Snapshot) bool { return true }
}

func ByFunction(name string) Predicate {
	return func(s recorder.Snapshot) bool { return s.Function == name }
}

func ByKind(k recorder.Kind) Predicate {
	return func(s recorder.Snapshot) bool { return s.Kind == k }
}

// Between matches timestamps in the closed interval [from, to].
func Between(from, to time.Time) Predicate {
	return func(s recorder.Snapshot) bool {
		return !s.Timestamp.Before(from) && !s.Timestamp.After(to)
	}
}

// Range yields matching snapshots oldest first. The sequence is lazy and may
// be iterated again; each iteration sees the timeline as it is at that time.
// A nil pred matches everything.
func (t *Timeline) Range(pred Predicate) iter.Seq[recorder.Snapshot] {
	if pred == nil {
		pred = All()
	}
	return func(yield func(recorder.Snapshot) bool) {
		for i := 0; i < t.size; i++ {
			s, _ := t.At(i)
			if pred(s) && !yield(s) {
				return
			}
		}
	}
}

// Stats summarizes the timeline.
type Stats struct {
	TotalSnapshots        int         `json:"total_snapshots"`
	FunctionCallCount     int         `json:"function_call_count"`
	MaxDepthReached       int         `json:"max_depth_reached"`
	CurrentCursorFunction string      `json:"current_cursor_function,omitempty"`
	Issued                recorder.ID `json:"issued"`
	Evicted               int         `json:"evicted"`
}

// Stats reports totals. FunctionCallCount and MaxDepthReached cover the
// whole session, including evicted snapshots.
func (t *Timeline) Stats() Stats {
	st := Stats{
		TotalSnapshots:    t.size,
		FunctionCallCount: t.entries,
		MaxDepthReached:   t.maxDepth,
		Issued:            t.issued,
		Evicted:           t.evicted,
	}
	if s, ok := t.At(t.cursor); ok {
		st.CurrentCursorFunction = s.Function
	}
	return st
}

// Recent returns summaries of the last n snapshots, oldest first.
func (t *Timeline) Recent(n int) []recorder.Summary {
	if n > t.size {
		n = t.size
	}
	if n <= 0 {
		return []recorder.Summary{}
	}
	out := make([]recorder.Summary, 0, n)
	for i := t.size - n; i < t.size; i++ {
		s, _ := t.At(i)
		out = append(out, s.Summary())
	}
	return out
}
