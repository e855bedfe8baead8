// Package replay moves a cursor through a recorded timeline.
package replay

import (
	"errors"
	"fmt"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/willibrandon/ChronoJS/pkg/recorder"
	"github.com/willibrandon/ChronoJS/pkg/timeline"
)

var (
	ErrAtStart       = errors.New("already at the first snapshot")
	ErrAtEnd         = errors.New("already at the last snapshot")
	ErrEmptyTimeline = errors.New("no snapshot at or before the requested time")
	// ErrNotFound is timeline.ErrNotFound so either can be matched with errors.Is.
	ErrNotFound = timeline.ErrNotFound
)

const searchCacheSize = 128

// Navigator is a cursor over a Timeline. The cursor lives in the timeline so
// eviction keeps it pointing at a retained snapshot.
type Navigator struct {
	tl    *timeline.Timeline
	cache *lru.Cache
}

type searchKey struct {
	function string
	version  uint64
}

// NewNavigator creates a navigator. A fresh navigator is unpositioned.
func NewNavigator(tl *timeline.Timeline) *Navigator {
	cache, _ := lru.New(searchCacheSize) // only fails for a non-positive size
	return &Navigator{tl: tl, cache: cache}
}

// Timeline returns the underlying timeline.
func (n *Navigator) Timeline() *timeline.Timeline {
	return n.tl
}

// Current returns the snapshot under the cursor. ok is false when the
// navigator is unpositioned.
func (n *Navigator) Current() (recorder.Snapshot, bool) {
	return n.tl.At(n.tl.Cursor())
}

// Position returns the cursor index, or timeline.Unpositioned.
func (n *Navigator) Position() int {
	return n.tl.Cursor()
}

// Reset returns the navigator to the unpositioned state.
func (n *Navigator) Reset() {
	n.tl.SetCursor(timeline.Unpositioned)
}

// StepForward moves to the next snapshot. From the unpositioned state it
// moves to the oldest retained snapshot.
func (n *Navigator) StepForward() (recorder.Snapshot, error) {
	cur := n.tl.Cursor()
	next := cur + 1
	if next >= n.tl.Len() {
		return recorder.Snapshot{}, fmt.Errorf("%w: index %d of %d", ErrAtEnd, cur, n.tl.Len())
	}
	return n.moveTo(next), nil
}

// StepBackward moves to the previous snapshot.
func (n *Navigator) StepBackward() (recorder.Snapshot, error) {
	cur := n.tl.Cursor()
	if cur <= 0 {
		return recorder.Snapshot{}, fmt.Errorf("%w: index %d", ErrAtStart, cur)
	}
	return n.moveTo(cur - 1), nil
}

// JumpTo moves to the snapshot with the given id.
func (n *Navigator) JumpTo(id recorder.ID) (recorder.Snapshot, error) {
	i, ok := n.tl.Index(id)
	if !ok {
		return recorder.Snapshot{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return n.moveTo(i), nil
}

// JumpToTime moves to the latest snapshot taken at or before t.
func (n *Navigator) JumpToTime(t time.Time) (recorder.Snapshot, error) {
	for i := n.tl.Len() - 1; i >= 0; i-- {
		s, _ := n.tl.At(i)
		if !s.Timestamp.After(t) {
			return n.moveTo(i), nil
		}
	}
	return recorder.Snapshot{}, fmt.Errorf("%w: %s", ErrEmptyTimeline, t.Format(time.RFC3339Nano))
}

// FindByFunction returns the ids of all retained snapshots for function, in
// temporal order. Results are cached until the timeline changes.
func (n *Navigator) FindByFunction(function string) []recorder.ID {
	key := searchKey{function: function, version: n.tl.Version()}
	if cached, ok := n.cache.Get(key); ok {
		return slices.Clone(cached.([]recorder.ID))
	}

	ids := []recorder.ID{}
	for s := range n.tl.Range(timeline.ByFunction(function)) {
		ids = append(ids, s.ID)
	}
	n.cache.Add(key, ids)
	return slices.Clone(ids)
}

// ContinueForward moves to the next snapshot matching pred. When nothing
// matches, the cursor ends on the latest snapshot and ErrAtEnd is returned.
func (n *Navigator) ContinueForward(pred timeline.Predicate) (recorder.Snapshot, error) {
	cur := n.tl.Cursor()
	if cur+1 >= n.tl.Len() {
		return recorder.Snapshot{}, fmt.Errorf("%w: index %d of %d", ErrAtEnd, cur, n.tl.Len())
	}
	for i := cur + 1; i < n.tl.Len(); i++ {
		if s, _ := n.tl.At(i); pred == nil || pred(s) {
			return n.moveTo(i), nil
		}
	}
	last := n.moveTo(n.tl.Len() - 1)
	return last, fmt.Errorf("%w: no match after index %d", ErrAtEnd, cur)
}

// ContinueBackward moves to the previous snapshot matching pred. When nothing
// matches, the cursor ends on the oldest snapshot and ErrAtStart is returned.
func (n *Navigator) ContinueBackward(pred timeline.Predicate) (recorder.Snapshot, error) {
	cur := n.tl.Cursor()
	if cur <= 0 {
		return recorder.Snapshot{}, fmt.Errorf("%w: index %d", ErrAtStart, cur)
	}
	for i := cur - 1; i >= 0; i-- {
		if s, _ := n.tl.At(i); pred == nil || pred(s) {
			return n.moveTo(i), nil
		}
	}
	first := n.moveTo(0)
	return first, fmt.Errorf("%w: no match before index %d", ErrAtStart, cur)
}

func (n *Navigator) moveTo(i int) recorder.Snapshot {
	n.tl.SetCursor(i)
	s, _ := n.tl.At(i)
	return s
}

// StackFrame is one active guest call at the cursor.
type StackFrame struct {
	Function string
	Depth    int
	Entry    recorder.ID
}

// CallStack reconstructs the active calls at the cursor from the retained
// entry and exit snapshots, outermost first. Calls whose entry was evicted
// are not shown.
func (n *Navigator) CallStack() []StackFrame {
	cur := n.tl.Cursor()
	var stack []StackFrame
	for i := 0; i <= cur; i++ {
		s, _ := n.tl.At(i)
		switch s.Kind {
		case recorder.FunctionEntry:
			stack = append(stack, StackFrame{Function: s.Function, Depth: s.Depth, Entry: s.ID})
		case recorder.FunctionExit:
			for j := len(stack) - 1; j >= 0; j-- {
				if stack[j].Function == s.Function {
					stack = stack[:j]
					break
				}
			}
		}
	}
	return stack
}
