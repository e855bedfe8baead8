package recorder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/ChronoJS/pkg/guest/memheap"
	"github.com/willibrandon/ChronoJS/pkg/value"
)

type counter struct{ next ID }

func (c *counter) NextID() ID {
	c.next++
	return c.next
}

func newTestBuilder(opts ...BuilderOption) (*Builder, *counter) {
	ids := &counter{}
	return NewBuilder(ids, value.NewSerializer(value.DefaultConfig()), opts...), ids
}

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestBuildCapturesEveryVariable(t *testing.T) {
	b, _ := newTestBuilder()

	person := memheap.NewObject("name", "Alice", "age", 30)
	s, err := b.Build(VariableCapture, "main", []Input{
		Live("person", memheap.Handle(person)),
		Live("count", memheap.Handle(3)),
		Captured("flag", value.Boolean(true)),
	}, 0, epoch)
	require.NoError(t, err)

	assert.Equal(t, ID(1), s.ID)
	assert.Equal(t, VariableCapture, s.Kind)
	assert.Equal(t, "main", s.Function)
	assert.Equal(t, epoch, s.Timestamp)
	assert.Equal(t, []string{"person", "count", "flag"}, s.Names())

	got, ok := s.Lookup("person")
	require.True(t, ok)
	name, _ := got.Lookup("name")
	assert.Equal(t, value.String("Alice"), name)

	count, _ := s.Lookup("count")
	assert.Equal(t, value.Number(3), count)
}

func TestBuildIsolatesUnserializableVariables(t *testing.T) {
	b, _ := newTestBuilder()

	broken := memheap.NewObject("x", memheap.Getter(func() (any, error) {
		return nil, errors.New("getter threw")
	}))
	s, err := b.Build(ScopeCapture, "f", []Input{
		Live("ok", memheap.Handle("fine")),
		Live("broken", memheap.Handle(broken)),
		Live("host", memheap.Handle(make(chan int))),
	}, 1, epoch)
	require.NoError(t, err)
	require.Len(t, s.Variables, 3)

	ok, _ := s.Lookup("ok")
	assert.Equal(t, value.String("fine"), ok)

	b2, _ := s.Lookup("broken")
	x, _ := b2.Lookup("x")
	assert.Equal(t, value.KindUnserializable, x.Kind)

	host, _ := s.Lookup("host")
	assert.Equal(t, value.KindUnserializable, host.Kind)
}

func TestBuildRejectsInvalidArgumentsWithoutConsumingID(t *testing.T) {
	b, ids := newTestBuilder()

	tests := []struct {
		name     string
		kind     Kind
		function string
		inputs   []Input
		depth    int
	}{
		{"empty function", VariableCapture, "", nil, 0},
		{"negative depth", VariableCapture, "f", nil, -1},
		{"unknown kind", Kind(42), "f", nil, 0},
		{"empty variable name", VariableCapture, "f", []Input{Captured("", value.Null())}, 0},
		{"duplicate variable", VariableCapture, "f", []Input{Captured("a", value.Null()), Captured("a", value.Null())}, 0},
		{"exit without result", FunctionExit, "f", nil, 0},
		{"exit with wrong name", FunctionExit, "f", []Input{Captured("x", value.Null())}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.kind, tt.function, tt.inputs, tt.depth, epoch)
			var ce *CaptureError
			require.ErrorAs(t, err, &ce)
		})
	}
	assert.Equal(t, ID(0), ids.next)
}

func TestBuildExit(t *testing.T) {
	b, _ := newTestBuilder()

	s, err := b.BuildExit("add", Live("ignored", memheap.Handle(5)), false, 1, epoch, 3*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, FunctionExit, s.Kind)
	assert.Equal(t, []string{ReturnVariable}, s.Names())
	assert.Equal(t, 3*time.Millisecond, s.Duration)

	s, err = b.BuildExit("boom", Live("", memheap.Handle(&memheap.Error{Name: "TypeError", Message: "bad"})), true, 1, epoch, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{ErrorVariable}, s.Names())
	v, _ := s.Lookup(ErrorVariable)
	assert.Equal(t, value.Error("TypeError", "bad"), v)

	_, err = b.BuildExit("neg", Live("", memheap.Handle(1)), false, 0, epoch, -time.Second)
	assert.Error(t, err)
}

func TestBuildMissingHandleIsUndefined(t *testing.T) {
	b, _ := newTestBuilder()
	s, err := b.BuildExit("noop", Input{}, false, 0, epoch, 0)
	require.NoError(t, err)
	v, _ := s.Lookup(ReturnVariable)
	assert.Equal(t, value.Undefined(), v)
}

func TestCaptureErrorMessage(t *testing.T) {
	err := &CaptureError{Op: "function-exit", Function: "f", Reason: "call stack is empty"}
	assert.Equal(t, "capture function-exit in f: call stack is empty", err.Error())

	err = &CaptureError{Op: "function-entry", Reason: "function name is empty"}
	assert.Equal(t, "capture function-entry: function name is empty", err.Error())
}

func TestKindText(t *testing.T) {
	for _, k := range []Kind{FunctionEntry, FunctionExit, VariableCapture, ScopeCapture, CustomContext} {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}

	k, err := ParseKind("exit")
	require.NoError(t, err)
	assert.Equal(t, FunctionExit, k)

	_, err = ParseKind("bogus")
	assert.Error(t, err)
	_, err = Kind(99).MarshalText()
	assert.Error(t, err)
}

func TestSnapshotSummary(t *testing.T) {
	s := Snapshot{ID: 7, Kind: ScopeCapture, Function: "f", Variables: []Variable{{Name: "a"}, {Name: "b"}}}
	assert.Equal(t, Summary{ID: 7, Function: "f", Kind: ScopeCapture, VariableCount: 2}, s.Summary())
	assert.Contains(t, s.String(), "ID: 7")
}
