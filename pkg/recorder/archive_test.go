package recorder

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/ChronoJS/pkg/value"
)

func archiveFixture() []Snapshot {
	return []Snapshot{
		{ID: 1, Timestamp: epoch, Kind: FunctionEntry, Function: "main", Variables: []Variable{
			{Name: "n", Value: value.Number(42)},
		}},
		{ID: 2, Timestamp: epoch.Add(time.Millisecond), Kind: FunctionExit, Function: "main", Depth: 1,
			Duration: time.Millisecond, Variables: []Variable{
				{Name: ReturnVariable, Value: value.Object(value.F("ok", value.Boolean(true)))},
			}},
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	for _, ct := range []CompressionType{NoCompression, ZstdCompression} {
		t.Run(ct.String(), func(t *testing.T) {
			var buf bytes.Buffer
			aw, err := NewArchiveWriter(&buf, ct)
			require.NoError(t, err)

			for _, s := range archiveFixture() {
				require.NoError(t, aw.Archive(s))
			}
			assert.Equal(t, 2, aw.Count())
			require.NoError(t, aw.Close())

			got, err := ReadArchive(&buf, ct)
			require.NoError(t, err)
			require.Len(t, got, 2)

			want := archiveFixture()
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].Kind, got[i].Kind)
				assert.Equal(t, want[i].Function, got[i].Function)
				assert.Equal(t, want[i].Duration, got[i].Duration)
				assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
				require.Len(t, got[i].Variables, len(want[i].Variables))
				for j := range want[i].Variables {
					assert.True(t, value.Equal(want[i].Variables[j].Value, got[i].Variables[j].Value))
				}
			}
		})
	}
}

func TestArchiveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evicted.jsonl.zst")

	aw, err := CreateArchive(path, ZstdCompression)
	require.NoError(t, err)
	require.NoError(t, aw.Archive(archiveFixture()[0]))
	require.NoError(t, aw.Close())
	require.NoError(t, aw.Close())

	assert.Error(t, aw.Archive(archiveFixture()[1]))

	got, err := ReadArchiveFile(path, ZstdCompression)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ID(1), got[0].ID)
}

func TestParseCompression(t *testing.T) {
	ct, err := ParseCompression("none")
	require.NoError(t, err)
	assert.Equal(t, NoCompression, ct)

	ct, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, ZstdCompression, ct)

	_, err = ParseCompression("lz4")
	assert.Error(t, err)
}
