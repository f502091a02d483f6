package bolt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/callfwd/internal/callfwd/repos/history"
)

func openTemp(t *testing.T, max int) history.Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "history.db"), max)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTemp(t, 0)

	got, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record(history.Entry{RequestID: "a", Cmd: "reload", Domain: "us", Rows: 3, Generation: 1, OK: true, Started: started, Duration: time.Second}))
	require.NoError(t, j.Record(history.Entry{RequestID: "b", Cmd: "verify", Domain: "us", Rows: 3, Error: "line 2: differs", Started: started.Add(time.Minute)}))

	got, err = j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].RequestID)
	assert.False(t, got[0].OK)
	assert.Equal(t, "a", got[1].RequestID)
	assert.Equal(t, uint64(1), got[1].Generation)
	assert.True(t, got[1].Started.Equal(started))
	assert.Equal(t, time.Second, got[1].Duration)

	got, err = j.Recent(1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJournal_PrunesOldest(t *testing.T) {
	j := openTemp(t, 3)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, j.Record(history.Entry{RequestID: id, Cmd: "meta", OK: true}))
	}
	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"5", "4", "3"}, []string{got[0].RequestID, got[1].RequestID, got[2].RequestID})
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	j, err := New(path, 10)
	require.NoError(t, err)
	require.NoError(t, j.Record(history.Entry{RequestID: "x", Cmd: "dump", OK: true}))
	require.NoError(t, j.Close())

	j, err = New(path, 10)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].RequestID)
}

func TestNop(t *testing.T) {
	var j history.Journal = history.Nop{}
	assert.NoError(t, j.Record(history.Entry{}))
	got, err := j.Recent(5)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, j.Close())
}
