package http2

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamTableInsertGetRemove(t *testing.T) {
	tbl := newStreamTable()
	st := &Stream{id: 1}

	require.True(t, tbl.insert(st))
	got, ok := tbl.get(1)
	require.True(t, ok)
	require.Same(t, st, got)

	tbl.remove(1)
	_, ok = tbl.get(1)
	require.False(t, ok)
}

func TestStreamTableInsertDuplicateFails(t *testing.T) {
	tbl := newStreamTable()
	require.True(t, tbl.insert(&Stream{id: 5}))
	require.False(t, tbl.insert(&Stream{id: 5}), "a second stream under the same id must be rejected")
}

func TestStreamTableSnapshotIsACopy(t *testing.T) {
	tbl := newStreamTable()
	tbl.insert(&Stream{id: 1})
	tbl.insert(&Stream{id: 2})

	snap := tbl.snapshot()
	require.Len(t, snap, 2)

	tbl.remove(1)
	require.Len(t, snap, 2, "mutating the table after the fact must not affect an already-taken snapshot")
	require.Equal(t, 1, tbl.len())
}

func TestStreamTableClearEmptiesAndReturnsContents(t *testing.T) {
	tbl := newStreamTable()
	tbl.insert(&Stream{id: 1})
	tbl.insert(&Stream{id: 2})

	cleared := tbl.clear()
	require.Len(t, cleared, 2)
	require.Equal(t, 0, tbl.len())

	_, ok := tbl.get(1)
	require.False(t, ok)
}

func TestStreamTableConcurrentAccess(t *testing.T) {
	tbl := newStreamTable()
	var wg sync.WaitGroup

	for i := uint32(0); i < 100; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			tbl.insert(&Stream{id: id})
			tbl.get(id)
			tbl.snapshot()
		}(i)
	}
	wg.Wait()

	require.Equal(t, 100, tbl.len())
}
