package ledger

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCapital = Capital{TotalCapital: 100000, MaxExposureRatio: 0.10}

func newFileLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "positions.json")
	l, err := New(NewFileStore(path), testCapital, nil)
	require.NoError(t, err)
	return l, path
}

func TestNewRejectsInvalidCapital(t *testing.T) {
	_, err := New(&MemoryStore{}, Capital{TotalCapital: 0, MaxExposureRatio: 0.1}, nil)
	assert.ErrorIs(t, err, ErrInvalidCapital)
	_, err = New(&MemoryStore{}, Capital{TotalCapital: 1000, MaxExposureRatio: 1.5}, nil)
	assert.ErrorIs(t, err, ErrInvalidCapital)
}

func TestOpenCloseRoundTrip(t *testing.T) {
	l, path := newFileLedger(t)

	require.NoError(t, l.Open("00700", 300, 30))
	pos, ok := l.Get("00700")
	require.True(t, ok)
	assert.Equal(t, 300.0, pos.HighestPrice)

	reloaded, err := New(NewFileStore(path), testCapital, nil)
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot(), reloaded.Snapshot())

	closed, ok := l.Close("00700")
	require.True(t, ok)
	assert.Equal(t, 30, closed.Volume)
	assert.False(t, l.Contains("00700"))

	_, ok = l.Close("00700")
	assert.False(t, ok, "closing an absent symbol is a no-op")
}

func TestOpenRejectsNonPositive(t *testing.T) {
	store := &MemoryStore{}
	l, err := New(store, testCapital, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, l.Open("X", 0, 10), ErrInvalidPosition)
	assert.ErrorIs(t, l.Open("X", 10, 0), ErrInvalidPosition)
	assert.ErrorIs(t, l.Open("X", math.NaN(), 10), ErrInvalidPosition)
	assert.ErrorIs(t, l.Open("X", math.Inf(1), 10), ErrInvalidPosition)
	assert.Equal(t, 0, store.Saves)
	assert.Equal(t, 0, l.Len())
}

func TestOpenOverwritesExisting(t *testing.T) {
	l, err := New(&MemoryStore{}, testCapital, nil)
	require.NoError(t, err)
	require.NoError(t, l.Open("A", 10, 5))
	require.NoError(t, l.Open("A", 12, 7))
	pos, _ := l.Get("a")
	assert.Equal(t, 7, pos.Volume)
	assert.Equal(t, 12.0, pos.HighestPrice)
}

func TestOpenIfAbsent(t *testing.T) {
	store := &MemoryStore{}
	l, err := New(store, testCapital, nil)
	require.NoError(t, err)

	opened, err := l.OpenIfAbsent("00700", 280, 35)
	require.NoError(t, err)
	assert.True(t, opened)
	saves := store.Saves

	opened, err = l.OpenIfAbsent("00700", 300, 10)
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, saves, store.Saves)
	pos, _ := l.Get("00700")
	assert.Equal(t, 35, pos.Volume)

	_, err = l.OpenIfAbsent("03690", 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPosition)
}

func TestHighWaterMarkPersistsOnlyOnNewHigh(t *testing.T) {
	store := &MemoryStore{}
	l, err := New(store, testCapital, nil)
	require.NoError(t, err)
	require.NoError(t, l.Open("A", 100, 10))
	saves := store.Saves

	assert.False(t, l.UpdateHighWaterMark("A", 99))
	assert.False(t, l.UpdateHighWaterMark("A", 100))
	assert.Equal(t, saves, store.Saves)

	assert.True(t, l.UpdateHighWaterMark("A", 105))
	assert.Equal(t, saves+1, store.Saves)
	assert.Equal(t, 105.0, store.Saved["A"].HighestPrice)

	assert.False(t, l.UpdateHighWaterMark("MISSING", 1000))

	saves = store.Saves
	assert.False(t, l.UpdateHighWaterMark("A", math.NaN()))
	assert.False(t, l.UpdateHighWaterMark("A", math.Inf(1)))
	assert.Equal(t, saves, store.Saves)
	pos, _ := l.Get("A")
	assert.Equal(t, 105.0, pos.HighestPrice)
}

func TestApplyUpdatesAndRemovesAtomically(t *testing.T) {
	store := &MemoryStore{}
	l, err := New(store, testCapital, nil)
	require.NoError(t, err)
	require.NoError(t, l.Open("A", 100, 10))

	pos, held := l.Apply("A", func(p Position, held bool) Mutation {
		assert.True(t, held)
		return Mutation{HighestPrice: 120, Remove: true}
	})
	require.True(t, held)
	assert.Equal(t, 120.0, pos.HighestPrice)
	assert.False(t, l.Contains("A"))
	assert.Empty(t, store.Saved)

	_, held = l.Apply("A", func(p Position, held bool) Mutation {
		assert.False(t, held)
		return Mutation{Remove: true}
	})
	assert.False(t, held)
}

func TestSnapshotIsCopy(t *testing.T) {
	l, err := New(&MemoryStore{}, testCapital, nil)
	require.NoError(t, err)
	require.NoError(t, l.Open("A", 100, 10))

	snap := l.Snapshot()
	snap["A"] = Position{Symbol: "A", CostPrice: 1, Volume: 1, HighestPrice: 1}
	delete(snap, "A")
	pos, ok := l.Get("A")
	require.True(t, ok)
	assert.Equal(t, 10, pos.Volume)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	store := &MemoryStore{Err: errors.New("disk full")}
	l, err := New(store, testCapital, nil)
	require.NoError(t, err)

	require.NoError(t, l.Open("A", 100, 10))
	assert.True(t, l.Contains("A"))
	assert.EqualError(t, l.LastPersistError(), "disk full")

	store.Err = nil
	require.NoError(t, l.Flush())
	assert.NoError(t, l.LastPersistError())
	assert.Contains(t, store.Saved, "A")
}

func TestConcurrentMutations(t *testing.T) {
	l, _ := newFileLedger(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := string(rune('A' + i%5))
			_ = l.Open(sym, 100, 10)
			l.UpdateHighWaterMark(sym, float64(100+i))
			_ = l.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, l.Len())
	for _, pos := range l.Snapshot() {
		assert.GreaterOrEqual(t, pos.HighestPrice, pos.CostPrice)
	}
}

func TestFileStoreFallsBackToBackup(t *testing.T) {
	l, path := newFileLedger(t)
	require.NoError(t, l.Open("A", 100, 10))
	require.NoError(t, l.Open("B", 50, 20))

	// Simulate a crash after the backup copy and the temp write but before the rename.
	require.NoError(t, os.WriteFile(path+".tmp", []byte("{\"C\":"), 0o644))
	require.NoError(t, os.Remove(path))

	reloaded, err := New(NewFileStore(path), testCapital, nil)
	require.NoError(t, err)
	snap := reloaded.Snapshot()
	assert.Contains(t, snap, "A")
	assert.NotContains(t, snap, "C")
}

func TestFileStoreCorruptCanonicalUsesBackup(t *testing.T) {
	l, path := newFileLedger(t)
	require.NoError(t, l.Open("A", 100, 10))
	require.NoError(t, l.Open("B", 50, 20))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	reloaded, err := New(NewFileStore(path), testCapital, nil)
	require.NoError(t, err)
	assert.True(t, reloaded.Contains("A"))
}

func TestFileStoreMissingIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.json"))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreFormat(t *testing.T) {
	l, path := newFileLedger(t)
	require.NoError(t, l.Open("00700", 280, 30))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"00700":{"cost_price":280,"volume":30,"highest_price":280}}`, string(raw))
}
