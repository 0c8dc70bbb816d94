package label_store

import (
	"testing"

	"candlelab/go_src/chart_exceptions"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddNormalizesReversedRange(t *testing.T) {
	s := NewStore()
	label, err := s.Add(9, 3, "breakout")
	require.NoError(t, err)

	assert.Equal(t, 3, label.StartIndex)
	assert.Equal(t, 9, label.EndIndex)
	assert.Equal(t, "breakout", label.Category)
	assert.NotEqual(t, uuid.Nil, label.ID)
	assert.True(t, s.Dirty())
}

func TestStore_AddRejectsInvalid(t *testing.T) {
	s := NewStore()

	_, err := s.Add(-1, 3, "breakout")
	require.Error(t, err)
	var lsErr *chart_exceptions.LabelStoreError
	require.ErrorAs(t, err, &lsErr)
	assert.Equal(t, "add", lsErr.Operation)

	_, err = s.Add(0, 3, "")
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestStore_RemoveUnknown(t *testing.T) {
	s := NewStore()
	err := s.Remove(uuid.New())
	require.Error(t, err)
	var lsErr *chart_exceptions.LabelStoreError
	require.ErrorAs(t, err, &lsErr)
	assert.Equal(t, "remove", lsErr.Operation)
}

func TestStore_AtReturnsCoveringLabels(t *testing.T) {
	s := NewStore()
	a, err := s.Add(0, 5, "rangebound")
	require.NoError(t, err)
	_, err = s.Add(10, 20, "downtrend")
	require.NoError(t, err)
	b, err := s.Add(3, 12, "uptrend")
	require.NoError(t, err)

	covering := s.At(4)
	require.Len(t, covering, 2)
	// Oldest first.
	assert.Equal(t, a.ID, covering[0].ID)
	assert.Equal(t, b.ID, covering[1].ID)

	// Index 7 sits in the [3,12] span only.
	covering = s.At(7)
	require.Len(t, covering, 1)
	assert.Equal(t, b.ID, covering[0].ID)

	assert.Empty(t, s.At(25))
}

func TestStore_AllSortedByStartIndex(t *testing.T) {
	s := NewStore()
	for _, r := range [][2]int{{30, 40}, {0, 5}, {10, 20}} {
		_, err := s.Add(r[0], r[1], "x")
		require.NoError(t, err)
	}

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, 0, all[0].StartIndex)
	assert.Equal(t, 10, all[1].StartIndex)
	assert.Equal(t, 30, all[2].StartIndex)
}

func TestStore_PutReplacesLabel(t *testing.T) {
	s := NewStore()
	label, err := s.Add(0, 5, "uptrend")
	require.NoError(t, err)

	label.Category = "downtrend"
	require.NoError(t, s.Put(label))

	got, ok := s.Get(label.ID)
	require.True(t, ok)
	assert.Equal(t, "downtrend", got.Category)
	assert.Equal(t, 1, s.Len())
}

func TestDB_SaveAndLoadRoundTrip(t *testing.T) {
	db, err := OpenDB("", true)
	require.NoError(t, err)
	defer db.Close()

	s := NewStore()
	added, err := s.Add(2, 7, "breakout")
	require.NoError(t, err)
	_, err = s.Add(10, 10, "doji-cluster")
	require.NoError(t, err)

	require.NoError(t, db.Save(s))
	assert.False(t, s.Dirty())

	loaded := NewStore()
	require.NoError(t, db.LoadInto(loaded))
	require.Equal(t, 2, loaded.Len())
	assert.False(t, loaded.Dirty())

	got, ok := loaded.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, added.StartIndex, got.StartIndex)
	assert.Equal(t, added.EndIndex, got.EndIndex)
	assert.Equal(t, added.Category, got.Category)
}

func TestDB_SaveReplacesPreviousSet(t *testing.T) {
	db, err := OpenDB("", true)
	require.NoError(t, err)
	defer db.Close()

	s := NewStore()
	stale, err := s.Add(0, 1, "old")
	require.NoError(t, err)
	require.NoError(t, db.Save(s))

	require.NoError(t, s.Remove(stale.ID))
	_, err = s.Add(5, 6, "new")
	require.NoError(t, err)
	require.NoError(t, db.Save(s))

	loaded := NewStore()
	require.NoError(t, db.LoadInto(loaded))
	require.Equal(t, 1, loaded.Len())
	assert.Equal(t, "new", loaded.All()[0].Category)
}
