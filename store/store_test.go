package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/syncclipboard-go/types"
)

func openTestStore(t *testing.T, maxCount int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, maxCount)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func text(s string) types.ClipboardEntry {
	return types.TextEntry{Content: s}
}

func ids(records []types.HistoryRecord) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestEmptyStore(t *testing.T) {
	s, _ := openTestStore(t, 0)
	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok, err := s.LatestID()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveAssignsIncreasingIDs(t *testing.T) {
	s, _ := openTestStore(t, 0)
	for i := 1; i <= 3; i++ {
		id, err := s.Save(text(fmt.Sprint(i)))
		require.NoError(t, err)
		assert.EqualValues(t, i, id)
	}
	latest, err := s.Latest()
	require.NoError(t, err)
	assert.EqualValues(t, 3, latest.ID)
	assert.Equal(t, "3", latest.Content)
	assert.False(t, latest.Timestamp.IsZero())
}

func TestSaveRejectsInvalidEntry(t *testing.T) {
	s, _ := openTestStore(t, 0)
	_, err := s.Save(types.ImageEntry{Hash: "h"})
	assert.ErrorIs(t, err, types.ErrInvalidEntry)
}

func TestRetentionKeepsNewestUnpinned(t *testing.T) {
	s, _ := openTestStore(t, 5)
	for i := 0; i < 10; i++ {
		_, err := s.Save(text(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	records, err := s.History(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 9, 8, 7, 6}, ids(records))
}

func TestRetentionSparesPinned(t *testing.T) {
	s, _ := openTestStore(t, 5)
	for i := 0; i < 5; i++ {
		_, err := s.Save(text(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	// id 1 is the next deletion candidate.
	require.NoError(t, s.SetPinned(1, true))
	for i := 5; i < 10; i++ {
		_, err := s.Save(text(fmt.Sprint(i)))
		require.NoError(t, err)
	}

	records, err := s.History(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 10, 9, 8, 7, 6}, ids(records))
	assert.True(t, records[0].Pinned)
}

func TestHistoryPaging(t *testing.T) {
	s, _ := openTestStore(t, 0)
	for i := 0; i < 6; i++ {
		_, err := s.Save(text(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.SetPinned(2, true))

	page, err := s.History(3, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 6, 5}, ids(page))

	page, err = s.History(3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3, 1}, ids(page))

	page, err = s.History(3, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestDeleteAndPin(t *testing.T) {
	s, _ := openTestStore(t, 0)
	id, err := s.Save(types.FileEntry{Hash: "h", Filename: "h.txt", Device: "pc"})
	require.NoError(t, err)

	require.NoError(t, s.SetPinned(id, true))
	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.True(t, rec.Pinned)
	assert.Equal(t, types.KindFile, rec.Type)

	require.NoError(t, s.Delete(id))
	assert.ErrorIs(t, s.Delete(id), ErrNotFound)
	assert.ErrorIs(t, s.SetPinned(id, false), ErrNotFound)
	_, err = s.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIDsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, 0)
	require.NoError(t, err)
	_, err = s.Save(text("a"))
	require.NoError(t, err)
	id, err := s.Save(text("b"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(id))
	require.NoError(t, s.Close())

	s, err = Open(path, 0)
	require.NoError(t, err)
	defer s.Close()

	id, err = s.Save(text("c"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, id)
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
