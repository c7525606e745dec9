package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"toydb/page"
	"toydb/pager"
)

func newTestPool(t *testing.T, capacity uint32) *BufferPoolManager {
	t.Helper()
	dm, err := pager.Open(true, "")
	require.NoError(t, err)
	bp, err := Open(dm, capacity)
	require.NoError(t, err)
	return bp
}

func TestCreateThenFetchRoundTrips(t *testing.T) {
	bp := newTestPool(t, 4)

	created, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.True(t, ok)
	tuple := page.NewTuple([]byte("hello"))
	inserted, err := created.InsertTuple(tuple)
	require.NoError(t, err)
	require.True(t, inserted)

	fetched, ok, err := bp.FetchPage(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, created, fetched, "fetching a resident page must return the same in-memory instance")

	rid, hasRID := tuple.RID()
	require.True(t, hasRID)
	got, found, err := fetched.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), got.Data())
}

func TestFetchPageRejectsPageZero(t *testing.T) {
	bp := newTestPool(t, 4)
	_, _, err := bp.FetchPage(0)
	require.Error(t, err)
}

func TestFetchPageMissOnNeverWrittenPage(t *testing.T) {
	bp := newTestPool(t, 4)
	tp, ok, err := bp.FetchPage(9999)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, tp)
}

func TestCreatePageRejectsDuplicate(t *testing.T) {
	bp := newTestPool(t, 4)
	_, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.True(t, ok)

	dup, ok, err := bp.CreatePage(1)
	require.NoError(t, err, "a page id collision is a documented miss, not an error")
	require.False(t, ok)
	require.Nil(t, dup)
}

func TestCreatePageRejectsDuplicateAfterEviction(t *testing.T) {
	// Page 1 is created, then written back and evicted from the resident
	// pool by creating page 2 into a one-slot pool. A second CreatePage(1)
	// must still be rejected, via have_page against the on-disk file, not
	// just the replacer's residency check.
	bp := newTestPool(t, 1)
	_, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = bp.CreatePage(2)
	require.NoError(t, err)
	require.True(t, ok)

	dup, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, dup)
}

func TestEvictionWritesBackBeforeReuse(t *testing.T) {
	bp := newTestPool(t, 1)

	first, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = first.InsertTuple(page.NewTuple([]byte("persisted")))
	require.NoError(t, err)
	require.True(t, first.Raw().IsDirty())

	// Creating a second page while the pool only holds one slot forces
	// page 1 to be written back and evicted.
	_, ok, err = bp.CreatePage(2)
	require.NoError(t, err)
	require.True(t, ok)

	reloaded, ok, err := bp.FetchPage(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotSame(t, first, reloaded, "page 1 should have been evicted and reloaded fresh")

	rid := page.RID{PageID: 1, SlotNum: 0}
	tuple, found, err := reloaded.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("persisted"), tuple.Data())
}

func TestDeletePageMarksTombstone(t *testing.T) {
	bp := newTestPool(t, 4)
	_, ok, err := bp.CreatePage(1)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := bp.DeletePage(1)
	require.NoError(t, err)
	require.True(t, deleted)

	tp, ok, err := bp.FetchPage(1)
	require.NoError(t, err)
	require.True(t, ok)
	isDeleted, err := tp.PageIsDeleted()
	require.NoError(t, err)
	require.True(t, isDeleted)
}

func TestDeletePageMissOnUnknownPage(t *testing.T) {
	bp := newTestPool(t, 4)
	deleted, err := bp.DeletePage(42)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestFlushAllPersistsHeaderPage(t *testing.T) {
	bp := newTestPool(t, 4)
	_, err := bp.HeaderPage().InsertRecord("users", 7)
	require.NoError(t, err)

	require.NoError(t, bp.FlushAll())
	require.False(t, bp.HeaderPage().Raw().IsDirty())
}
