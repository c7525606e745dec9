package page

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTablePage(t *testing.T, id uint32) *TablePage {
	t.Helper()
	tp, err := NewTablePage(id, nil, make([]byte, PageSize))
	require.NoError(t, err)
	return tp
}

func TestNewTablePageRejectsPageZero(t *testing.T) {
	_, err := NewTablePage(0, nil, make([]byte, PageSize))
	require.Error(t, err)
}

func TestNewTablePageSetsPrevPageID(t *testing.T) {
	prev := uint32(4)
	tp, err := NewTablePage(5, &prev, make([]byte, PageSize))
	require.NoError(t, err)
	got, err := tp.GetPrevPageID()
	require.NoError(t, err)
	require.EqualValues(t, 4, got)
}

func TestInsertAndGetTuple(t *testing.T) {
	tp := newTestTablePage(t, 1)
	tuple := NewTuple([]byte("hello world"))

	ok, err := tp.InsertTuple(tuple)
	require.NoError(t, err)
	require.True(t, ok)

	rid, hasRID := tuple.RID()
	require.True(t, hasRID)
	require.EqualValues(t, 1, rid.PageID)
	require.EqualValues(t, 0, rid.SlotNum)

	got, found, err := tp.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello world"), got.Data())
}

func TestInsertTupleRejectsEmptyPayload(t *testing.T) {
	tp := newTestTablePage(t, 1)
	_, err := tp.InsertTuple(NewTuple(nil))
	require.Error(t, err)
}

func TestInsertTupleFailsWhenFull(t *testing.T) {
	tp := newTestTablePage(t, 1)
	payload := make([]byte, PageSize)
	ok, err := tp.InsertTuple(NewTuple(payload))
	require.NoError(t, err)
	require.False(t, ok, "a tuple larger than the remaining free space must not fit")
}

func TestMarkDeleteThenApplyDeleteCompacts(t *testing.T) {
	tp := newTestTablePage(t, 1)
	t1 := NewTuple([]byte("aaaa"))
	t2 := NewTuple([]byte("bbbbbb"))
	_, err := tp.InsertTuple(t1)
	require.NoError(t, err)
	_, err = tp.InsertTuple(t2)
	require.NoError(t, err)

	rid1, _ := t1.RID()
	ok, err := tp.MarkDelete(rid1)
	require.NoError(t, err)
	require.True(t, ok)

	// tombstoned tuples are invisible to GetTuple
	_, found, err := tp.GetTuple(rid1)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, tp.ApplyDelete(rid1))

	rid2, _ := t2.RID()
	got2, found, err := tp.GetTuple(rid2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("bbbbbb"), got2.Data())
}

func TestRollbackDeleteRestoresVisibility(t *testing.T) {
	tp := newTestTablePage(t, 1)
	tuple := NewTuple([]byte("keepme"))
	_, err := tp.InsertTuple(tuple)
	require.NoError(t, err)
	rid, _ := tuple.RID()

	_, err = tp.MarkDelete(rid)
	require.NoError(t, err)
	require.NoError(t, tp.RollbackDelete(rid))

	_, found, err := tp.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
}

func TestInsertReusesFreedSlot(t *testing.T) {
	tp := newTestTablePage(t, 1)
	t1 := NewTuple([]byte("aaaa"))
	_, err := tp.InsertTuple(t1)
	require.NoError(t, err)
	rid1, _ := t1.RID()
	_, err = tp.MarkDelete(rid1)
	require.NoError(t, err)
	require.NoError(t, tp.ApplyDelete(rid1))

	t2 := NewTuple([]byte("bb"))
	ok, err := tp.InsertTuple(t2)
	require.NoError(t, err)
	require.True(t, ok)
	rid2, _ := t2.RID()
	require.EqualValues(t, 0, rid2.SlotNum, "the freed slot 0 should be reused rather than growing the directory")

	count, err := tp.GetTupleCount()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestUpdateTupleGrowAndShrink(t *testing.T) {
	tp := newTestTablePage(t, 1)
	tuple := NewTuple([]byte("short"))
	_, err := tp.InsertTuple(tuple)
	require.NoError(t, err)
	rid, _ := tuple.RID()

	grown := NewTuple([]byte("a much longer replacement value"))
	grown.SetRID(rid)
	require.NoError(t, tp.UpdateTuple(grown))

	got, found, err := tp.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("a much longer replacement value"), got.Data())

	shrunk := NewTuple([]byte("tiny"))
	shrunk.SetRID(rid)
	require.NoError(t, tp.UpdateTuple(shrunk))

	got, found, err = tp.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("tiny"), got.Data())
}

func TestUpdateTupleAdjustsOtherSlotOffsets(t *testing.T) {
	tp := newTestTablePage(t, 1)
	t1 := NewTuple([]byte("first-tuple-value"))
	t2 := NewTuple([]byte("second"))
	_, err := tp.InsertTuple(t1)
	require.NoError(t, err)
	_, err = tp.InsertTuple(t2)
	require.NoError(t, err)

	rid1, _ := t1.RID()
	rid2, _ := t2.RID()

	grown := NewTuple([]byte("a considerably longer first tuple value than before"))
	grown.SetRID(rid1)
	require.NoError(t, tp.UpdateTuple(grown))

	got2, found, err := tp.GetTuple(rid2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("second"), got2.Data(), "growing an earlier tuple must not corrupt a later one's bytes")
}

func TestGetFirstAndNextTupleRIDSkipTombstones(t *testing.T) {
	tp := newTestTablePage(t, 1)
	t1 := NewTuple([]byte("one"))
	t2 := NewTuple([]byte("two"))
	t3 := NewTuple([]byte("three"))
	for _, tup := range []*Tuple{t1, t2, t3} {
		_, err := tp.InsertTuple(tup)
		require.NoError(t, err)
	}
	rid2, _ := t2.RID()
	_, err := tp.MarkDelete(rid2)
	require.NoError(t, err)

	first, ok, err := tp.GetFirstTupleRID()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0, first.SlotNum)

	next, ok, err := tp.GetNextTupleRID(first)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, next.SlotNum, "slot 1 is tombstoned and must be skipped")

	_, ok, err = tp.GetNextTupleRID(next)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeletePageSetsTombstone(t *testing.T) {
	tp := newTestTablePage(t, 1)
	deleted, err := tp.PageIsDeleted()
	require.NoError(t, err)
	require.False(t, deleted)

	require.NoError(t, tp.DeletePage())

	deleted, err = tp.PageIsDeleted()
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestLoadTablePagePreservesContent(t *testing.T) {
	tp := newTestTablePage(t, 1)
	tuple := NewTuple([]byte("persisted"))
	_, err := tp.InsertTuple(tuple)
	require.NoError(t, err)

	snapshot := tp.Raw().Snapshot()
	reloaded, err := LoadTablePage(1, snapshot)
	require.NoError(t, err)
	require.EqualValues(t, 1, reloaded.PageID())

	rid, _ := tuple.RID()
	got, found, err := reloaded.GetTuple(rid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("persisted"), got.Data())
}
