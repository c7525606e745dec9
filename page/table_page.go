package page

import (
	"encoding/binary"

	"toydb/internal/engineerr"
)

// Table page (page id >= 1) layout, per spec.md §3:
//
//	0  : page_id         u32 LE   (immutable after creation)
//	4  : deleted flag    u8       (page-level tombstone)
//	5  : lsn             u32      (opaque, native-endian)
//	9  : prev_page_id    u32 LE
//	13 : next_page_id    u32 LE
//	17 : free_space_ptr  u32 LE
//	21 : tuple_count     u32 LE
//	25.. : slot directory: (offset u32 LE, size u32 LE) per slot
//	... tuples, growing downward from PageSize
const (
	sizeTableHeader   = 25
	sizeSlot          = 8
	offsetPageID      = 0
	offsetDeletedFlag = 4
	offsetLSN         = 5
	offsetPrevPageID  = 9
	offsetNextPageID  = 13
	offsetFreeSpace   = 17
	offsetTupleCount  = 21
	offsetSlotDir     = sizeTableHeader

	// deleteMask is the high bit of a slot's 4-byte size field: the
	// tombstone bit. size == 0 (no bits set) means free instead.
	deleteMask uint32 = 1 << 31
)

// TablePage is the slotted tuple page described in spec.md §4.4: a fixed
// header, a slot directory that only grows, and tuples packed from the
// tail of the page downward.
type TablePage struct {
	raw *RawPage
}

// NewTablePage initializes a fresh table page. pageID must be nonzero (0 is
// reserved for the header page). prevPageID, if non-nil, seeds the page's
// backward link; this mirrors buffer_pool.rs's convention of linking a
// freshly faulted-in page to its numeric predecessor.
func NewTablePage(pageID uint32, prevPageID *uint32, content []byte) (*TablePage, error) {
	if pageID == 0 {
		return nil, engineerr.Value("table page id cannot be 0, that id is reserved for the header page")
	}
	raw, err := newRawPage(pageID, content)
	if err != nil {
		return nil, err
	}
	tp := &TablePage{raw: raw}
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], pageID)
	if _, err := tp.raw.WriteData(idBuf[:], offsetPageID); err != nil {
		return nil, err
	}
	if err := tp.setTupleCount(0); err != nil {
		return nil, err
	}
	if prevPageID != nil {
		if err := tp.SetPrevPageID(*prevPageID); err != nil {
			return nil, err
		}
	}
	if err := tp.setFreeSpacePointer(uint32(PageSize)); err != nil {
		return nil, err
	}
	return tp, nil
}

// LoadTablePage wraps content, already read back from disk at pageID, as
// the table page it was written from. Unlike NewTablePage it never resets
// the tuple directory or free space pointer: content already carries that
// state. pageID comes from the caller (the disk offset it was read from),
// not from the embedded page_id field: a page that has never been written
// reads back as all zeros, and trusting those bytes over the caller's own
// bookkeeping would silently mislabel it as page 0, the header page.
func LoadTablePage(pageID uint32, content []byte) (*TablePage, error) {
	if pageID == 0 {
		return nil, engineerr.Value("table page id cannot be 0, that id is reserved for the header page")
	}
	raw, err := newRawPage(pageID, content)
	if err != nil {
		return nil, err
	}
	return &TablePage{raw: raw}, nil
}

// Raw exposes the underlying page for the buffer pool to snapshot on
// flush.
func (tp *TablePage) Raw() *RawPage {
	return tp.raw
}

// PageID returns this page's immutable identity.
func (tp *TablePage) PageID() uint32 {
	return tp.raw.PageID()
}

func (tp *TablePage) readU32(offset int) (uint32, error) {
	var buf [4]byte
	if _, err := tp.raw.ReadData(buf[:], offset); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (tp *TablePage) writeU32(offset int, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := tp.raw.WriteData(buf[:], offset)
	return err
}

// GetLSN reads the opaque log sequence cookie. Stored in the engine's
// native endianness since it carries no cross-engine meaning (spec.md §4.2,
// §9).
func (tp *TablePage) GetLSN() (uint32, error) {
	var buf [4]byte
	if _, err := tp.raw.ReadData(buf[:], offsetLSN); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

// SetLSN writes the opaque log sequence cookie.
func (tp *TablePage) SetLSN(lsn uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], lsn)
	_, err := tp.raw.WriteData(buf[:], offsetLSN)
	return err
}

// GetPrevPageID returns the previous page id in the chain (0 if none).
func (tp *TablePage) GetPrevPageID() (uint32, error) {
	return tp.readU32(offsetPrevPageID)
}

// SetPrevPageID sets the previous page id in the chain.
func (tp *TablePage) SetPrevPageID(id uint32) error {
	return tp.writeU32(offsetPrevPageID, id)
}

// GetNextPageID returns the next page id in the chain (0 if none).
func (tp *TablePage) GetNextPageID() (uint32, error) {
	return tp.readU32(offsetNextPageID)
}

// SetNextPageID sets the next page id in the chain.
func (tp *TablePage) SetNextPageID(id uint32) error {
	return tp.writeU32(offsetNextPageID, id)
}

func (tp *TablePage) getFreeSpacePointer() (uint32, error) {
	return tp.readU32(offsetFreeSpace)
}

func (tp *TablePage) setFreeSpacePointer(v uint32) error {
	return tp.writeU32(offsetFreeSpace, v)
}

// GetTupleCount returns the upper bound on live slots (spec.md §3): it
// counts free and tombstoned slots too, since reclaimed slots are reused
// without decrementing the count.
func (tp *TablePage) GetTupleCount() (uint32, error) {
	return tp.readU32(offsetTupleCount)
}

func (tp *TablePage) setTupleCount(v uint32) error {
	return tp.writeU32(offsetTupleCount, v)
}

func (tp *TablePage) slotOffsetOffset(slot uint32) int {
	return offsetSlotDir + int(slot)*sizeSlot
}

func (tp *TablePage) slotSizeOffset(slot uint32) int {
	return offsetSlotDir + int(slot)*sizeSlot + 4
}

func (tp *TablePage) getSlotOffset(slot uint32) (uint32, error) {
	return tp.readU32(tp.slotOffsetOffset(slot))
}

func (tp *TablePage) setSlotOffset(slot uint32, offset uint32) error {
	return tp.writeU32(tp.slotOffsetOffset(slot), offset)
}

func (tp *TablePage) getSlotSize(slot uint32) (uint32, error) {
	return tp.readU32(tp.slotSizeOffset(slot))
}

func (tp *TablePage) setSlotSize(slot uint32, size uint32) error {
	return tp.writeU32(tp.slotSizeOffset(slot), size)
}

func isTombstone(size uint32) bool {
	return size&deleteMask != 0
}

func isFree(size uint32) bool {
	return size == 0
}

// FreeSpaceRemaining returns the number of bytes available for new tuple
// payload plus its slot entry, per spec.md §4.4's free-space accounting.
func (tp *TablePage) FreeSpaceRemaining() (uint32, error) {
	freeSpacePtr, err := tp.getFreeSpacePointer()
	if err != nil {
		return 0, err
	}
	tupleCount, err := tp.GetTupleCount()
	if err != nil {
		return 0, err
	}
	used := uint32(sizeTableHeader) + uint32(sizeSlot)*tupleCount
	if used > freeSpacePtr {
		return 0, nil
	}
	return freeSpacePtr - used, nil
}

// findFreeSlot returns the lowest-indexed free (size == 0) slot, if any.
func (tp *TablePage) findFreeSlot() (uint32, bool, error) {
	count, err := tp.GetTupleCount()
	if err != nil {
		return 0, false, err
	}
	for i := uint32(0); i < count; i++ {
		size, err := tp.getSlotSize(i)
		if err != nil {
			return 0, false, err
		}
		if isFree(size) {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// InsertTuple allocates a slot for tuple, reusing the lowest free slot if
// one exists, otherwise growing the slot directory. Returns false (not an
// error) if there is not enough free space.
func (tp *TablePage) InsertTuple(tuple *Tuple) (bool, error) {
	if tuple.Length() == 0 {
		return false, engineerr.Value("cannot insert an empty tuple")
	}
	remaining, err := tp.FreeSpaceRemaining()
	if err != nil {
		return false, err
	}
	needsNewSlot := true
	slot, found, err := tp.findFreeSlot()
	if err != nil {
		return false, err
	}
	if found {
		needsNewSlot = false
	} else {
		slot, err = tp.GetTupleCount()
		if err != nil {
			return false, err
		}
	}
	required := uint32(tuple.Length())
	if needsNewSlot {
		required += sizeSlot
	}
	if remaining < required {
		return false, nil
	}

	freeSpacePtr, err := tp.getFreeSpacePointer()
	if err != nil {
		return false, err
	}
	newFreeSpacePtr := freeSpacePtr - uint32(tuple.Length())
	if _, err := tp.raw.WriteData(tuple.Data(), int(newFreeSpacePtr)); err != nil {
		return false, err
	}
	if err := tp.setFreeSpacePointer(newFreeSpacePtr); err != nil {
		return false, err
	}
	if err := tp.setSlotOffset(slot, newFreeSpacePtr); err != nil {
		return false, err
	}
	if err := tp.setSlotSize(slot, uint32(tuple.Length())); err != nil {
		return false, err
	}
	if needsNewSlot {
		if err := tp.setTupleCount(slot + 1); err != nil {
			return false, err
		}
	}
	tuple.SetRID(RID{PageID: tp.PageID(), SlotNum: slot})
	tuple.MarkAllocated()
	return true, nil
}

// MarkDelete tombstones rid's slot without reclaiming its bytes. Returns
// false if the slot does not exist or is already tombstoned.
func (tp *TablePage) MarkDelete(rid RID) (bool, error) {
	count, err := tp.GetTupleCount()
	if err != nil {
		return false, err
	}
	if rid.SlotNum >= count {
		return false, nil
	}
	size, err := tp.getSlotSize(rid.SlotNum)
	if err != nil {
		return false, err
	}
	if isTombstone(size) {
		return false, nil
	}
	if size > 0 {
		if err := tp.setSlotSize(rid.SlotNum, size|deleteMask); err != nil {
			return false, err
		}
	}
	return true, nil
}

// RollbackDelete clears a tombstone bit previously set by MarkDelete.
func (tp *TablePage) RollbackDelete(rid RID) error {
	count, err := tp.GetTupleCount()
	if err != nil {
		return err
	}
	if rid.SlotNum >= count {
		return engineerr.Value("rollback_delete: slot number out of range")
	}
	size, err := tp.getSlotSize(rid.SlotNum)
	if err != nil {
		return err
	}
	if isTombstone(size) {
		return tp.setSlotSize(rid.SlotNum, size&^deleteMask)
	}
	return nil
}

// ApplyDelete permanently reclaims a tombstoned slot's bytes, compacting
// the tuple region and shifting every slot whose tuple sat below the freed
// tuple's offset.
func (tp *TablePage) ApplyDelete(rid RID) error {
	if rid.PageID != tp.PageID() {
		return engineerr.Value("apply_delete: rid does not target this page")
	}
	count, err := tp.GetTupleCount()
	if err != nil {
		return err
	}
	if rid.SlotNum >= count {
		return engineerr.Value("apply_delete: slot number out of range")
	}
	size, err := tp.getSlotSize(rid.SlotNum)
	if err != nil {
		return err
	}
	if !isTombstone(size) {
		return engineerr.Value("apply_delete: tuple was not marked deleted")
	}
	tupleSize := size &^ deleteMask
	tupleOffset, err := tp.getSlotOffset(rid.SlotNum)
	if err != nil {
		return err
	}
	freeSpacePtr, err := tp.getFreeSpacePointer()
	if err != nil {
		return err
	}
	if tupleOffset < freeSpacePtr {
		return engineerr.Value("apply_delete: free space pointer appears after the tuple")
	}

	if err := tp.setSlotSize(rid.SlotNum, 0); err != nil {
		return err
	}
	if err := tp.setSlotOffset(rid.SlotNum, 0); err != nil {
		return err
	}

	newFreeSpacePtr := freeSpacePtr + tupleSize
	if err := tp.setFreeSpacePointer(newFreeSpacePtr); err != nil {
		return err
	}

	if err := tp.shiftTupleBytes(freeSpacePtr, tupleOffset, tupleSize); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		off, err := tp.getSlotOffset(i)
		if err != nil {
			return err
		}
		sz, err := tp.getSlotSize(i)
		if err != nil {
			return err
		}
		if isFree(sz) {
			continue
		}
		if off < tupleOffset {
			if err := tp.setSlotOffset(i, off+tupleSize); err != nil {
				return err
			}
		}
	}
	return nil
}

// shiftTupleBytes copies the [from, to) region of the page up by distance
// bytes, used by ApplyDelete to compact the gap left by a reclaimed tuple.
func (tp *TablePage) shiftTupleBytes(from, to, distance uint32) error {
	if to <= from {
		return nil
	}
	region := make([]byte, to-from)
	if _, err := tp.raw.ReadData(region, int(from)); err != nil {
		return err
	}
	_, err := tp.raw.WriteData(region, int(from+distance))
	return err
}

// UpdateTuple replaces the bytes of the tuple named by tuple.RID() with
// tuple's new payload, growing or shrinking the tuple region in place.
func (tp *TablePage) UpdateTuple(tuple *Tuple) error {
	rid, ok := tuple.RID()
	if !ok {
		return engineerr.Value("update_tuple: tuple has no RID")
	}
	newSize := uint32(tuple.Length())
	if newSize == 0 {
		return engineerr.Value("cannot update to an empty tuple")
	}
	count, err := tp.GetTupleCount()
	if err != nil {
		return err
	}
	if rid.SlotNum >= count {
		return engineerr.Value("update_tuple: slot number out of range")
	}
	oldSize, err := tp.getSlotSize(rid.SlotNum)
	if err != nil {
		return err
	}
	if isTombstone(oldSize) {
		return engineerr.Value("update_tuple: tuple is marked deleted")
	}
	remaining, err := tp.FreeSpaceRemaining()
	if err != nil {
		return err
	}
	if remaining+oldSize < newSize {
		return engineerr.Value("update_tuple: not enough free space for the new tuple size")
	}
	oldOffset, err := tp.getSlotOffset(rid.SlotNum)
	if err != nil {
		return err
	}
	freeSpacePtr, err := tp.getFreeSpacePointer()
	if err != nil {
		return err
	}
	if oldOffset < freeSpacePtr {
		return engineerr.Value("update_tuple: offset appears before free space")
	}

	// Shift [freeSpacePtr, oldOffset) by (oldSize - newSize): toward lower
	// offsets if the tuple grew (oldSize < newSize, the shift is negative),
	// toward higher offsets if it shrank.
	shifted := make([]byte, oldOffset-freeSpacePtr)
	if _, err := tp.raw.ReadData(shifted, int(freeSpacePtr)); err != nil {
		return err
	}
	newFreeSpacePtr := freeSpacePtr + oldSize - newSize
	if _, err := tp.raw.WriteData(shifted, int(newFreeSpacePtr)); err != nil {
		return err
	}
	if err := tp.setFreeSpacePointer(newFreeSpacePtr); err != nil {
		return err
	}

	newOffset := oldOffset + oldSize - newSize
	if _, err := tp.raw.WriteData(tuple.Data(), int(newOffset)); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		off, err := tp.getSlotOffset(i)
		if err != nil {
			return err
		}
		sz, err := tp.getSlotSize(i)
		if err != nil {
			return err
		}
		if isFree(sz) || i == rid.SlotNum {
			continue
		}
		if off < oldOffset {
			if err := tp.setSlotOffset(i, off+oldSize-newSize); err != nil {
				return err
			}
		}
	}

	if err := tp.setSlotOffset(rid.SlotNum, newOffset); err != nil {
		return err
	}
	if err := tp.setSlotSize(rid.SlotNum, newSize); err != nil {
		return err
	}
	return nil
}

// GetTuple returns a copy of the tuple at rid, or ok == false if the slot
// is past tuple_count or tombstoned. A copy is always returned (never a
// sub-slice of the page buffer) so a later eviction cannot invalidate bytes
// already handed to a caller (spec.md §9, Open Questions).
func (tp *TablePage) GetTuple(rid RID) (*Tuple, bool, error) {
	if rid.PageID != tp.PageID() {
		return nil, false, engineerr.Value("get_tuple: rid does not target this page")
	}
	count, err := tp.GetTupleCount()
	if err != nil {
		return nil, false, err
	}
	if rid.SlotNum >= count {
		return nil, false, nil
	}
	size, err := tp.getSlotSize(rid.SlotNum)
	if err != nil {
		return nil, false, err
	}
	if isTombstone(size) || isFree(size) {
		return nil, false, nil
	}
	offset, err := tp.getSlotOffset(rid.SlotNum)
	if err != nil {
		return nil, false, err
	}
	data := make([]byte, size)
	if _, err := tp.raw.ReadData(data, int(offset)); err != nil {
		return nil, false, err
	}
	tuple := NewTuple(data)
	tuple.SetRID(RID{PageID: tp.PageID(), SlotNum: rid.SlotNum})
	tuple.MarkAllocated()
	return tuple, true, nil
}

// GetFirstTupleRID returns the first non-tombstoned slot's RID in
// ascending slot order, or ok == false if the page has no live tuples.
func (tp *TablePage) GetFirstTupleRID() (RID, bool, error) {
	count, err := tp.GetTupleCount()
	if err != nil {
		return RID{}, false, err
	}
	pageID := tp.PageID()
	for i := uint32(0); i < count; i++ {
		size, err := tp.getSlotSize(i)
		if err != nil {
			return RID{}, false, err
		}
		if !isTombstone(size) && !isFree(size) {
			return RID{PageID: pageID, SlotNum: i}, true, nil
		}
	}
	return RID{}, false, nil
}

// GetNextTupleRID returns the next non-tombstoned slot after cur, in
// ascending slot order. Only cur's slot number is consulted, so cur's own
// slot need not still hold a live tuple: RIDs are slot-indexed, not
// byte-indexed, and a compacting ApplyDelete does not change which slot
// index the scan continues from.
func (tp *TablePage) GetNextTupleRID(cur RID) (RID, bool, error) {
	if cur.PageID != tp.PageID() {
		return RID{}, false, engineerr.Value("get_next_tuple_rid: rid does not target this page")
	}
	count, err := tp.GetTupleCount()
	if err != nil {
		return RID{}, false, err
	}
	for i := cur.SlotNum + 1; i < count; i++ {
		size, err := tp.getSlotSize(i)
		if err != nil {
			return RID{}, false, err
		}
		if !isTombstone(size) && !isFree(size) {
			return RID{PageID: tp.PageID(), SlotNum: i}, true, nil
		}
	}
	return RID{}, false, nil
}

// DeletePage sets the page-level tombstone. This does not reclaim the
// page's storage (truncation is out of scope); it only marks the page as
// logically gone.
func (tp *TablePage) DeletePage() error {
	_, err := tp.raw.WriteData([]byte{1}, offsetDeletedFlag)
	return err
}

// PageIsDeleted reports whether the page-level tombstone is set.
func (tp *TablePage) PageIsDeleted() (bool, error) {
	var buf [1]byte
	if _, err := tp.raw.ReadData(buf[:], offsetDeletedFlag); err != nil {
		return false, err
	}
	return buf[0] == 1, nil
}
