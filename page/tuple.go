package page

// RID is a tuple's record identifier: the page it lives on and its slot
// index within that page's directory. Stable for the tuple's lifetime on
// the page; apply_delete frees the slot, after which the RID may be
// recycled by a later insert.
type RID struct {
	PageID  uint32
	SlotNum uint32
}

// Tuple is an opaque byte payload with an optional RID. Tuples carry no
// schema at this layer; interpretation belongs to callers above the
// storage engine.
type Tuple struct {
	data      []byte
	rid       RID
	hasRID    bool
	allocated bool
}

// NewTuple wraps data as an unallocated tuple with no RID yet.
func NewTuple(data []byte) *Tuple {
	return &Tuple{data: data}
}

// Data returns the tuple's raw bytes.
func (t *Tuple) Data() []byte {
	return t.data
}

// Length returns the length of the tuple's payload in bytes.
func (t *Tuple) Length() int {
	return len(t.data)
}

// RID returns the tuple's record identifier, if it has been assigned one
// (i.e. the tuple has been inserted into or read from a table page).
func (t *Tuple) RID() (RID, bool) {
	return t.rid, t.hasRID
}

// SetRID assigns the tuple's RID. Called by TablePage on insert and on
// read-back.
func (t *Tuple) SetRID(rid RID) {
	t.rid = rid
	t.hasRID = true
}

// MarkAllocated records that this tuple has been assigned a slot on some
// page.
func (t *Tuple) MarkAllocated() {
	t.allocated = true
}

// IsAllocated reports whether the tuple has been assigned a slot.
func (t *Tuple) IsAllocated() bool {
	return t.allocated
}
