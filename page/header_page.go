package page

import (
	"encoding/binary"
	"strings"
)

// Header page (page id 0) layout, per spec.md §3:
//
//	offset 0      : record_count  u32 LE
//	offset 4+i*36 : name (32 bytes, zero-padded UTF-8) | root_id (u32 LE)
const (
	headerNameSize   = 32
	headerEntrySize  = headerNameSize + 4 // name + root_id
	headerCountSize  = 4
	headerFirstEntry = headerCountSize
)

// HeaderPage is the catalog of named roots stored at page id 0. It stays
// resident across the engine's lifetime (see spec.md §4.3).
type HeaderPage struct {
	raw *RawPage
}

// NewHeaderPage wraps content (PageSize bytes, either freshly zeroed or
// read back from disk) as the header page. Unlike a table page, a header
// page's content is never re-initialized here: a zeroed buffer already
// reads back as record_count == 0, so opening an empty database and
// opening an existing one go through the same constructor.
func NewHeaderPage(content []byte) (*HeaderPage, error) {
	raw, err := newRawPage(0, content)
	if err != nil {
		return nil, err
	}
	return &HeaderPage{raw: raw}, nil
}

// Raw exposes the underlying page, e.g. for the buffer pool to snapshot on
// flush.
func (h *HeaderPage) Raw() *RawPage {
	return h.raw
}

// GetRecordCount returns the number of live catalog entries.
func (h *HeaderPage) GetRecordCount() (uint32, error) {
	var buf [4]byte
	if _, err := h.raw.ReadData(buf[:], 0); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (h *HeaderPage) setRecordCount(count uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], count)
	_, err := h.raw.WriteData(buf[:], 0)
	return err
}

// InsertRecord appends a (name, root_id) entry. Rejects names longer than
// 32 bytes and duplicate names, returning false rather than an error since
// those are expected "cannot" outcomes, not invariant violations.
func (h *HeaderPage) InsertRecord(name string, rootID uint32) (bool, error) {
	if len(name) > headerNameSize {
		return false, nil
	}
	if _, found, err := h.findRecordNum(name); err != nil {
		return false, err
	} else if found {
		return false, nil
	}
	count, err := h.GetRecordCount()
	if err != nil {
		return false, err
	}
	entryOffset := headerFirstEntry + int(count)*headerEntrySize
	nameBuf := make([]byte, headerNameSize)
	copy(nameBuf, name)
	if _, err := h.raw.WriteData(nameBuf, entryOffset); err != nil {
		return false, err
	}
	var rootBuf [4]byte
	binary.LittleEndian.PutUint32(rootBuf[:], rootID)
	if _, err := h.raw.WriteData(rootBuf[:], entryOffset+headerNameSize); err != nil {
		return false, err
	}
	if err := h.setRecordCount(count + 1); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteRecord removes the named entry, compacting the tail of the catalog
// left by 36 bytes so entries are packed with no holes.
func (h *HeaderPage) DeleteRecord(name string) (bool, error) {
	recordNum, found, err := h.findRecordNum(name)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	count, err := h.GetRecordCount()
	if err != nil {
		return false, err
	}
	entryOffset := headerFirstEntry + int(recordNum)*headerEntrySize
	tailStart := entryOffset + headerEntrySize
	tailEnd := headerFirstEntry + int(count)*headerEntrySize
	if tailEnd > tailStart {
		tail := make([]byte, tailEnd-tailStart)
		if _, err := h.raw.ReadData(tail, tailStart); err != nil {
			return false, err
		}
		if _, err := h.raw.WriteData(tail, entryOffset); err != nil {
			return false, err
		}
	}
	if err := h.setRecordCount(count - 1); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateRecord overwrites the root_id field of an existing entry.
func (h *HeaderPage) UpdateRecord(name string, rootID uint32) (bool, error) {
	recordNum, found, err := h.findRecordNum(name)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	entryOffset := headerFirstEntry + int(recordNum)*headerEntrySize
	var rootBuf [4]byte
	binary.LittleEndian.PutUint32(rootBuf[:], rootID)
	if _, err := h.raw.WriteData(rootBuf[:], entryOffset+headerNameSize); err != nil {
		return false, err
	}
	return true, nil
}

// GetRootID looks up the root page id for name. The bool is false if name
// is not in the catalog; this is a semantic miss, never an error.
func (h *HeaderPage) GetRootID(name string) (uint32, bool, error) {
	recordNum, found, err := h.findRecordNum(name)
	if err != nil || !found {
		return 0, false, err
	}
	entryOffset := headerFirstEntry + int(recordNum)*headerEntrySize
	var rootBuf [4]byte
	if _, err := h.raw.ReadData(rootBuf[:], entryOffset+headerNameSize); err != nil {
		return 0, false, err
	}
	return binary.LittleEndian.Uint32(rootBuf[:]), true, nil
}

// findRecordNum linear-scans the catalog for name, comparing as UTF-8 with
// trailing NUL padding stripped. This mirrors the original source's
// find_record_num technique rather than introducing a side index: catalogs
// are small and this keeps insert/delete/update simple and allocation-free
// beyond the scan buffer.
func (h *HeaderPage) findRecordNum(name string) (uint32, bool, error) {
	if len(name) > headerNameSize {
		return 0, false, nil
	}
	count, err := h.GetRecordCount()
	if err != nil {
		return 0, false, err
	}
	nameBuf := make([]byte, headerNameSize)
	for i := uint32(0); i < count; i++ {
		entryOffset := headerFirstEntry + int(i)*headerEntrySize
		if _, err := h.raw.ReadData(nameBuf, entryOffset); err != nil {
			return 0, false, err
		}
		if strings.TrimRight(string(nameBuf), "\x00") == name {
			return i, true, nil
		}
	}
	return 0, false, nil
}
