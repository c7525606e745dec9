// Package page implements the on-disk byte layouts of spec.md §3: the raw
// fixed-size page buffer, the header/catalog page at id 0, and the slotted
// table page used for id >= 1. Header and table pages are built by
// containing a RawPage and exposing their own typed operations over it,
// rather than by "is-a Page" inheritance (see spec.md §9, re-architecture
// notes) — this mirrors chirst-cdb's pager.Page except split into the
// dedicated raw/header/table roles spec.md calls for.
package page

import (
	"sync"

	"toydb/internal/engineerr"
)

// PageSize is the fixed size, in bytes, of every page in a database file.
// The reference value is 4096; see spec.md §9 on the source's 4095 drift.
const PageSize = 4096

// RawPage is a fixed-size byte buffer plus its identity, pin count and
// dirty flag. All multi-page components (HeaderPage, TablePage) contain one
// of these rather than subclassing it.
//
// Each resident RawPage's payload is guarded by its own mutex, per spec.md
// §5's "simplest faithful implementation" note; callers must not re-enter
// ReadData/WriteData on the same RawPage from within a callback.
type RawPage struct {
	mu       sync.Mutex
	content  []byte
	id       uint32
	pinCount uint32
	dirty    bool
}

// newRawPage wraps content (which must be exactly PageSize bytes) under id.
func newRawPage(id uint32, content []byte) (*RawPage, error) {
	if len(content) != PageSize {
		return nil, engineerr.Valuef("page content must be %d bytes, got %d", PageSize, len(content))
	}
	return &RawPage{content: content, id: id}, nil
}

// PageID returns the page's identity. Immutable after construction.
func (p *RawPage) PageID() uint32 {
	return p.id
}

// PinCount returns the number of outstanding pins held on this page.
func (p *RawPage) PinCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pinCount
}

// Pin increments the pin count. Buffer pool bookkeeping only; the engine
// does not itself block on pin count (see spec.md §5, "page operations do
// not suspend").
func (p *RawPage) Pin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinCount++
}

// Unpin decrements the pin count, floored at zero.
func (p *RawPage) Unpin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pinCount > 0 {
		p.pinCount--
	}
}

// IsDirty reports whether the page's bytes differ from the on-disk image.
func (p *RawPage) IsDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *RawPage) markDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// ClearDirty is called by the buffer pool after a successful write-back.
func (p *RawPage) ClearDirty() {
	p.mu.Lock()
	p.dirty = false
	p.mu.Unlock()
}

// ReadData copies up to len(dst) bytes starting at offset into dst,
// clamped to the page's bounds, and returns the number of bytes actually
// copied. offset > PageSize fails; offset == PageSize returns 0 bytes.
func (p *RawPage) ReadData(dst []byte, offset int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offset > len(p.content) {
		return 0, engineerr.Valuef("offset %d is out of range for page of size %d", offset, len(p.content))
	}
	end := offset + len(dst)
	if end > len(p.content) {
		end = len(p.content)
	}
	copy(dst, p.content[offset:end])
	return end - offset, nil
}

// WriteData copies src into the page starting at offset, clamped to the
// page's bounds, and returns the number of bytes actually written. Marks
// the page dirty on any non-empty write.
func (p *RawPage) WriteData(src []byte, offset int) (int, error) {
	p.mu.Lock()
	if offset > len(p.content) {
		p.mu.Unlock()
		return 0, engineerr.Valuef("offset %d is out of range for page of size %d", offset, len(p.content))
	}
	end := offset + len(src)
	if end > len(p.content) {
		end = len(p.content)
	}
	n := copy(p.content[offset:end], src[:end-offset])
	dirty := n > 0
	p.mu.Unlock()
	if dirty {
		p.markDirty()
	}
	return n, nil
}

// Snapshot returns a copy of the page's full backing buffer, suitable for
// handing to the disk manager on write-back. A copy (not the live slice) is
// returned so a concurrent mutation cannot race the in-flight disk write.
func (p *RawPage) Snapshot() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.content))
	copy(out, p.content)
	return out
}
