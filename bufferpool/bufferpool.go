// Package bufferpool implements spec.md §4.6's buffer pool manager: it
// mediates between the disk manager and the clock replacer so callers deal
// only in table pages, never in raw bytes or cache slots.
package bufferpool

import (
	"sync"

	"toydb/internal/engineerr"
	"toydb/internal/log"
	"toydb/page"
	"toydb/pager"
	"toydb/replacer"
)

var logger = log.For("bufferpool")

// BufferPoolManager owns the disk manager, the resident header page and
// the clock replacer, and is the only component permitted to evict a page
// from memory (spec.md §4.6).
type BufferPoolManager struct {
	disk     *pager.DiskManager
	replacer *replacer.ClockReplacer

	mu     sync.Mutex
	header *page.HeaderPage
}

// Open loads the header page from disk and sizes the replacer's resident
// pool to cacheCapacity.
func Open(disk *pager.DiskManager, cacheCapacity uint32) (*BufferPoolManager, error) {
	cr, err := replacer.New(cacheCapacity)
	if err != nil {
		return nil, err
	}
	headerContent, ok, err := disk.ReadPage(0)
	if err != nil {
		return nil, err
	}
	if !ok {
		// brand new database file: the header page has never been written.
		headerContent = make([]byte, page.PageSize)
	}
	header, err := page.NewHeaderPage(headerContent)
	if err != nil {
		return nil, err
	}
	return &BufferPoolManager{disk: disk, replacer: cr, header: header}, nil
}

// HeaderPage returns the resident catalog page. It is never evicted: it
// stays resident for the manager's whole lifetime, outside the replacer
// (spec.md §4.3, §4.6).
func (bp *BufferPoolManager) HeaderPage() *page.HeaderPage {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.header
}

// FlushHeaderPage writes the header page back to disk unconditionally.
// The header page is small and written rarely enough that it does not
// need the replacer's dirty-tracking to avoid redundant writes.
func (bp *BufferPoolManager) FlushHeaderPage() error {
	bp.mu.Lock()
	content := bp.header.Raw().Snapshot()
	bp.mu.Unlock()
	if err := bp.disk.WritePage(0, content); err != nil {
		return err
	}
	bp.header.Raw().ClearDirty()
	return nil
}

func prevPageIDFor(pageID uint32) *uint32 {
	if pageID <= 1 {
		return nil
	}
	prev := pageID - 1
	return &prev
}

// FetchPage returns the table page for pageID, reading it from disk and
// admitting it to the replacer's resident pool if it was not already
// cached. Faulting in a page may evict and write back another resident
// page to make room (spec.md §4.6). ok is false, with a nil page and nil
// error, if pageID has never been written: that is a miss, not an error.
func (bp *BufferPoolManager) FetchPage(pageID uint32) (*page.TablePage, bool, error) {
	if pageID == 0 {
		return nil, false, engineerr.Value("fetch_page: page id 0 is the header page, use HeaderPage instead")
	}
	if frame, ok := bp.replacer.Poll(pageID); ok {
		frame.MarkUsed()
		return frame.Page(), true, nil
	}
	content, ok, err := bp.disk.ReadPage(pageID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	tp, err := page.LoadTablePage(pageID, content)
	if err != nil {
		return nil, false, err
	}
	tp, err = bp.admit(tp)
	if err != nil {
		return nil, false, err
	}
	return tp, true, nil
}

// CreatePage allocates and admits a brand new table page at pageID. ok is
// false, with a nil page and nil error, if pageID already names a page —
// either resident in the pool or present on disk per HavePage — since a
// collision is a documented "none" outcome (spec.md §4.6), not an engine
// error.
func (bp *BufferPoolManager) CreatePage(pageID uint32) (*page.TablePage, bool, error) {
	if pageID == 0 {
		return nil, false, engineerr.Value("create_page: page id 0 is the header page")
	}
	if _, ok := bp.replacer.Poll(pageID); ok {
		return nil, false, nil
	}
	have, err := bp.disk.HavePage(pageID)
	if err != nil {
		return nil, false, err
	}
	if have {
		return nil, false, nil
	}
	tp, err := page.NewTablePage(pageID, prevPageIDFor(pageID), make([]byte, page.PageSize))
	if err != nil {
		return nil, false, err
	}
	tp, err = bp.admit(tp)
	if err != nil {
		return nil, false, err
	}
	return tp, true, nil
}

// admit pushes tp into the replacer, writing back and evicting a resident
// frame first if the pool was full.
func (bp *BufferPoolManager) admit(tp *page.TablePage) (*page.TablePage, error) {
	frame := replacer.NewFrame(tp)
	evicted, didEvict, err := bp.replacer.Push(frame)
	if err != nil {
		return nil, err
	}
	if didEvict {
		if err := bp.writeBack(evicted); err != nil {
			return nil, err
		}
	}
	if _, ok := bp.replacer.Poll(tp.PageID()); !ok {
		return nil, engineerr.Value("buffer pool bug: page was pushed to the replacer but is not resident")
	}
	logger.WithField("page_id", tp.PageID()).Trace("admitted page to buffer pool")
	return tp, nil
}

func (bp *BufferPoolManager) writeBack(frame *replacer.Frame) error {
	tp := frame.Page()
	if !tp.Raw().IsDirty() {
		return nil
	}
	if err := bp.disk.WritePage(tp.PageID(), tp.Raw().Snapshot()); err != nil {
		return err
	}
	tp.Raw().ClearDirty()
	return nil
}

// DeletePage tombstones pageID's page, fetching it first if it is not
// already resident. Returns false if the page does not exist.
func (bp *BufferPoolManager) DeletePage(pageID uint32) (bool, error) {
	tp, ok, err := bp.FetchPage(pageID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := tp.DeletePage(); err != nil {
		return false, err
	}
	return true, nil
}

// FlushPage writes pageID's resident page back to disk if dirty. It is a
// no-op, not an error, if the page is not resident.
func (bp *BufferPoolManager) FlushPage(pageID uint32) error {
	frame, ok := bp.replacer.Poll(pageID)
	if !ok {
		return nil
	}
	return bp.writeBack(frame)
}

// FlushAll writes back every dirty resident page, then the header page.
func (bp *BufferPoolManager) FlushAll() error {
	for _, frame := range bp.replacer.NeedFlush() {
		if err := bp.writeBack(frame); err != nil {
			return err
		}
	}
	return bp.FlushHeaderPage()
}

// Close flushes everything resident and closes the underlying disk file.
func (bp *BufferPoolManager) Close() error {
	if err := bp.FlushAll(); err != nil {
		return err
	}
	if err := bp.disk.Flush(); err != nil {
		return err
	}
	return bp.disk.Close()
}
