package pager

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"toydb/internal/engineerr"
)

// lock is a RWMutex. When there is no file it is implemented by memoryLock.
// When there is a file it is implemented by linuxOrDarwinLock.
type lock interface {
	Lock() error
	Unlock()
	RLock() error
	RUnlock()
}

// memoryLock implements lock and is used when there is no file to lock.
type memoryLock struct {
	l sync.RWMutex
}

func (m *memoryLock) Lock() error {
	m.l.Lock()
	return nil
}

func (m *memoryLock) Unlock() {
	m.l.Unlock()
}

func (m *memoryLock) RLock() error {
	m.l.RLock()
	return nil
}

func (m *memoryLock) RUnlock() {
	m.l.RUnlock()
}

// newPlatformLock returns a lock implementation for the detected platform.
func newPlatformLock(fd uintptr) lock {
	if !(runtime.GOOS == "linux" || runtime.GOOS == "darwin") {
		panic("file lock does not support " + runtime.GOOS)
	}
	return &linuxOrDarwinLock{fileDescriptor: int(fd)}
}

// linuxOrDarwinLock is a lock capable of acting as a cross process RWMutex
// via flock(2), through golang.org/x/sys/unix rather than raw syscall
// numbers.
//
// It is an advisory lock: only cooperating processes are excluded. It also
// does not prevent writer starvation under constant reader traffic.
type linuxOrDarwinLock struct {
	fileDescriptor int
	// processLock serializes goroutines within this process; flock only
	// arbitrates across processes.
	processLock sync.RWMutex
}

func (l *linuxOrDarwinLock) Lock() error {
	l.processLock.Lock()
	if err := unix.Flock(l.fileDescriptor, unix.LOCK_EX); err != nil {
		l.processLock.Unlock()
		return engineerr.Lock(err, "acquiring exclusive file lock")
	}
	return nil
}

func (l *linuxOrDarwinLock) Unlock() {
	if err := unix.Flock(l.fileDescriptor, unix.LOCK_UN); err != nil {
		panic("err unlock LOCK_UN file: " + err.Error())
	}
	l.processLock.Unlock()
}

func (l *linuxOrDarwinLock) RLock() error {
	l.processLock.RLock()
	if err := unix.Flock(l.fileDescriptor, unix.LOCK_SH); err != nil {
		l.processLock.RUnlock()
		return engineerr.Lock(err, "acquiring shared file lock")
	}
	return nil
}

func (l *linuxOrDarwinLock) RUnlock() {
	if err := unix.Flock(l.fileDescriptor, unix.LOCK_UN); err != nil {
		panic("err runlock LOCK_UN file: " + err.Error())
	}
	l.processLock.RUnlock()
}
