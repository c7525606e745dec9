package pager

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMultipleExclusive(t *testing.T) {
	fl, err := os.CreateTemp("", "*.db")
	require.NoError(t, err)
	defer fl.Close()
	l := newPlatformLock(fl.Fd())

	var mu sync.Mutex
	sharedCount := 0
	didErrShared := false
	wg := sync.WaitGroup{}
	const criticalCount = 2

	wg.Add(criticalCount)
	for i := 0; i < criticalCount; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, l.Lock())
			mu.Lock()
			sharedCount++
			if sharedCount > 1 {
				didErrShared = true
			}
			mu.Unlock()

			time.Sleep(50 * time.Millisecond)

			mu.Lock()
			sharedCount--
			mu.Unlock()
			l.Unlock()
		}()
	}
	wg.Wait()

	require.False(t, didErrShared, "two or more goroutines held the exclusive lock at once")
}

func TestMemoryLockAllowsConcurrentReaders(t *testing.T) {
	l := &memoryLock{}
	require.NoError(t, l.RLock())
	require.NoError(t, l.RLock())
	l.RUnlock()
	l.RUnlock()
}
