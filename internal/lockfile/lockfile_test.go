package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")

	l, err := Acquire(target, time.Second)
	require.NoError(t, err)

	_, statErr := os.Stat(target + ".lock")
	assert.NoError(t, statErr)

	require.NoError(t, l.Release())
	_, statErr = os.Stat(target + ".lock")
	assert.True(t, os.IsNotExist(statErr))
}

func TestAcquire_ContentionTimesOut(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")

	held, err := Acquire(target, time.Second)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = Acquire(target, 200*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContention))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestAcquire_AfterRelease(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")

	l1, err := Acquire(target, time.Second)
	require.NoError(t, err)
	require.NoError(t, l1.Release())

	l2, err := Acquire(target, time.Second)
	require.NoError(t, err)
	assert.NoError(t, l2.Release())
}

func TestAcquire_SingleWriterUnderContention(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")

	var holders int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := Acquire(target, 5*time.Second)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&holders, 1)
			assert.Equal(t, int32(1), n, "two writers held the lock at once")
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			l.Release()
		}()
	}
	wg.Wait()
}

func TestAcquire_BreaksStaleLock(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.json")
	lockPath := target + ".lock"

	require.NoError(t, os.WriteFile(lockPath, []byte(`{"pid":1}`), 0644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	l, err := Acquire(target, time.Second)
	require.NoError(t, err)
	assert.NoError(t, l.Release())
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WriteAtomic(path, []byte(`{"v":1}`)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(data))

	// Overwrite is atomic too.
	require.NoError(t, WriteAtomic(path, []byte(`{"v":2}`)))
	data, _ = os.ReadFile(path)
	assert.Equal(t, `{"v":2}`, string(data))

	// No temp droppings left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
