package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalescesBurst(t *testing.T) {
	var fired atomic.Int32
	done := make(chan string, 4)
	d := NewDebouncer(func(key string) {
		fired.Add(1)
		done <- key
	})
	defer d.Dispose()

	for range 5 {
		require.True(t, d.Schedule("a", 30*time.Millisecond))
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case key := <-done:
		assert.Equal(t, "a", key)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, d.Pending("a"))
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	wg.Add(2)
	d := NewDebouncer(func(key string) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
		wg.Done()
	})
	defer d.Dispose()

	d.Schedule("a", 10*time.Millisecond)
	d.Schedule("b", 10*time.Millisecond)
	wg.Wait()
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, seen)
}

func TestDebouncerCancel(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(func(string) { fired.Add(1) })
	defer d.Dispose()

	d.Schedule("a", 20*time.Millisecond)
	assert.True(t, d.Pending("a"))
	assert.True(t, d.Cancel("a"))
	assert.False(t, d.Cancel("a"))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestDebouncerDisposeRejectsSchedules(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(func(string) { fired.Add(1) })

	d.Schedule("a", 20*time.Millisecond)
	d.Dispose()
	assert.False(t, d.Schedule("b", 0))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
	assert.False(t, d.Pending("a"))
}

func TestDebouncerNegativeDelayFiresImmediately(t *testing.T) {
	done := make(chan struct{})
	d := NewDebouncer(func(string) { close(done) })
	defer d.Dispose()

	d.Schedule("a", -time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("negative delay did not fire")
	}
}
