package config

import (
	"context"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Watcher Lifecycle Tests
// ============================================================================

func TestWatcher_ConcurrentStop(t *testing.T) {
	path := writeConfig(t, "")
	watcher, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(context.Background(), func(*Config) error { return nil })
	}()

	// Let Watch install the directory watch before stopping.
	time.Sleep(50 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Stop(); err != nil {
				t.Errorf("Stop failed: %v", err)
			}
		}()
	}
	wg.Wait()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after Stop")
	}
}

func TestWatcher_StopAfterContextCancel(t *testing.T) {
	path := writeConfig(t, "")
	watcher, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watcher.Watch(ctx, func(*Config) error { return nil })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error on cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after context cancellation")
	}

	// The fsnotify watcher was already closed on the cancellation path;
	// Stop must still be safe.
	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop after cancellation failed: %v", err)
	}
}

func TestWatcher_StopWithoutWatch(t *testing.T) {
	path := writeConfig(t, "")
	watcher, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop on an unstarted watcher failed: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Errorf("Repeated Stop failed: %v", err)
	}
}
