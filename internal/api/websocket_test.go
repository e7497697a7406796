package api

import (
	"testing"
	"time"

	"pixelplace/internal/canvas"
)

// TestHubStopTerminatesRun tests that the hub loop exits on Stop
func TestHubStopTerminatesRun(t *testing.T) {
	h := NewWebSocketHub(nil)

	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()

	h.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run should return after Stop")
	}

	// Stop is idempotent
	h.Stop()
}

// TestBroadcastPixelNeverBlocks tests backpressure on the broadcast channel
func TestBroadcastPixelNeverBlocks(t *testing.T) {
	h := NewWebSocketHub(nil)
	// No Run loop draining the channel; fill past its capacity
	ev := canvas.PixelEvent{X: 1, Y: 2, Color: 0xff0000}

	finished := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.BroadcastPixel(ev)
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastPixel should drop frames instead of blocking")
	}
}
