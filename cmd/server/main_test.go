package main

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestIsAddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, err = net.Listen("tcp", ln.Addr().String())
	if err == nil {
		t.Fatal("expected second listen to fail")
	}
	if !isAddrInUse(err) {
		t.Errorf("expected address-in-use error, got %v", err)
	}

	if isAddrInUse(context.Canceled) {
		t.Error("unrelated error reported as address in use")
	}
}

func TestOpenBrowserAfter_CancelledBeforeDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		openBrowserAfter(ctx, time.Hour, "http://127.0.0.1:1/", zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("openBrowserAfter did not return after cancel")
	}
}

func TestWaitForHub(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if !waitForHub(context.Background(), done, 0) {
		t.Error("expected drained hub to be reported")
	}

	// Expired shutdown context: sessions finishing within the grace still count.
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	late := make(chan struct{})
	time.AfterFunc(20*time.Millisecond, func() { close(late) })
	if !waitForHub(expired, late, time.Second) {
		t.Error("expected hub finishing within grace to be reported")
	}

	stuck := make(chan struct{})
	start := time.Now()
	if waitForHub(expired, stuck, 50*time.Millisecond) {
		t.Error("expected stuck hub to time out")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, before the grace period", elapsed)
	}
}

