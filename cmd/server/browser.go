package main

import (
	"context"
	"errors"
	"io"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"go.uber.org/zap"
)

func init() {
	// Browser launchers are chatty; keep their output out of the server log.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// openBrowserAfter opens url once delay has passed, unless ctx ends first.
func openBrowserAfter(ctx context.Context, delay time.Duration, url string, logger *zap.Logger) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	openBrowser(url, logger)
}

func openBrowser(url string, logger *zap.Logger) {
	if err := browser.OpenURL(url); err != nil {
		logger.Warn("Failed to open browser", zap.String("url", url), zap.Error(err))
		return
	}
	logger.Info("Opened browser", zap.String("url", url))
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
