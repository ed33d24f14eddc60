package httpserver

import "errors"

var (
	// ErrStart marks a listener that failed to start or died while serving.
	ErrStart = errors.New("failed to start HTTP server")
	// ErrShutdown marks a graceful shutdown that did not complete in time.
	ErrShutdown = errors.New("failed to shutdown HTTP server gracefully")
)
