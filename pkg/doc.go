// Package pkg provides shared utilities for the softmcu runtime core.
//
// This package contains common functionality used across the executor,
// time driver, wake registry, synchronization primitives, and USB device
// stack, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for the runtime's error taxonomy
//   - Component identifiers for log filtering
//   - The fault (panic) collaborator for fatal invariant violations
//
// The package is designed to have zero external dependencies, relying
// only on the Go standard library.
//
// # Logging
//
// The logging subsystem wraps [log/slog] with runtime-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentExecutor, "task completed", "task", name)
//
// # Errors
//
// Recoverable errors fall into three classes, all defined as sentinel
// values: capacity (a fixed-size structure is full), protocol (a malformed
// or unsupported USB request), and state (an operation attempted while its
// precondition does not hold):
//
//	if errors.Is(err, pkg.ErrQueueFull) {
//	    // Handle alarm queue capacity
//	}
//
// Fatal errors (corruption of core invariants) are not represented as
// values; they are routed through [Fault].
package pkg
