// Package pkg provides shared utilities for the softscsi emulator.
//
// This package contains common functionality used by the controller, the
// SCSI bus and its targets, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for controller and bus conditions
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with emulator-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentController, "select", "target", 3)
//
// Misuse of an emulated register interface by guest software is reported
// with [LogGuestError], which never aborts the emulation.
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrTransferOverrun) {
//	    // Guest read past the end of a polled transfer
//	}
package pkg
