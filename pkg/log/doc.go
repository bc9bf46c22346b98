// Package log provides structured protocol logging for the Insteon
// bridge.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, engine,
// device). It is separate from operational logging (slog) - protocol
// capture provides a complete machine-readable event trace for debugging
// power-line traffic after the fact.
//
// # Basic Usage
//
// Every constructor in the engine, reactor, and device layers takes a
// Logger; nil disables logging. A typical assembly:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: also capture to a binary file
//	capture, _ := log.NewFileLogger("/var/log/insteon/bridge.ilog")
//	logger = log.NewMultiLogger(logger, capture)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw frame bytes (FrameEvent)
//   - Wire: Decoded messages (MessageEvent)
//   - Engine/Device: State changes (StateChangeEvent)
//
// Errors have a dedicated event type and can occur at any layer.
//
// # File Format
//
// Log files use CBOR encoding with .ilog extension. The Reader type
// provides filtered iteration for analysis tooling.
package log
