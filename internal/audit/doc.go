// Package audit provides asynchronous security-event dispatch for the
// identity engine: a buffered Dispatcher and Sink implementations (no-op,
// channel, JSON line writer).
package audit
