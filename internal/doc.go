// Package internal contains helper utilities that are intentionally private
// to the identity module, including secure token generation and hashing.
//
// # Sub-packages
//
//   - audit — async security-event dispatch (Dispatcher + Sink implementations)
//   - metrics — lock-free counters with snapshot export
//
// # What this package must NOT do
//
//   - Export types that appear in the public identity API.
//   - Be imported by any package outside the identity module.
package internal
