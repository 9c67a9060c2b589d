// Package logging provides implementations of marten.Logger and
// marten.SessionLogger.
//
// Available implementations:
//   - ConsoleLogger: writes formatted lines to stderr or any writer
//   - NullLogger: discards all messages
//   - NullSessionLogger: ignores every session event
//   - CommandLogger: renders session events through a marten.Logger
//   - MetricsLogger: counts session events in Prometheus metrics
//
// Multi fans one session's events out to several session loggers.
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
