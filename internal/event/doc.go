// Package event provides a small synchronous pub-sub bus and the events a
// pipeline run publishes.
//
// The pipeline runner publishes run, phase and stage events; the CLI
// subscribes to render progress. Neither side knows about the other.
//
// # Event Types
//
//   - [RunStartedEvent] and [RunCompletedEvent] bracket one pipeline call
//   - [PhaseChangedEvent] marks each phase transition, including failure
//   - [StageStartedEvent] and [StageCompletedEvent] bracket one external program
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine; a panicking handler is logged and does not stop
// delivery to the others.
package event
