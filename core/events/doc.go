// Package events defines the run related events emitted on the event bus.
//
// Available event types:
//   - RunCommitted: a run's outcome was written for its target date
package events
