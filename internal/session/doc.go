// Package session holds the process-wide authenticated session.
//
// A [Store] publishes immutable [models.Session] snapshots: readers call [Store.Snapshot] and
// never observe a partially applied update. Every mutation schedules a debounced write of a
// versioned snapshot, and every token change is forwarded to a [TokenSink] so outgoing backend
// requests carry the current token.
package session
