// Package storage provides durable key/value storage for client state with trailing-edge debounced writes.
//
// A [Debounced] wraps any [Backend]. Bursts of writes to the same key within the debounce window
// collapse into a single backend write carrying the last value. Reads always go to the backend and
// therefore observe only what has been persisted.
package storage
