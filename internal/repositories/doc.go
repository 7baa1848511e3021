// Package repositories implements SQLite persistence for the local client state.
//
// Key Implementations:
//   - [AdRecordRepository] : raw ad insight rows cached per pack
//   - [RecordCacheAdapter] : the cache lookup consumed by pack synchronization
//   - [KVRepository] : the key/value table behind debounced durable storage
//
// All queries take a [context.Context]. Rows are replaced per pack inside a transaction so a
// reader never observes a half-written pack.
package repositories
