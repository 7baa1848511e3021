// Package tracking holds process-wide registries of in-flight pack work.
//
// [UpdatingPacks] is the advisory set of packs currently being refreshed. [PausedJobs] records
// spreadsheet sync jobs halted because the Google Sheets token expired, keyed by pack id.
//
// Both publish immutable snapshots through an atomic pointer; writers serialize on a mutex.
package tracking
