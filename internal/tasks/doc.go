// Package tasks orchestrates pack work against the backend with real-time progress reporting.
//
// # Core Operations
//
//  1. [PackSyncCoordinator.EnsureLoaded] : reconcile the backend pack list into the session
//     - Runs at most once per login, guarded by user id
//     - Keeps valid stats, derives missing stats from the local raw-record cache
//     - Publishes to the session store only when something changed
//
//  2. [PackRefresher.Refresh] : refresh one pack and sync its spreadsheet
//     - Marks the pack as updating for the duration of the call
//     - Pauses the sheet sync job when the Google token expired
//
//  3. [PackRefresher.RefreshAll] : refresh every auto-refresh pack through a rate limited worker pool
//
//  4. [PackRefresher.ResumePaused] : resume paused sheet jobs after reauthorization
//
//  5. [DetailLoader] : fetch pack detail in the background, discarding results that arrive after Close
//
// # Progress Reporting
//
// Long operations accept a chan<- [ProgressUpdate]. Sends use select with default, so a slow or absent
// reader never blocks the operation.
package tasks
