// Package models defines the domain entities shared by the session, sync, and callback layers.
//
// The package contains three categories of types:
//
// 1. Session state: the authenticated client-side view of the backend
//   - [Session] : access token, [User] profile, linked [AdAccount]s, and [Pack]s
//
// 2. Pack data: saved selections of advertising entities and their statistics
//   - [Pack] : backend-assigned identity, date range, [Filter]s, optional [PackStats]
//   - [PackStats] : aggregate statistics; see [ValidStats] for the usability rule
//   - [RawAdRecord] : one cached insight row used to derive [PackStats] via [ComputeStats]
//
// 3. Background work: [PausedSheetJob] records a spreadsheet sync halted by provider-token expiry.
//
// Records arriving from the backend or the local cache are checked once with [Validate] at the boundary;
// the rest of the core trusts them.
package models
