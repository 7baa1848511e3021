// Package services talks to the outside world: the authoritative pack backend and the two OAuth providers.
//
// # Backend Client
//
// [Client] implements [Backend] over JSON/HTTP. It also implements session.TokenSink: the session
// store pushes every token change into it, and each request carries "Authorization: Bearer <token>"
// when a token is set.
//
// # OAuth Providers
//
// [Providers] builds consent URLs for the Facebook login provider and the Google Sheets integration
// provider. Both redirect to the same callback path; the Google Sheets flow is tagged with
// state=[StateGoogleSheets] so the callback can tell them apart. Code exchange happens on the
// backend, never here.
//
// # Error Handling
//
// Errors wrap sentinels from the shared package:
//   - [shared.ErrExchangeFailed] : token exchange failed or returned an unusable payload
//   - [shared.ErrFetchFailed] : pack listing or detail failed
//   - [shared.ErrSheetsTokenExpired] : sheet sync found the Google token expired, see [TokenExpiredError]
//   - [shared.ErrNotAuthenticated] : the backend rejected the session token
//   - [shared.ErrAPIRequest] : any other non-2xx response
package services
