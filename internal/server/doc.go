// Package server provides the local web companion: HTTP routing and middleware, the shared OAuth callback,
// and a small pack dashboard.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handshake
//
// Facebook login and the Google Sheets integration share one redirect target, /callback. The state parameter
// picks the provider: "google_sheets" selects Google Sheets, anything else Facebook.
//
// A [Handshake] is one callback mount. When the flow runs in a popup it relays the result to the opener window
// and schedules the popup to close; when it runs in a plain tab it exchanges a Facebook code itself, writes the
// session, and navigates to /app. Posting and exchanging each happen at most once per mount.
//
// [CallbackHandler] keys mounts by the callback inputs so repeated requests reuse one mount. The server cannot
// see window.opener, so the transport chosen at /auth/facebook or /auth/google-sheets is kept in a short-lived
// cookie and the rendered page script performs the actual postMessage and window.close.
//
// # Routes
//
//	GET    /                                       landing page, opener side of popup flows
//	GET    /auth/facebook?mode=popup|redirect      start login
//	GET    /auth/google-sheets                     start Google Sheets consent (popup only)
//	GET    /callback                               shared OAuth callback
//	GET    /app                                    pack dashboard; loads packs once per login
//	POST   /api/auth/facebook/exchange             exchange a code relayed by a popup
//	POST   /api/integrations/google-sheets/connect store the integration and resume paused jobs
//	POST   /api/packs/{id}/refresh                 refresh one pack
//	DELETE /api/paused-jobs/{id}                   dismiss a paused sheet job
//	GET    /api/notifications                      drain pending notifications
//	POST   /logout                                 clear the session
//	GET    /metrics                                Prometheus exposition
package server
