package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/notify"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/session"
	"github.com/desertthunder/adpacks/internal/shared"
	"github.com/desertthunder/adpacks/internal/tasks"
	"github.com/desertthunder/adpacks/internal/tracking"
)

// Deps are the components the web server drives.
type Deps struct {
	Config        shared.ServerConfig
	Providers     *services.Providers
	Backend       services.Backend
	Session       *session.Store
	Coordinator   *tasks.PackSyncCoordinator
	Refresher     *tasks.PackRefresher
	Updating      *tracking.UpdatingPacks
	Paused        *tracking.PausedJobs
	Notifications *notify.Center
	Logger        *log.Logger
}

// Server is the local web companion: login, the shared OAuth callback, and the pack dashboard.
type Server struct {
	deps     Deps
	origin   string
	router   Router
	callback *CallbackHandler
	metrics  *Metrics
	logger   *log.Logger
}

// New wires every route.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(io.Discard)
	}
	if deps.Notifications == nil {
		deps.Notifications = notify.NewCenter(deps.Logger)
	}

	s := &Server{
		deps:    deps,
		origin:  strings.TrimRight(deps.Config.Origin(), "/"),
		router:  NewBasicRouter(),
		metrics: NewMetrics(),
		logger:  deps.Logger,
	}
	s.callback = NewCallbackHandler(HandshakeDeps{
		Exchanger:  deps.Backend,
		Session:    deps.Session,
		Notifier:   deps.Notifications,
		Origin:     s.origin,
		CloseDelay: deps.Config.CloseDelay.Duration,
		Logger:     shared.WithLogger(deps.Logger, "component", "callback"),
	}, 0)
	s.callback.OnOutcome(s.metrics.ObserveHandshake)

	s.router.Use(Recovery(s.logger), s.metrics.Middleware(), Logging(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc(http.MethodGet, "/{$}", s.handleIndex)
	r.HandleFunc(http.MethodGet, "/auth/facebook", s.handleFacebookLogin)
	r.HandleFunc(http.MethodGet, "/auth/google-sheets", s.handleGoogleSheetsConnect)
	r.Handler(s.callback)
	r.HandleFunc(http.MethodGet, AppPath, s.handleApp)
	r.HandleFunc(http.MethodPost, "/api/auth/facebook/exchange", s.handleExchange)
	r.HandleFunc(http.MethodPost, "/api/integrations/google-sheets/connect", s.handleSheetsConnected)
	r.HandleFunc(http.MethodPost, "/api/packs/{id}/refresh", s.handleRefresh)
	r.HandleFunc(http.MethodDelete, "/api/paused-jobs/{id}", s.handleDismiss)
	r.HandleFunc(http.MethodGet, "/api/notifications", s.handleNotifications)
	r.HandleFunc(http.MethodPost, "/logout", s.handleLogout)
	r.Handle(http.MethodGet, MetricsPath, s.metrics.Handler())
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Callback returns the callback handler.
func (s *Server) Callback() *CallbackHandler {
	return s.callback
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.deps.Config.Addr(),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr, "origin", s.origin)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) secure() bool {
	return strings.HasPrefix(s.origin, "https://")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Session.Snapshot()
	data := struct {
		Title         string
		Authenticated bool
		UserName      string
		Origin        string
		AckType       string
	}{
		Title:         "Welcome",
		Authenticated: snap.Authenticated(),
		Origin:        s.origin,
		AckType:       AckMessageType,
	}
	if snap.User != nil {
		data.UserName = snap.User.Name
	}
	render(w, s.logger, http.StatusOK, "index", data)
}

func (s *Server) handleFacebookLogin(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", TransportPopup:
		mode = TransportPopup
	case TransportRedirect:
	default:
		http.Error(w, fmt.Sprintf("unknown mode %q", mode), http.StatusBadRequest)
		return
	}

	target, err := s.deps.Providers.FacebookAuthURL(shared.GenerateID())
	if err != nil {
		s.logger.Error("cannot start facebook login", "error", err)
		http.Error(w, "Facebook login is not configured", http.StatusServiceUnavailable)
		return
	}

	setTransport(w, mode, s.secure())
	http.Redirect(w, r, target, http.StatusFound)
}

// handleGoogleSheetsConnect starts the integration flow, which only runs as a popup.
func (s *Server) handleGoogleSheetsConnect(w http.ResponseWriter, r *http.Request) {
	target, err := s.deps.Providers.GoogleSheetsAuthURL()
	if err != nil {
		s.logger.Error("cannot start google sheets connect", "error", err)
		http.Error(w, "Google Sheets is not configured", http.StatusServiceUnavailable)
		return
	}

	setTransport(w, TransportPopup, s.secure())
	http.Redirect(w, r, target, http.StatusFound)
}

type packRow struct {
	ID        string
	Name      string
	DateStart string
	DateStop  string
	Ads       string
	Spend     string
	Updating  bool
	Paused    bool
}

func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Session.Snapshot()
	if !snap.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if _, err := s.deps.Coordinator.EnsureLoaded(r.Context(), snap.UserID(), nil); err != nil {
		s.logger.Warn("pack sync failed", "error", err)
	}
	snap = s.deps.Session.Snapshot()

	rows := make([]packRow, 0, len(snap.Packs))
	for _, p := range snap.Packs {
		row := packRow{
			ID:        p.ID,
			Name:      p.Name,
			DateStart: p.DateStart,
			DateStop:  p.DateStop,
			Ads:       "–",
			Spend:     "–",
			Updating:  s.deps.Updating.Is(p.ID),
			Paused:    s.deps.Paused.HasPausedJob(p.ID),
		}
		if p.Stats != nil {
			if p.Stats.TotalAds != nil {
				row.Ads = fmt.Sprint(*p.Stats.TotalAds)
			}
			if p.Stats.TotalSpend != nil {
				row.Spend = fmt.Sprintf("%.2f", *p.Stats.TotalSpend)
			}
		}
		rows = append(rows, row)
	}

	render(w, s.logger, http.StatusOK, "app", struct {
		Title         string
		UserName      string
		Packs         []packRow
		Notifications []notify.Notification
		Origin        string
		AckType       string
	}{
		Title:         "Packs",
		UserName:      snap.User.Name,
		Packs:         rows,
		Notifications: s.deps.Notifications.Drain(),
		Origin:        s.origin,
		AckType:       AckMessageType,
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

func decodeCode(r *http.Request) (string, error) {
	var req codeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if req.Code == "" {
		return "", fmt.Errorf("%w: code is required", shared.ErrInvalidInput)
	}
	return req.Code, nil
}

// handleExchange completes a popup login: the opener relays the code it received.
//
// The exchange goes through the callback mount for the same code, so a code already exchanged by the callback
// page is not exchanged again.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := CallbackParams{Code: code}
	out := s.callback.Mount(params).Run(r.Context(), Frame{}, params)
	switch out.State {
	case StateExchanged:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": s.deps.Session.Snapshot().User})
	case StateExchanging:
		writeError(w, http.StatusConflict, fmt.Errorf("%w: exchange in progress", shared.ErrExchangeFailed))
	default:
		writeError(w, http.StatusBadGateway, out.Err)
	}
}

func (s *Server) handleSheetsConnected(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Session.Snapshot().Authenticated() {
		writeError(w, http.StatusUnauthorized, shared.ErrNotAuthenticated)
		return
	}

	code, err := decodeCode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.deps.Backend.ConnectGoogleSheets(r.Context(), code, s.deps.Providers.RedirectURI()); err != nil {
		s.logger.Error("google sheets connect failed", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}

	resumed := s.deps.Refresher.ResumePaused(r.Context(), nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"resumed": resumed.Resumed,
		"failed":  resumed.Failed,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Session.Snapshot().Authenticated() {
		writeError(w, http.StatusUnauthorized, shared.ErrNotAuthenticated)
		return
	}

	res, err := s.deps.Refresher.Refresh(r.Context(), r.PathValue("id"))
	switch {
	case tasks.IsBusy(err):
		s.metrics.ObserveRefresh("busy")
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, shared.ErrPackNotFound):
		s.metrics.ObserveRefresh("failed")
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		s.metrics.ObserveRefresh("failed")
		writeError(w, http.StatusBadGateway, err)
	default:
		if res.Paused {
			s.metrics.ObserveRefresh("paused")
		} else {
			s.metrics.ObserveRefresh("ok")
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"pack_id":       res.PackID,
			"stats_changed": res.StatsChanged,
			"sync_job_id":   res.SyncJobID,
			"paused":        res.Paused,
		})
	}
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Refresher.Dismiss(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.deps.Notifications.Drain()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Session.Logout()
	s.deps.Coordinator.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
