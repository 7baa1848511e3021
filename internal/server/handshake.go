package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/notify"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/shared"
)

// AppPath is the authenticated entry point a completed login navigates to.
const AppPath = "/app"

// DefaultCloseDelay is how long a popup stays open after posting its result.
const DefaultCloseDelay = time.Second

// MessageType tags a result posted from the callback window to its opener.
type MessageType string

const (
	FacebookAuthSuccess     MessageType = "FACEBOOK_AUTH_SUCCESS"
	FacebookAuthError       MessageType = "FACEBOOK_AUTH_ERROR"
	GoogleSheetsAuthSuccess MessageType = "GOOGLE_SHEETS_AUTH_SUCCESS"
	GoogleSheetsAuthError   MessageType = "GOOGLE_SHEETS_AUTH_ERROR"
)

// AckMessageType is sent back by the opener once it has read the result, letting the popup close early.
const AckMessageType = "ADPACKS_AUTH_ACK"

// OpenerMessage is the cross-window auth result.
type OpenerMessage struct {
	Type             MessageType `json:"type"`
	Code             string      `json:"code,omitempty"`
	Error            string      `json:"error,omitempty"`
	ErrorDescription string      `json:"errorDescription,omitempty"`
	State            string      `json:"state,omitempty"`
}

// CallbackParams are the query parameters of the shared callback route.
type CallbackParams struct {
	Code             string
	Error            string
	ErrorDescription string
	State            string
}

// ParseCallbackParams reads callback parameters from q. error_reason stands in for a missing error.
func ParseCallbackParams(q url.Values) CallbackParams {
	p := CallbackParams{
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
		State:            q.Get("state"),
	}
	if p.Error == "" {
		p.Error = q.Get("error_reason")
	}
	return p
}

// Provider returns the provider selected by the state parameter.
func (p CallbackParams) Provider() services.Provider {
	return services.ProviderForState(p.State)
}

// Message builds the opener message for p.
func (p CallbackParams) Message() OpenerMessage {
	sheets := p.Provider() == services.ProviderGoogleSheets
	if p.Error != "" {
		t := FacebookAuthError
		if sheets {
			t = GoogleSheetsAuthError
		}
		return OpenerMessage{Type: t, Error: p.Error, ErrorDescription: p.ErrorDescription, State: p.State}
	}

	t := FacebookAuthSuccess
	if sheets {
		t = GoogleSheetsAuthSuccess
	}
	return OpenerMessage{Type: t, Code: p.Code, State: p.State}
}

// Opener is the window that started a popup flow.
type Opener interface {
	PostMessage(msg OpenerMessage, targetOrigin string)
}

// Window is the callback window itself.
type Window interface {
	CloseAfter(d time.Duration)
}

// Navigator moves the callback window to another route.
type Navigator interface {
	Navigate(path string)
}

// Frame is the environment of one handshake invocation. Opener is nil when the flow runs in a plain tab.
type Frame struct {
	Opener    Opener
	Window    Window
	Navigator Navigator
}

// TokenExchanger trades a login code for a session.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, code, redirectURI string) (*services.ExchangeResult, error)
}

// SessionWriter is the part of the session store a completed login writes to.
type SessionWriter interface {
	Login(token string, user models.User, accounts []models.AdAccount)
}

// State is the handshake state reached by one invocation.
type State string

const (
	StateIdle           State = "idle"
	StateErrorReceived  State = "error_received"
	StateCodeReceived   State = "code_received"
	StatePostedToOpener State = "posted_to_opener"
	StateExchanging     State = "exchanging_token"
	StateExchanged      State = "exchanged"
	StateFailed         State = "failed"
)

// View is what the callback page shows.
type View int

const (
	ViewNone View = iota
	ViewError
	ViewRelayed
	ViewContinueInOpener
	ViewExchanging
	ViewExchangeFailed
	ViewSignedIn
)

// Outcome reports what one invocation did.
type Outcome struct {
	State     State
	View      View
	Provider  services.Provider
	Posted    bool  // This invocation posted to the opener
	Exchanged bool  // This invocation performed the token exchange
	Err       error // Provider or exchange error, if any
}

// HandshakeDeps are the collaborators shared by every invocation of a handshake.
type HandshakeDeps struct {
	Exchanger  TokenExchanger
	Session    SessionWriter
	Notifier   notify.Notifier
	Origin     string
	CloseDelay time.Duration
	Logger     *log.Logger
}

// Handshake is one callback mount.
//
// Run may be called any number of times with the same inputs; the opener post and the token exchange each
// happen at most once.
type Handshake struct {
	deps HandshakeDeps

	mu       sync.Mutex
	posted   bool
	started  bool
	exchange *Outcome
}

// NewHandshake creates a mount.
func NewHandshake(deps HandshakeDeps) *Handshake {
	if deps.CloseDelay <= 0 {
		deps.CloseDelay = DefaultCloseDelay
	}
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(io.Discard)
	}
	return &Handshake{deps: deps}
}

// RedirectURI returns the redirect_uri sent with the token exchange.
func (h *Handshake) RedirectURI() string {
	return strings.TrimRight(h.deps.Origin, "/") + services.CallbackPath
}

// Run advances the handshake for p in frame f.
func (h *Handshake) Run(ctx context.Context, f Frame, p CallbackParams) Outcome {
	out := Outcome{State: StateIdle, Provider: p.Provider()}

	switch {
	case p.Error != "":
		out.State = StateErrorReceived
		out.View = ViewError
		out.Err = fmt.Errorf("%w: %s", shared.ErrProviderDenied, p.Error)
		if f.Opener != nil && h.claimPost() {
			f.Opener.PostMessage(p.Message(), h.deps.Origin)
			out.State = StatePostedToOpener
			out.Posted = true
		}
		return out
	case p.Code == "":
		return out
	}

	out.State = StateCodeReceived
	if f.Opener != nil {
		out.View = ViewRelayed
		if h.claimPost() {
			f.Opener.PostMessage(p.Message(), h.deps.Origin)
			out.State = StatePostedToOpener
			out.Posted = true
			if f.Window != nil {
				f.Window.CloseAfter(h.deps.CloseDelay)
			}
		}
		return out
	}

	if out.Provider == services.ProviderGoogleSheets {
		out.View = ViewContinueInOpener
		return out
	}
	return h.exchangeOnce(ctx, f, p, out)
}

func (h *Handshake) claimPost() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.posted {
		return false
	}
	h.posted = true
	return true
}

// exchangeOnce runs the token exchange the first time it is reached.
//
// Later calls report the first exchange's result. A finished login navigates again so a reload lands in the app.
func (h *Handshake) exchangeOnce(ctx context.Context, f Frame, p CallbackParams, out Outcome) Outcome {
	h.mu.Lock()
	if h.started {
		prev := h.exchange
		h.mu.Unlock()

		if prev == nil {
			out.State = StateExchanging
			out.View = ViewExchanging
			return out
		}
		again := *prev
		again.Exchanged = false
		if again.State == StateExchanged && f.Navigator != nil {
			f.Navigator.Navigate(AppPath)
		}
		return again
	}
	h.started = true
	h.mu.Unlock()

	logger := h.deps.Logger
	res, err := h.deps.Exchanger.ExchangeToken(ctx, p.Code, h.RedirectURI())
	out.Exchanged = true

	if err != nil {
		if !errors.Is(err, shared.ErrExchangeFailed) {
			err = fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
		}
		logger.Error("token exchange failed", "error", err)

		out.State = StateFailed
		out.View = ViewExchangeFailed
		out.Err = err
		if h.deps.Notifier != nil {
			h.deps.Notifier.Show(notify.Notification{
				Level:   notify.LevelError,
				Title:   "Login failed",
				Message: "We could not complete the Facebook login. Please try again.",
			})
		}
	} else {
		h.deps.Session.Login(res.AccessToken, res.User, res.AdAccounts)
		logger.Info("login completed", "user", res.User.ID)

		out.State = StateExchanged
		out.View = ViewSignedIn
		if f.Navigator != nil {
			f.Navigator.Navigate(AppPath)
		}
	}

	h.mu.Lock()
	h.exchange = &out
	h.mu.Unlock()
	return out
}
