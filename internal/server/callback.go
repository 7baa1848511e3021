package server

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/shared"
)

// TransportCookie remembers whether a flow was started as a popup, which the server cannot observe directly.
const TransportCookie = "adpacks_transport"

// Transport values stored in [TransportCookie].
const (
	TransportPopup    = "popup"
	TransportRedirect = "redirect"
)

// DefaultMountTTL is how long an idle mount is kept for repeated callback requests.
const DefaultMountTTL = 10 * time.Minute

type mount struct {
	handshake *Handshake
	lastSeen  time.Time
}

// CallbackHandler serves the shared callback route.
//
// Requests carrying the same callback inputs share one [Handshake], so reloading the callback page or a duplicate
// request never posts or exchanges twice. Mounts idle for longer than the TTL are swept.
type CallbackHandler struct {
	deps   HandshakeDeps
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
	onDone func(Outcome)

	mu     sync.Mutex
	mounts map[CallbackParams]*mount
}

// NewCallbackHandler creates the callback handler. A ttl of zero uses [DefaultMountTTL].
func NewCallbackHandler(deps HandshakeDeps, ttl time.Duration) *CallbackHandler {
	if ttl <= 0 {
		ttl = DefaultMountTTL
	}
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(io.Discard)
	}
	if deps.CloseDelay <= 0 {
		deps.CloseDelay = DefaultCloseDelay
	}
	return &CallbackHandler{
		deps:   deps,
		ttl:    ttl,
		now:    time.Now,
		logger: deps.Logger,
		mounts: make(map[CallbackParams]*mount),
	}
}

// OnOutcome registers fn to receive the outcome of every callback request.
func (c *CallbackHandler) OnOutcome(fn func(Outcome)) {
	c.onDone = fn
}

// Routes returns the HTTP routes this handler serves.
func (c *CallbackHandler) Routes() []string {
	return []string{services.CallbackPath}
}

// Mount returns the handshake for p, creating it on first use.
//
// Facebook codes share one handshake per code whatever the state, so the redirect page and the
// exchange endpoint never exchange the same code twice.
func (c *CallbackHandler) Mount(p CallbackParams) *Handshake {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, m := range c.mounts {
		if now.Sub(m.lastSeen) > c.ttl {
			delete(c.mounts, key)
		}
	}

	key := p.mountKey()
	m, ok := c.mounts[key]
	if !ok {
		m = &mount{handshake: NewHandshake(c.deps)}
		c.mounts[key] = m
	}
	m.lastSeen = now
	return m.handshake
}

// Mounts returns the number of live mounts.
func (c *CallbackHandler) Mounts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mounts)
}

// ServeHTTP runs the handshake for the request's callback parameters and renders the result.
func (c *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := ParseCallbackParams(r.URL.Query())
	pg := &page{}
	frame := Frame{Window: pg, Navigator: pg}
	if transportFrom(r) == TransportPopup {
		frame.Opener = pg
	}

	out := c.Mount(params).Run(r.Context(), frame, params)
	if c.onDone != nil {
		c.onDone(out)
	}
	c.logger.Debug("callback handled",
		"provider", out.Provider,
		"state", out.State,
		"posted", out.Posted,
		"exchanged", out.Exchanged,
	)

	if pg.navigateTo != "" {
		http.Redirect(w, r, pg.navigateTo, http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	if out.View == ViewExchangeFailed {
		status = http.StatusBadGateway
	}

	render(w, c.logger, status, "callback", callbackPage{
		Title:            "Authorization",
		View:             viewNames[out.View],
		Error:            params.Error,
		ErrorDescription: params.ErrorDescription,
		Message:          pg.message,
		TargetOrigin:     pg.targetOrigin,
		CloseDelayMS:     pg.closeDelayMS(),
		AckType:          AckMessageType,
	})
}

// transportFrom reads the transport cookie. Anything but popup means no opener.
func transportFrom(r *http.Request) string {
	cookie, err := r.Cookie(TransportCookie)
	if err != nil || cookie.Value != TransportPopup {
		return TransportRedirect
	}
	return TransportPopup
}

// setTransport records the transport chosen when a flow starts.
func setTransport(w http.ResponseWriter, transport string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TransportCookie,
		Value:    transport,
		Path:     services.CallbackPath,
		MaxAge:   int(DefaultMountTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

var viewNames = map[View]string{
	ViewNone:             "none",
	ViewError:            "error",
	ViewRelayed:          "relayed",
	ViewContinueInOpener: "continue",
	ViewExchanging:       "exchanging",
	ViewExchangeFailed:   "failed",
	ViewSignedIn:         "signed_in",
}

type callbackPage struct {
	Title            string
	View             string
	Error            string
	ErrorDescription string
	Message          *OpenerMessage
	TargetOrigin     string
	CloseDelayMS     int64
	AckType          string
}

// page collects what a handshake asks of the browser window. The rendered script carries it out.
type page struct {
	message      *OpenerMessage
	targetOrigin string
	closeDelay   time.Duration
	closing      bool
	navigateTo   string
}

func (p *page) PostMessage(msg OpenerMessage, targetOrigin string) {
	p.message = &msg
	p.targetOrigin = targetOrigin
}

func (p *page) CloseAfter(d time.Duration) {
	p.closing = true
	p.closeDelay = d
}

func (p *page) Navigate(path string) {
	p.navigateTo = path
}

// closeDelayMS returns the self-close delay for the script, or -1 when the window stays open.
func (p *page) closeDelayMS() int64 {
	if !p.closing {
		return -1
	}
	return p.closeDelay.Milliseconds()
}

func (p CallbackParams) mountKey() CallbackParams {
	if p.Code != "" && p.Error == "" && p.Provider() == services.ProviderFacebook {
		return CallbackParams{Code: p.Code}
	}
	return p
}
