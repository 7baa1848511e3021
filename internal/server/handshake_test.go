package server

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/notify"
	"github.com/desertthunder/adpacks/internal/services"
	"github.com/desertthunder/adpacks/internal/session"
	"github.com/desertthunder/adpacks/internal/shared"
)

const testOrigin = "http://localhost:3000"

type fakeOpener struct {
	mu      sync.Mutex
	msgs    []OpenerMessage
	origins []string
}

func (o *fakeOpener) PostMessage(msg OpenerMessage, targetOrigin string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	o.origins = append(o.origins, targetOrigin)
}

type fakeWindow struct {
	delays []time.Duration
}

func (w *fakeWindow) CloseAfter(d time.Duration) {
	w.delays = append(w.delays, d)
}

type fakeNavigator struct {
	paths []string
}

func (n *fakeNavigator) Navigate(path string) {
	n.paths = append(n.paths, path)
}

type fakeExchanger struct {
	calls  atomic.Int32
	code   string
	uri    string
	result *services.ExchangeResult
	err    error
	gate   chan struct{}
}

func (e *fakeExchanger) ExchangeToken(ctx context.Context, code, redirectURI string) (*services.ExchangeResult, error) {
	e.calls.Add(1)
	if e.gate != nil {
		<-e.gate
	}
	e.code = code
	e.uri = redirectURI
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func okExchanger() *fakeExchanger {
	return &fakeExchanger{result: &services.ExchangeResult{
		AccessToken: "tok-1",
		User:        models.User{ID: "u1", Name: "Ada"},
		AdAccounts:  []models.AdAccount{{ID: "act_1", Name: "Main"}},
	}}
}

type handshakeFixture struct {
	exchanger *fakeExchanger
	store     *session.Store
	notifier  *notify.Center
	handshake *Handshake
}

func newHandshakeFixture(exchanger *fakeExchanger) *handshakeFixture {
	f := &handshakeFixture{
		exchanger: exchanger,
		store:     session.NewStore(),
		notifier:  notify.NewCenter(nil),
	}
	f.handshake = NewHandshake(HandshakeDeps{
		Exchanger: exchanger,
		Session:   f.store,
		Notifier:  f.notifier,
		Origin:    testOrigin,
	})
	return f
}

func TestParseCallbackParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  CallbackParams
	}{
		{"code", "code=abc", CallbackParams{Code: "abc"}},
		{"error", "error=access_denied&error_description=nope", CallbackParams{Error: "access_denied", ErrorDescription: "nope"}},
		{"error_reason fallback", "error_reason=user_denied", CallbackParams{Error: "user_denied"}},
		{"error wins over error_reason", "error=a&error_reason=b", CallbackParams{Error: "a"}},
		{"state", "code=x&state=google_sheets", CallbackParams{Code: "x", State: "google_sheets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			if got := ParseCallbackParams(q); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCallbackParamsMessage(t *testing.T) {
	tests := []struct {
		name   string
		params CallbackParams
		want   OpenerMessage
	}{
		{"facebook success", CallbackParams{Code: "c"}, OpenerMessage{Type: FacebookAuthSuccess, Code: "c"}},
		{"facebook success with state", CallbackParams{Code: "c", State: "xyz"}, OpenerMessage{Type: FacebookAuthSuccess, Code: "c", State: "xyz"}},
		{"facebook error", CallbackParams{Error: "e", ErrorDescription: "d"}, OpenerMessage{Type: FacebookAuthError, Error: "e", ErrorDescription: "d"}},
		{"sheets success", CallbackParams{Code: "c", State: "google_sheets"}, OpenerMessage{Type: GoogleSheetsAuthSuccess, Code: "c", State: "google_sheets"}},
		{"sheets error", CallbackParams{Error: "e", State: "google_sheets"}, OpenerMessage{Type: GoogleSheetsAuthError, Error: "e", State: "google_sheets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Message(); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestHandshake(t *testing.T) {
	ctx := context.Background()

	t.Run("popup login success posts once and closes after the delay", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		opener, window := &fakeOpener{}, &fakeWindow{}
		frame := Frame{Opener: opener, Window: window}
		params := CallbackParams{Code: "abc123"}

		out := f.handshake.Run(ctx, frame, params)
		if out.State != StatePostedToOpener || !out.Posted || out.View != ViewRelayed {
			t.Fatalf("unexpected outcome %+v", out)
		}

		want := OpenerMessage{Type: FacebookAuthSuccess, Code: "abc123"}
		if len(opener.msgs) != 1 || opener.msgs[0] != want {
			t.Fatalf("expected %+v, got %+v", want, opener.msgs)
		}
		if opener.origins[0] != testOrigin {
			t.Errorf("expected message scoped to %s, got %s", testOrigin, opener.origins[0])
		}
		if len(window.delays) != 1 || window.delays[0] != DefaultCloseDelay {
			t.Errorf("expected one close after %v, got %v", DefaultCloseDelay, window.delays)
		}
		if f.exchanger.calls.Load() != 0 {
			t.Error("popup transport must not exchange")
		}
	})

	t.Run("popup sheets error posts once and stays open", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		opener, window := &fakeOpener{}, &fakeWindow{}
		params := CallbackParams{Error: "access_denied", State: "google_sheets"}

		out := f.handshake.Run(ctx, Frame{Opener: opener, Window: window}, params)
		if out.View != ViewError || !errors.Is(out.Err, shared.ErrProviderDenied) {
			t.Errorf("unexpected outcome %+v", out)
		}
		if out.Provider != services.ProviderGoogleSheets {
			t.Errorf("expected google sheets provider, got %s", out.Provider)
		}

		want := OpenerMessage{Type: GoogleSheetsAuthError, Error: "access_denied", State: "google_sheets"}
		if len(opener.msgs) != 1 || opener.msgs[0] != want {
			t.Fatalf("expected %+v, got %+v", want, opener.msgs)
		}
		if len(window.delays) != 0 {
			t.Error("error popup must not close itself")
		}
	})

	t.Run("error without opener renders inline only", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		out := f.handshake.Run(ctx, Frame{}, CallbackParams{Error: "access_denied"})
		if out.State != StateErrorReceived || out.View != ViewError || out.Posted {
			t.Errorf("unexpected outcome %+v", out)
		}
	})

	t.Run("redirect login exchanges once and navigates", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		nav := &fakeNavigator{}
		params := CallbackParams{Code: "xyz"}

		out := f.handshake.Run(ctx, Frame{Navigator: nav}, params)
		if out.State != StateExchanged || !out.Exchanged {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if f.exchanger.code != "xyz" || f.exchanger.uri != testOrigin+"/callback" {
			t.Errorf("unexpected exchange request %q %q", f.exchanger.code, f.exchanger.uri)
		}

		snap := f.store.Snapshot()
		if !snap.Authenticated() || snap.Token() != "tok-1" || snap.UserID() != "u1" {
			t.Errorf("expected committed session, got %+v", snap)
		}
		if len(snap.AdAccounts) != 1 {
			t.Errorf("expected ad accounts committed, got %v", snap.AdAccounts)
		}
		if len(nav.paths) != 1 || nav.paths[0] != AppPath {
			t.Errorf("expected navigation to %s, got %v", AppPath, nav.paths)
		}
	})

	t.Run("redirect login replaces the previous session in one publish", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		f.store.SetAccessToken(models.String("tok-A"))
		f.store.SetUser(&models.User{ID: "A", Name: "Previous"})
		f.store.AddPack(models.Pack{ID: "A-pack", Name: "Old"})

		var published []models.Session
		unsubscribe := f.store.Subscribe(func(s models.Session) { published = append(published, s) })
		defer unsubscribe()

		f.handshake.Run(ctx, Frame{Navigator: &fakeNavigator{}}, CallbackParams{Code: "xyz"})

		if len(published) != 1 {
			t.Fatalf("expected one publish, got %d", len(published))
		}
		for _, s := range published {
			if s.Token() == "tok-1" && s.UserID() != "u1" {
				t.Errorf("new token published with user %q", s.UserID())
			}
		}
		snap := f.store.Snapshot()
		if snap.UserID() != "u1" || len(snap.Packs) != 0 {
			t.Errorf("expected fresh session for u1, got user %q packs %v", snap.UserID(), snap.Packs)
		}
	})

	t.Run("redirect exchange failure notifies and stays", func(t *testing.T) {
		ex := &fakeExchanger{err: errors.New("backend down")}
		f := newHandshakeFixture(ex)
		nav := &fakeNavigator{}

		out := f.handshake.Run(ctx, Frame{Navigator: nav}, CallbackParams{Code: "xyz"})
		if out.State != StateFailed || out.View != ViewExchangeFailed {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if !errors.Is(out.Err, shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", out.Err)
		}
		if len(nav.paths) != 0 {
			t.Error("failure must not navigate")
		}
		active := f.notifier.Active()
		if len(active) != 1 || active[0].Level != notify.LevelError || active[0].Persistent {
			t.Errorf("expected one transient error notification, got %+v", active)
		}
		if f.store.Snapshot().Authenticated() {
			t.Error("failure must not write the session")
		}

		again := f.handshake.Run(ctx, Frame{Navigator: nav}, CallbackParams{Code: "xyz"})
		if again.State != StateFailed || again.Exchanged {
			t.Errorf("expected remembered failure without a retry, got %+v", again)
		}
		if ex.calls.Load() != 1 {
			t.Errorf("expected no automatic retry, got %d calls", ex.calls.Load())
		}
	})

	t.Run("redirect sheets callback never exchanges", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		out := f.handshake.Run(ctx, Frame{Navigator: &fakeNavigator{}}, CallbackParams{Code: "c", State: "google_sheets"})
		if out.View != ViewContinueInOpener {
			t.Errorf("expected continue view, got %+v", out)
		}
		if f.exchanger.calls.Load() != 0 {
			t.Error("sheets integration must not exchange")
		}
	})

	t.Run("no code and no error is a silent no-op", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		opener, window, nav := &fakeOpener{}, &fakeWindow{}, &fakeNavigator{}

		out := f.handshake.Run(ctx, Frame{Opener: opener, Window: window, Navigator: nav}, CallbackParams{State: "x"})
		if out.State != StateIdle || out.View != ViewNone {
			t.Errorf("unexpected outcome %+v", out)
		}
		if len(opener.msgs)+len(window.delays)+len(nav.paths) != 0 || f.exchanger.calls.Load() != 0 {
			t.Error("expected no side effects")
		}
	})

	t.Run("close delay is configurable", func(t *testing.T) {
		h := NewHandshake(HandshakeDeps{Origin: testOrigin, CloseDelay: 250 * time.Millisecond})
		window := &fakeWindow{}
		h.Run(ctx, Frame{Opener: &fakeOpener{}, Window: window}, CallbackParams{Code: "c"})
		if len(window.delays) != 1 || window.delays[0] != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", window.delays)
		}
	})
}

func TestHandshakeIdempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated popup runs post exactly once", func(t *testing.T) {
		for _, params := range []CallbackParams{
			{Code: "abc123"},
			{Error: "access_denied", State: "google_sheets"},
		} {
			f := newHandshakeFixture(okExchanger())
			opener, window := &fakeOpener{}, &fakeWindow{}
			for i := 0; i < 5; i++ {
				f.handshake.Run(ctx, Frame{Opener: opener, Window: window}, params)
			}
			if len(opener.msgs) != 1 {
				t.Errorf("%+v: expected 1 message, got %d", params, len(opener.msgs))
			}
			if len(window.delays) > 1 {
				t.Errorf("%+v: expected at most one close, got %d", params, len(window.delays))
			}
		}
	})

	t.Run("repeated redirect runs exchange at most once", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		nav := &fakeNavigator{}
		for i := 0; i < 5; i++ {
			out := f.handshake.Run(ctx, Frame{Navigator: nav}, CallbackParams{Code: "xyz"})
			if out.State != StateExchanged {
				t.Fatalf("run %d: unexpected outcome %+v", i, out)
			}
			if out.Exchanged != (i == 0) {
				t.Errorf("run %d: expected Exchanged=%v", i, i == 0)
			}
		}
		if f.exchanger.calls.Load() != 1 {
			t.Errorf("expected 1 exchange, got %d", f.exchanger.calls.Load())
		}
	})

	t.Run("concurrent runs exchange once", func(t *testing.T) {
		ex := okExchanger()
		ex.gate = make(chan struct{})
		f := newHandshakeFixture(ex)

		var wg sync.WaitGroup
		var exchanging atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out := f.handshake.Run(ctx, Frame{}, CallbackParams{Code: "xyz"})
				if out.State == StateExchanging {
					exchanging.Add(1)
				}
			}()
		}

		deadline := time.Now().Add(time.Second)
		for exchanging.Load() < 9 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		close(ex.gate)
		wg.Wait()

		if ex.calls.Load() != 1 {
			t.Errorf("expected 1 exchange, got %d", ex.calls.Load())
		}
		if exchanging.Load() != 9 {
			t.Errorf("expected 9 runs to see the exchange in flight, got %d", exchanging.Load())
		}
	})

	t.Run("concurrent popup runs post once", func(t *testing.T) {
		f := newHandshakeFixture(okExchanger())
		opener := &fakeOpener{}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.handshake.Run(ctx, Frame{Opener: opener}, CallbackParams{Code: "abc123"})
			}()
		}
		wg.Wait()

		if len(opener.msgs) != 1 {
			t.Errorf("expected 1 message, got %d", len(opener.msgs))
		}
	})
}
