package models

// User is the authenticated profile returned by the login provider exchange.
type User struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// AdAccount is an advertising account linked to the user.
type AdAccount struct {
	ID            string `json:"id" validate:"required"`
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	Currency      string `json:"currency,omitempty"`
	AccountStatus int    `json:"account_status,omitempty"`
}

// Session is the client-side authenticated state.
//
// A Session value is treated as immutable once published; mutations produce a new value via [Session.Clone].
type Session struct {
	AccessToken *string     `json:"accessToken"`
	User        *User       `json:"user"`
	AdAccounts  []AdAccount `json:"adAccounts"`
	Packs       []Pack      `json:"packs"`
}

// Authenticated reports whether both the token and the user are present.
func (s Session) Authenticated() bool {
	return s.AccessToken != nil && s.User != nil
}

// Token returns the access token or the empty string.
func (s Session) Token() string {
	if s.AccessToken == nil {
		return ""
	}
	return *s.AccessToken
}

// UserID returns the user's id or the empty string.
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// FindPack returns the pack with id and its index, or -1.
func (s Session) FindPack(id string) (Pack, int) {
	for i, p := range s.Packs {
		if p.ID == id {
			return p, i
		}
	}
	return Pack{}, -1
}

// Clone returns a deep copy so the caller can build the next snapshot without touching this one.
func (s Session) Clone() Session {
	out := Session{}
	if s.AccessToken != nil {
		token := *s.AccessToken
		out.AccessToken = &token
	}
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	if s.AdAccounts != nil {
		out.AdAccounts = append([]AdAccount(nil), s.AdAccounts...)
	}
	if s.Packs != nil {
		out.Packs = make([]Pack, len(s.Packs))
		for i, p := range s.Packs {
			out.Packs[i] = p.Clone()
		}
	}
	return out
}
