package services

import (
	"fmt"
	"strings"

	"github.com/desertthunder/adpacks/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider identifies which OAuth provider produced a callback.
type Provider string

const (
	ProviderFacebook     Provider = "facebook"
	ProviderGoogleSheets Provider = "google_sheets"
)

// StateGoogleSheets is the OAuth state value tagging the Google Sheets flow.
const StateGoogleSheets = "google_sheets"

// ProviderForState maps a callback state value to its provider. Anything but [StateGoogleSheets] is Facebook.
func ProviderForState(state string) Provider {
	if state == StateGoogleSheets {
		return ProviderGoogleSheets
	}
	return ProviderFacebook
}

// Providers builds consent URLs for both OAuth providers.
type Providers struct {
	facebook *oauth2.Config
	sheets   *oauth2.Config
}

// NewProviders creates provider configs that redirect to origin + [CallbackPath].
func NewProviders(creds shared.CredentialsConfig, origin string) *Providers {
	redirect := strings.TrimRight(origin, "/") + CallbackPath
	return &Providers{
		facebook: &oauth2.Config{
			ClientID:     creds.Facebook.ClientID,
			ClientSecret: creds.Facebook.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       creds.Facebook.Scopes,
			Endpoint:     endpoints.Facebook,
		},
		sheets: &oauth2.Config{
			ClientID:     creds.GoogleSheets.ClientID,
			ClientSecret: creds.GoogleSheets.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       creds.GoogleSheets.Scopes,
			Endpoint:     endpoints.Google,
		},
	}
}

// RedirectURI returns the shared callback URL.
func (p *Providers) RedirectURI() string {
	return p.facebook.RedirectURL
}

// FacebookAuthURL returns the login consent URL. state may be empty.
func (p *Providers) FacebookAuthURL(state string) (string, error) {
	if p.facebook.ClientID == "" {
		return "", fmt.Errorf("%w: facebook client_id", shared.ErrMissingCredentials)
	}
	return p.facebook.AuthCodeURL(state), nil
}

// GoogleSheetsAuthURL returns the integration consent URL, always tagged with [StateGoogleSheets].
//
// Offline access and a forced consent prompt make Google issue a refresh token on every connect.
func (p *Providers) GoogleSheetsAuthURL() (string, error) {
	if p.sheets.ClientID == "" {
		return "", fmt.Errorf("%w: google sheets client_id", shared.ErrMissingCredentials)
	}
	return p.sheets.AuthCodeURL(StateGoogleSheets, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}
