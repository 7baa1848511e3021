package services

import (
	"context"

	"github.com/desertthunder/adpacks/internal/models"
)

// CallbackPath is the shared OAuth callback route of both providers.
const CallbackPath = "/callback"

// Backend is the authoritative pack backend.
type Backend interface {
	// ExchangeToken trades a Facebook authorization code for a session token and profile.
	ExchangeToken(ctx context.Context, code, redirectURI string) (*ExchangeResult, error)

	// ListPacks returns the user's packs. Packs failing validation are dropped.
	ListPacks(ctx context.Context) ([]models.Pack, error)

	// GetPack returns one pack with full detail.
	GetPack(ctx context.Context, packID string) (*models.Pack, error)

	// RefreshPack asks the backend to re-pull insights for a pack and returns the updated pack.
	RefreshPack(ctx context.Context, packID string) (*models.Pack, error)

	// SyncSheet starts a spreadsheet sync for a pack and returns the sync job id.
	//
	// When the Google token has expired the error is a [*TokenExpiredError].
	SyncSheet(ctx context.Context, packID string) (string, error)

	// ConnectGoogleSheets trades a Google authorization code for a stored integration.
	ConnectGoogleSheets(ctx context.Context, code, redirectURI string) error

	// ResumeSheetSync restarts a sync job paused on token expiry.
	ResumeSheetSync(ctx context.Context, syncJobID string) error
}

// ExchangeResult is the backend's answer to a successful code exchange.
type ExchangeResult struct {
	AccessToken string             `json:"access_token" validate:"required"`
	User        models.User        `json:"user_info"`
	AdAccounts  []models.AdAccount `json:"ad_accounts,omitempty" validate:"omitempty,dive"`
}
