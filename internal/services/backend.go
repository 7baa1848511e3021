package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/adpacks/internal/models"
	"github.com/desertthunder/adpacks/internal/shared"
)

// ErrorCodeGoogleTokenExpired is the backend error code for an expired Google Sheets token.
const ErrorCodeGoogleTokenExpired = "google_token_expired"

// TokenExpiredError reports that a sheet sync stopped because the Google token expired.
//
// It matches [shared.ErrSheetsTokenExpired] with errors.Is.
type TokenExpiredError struct {
	SyncJobID     string
	IntegrationID string
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("%v: sync job %s", shared.ErrSheetsTokenExpired, e.SyncJobID)
}

func (e *TokenExpiredError) Unwrap() error {
	return shared.ErrSheetsTokenExpired
}

type exchangeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

type packsResponse struct {
	Success bool          `json:"success"`
	Packs   []models.Pack `json:"packs"`
	Error   string        `json:"error,omitempty"`
}

type packResponse struct {
	Success bool         `json:"success"`
	Pack    *models.Pack `json:"pack"`
	Error   string       `json:"error,omitempty"`
}

type syncResponse struct {
	Success       bool   `json:"success"`
	SyncJobID     string `json:"sync_job_id"`
	IntegrationID string `json:"integration_id"`
	Error         string `json:"error,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExchangeToken implements [Backend].
func (c *Client) ExchangeToken(ctx context.Context, code, redirectURI string) (*ExchangeResult, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", shared.ErrExchangeFailed)
	}

	var result ExchangeResult
	err := c.doJSON(ctx, http.MethodPost, "/auth/facebook/exchange", exchangeRequest{Code: code, RedirectURI: redirectURI}, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}

	if err := models.Validate(result); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}
	return &result, nil
}

// ListPacks implements [Backend].
func (c *Client) ListPacks(ctx context.Context) ([]models.Pack, error) {
	var resp packsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/packs", nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrFetchFailed, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: backend reported failure: %s", shared.ErrFetchFailed, resp.Error)
	}

	packs, errs := models.ValidatePacks(resp.Packs)
	for _, err := range errs {
		c.logger.Warn("dropping invalid pack", "error", err)
	}
	return packs, nil
}

// GetPack implements [Backend].
func (c *Client) GetPack(ctx context.Context, packID string) (*models.Pack, error) {
	var resp packResponse
	if err := c.doJSON(ctx, http.MethodGet, "/packs/"+url.PathEscape(packID), nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrFetchFailed, err)
	}
	return checkPack(resp)
}

// RefreshPack implements [Backend].
func (c *Client) RefreshPack(ctx context.Context, packID string) (*models.Pack, error) {
	var resp packResponse
	if err := c.doJSON(ctx, http.MethodPost, "/packs/"+url.PathEscape(packID)+"/refresh", nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: refresh %s: %w", shared.ErrAPIRequest, packID, err)
	}
	return checkPack(resp)
}

func checkPack(resp packResponse) (*models.Pack, error) {
	if !resp.Success || resp.Pack == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrPackNotFound, resp.Error)
	}
	if err := models.Validate(*resp.Pack); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrFetchFailed, err)
	}
	return resp.Pack, nil
}

// SyncSheet implements [Backend].
func (c *Client) SyncSheet(ctx context.Context, packID string) (string, error) {
	path := "/packs/" + url.PathEscape(packID) + "/sheet-sync"
	resp, err := c.Post(ctx, path, nil)
	if err != nil {
		return "", err
	}

	var body syncResponse
	decodeErr := json.Unmarshal(resp.Body, &body)

	if resp.StatusCode == http.StatusUnauthorized && decodeErr == nil && body.Error == ErrorCodeGoogleTokenExpired {
		return "", &TokenExpiredError{SyncJobID: body.SyncJobID, IntegrationID: body.IntegrationID}
	}
	if err := statusError(http.MethodPost, path, resp); err != nil {
		return "", err
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: POST %s: invalid response: %v", shared.ErrAPIRequest, path, decodeErr)
	}
	if !body.Success {
		return "", fmt.Errorf("%w: sheet sync rejected: %s", shared.ErrAPIRequest, body.Error)
	}
	return body.SyncJobID, nil
}

// ConnectGoogleSheets implements [Backend].
func (c *Client) ConnectGoogleSheets(ctx context.Context, code, redirectURI string) error {
	if code == "" {
		return fmt.Errorf("%w: missing authorization code", shared.ErrInvalidInput)
	}

	var resp successResponse
	err := c.doJSON(ctx, http.MethodPost, "/integrations/google-sheets/connect", exchangeRequest{Code: code, RedirectURI: redirectURI}, &resp)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", shared.ErrExchangeFailed, resp.Error)
	}
	return nil
}

// ResumeSheetSync implements [Backend].
func (c *Client) ResumeSheetSync(ctx context.Context, syncJobID string) error {
	var resp successResponse
	err := c.doJSON(ctx, http.MethodPost, "/sheet-sync/"+url.PathEscape(syncJobID)+"/resume", nil, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: resume %s: %s", shared.ErrAPIRequest, syncJobID, resp.Error)
	}
	return nil
}

// IsTokenExpired extracts the [*TokenExpiredError] from err.
func IsTokenExpired(err error) (*TokenExpiredError, bool) {
	var expired *TokenExpiredError
	if errors.As(err, &expired) {
		return expired, true
	}
	return nil, false
}
