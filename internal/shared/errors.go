package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrProviderDenied     = fmt.Errorf("provider denied authorization")
	ErrExchangeFailed     = fmt.Errorf("token exchange failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrSheetsTokenExpired = fmt.Errorf("google sheets token expired")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Sync and cache errors
	ErrFetchFailed       = fmt.Errorf("pack fetch failed")
	ErrCacheMiss         = fmt.Errorf("no cached records for pack")
	ErrPersistence       = fmt.Errorf("persistence failed")
	ErrAlreadyRunning    = fmt.Errorf("another adpacks process holds the database")
	ErrRefreshInProgress = fmt.Errorf("pack refresh already in progress")
	ErrPackNotFound      = fmt.Errorf("pack not found")
	ErrPausedJobNotFound = fmt.Errorf("paused job not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
