package models

import "time"

// PauseReason explains why a sheet sync job was paused.
type PauseReason string

// ReasonTokenExpired is the only pause reason: the Google Sheets token expired mid-sync.
const ReasonTokenExpired PauseReason = "token_expired"

// PausedSheetJob is a spreadsheet sync job halted until the user reauthorizes.
//
// At most one entry exists per PackID. ToastID is the handle of the single persistent notification shown for it.
type PausedSheetJob struct {
	SyncJobID     string      `json:"syncJobId" validate:"required"`
	PackID        string      `json:"packId" validate:"required"`
	PackName      string      `json:"packName"`
	ToastID       string      `json:"toastId"`
	IntegrationID string      `json:"integrationId"`
	PausedAt      time.Time   `json:"pausedAt"`
	Reason        PauseReason `json:"reason" validate:"required,oneof=token_expired"`
}
