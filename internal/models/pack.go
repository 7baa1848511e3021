package models

import "time"

// Aggregation levels accepted for a [Pack].
const (
	LevelAd       = "ad"
	LevelAdset    = "adset"
	LevelCampaign = "campaign"
	LevelAccount  = "account"
)

// Filter is one predicate applied when selecting a pack's entities.
type Filter struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value"`
}

// SheetIntegration binds a pack to a spreadsheet kept in sync by the backend.
type SheetIntegration struct {
	ID             string     `json:"id" validate:"required"`
	SpreadsheetID  string     `json:"spreadsheet_id" validate:"required"`
	WorksheetTitle string     `json:"worksheet_title,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
}

// Pack is a named, saved selection of advertising entities over a date range.
type Pack struct {
	ID               string            `json:"id" validate:"required"`
	Name             string            `json:"name" validate:"required"`
	AdAccountID      string            `json:"adaccount_id" validate:"required"`
	DateStart        string            `json:"date_start" validate:"required,datetime=2006-01-02"`
	DateStop         string            `json:"date_stop" validate:"required,datetime=2006-01-02"`
	Level            string            `json:"level" validate:"required,oneof=ad adset campaign account"`
	Filters          []Filter          `json:"filters" validate:"dive"`
	AutoRefresh      bool              `json:"auto_refresh"`
	Stats            *PackStats        `json:"stats,omitempty"`
	SheetIntegration *SheetIntegration `json:"sheet_integration,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the pack.
func (p Pack) Clone() Pack {
	out := p
	if p.Filters != nil {
		out.Filters = append([]Filter(nil), p.Filters...)
	}
	if p.Stats != nil {
		stats := p.Stats.Clone()
		out.Stats = &stats
	}
	if p.SheetIntegration != nil {
		si := *p.SheetIntegration
		if si.LastSyncedAt != nil {
			at := *si.LastSyncedAt
			si.LastSyncedAt = &at
		}
		out.SheetIntegration = &si
	}
	return out
}
