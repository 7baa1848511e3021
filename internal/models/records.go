package models

// RawAdRecord is one insight row stored in the local raw-record cache.
type RawAdRecord struct {
	AdID         string  `json:"ad_id" validate:"required"`
	AdName       string  `json:"ad_name"`
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	AdsetID      string  `json:"adset_id"`
	AdsetName    string  `json:"adset_name"`
	Spend        float64 `json:"spend" validate:"gte=0"`
	Impressions  int64   `json:"impressions" validate:"gte=0"`
	Clicks       int64   `json:"clicks" validate:"gte=0"`
	Date         string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// PackExport is a pack with its cached records, used by the exporters.
type PackExport struct {
	Pack    Pack          `json:"pack"`
	Records []RawAdRecord `json:"records"`
}
