package models

// PackStats are the aggregate statistics of a pack.
//
// Every field is optional; nil means the value is missing, which is distinct from zero.
type PackStats struct {
	TotalAds        *int     `json:"totalAds,omitempty"`
	UniqueAds       *int     `json:"uniqueAds,omitempty"`
	UniqueCampaigns *int     `json:"uniqueCampaigns,omitempty"`
	UniqueAdsets    *int     `json:"uniqueAdsets,omitempty"`
	TotalSpend      *float64 `json:"totalSpend,omitempty"`
}

// ValidStats reports whether stats is usable without recomputation.
//
// All essential keys (totalSpend, uniqueAds, uniqueCampaigns, uniqueAdsets) must be present. Zero is a valid value.
func ValidStats(stats *PackStats) bool {
	if stats == nil {
		return false
	}
	return stats.TotalSpend != nil &&
		stats.UniqueAds != nil &&
		stats.UniqueCampaigns != nil &&
		stats.UniqueAdsets != nil
}

// Equal compares two stats by value. Two nil stats are equal.
func (s *PackStats) Equal(other *PackStats) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	return intPtrEqual(s.TotalAds, other.TotalAds) &&
		intPtrEqual(s.UniqueAds, other.UniqueAds) &&
		intPtrEqual(s.UniqueCampaigns, other.UniqueCampaigns) &&
		intPtrEqual(s.UniqueAdsets, other.UniqueAdsets) &&
		floatPtrEqual(s.TotalSpend, other.TotalSpend)
}

// Clone returns a copy that shares no pointers with s.
func (s PackStats) Clone() PackStats {
	return PackStats{
		TotalAds:        copyPtr(s.TotalAds),
		UniqueAds:       copyPtr(s.UniqueAds),
		UniqueCampaigns: copyPtr(s.UniqueCampaigns),
		UniqueAdsets:    copyPtr(s.UniqueAdsets),
		TotalSpend:      copyPtr(s.TotalSpend),
	}
}

// ComputeStats derives [PackStats] from cached raw records.
//
// Unique counts ignore empty identifiers.
func ComputeStats(records []RawAdRecord) PackStats {
	ads := make(map[string]struct{})
	campaigns := make(map[string]struct{})
	adsets := make(map[string]struct{})
	var spend float64

	for _, r := range records {
		if r.AdID != "" {
			ads[r.AdID] = struct{}{}
		}
		if r.CampaignID != "" {
			campaigns[r.CampaignID] = struct{}{}
		}
		if r.AdsetID != "" {
			adsets[r.AdsetID] = struct{}{}
		}
		spend += r.Spend
	}

	return PackStats{
		TotalAds:        Int(len(records)),
		UniqueAds:       Int(len(ads)),
		UniqueCampaigns: Int(len(campaigns)),
		UniqueAdsets:    Int(len(adsets)),
		TotalSpend:      Float(spend),
	}
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
