package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidStats(t *testing.T) {
	tc := []struct {
		name  string
		stats *PackStats
		want  bool
	}{
		{name: "nil stats", stats: nil, want: false},
		{name: "empty stats", stats: &PackStats{}, want: false},
		{
			name: "all essential keys",
			stats: &PackStats{
				UniqueAds: Int(4), UniqueCampaigns: Int(2), UniqueAdsets: Int(3), TotalSpend: Float(12.5),
			},
			want: true,
		},
		{
			name: "zeros are valid",
			stats: &PackStats{
				UniqueAds: Int(0), UniqueCampaigns: Int(0), UniqueAdsets: Int(0), TotalSpend: Float(0),
			},
			want: true,
		},
		{
			name: "missing total spend",
			stats: &PackStats{
				TotalAds: Int(10), UniqueAds: Int(4), UniqueCampaigns: Int(2), UniqueAdsets: Int(3),
			},
			want: false,
		},
		{
			name: "total ads is not essential",
			stats: &PackStats{
				UniqueAds: Int(1), UniqueCampaigns: Int(1), UniqueAdsets: Int(1), TotalSpend: Float(1),
			},
			want: true,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidStats(tt.stats); got != tt.want {
				t.Errorf("ValidStats() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	t.Run("ten records", func(t *testing.T) {
		records := make([]RawAdRecord, 0, 10)
		for i := 0; i < 10; i++ {
			records = append(records, RawAdRecord{
				AdID:       []string{"a1", "a2", "a3", "a4", "a5"}[i%5],
				CampaignID: []string{"c1", "c2"}[i%2],
				AdsetID:    []string{"s1", "s2", "s3"}[i%3],
				Spend:      1.5,
			})
		}

		stats := ComputeStats(records)

		if *stats.TotalAds != 10 {
			t.Errorf("expected totalAds 10, got %d", *stats.TotalAds)
		}
		if *stats.UniqueAds != 5 {
			t.Errorf("expected uniqueAds 5, got %d", *stats.UniqueAds)
		}
		if *stats.UniqueCampaigns != 2 {
			t.Errorf("expected uniqueCampaigns 2, got %d", *stats.UniqueCampaigns)
		}
		if *stats.UniqueAdsets != 3 {
			t.Errorf("expected uniqueAdsets 3, got %d", *stats.UniqueAdsets)
		}
		if *stats.TotalSpend != 15 {
			t.Errorf("expected totalSpend 15, got %v", *stats.TotalSpend)
		}
		if !ValidStats(&stats) {
			t.Error("computed stats should be valid")
		}
	})

	t.Run("empty identifiers are not counted", func(t *testing.T) {
		stats := ComputeStats([]RawAdRecord{{AdID: "a1"}, {AdID: "a1", CampaignID: ""}})
		if *stats.UniqueCampaigns != 0 {
			t.Errorf("expected uniqueCampaigns 0, got %d", *stats.UniqueCampaigns)
		}
		if *stats.TotalAds != 2 {
			t.Errorf("expected totalAds 2, got %d", *stats.TotalAds)
		}
	})
}

func TestPackStatsEqual(t *testing.T) {
	a := &PackStats{UniqueAds: Int(1), TotalSpend: Float(2)}
	b := &PackStats{UniqueAds: Int(1), TotalSpend: Float(2)}
	c := &PackStats{UniqueAds: Int(1), TotalSpend: Float(3)}
	var none *PackStats

	if !a.Equal(b) {
		t.Error("expected value-equal stats to be equal")
	}
	if a.Equal(c) {
		t.Error("expected different spend to be unequal")
	}
	if a.Equal(none) || none.Equal(a) {
		t.Error("expected nil and non-nil to be unequal")
	}
	if !none.Equal(nil) {
		t.Error("expected two nil stats to be equal")
	}
	if (&PackStats{UniqueAds: Int(0)}).Equal(&PackStats{}) {
		t.Error("expected zero and missing to be unequal")
	}
}

func TestSessionClone(t *testing.T) {
	now := time.Now()
	s := Session{
		AccessToken: String("tok"),
		User:        &User{ID: "u1", Name: "Ada"},
		AdAccounts:  []AdAccount{{ID: "act_1"}},
		Packs: []Pack{{
			ID:               "p1",
			Stats:            &PackStats{UniqueAds: Int(3)},
			Filters:          []Filter{{Field: "spend", Operator: "GREATER_THAN", Value: 10}},
			SheetIntegration: &SheetIntegration{ID: "i1", SpreadsheetID: "s1", LastSyncedAt: &now},
		}},
	}

	clone := s.Clone()
	*clone.AccessToken = "other"
	clone.User.Name = "Grace"
	clone.AdAccounts[0].ID = "act_2"
	*clone.Packs[0].Stats.UniqueAds = 99
	clone.Packs[0].Filters[0].Field = "clicks"
	clone.Packs[0].SheetIntegration.ID = "i2"

	if s.Token() != "tok" || s.User.Name != "Ada" || s.AdAccounts[0].ID != "act_1" {
		t.Error("clone mutated session fields")
	}
	if *s.Packs[0].Stats.UniqueAds != 3 || s.Packs[0].Filters[0].Field != "spend" || s.Packs[0].SheetIntegration.ID != "i1" {
		t.Error("clone mutated pack fields")
	}
}

func TestSessionAuthenticated(t *testing.T) {
	if (Session{}).Authenticated() {
		t.Error("empty session should not be authenticated")
	}
	if (Session{AccessToken: String("t")}).Authenticated() {
		t.Error("token without user should not be authenticated")
	}
	if !(Session{AccessToken: String("t"), User: &User{ID: "u"}}).Authenticated() {
		t.Error("token and user should be authenticated")
	}
}

func validPack(id string) Pack {
	return Pack{
		ID:          id,
		Name:        "Pack " + id,
		AdAccountID: "act_1",
		DateStart:   "2024-01-01",
		DateStop:    "2024-01-31",
		Level:       LevelAd,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid pack", func(t *testing.T) {
		if err := Validate(validPack("p1")); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("invalid pack", func(t *testing.T) {
		p := validPack("p1")
		p.Level = "everything"
		p.DateStart = "01/01/2024"

		err := Validate(p)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(verr.Fields) != 2 {
			t.Errorf("expected 2 failing fields, got %v", verr.Fields)
		}
		if !strings.Contains(err.Error(), "Level(oneof)") {
			t.Errorf("expected error to name Level, got %v", err)
		}
	})

	t.Run("ValidatePacks drops invalid", func(t *testing.T) {
		bad := validPack("")
		valid, errs := ValidatePacks([]Pack{validPack("p1"), bad, validPack("p2")})
		if len(valid) != 2 {
			t.Errorf("expected 2 valid packs, got %d", len(valid))
		}
		if len(errs) != 1 {
			t.Errorf("expected 1 error, got %d", len(errs))
		}
	})

	t.Run("ValidateRecords", func(t *testing.T) {
		valid, errs := ValidateRecords([]RawAdRecord{{AdID: "a1", Spend: 2}, {AdID: "a2", Spend: -1}, {Spend: 1}})
		if len(valid) != 1 || len(errs) != 2 {
			t.Errorf("expected 1 valid and 2 errors, got %d and %d", len(valid), len(errs))
		}
	})

	t.Run("paused job reason", func(t *testing.T) {
		job := PausedSheetJob{SyncJobID: "j1", PackID: "p1", Reason: "other"}
		if err := Validate(job); err == nil {
			t.Error("expected unknown reason to fail validation")
		}
		job.Reason = ReasonTokenExpired
		if err := Validate(job); err != nil {
			t.Errorf("expected valid job, got %v", err)
		}
	})
}
