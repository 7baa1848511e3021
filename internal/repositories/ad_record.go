package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/adpacks/internal/models"
)

// AdRecordRepository stores [models.RawAdRecord] rows keyed by pack id.
type AdRecordRepository struct {
	db *sql.DB
}

// NewAdRecordRepository creates a new AdRecordRepository with the given database connection
func NewAdRecordRepository(db *sql.DB) *AdRecordRepository {
	return &AdRecordRepository{db: db}
}

// ReplaceForPack atomically replaces every cached record of packID with records.
//
// Records are validated first; any invalid record aborts the replacement.
func (r *AdRecordRepository) ReplaceForPack(ctx context.Context, packID string, records []models.RawAdRecord) error {
	if packID == "" {
		return fmt.Errorf("pack id is required")
	}

	for i, rec := range records {
		if err := models.Validate(rec); err != nil {
			return fmt.Errorf("validation failed for record %d: %w", i, err)
		}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ad_records WHERE pack_id = ?`, packID); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO ad_records (
				pack_id, ad_id, ad_name, campaign_id, campaign_name, adset_id, adset_name,
				spend, impressions, clicks, date, cached_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now()
		for _, rec := range records {
			_, err := stmt.ExecContext(ctx,
				packID,
				rec.AdID,
				rec.AdName,
				rec.CampaignID,
				rec.CampaignName,
				rec.AdsetID,
				rec.AdsetName,
				rec.Spend,
				rec.Impressions,
				rec.Clicks,
				rec.Date,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert record %s: %w", rec.AdID, err)
			}
		}
		return nil
	})
}

// ListByPack returns the cached records of packID ordered by date and ad id.
//
// A pack with no cached rows yields an empty slice and no error.
func (r *AdRecordRepository) ListByPack(ctx context.Context, packID string) ([]models.RawAdRecord, error) {
	query := `
		SELECT ad_id, ad_name, campaign_id, campaign_name, adset_id, adset_name, spend, impressions, clicks, date
		FROM ad_records
		WHERE pack_id = ?
		ORDER BY date, ad_id
	`

	rows, err := r.db.QueryContext(ctx, query, packID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []models.RawAdRecord{}
	for rows.Next() {
		var rec models.RawAdRecord
		err := rows.Scan(
			&rec.AdID,
			&rec.AdName,
			&rec.CampaignID,
			&rec.CampaignName,
			&rec.AdsetID,
			&rec.AdsetName,
			&rec.Spend,
			&rec.Impressions,
			&rec.Clicks,
			&rec.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// DeleteForPack removes every cached record of packID.
func (r *AdRecordRepository) DeleteForPack(ctx context.Context, packID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ad_records WHERE pack_id = ?`, packID); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// CountByPack returns the number of cached rows per pack id.
func (r *AdRecordRepository) CountByPack(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT pack_id, COUNT(*) FROM ad_records GROUP BY pack_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var packID string
		var n int
		if err := rows.Scan(&packID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[packID] = n
	}
	return counts, rows.Err()
}
