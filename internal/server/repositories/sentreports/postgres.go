// Package sentreports provides the PostgreSQL-backed audit log of deliveries
// to the receiving authority.
package sentreports

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

// PostgresRepository implements sent report storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts s, fills its numeric ID and SentAt, and links the bundled
// match reports of a match delivery. Run it inside a transaction.
func (r *PostgresRepository) Create(ctx context.Context, s *models.SentReport) error {
	query :=
		`INSERT INTO sent_reports (is_match, to_address, storage_key, report_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, sent_at
		 `
	if err := r.db.QueryRowContext(ctx, query, s.Match, s.ToAddress, s.StorageKey, s.ReportID).
		Scan(&s.ID, &s.SentAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, id := range s.MatchReportIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO sent_report_match_items (sent_report_id, match_report_id) VALUES ($1, $2)`,
			s.ID, id); err != nil {
			return fmt.Errorf("failed to link match report: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) SetStorageKey(ctx context.Context, id int64, key string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sent_reports SET storage_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
	return nil
}
