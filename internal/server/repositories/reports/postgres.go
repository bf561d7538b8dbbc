// Package reports provides the PostgreSQL-backed repository for full
// incident reports.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

const columns = `id, owner_id, ciphertext, nonce, encode_prefix, salt, created_at, edited_at, match_found, submitted_to_school`

// PostgresRepository implements report storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*models.Report, error) {
	r := &models.Report{}
	err := s.Scan(&r.ID, &r.OwnerID, &r.Ciphertext, &r.Nonce, &r.EncodePrefix, &r.LegacySalt,
		&r.CreatedAt, &r.EditedAt, &r.MatchFound, &r.SubmittedToSchool)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create inserts report and fills CreatedAt from the database.
func (r *PostgresRepository) Create(ctx context.Context, report *models.Report) error {
	query :=
		`INSERT INTO reports (id, owner_id, ciphertext, nonce, encode_prefix, salt)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, report.ID, report.OwnerID, report.Ciphertext, report.Nonce,
		report.EncodePrefix, report.LegacySalt).Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the report by id or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + columns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return report, nil
}

// UpdateRecord persists the encrypted part of report together with EditedAt.
// Ciphertext, nonce and prefix are always written as one unit.
func (r *PostgresRepository) UpdateRecord(ctx context.Context, report *models.Report) error {
	query :=
		`UPDATE reports SET ciphertext = $2, nonce = $3, encode_prefix = $4, salt = $5, edited_at = $6
		 WHERE id = $1
		 `
	res, err := r.db.ExecContext(ctx, query, report.ID, report.Ciphertext, report.Nonce,
		report.EncodePrefix, report.LegacySalt, report.EditedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes the report owned by ownerID; its match reports cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM reports WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// LockByIDs selects the reports with the given ids FOR UPDATE. Rows are
// locked in id order so concurrent sweeps cannot deadlock.
func (r *PostgresRepository) LockByIDs(ctx context.Context, ids []string) ([]*models.Report, error) {
	query := `SELECT ` + columns + ` FROM reports WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reports: %w", err)
	}
	defer rows.Close()

	var result []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SetMatchFound(ctx context.Context, ids []string) error {
	query := `UPDATE reports SET match_found = TRUE WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to set match_found: %w", err)
	}
	return nil
}

// MarkSubmitted stamps submitted_to_school once. A report that was already
// submitted yields common.ErrAlreadySubmitted.
func (r *PostgresRepository) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE reports SET submitted_to_school = $2 WHERE id = $1 AND submitted_to_school IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadySubmitted
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
