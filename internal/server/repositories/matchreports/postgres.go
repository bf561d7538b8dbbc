// Package matchreports provides the PostgreSQL-backed repository for
// peppered match reports.
package matchreports

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

const columns = `m.id, m.report_id, r.owner_id, m.contact, m.ciphertext, m.nonce, m.encode_prefix, m.salt, m.seen, m.identifier, m.created_at`

const from = ` FROM match_reports m JOIN reports r ON r.id = m.report_id`

// PostgresRepository implements match report storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts m. The identifier column is written only when m carries one.
func (r *PostgresRepository) Create(ctx context.Context, m *models.MatchReport) error {
	query :=
		`INSERT INTO match_reports (id, report_id, contact, ciphertext, nonce, encode_prefix, salt, seen, identifier)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at
		 `
	err := r.db.QueryRowContext(ctx, query, m.ID, m.ReportID, m.Contact, m.Ciphertext, m.Nonce,
		m.EncodePrefix, m.LegacySalt, m.Seen, m.Identifier).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListAll returns every match report, seen or not, for probing.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.MatchReport, error) {
	return r.list(ctx, `SELECT `+columns+from+` ORDER BY m.created_at, m.id`)
}

// ListPending returns unseen rows that still carry an identifier.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*models.MatchReport, error) {
	return r.list(ctx, `SELECT `+columns+from+` WHERE m.seen = FALSE AND m.identifier IS NOT NULL ORDER BY m.created_at, m.id`)
}

// LockByIDs selects rows FOR UPDATE in id order.
func (r *PostgresRepository) LockByIDs(ctx context.Context, ids []string) ([]*models.MatchReport, error) {
	return r.list(ctx, `SELECT `+columns+from+` WHERE m.id = ANY($1) ORDER BY m.id FOR UPDATE OF m`, ids)
}

// MarkSeen sets seen and clears the plaintext identifier.
func (r *PostgresRepository) MarkSeen(ctx context.Context, ids []string) error {
	query := `UPDATE match_reports SET seen = TRUE, identifier = NULL WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to mark seen: %w", err)
	}
	return nil
}

// UpdateRecord rewrites the encrypted part of m after a rehash.
func (r *PostgresRepository) UpdateRecord(ctx context.Context, m *models.MatchReport) error {
	query := `UPDATE match_reports SET ciphertext = $2, nonce = $3, encode_prefix = $4, salt = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, m.ID, m.Ciphertext, m.Nonce, m.EncodePrefix, m.LegacySalt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res.RowsAffected())
}

// SetIdentifier stores identifier on an unseen row so a deferred sweep can
// pick it up.
func (r *PostgresRepository) SetIdentifier(ctx context.Context, id, identifier string) error {
	query := `UPDATE match_reports SET identifier = $2 WHERE id = $1 AND seen = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, identifier)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res.RowsAffected())
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.MatchReport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select match reports: %w", err)
	}
	defer rows.Close()

	var result []*models.MatchReport
	for rows.Next() {
		var m models.MatchReport
		if err := rows.Scan(&m.ID, &m.ReportID, &m.OwnerID, &m.Contact, &m.Ciphertext, &m.Nonce,
			&m.EncodePrefix, &m.LegacySalt, &m.Seen, &m.Identifier, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOne(n int64, err error) error {
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
