package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS match_reports (id TEXT PRIMARY KEY, seen INTEGER NOT NULL DEFAULT 0)`)
	require.NoError(t, err)
	return db
}

func countMatches(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM match_reports`).Scan(&n))
	return n
}

func insertMatch(id string) TxFunc {
	return func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO match_reports(id) VALUES (?)`, id)
		return err
	}
}

func noBackoff(t *testing.T) {
	t.Helper()
	orig := retryBackoff
	retryBackoff = func(retries uint64) retry.Backoff {
		return retry.WithMaxRetries(retries, retry.BackoffFunc(func() (time.Duration, bool) { return 0, false }))
	}
	t.Cleanup(func() { retryBackoff = orig })
}

func TestWithTx_Commit(t *testing.T) {
	db := openDB(t)

	require.NoError(t, WithTx(context.Background(), db, nil, insertMatch("m1")))
	assert.Equal(t, 1, countMatches(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertMatch("m1")(ctx, tx))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countMatches(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		assert.Equal(t, 0, countMatches(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertMatch("m1")(ctx, tx))
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, insertMatch("m1"))
	require.Error(t, err)
}

func TestWithTxRetry_RetriesDeadlock(t *testing.T) {
	noBackoff(t)
	db := openDB(t)

	calls := 0
	err := WithTxRetry(context.Background(), db, nil, 3, func(ctx context.Context, tx DBTX) error {
		calls++
		if err := insertMatch("m1")(ctx, tx); err != nil {
			return err
		}
		if calls == 1 {
			return &pgconn.PgError{Code: codeDeadlockDetected}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, countMatches(t, db), "first attempt must have rolled back")
}

func TestWithTxRetry_GivesUp(t *testing.T) {
	noBackoff(t)
	db := openDB(t)

	calls := 0
	err := WithTxRetry(context.Background(), db, nil, 3, func(ctx context.Context, tx DBTX) error {
		calls++
		return fmt.Errorf("lock rows: %w", &pgconn.PgError{Code: codeSerializationFailure})
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestWithTxRetry_OtherErrorsNotRetried(t *testing.T) {
	noBackoff(t)
	db := openDB(t)

	calls := 0
	err := WithTxRetry(context.Background(), db, nil, 5, func(ctx context.Context, tx DBTX) error {
		calls++
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithTxRetry_StopsOnCancel(t *testing.T) {
	db := openDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := WithTxRetry(ctx, db, nil, 3, func(ctx context.Context, tx DBTX) error {
		calls++
		cancel()
		return &pgconn.PgError{Code: codeDeadlockDetected}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock wrapped", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
