package reports

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/reportvault/internal/common"
	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

// arrayConverter lets []string arguments through as pgx does.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if ids, ok := v.([]string); ok {
		return ids, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(arrayConverter{}),
	)
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var reportColumns = []string{
	"id", "owner_id", "ciphertext", "nonce", "encode_prefix", "salt",
	"created_at", "edited_at", "match_found", "submitted_to_school",
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+reports .* RETURNING\s+created_at\s*$`).
		WithArgs("r1", "u1", []byte("ct"), []byte("n"), "pbkdf2_sha256$1$s", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	report := &models.Report{ID: "r1", OwnerID: "u1", EncryptedRecord: models.EncryptedRecord{
		Ciphertext: []byte("ct"), Nonce: []byte("n"), EncodePrefix: "pbkdf2_sha256$1$s",
	}}
	if err := repo.Create(context.Background(), report); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !report.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt not filled: %v", report.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+reports`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Report{ID: "r1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	salt := "legacy"
	now := time.Now()
	mock.ExpectQuery(`SELECT id, owner_id, .* FROM reports WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(reportColumns).
			AddRow("r1", "u1", []byte("ct"), []byte("n"), "", salt, now, nil, true, nil))

	got, err := repo.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.OwnerID != "u1" || got.EncodePrefix != "" || got.LegacySalt == nil || *got.LegacySalt != "legacy" {
		t.Fatalf("unexpected report: %+v", got)
	}
	if !got.MatchFound || got.EditedAt != nil || got.SubmittedToSchool != nil {
		t.Fatalf("unexpected flags: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM reports WHERE id = \$1`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestUpdateRecord(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	edited := time.Now()
	q := `UPDATE reports SET ciphertext = \$2, nonce = \$3, encode_prefix = \$4, salt = \$5, edited_at = \$6\s+WHERE id = \$1`
	mock.ExpectExec(q).
		WithArgs("r1", []byte("ct2"), []byte("n2"), "p2", nil, edited).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))

	report := &models.Report{ID: "r1", EditedAt: &edited, EncryptedRecord: models.EncryptedRecord{
		Ciphertext: []byte("ct2"), Nonce: []byte("n2"), EncodePrefix: "p2",
	}}
	if err := repo.UpdateRecord(context.Background(), report); err != nil {
		t.Fatalf("UpdateRecord error: %v", err)
	}
	if err := repo.UpdateRecord(context.Background(), report); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM reports WHERE id = \$1 AND owner_id = \$2`).
		WithArgs("r1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM reports`).
		WithArgs("r1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "r1", "u1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), "r1", "u2"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound for foreign owner, got %v", err)
	}
}

func TestLockByIDs(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM reports WHERE id = ANY\(\$1\) ORDER BY id FOR UPDATE`).
		WithArgs([]string{"a", "b"}).
		WillReturnRows(sqlmock.NewRows(reportColumns).
			AddRow("a", "u1", []byte("1"), []byte("1"), "p", nil, now, nil, false, nil).
			AddRow("b", "u2", []byte("2"), []byte("2"), "p", nil, now, now, false, now))

	got, err := repo.LockByIDs(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("LockByIDs error: %v", err)
	}
	if len(got) != 2 || got[1].SubmittedToSchool == nil {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestLockByIDs_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(reportColumns).
		AddRow("a", "u1", []byte("1"), []byte("1"), "p", nil, now, nil, false, nil).
		AddRow("b", "u2", []byte("2"), []byte("2"), "p", nil, now, nil, false, nil).
		RowError(1, errors.New("row-err"))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(rows)

	_, err := repo.LockByIDs(context.Background(), []string{"a", "b"})
	if err == nil || err.Error() != "row-err" {
		t.Fatalf("expected rows.Err 'row-err', got %v", err)
	}
}

func TestSetMatchFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE reports SET match_found = TRUE WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"a", "b"}).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.SetMatchFound(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("SetMatchFound error: %v", err)
	}
}

func TestMarkSubmitted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	q := `UPDATE reports SET submitted_to_school = \$2 WHERE id = \$1 AND submitted_to_school IS NULL`
	mock.ExpectExec(q).WithArgs("r1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("r1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkSubmitted(context.Background(), "r1", at); err != nil {
		t.Fatalf("MarkSubmitted error: %v", err)
	}
	if err := repo.MarkSubmitted(context.Background(), "r1", at); !errors.Is(err, common.ErrAlreadySubmitted) {
		t.Fatalf("want ErrAlreadySubmitted, got %v", err)
	}
}
