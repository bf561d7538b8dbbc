package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/reportvault/internal/dbx"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/matchreports"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/reports"
	"github.com/dmitrijs2005/reportvault/internal/server/repositories/sentreports"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Reports(db dbx.DBTX) reports.Repository
	MatchReports(db dbx.DBTX) matchreports.Repository
	SentReports(db dbx.DBTX) sentreports.Repository
}
