package matchreports

import (
	"context"

	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.MatchReport) error
	ListAll(ctx context.Context) ([]*models.MatchReport, error)
	ListPending(ctx context.Context) ([]*models.MatchReport, error)
	LockByIDs(ctx context.Context, ids []string) ([]*models.MatchReport, error)
	MarkSeen(ctx context.Context, ids []string) error
	UpdateRecord(ctx context.Context, m *models.MatchReport) error
	SetIdentifier(ctx context.Context, id, identifier string) error
}
