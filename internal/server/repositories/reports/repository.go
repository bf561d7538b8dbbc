package reports

import (
	"context"
	"time"

	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, report *models.Report) error
	Get(ctx context.Context, id string) (*models.Report, error)
	UpdateRecord(ctx context.Context, report *models.Report) error
	Delete(ctx context.Context, id, ownerID string) error
	LockByIDs(ctx context.Context, ids []string) ([]*models.Report, error)
	SetMatchFound(ctx context.Context, ids []string) error
	MarkSubmitted(ctx context.Context, id string, at time.Time) error
}
