package sentreports

import (
	"context"

	"github.com/dmitrijs2005/reportvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.SentReport) error
	SetStorageKey(ctx context.Context, id int64, key string) error
}
