package handler

import (
	"context"

	"github.com/kiranshivaraju/videolens/internal/ai"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

// JobService defines the interface the analysis handlers depend on.
type JobService interface {
	Submit(ctx context.Context, sub ai.Submission) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
}
