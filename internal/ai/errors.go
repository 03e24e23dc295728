package ai

import (
	"errors"

	"github.com/kiranshivaraju/videolens/internal/analysis"
	"github.com/kiranshivaraju/videolens/internal/ingest"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrUpstreamProcessingFailed = errors.New("ai service failed to process media")
	ErrUpstreamTimeout          = errors.New("ai service timed out")
	ErrInternal                 = errors.New("internal error")

	ErrIngestionFailed    = ingest.ErrIngestionFailed
	ErrUnparsableResponse = analysis.ErrUnparsableResponse

	ErrProviderUnavailable = models.ErrProviderUnavailable
	ErrInferenceTimeout    = models.ErrInferenceTimeout
	ErrInvalidResponse     = models.ErrInvalidResponse
)
