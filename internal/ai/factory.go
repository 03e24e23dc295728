package ai

import (
	"fmt"

	"github.com/kiranshivaraju/videolens/internal/ai/gemini"
	"github.com/kiranshivaraju/videolens/internal/ai/mock"
	"github.com/kiranshivaraju/videolens/internal/config"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, mock", cfg.Provider)
	}
}
