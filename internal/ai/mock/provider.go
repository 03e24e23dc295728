package mock

import (
	"context"
	"path/filepath"

	"github.com/kiranshivaraju/videolens/pkg/models"
)

// CannedResponse is the analysis text returned by NewMockProvider.
const CannedResponse = `{
  "facialExpression": {"emotion": "Neutral", "confidence": 0.82, "description": "Relaxed brow with steady eye contact"},
  "bodyPosture": {"emotion": "Upright", "confidence": 0.76, "description": "Shoulders square to the camera"},
  "handGestures": {"emotion": "Open palms", "confidence": 0.64, "description": "Occasional open-palm emphasis"},
  "overallEmotion": "Composed",
  "confidenceScore": 0.78,
  "analysis": "Mock analysis: the speaker appears calm and engaged throughout the segment.",
  "keyStrengths": [{"title": "Steady delivery", "description": "Consistent pace and tone", "confidence": 0.7}],
  "areasOfNote": [],
  "timeline": [{"timestamp": 0, "description": "Introduction sets a calm baseline"}]
}`

// MockProvider satisfies models.AIProvider for testing and local development.
type MockProvider struct {
	Name_        string
	UploadFunc   func(ctx context.Context, path, mimeType string) (models.MediaHandle, error)
	StatusFunc   func(ctx context.Context, h models.MediaHandle) (models.MediaState, error)
	GenerateFunc func(ctx context.Context, h models.MediaHandle, prompt string, c models.ResponseConstraints) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Upload(ctx context.Context, path, mimeType string) (models.MediaHandle, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, path, mimeType)
	}
	return models.MediaHandle{}, nil
}

func (m *MockProvider) Status(ctx context.Context, h models.MediaHandle) (models.MediaState, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, h)
	}
	return models.MediaStateActive, nil
}

func (m *MockProvider) Generate(ctx context.Context, h models.MediaHandle, prompt string, c models.ResponseConstraints) (string, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, h, prompt, c)
	}
	return "", nil
}

// NewMockProvider returns a MockProvider whose media is immediately active and
// whose analysis is CannedResponse.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		UploadFunc: func(_ context.Context, path, mimeType string) (models.MediaHandle, error) {
			name := "files/mock-" + filepath.Base(path)
			return models.MediaHandle{Name: name, URI: "mock://" + name, MimeType: mimeType}, nil
		},
		StatusFunc: func(_ context.Context, _ models.MediaHandle) (models.MediaState, error) {
			return models.MediaStateActive, nil
		},
		GenerateFunc: func(_ context.Context, _ models.MediaHandle, _ string, _ models.ResponseConstraints) (string, error) {
			return CannedResponse, nil
		},
	}
}

// NewPendingProvider returns a MockProvider whose media never leaves the pending state.
func NewPendingProvider() *MockProvider {
	p := NewMockProvider()
	p.Name_ = "mock-pending"
	p.StatusFunc = func(_ context.Context, _ models.MediaHandle) (models.MediaState, error) {
		return models.MediaStatePending, nil
	}
	return p
}

// NewFailingProvider returns a MockProvider whose upload always returns err.
func NewFailingProvider(err error) *MockProvider {
	p := NewMockProvider()
	p.Name_ = "mock-failing"
	p.UploadFunc = func(_ context.Context, _, _ string) (models.MediaHandle, error) {
		return models.MediaHandle{}, err
	}
	return p
}

// NewTimeoutProvider returns a MockProvider whose Generate blocks until ctx is done.
func NewTimeoutProvider() *MockProvider {
	p := NewMockProvider()
	p.Name_ = "mock-timeout"
	p.GenerateFunc = func(ctx context.Context, _ models.MediaHandle, _ string, _ models.ResponseConstraints) (string, error) {
		<-ctx.Done()
		return "", models.ErrInferenceTimeout
	}
	return p
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
