// Package models contains shared data models used across the VideoLens codebase.
package models

import (
	"context"
	"errors"
)

// Provider failure classes. Provider implementations wrap these so callers
// can classify failures without importing a concrete provider.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// MediaState is the processing state an AI provider reports for an uploaded media file.
type MediaState string

const (
	MediaStateActive  MediaState = "active"
	MediaStatePending MediaState = "pending"
	MediaStateFailed  MediaState = "failed"
)

// MediaHandle references a media file registered with an AI provider.
type MediaHandle struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
}

// ResponseConstraints bounds the shape and size of a generated response.
type ResponseConstraints struct {
	MimeType        string
	MaxOutputTokens int
}

// AIProvider is the core interface that all multimodal AI integrations must implement.
// Callers depend on this interface, never on a concrete provider.
type AIProvider interface {
	// Upload registers a local media file with the provider. It does not wait
	// for the provider to finish processing the file.
	Upload(ctx context.Context, path, mimeType string) (MediaHandle, error)
	// Status reports whether an uploaded file is ready to be referenced in a prompt.
	Status(ctx context.Context, h MediaHandle) (MediaState, error)
	// Generate runs the prompt against the media and returns the raw model text.
	Generate(ctx context.Context, h MediaHandle, prompt string, c ResponseConstraints) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "mock").
	Name() string
}
