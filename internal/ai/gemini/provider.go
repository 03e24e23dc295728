// Package gemini implements models.AIProvider against the Gemini REST API:
// the Files API for media upload and readiness, generateContent for analysis.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/videolens/internal/config"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

const (
	apiKeyHeader    = "x-goog-api-key"
	metadataTimeout = 30 * time.Second
	errorBodyLimit  = 2 << 10
)

// Provider implements models.AIProvider using Gemini.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewProvider creates a Gemini provider. The HTTP client has no overall
// timeout because uploads can be large; callers bound each call with ctx.
func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{},
	}
}

func (p *Provider) Name() string { return "gemini" }

// Upload registers path with the Files API using the two-request resumable protocol.
func (p *Provider) Upload(ctx context.Context, path, mimeType string) (models.MediaHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.MediaHandle{}, fmt.Errorf("opening media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.MediaHandle{}, fmt.Errorf("stat media: %w", err)
	}

	uploadURL, err := p.startUpload(ctx, filepath.Base(path), mimeType, info.Size())
	if err != nil {
		return models.MediaHandle{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return models.MediaHandle{}, fmt.Errorf("building request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	var out uploadResponse
	if err := p.do(req, &out); err != nil {
		return models.MediaHandle{}, err
	}
	if out.File.Name == "" {
		return models.MediaHandle{}, fmt.Errorf("%w: upload response has no file name", models.ErrInvalidResponse)
	}
	return models.MediaHandle{
		Name:     out.File.Name,
		URI:      out.File.URI,
		MimeType: firstNonEmpty(out.File.MimeType, mimeType),
	}, nil
}

func (p *Provider) startUpload(ctx context.Context, displayName, mimeType string, size int64) (string, error) {
	body, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": displayName}})
	if err != nil {
		return "", fmt.Errorf("encoding upload metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload/v1beta/files", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("%w: missing upload URL", models.ErrInvalidResponse)
	}
	return uploadURL, nil
}

// Status maps the Files API state to a MediaState. Unknown states count as pending.
func (p *Provider) Status(ctx context.Context, h models.MediaHandle) (models.MediaState, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1beta/"+h.Name, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	var f fileResource
	if err := p.do(req, &f); err != nil {
		return "", err
	}
	switch f.State {
	case "ACTIVE":
		return models.MediaStateActive, nil
	case "FAILED":
		return models.MediaStateFailed, nil
	default:
		return models.MediaStatePending, nil
	}
}

// Generate sends the media reference plus prompt and returns the concatenated text parts.
func (p *Provider) Generate(ctx context.Context, h models.MediaHandle, prompt string, c models.ResponseConstraints) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{FileData: &fileData{MimeType: h.MimeType, FileURI: h.URI}},
				{Text: prompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: c.MimeType,
			MaxOutputTokens:  c.MaxOutputTokens,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out generateResponse
	if err := p.do(req, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 {
		reason := "no candidates"
		if out.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + out.PromptFeedback.BlockReason
		}
		return "", fmt.Errorf("%w: %s", models.ErrInvalidResponse, reason)
	}

	var sb strings.Builder
	for _, pt := range out.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty candidate (finish reason %s)", models.ErrInvalidResponse, out.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

func (p *Provider) setHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set(apiKeyHeader, p.apiKey)
	}
}

// do sends req and decodes a 200 JSON body into out.
func (p *Provider) do(req *http.Request, out any) error {
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", models.ErrInvalidResponse, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	var apiErr errorResponse
	if json.Unmarshal(msg, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%w: status %d: %s", models.ErrInvalidResponse, resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("%w: status %d", models.ErrInvalidResponse, resp.StatusCode)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
		}
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ models.AIProvider = (*Provider)(nil)
