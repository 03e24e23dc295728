package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/videolens/internal/ai/mock"
	"github.com/kiranshivaraju/videolens/internal/ingest"
	"github.com/kiranshivaraju/videolens/internal/store"
	"github.com/kiranshivaraju/videolens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeSource struct {
	kind          string
	materializeFn func(ctx context.Context, sink ingest.ProgressSink) (*ingest.Media, error)
}

func (f *fakeSource) Kind() string { return f.kind }
func (f *fakeSource) Materialize(ctx context.Context, sink ingest.ProgressSink) (*ingest.Media, error) {
	return f.materializeFn(ctx, sink)
}

type fakeIngestor struct {
	uploads []ingest.Upload
	urls    []string
	source  *fakeSource
}

func (f *fakeIngestor) FromUpload(u ingest.Upload) ingest.Source {
	f.uploads = append(f.uploads, u)
	f.source.kind = "upload"
	return f.source
}

func (f *fakeIngestor) FromURL(rawURL string) ingest.Source {
	f.urls = append(f.urls, rawURL)
	f.source.kind = "remote"
	return f.source
}

type mockCache struct {
	mu        sync.Mutex
	snapshots map[string]*models.Job
	writes    []models.JobStatus
}

func newMockCache() *mockCache {
	return &mockCache{snapshots: make(map[string]*models.Job)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)             { return nil, false, nil }
func (c *mockCache) Ping(_ context.Context) error                                      { return nil }
func (c *mockCache) Close() error                                                      { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetJobSnapshot(_ context.Context, job *models.Job, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[job.ID] = job.Clone()
	c.writes = append(c.writes, job.State.Status)
	return nil
}

func (c *mockCache) GetJobSnapshot(_ context.Context, id string) (*models.Job, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.snapshots[id]
	if !ok {
		return nil, false, nil
	}
	return job.Clone(), true, nil
}

func (c *mockCache) statuses() []models.JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.JobStatus(nil), c.writes...)
}

// meanCheckingStore asserts after every mutation that overall progress is the
// mean of step progress.
type meanCheckingStore struct {
	*store.MemoryStore
	t *testing.T
}

func (s *meanCheckingStore) check(job *models.Job) {
	if job == nil {
		return
	}
	var sum float64
	for _, st := range job.State.Steps {
		sum += st.Progress
	}
	assert.InDelta(s.t, sum/float64(len(job.State.Steps)), job.State.Progress, 1e-9)
}

func (s *meanCheckingStore) Update(id string, fn func(*models.Job)) (*models.Job, error) {
	job, err := s.MemoryStore.Update(id, fn)
	s.check(job)
	return job, err
}

func (s *meanCheckingStore) SetStep(id string, index int, status models.StepStatus, progress float64, message string) (*models.Job, error) {
	job, err := s.MemoryStore.SetStep(id, index, status, progress, message)
	s.check(job)
	return job, err
}

// --- helpers ---

func writeMedia(t *testing.T) *ingest.Media {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o600))
	return &ingest.Media{Path: path, MimeType: "video/mp4", Size: 5}
}

func mediaSource(media *ingest.Media) *fakeSource {
	return &fakeSource{materializeFn: func(context.Context, ingest.ProgressSink) (*ingest.Media, error) {
		return media, nil
	}}
}

type harness struct {
	svc      *AnalysisService
	store    *meanCheckingStore
	cache    *mockCache
	ingestor *fakeIngestor
}

func newHarness(t *testing.T, provider models.AIProvider, src *fakeSource) *harness {
	t.Helper()
	st := &meanCheckingStore{MemoryStore: store.NewMemoryStore(), t: t}
	ca := newMockCache()
	ing := &fakeIngestor{source: src}
	svc := NewAnalysisService(provider, ing, st, ca, Options{
		PollInterval:     time.Millisecond,
		PollAttempts:     30,
		InferenceTimeout: time.Second,
		MaxOutputTokens:  2000,
	})
	return &harness{svc: svc, store: st, cache: ca, ingestor: ing}
}

func assertStepStatuses(t *testing.T, job *models.Job, want ...models.StepStatus) {
	t.Helper()
	require.Len(t, job.State.Steps, len(want))
	for i, st := range job.State.Steps {
		assert.Equal(t, want[i], st.Status, "step %d (%s)", i, st.Name)
	}
}

// --- success ---

func TestSubmit_RemoteURL_Completes(t *testing.T) {
	media := writeMedia(t)
	h := newHarness(t, mock.NewMockProvider(), mediaSource(media))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://www.youtube.com/watch?v=abc"})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusComplete, job.State.Status)
	assert.Equal(t, 1.0, job.State.Progress)
	assert.Equal(t, "Analysis complete", job.State.Message)
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusComplete, models.StepStatusComplete)
	require.Len(t, job.Results, 1)
	assert.Equal(t, "Composed", job.Results[0].OverallEmotion)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=abc"}, h.ingestor.urls)

	_, statErr := os.Stat(media.Path)
	assert.True(t, os.IsNotExist(statErr), "media must be removed after success")

	stored, err := h.store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.State.Status, stored.State.Status)
}

func TestSubmit_SendsPromptAndConstraints(t *testing.T) {
	var gotPrompt string
	var gotConstraints models.ResponseConstraints
	var gotMime string
	p := mock.NewMockProvider()
	base := p.UploadFunc
	p.UploadFunc = func(ctx context.Context, path, mimeType string) (models.MediaHandle, error) {
		gotMime = mimeType
		return base(ctx, path, mimeType)
	}
	p.GenerateFunc = func(_ context.Context, _ models.MediaHandle, prompt string, c models.ResponseConstraints) (string, error) {
		gotPrompt, gotConstraints = prompt, c
		return mock.CannedResponse, nil
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	_, err := h.svc.Submit(context.Background(), Submission{URL: "s3://bucket/clip.mp4"})
	require.NoError(t, err)
	assert.Equal(t, AnalysisPrompt, gotPrompt)
	assert.Equal(t, models.ResponseConstraints{MimeType: "application/json", MaxOutputTokens: 2000}, gotConstraints)
	assert.Equal(t, "video/mp4", gotMime)
}

func TestSubmit_MirrorsStatusTransitions(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider(), mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.NoError(t, err)

	assert.Equal(t, []models.JobStatus{
		models.JobStatusUploading, models.JobStatusProcessing, models.JobStatusComplete,
	}, h.cache.statuses())
	mirrored, found, err := h.cache.GetJobSnapshot(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.JobStatusComplete, mirrored.State.Status)
}

func TestSubmit_JobIDsAreUniqueUUIDv7(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider(), &fakeSource{materializeFn: func(context.Context, ingest.ProgressSink) (*ingest.Media, error) {
		return nil, ingest.ErrIngestionFailed
	}})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		job, _ := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
		require.NotNil(t, job)
		assert.Len(t, job.ID, 36)
		assert.Equal(t, byte('7'), job.ID[14], "version nibble")
		assert.False(t, seen[job.ID], "duplicate id %s", job.ID)
		seen[job.ID] = true
	}
	assert.Equal(t, 50, h.store.Len())
}

// --- ingest progress ---

func TestSubmit_RemoteProgressUpdatesStepZero(t *testing.T) {
	media := writeMedia(t)
	var h *harness
	type observation struct{ step, overall float64 }
	var seen []observation

	src := &fakeSource{materializeFn: func(_ context.Context, sink ingest.ProgressSink) (*ingest.Media, error) {
		require.Equal(t, 1, h.store.Len())
		for _, p := range [][2]int64{{50, 100}, {100, 100}} {
			sink.Progress(p[0], p[1])
			job := latestJob(t, h)
			seen = append(seen, observation{job.State.Steps[models.StepIngest].Progress, job.State.Progress})
			assert.Equal(t, models.StepStatusPending, job.State.Steps[models.StepPreprocess].Status)
			assert.Equal(t, models.StepStatusPending, job.State.Steps[models.StepAnalyze].Status)
		}
		return media, nil
	}}
	h = newHarness(t, mock.NewMockProvider(), src)

	_, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.InDelta(t, 0.5, seen[0].step, 1e-9)
	assert.InDelta(t, 0.5/3, seen[0].overall, 1e-9)
	assert.InDelta(t, 1.0, seen[1].step, 1e-9)
	assert.InDelta(t, 1.0/3, seen[1].overall, 1e-9)
}

func TestSubmit_UnknownTotalIsIgnored(t *testing.T) {
	media := writeMedia(t)
	var h *harness
	src := &fakeSource{materializeFn: func(_ context.Context, sink ingest.ProgressSink) (*ingest.Media, error) {
		sink.Progress(1234, 0)
		job := latestJob(t, h)
		assert.Zero(t, job.State.Steps[models.StepIngest].Progress)
		assert.Equal(t, models.StepStatusInProgress, job.State.Steps[models.StepIngest].Status)
		return media, nil
	}}
	h = newHarness(t, mock.NewMockProvider(), src)

	_, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.NoError(t, err)
}

// latestJob returns the only job in the harness store.
func latestJob(t *testing.T, h *harness) *models.Job {
	t.Helper()
	var found *models.Job
	for _, id := range h.jobIDs() {
		job, err := h.store.Get(id)
		require.NoError(t, err)
		found = job
	}
	require.NotNil(t, found)
	return found
}

func (h *harness) jobIDs() []string {
	h.cache.mu.Lock()
	defer h.cache.mu.Unlock()
	ids := make([]string, 0, len(h.cache.snapshots))
	for id := range h.cache.snapshots {
		ids = append(ids, id)
	}
	return ids
}

// --- failures ---

func TestSubmit_NeitherInput_InvalidRequest(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider(), mediaSource(nil))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "   "})
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.NotNil(t, job)

	stored, gerr := h.store.Get(job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, models.JobStatusError, stored.State.Status)
	assertStepStatuses(t, stored, models.StepStatusError, models.StepStatusError, models.StepStatusError)
	assert.Nil(t, stored.Results)
	assert.Empty(t, h.ingestor.urls)
	assert.Empty(t, h.ingestor.uploads)
}

func TestSubmit_UploadTakesPrecedence(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider(), mediaSource(writeMedia(t)))

	_, err := h.svc.Submit(context.Background(), Submission{
		Upload: &ingest.Upload{Filename: "clip.mp4"},
		URL:    "https://example.com/ignored",
	})
	require.NoError(t, err)
	assert.Len(t, h.ingestor.uploads, 1)
	assert.Empty(t, h.ingestor.urls)
}

func TestSubmit_IngestFailure_MarksAllStepsError(t *testing.T) {
	var uploads atomic.Int32
	p := mock.NewMockProvider()
	p.UploadFunc = func(context.Context, string, string) (models.MediaHandle, error) {
		uploads.Add(1)
		return models.MediaHandle{}, nil
	}
	src := &fakeSource{materializeFn: func(_ context.Context, sink ingest.ProgressSink) (*ingest.Media, error) {
		sink.Progress(30, 100)
		return nil, errors.New("connection reset by peer")
	}}
	h := newHarness(t, p, src)

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrIngestionFailed)
	require.NotNil(t, job)

	assert.Equal(t, models.JobStatusError, job.State.Status)
	assertStepStatuses(t, job, models.StepStatusError, models.StepStatusError, models.StepStatusError)
	assert.Contains(t, job.State.Message, "connection reset by peer")
	assert.Nil(t, job.Results)
	assert.Zero(t, uploads.Load())

	stored, gerr := h.store.Get(job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, job.State, stored.State, "response and polling must agree")
}

func TestSubmit_PollExhausted_UpstreamTimeout(t *testing.T) {
	var calls atomic.Int32
	p := mock.NewPendingProvider()
	p.StatusFunc = func(context.Context, models.MediaHandle) (models.MediaState, error) {
		calls.Add(1)
		return models.MediaStatePending, nil
	}
	media := writeMedia(t)
	h := newHarness(t, p, mediaSource(media))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrUpstreamTimeout)

	assert.Equal(t, int32(30), calls.Load())
	assert.Equal(t, models.JobStatusError, job.State.Status)
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusError, models.StepStatusError)
	assert.InDelta(t, 1.0, job.State.Steps[models.StepPreprocess].Progress, 1e-9, "progress keeps the last poll value")
	assert.Nil(t, job.Results)

	_, statErr := os.Stat(media.Path)
	assert.True(t, os.IsNotExist(statErr), "media must be removed after failure")
}

func TestSubmit_PollAdvancesLinearly(t *testing.T) {
	var h *harness
	var progressAtCall []float64
	p := mock.NewMockProvider()
	p.StatusFunc = func(context.Context, models.MediaHandle) (models.MediaState, error) {
		job := latestJob(t, h)
		progressAtCall = append(progressAtCall, job.State.Steps[models.StepPreprocess].Progress)
		if len(progressAtCall) == 3 {
			return models.MediaStateActive, nil
		}
		return models.MediaStatePending, nil
	}
	h = newHarness(t, p, mediaSource(writeMedia(t)))

	_, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.NoError(t, err)
	require.Len(t, progressAtCall, 3)
	assert.InDelta(t, 0, progressAtCall[0], 1e-9)
	assert.InDelta(t, 1.0/30, progressAtCall[1], 1e-9)
	assert.InDelta(t, 2.0/30, progressAtCall[2], 1e-9)
}

func TestSubmit_PollReportsFailed(t *testing.T) {
	p := mock.NewMockProvider()
	p.StatusFunc = func(context.Context, models.MediaHandle) (models.MediaState, error) {
		return models.MediaStateFailed, nil
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrUpstreamProcessingFailed)
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusError, models.StepStatusError)
}

func TestSubmit_ProviderUploadFails(t *testing.T) {
	media := writeMedia(t)
	h := newHarness(t, mock.NewFailingProvider(models.ErrProviderUnavailable), mediaSource(media))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrUpstreamProcessingFailed)
	assert.ErrorContains(t, err, "ai provider unavailable")
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusError, models.StepStatusError)

	_, statErr := os.Stat(media.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmit_GenerateTimeout(t *testing.T) {
	h := newHarness(t, mock.NewTimeoutProvider(), mediaSource(writeMedia(t)))
	h.svc.opts.InferenceTimeout = 20 * time.Millisecond

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrUpstreamTimeout)
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusComplete, models.StepStatusError)
}

func TestSubmit_UnparsableResponse(t *testing.T) {
	p := mock.NewMockProvider()
	p.GenerateFunc = func(context.Context, models.MediaHandle, string, models.ResponseConstraints) (string, error) {
		return "I'm sorry, I can't analyze this video.", nil
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrUnparsableResponse)
	assert.Equal(t, models.JobStatusError, job.State.Status)
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusComplete, models.StepStatusError)
	assert.Nil(t, job.Results)
}

func TestSubmit_EmbeddedResponseIsExtracted(t *testing.T) {
	p := mock.NewMockProvider()
	p.GenerateFunc = func(context.Context, models.MediaHandle, string, models.ResponseConstraints) (string, error) {
		return "\u200bhere is the analysis: {\"facialExpression\": {\"emotion\": \"Calm\", \"confidence\": 0.9}} extra prose", nil
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.NoError(t, err)
	require.Len(t, job.Results, 1)
	assert.Equal(t, "Calm", job.Results[0].FacialExpression.Emotion)
	assert.Equal(t, "Unknown", job.Results[0].OverallEmotion)
}

// --- async ---

func TestSubmit_AsyncUpload_ReturnsBeforeAnalysis(t *testing.T) {
	release := make(chan struct{})
	p := mock.NewMockProvider()
	p.StatusFunc = func(ctx context.Context, _ models.MediaHandle) (models.MediaState, error) {
		select {
		case <-release:
			return models.MediaStateActive, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{Upload: &ingest.Upload{Filename: "clip.mp4"}, Async: true})
	require.NoError(t, err)
	assert.False(t, job.IsDone())
	assert.Equal(t, models.StepStatusComplete, job.State.Steps[models.StepIngest].Status)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Wait(ctx))

	done, err := h.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, done.State.Status)
	require.Len(t, done.Results, 1)
}

func TestSubmit_AsyncUploadIngestFailureIsImmediate(t *testing.T) {
	src := &fakeSource{materializeFn: func(context.Context, ingest.ProgressSink) (*ingest.Media, error) {
		return nil, ingest.ErrIngestionFailed
	}}
	h := newHarness(t, mock.NewMockProvider(), src)

	job, err := h.svc.Submit(context.Background(), Submission{Upload: &ingest.Upload{Filename: "x.mp4"}, Async: true})
	require.ErrorIs(t, err, ErrIngestionFailed)
	assert.Equal(t, models.JobStatusError, job.State.Status)
}

func TestSubmit_AsyncRemote_RunsDetached(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider(), mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v", Async: true})
	require.NoError(t, err)
	require.NotNil(t, job)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Wait(ctx))

	done, err := h.store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, done.State.Status)
}

func TestSubmit_AsyncPanicMarksJobError(t *testing.T) {
	p := mock.NewMockProvider()
	p.GenerateFunc = func(context.Context, models.MediaHandle, string, models.ResponseConstraints) (string, error) {
		panic("provider exploded")
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v", Async: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Wait(ctx))

	done, err := h.store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, done.State.Status)
	assert.Contains(t, done.State.Message, "provider exploded")
	assertStepStatuses(t, done, models.StepStatusComplete, models.StepStatusComplete, models.StepStatusError)
}

func TestSubmit_SyncPanicMarksJobError(t *testing.T) {
	p := mock.NewMockProvider()
	p.GenerateFunc = func(context.Context, models.MediaHandle, string, models.ResponseConstraints) (string, error) {
		panic("provider exploded")
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))

	job, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v"})
	require.ErrorIs(t, err, ErrInternal)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusError, job.State.Status)
	assert.Contains(t, job.State.Message, "provider exploded")
	assertStepStatuses(t, job, models.StepStatusComplete, models.StepStatusComplete, models.StepStatusError)

	stored, err := h.store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, stored.State.Status)
	assert.Nil(t, stored.Results)
}

// --- Get ---

func TestGet_FallsBackToMirror(t *testing.T) {
	h := newHarness(t, mock.NewMockProvider(), mediaSource(nil))
	remote := models.NewJob("elsewhere", time.Now().UTC())
	require.NoError(t, h.cache.SetJobSnapshot(context.Background(), remote, time.Minute))

	job, err := h.svc.Get(context.Background(), "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", job.ID)

	_, err = h.svc.Get(context.Background(), "nowhere")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWait_HonoursContext(t *testing.T) {
	block := make(chan struct{})
	p := mock.NewMockProvider()
	p.StatusFunc = func(context.Context, models.MediaHandle) (models.MediaState, error) {
		<-block
		return models.MediaStateActive, nil
	}
	h := newHarness(t, p, mediaSource(writeMedia(t)))
	_, err := h.svc.Submit(context.Background(), Submission{URL: "https://example.com/v", Async: true})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.svc.Wait(ctx), context.DeadlineExceeded)

	close(block)
	require.NoError(t, h.svc.Wait(context.Background()))
}

func TestClassifyProviderError(t *testing.T) {
	assert.ErrorIs(t, classifyProviderError("op", models.ErrInferenceTimeout), ErrUpstreamTimeout)
	assert.ErrorIs(t, classifyProviderError("op", context.DeadlineExceeded), ErrUpstreamTimeout)
	assert.ErrorIs(t, classifyProviderError("op", models.ErrInvalidResponse), ErrUpstreamProcessingFailed)
}
