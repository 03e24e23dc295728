package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/videolens/internal/analysis"
	"github.com/kiranshivaraju/videolens/internal/cache"
	"github.com/kiranshivaraju/videolens/internal/ingest"
	"github.com/kiranshivaraju/videolens/internal/store"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

// Ingestor builds the media source for a submission.
type Ingestor interface {
	FromUpload(u ingest.Upload) ingest.Source
	FromURL(rawURL string) ingest.Source
}

// Submission is one analysis request. Upload takes precedence over URL.
type Submission struct {
	Upload *ingest.Upload
	URL    string
	// Async returns once the job is created (and any upload is on disk),
	// leaving the remaining phases to run detached.
	Async bool
}

// Options tunes the readiness poll and the generation request.
type Options struct {
	PollInterval     time.Duration
	PollAttempts     int
	InferenceTimeout time.Duration
	MaxOutputTokens  int
	MirrorTTL        time.Duration
}

// AnalysisService drives a job from submission to a terminal state.
type AnalysisService struct {
	provider models.AIProvider
	ingestor Ingestor
	store    store.Store
	cache    cache.Cache
	opts     Options
	newID    func() (string, error)
	running  sync.WaitGroup
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(provider models.AIProvider, ing Ingestor, st store.Store, ca cache.Cache, opts Options) *AnalysisService {
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 30
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 2000
	}
	if opts.MirrorTTL <= 0 {
		opts.MirrorTTL = 30 * time.Minute
	}
	return &AnalysisService{
		provider: provider,
		ingestor: ing,
		store:    st,
		cache:    ca,
		opts:     opts,
		newID:    newJobID,
	}
}

// newJobID returns a UUIDv7: a millisecond timestamp followed by random bits.
func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ProviderName reports the configured AI provider.
func (s *AnalysisService) ProviderName() string { return s.provider.Name() }

// Get returns the current job snapshot, falling back to the status mirror
// for ids this process does not know.
func (s *AnalysisService) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.store.Get(id)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	mirrored, found, cerr := s.cache.GetJobSnapshot(ctx, id)
	if cerr != nil {
		slog.Warn("status mirror read failed", "job_id", id, "error", cerr)
		return nil, err
	}
	if !found {
		return nil, err
	}
	return mirrored, nil
}

// Submit creates a job and runs it. In synchronous mode the returned job is
// terminal; on failure the error wraps the failure class and the job is the
// recorded error state. In async mode the job is returned while still running.
func (s *AnalysisService) Submit(ctx context.Context, sub Submission) (*models.Job, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("%w: generating job id: %v", ErrInternal, err)
	}
	job, err := s.store.Create(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.mirror(ctx, job)

	var src ingest.Source
	switch {
	case sub.Upload != nil:
		src = s.ingestor.FromUpload(*sub.Upload)
	case strings.TrimSpace(sub.URL) != "":
		src = s.ingestor.FromURL(sub.URL)
	default:
		return s.fail(ctx, id, models.StepIngest,
			fmt.Errorf("%w: either a video file or a video URL must be provided", ErrInvalidRequest))
	}
	slog.Info("analysis job created", "job_id", id, "source", src.Kind(), "async", sub.Async)

	if !sub.Async {
		// A job runs to a terminal state even if the caller goes away.
		return s.guard(context.WithoutCancel(ctx), id, func(ctx context.Context) (*models.Job, error) {
			return s.run(ctx, id, src)
		})
	}

	// Request bodies do not outlive the request, so uploads land on disk first.
	if sub.Upload != nil {
		var media *ingest.Media
		job, err := s.guard(ctx, id, func(ctx context.Context) (*models.Job, error) {
			var err error
			if media, err = s.ingest(ctx, id, src); err != nil {
				return s.fail(ctx, id, models.StepIngest, err)
			}
			return nil, nil
		})
		if err != nil {
			return job, err
		}
		s.detach(id, func(ctx context.Context) (*models.Job, error) { return s.analyze(ctx, id, media) })
	} else {
		s.detach(id, func(ctx context.Context) (*models.Job, error) { return s.run(ctx, id, src) })
	}
	return s.store.Get(id)
}

// Wait blocks until every detached job has finished or ctx is done.
func (s *AnalysisService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detach runs fn on a context that outlives the request.
func (s *AnalysisService) detach(id string, fn func(ctx context.Context) (*models.Job, error)) {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		_, _ = s.guard(context.Background(), id, fn)
	}()
}

// guard runs fn and records a panic as an InternalError failure at the step
// that was running, so the job always ends terminal.
func (s *AnalysisService) guard(ctx context.Context, id string, fn func(ctx context.Context) (*models.Job, error)) (job *models.Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analysis run", "error", r, "job_id", id)
			job, err = s.fail(ctx, id, s.activeStep(id), fmt.Errorf("%w: panic: %v", ErrInternal, r))
		}
	}()
	return fn(ctx)
}

func (s *AnalysisService) run(ctx context.Context, id string, src ingest.Source) (*models.Job, error) {
	media, err := s.ingest(ctx, id, src)
	if err != nil {
		return s.fail(ctx, id, models.StepIngest, err)
	}
	return s.analyze(ctx, id, media)
}

// ingest materializes the media, mapping byte progress onto step 0.
func (s *AnalysisService) ingest(ctx context.Context, id string, src ingest.Source) (*ingest.Media, error) {
	s.setStep(id, models.StepIngest, models.StepStatusInProgress, 0, "Receiving video")

	sink := ingest.ProgressFunc(func(done, total int64) {
		if total <= 0 {
			return
		}
		frac := float64(done) / float64(total)
		s.setStep(id, models.StepIngest, models.StepStatusInProgress, frac,
			fmt.Sprintf("Receiving video: %d%%", int(frac*100)))
	})

	media, err := src.Materialize(ctx, sink)
	if err != nil {
		if !errors.Is(err, ingest.ErrIngestionFailed) {
			err = fmt.Errorf("%w: %v", ingest.ErrIngestionFailed, err)
		}
		return nil, err
	}
	slog.Info("media ingested", "job_id", id, "bytes", media.Size, "mime_type", media.MimeType)
	s.setStep(id, models.StepIngest, models.StepStatusComplete, 1, "Video received")
	return media, nil
}

// analyze hands media to the provider, waits for it, then generates and
// normalizes the result. media is removed on every path.
func (s *AnalysisService) analyze(ctx context.Context, id string, media *ingest.Media) (*models.Job, error) {
	defer func() {
		if err := media.Cleanup(); err != nil {
			slog.Warn("removing media failed", "job_id", id, "path", media.Path, "error", err)
		}
	}()

	s.transition(ctx, id, models.StepPreprocess, "Processing video")
	handle, err := s.provider.Upload(ctx, media.Path, media.MimeType)
	if err != nil {
		return s.fail(ctx, id, models.StepPreprocess, classifyProviderError("submitting media", err))
	}

	if err := s.awaitActive(ctx, id, handle); err != nil {
		return s.fail(ctx, id, models.StepPreprocess, err)
	}
	s.setStep(id, models.StepPreprocess, models.StepStatusComplete, 1, "Video processed")

	s.setStep(id, models.StepAnalyze, models.StepStatusInProgress, 0, "Analyzing video content")
	genCtx := ctx
	if s.opts.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.opts.InferenceTimeout)
		defer cancel()
	}
	raw, err := s.provider.Generate(genCtx, handle, AnalysisPrompt, responseConstraints(s.opts.MaxOutputTokens))
	if err != nil {
		return s.fail(ctx, id, models.StepAnalyze, classifyProviderError("requesting analysis", err))
	}
	slog.Debug("raw analysis response", "job_id", id, "response", raw)

	result, err := analysis.Normalize(raw)
	if err != nil {
		return s.fail(ctx, id, models.StepAnalyze, err)
	}

	job, err := s.store.Update(id, func(j *models.Job) {
		st := &j.State.Steps[models.StepAnalyze]
		st.Status = models.StepStatusComplete
		st.Progress = 1
		st.Message = "Analysis complete"
		j.State.Status = models.JobStatusComplete
		j.State.Message = "Analysis complete"
		j.Results = []models.AnalysisResult{result}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	slog.Info("analysis complete", "job_id", id, "overall_emotion", result.OverallEmotion)
	s.mirror(ctx, job)
	return job, nil
}

// awaitActive polls the provider at a fixed interval for a bounded number of
// attempts, advancing step 1 linearly with each attempt.
func (s *AnalysisService) awaitActive(ctx context.Context, id string, h models.MediaHandle) error {
	attempts := s.opts.PollAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		state, err := s.provider.Status(ctx, h)
		if err != nil {
			return classifyProviderError("checking media status", err)
		}
		switch state {
		case models.MediaStateActive:
			return nil
		case models.MediaStateFailed:
			return fmt.Errorf("%w: provider reported media %s as failed", ErrUpstreamProcessingFailed, h.Name)
		}

		slog.Debug("media still processing", "job_id", id, "attempt", attempt, "max_attempts", attempts)
		s.setStep(id, models.StepPreprocess, models.StepStatusInProgress, float64(attempt)/float64(attempts),
			fmt.Sprintf("Waiting for video processing (%d/%d)", attempt, attempts))

		if attempt < attempts {
			if err := sleepCtx(ctx, s.opts.PollInterval); err != nil {
				return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
			}
		}
	}
	return fmt.Errorf("%w: media not ready after %d attempts", ErrUpstreamTimeout, attempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// transition moves the job into the processing status and starts step.
func (s *AnalysisService) transition(ctx context.Context, id string, step int, message string) {
	job, err := s.store.Update(id, func(j *models.Job) {
		st := &j.State.Steps[step]
		st.Status = models.StepStatusInProgress
		st.Message = message
		j.State.Status = models.JobStatusProcessing
		j.State.Message = message
	})
	if err != nil {
		slog.Error("updating job failed", "job_id", id, "error", err)
		return
	}
	s.mirror(ctx, job)
}

// fail records err as the job's terminal error state. The failing step and
// every later step not yet complete are marked error.
func (s *AnalysisService) fail(ctx context.Context, id string, step int, err error) (*models.Job, error) {
	msg := err.Error()
	slog.Error("analysis failed", "job_id", id, "step", step, "error", msg)

	job, uerr := s.store.Update(id, func(j *models.Job) {
		for i := step; i < len(j.State.Steps); i++ {
			st := &j.State.Steps[i]
			if i == step || st.Status == models.StepStatusPending || st.Status == models.StepStatusInProgress {
				st.Status = models.StepStatusError
				st.Message = msg
			}
		}
		j.State.Status = models.JobStatusError
		j.State.Message = msg
		j.Results = nil
	})
	if uerr != nil {
		slog.Error("recording job failure failed", "job_id", id, "error", uerr)
		return nil, err
	}
	s.mirror(ctx, job)
	return job, err
}

func (s *AnalysisService) setStep(id string, step int, status models.StepStatus, progress float64, message string) {
	if _, err := s.store.SetStep(id, step, status, progress, message); err != nil {
		slog.Error("updating step failed", "job_id", id, "step", step, "error", err)
	}
}

// activeStep returns the first step that is not complete.
func (s *AnalysisService) activeStep(id string) int {
	job, err := s.store.Get(id)
	if err != nil {
		return models.StepIngest
	}
	for i, st := range job.State.Steps {
		if st.Status != models.StepStatusComplete {
			return i
		}
	}
	return models.StepAnalyze
}

// mirror copies the snapshot to the cache. Failures are logged only.
func (s *AnalysisService) mirror(ctx context.Context, job *models.Job) {
	if err := s.cache.SetJobSnapshot(context.WithoutCancel(ctx), job, s.opts.MirrorTTL); err != nil {
		slog.Warn("status mirror write failed", "job_id", job.ID, "error", err)
	}
}

// classifyProviderError maps provider failures outside the readiness poll:
// timeouts become ErrUpstreamTimeout, everything else ErrUpstreamProcessingFailed.
func classifyProviderError(op string, err error) error {
	if errors.Is(err, models.ErrInferenceTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrUpstreamTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamProcessingFailed, op, err)
}
