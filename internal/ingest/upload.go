package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Upload is a video streamed by the client.
type Upload struct {
	Filename string
	// Size is the caller-declared length; <= 0 when unknown.
	Size int64
	Body io.Reader
}

type uploadSource struct {
	ing    *Ingestor
	upload Upload
}

func (s *uploadSource) Kind() string { return "upload" }

// Materialize writes the upload in chunks. Progress is incremental when the
// declared size is known, otherwise a single jump on completion.
func (s *uploadSource) Materialize(ctx context.Context, sink ProgressSink) (*Media, error) {
	if s.upload.Body == nil {
		return nil, fmt.Errorf("%w: upload has no body", ErrIngestionFailed)
	}
	limit := s.ing.maxUploadBytes
	if limit > 0 && s.upload.Size > limit {
		return nil, fmt.Errorf("%w: upload of %d bytes exceeds limit of %d", ErrIngestionFailed, s.upload.Size, limit)
	}

	dst, err := s.ing.tempPath("upload", filepath.Ext(s.upload.Filename))
	if err != nil {
		return nil, err
	}

	body := s.upload.Body
	if limit > 0 {
		body = io.LimitReader(body, limit+1)
	}
	n, err := copyToFile(ctx, dst, body, s.upload.Size, sink)
	if err != nil {
		return nil, err
	}
	if limit > 0 && n > limit {
		_ = os.Remove(dst)
		return nil, fmt.Errorf("%w: upload exceeds limit of %d bytes", ErrIngestionFailed, limit)
	}
	if sink != nil {
		sink.Progress(n, n)
	}
	return finalize(dst)
}
