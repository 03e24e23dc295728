package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
)

// Fetcher downloads a remote video to a local path, reporting cumulative
// bytes to sink as it goes.
type Fetcher interface {
	Name() string
	Schemes() []string
	Fetch(ctx context.Context, src *url.URL, dst string, sink ProgressSink) error
}

type remoteSource struct {
	ing    *Ingestor
	rawURL string
}

func (s *remoteSource) Kind() string { return "remote" }

func (s *remoteSource) Materialize(ctx context.Context, sink ProgressSink) (*Media, error) {
	u, err := url.Parse(s.rawURL)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%w: invalid video URL %q", ErrIngestionFailed, s.rawURL)
	}
	f, ok := s.ing.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported URL scheme %q", ErrIngestionFailed, u.Scheme)
	}

	ext := path.Ext(u.Path)
	if f.Name() == "yt-dlp" {
		ext = ".mp4"
	}
	dst, err := s.ing.tempPath("remote", ext)
	if err != nil {
		return nil, err
	}

	if err := f.Fetch(ctx, u, dst, sink); err != nil {
		removeArtifacts(dst)
		if errors.Is(err, ErrIngestionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrIngestionFailed, f.Name(), err)
	}
	return finalize(dst)
}

// removeArtifacts deletes the destination and any partial download beside it.
func removeArtifacts(dst string) {
	for _, p := range []string{dst, dst + ".part", dst + ".ytdl"} {
		_ = os.Remove(p)
	}
}
