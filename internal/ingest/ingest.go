// Package ingest materializes submitted videos as local files, reporting
// byte-level progress while it does so.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrIngestionFailed wraps every download, upload or filesystem failure.
var ErrIngestionFailed = errors.New("ingestion failed")

const defaultMimeType = "video/mp4"

// ProgressSink receives cumulative byte counts. total is <= 0 when unknown.
type ProgressSink interface {
	Progress(done, total int64)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(done, total int64)

func (f ProgressFunc) Progress(done, total int64) { f(done, total) }

// Media is a materialized local video file. Callers own it and must call Cleanup.
type Media struct {
	Path     string
	MimeType string
	Size     int64
}

// Cleanup removes the local file. Removing an already-missing file is not an error.
func (m *Media) Cleanup() error {
	if m == nil || m.Path == "" {
		return nil
	}
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Source materializes one submitted video.
type Source interface {
	// Kind names the variant for logs ("upload", "remote").
	Kind() string
	Materialize(ctx context.Context, sink ProgressSink) (*Media, error)
}

// Ingestor builds Sources that write into a scoped temporary directory.
type Ingestor struct {
	dir            string
	maxUploadBytes int64
	fetchers       map[string]Fetcher
}

// NewIngestor creates an Ingestor. Fetchers are indexed by the URL schemes they serve.
func NewIngestor(dir string, maxUploadBytes int64, fetchers ...Fetcher) *Ingestor {
	if dir == "" {
		dir = os.TempDir()
	}
	ing := &Ingestor{
		dir:            dir,
		maxUploadBytes: maxUploadBytes,
		fetchers:       make(map[string]Fetcher),
	}
	for _, f := range fetchers {
		for _, scheme := range f.Schemes() {
			ing.fetchers[strings.ToLower(scheme)] = f
		}
	}
	return ing
}

// FromUpload returns the upload variant for a caller-supplied byte stream.
func (i *Ingestor) FromUpload(u Upload) Source {
	return &uploadSource{ing: i, upload: u}
}

// FromURL returns the remote-fetch variant for a video URL.
func (i *Ingestor) FromURL(rawURL string) Source {
	return &remoteSource{ing: i, rawURL: strings.TrimSpace(rawURL)}
}

// Schemes lists the URL schemes this Ingestor can fetch.
func (i *Ingestor) Schemes() []string {
	out := make([]string, 0, len(i.fetchers))
	for s := range i.fetchers {
		out = append(out, s)
	}
	return out
}

// tempPath returns an unused path inside the ingest directory.
func (i *Ingestor) tempPath(prefix, ext string) (string, error) {
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating temp dir: %v", ErrIngestionFailed, err)
	}
	if ext == "" || len(ext) > 8 {
		ext = ".mp4"
	}
	return filepath.Join(i.dir, prefix+"-"+uuid.NewString()+strings.ToLower(ext)), nil
}

// finalize stats and sniffs a written file.
func finalize(path string) (*Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	if info.Size() == 0 {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: empty media file", ErrIngestionFailed)
	}
	return &Media{Path: path, MimeType: detectMimeType(path), Size: info.Size()}, nil
}

// detectMimeType sniffs the file header, falling back to the extension.
func detectMimeType(path string) string {
	if m, err := mimetype.DetectFile(path); err == nil {
		s := m.String()
		if strings.HasPrefix(s, "video/") || strings.HasPrefix(s, "audio/") {
			return s
		}
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); strings.HasPrefix(t, "video/") {
		return t
	}
	return defaultMimeType
}
