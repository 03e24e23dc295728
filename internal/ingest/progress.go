package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
)

// progressWriter counts bytes written and reports to sink each time the
// completed percentage moves.
type progressWriter struct {
	sink    ProgressSink
	total   int64
	done    int64
	lastPct int64
}

func newProgressWriter(sink ProgressSink, total int64) *progressWriter {
	return &progressWriter{sink: sink, total: total, lastPct: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	if w.sink == nil || w.total <= 0 {
		return len(p), nil
	}
	pct := w.done * 100 / w.total
	if pct != w.lastPct {
		w.lastPct = pct
		w.sink.Progress(w.done, w.total)
	}
	return len(p), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// copyToFile streams r into a new file at dst. On failure the partial file is removed.
func copyToFile(ctx context.Context, dst string, r io.Reader, total int64, sink ProgressSink) (int64, error) {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %v", ErrIngestionFailed, dst, err)
	}
	pw := newProgressWriter(sink, total)
	n, err := io.Copy(io.MultiWriter(f, pw), ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return n, fmt.Errorf("%w: writing %s: %v", ErrIngestionFailed, dst, err)
	}
	return n, nil
}
