package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
)

const (
	progressPrefix   = "videolens-progress:"
	progressTemplate = "download:" + progressPrefix +
		"%(progress.downloaded_bytes)s/%(progress.total_bytes)s/%(progress.total_bytes_estimate)s"
	stderrLimit = 4 << 10
)

// YTDLP downloads http(s) video pages by shelling out to yt-dlp.
type YTDLP struct {
	Bin    string
	Format string
}

// NewYTDLP returns a yt-dlp fetcher. Empty arguments take the defaults.
func NewYTDLP(bin, format string) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	if format == "" {
		format = "best[ext=mp4]"
	}
	return &YTDLP{Bin: bin, Format: format}
}

func (y *YTDLP) Name() string      { return "yt-dlp" }
func (y *YTDLP) Schemes() []string { return []string{"http", "https"} }

func (y *YTDLP) Fetch(ctx context.Context, src *url.URL, dst string, sink ProgressSink) error {
	args := []string{
		"--no-playlist",
		"--quiet", "--progress", "--newline",
		"--progress-template", progressTemplate,
		"-f", y.Format,
		"-o", dst,
		src.String(),
	}
	cmd := exec.CommandContext(ctx, y.Bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: yt-dlp stdout: %v", ErrIngestionFailed, err)
	}
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting yt-dlp: %v", ErrIngestionFailed, err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		done, total, ok := parseProgressLine(scanner.Text())
		if ok && sink != nil {
			sink.Progress(done, total)
		}
	}
	// Drain so yt-dlp never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: yt-dlp: %v", ErrIngestionFailed, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: yt-dlp: %s", ErrIngestionFailed, msg)
	}
	return nil
}

// parseProgressLine reads "videolens-progress:<done>/<total>/<estimate>".
// Unknown values are printed by yt-dlp as "NA"; total falls back to the estimate.
func parseProgressLine(line string) (done, total int64, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), progressPrefix)
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return 0, 0, false
	}
	done, ok = parseBytes(parts[0])
	if !ok {
		return 0, 0, false
	}
	if t, ok := parseBytes(parts[1]); ok {
		total = t
	} else if t, ok := parseBytes(parts[2]); ok {
		total = t
	}
	return done, total, true
}

func parseBytes(s string) (int64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f), true
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
