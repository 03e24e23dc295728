package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/secsy/goftp"
)

// FTPFetcher downloads ftp:// and ftps:// files. ftps uses explicit TLS.
type FTPFetcher struct {
	user     string
	password string
}

func NewFTPFetcher(user, password string) *FTPFetcher {
	return &FTPFetcher{user: user, password: password}
}

func (f *FTPFetcher) Name() string      { return "ftp" }
func (f *FTPFetcher) Schemes() []string { return []string{"ftp", "ftps"} }

func (f *FTPFetcher) Fetch(ctx context.Context, src *url.URL, dst string, sink ProgressSink) error {
	if src.Hostname() == "" || src.Path == "" {
		return fmt.Errorf("%w: ftp URL must be ftp://host/path", ErrIngestionFailed)
	}
	cfg := goftp.Config{
		User:               f.user,
		Password:           f.password,
		Timeout:            30 * time.Second,
		ConnectionsPerHost: 1,
	}
	if src.User != nil {
		cfg.User = src.User.Username()
		if pw, ok := src.User.Password(); ok {
			cfg.Password = pw
		}
	}
	if src.Scheme == "ftps" {
		cfg.TLSConfig = &tls.Config{ServerName: src.Hostname()}
		cfg.TLSMode = goftp.TLSExplicit
	}
	port := src.Port()
	if port == "" {
		port = "21"
	}

	client, err := goftp.DialConfig(cfg, net.JoinHostPort(src.Hostname(), port))
	if err != nil {
		return fmt.Errorf("%w: ftp dial: %v", ErrIngestionFailed, err)
	}
	defer client.Close()

	var total int64
	if info, err := client.Stat(src.Path); err == nil {
		total = info.Size()
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrIngestionFailed, dst, err)
	}
	w := &ctxWriter{ctx: ctx, w: out, progress: newProgressWriter(sink, total)}
	err = client.Retrieve(src.Path, w)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: ftp retrieve %s: %v", ErrIngestionFailed, src.Path, err)
	}
	return nil
}

// ctxWriter aborts a Retrieve once ctx is done, since goftp takes no context.
type ctxWriter struct {
	ctx      context.Context
	w        *os.File
	progress *progressWriter
}

func (c *ctxWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	_, _ = c.progress.Write(p[:n])
	return n, err
}
