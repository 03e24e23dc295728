package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FetcherOptions carries credentials for the optional remote sources.
type FetcherOptions struct {
	YTDLPBin     string
	YTDLPFormat  string
	AzureAccount string
	AzureKey     string
	SFTPUser     string
	SFTPPassword string
	SFTPKeyPath  string
	FTPUser      string
	FTPPassword  string
}

// LoadFetchers always includes yt-dlp for http(s) and adds each source named
// in sources ("s3", "azblob", "sftp", "ftp"). A source that fails to
// initialize is logged and skipped.
func LoadFetchers(ctx context.Context, sources []string, opts FetcherOptions) []Fetcher {
	fetchers := []Fetcher{NewYTDLP(opts.YTDLPBin, opts.YTDLPFormat)}
	for _, token := range sources {
		token = strings.TrimSpace(strings.ToLower(token))
		if token == "" {
			continue
		}
		var (
			f   Fetcher
			err error
		)
		switch token {
		case "s3":
			f, err = NewS3Fetcher(ctx)
		case "azblob", "azure":
			f, err = NewAzureBlobFetcher(opts.AzureAccount, opts.AzureKey)
		case "sftp":
			f, err = NewSFTPFetcher(opts.SFTPUser, opts.SFTPPassword, opts.SFTPKeyPath)
		case "ftp", "ftps":
			f = NewFTPFetcher(opts.FTPUser, opts.FTPPassword)
		default:
			err = fmt.Errorf("unknown ingest source %q", token)
		}
		if err != nil {
			slog.Error("failed to init ingest source", "source", token, "error", err)
			continue
		}
		slog.Info("initialized ingest source", "source", f.Name(), "schemes", f.Schemes())
		fetchers = append(fetchers, f)
	}
	return fetchers
}
