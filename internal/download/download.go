// Package download implements the File Downloader (C5): fetching a
// FileEntity's bytes to a per-sync temp directory, sniffing its real MIME
// type (upstream Content-Type headers are frequently wrong or missing),
// and refusing files over the configured size ceiling.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/worldline-go/klient"

	"github.com/airweave-core/airweave-core/internal/core"
	"github.com/airweave-core/airweave-core/internal/errkind"
	"github.com/airweave-core/airweave-core/internal/sources"
)

// Config configures a Downloader.
type Config struct {
	Proxy    string
	Insecure bool
	// MaxBytes caps a single file's size; zero means DefaultMaxBytes.
	MaxBytes int64
}

// DefaultMaxBytes is the ceiling applied when Config.MaxBytes is zero —
// large enough for the overwhelming majority of office documents and
// recordings, small enough to keep one oversize file from exhausting a
// sync job's disk budget.
const DefaultMaxBytes = 500 * 1024 * 1024

// Downloader fetches FileEntity content for the Sync Runner.
type Downloader struct {
	klient   *klient.Client
	maxBytes int64
}

// New builds a Downloader. Every source connection shares one Downloader;
// per-request auth comes from the TokenGetter passed to Fetch.
func New(cfg Config) (*Downloader, error) {
	opts := []klient.OptionClientFn{
		klient.WithLogger(slog.Default()),
		klient.WithDisableBaseURLCheck(true),
	}
	if cfg.Proxy != "" {
		opts = append(opts, klient.WithProxy(cfg.Proxy))
	}
	if cfg.Insecure {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	kc, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("download: build klient client: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Downloader{klient: kc, maxBytes: maxBytes}, nil
}

// Fetch downloads f.URL into dir (a per-sync temp directory the caller owns
// and cleans up), populating f.LocalPath, f.MimeType (sniffed from content,
// not trusted from the upstream header), f.Size, and f.Filename (from
// Content-Disposition when f.Filename is unset). tok is nil for drivers
// using AuthDirect-derived static tokens already embedded in f.URL.
//
// An oversize file (Content-Length or actual bytes exceeding maxBytes)
// returns an *errkind.Error with Kind errkind.Skipped — a distinguished
// outcome, not a hard failure; the Sync Runner treats it as "no content to
// embed" rather than aborting the entity.
func (d *Downloader) Fetch(ctx context.Context, dir string, f *core.FileFields, tok sources.TokenGetter) error {
	if f.RawBytes != nil {
		return d.writeRawBytes(dir, f)
	}
	if f.URL == "" {
		return fmt.Errorf("download: file entity has neither RawBytes nor URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return fmt.Errorf("download: build request: %w", err)
	}
	if tok != nil {
		token, err := tok.Token(ctx)
		if err != nil {
			return errkind.Wrap(errkind.TokenRefresh, "token_resolve_failed", err, "download: resolve token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	tmp, err := os.CreateTemp(dir, "download-*")
	if err != nil {
		return fmt.Errorf("download: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer tmp.Close()

	var statusCode int
	var filename string
	var written int64
	var skipped bool

	execErr := d.klient.Do(req, func(r *http.Response) error {
		statusCode = r.StatusCode
		if statusCode >= http.StatusBadRequest {
			return nil
		}

		if cl := r.ContentLength; cl > 0 && cl > d.maxBytes {
			skipped = true
			return nil
		}
		if disp := r.Header.Get("Content-Disposition"); disp != "" {
			if _, params, err := mime.ParseMediaType(disp); err == nil {
				filename = params["filename"]
			}
		}

		limited := io.LimitReader(r.Body, d.maxBytes+1)
		n, err := io.Copy(tmp, limited)
		if err != nil {
			return fmt.Errorf("download: write body: %w", err)
		}
		written = n
		if n > d.maxBytes {
			skipped = true
		}
		return nil
	})
	if execErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download: %s: %w", f.URL, execErr)
	}
	if statusCode >= http.StatusBadRequest {
		os.Remove(tmpPath)
		return errkind.New(statusKind(statusCode), "download_failed", "download: %s: status %d", f.URL, statusCode)
	}
	if skipped {
		os.Remove(tmpPath)
		return errkind.New(errkind.Skipped, "file_too_large", "download: %s exceeds %s limit", f.URL, humanize.Bytes(uint64(d.maxBytes)))
	}

	detected, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download: sniff mime type: %w", err)
	}

	f.LocalPath = tmpPath
	f.Size = written
	f.MimeType = detected.String()
	if f.FileType == "" {
		f.FileType = detected.Extension()
	}
	if f.Filename == "" {
		if filename != "" {
			f.Filename = filename
		} else {
			f.Filename = filepath.Base(tmpPath)
		}
	}
	return nil
}

func (d *Downloader) writeRawBytes(dir string, f *core.FileFields) error {
	if int64(len(f.RawBytes)) > d.maxBytes {
		return errkind.New(errkind.Skipped, "file_too_large", "download: inline bytes exceed %s limit", humanize.Bytes(uint64(d.maxBytes)))
	}

	tmp, err := os.CreateTemp(dir, "download-*")
	if err != nil {
		return fmt.Errorf("download: create temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := tmp.Write(f.RawBytes); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("download: write inline bytes: %w", err)
	}

	detected := mimetype.Detect(f.RawBytes)
	f.LocalPath = tmp.Name()
	f.Size = int64(len(f.RawBytes))
	f.MimeType = detected.String()
	if f.FileType == "" {
		f.FileType = detected.Extension()
	}
	if f.Filename == "" {
		f.Filename = filepath.Base(tmp.Name())
	}
	return nil
}

func statusKind(status int) errkind.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return errkind.TokenRefresh
	case status == http.StatusForbidden:
		return errkind.Permission
	case status == http.StatusNotFound:
		return errkind.NotFound
	case status == http.StatusTooManyRequests:
		return errkind.RateLimit
	case status >= 500:
		return errkind.ProviderError
	default:
		return errkind.Validation
	}
}
