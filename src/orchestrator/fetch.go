package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"yv-capture/src/dataurl"
	"yv-capture/src/messages"
)

// DefaultFetchMaxBytes caps a proxied image body.
const DefaultFetchMaxBytes = 25 << 20

var errTooLarge = errors.New("response exceeds size limit")

type FetcherConfig struct {
	MaxBytes int64
	// Timeout bounds one fetch. Zero means no timeout.
	Timeout time.Duration
}

// Fetcher downloads remote images without cookies or credentials.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultFetchMaxBytes
	}
	// No Jar: cookies are neither sent nor stored.
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch never returns an error; failures are carried in the result.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) messages.FetchImageResult {
	data, contentType, err := f.fetch(ctx, rawURL)
	if err != nil {
		return messages.FetchImageResult{OK: false, Error: err.Error()}
	}
	return messages.FetchImageResult{
		OK:          true,
		DataURL:     dataurl.Encode(contentType, data),
		ContentType: contentType,
		ByteLength:  len(data),
	}
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("fetch failed: unsupported url %q", rawURL)
	}
	u.User = nil

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("fetch failed: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("fetch failed: %w (%d bytes)", errTooLarge, f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = dataurl.DefaultContentType
	}
	return data, contentType, nil
}
