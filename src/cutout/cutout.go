package cutout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"yv-capture/src/dataurl"
)

// DefaultEndpoint is the local background-removal service.
const DefaultEndpoint = "http://127.0.0.1:8787"

var (
	// ErrStatus is wrapped by errors for non-2xx responses.
	ErrStatus = errors.New("cutout failed")
	// ErrEmptyResult is returned when the service answers without an image.
	ErrEmptyResult = errors.New("cutout service returned no image")
	// ErrBadResponse is wrapped when a 2xx body is not the expected JSON.
	ErrBadResponse = errors.New("invalid cutout response")
)

// transportError marks failures that happened before any response arrived.
// Only these are retried.
type transportError struct{ err error }

func (e *transportError) Error() string { return "cutout request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

const (
	maxErrorBody = 2048
	retryDelay   = 1 * time.Second
)

type Config struct {
	// Endpoint is the service base URL; "/cutout" is appended.
	Endpoint string
	// Timeout bounds a single call. Zero means no timeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error.
	// HTTP error statuses are never retried.
	Retries int
}

// Request is the cutout service request body.
type Request struct {
	ImageDataURL string `json:"image_data_url"`
}

// Response is the cutout service response body.
type Response struct {
	PNGDataURL string `json:"png_data_url"`
}

// Client talks to the background-removal service.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Endpoint returns the full cutout URL.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint + "/cutout"
}

// Cutout sends an image data URL and returns the transparent PNG data URL.
func (c *Client) Cutout(ctx context.Context, imageDataURL string) (string, error) {
	if !dataurl.Is(imageDataURL) {
		return "", fmt.Errorf("cutout input must be a data URL: %w", dataurl.ErrInvalid)
	}
	body, err := json.Marshal(Request{ImageDataURL: imageDataURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			log.Printf("Cutout: retrying (%d/%d) after: %v", attempt, c.cfg.Retries, lastErr)
			select {
			case <-time.After(retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		out, err := c.do(ctx, body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return "", lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if out.PNGDataURL == "" {
		return "", ErrEmptyResult
	}
	log.Printf("Cutout: done in %v (%d chars)", time.Since(start).Round(time.Millisecond), len(out.PNGDataURL))
	return out.PNGDataURL, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var te *transportError
	return errors.As(err, &te)
}

// Ping checks that the service accepts connections.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cutout service unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
