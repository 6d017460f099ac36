package internal_audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vocalisai/vocalis/pkg/commons"
)

const (
	fetchTimeout = 30 * time.Second
	// maxDownloadBytes caps a single recording download at 25 MiB, well
	// above any plausible 30-second enrollment clip.
	maxDownloadBytes = 25 << 20
)

var (
	// ErrEmptyDownload marks a 2xx response with a zero-length body.
	ErrEmptyDownload = errors.New("audio: empty download")
	// ErrFetchTimeout marks a download that exceeded its deadline.
	ErrFetchTimeout = errors.New("audio: fetch timed out")
	// ErrDownloadTooLarge marks a body over the size cap.
	ErrDownloadTooLarge = errors.New("audio: download too large")
	// ErrInvalidURL marks a malformed or non-http(s) recording URL.
	ErrInvalidURL = errors.New("audio: invalid url")
)

// HTTPStatusError reports a non-2xx response from the recording host.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("audio: fetch returned status %d", e.Code)
}

// Fetcher downloads enrollment recordings over HTTP.
type Fetcher struct {
	client *resty.Client
	logger commons.Logger
}

func NewFetcher(logger commons.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(fetchTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetDoNotParseResponse(true)
	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads rawURL and returns the body bytes. The body is read fully
// here so callers never hold a network handle.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	started := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ErrFetchTimeout
		}
		return nil, fmt.Errorf("audio: fetch: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &HTTPStatusError{Code: resp.StatusCode()}
	}

	data, err := io.ReadAll(io.LimitReader(body, maxDownloadBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, ErrFetchTimeout
		}
		return nil, fmt.Errorf("audio: fetch body: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, ErrDownloadTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyDownload
	}

	f.logger.Debugw("recording downloaded",
		"bytes", len(data), "elapsed_ms", time.Since(started).Milliseconds())
	return data, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
