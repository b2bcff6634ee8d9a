package imagecodec

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

// FetchError means an image URL could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch image from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to fetch image from %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FromURL downloads url into a File named filename. The type is mimeType when
// given, otherwise the response Content-Type, otherwise sniffed.
func (f *Fetcher) FromURL(ctx context.Context, url, filename, mimeType string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	if mimeType == "" {
		if ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && ct != "application/octet-stream" {
			mimeType = ct
		}
	}

	return NewFile(filename, mimeType, data), nil
}
