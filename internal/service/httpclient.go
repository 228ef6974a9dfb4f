package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/obsimg/obsimg/internal/logger"
	"github.com/obsimg/obsimg/internal/utils"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-200 response. 4xx statuses are definitive
// answers from the server and are not worth retrying.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-200 response for %s: %d", e.URL, e.StatusCode)
}

func (e *StatusError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

type DefaultHTTPClient struct{ *http.Client }

func NewHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{Client: &http.Client{Timeout: timeout}}
}

// Fetch performs a GET and rejects non-200 responses. The caller owns the
// response body.
func Fetch(ctx context.Context, c HTTPClient, url string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		utils.Try(resp.Body.Close)
		logger.Debug("received non-200 response for %s: %d", url, resp.StatusCode)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// FetchBytes reads the full body of a GET response.
func FetchBytes(ctx context.Context, c HTTPClient, url string) ([]byte, error) {
	resp, err := Fetch(ctx, c, url)
	if err != nil {
		return nil, err
	}
	defer utils.Try(resp.Body.Close)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response for %s: %w", url, err)
	}
	return data, nil
}

// DownloadToFile streams a GET response into dst, reporting progress to the
// caller-owned reporter. A response shorter than its declared Content-Length
// is an error so truncated downloads get retried.
func DownloadToFile(ctx context.Context, c HTTPClient, url, dst string, reporter Progress) (err error) {
	resp, err := Fetch(ctx, c, url)
	if err != nil {
		return err
	}
	defer utils.Try(resp.Body.Close)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close failed: %w", cerr)
		}
	}()

	if reporter == nil {
		reporter = NopProgress{}
	}
	defer reporter.Finish()

	total := resp.ContentLength
	var read int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
			read += int64(n)
			reporter.Update(read, total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("download %s: %w", url, rerr)
		}
	}

	if total > 0 && read < total {
		return fmt.Errorf("download %s: content too short: %d of %d bytes", url, read, total)
	}
	return err
}
