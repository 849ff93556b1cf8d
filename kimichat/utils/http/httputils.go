// kimichat/utils/http/httputils.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// StatusError is returned when the remote side answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status: %d", e.StatusCode)
	}
	return fmt.Sprintf("bad status: %d: %s", e.StatusCode, e.Body)
}

func newRequest(ctx context.Context, url string, body interface{}, headers map[string]string) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func statusError(r *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
	return &StatusError{StatusCode: r.StatusCode, Body: string(bytes.TrimSpace(b))}
}

func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}, resp interface{}) error {
	req, err := newRequest(ctx, url, body, headers)
	if err != nil {
		return err
	}
	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return statusError(r)
	}
	if resp != nil {
		return json.NewDecoder(r.Body).Decode(resp)
	}
	return nil
}

// PostStream returns the open response body; the caller must close it.
func PostStream(ctx context.Context, client *http.Client, url string, headers map[string]string, body interface{}) (io.ReadCloser, error) {
	req, err := newRequest(ctx, url, body, headers)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	r, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		defer r.Body.Close()
		return nil, statusError(r)
	}
	return r.Body, nil
}

func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, resp interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r, err := client.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return statusError(r)
	}
	return json.NewDecoder(r.Body).Decode(resp)
}
