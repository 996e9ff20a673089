package queryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the body of a POST /v1/query call.
type Request struct {
	Query    string `json:"query"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type queryResponse struct {
	Response string `json:"response"`
}

// Client issues queries against the deployed LLM service.
type Client interface {
	Query(ctx context.Context, req Request) (string, error)
}

// StatusError reports a non-2xx response from the query service.
// Any such response aborts the evaluation run.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query service returned %d: %s", e.StatusCode, e.Body)
}

// HTTPClient is the production Client implementation.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPClient builds a client for the service at baseURL with a fixed
// per-call timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// Query posts the question and returns the raw response text.
func (c *HTTPClient) Query(ctx context.Context, req Request) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode query response: %w", err)
	}
	return out.Response, nil
}
