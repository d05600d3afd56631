package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ehrlich-b/codesync/internal/logger"
)

const maxResponseBytes = 4 << 20

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference endpoint returned HTTP %d: %s", e.Code, e.Body)
}

// HTTPProvider POSTs the request as JSON and treats the response body as the
// reply text.
type HTTPProvider struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPProvider(url, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Complete(ctx context.Context, req *Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	logger.Debug("inference request", "url", p.url, "model", req.Model, "num_messages", len(req.Messages))
	start := time.Now()

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	logger.Debug("inference response", "duration", time.Since(start), "response_length", len(data))
	return string(data), nil
}

func (p *HTTPProvider) Name() string {
	return "http"
}
