package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/review"
)

// httpLLMClient is the minimal concrete review.Client this binary
// wires in: a plain JSON-over-HTTP call to a configured judgment
// service endpoint. The external service's wire protocol is explicitly
// out of scope (spec.md §1) and no LLM SDK appears in the retrieved
// pack, so this follows the teacher's plain-net/http-client idiom
// (`pkg/runbook/github.go`) rather than introducing an unrelated SDK.
type httpLLMClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

func newHTTPLLMClient(endpoint, apiKey string) *httpLLMClient {
	return &httpLLMClient{
		httpClient: &http.Client{Timeout: 35 * time.Second},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

type llmRequestBody struct {
	System      string  `json:"system"`
	User        string  `json:"user"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type llmResponseBody struct {
	Content string `json:"content"`
}

// Generate implements review.Client.
func (c *httpLLMClient) Generate(ctx context.Context, req review.Request) (string, error) {
	payload, err := json.Marshal(llmRequestBody{
		System:      req.Prompt.System,
		User:        req.Prompt.User,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llmclient: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llmclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llmclient: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llmclient: returned HTTP %d", resp.StatusCode)
	}

	var body llmResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("llmclient: decode response: %w", err)
	}
	return body.Content, nil
}
