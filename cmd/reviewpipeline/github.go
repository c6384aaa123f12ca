package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/precheck"
	"github.com/sealedreview/reviewpipeline/pkg/webhook"
)

// githubClient is the minimal HTTP access this binary needs against
// the repository-hosting API: fetching a pull request's changed files
// and posting a review comment. The API client itself is explicitly
// out of scope for the pipeline's hard core (spec.md §1); no
// repository-hosting SDK appears anywhere in the retrieved pack, and
// the teacher's own `pkg/runbook/github.go` reaches for plain
// net/http against the GitHub REST API rather than a generated client,
// so this adapter follows the same shape.
type githubClient struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

func newGitHubClient(token string) *githubClient {
	return &githubClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		baseURL:    "https://api.github.com",
	}
}

func (c *githubClient) setAuthHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
}

type githubFileEntry struct {
	Filename  string `json:"filename"`
	Changes   int    `json:"changes"`
	Patch     string `json:"patch"`
}

// ExtractDiff implements orchestrator.DiffExtractor by listing the
// changed files for ec's pull request via GitHub's
// /repos/{owner}/{repo}/pulls/{number}/files endpoint.
func (c *githubClient) ExtractDiff(ctx context.Context, ec webhook.EventContext) ([]precheck.DiffFile, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=100", c.baseURL, ec.Owner, ec.Repo, ec.PRNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: list files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github: list files returned HTTP %d", resp.StatusCode)
	}

	var entries []githubFileEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("github: decode files response: %w", err)
	}

	files := make([]precheck.DiffFile, len(entries))
	for i, e := range entries {
		files[i] = precheck.DiffFile{
			Path:         e.Filename,
			ChangedLines: e.Changes,
			Hunks:        splitPatchLines(e.Patch),
		}
	}
	return files, nil
}

func splitPatchLines(patch string) []string {
	if patch == "" {
		return nil
	}
	return strings.Split(patch, "\n")
}

// PublishComment implements orchestrator.CommentPublisher by posting
// body as an issue comment on ec's pull request (GitHub treats PRs as
// issues for the comments endpoint).
func (c *githubClient) PublishComment(ctx context.Context, ec webhook.EventContext, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, ec.Owner, ec.Repo, ec.PRNumber)
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return fmt.Errorf("github: encode comment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	c.setAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: post comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("github: post comment returned HTTP %d", resp.StatusCode)
	}
	return nil
}
