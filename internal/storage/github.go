// Package storage is the remote archive adapter: a thin CRUD client
// that writes finalized session records as JSON blobs to a GitHub
// repository through the contents API.
package storage

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codetrail/codetrail/internal/logger"
	"github.com/codetrail/codetrail/internal/models"
)

// GitHubClient talks to the GitHub contents API.
type GitHubClient struct {
	token   string
	baseURL string
	client  *http.Client
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type contentsResponse struct {
	SHA string `json:"sha"`
}

type apiError struct {
	Message string `json:"message"`
}

// NewGitHubClient creates a client. An empty token leaves the client
// unconfigured; background saves are silently skipped in that state.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		token:   token,
		baseURL: "https://api.github.com",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured reports whether the client can authenticate.
func (c *GitHubClient) IsConfigured() bool {
	return c.token != ""
}

// SaveRecord writes an archive record to owner/repo at path on branch.
// If the path already exists the blob is updated in place (the existing
// sha is fetched and the write retried once).
func (c *GitHubClient) SaveRecord(owner, repo string, record *models.ArchiveRecord, path, branch string) (bool, error) {
	if !c.IsConfigured() {
		return false, fmt.Errorf("remote storage not configured: set GITHUB_TOKEN")
	}
	if owner == "" || repo == "" {
		return false, fmt.Errorf("archive repository not configured")
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal archive record: %w", err)
	}

	body := contentsRequest{
		Message: fmt.Sprintf("Archive session %s", record.SessionID),
		Content: base64.StdEncoding.EncodeToString(payload),
		Branch:  branch,
	}

	status, respBody, err := c.putContents(owner, repo, path, body)
	if err != nil {
		return false, err
	}

	// 409/422 usually means the blob exists; fetch its sha and retry once
	if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
		sha, shaErr := c.fetchSHA(owner, repo, path, branch)
		if shaErr != nil || sha == "" {
			return false, fmt.Errorf("archive save rejected (status %d): %s", status, errorMessage(respBody))
		}
		body.SHA = sha
		status, respBody, err = c.putContents(owner, repo, path, body)
		if err != nil {
			return false, err
		}
	}

	if status != http.StatusCreated && status != http.StatusOK {
		return false, fmt.Errorf("archive save failed (status %d): %s", status, errorMessage(respBody))
	}

	logger.Infof("☁️  Archived session %s to %s/%s/%s", record.SessionID, owner, repo, path)
	return true, nil
}

func (c *GitHubClient) putContents(owner, repo, path string, body contentsRequest) (int, []byte, error) {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, owner, repo, escapePath(path))
	req, err := http.NewRequest(http.MethodPut, endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach GitHub: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *GitHubClient) fetchSHA(owner, repo, path, branch string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, owner, repo, escapePath(path))
	if branch != "" {
		endpoint += "?ref=" + url.QueryEscape(branch)
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	var contents contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return "", err
	}
	return contents.SHA, nil
}

func (c *GitHubClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func errorMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return string(body)
}
