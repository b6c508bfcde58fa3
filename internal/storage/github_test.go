package storage

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/codetrail/internal/models"
)

func testRecord() *models.ArchiveRecord {
	return &models.ArchiveRecord{
		SessionID: "session-1",
		Prompt:    "Generate code in server.go",
		Response:  "func handler() {}",
		Timestamp: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
}

func newTestClient(serverURL string) *GitHubClient {
	client := NewGitHubClient("test-token")
	client.baseURL = serverURL
	return client
}

func TestSaveRecordCreatesBlob(t *testing.T) {
	var captured contentsRequest
	var gotPath, gotAuth, gotVersion string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("X-GitHub-Api-Version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"content": {"sha": "abc"}}`))
	}))
	defer server.Close()

	saved, err := newTestClient(server.URL).SaveRecord("acme", "sessions", testRecord(), "sessions/2026/record.json", "main")
	require.NoError(t, err)
	assert.True(t, saved)

	assert.Equal(t, "/repos/acme/sessions/contents/sessions/2026/record.json", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "2022-11-28", gotVersion)
	assert.Equal(t, "Archive session session-1", captured.Message)
	assert.Equal(t, "main", captured.Branch)
	assert.Empty(t, captured.SHA)

	payload, err := base64.StdEncoding.DecodeString(captured.Content)
	require.NoError(t, err)
	var decoded models.ArchiveRecord
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "session-1", decoded.SessionID)
}

func TestSaveRecordRetriesWithSHAOnConflict(t *testing.T) {
	var puts []contentsRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var body contentsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			puts = append(puts, body)
			if body.SHA == "" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"message": "sha required"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		case http.MethodGet:
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			w.Write([]byte(`{"sha": "existing-sha"}`))
		}
	}))
	defer server.Close()

	saved, err := newTestClient(server.URL).SaveRecord("acme", "sessions", testRecord(), "sessions/record.json", "main")
	require.NoError(t, err)
	assert.True(t, saved)

	require.Len(t, puts, 2)
	assert.Empty(t, puts[0].SHA)
	assert.Equal(t, "existing-sha", puts[1].SHA, "the retry must carry the existing blob sha")
}

func TestSaveRecordSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "Resource not accessible by integration"}`))
	}))
	defer server.Close()

	saved, err := newTestClient(server.URL).SaveRecord("acme", "sessions", testRecord(), "sessions/record.json", "")
	assert.False(t, saved)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Resource not accessible by integration")
	assert.Contains(t, err.Error(), "403")
}

func TestSaveRecordRequiresConfiguration(t *testing.T) {
	unconfigured := NewGitHubClient("")
	assert.False(t, unconfigured.IsConfigured())

	_, err := unconfigured.SaveRecord("acme", "sessions", testRecord(), "p.json", "")
	assert.Error(t, err)

	configured := NewGitHubClient("token")
	assert.True(t, configured.IsConfigured())
	_, err = configured.SaveRecord("", "", testRecord(), "p.json", "")
	assert.Error(t, err, "owner and repo are required")
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "sessions/2026-03-10T14-00-00-abc.json", escapePath("/sessions/2026-03-10T14-00-00-abc.json"))
	assert.Equal(t, "a%20b/c", escapePath("a b/c"))
}
