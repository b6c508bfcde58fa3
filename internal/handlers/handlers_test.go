package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/codetrail/internal/config"
	"github.com/codetrail/codetrail/internal/correlator"
	"github.com/codetrail/codetrail/internal/detection"
	"github.com/codetrail/codetrail/internal/git"
	"github.com/codetrail/codetrail/internal/models"
	"github.com/codetrail/codetrail/internal/queue"
	"github.com/codetrail/codetrail/internal/sanitize"
	"github.com/codetrail/codetrail/internal/session"
	"github.com/codetrail/codetrail/internal/storage"
)

const generatedFunction = `// processBatch validates each record and collects the failures.
// This handles errors per record so one bad entry cannot abort the run.
func processBatch(records []Record) ([]Result, error) {
	results := make([]Result, 0, len(records))
	for _, record := range records {
		out, err := transform(record)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", record.ID, err)
		}
		results = append(results, out)
	}
	return results, nil
}`

func newTestAPI(t *testing.T) (*fiber.App, *session.Store) {
	t.Helper()

	settings := config.Defaults()
	settings.Workspace = t.TempDir()

	sanitizer, err := sanitize.New("")
	require.NoError(t, err)

	store := session.NewStore(session.Options{}, nil)
	reader := git.NewReader(settings.Workspace)
	corr := correlator.New(
		settings,
		detection.NewEngine(1.0),
		store,
		queue.New(2, time.Minute, nil),
		sanitizer,
		reader,
		git.NewMonitor(reader, settings.Workspace, time.Hour),
		storage.NewGitHubClient(""),
	)

	app := fiber.New()
	changesHandler := NewChangesHandler(corr)
	sessionsHandler := NewSessionsHandler(store, corr)
	statsHandler := NewStatsHandler(corr)

	v1 := app.Group("/v1")
	v1.Post("/changes", changesHandler.HandleChange)
	v1.Post("/interactions", changesHandler.HandleInteraction)
	v1.Get("/sessions/current", sessionsHandler.GetCurrent)
	v1.Get("/sessions/current/quality", sessionsHandler.GetQuality)
	v1.Get("/sessions/history", sessionsHandler.GetHistory)
	v1.Post("/sessions/finalize", sessionsHandler.Finalize)
	v1.Get("/stats", statsHandler.GetStats)
	v1.Post("/stats/reset", statsHandler.ResetStats)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

func TestHandleChangeRecordsDetectedInteractions(t *testing.T) {
	app, store := newTestAPI(t)

	var result ChangeResponse
	status := doJSON(t, app, "POST", "/v1/changes", models.ChangeEvent{
		DocumentID:   "doc-1",
		FilePath:     "internal/batch/process.go",
		Language:     "go",
		InsertedText: generatedFunction,
	}, &result)

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, result.Detected)
	require.NotEmpty(t, result.Candidates)

	current := store.Current()
	assert.NotEmpty(t, current.Interactions, "detected candidates become interactions")
	for _, interaction := range current.Interactions {
		assert.NotEmpty(t, interaction.ID)
		assert.NotEmpty(t, interaction.Prompt)
		require.NotNil(t, interaction.FileContext)
		assert.Equal(t, "internal/batch/process.go", interaction.FileContext.Path)
	}
}

func TestHandleChangeRejectsEmptyEvent(t *testing.T) {
	app, _ := newTestAPI(t)

	status := doJSON(t, app, "POST", "/v1/changes", models.ChangeEvent{DocumentID: "doc-1"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandleChangeRejectsMalformedBody(t *testing.T) {
	app, _ := newTestAPI(t)

	req := httptest.NewRequest("POST", "/v1/changes", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleInteractionAppliesDefaults(t *testing.T) {
	app, store := newTestAPI(t)

	var stored models.Interaction
	status := doJSON(t, app, "POST", "/v1/interactions", models.Interaction{
		Prompt:   "How should I structure retries?",
		Response: "Use exponential backoff.",
	}, &stored)

	assert.Equal(t, fiber.StatusCreated, status)
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, models.ProviderOther, stored.Provider)
	assert.Equal(t, models.InteractionChat, stored.Type)

	assert.Len(t, store.Current().Interactions, 1)
}

func TestHandleInteractionRejectsEmptyBody(t *testing.T) {
	app, _ := newTestAPI(t)

	status := doJSON(t, app, "POST", "/v1/interactions", models.Interaction{}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetCurrentAndQuality(t *testing.T) {
	app, _ := newTestAPI(t)

	doJSON(t, app, "POST", "/v1/interactions", models.Interaction{Prompt: "p", Response: "r"}, nil)

	var current models.DevelopmentSession
	status := doJSON(t, app, "GET", "/v1/sessions/current", nil, &current)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, current.ID)
	assert.Len(t, current.Interactions, 1)

	var report models.QualityReport
	status = doJSON(t, app, "GET", "/v1/sessions/current/quality", nil, &report)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, report.Interactions)
}

func TestGetHistoryValidatesLimit(t *testing.T) {
	app, _ := newTestAPI(t)

	var history []models.DevelopmentSession
	status := doJSON(t, app, "GET", "/v1/sessions/history", nil, &history)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, history)

	status = doJSON(t, app, "GET", "/v1/sessions/history?limit=abc", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status = doJSON(t, app, "GET", "/v1/sessions/history?limit=-1", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestFinalizeWithoutRepositoryFails(t *testing.T) {
	app, _ := newTestAPI(t)

	doJSON(t, app, "POST", "/v1/interactions", models.Interaction{Prompt: "p", Response: "r"}, nil)

	var result map[string]string
	status := doJSON(t, app, "POST", "/v1/sessions/finalize", nil, &result)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, result["error"], "not a git repository")
}

func TestStatsEndpoints(t *testing.T) {
	app, _ := newTestAPI(t)

	doJSON(t, app, "POST", "/v1/interactions", models.Interaction{Prompt: "p", Response: "r"}, nil)

	var stats models.AutomationStats
	status := doJSON(t, app, "GET", "/v1/stats", nil, &stats)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), stats.InteractionsDetected)

	status = doJSON(t, app, "POST", "/v1/stats/reset", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)

	doJSON(t, app, "GET", "/v1/stats", nil, &stats)
	assert.Zero(t, stats.InteractionsDetected)
}

func TestHandleSSERejectsNonStreamClients(t *testing.T) {
	events := NewEventsHandler()
	app := fiber.New()
	app.Get("/v1/events", events.HandleSSE)

	req := httptest.NewRequest("GET", "/v1/events", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEmitFansOutToClients(t *testing.T) {
	events := NewEventsHandler()

	ch := make(chan SSEMessage, 2)
	events.addClient("client-1", ch)

	events.Emit(correlator.EventCommitDetected, map[string]string{"hash": "abc"})
	require.Len(t, ch, 1)
	msg := <-ch
	assert.Equal(t, correlator.EventCommitDetected, msg.Event.Type)
	assert.NotEmpty(t, msg.ID)

	// full buffers drop instead of blocking
	full := make(chan SSEMessage)
	events.addClient("client-2", full)
	events.Emit("session:finalized", nil)

	events.removeClient("client-1")
	events.removeClient("client-2")
	events.Emit("after-close", nil)
}
