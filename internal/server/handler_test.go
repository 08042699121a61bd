package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/steward/internal/cache"
	"github.com/fundwise/steward/internal/core"
	"github.com/fundwise/steward/internal/interpreter"
	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/sheets"
	"github.com/fundwise/steward/internal/store"
)

const testToken = "test-api-token"

func newTestServer(t *testing.T) (*httptest.Server, *sheets.MockClient, *interpreter.Static) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "steward.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := sheets.NewMockClient()
	client.Seed(models.TableContributions, []models.Row{
		{"C001", "F001", "KA", "2026", "25000", "", "received", ""},
		{"C002", "F002", "TN", "2026", "40000", "", "pledged", ""},
	})

	logger := slog.New(slog.DiscardHandler)
	tables := cache.New(client, time.Minute)
	interp := interpreter.NewStatic()
	pipeline := core.NewPipeline(core.PipelineOptions{
		Interpreter: interp,
		Client:      client,
		Store:       st,
		Notifier:    tables,
		Logger:      logger,
		PendingTTL:  time.Minute,
	})

	cfg := DefaultServerConfig()
	cfg.APIToken = testToken
	handler, cleanup := Handler(pipeline, tables, client, cfg, logger)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, client, interp
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResult(t *testing.T, resp *http.Response) *models.Result {
	t.Helper()
	var res models.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return &res
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostStructuredCommand(t *testing.T) {
	srv, client, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"command": map[string]any{
			"action": "create",
			"target": "contributions",
			"parameters": map[string]any{
				"id": "C003", "funder_id": "F003", "amount": 15000,
			},
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := decodeResult(t, resp)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AffectedRecords)
	assert.NotEmpty(t, res.ChangeID)

	rows := client.Rows(models.TableContributions)
	require.Len(t, rows, 3)
	assert.Equal(t, "C003", rows[2][0])
}

func TestPostTextCommand(t *testing.T) {
	srv, _, interp := newTestServer(t)
	interp.Add("log a 15000 gift from F003", &models.Command{
		Action:     "create",
		Target:     "contributions",
		Parameters: map[string]any{"id": "C003", "funder_id": "F003", "amount": 15000},
	})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"text": "log a 15000 gift from F003",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeResult(t, resp).Success)
}

func TestNonDataTextReturns422(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"text": "what a lovely day",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	res := decodeResult(t, resp)
	assert.False(t, res.Success)
	assert.Equal(t, "not a data operation", res.Message)
}

func TestGatedCommandConfirmFlow(t *testing.T) {
	srv, client, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"command": map[string]any{
			"action":     "delete",
			"target":     "contributions",
			"parameters": map[string]any{"id": "C001"},
		},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	res := decodeResult(t, resp)
	require.True(t, res.ConfirmationRequired)
	require.NotEmpty(t, res.PendingID)
	assert.Equal(t, "C001", client.Rows(models.TableContributions)[0][0], "nothing executed yet")

	resp = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/operations/%s/confirm", srv.URL, res.PendingID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeResult(t, resp).Success)
	assert.True(t, client.Rows(models.TableContributions)[0].Blank())
}

func TestCancelPendingOperation(t *testing.T) {
	srv, client, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"command": map[string]any{
			"action":     "delete",
			"target":     "contributions",
			"parameters": map[string]any{"id": "C001"},
		},
	})
	res := decodeResult(t, resp)
	require.NotEmpty(t, res.PendingID)

	resp = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/operations/%s/cancel", srv.URL, res.PendingID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "C001", client.Rows(models.TableContributions)[0][0])
}

func TestConfirmUnknownPendingReturns422(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/operations/nonexistent/confirm", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRevertEndpoint(t *testing.T) {
	srv, client, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"command": map[string]any{
			"action":     "create",
			"target":     "contributions",
			"parameters": map[string]any{"id": "C003", "funder_id": "F003"},
		},
	})
	res := decodeResult(t, resp)
	require.True(t, res.Success)

	resp = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/changes/%s/revert", srv.URL, res.ChangeID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeResult(t, resp).Success)
	assert.True(t, client.Rows(models.TableContributions)[2].Blank())
}

func TestChangesAndStatusEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"command": map[string]any{
			"action":     "create",
			"target":     "contributions",
			"parameters": map[string]any{"id": "C003"},
		},
	})
	require.True(t, decodeResult(t, resp).Success)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/changes?limit=5", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var changes struct {
		Changes []*models.ChangeRecord `json:"changes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&changes))
	require.Len(t, changes.Changes, 1)
	assert.Equal(t, models.OpCreate, changes.Changes[0].Kind)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status models.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Len(t, status.RecentChanges, 1)
	assert.Len(t, status.RevertableChanges, 1)
}

func TestSnapshotEndpoints(t *testing.T) {
	srv, client, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/snapshots", map[string]any{
		"description": "quarterly checkpoint",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeResult(t, resp)
	require.NotEmpty(t, created.SnapshotID)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/snapshots", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Snapshots []*models.SnapshotInfo `json:"snapshots"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Snapshots, 1)
	assert.Equal(t, "quarterly checkpoint", listed.Snapshots[0].Description)

	// Restore is gated: the endpoint parks it pending confirmation.
	client.Seed(models.TableContributions, []models.Row{
		{"C001", "F001", "KA", "2026", "99999", "", "tampered", ""},
		{"C002", "F002", "TN", "2026", "40000", "", "pledged", ""},
	})
	resp = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/snapshots/%s/restore", srv.URL, created.SnapshotID), nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	pending := decodeResult(t, resp)
	require.NotEmpty(t, pending.PendingID)

	resp = doRequest(t, http.MethodPost,
		fmt.Sprintf("%s/api/v1/operations/%s/confirm", srv.URL, pending.PendingID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "25000", client.Rows(models.TableContributions)[0][4])
}

func TestGetTableRows(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tables/contributions/rows", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Table   models.Table `json:"table"`
		Columns []string     `json:"columns"`
		Rows    []models.Row `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.TableContributions, body.Table)
	assert.Equal(t, "id", body.Columns[0])
	require.Len(t, body.Rows, 2)
}

func TestGetUnknownTableRows(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tables/invoices/rows", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMutationInvalidatesCachedReads(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Prime the cache.
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/tables/contributions/rows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/commands", map[string]any{
		"command": map[string]any{
			"action":     "create",
			"target":     "contributions",
			"parameters": map[string]any{"id": "C003", "funder_id": "F003"},
		},
	})
	require.True(t, decodeResult(t, resp).Success)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/tables/contributions/rows", nil)
	var body struct {
		Rows []models.Row `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Rows, 3, "read after write sees the new record")
}
