package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundwise/steward/internal/models"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "doc-1", "secret-token")
}

func TestGetRows(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/documents/doc-1/tables/contributions/rows", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]any{
			"rows": []models.Row{
				{"C001", "F001", "KA", "2026", "25000", "", "received", ""},
			},
		})
	})

	rows, err := c.GetRows(context.Background(), models.TableContributions)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C001", rows[0][0])
}

func TestAppendRows(t *testing.T) {
	var got struct {
		Rows []models.Row `json:"rows"`
	}
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/documents/doc-1/tables/prospects/rows:append", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	err := c.AppendRows(context.Background(), models.TableProspects, []models.Row{
		{"P001", "Acme Trust", "KA", "outreach", "10000", "0.4", ""},
	})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Acme Trust", got.Rows[0][1])
}

func TestUpdateRow(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/documents/doc-1/tables/contributions/rows/2", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	err := c.UpdateRow(context.Background(), models.TableContributions, 2,
		models.Row{"C003", "F001", "KA", "2025", "15000", "", "received", ""})
	require.NoError(t, err)
}

func TestErrorResponsesBecomeAPIErrors(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no such table"})
	})

	_, err := c.GetRows(context.Background(), models.Table("bogus"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
}

func TestAuthErrorDetection(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetRows(context.Background(), models.TableContributions)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestPing(t *testing.T) {
	c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents/doc-1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.Ping(context.Background()))
}
