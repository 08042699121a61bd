// Package sheets implements the tabular store adapter: a thin row-oriented
// client for the spreadsheet service backing the fundraising tables.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fundwise/steward/internal/models"
)

// Client implements ClientInterface over the spreadsheet service REST API.
type Client struct {
	baseURL       string
	spreadsheetID string
	token         string
	httpClient    *http.Client
}

// NewClient creates a client for the given service URL and document.
func NewClient(baseURL, spreadsheetID, token string) *Client {
	return &Client{
		baseURL:       baseURL,
		spreadsheetID: spreadsheetID,
		token:         token,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) tableURL(table models.Table, path string) string {
	return fmt.Sprintf("%s/api/v1/documents/%s/tables/%s%s", c.baseURL, c.spreadsheetID, table, path)
}

func (c *Client) doJSON(ctx context.Context, op, method, url string, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(op, resp)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError converts an error response into an APIError.
func decodeError(op string, resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := resp.Status
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8192)).Decode(&payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}
	return &APIError{Status: resp.StatusCode, Op: op, Message: msg}
}

// GetRows returns all data rows of a table.
func (c *Client) GetRows(ctx context.Context, table models.Table) ([]models.Row, error) {
	var resp struct {
		Rows []models.Row `json:"rows"`
	}
	if err := c.doJSON(ctx, "get rows", "GET", c.tableURL(table, "/rows"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// AppendRows appends rows to the end of a table.
func (c *Client) AppendRows(ctx context.Context, table models.Table, rows []models.Row) error {
	req := map[string]interface{}{"rows": rows}
	return c.doJSON(ctx, "append rows", "POST", c.tableURL(table, "/rows:append"), req, nil)
}

// UpdateRow overwrites the row at the given zero-based data row index.
func (c *Client) UpdateRow(ctx context.Context, table models.Table, rowIndex int, row models.Row) error {
	req := map[string]interface{}{"row": row}
	url := c.tableURL(table, fmt.Sprintf("/rows/%d", rowIndex))
	return c.doJSON(ctx, "update row", "PUT", url, req, nil)
}

// Ping verifies connectivity and authentication.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/documents/%s", c.baseURL, c.spreadsheetID)
	return c.doJSON(ctx, "ping", "GET", url, nil, nil)
}
