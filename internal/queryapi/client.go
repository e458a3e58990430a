package queryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 4 << 10

// Client talks to the query execution API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client. A nil httpClient gets a 30 second timeout.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("query api url is required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("access token is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient}, nil
}

// List returns the saved queries of the token's owner.
func (c *Client) List(ctx context.Context) ([]Query, error) {
	var out struct {
		Queries []Query `json:"queries"`
	}
	if err := c.do(ctx, "list queries", http.MethodGet, "/queries/list", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Queries, nil
}

// Create saves a named query.
func (c *Client) Create(ctx context.Context, name, query string) (*Entry, error) {
	if name == "" || query == "" {
		return nil, errors.New("query name and body are required")
	}
	body := map[string]string{"name": name, "query": query}
	var out Entry
	if err := c.do(ctx, "create query "+name, http.MethodPost, "/queries/", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a saved query and returns the id of the deleted entry.
func (c *Client) Delete(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("query name is required")
	}
	var out Entry
	if err := c.do(ctx, "delete query "+name, http.MethodDelete, "/queries/"+url.PathEscape(name), nil, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Exec triggers an asynchronous execution of the named query and returns the pre-signed
// location its results will be written to.
func (c *Client) Exec(ctx context.Context, req Request) (string, error) {
	if req.Name == "" {
		return "", errors.New("query name is required")
	}
	body := map[string]any{"params": req.Params.Clone()}
	var out struct {
		URL string `json:"url"`
	}
	path := "/queries/" + url.PathEscape(req.Name) + "/update_data"
	if err := c.do(ctx, "exec query "+req.Name, http.MethodPost, path, body, http.StatusOK, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("exec query %s: response missing url", req.Name)
	}
	return out.URL, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in any, wantStatus int, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
