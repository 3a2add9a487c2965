package grist

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

	"github.com/recoco/recoco-relay/pkg/db/models"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
)

const responseBodyReadLimit int64 = 4 << 20

var (
	errAPIKeyRequired = errors.New("grist api key is required")
	errAPIURLRequired = errors.New("grist api url is required")
)

// Client wraps the tabular-store document API. One client per (base URL,
// document) pair.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	docID      string
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client, used by tests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequestTimeout overrides the default per-request timeout.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a document client.
func NewClient(apiURL, apiKey, docID string, opts ...ClientOption) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if trimmedURL == "" {
		return nil, errAPIURLRequired
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errAPIKeyRequired
	}
	if strings.TrimSpace(docID) == "" {
		return nil, errors.New("grist doc id is required")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    trimmedURL,
		apiKey:     apiKey,
		docID:      docID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewClientFromConfig builds a document client from a stored configuration.
func NewClientFromConfig(cfg *models.GristConfig, opts ...ClientOption) (*Client, error) {
	return NewClient(cfg.APIURL, cfg.APIKey, cfg.DocID, opts...)
}

// DocID returns the document this client is bound to.
func (c *Client) DocID() string { return c.docID }

// Column is the wire shape of one table column.
type Column struct {
	ID     string       `json:"id"`
	Fields ColumnFields `json:"fields"`
}

// ColumnFields carries the mutable attributes of a column.
type ColumnFields struct {
	Label string `json:"label,omitempty"`
	Type  string `json:"type,omitempty"`
	ColID string `json:"colId,omitempty"`
}

// Record is the wire shape of one table record.
type Record struct {
	ID     int64          `json:"id"`
	Fields map[string]any `json:"fields"`
}

// GetTables lists the table ids of the document.
func (c *Client) GetTables(ctx context.Context) ([]string, error) {
	var payload struct {
		Tables []struct {
			ID string `json:"id"`
		} `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, c.docPath("tables/"), nil, &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload.Tables))
	for _, table := range payload.Tables {
		ids = append(ids, table.ID)
	}
	return ids, nil
}

// TableExists reports whether the table is present in the document.
func (c *Client) TableExists(ctx context.Context, tableID string) (bool, error) {
	tables, err := c.GetTables(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range tables {
		if id == tableID {
			return true, nil
		}
	}
	return false, nil
}

// CreateTable creates a table with the given columns.
func (c *Client) CreateTable(ctx context.Context, tableID string, columns []Column) error {
	body := map[string]any{
		"tables": []map[string]any{
			{"id": tableID, "columns": columns},
		},
	}
	return c.do(ctx, http.MethodPost, c.docPath("tables/"), body, nil)
}

// GetTableColumns lists the columns of a table.
func (c *Client) GetTableColumns(ctx context.Context, tableID string) ([]Column, error) {
	var payload struct {
		Columns []Column `json:"columns"`
	}
	if err := c.do(ctx, http.MethodGet, c.tablePath(tableID, "columns/"), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Columns, nil
}

// CreateTableColumns adds columns to a table.
func (c *Client) CreateTableColumns(ctx context.Context, tableID string, columns []Column) error {
	return c.do(ctx, http.MethodPost, c.tablePath(tableID, "columns/"), map[string]any{"columns": columns}, nil)
}

// UpdateTableColumns patches existing columns of a table.
func (c *Client) UpdateTableColumns(ctx context.Context, tableID string, columns []Column) error {
	return c.do(ctx, http.MethodPatch, c.tablePath(tableID, "columns/"), map[string]any{"columns": columns}, nil)
}

// GetRecords queries records by exact-match filter.
func (c *Client) GetRecords(ctx context.Context, tableID string, filter map[string][]any) ([]Record, error) {
	path := c.tablePath(tableID, "records/")
	if len(filter) > 0 {
		encoded, err := json.Marshal(filter)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal records filter")
		}
		path += "?filter=" + url.QueryEscape(string(encoded))
	}

	var payload struct {
		Records []Record `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

// CreateRecords inserts the given field maps as new records, returning the
// assigned record ids in input order.
func (c *Client) CreateRecords(ctx context.Context, tableID string, records []map[string]any) ([]int64, error) {
	wire := make([]map[string]any, 0, len(records))
	for _, fields := range records {
		wire = append(wire, map[string]any{"fields": fields})
	}

	var payload struct {
		Records []struct {
			ID int64 `json:"id"`
		} `json:"records"`
	}
	if err := c.do(ctx, http.MethodPost, c.tablePath(tableID, "records/"), map[string]any{"records": wire}, &payload); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(payload.Records))
	for _, record := range payload.Records {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// UpdateRecords patches existing records keyed by record id.
func (c *Client) UpdateRecords(ctx context.Context, tableID string, records map[int64]map[string]any) error {
	wire := make([]map[string]any, 0, len(records))
	for id, fields := range records {
		wire = append(wire, map[string]any{"id": id, "fields": fields})
	}
	return c.do(ctx, http.MethodPatch, c.tablePath(tableID, "records/"), map[string]any{"records": wire}, nil)
}

// DeleteRecords removes the given record ids.
func (c *Client) DeleteRecords(ctx context.Context, tableID string, recordIDs []int64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, c.tablePath(tableID, "data/delete"), recordIDs, nil)
}

func (c *Client) docPath(suffix string) string {
	return fmt.Sprintf("%s/docs/%s/%s", c.baseURL, c.docID, suffix)
}

func (c *Client) tablePath(tableID, suffix string) string {
	return fmt.Sprintf("%s/docs/%s/tables/%s/%s", c.baseURL, c.docID, tableID, suffix)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal grist request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build grist request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute grist request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"grist request failed",
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode grist response")
	}
	return nil
}
