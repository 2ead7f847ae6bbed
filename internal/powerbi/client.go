// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/logging"
)

// Client implements the push dataset operations over the Power BI REST API.
// It owns the bearer token and the group the dataset calls are scoped to.
type Client struct {
	// baseURL is the API root, e.g. "https://api.powerbi.com/v1.0/myorg"
	baseURL string
	// token is sent as "Authorization: Bearer <token>" on every request
	token string
	// groupID scopes dataset URLs to /groups/{id}; empty means the personal workspace
	groupID string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used by tests and sovereign clouds.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithGroupID binds the client to a workspace id up front.
func WithGroupID(id string) Option {
	return func(c *Client) { c.groupID = id }
}

// New creates a client authenticated with token.
// Requests time out after 30 seconds unless another http.Client is supplied.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetGroupID scopes subsequent dataset calls to a workspace.
func (c *Client) SetGroupID(id string) { c.groupID = id }

func (c *Client) GroupID() string { return c.groupID }

// datasetsPath returns the dataset collection path for the bound group.
func (c *Client) datasetsPath() string {
	if c.groupID == "" {
		return "/datasets"
	}
	return "/groups/" + url.PathEscape(c.groupID) + "/datasets"
}

func (c *Client) datasetPath(id string) string {
	return c.datasetsPath() + "/" + url.PathEscape(id)
}

func (c *Client) rowsPath(id, table string) string {
	return c.datasetPath(id) + "/tables/" + url.PathEscape(table) + "/rows"
}

// do sends one request and returns the status and the full response body.
// A non-nil error means the exchange itself failed.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	endpoint := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, goerr.Wrap(err, "failed to build request", goerr.V("method", method), goerr.V("url", endpoint))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RequestId", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, goerr.Wrap(err, "request failed", goerr.V("method", method), goerr.V("url", endpoint))
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, goerr.Wrap(err, "failed to read response body",
			goerr.V("method", method), goerr.V("url", endpoint), goerr.V("status", resp.StatusCode))
	}

	c.logger.Debug("power bi request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)),
	)
	return resp.StatusCode, b, nil
}

// call runs a structural request and maps transport failures and statuses >= 400
// to a remote_api error described by what.
func (c *Client) call(ctx context.Context, method, path string, body []byte, what string) ([]byte, error) {
	status, resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, errs.Wrap(errs.RemoteAPI, what, err)
	}
	if status >= 400 {
		return nil, errs.API(what, status, strings.TrimSpace(string(resp)))
	}
	return resp, nil
}

type listResponse[T any] struct {
	Value []T `json:"value"`
}

// ListGroups returns the workspaces visible to the token.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	b, err := c.call(ctx, http.MethodGet, "/groups", nil, "listing workspaces")
	if err != nil {
		return nil, err
	}
	var out listResponse[Group]
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errs.Wrap(errs.RemoteAPI, "listing workspaces", goerr.Wrap(err, "invalid response", goerr.V("body", string(b))))
	}
	return out.Value, nil
}

// ResolveGroupID maps a workspace name to its group id.
// An empty name or "My workspace" resolves to "" (the personal workspace).
// Names are compared case-insensitively and the first match wins.
func (c *Client) ResolveGroupID(ctx context.Context, workspace string) (string, error) {
	name := strings.TrimSpace(workspace)
	if name == "" || strings.EqualFold(name, DefaultWorkspace) {
		return "", nil
	}

	groups, err := c.ListGroups(ctx)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if strings.EqualFold(g.Name, name) {
			return g.ID, nil
		}
	}
	return "", errs.Newf(errs.WorkspaceNotFound, "no workspace named %q", name)
}

// ListDatasets returns the datasets in the bound workspace in service order.
func (c *Client) ListDatasets(ctx context.Context) ([]DatasetRef, error) {
	b, err := c.call(ctx, http.MethodGet, c.datasetsPath(), nil, "listing datasets")
	if err != nil {
		return nil, err
	}
	var out listResponse[DatasetRef]
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errs.Wrap(errs.RemoteAPI, "listing datasets", goerr.Wrap(err, "invalid response", goerr.V("body", string(b))))
	}
	for i := range out.Value {
		out.Value[i].GroupID = c.groupID
	}
	return out.Value, nil
}

// ListDatasetIDsByName returns the ids of datasets named exactly name.
// The result is empty, never nil, when nothing matches.
func (c *Client) ListDatasetIDsByName(ctx context.Context, name string) ([]string, error) {
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, d := range datasets {
		if d.Name == name {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

type columnDef struct {
	Name     string   `json:"name"`
	DataType DataType `json:"dataType"`
}

type tableDef struct {
	Name    string      `json:"name"`
	Columns []columnDef `json:"columns"`
}

type createDatasetRequest struct {
	Name        string     `json:"name"`
	DefaultMode string     `json:"defaultMode"`
	Tables      []tableDef `json:"tables"`
}

// CreateDataset creates a push streaming dataset with a single table shaped like schema.
func (c *Client) CreateDataset(ctx context.Context, name, table string, schema Schema) (DatasetRef, error) {
	cols := make([]columnDef, 0, schema.Len())
	for _, col := range schema.Columns {
		cols = append(cols, columnDef{Name: col.Name, DataType: col.Type()})
	}
	body, err := json.Marshal(createDatasetRequest{
		Name:        name,
		DefaultMode: "PushStreaming",
		Tables:      []tableDef{{Name: table, Columns: cols}},
	})
	if err != nil {
		return DatasetRef{}, errs.Wrap(errs.DatasetCreation, "encoding dataset definition", err)
	}

	b, err := c.call(ctx, http.MethodPost, c.datasetsPath(), body, "creating dataset "+name)
	if err != nil {
		return DatasetRef{}, err
	}

	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if jerr := json.Unmarshal(b, &out); jerr != nil || out.ID == "" {
		e := errs.Newf(errs.DatasetCreation, "service returned no id for dataset %q", name)
		e.Body = strings.TrimSpace(string(b))
		return DatasetRef{}, e
	}

	ref := DatasetRef{ID: out.ID, Name: name, GroupID: c.groupID}
	c.logger.Info("dataset created", slog.String("dataset_id", ref.ID), slog.String("name", name))
	return ref, nil
}

// DeleteDataset removes a dataset and all of its tables.
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodDelete, c.datasetPath(id), nil, "deleting dataset "+id)
	return err
}

// DeleteRows empties a table while keeping the dataset and its id.
func (c *Client) DeleteRows(ctx context.Context, id, table string) error {
	_, err := c.call(ctx, http.MethodDelete, c.rowsPath(id, table), nil, "deleting rows of "+id+"/"+table)
	return err
}

// RefreshDataset triggers a refresh of the dataset.
func (c *Client) RefreshDataset(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodPost, c.datasetPath(id)+"/refreshes", nil, "refreshing dataset "+id)
	return err
}

// PushRows posts an encoded JSON array of rows to table. It never fails the
// caller: transport errors and rejected batches are logged and reported in the
// returned PushResult.
func (c *Client) PushRows(ctx context.Context, id, table string, body []byte, rows int) PushResult {
	status, resp, err := c.do(ctx, http.MethodPost, c.rowsPath(id, table), body)
	res := PushResult{Rows: rows, Status: status, Body: strings.TrimSpace(string(resp)), Err: err}

	switch {
	case err != nil:
		c.logger.Error("row push failed",
			slog.String("dataset_id", id),
			slog.Int("rows", rows),
			logging.ErrAttr(err),
		)
	case status >= 400:
		c.logger.Error("row push rejected",
			slog.String("dataset_id", id),
			slog.Int("rows", rows),
			slog.Int("status", status),
			slog.String("body", res.Body),
		)
	default:
		c.logger.Debug("rows pushed", slog.String("dataset_id", id), slog.Int("rows", rows))
	}
	return res
}
