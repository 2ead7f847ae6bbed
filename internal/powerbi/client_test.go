// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package powerbi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "pbiexport/cli/internal/errors"
	"pbiexport/cli/internal/powerbi"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	CType  string
	Body   string
}

// fakeService is a minimal Power BI REST endpoint backed by a routing table.
type fakeService struct {
	mu       sync.Mutex
	requests []recorded
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recorded{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Auth:   r.Header.Get("Authorization"),
			CType:  r.Header.Get("Content-Type"),
			Body:   string(b),
		})
		f.mu.Unlock()

		if h, ok := f.routes[r.Method+" "+r.URL.EscapedPath()]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) on(method, path string, status int, body string) {
	f.routes[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (f *fakeService) Requests() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newClient(srv *httptest.Server) *powerbi.Client {
	return powerbi.New("tok-123", powerbi.WithBaseURL(srv.URL+"/"), powerbi.WithHTTPClient(srv.Client()))
}

func TestResolveGroupID(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodGet, "/groups", 200, `{"value":[{"id":"G1","name":"Sales Team"},{"id":"G2","name":"sales team"}]}`)
	c := newClient(srv)
	ctx := context.Background()

	t.Run("default workspace needs no call", func(t *testing.T) {
		for _, name := range []string{"", "My workspace", "my WORKSPACE"} {
			id, err := c.ResolveGroupID(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, "", id)
		}
		assert.Empty(t, f.Requests())
	})

	t.Run("case-insensitive first match", func(t *testing.T) {
		id, err := c.ResolveGroupID(ctx, "SALES TEAM")
		require.NoError(t, err)
		assert.Equal(t, "G1", id)
		assert.Equal(t, "Bearer tok-123", f.Requests()[0].Auth)
	})

	t.Run("unknown workspace", func(t *testing.T) {
		_, err := c.ResolveGroupID(ctx, "Finance")
		assert.True(t, errs.HasKind(err, errs.WorkspaceNotFound))
	})
}

func TestResolveGroupIDRemoteFailure(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodGet, "/groups", 401, `{"error":{"code":"TokenExpired"}}`)

	_, err := newClient(srv).ResolveGroupID(context.Background(), "Finance")
	require.Error(t, err)

	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.RemoteAPI, e.Kind)
	assert.Equal(t, 401, e.Status)
	assert.Contains(t, e.Body, "TokenExpired")
}

func TestListDatasetIDsByName(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodGet, "/groups/G1/datasets", 200,
		`{"value":[{"id":"D1","name":"Sales"},{"id":"D2","name":"Other"},{"id":"D3","name":"Sales"}]}`)
	c := newClient(srv)
	c.SetGroupID("G1")

	ids, err := c.ListDatasetIDsByName(context.Background(), "Sales")
	require.NoError(t, err)
	assert.Equal(t, []string{"D1", "D3"}, ids)

	ids, err = c.ListDatasetIDsByName(context.Background(), "sales")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestCreateDataset(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodPost, "/datasets", 201, `{"id":"D9","name":"Sales"}`)
	c := newClient(srv)

	schema := powerbi.NewSchema(
		powerbi.Column{Name: "id", SourceType: "bigint"},
		powerbi.Column{Name: "at", SourceType: "date"},
		powerbi.Column{Name: "tags", SourceType: "array"},
	)
	ref, err := c.CreateDataset(context.Background(), "Sales", "dss-data", schema)
	require.NoError(t, err)
	assert.Equal(t, powerbi.DatasetRef{ID: "D9", Name: "Sales"}, ref)

	require.Len(t, f.Requests(), 1)
	assert.Equal(t, "application/json", f.Requests()[0].CType)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.Requests()[0].Body), &body))
	assert.Equal(t, "Sales", body["name"])
	assert.Equal(t, "PushStreaming", body["defaultMode"])
	tables := body["tables"].([]any)
	require.Len(t, tables, 1)
	table := tables[0].(map[string]any)
	assert.Equal(t, "dss-data", table["name"])
	assert.Equal(t, []any{
		map[string]any{"name": "id", "dataType": "Int64"},
		map[string]any{"name": "at", "dataType": "dateTime"},
		map[string]any{"name": "tags", "dataType": "String"},
	}, table["columns"])
}

func TestCreateDatasetWithoutID(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodPost, "/datasets", 200, `{"name":"Sales"}`)

	_, err := newClient(srv).CreateDataset(context.Background(), "Sales", "dss-data", powerbi.NewSchema())
	var e *errs.E
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.DatasetCreation, e.Kind)
	assert.Equal(t, `{"name":"Sales"}`, e.Body)
}

func TestStructuralCallsFailOnStatus(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodDelete, "/datasets/D1", 404, `not found`)
	f.on(http.MethodDelete, "/datasets/D1/tables/dss-data/rows", 403, `forbidden`)
	f.on(http.MethodPost, "/datasets/D1/refreshes", 400, `push datasets cannot be refreshed`)
	c := newClient(srv)
	ctx := context.Background()

	for name, err := range map[string]error{
		"delete dataset": c.DeleteDataset(ctx, "D1"),
		"delete rows":    c.DeleteRows(ctx, "D1", "dss-data"),
		"refresh":        c.RefreshDataset(ctx, "D1"),
	} {
		assert.True(t, errs.HasKind(err, errs.RemoteAPI), name)
	}
}

func TestGroupScopedPaths(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodDelete, "/groups/G1/datasets/D1/tables/my%20table/rows", 200, ``)
	f.on(http.MethodPost, "/groups/G1/datasets/D1/refreshes", 202, ``)
	c := powerbi.New("tok", powerbi.WithBaseURL(srv.URL), powerbi.WithGroupID("G1"))
	ctx := context.Background()

	require.NoError(t, c.DeleteRows(ctx, "D1", "my table"))
	require.NoError(t, c.RefreshDataset(ctx, "D1"))
	assert.Equal(t, "G1", c.GroupID())
}

func TestPushRows(t *testing.T) {
	f, srv := newFakeService(t)
	f.on(http.MethodPost, "/datasets/D1/tables/dss-data/rows", 200, `{}`)
	f.on(http.MethodPost, "/datasets/D2/tables/dss-data/rows", 400, `{"error":"bad row"}`)
	c := newClient(srv)
	ctx := context.Background()

	body := []byte(`[{"a":1}]`)
	res := c.PushRows(ctx, "D1", "dss-data", body, 1)
	assert.True(t, res.OK())
	assert.Equal(t, string(body), f.Requests()[0].Body)
	assert.Equal(t, "application/json", f.Requests()[0].CType)

	res = c.PushRows(ctx, "D2", "dss-data", body, 1)
	assert.False(t, res.OK())
	assert.Equal(t, 400, res.Status)
	assert.Equal(t, `{"error":"bad row"}`, res.Body)
	assert.NoError(t, res.Err)
}

func TestPushRowsTransportFailure(t *testing.T) {
	_, srv := newFakeService(t)
	c := newClient(srv)
	srv.Close()

	res := c.PushRows(context.Background(), "D1", "dss-data", []byte(`[]`), 0)
	assert.False(t, res.OK())
	assert.Error(t, res.Err)
}
