// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package export_test

import (
	"context"
	"encoding/json"

	"pbiexport/cli/internal/powerbi"
)

type push struct {
	DatasetID string
	Table     string
	Rows      int
	Body      []map[string]any
}

// fakeClient records every call made by a session.
type fakeClient struct {
	groups     map[string]string
	datasets   map[string][]string
	groupID    string
	pushStatus int

	calls   []string
	pushes  []push
	created []powerbi.DatasetRef
	err     map[string]error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		groups:     map[string]string{},
		datasets:   map[string][]string{},
		pushStatus: 200,
		err:        map[string]error{},
	}
}

func (f *fakeClient) ResolveGroupID(_ context.Context, workspace string) (string, error) {
	f.calls = append(f.calls, "ResolveGroupID")
	if err := f.err["ResolveGroupID"]; err != nil {
		return "", err
	}
	return f.groups[workspace], nil
}

func (f *fakeClient) SetGroupID(id string) { f.groupID = id }
func (f *fakeClient) GroupID() string      { return f.groupID }

func (f *fakeClient) ListDatasetIDsByName(_ context.Context, name string) ([]string, error) {
	f.calls = append(f.calls, "ListDatasetIDsByName")
	if err := f.err["ListDatasetIDsByName"]; err != nil {
		return nil, err
	}
	return append([]string{}, f.datasets[name]...), nil
}

func (f *fakeClient) CreateDataset(_ context.Context, name, table string, _ powerbi.Schema) (powerbi.DatasetRef, error) {
	f.calls = append(f.calls, "CreateDataset")
	ref := powerbi.DatasetRef{ID: "NEW-" + name, Name: name, GroupID: f.groupID}
	f.created = append(f.created, ref)
	return ref, nil
}

func (f *fakeClient) DeleteRows(_ context.Context, id, table string) error {
	f.calls = append(f.calls, "DeleteRows:"+id+"/"+table)
	return f.err["DeleteRows"]
}

func (f *fakeClient) RefreshDataset(_ context.Context, id string) error {
	f.calls = append(f.calls, "RefreshDataset:"+id)
	return f.err["RefreshDataset"]
}

func (f *fakeClient) PushRows(_ context.Context, id, table string, body []byte, rows int) powerbi.PushResult {
	f.calls = append(f.calls, "PushRows")
	p := push{DatasetID: id, Table: table, Rows: rows}
	_ = json.Unmarshal(body, &p.Body)
	f.pushes = append(f.pushes, p)
	if f.pushStatus >= 400 {
		return powerbi.PushResult{Rows: rows, Status: f.pushStatus, Body: `{"error":"rejected"}`}
	}
	return powerbi.PushResult{Rows: rows, Status: f.pushStatus}
}

func (f *fakeClient) called(name string) bool {
	for _, c := range f.calls {
		if c == name || len(c) > len(name) && c[:len(name)+1] == name+":" {
			return true
		}
	}
	return false
}
