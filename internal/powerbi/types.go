// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package powerbi talks to the Power BI REST API for push datasets.
// It maps source column types onto the Power BI column model and wraps the
// dataset, table and group endpoints behind typed operations.
package powerbi

import (
	"strings"
)

const (
	// DefaultBaseURL is the public cloud REST root for the signed-in user.
	DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"
	// DefaultAppURL is where datasets are opened in a browser.
	DefaultAppURL = "https://app.powerbi.com"
	// DefaultTable is the table name used when the job does not set one.
	DefaultTable = "dss-data"
	// DefaultWorkspace names the signed-in user's personal workspace.
	DefaultWorkspace = "My workspace"
)

// DataType is a Power BI column data type as it appears on the wire.
type DataType string

const (
	String   DataType = "String"
	Int64    DataType = "Int64"
	Double   DataType = "Double"
	Boolean  DataType = "Boolean"
	DateTime DataType = "dateTime"
)

var typeMap = map[string]DataType{
	"boolean":  Boolean,
	"tinyint":  Int64,
	"smallint": Int64,
	"int":      Int64,
	"bigint":   Int64,
	"float":    Double,
	"double":   Double,
	"date":     DateTime,
	"string":   String,
	"array":    String,
	"map":      String,
	"object":   String,
}

// MapType returns the Power BI type for a source column type.
// Unknown types map to String.
func MapType(sourceType string) DataType {
	if t, ok := typeMap[strings.ToLower(strings.TrimSpace(sourceType))]; ok {
		return t
	}
	return String
}

// IsIntegerType reports whether sourceType is one of the integer source types.
func IsIntegerType(sourceType string) bool {
	return MapType(sourceType) == Int64
}

// Column is one source column.
type Column struct {
	Name       string
	SourceType string
}

// Type returns the mapped Power BI type.
func (c Column) Type() DataType { return MapType(c.SourceType) }

// Schema is the ordered list of columns of a source.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema from name/type pairs.
func NewSchema(cols ...Column) Schema {
	out := make([]Column, len(cols))
	copy(out, cols)
	return Schema{Columns: out}
}

func (s Schema) Len() int { return len(s.Columns) }

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// DateColumns returns the names of columns mapped to DateTime.
func (s Schema) DateColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Type() == DateTime {
			out = append(out, c.Name)
		}
	}
	return out
}

// DatasetRef identifies a remote dataset. GroupID is empty for the personal workspace.
type DatasetRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id,omitempty"`
}

// URL returns the browser address of the dataset.
func (d DatasetRef) URL() string {
	group := d.GroupID
	if group == "" {
		group = "me"
	}
	return DefaultAppURL + "/groups/" + group + "/datasets/" + d.ID
}

// Group is a Power BI workspace.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PushResult describes one row push. Err is set for transport failures, Status
// for HTTP responses.
type PushResult struct {
	Rows   int
	Status int
	Body   string
	Err    error
}

// OK reports whether the push was accepted.
func (r PushResult) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}
