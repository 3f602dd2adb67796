// Package query provides SQL query building utilities with projection mapping.
package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownField is returned when a projection is asked for a view name it does not map.
var ErrUnknownField = errors.New("unknown field")

// ProjectionMap maps view property names to qualified column references (alias.column).
// It defines the table, alias, and column mappings for SQL query construction.
type ProjectionMap struct {
	schema    string
	table     string
	alias     string
	columns   map[string]string
	viewNames []string
}

// NewProjectionMap creates a ProjectionMap for the given schema, table, and alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema:    schema,
		table:     table,
		alias:     alias,
		columns:   make(map[string]string),
		viewNames: make([]string, 0),
	}
}

// Project adds a column mapping from database column to view property name.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	p.columns[viewName] = fmt.Sprintf("%s.%s", p.alias, column)
	p.viewNames = append(p.viewNames, viewName)
	return p
}

// Table returns the fully qualified table reference with alias (schema.table alias).
func (p *ProjectionMap) Table() string {
	return fmt.Sprintf("%s.%s %s", p.schema, p.table, p.alias)
}

// Column returns the qualified column for a view property name, or the input if not mapped.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

// Columns returns all mapped columns as a comma-separated string.
func (p *ProjectionMap) Columns() string {
	cols := make([]string, len(p.viewNames))
	for i, name := range p.viewNames {
		cols[i] = p.columns[name]
	}
	return strings.Join(cols, ", ")
}

// ViewNames returns the mapped view property names in projection order.
func (p *ProjectionMap) ViewNames() []string {
	return append([]string(nil), p.viewNames...)
}

// Subset returns a projection restricted to the given view names, kept in the
// original projection order. Required names are always included. An empty
// names list returns the full projection.
func (p *ProjectionMap) Subset(names []string, required ...string) (*ProjectionMap, error) {
	if len(names) == 0 {
		return p, nil
	}

	want := make(map[string]bool, len(names)+len(required))
	for _, name := range slices.Concat(names, required) {
		if _, ok := p.columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		want[name] = true
	}

	sub := NewProjectionMap(p.schema, p.table, p.alias)
	for _, name := range p.viewNames {
		if want[name] {
			sub.columns[name] = p.columns[name]
			sub.viewNames = append(sub.viewNames, name)
		}
	}
	return sub, nil
}
