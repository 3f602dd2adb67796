package query

import (
	"fmt"
	"strings"
)

type condition struct {
	clause string
	arg    any
}

// Builder constructs SELECT queries with automatic parameter numbering.
type Builder struct {
	projection *ProjectionMap
	conditions []condition
}

// NewBuilder creates a Builder for the given projection.
func NewBuilder(projection *ProjectionMap) *Builder {
	return &Builder{
		projection: projection,
		conditions: make([]condition, 0),
	}
}

// WhereEquals adds an equality condition on the mapped column for field.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	b.conditions = append(b.conditions, condition{
		clause: b.projection.Column(field) + " = $%d",
		arg:    value,
	})
	return b
}

// Build returns the SELECT query and its positional arguments.
func (b *Builder) Build() (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s", b.projection.Columns(), b.projection.Table())

	if len(b.conditions) == 0 {
		return sql, nil
	}

	clauses := make([]string, len(b.conditions))
	args := make([]any, len(b.conditions))
	for i, c := range b.conditions {
		clauses[i] = fmt.Sprintf(c.clause, i+1)
		args[i] = c.arg
	}

	return sql + " WHERE " + strings.Join(clauses, " AND "), args
}

// BuildSingle returns a SELECT query for a single record by ID.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return b.WhereEquals(idField, id).Build()
}
