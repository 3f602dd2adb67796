package documents

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// FieldSet maps dotted field paths to new values for a sparse update.
// Paths under extracted_details address into the JSON document and may
// include array indexes (extracted_details.line_items.2.item_code).
// Top-level paths name scalar columns.
type FieldSet map[string]any

const detailsRoot = "extracted_details"

var columns = map[string]bool{
	"classification":    true,
	"gl_classification": true,
	"posted_doc_entry":  true,
}

// LinePath returns the dotted path of field on line item index.
func LinePath(index int, field string) string {
	return detailsRoot + ".line_items." + strconv.Itoa(index) + "." + field
}

// VendorCodePath is the dotted path of the resolved vendor code.
const VendorCodePath = detailsRoot + ".vendor_details.code"

// buildUpdate compiles fields into a versioned UPDATE statement.
// Arguments $1 and $2 are the document id and the expected version.
func buildUpdate(id int64, version int, fields FieldSet) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty field set", ErrInvalidPath)
	}

	args := []any{id, version}
	var sets []string
	details := detailsRoot

	for _, path := range slices.Sorted(maps.Keys(fields)) {
		segments := strings.Split(path, ".")
		if slices.Contains(segments, "") {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}

		if segments[0] != detailsRoot {
			if len(segments) != 1 || !columns[path] {
				return "", nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
			}
			args = append(args, fields[path])
			sets = append(sets, fmt.Sprintf("%s = $%d", path, len(args)))
			continue
		}

		if len(segments) == 1 {
			return "", nil, fmt.Errorf("%w: %q replaces the whole document", ErrInvalidPath, path)
		}

		value, err := json.Marshal(fields[path])
		if err != nil {
			return "", nil, fmt.Errorf("encode %s: %w", path, err)
		}

		args = append(args, textArray(segments[1:]), string(value))
		details = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", details, len(args)-1, len(args))
	}

	if details != detailsRoot {
		sets = append(sets, detailsRoot+" = "+details)
	}
	sets = append(sets, "version = version + 1", "updated_at = NOW()")

	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = $1 AND version = $2 RETURNING version",
		table,
		strings.Join(sets, ", "),
	)
	return q, args, nil
}

// textArray renders segments as a Postgres text[] literal.
func textArray(segments []string) string {
	quoted := make([]string, len(segments))
	for i, s := range segments {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		quoted[i] = `"` + s + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}
