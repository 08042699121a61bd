package core

import (
	"fmt"
	"strconv"

	"github.com/fundwise/steward/internal/models"
)

// tableHandler translates payload field maps into rows of one table.
type tableHandler struct {
	table models.Table
	cols  []string
}

// handlerFor returns the handler for a concrete table.
func handlerFor(kind models.OperationKind, table models.Table) (*tableHandler, error) {
	cols, ok := models.Columns[table]
	if !ok {
		return nil, &UnknownTargetError{Kind: kind, Table: table}
	}
	return &tableHandler{table: table, cols: cols}, nil
}

// idOf returns the record id of a row. The id is always the first column.
func (h *tableHandler) idOf(row models.Row) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// blankRow returns an all-empty row, the store's representation of deleted.
func (h *tableHandler) blankRow() models.Row {
	return make(models.Row, len(h.cols))
}

// rowFromFields builds a full row for the given id and field map. Fields
// that do not name a column are rejected so typos never silently vanish.
func (h *tableHandler) rowFromFields(id string, fields map[string]any) (models.Row, error) {
	row := h.blankRow()
	row[0] = id
	for name, val := range fields {
		if name == "id" {
			continue
		}
		idx := h.colIndex(name)
		if idx < 0 {
			return nil, validationf("table %s has no column %q", h.table, name)
		}
		row[idx] = cellString(val)
	}
	return row, nil
}

// applyFields overwrites the named columns on a copy of row.
func (h *tableHandler) applyFields(row models.Row, fields map[string]any) (models.Row, error) {
	out := row.Clone()
	// Rows read from the store may be ragged; pad to the schema width.
	for len(out) < len(h.cols) {
		out = append(out, "")
	}
	for name, val := range fields {
		if name == "id" {
			continue
		}
		idx := h.colIndex(name)
		if idx < 0 {
			return nil, validationf("table %s has no column %q", h.table, name)
		}
		out[idx] = cellString(val)
	}
	return out, nil
}

// matches returns true if the row satisfies every field of the selector.
func (h *tableHandler) matches(row models.Row, where map[string]any) bool {
	if row.Blank() {
		return false
	}
	for name, val := range where {
		idx := h.colIndex(name)
		if idx < 0 || idx >= len(row) {
			return false
		}
		if row[idx] != cellString(val) {
			return false
		}
	}
	return true
}

// findByID returns the index of the non-blank row with the given id, or -1.
func (h *tableHandler) findByID(rows []models.Row, id string) int {
	for i, row := range rows {
		if !row.Blank() && h.idOf(row) == id {
			return i
		}
	}
	return -1
}

func (h *tableHandler) colIndex(name string) int {
	for i, c := range h.cols {
		if c == name {
			return i
		}
	}
	return -1
}

// cellString renders a payload value as a spreadsheet cell. JSON numbers
// arrive as float64; integral values are written without a decimal point.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// payloadString returns payload[key] as a string, if present.
func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key]; ok {
		return cellString(v)
	}
	return ""
}

// payloadIDs extracts the target record ids of a delete payload: either a
// single "id" or a list under "ids".
func payloadIDs(payload map[string]any) []string {
	if payload == nil {
		return nil
	}
	if raw, ok := payload["ids"].([]any); ok {
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			if s := cellString(v); s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	}
	if id := payloadString(payload, "id"); id != "" {
		return []string{id}
	}
	return nil
}

// payloadMap returns payload[key] as a field map, if present.
func payloadMap(payload map[string]any, key string) map[string]any {
	if payload == nil {
		return nil
	}
	if m, ok := payload[key].(map[string]any); ok {
		return m
	}
	return nil
}

// payloadRecords returns the list of field maps under "records".
func payloadRecords(payload map[string]any) []map[string]any {
	if payload == nil {
		return nil
	}
	raw, ok := payload["records"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// updateFields returns the fields an update payload sets: a nested "set"
// map when present, otherwise every key except the selector ones.
func updateFields(payload map[string]any) map[string]any {
	if set := payloadMap(payload, "set"); set != nil {
		return set
	}
	out := make(map[string]any)
	for k, v := range payload {
		switch k {
		case "id", "ids", "where", "set":
			continue
		}
		out[k] = v
	}
	return out
}
