// Package normalize converts arbitrary server payloads into canonical model
// shapes. Server responses and realtime events arrive as loosely-typed JSON;
// every accessor here validates and coerces a single field, discarding
// malformed entries instead of propagating zero values that only look valid.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/palette"
)

// AsMap reports v as a JSON object.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// PositiveInt coerces v to a positive integer id.
func PositiveInt(v any) (int64, bool) {
	n, ok := toInt64(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// Index coerces v to a non-negative array index.
func Index(v any) (int, bool) {
	n, ok := toInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}

// String reports v as a string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// TrimmedString reports v as a non-empty trimmed string.
func TrimmedString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Bool reports v as a bool.
func Bool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// StringSlice keeps the string entries of a JSON array, dropping the rest.
func StringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Color normalizes a column color payload: a bare string fans out to all
// three slots, an object fills missing slots from the column color, anything
// else falls back entirely.
func Color(v any, fallback model.ColumnColor) model.ColumnColor {
	if s, ok := TrimmedString(v); ok {
		return model.ColumnColor{ColumnColor: s, ItemColor: s, ButtonColor: s}
	}
	m, ok := AsMap(v)
	if !ok {
		return fallback
	}
	out := fallback
	if s, ok := TrimmedString(m["columnColor"]); ok {
		out.ColumnColor = s
	}
	if s, ok := TrimmedString(m["itemColor"]); ok {
		out.ItemColor = s
	} else {
		out.ItemColor = out.ColumnColor
	}
	if s, ok := TrimmedString(m["buttonColor"]); ok {
		out.ButtonColor = s
	} else {
		out.ButtonColor = out.ColumnColor
	}
	return out
}

// Item normalizes one raw card at the given structural position.
func Item(v any, columnIndex, rowIndex int) *model.Item {
	m, _ := AsMap(v)

	item := &model.Item{
		ColumnIndex: columnIndex,
		RowIndex:    rowIndex,
	}
	if id, ok := PositiveInt(m["id"]); ok {
		item.ID = id
	} else {
		item.ID = int64(rowIndex + 1)
	}
	if s, ok := String(m["description"]); ok {
		item.Description = s
		item.SyncedDescription = s
	}
	if s, ok := TrimmedString(m["createdAt"]); ok {
		item.CreatedAt = s
	}
	item.Likes = StringSlice(m["likes"])
	if n, ok := Index(m["commentsCount"]); ok {
		item.CommentsCount = n
	}
	if s, ok := String(m["color"]); ok {
		item.Color = s
	}
	return item
}

// Columns normalizes a raw column list, assigning fallback ids, names and
// palette colors deterministically by position.
func Columns(v any) []*model.Column {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}

	columns := make([]*model.Column, 0, len(raw))
	for columnIndex, entry := range raw {
		m, _ := AsMap(entry)

		column := &model.Column{
			Color: palette.Fallback(columnIndex),
		}
		if id, ok := PositiveInt(m["id"]); ok {
			column.ID = id
		} else {
			column.ID = int64(columnIndex + 1)
		}
		if s, ok := String(m["name"]); ok {
			column.Name = s
		} else {
			column.Name = "Column " + strconv.Itoa(columnIndex+1)
		}
		if s, ok := String(m["description"]); ok {
			column.Description = s
		}
		column.Color = Color(m["color"], palette.Fallback(columnIndex))

		if items, ok := m["items"].([]any); ok {
			column.Items = make([]*model.Item, 0, len(items))
			for rowIndex, rawItem := range items {
				column.Items = append(column.Items, Item(rawItem, columnIndex, rowIndex))
			}
		}
		columns = append(columns, column)
	}
	return columns
}

// ColumnsJSON decodes and normalizes a raw JSON column list. Malformed JSON
// yields an empty board section rather than an error; load flows treat that
// the same as an empty column list.
func ColumnsJSON(raw json.RawMessage) []*model.Column {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return Columns(v)
}

// Comment validates one raw comment; incomplete entries are rejected.
func Comment(v any) (model.Comment, bool) {
	m, ok := AsMap(v)
	if !ok {
		return model.Comment{}, false
	}

	id, okID := PositiveInt(m["id"])
	itemID, okItem := PositiveInt(m["itemId"])
	text, okText := String(m["text"])
	createdAt, okCreated := TrimmedString(m["createdAt"])
	creator, okCreator := AsMap(m["creator"])
	if !okID || !okItem || !okText || !okCreated || !okCreator {
		return model.Comment{}, false
	}

	creatorID, okCreatorID := TrimmedString(creator["id"])
	creatorEmail, okCreatorEmail := TrimmedString(creator["email"])
	if !okCreatorID || !okCreatorEmail {
		return model.Comment{}, false
	}

	name, _ := TrimmedString(creator["name"])
	return model.Comment{
		ID:        id,
		ItemID:    itemID,
		Text:      text,
		CreatedAt: createdAt,
		Creator: model.CommentCreator{
			ID:    creatorID,
			Email: creatorEmail,
			Name:  name,
		},
	}, true
}

// Comments validates a raw comment list, discarding malformed entries.
func Comments(v any) []model.Comment {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Comment, 0, len(raw))
	for _, entry := range raw {
		if comment, ok := Comment(entry); ok {
			out = append(out, comment)
		}
	}
	return out
}

// CommentsJSON decodes and validates a raw JSON comment list.
func CommentsJSON(raw json.RawMessage) []model.Comment {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return Comments(v)
}

// User normalizes a current-user payload; fields absent from the payload keep
// their previous values.
func User(v any, previous model.User) model.User {
	m, ok := AsMap(v)
	if !ok {
		return previous
	}
	out := previous
	if _, present := m["id"]; present {
		out.ID, _ = TrimmedString(m["id"])
	}
	if _, present := m["email"]; present {
		out.Email, _ = TrimmedString(m["email"])
	}
	if _, present := m["name"]; present {
		out.Name, _ = TrimmedString(m["name"])
	}
	return out
}

// PositiveIntSlice keeps the positive-integer entries of a JSON array.
func PositiveIntSlice(v any) []int64 {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, entry := range raw {
		if n, ok := PositiveInt(entry); ok {
			out = append(out, n)
		}
	}
	return out
}
