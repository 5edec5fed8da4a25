package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/palette"
)

func TestPositiveInt_Coercions(t *testing.T) {
	t.Parallel()

	if n, ok := PositiveInt(float64(42)); !ok || n != 42 {
		t.Fatalf("float64: got %d ok=%v", n, ok)
	}
	if n, ok := PositiveInt("17"); !ok || n != 17 {
		t.Fatalf("string: got %d ok=%v", n, ok)
	}
	for _, v := range []any{0, -1, 1.5, "abc", nil, true, []any{}} {
		if _, ok := PositiveInt(v); ok {
			t.Fatalf("want rejection for %#v", v)
		}
	}
}

func TestColor_StringFansOut(t *testing.T) {
	t.Parallel()
	fallback := palette.Fallback(0)

	got := Color("  #abcdef ", fallback)
	require.Equal(t, model.ColumnColor{ColumnColor: "#abcdef", ItemColor: "#abcdef", ButtonColor: "#abcdef"}, got)

	require.Equal(t, fallback, Color("   ", fallback))
	require.Equal(t, fallback, Color(nil, fallback))
}

func TestColor_ObjectFillsMissingSlots(t *testing.T) {
	t.Parallel()
	fallback := palette.Fallback(1)

	got := Color(map[string]any{"columnColor": "#111111"}, fallback)
	require.Equal(t, "#111111", got.ColumnColor)
	require.Equal(t, "#111111", got.ItemColor)
	require.Equal(t, "#111111", got.ButtonColor)

	got = Color(map[string]any{"columnColor": "#111111", "itemColor": "#222222", "buttonColor": "#333333"}, fallback)
	require.Equal(t, model.ColumnColor{ColumnColor: "#111111", ItemColor: "#222222", ButtonColor: "#333333"}, got)
}

func TestColumnsJSON_NormalizesLoosePayload(t *testing.T) {
	t.Parallel()

	raw := json.RawMessage(`[
		{"id": 5, "name": "Went well", "color": "#aaa", "items": [
			{"id": 11, "description": "ship it", "likes": ["u1", 7, "u2"], "commentsCount": 3},
			{"description": "no id"}
		]},
		{"description": 42}
	]`)

	columns := ColumnsJSON(raw)
	require.Len(t, columns, 2)

	first := columns[0]
	require.Equal(t, int64(5), first.ID)
	require.Equal(t, "Went well", first.Name)
	require.Equal(t, "#aaa", first.Color.ColumnColor)
	require.Len(t, first.Items, 2)
	require.Equal(t, int64(11), first.Items[0].ID)
	require.Equal(t, "ship it", first.Items[0].Description)
	require.Equal(t, "ship it", first.Items[0].SyncedDescription)
	require.Equal(t, []string{"u1", "u2"}, first.Items[0].Likes)
	require.Equal(t, 3, first.Items[0].CommentsCount)
	require.False(t, first.Items[0].IsDraft)
	require.Equal(t, 0, first.Items[0].ColumnIndex)
	require.Equal(t, 1, first.Items[1].RowIndex)
	// Fallback id for the item that came without one.
	require.Equal(t, int64(2), first.Items[1].ID)

	second := columns[1]
	require.Equal(t, int64(2), second.ID)
	require.Equal(t, "Column 2", second.Name)
	require.Equal(t, palette.Fallback(1), second.Color)
}

func TestColumnsJSON_MalformedInput(t *testing.T) {
	t.Parallel()
	require.Nil(t, ColumnsJSON(json.RawMessage(`{"not":"a list"}`)))
	require.Nil(t, ColumnsJSON(json.RawMessage(`garbage`)))
}

func TestComment_RejectsIncompleteEntries(t *testing.T) {
	t.Parallel()

	full := map[string]any{
		"id": float64(3), "itemId": float64(9), "text": "ok",
		"createdAt": "2026-01-01T00:00:00Z",
		"creator":   map[string]any{"id": "u1", "email": "a@b.c", "name": " Ann "},
	}
	comment, ok := Comment(full)
	require.True(t, ok)
	require.Equal(t, int64(3), comment.ID)
	require.Equal(t, int64(9), comment.ItemID)
	require.Equal(t, "Ann", comment.Creator.Name)

	for _, key := range []string{"id", "itemId", "text", "createdAt", "creator"} {
		broken := map[string]any{}
		for k, v := range full {
			broken[k] = v
		}
		delete(broken, key)
		if _, ok := Comment(broken); ok {
			t.Fatalf("want rejection when %q is missing", key)
		}
	}
}

func TestUser_MergesOnlyPresentFields(t *testing.T) {
	t.Parallel()
	previous := model.User{ID: "u1", Email: "old@b.c", Name: "Old"}

	got := User(map[string]any{"email": "new@b.c"}, previous)
	require.Equal(t, "u1", got.ID)
	require.Equal(t, "new@b.c", got.Email)
	require.Equal(t, "Old", got.Name)

	// Present but empty clears the field.
	got = User(map[string]any{"name": "  "}, previous)
	require.Equal(t, "", got.Name)

	require.Equal(t, previous, User("not an object", previous))
}
