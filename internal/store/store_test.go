package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/retro-board/internal/model"
)

func board() *model.Board {
	return &model.Board{
		ID: 1,
		Columns: []*model.Column{
			{ID: 5, Items: []*model.Item{{ID: 1}, {ID: 2}}},
			{ID: 6, Items: []*model.Item{{ID: 3}}},
		},
	}
}

func TestUpdate_RestoresIndexInvariant(t *testing.T) {
	t.Parallel()
	s := New()
	s.Update("load", func(st *State) { st.Board = board() })

	// Reverse the first column's items without touching any index field.
	s.Update("reorder", func(st *State) {
		items := st.Board.Columns[0].Items
		items[0], items[1] = items[1], items[0]
	})

	s.View(func(st *State) {
		for ci, column := range st.Board.Columns {
			for ri, item := range column.Items {
				require.Equal(t, ci, item.ColumnIndex)
				require.Equal(t, ri, item.RowIndex)
			}
		}
		require.Equal(t, int64(2), st.Board.Columns[0].Items[0].ID)
	})
}

func TestUpdate_PublishesChange(t *testing.T) {
	t.Parallel()
	s := New()
	ch := s.Subscribe(4)

	s.Update("load", func(st *State) { st.Board = board() })

	select {
	case change := <-ch:
		require.Equal(t, "load", change.Op)
	default:
		t.Fatal("expected a change notification")
	}
}

func TestUpdateIf_DiscardsSupersededGeneration(t *testing.T) {
	t.Parallel()
	s := New()

	stale := s.BeginLoad()
	current := s.BeginLoad()

	require.False(t, s.UpdateIf(stale, "load", func(st *State) { st.Board = board() }))
	s.View(func(st *State) { require.Nil(t, st.Board) })

	require.True(t, s.UpdateIf(current, "load", func(st *State) { st.Board = board() }))
	s.View(func(st *State) { require.NotNil(t, st.Board) })
}

func TestReorderGuard_SingleFlight(t *testing.T) {
	t.Parallel()
	s := New()

	require.True(t, s.TryBeginColumnsReorder())
	require.False(t, s.TryBeginColumnsReorder())
	s.EndColumnsReorder()
	require.True(t, s.TryBeginColumnsReorder())
}

func TestSnapshotPositions(t *testing.T) {
	t.Parallel()
	s := New()
	s.Update("load", func(st *State) {
		st.Board = board()
	})
	s.Update("snapshot", func(st *State) { st.SnapshotPositions() })

	s.View(func(st *State) {
		require.Equal(t, model.Position{ColumnID: 5, RowIndex: 1}, st.LastSyncedPositions[2])
		require.Equal(t, model.Position{ColumnID: 6, RowIndex: 0}, st.LastSyncedPositions[3])
	})
}

func TestCommentCache_SetMergeRemove(t *testing.T) {
	t.Parallel()
	s := New()
	s.Update("load", func(st *State) { st.Board = board() })

	c1 := model.Comment{ID: 100, ItemID: 3, Text: "a"}
	c2 := model.Comment{ID: 101, ItemID: 3, Text: "b"}

	s.Update("comments", func(st *State) {
		st.SetCommentsCache(3, []model.Comment{c1, c2, {ID: 100, ItemID: 3, Text: "a2"}})
	})
	s.View(func(st *State) {
		require.Len(t, st.CommentsByItemID[3], 2)
		require.Equal(t, "a2", st.CommentsByItemID[3][0].Text)
		require.Equal(t, int64(3), st.ItemIDByCommentID[101])
		_, item := st.Board.FindItem(3)
		require.Equal(t, 2, item.CommentsCount)
	})

	s.Update("merge", func(st *State) {
		st.MergeCommentCache(model.Comment{ID: 102, ItemID: 3, Text: "c"})
	})
	s.View(func(st *State) {
		require.Len(t, st.CommentsByItemID[3], 3)
	})

	// Merging into an item with no cache is a no-op.
	s.Update("merge", func(st *State) {
		st.MergeCommentCache(model.Comment{ID: 200, ItemID: 1, Text: "x"})
	})
	s.View(func(st *State) {
		_, ok := st.CommentsByItemID[1]
		require.False(t, ok)
	})

	s.Update("remove", func(st *State) {
		// Item id omitted: resolved through the reverse index.
		st.RemoveCommentFromCache(101, 0)
	})
	s.View(func(st *State) {
		require.Len(t, st.CommentsByItemID[3], 2)
		_, ok := st.ItemIDByCommentID[101]
		require.False(t, ok)
		_, item := st.Board.FindItem(3)
		require.Equal(t, 2, item.CommentsCount)
	})
}

func TestResetBoard_DropsDerivedCaches(t *testing.T) {
	t.Parallel()
	s := New()
	s.Update("load", func(st *State) {
		st.Board = board()
		st.ActiveItemID = 3
		st.SnapshotPositions()
		st.SetCommentsCache(3, []model.Comment{{ID: 100, ItemID: 3}})
	})

	s.Update("reset", func(st *State) { st.ResetBoard() })

	s.View(func(st *State) {
		require.Nil(t, st.Board)
		require.Zero(t, st.ActiveItemID)
		require.Empty(t, st.LastSyncedPositions)
		require.Empty(t, st.CommentsByItemID)
		require.Empty(t, st.ItemIDByCommentID)
	})
}
