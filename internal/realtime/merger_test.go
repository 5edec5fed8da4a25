package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/store"
)

type fakeReloader struct {
	mu          sync.Mutex
	columnLoads []int64
	comments    map[int64][]model.Comment

	loaded chan int64
}

func newFakeReloader() *fakeReloader {
	return &fakeReloader{
		comments: make(map[int64][]model.Comment),
		loaded:   make(chan int64, 8),
	}
}

func (f *fakeReloader) LoadBoardColumns(_ context.Context, boardID int64) error {
	f.mu.Lock()
	f.columnLoads = append(f.columnLoads, boardID)
	f.mu.Unlock()
	f.loaded <- boardID
	return nil
}

func (f *fakeReloader) FetchItemComments(_ context.Context, itemID int64) ([]model.Comment, error) {
	return f.comments[itemID], nil
}

func (f *fakeReloader) waitColumnLoad(t *testing.T) int64 {
	t.Helper()
	select {
	case id := <-f.loaded:
		return id
	case <-time.After(time.Second):
		t.Fatal("expected a column refetch")
		return 0
	}
}

func (f *fakeReloader) requireNoColumnLoad(t *testing.T) {
	t.Helper()
	select {
	case id := <-f.loaded:
		t.Fatalf("unexpected column refetch for board %d", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func boardFixture() *model.Board {
	return &model.Board{
		ID:     7,
		Name:   "Sprint 12",
		TeamID: 3,
		Columns: []*model.Column{
			{ID: 10, Name: "Went well", Items: []*model.Item{
				{ID: 100, Description: "good pairing"},
				{ID: 101, Description: "fast builds"},
			}},
			{ID: 20, Name: "To improve", Items: []*model.Item{
				{ID: 200, Description: "flaky tests"},
			}},
		},
	}
}

func newTestMerger(t *testing.T, board *model.Board) (*Merger, *store.Store, *fakeReloader) {
	t.Helper()
	st := store.New()
	st.Update("test.load", func(s *store.State) {
		s.Board = board
		if board != nil {
			s.SnapshotPositions()
		}
	})
	loader := newFakeReloader()
	return NewMerger(st, loader, zap.NewNop()), st, loader
}

func handle(m *Merger, event string, payload any) {
	data, _ := json.Marshal(payload)
	m.Handle(context.Background(), event, data)
}

func TestHandle_StaleBoardEventIgnored(t *testing.T) {
	m, st, loader := newTestMerger(t, boardFixture())

	handle(m, EventColumnNameUpdated, map[string]any{
		"boardId": 9, "id": 10, "name": "hijacked",
	})
	handle(m, EventItemCreated, map[string]any{
		"boardId": 9, "id": 999, "columnId": 10, "description": "stray",
	})

	st.View(func(s *store.State) {
		require.Equal(t, "Went well", s.Board.Columns[0].Name)
		require.Len(t, s.Board.Columns[0].Items, 2)
	})
	loader.requireNoColumnLoad(t)
}

func TestHandle_BoardRenamed(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())

	handle(m, EventBoardRenamed, map[string]any{
		"id": 7, "name": "  Sprint 13  ", "description": "retro",
	})

	st.View(func(s *store.State) {
		require.Equal(t, "Sprint 13", s.Board.Name)
		require.Equal(t, "retro", s.Board.Description)
	})
}

func TestHandle_ItemCreatedAdoptsDraft(t *testing.T) {
	board := boardFixture()
	board.Columns[0].Items = append([]*model.Item{
		{ID: 3, Description: "  new idea ", IsDraft: true},
	}, board.Columns[0].Items...)
	m, st, _ := newTestMerger(t, board)

	handle(m, EventItemCreated, map[string]any{
		"boardId": 7, "id": 555, "columnId": 10,
		"description": "new idea", "rowIndex": 0,
	})

	st.View(func(s *store.State) {
		items := s.Board.Columns[0].Items
		require.Len(t, items, 3, "draft must be replaced, not duplicated")
		require.Equal(t, int64(555), items[0].ID)
		require.False(t, items[0].IsDraft)
		require.Equal(t, "new idea", items[0].Description)
	})
}

func TestHandle_ItemCreatedDuplicateDeliveryMergesInPlace(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())

	payload := map[string]any{
		"boardId": 7, "id": 555, "columnId": 20,
		"description": "retro action", "rowIndex": 1,
	}
	handle(m, EventItemCreated, payload)
	handle(m, EventItemCreated, payload)

	st.View(func(s *store.State) {
		require.Len(t, s.Board.Columns[1].Items, 2)
		_, item := s.Board.FindItem(555)
		require.NotNil(t, item)
		require.Equal(t, "retro action", item.Description)
	})
}

func TestHandle_ItemCreatedUnknownColumnTriggersRefetch(t *testing.T) {
	m, st, loader := newTestMerger(t, boardFixture())

	handle(m, EventItemCreated, map[string]any{
		"boardId": 7, "id": 556, "columnId": 404, "description": "lost",
	})

	require.Equal(t, int64(7), loader.waitColumnLoad(t))
	st.View(func(s *store.State) {
		_, item := s.Board.FindItem(556)
		require.Nil(t, item, "item must not be guessed into a column")
	})
}

func TestHandle_ItemFieldsMergedAndIndicesRestored(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())

	handle(m, EventItemLikeToggled, map[string]any{
		"boardId": 7, "id": 200, "likes": []string{"u1", "u2"},
	})
	handle(m, EventItemDescriptionUpdated, map[string]any{
		"boardId": 7, "id": 200, "description": "flaky integration tests",
	})

	st.View(func(s *store.State) {
		_, item := s.Board.FindItem(200)
		require.Equal(t, []string{"u1", "u2"}, item.Likes)
		require.Equal(t, "flaky integration tests", item.Description)
		require.Equal(t, "flaky integration tests", item.SyncedDescription)
		require.Equal(t, 1, item.ColumnIndex)
		require.Equal(t, 0, item.RowIndex)
	})
}

func TestHandle_ColumnCreatedAdoptsDraftAtTargetIndex(t *testing.T) {
	board := boardFixture()
	board.Columns = append(board.Columns, &model.Column{Name: "Kudos", IsDraft: true})
	m, st, _ := newTestMerger(t, board)

	handle(m, EventColumnCreated, map[string]any{
		"boardId": 7, "id": 30, "name": "Kudos", "columnIndex": 2,
	})

	st.View(func(s *store.State) {
		require.Len(t, s.Board.Columns, 3)
		require.Equal(t, int64(30), s.Board.Columns[2].ID)
		require.False(t, s.Board.Columns[2].IsDraft)
	})
}

func TestHandle_ColumnsReorderedUnknownIDRejected(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())

	handle(m, EventBoardColumnsReordered, map[string]any{
		"boardId": 7,
		"columns": []map[string]any{{"id": 20}, {"id": 999}},
	})

	st.View(func(s *store.State) {
		require.Equal(t, int64(10), s.Board.Columns[0].ID)
		require.Equal(t, int64(20), s.Board.Columns[1].ID)
	})
}

func TestHandle_ColumnsReorderedAppliesIDOrder(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())
	first := 0
	st.View(func(s *store.State) { first = int(s.Board.Columns[0].ID) })
	require.Equal(t, 10, first)

	handle(m, EventBoardColumnsReordered, map[string]any{
		"boardId": 7,
		"columns": []map[string]any{{"id": 20}, {"id": 10}},
	})

	st.View(func(s *store.State) {
		require.Equal(t, int64(20), s.Board.Columns[0].ID)
		require.Equal(t, int64(10), s.Board.Columns[1].ID)
		require.Equal(t, 0, s.Board.Columns[0].Items[0].ColumnIndex)
	})
}

func TestHandle_PositionsSyncedReplacesChangedColumns(t *testing.T) {
	m, st, loader := newTestMerger(t, boardFixture())

	handle(m, EventBoardItemsPositionsSynced, map[string]any{
		"boardId":          7,
		"changedColumnIds": []int64{10, 20},
		"columns": []map[string]any{
			{"id": 10, "items": []map[string]any{
				{"id": 101, "description": "fast builds", "rowIndex": 0},
			}},
			{"id": 20, "items": []map[string]any{
				{"id": 200, "description": "flaky tests", "rowIndex": 1},
				{"id": 100, "description": "good pairing", "rowIndex": 0},
			}},
		},
	})

	loader.requireNoColumnLoad(t)
	st.View(func(s *store.State) {
		require.Equal(t, []int64{101}, itemIDs(s.Board.Columns[0]))
		require.Equal(t, []int64{100, 200}, itemIDs(s.Board.Columns[1]), "items sorted by row index")
		for ci, column := range s.Board.Columns {
			for ri, item := range column.Items {
				require.Equal(t, ci, item.ColumnIndex)
				require.Equal(t, ri, item.RowIndex)
			}
		}
	})
}

func TestHandle_PositionsSyncedUnknownColumnFallsBackToRefetch(t *testing.T) {
	m, st, loader := newTestMerger(t, boardFixture())
	before := snapshotIDs(st)

	handle(m, EventBoardItemsPositionsSynced, map[string]any{
		"boardId":          7,
		"changedColumnIds": []int64{10, 404},
		"columns": []map[string]any{
			{"id": 10, "items": []map[string]any{}},
			{"id": 404, "items": []map[string]any{{"id": 100}}},
		},
	})

	require.Equal(t, int64(7), loader.waitColumnLoad(t))
	require.Equal(t, before, snapshotIDs(st), "partial application must not survive")
}

func TestHandle_EntityDeletedRefetchesColumns(t *testing.T) {
	m, _, loader := newTestMerger(t, boardFixture())

	handle(m, EventItemDeleted, map[string]any{"boardId": 7, "id": 100, "deleted": true})
	require.Equal(t, int64(7), loader.waitColumnLoad(t))

	// Without the explicit deleted flag nothing happens.
	handle(m, EventColumnDeleted, map[string]any{"boardId": 7, "id": 10})
	loader.requireNoColumnLoad(t)
}

func TestHandle_CommentCreatedBumpsCounterOnce(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())

	payload := map[string]any{
		"boardId": 7, "id": 900, "itemId": 100, "text": "agree",
		"createdAt": "2026-08-29T10:00:00Z",
		"creator":   map[string]any{"id": "u5", "email": "ann@example.com"},
	}
	handle(m, EventItemCommentCreated, payload)
	handle(m, EventItemCommentCreated, payload)

	st.View(func(s *store.State) {
		_, item := s.Board.FindItem(100)
		require.Equal(t, 1, item.CommentsCount, "duplicate delivery must not double-count")
	})
}

func TestHandle_CommentCreatedMergesIntoWarmCache(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())
	st.Update("test.cache", func(s *store.State) {
		s.SetCommentsCache(100, []model.Comment{{ID: 901, ItemID: 100, Text: "first"}})
	})

	handle(m, EventItemCommentCreated, map[string]any{
		"boardId": 7, "id": 902, "itemId": 100, "text": "second",
		"createdAt": "2026-08-29T10:01:00Z",
		"creator":   map[string]any{"id": "u5", "email": "ann@example.com"},
	})

	st.View(func(s *store.State) {
		require.Len(t, s.CommentsByItemID[100], 2)
		_, item := s.Board.FindItem(100)
		require.Equal(t, 2, item.CommentsCount, "counter follows cache length")
	})
}

func TestHandle_CommentDeletedPrefersAuthoritativeCount(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())
	st.Update("test.count", func(s *store.State) { s.SetItemCommentsCount(100, 5) })

	handle(m, EventItemCommentDeleted, map[string]any{
		"boardId": 7, "deleted": true, "commentId": 901, "itemId": 100, "commentsCount": 2,
	})

	st.View(func(s *store.State) {
		_, item := s.Board.FindItem(100)
		require.Equal(t, 2, item.CommentsCount)
	})
}

func TestHandle_CommentDeletedResolvesItemThroughReverseIndex(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())
	st.Update("test.cache", func(s *store.State) {
		s.SetCommentsCache(100, []model.Comment{
			{ID: 901, ItemID: 100, Text: "first"},
			{ID: 902, ItemID: 100, Text: "second"},
		})
	})

	handle(m, EventItemCommentDeleted, map[string]any{
		"boardId": 7, "deleted": true, "commentId": 901,
	})

	st.View(func(s *store.State) {
		require.Equal(t, []int64{902}, commentIDs(s.CommentsByItemID[100]))
		_, item := s.Board.FindItem(100)
		require.Equal(t, 1, item.CommentsCount)
	})
}

func TestHandle_CommentsFetchedReplacesCache(t *testing.T) {
	m, st, _ := newTestMerger(t, boardFixture())

	handle(m, EventItemCommentsFetched, map[string]any{
		"boardId": 7, "itemId": 100,
		"comments": []map[string]any{
			{"id": 901, "itemId": 100, "text": "first", "createdAt": "2026-08-29T10:00:00Z",
				"creator": map[string]any{"id": "u5", "email": "ann@example.com"}},
			{"id": 901, "itemId": 100, "text": "first edited", "createdAt": "2026-08-29T10:00:00Z",
				"creator": map[string]any{"id": "u5", "email": "ann@example.com"}},
		},
	})

	st.View(func(s *store.State) {
		require.Equal(t, []int64{901}, commentIDs(s.CommentsByItemID[100]), "duplicates collapse, last wins")
		require.Equal(t, "first edited", s.CommentsByItemID[100][0].Text)
		_, item := s.Board.FindItem(100)
		require.Equal(t, 1, item.CommentsCount)
	})
}

func TestHandle_TeamVisibilityMatchesTeamAndRefetches(t *testing.T) {
	m, st, loader := newTestMerger(t, boardFixture())

	handle(m, EventTeamCardsVisibilityUpdated, map[string]any{"id": 99, "isAllCardsHidden": true})
	loader.requireNoColumnLoad(t)

	handle(m, EventTeamCardsVisibilityUpdated, map[string]any{"id": 3, "isAllCardsHidden": true})
	require.Equal(t, int64(7), loader.waitColumnLoad(t))
	st.View(func(s *store.State) { require.True(t, s.Board.IsAllCardsHidden) })
}

func TestHandle_UnknownEventIgnored(t *testing.T) {
	m, st, loader := newTestMerger(t, boardFixture())
	handle(m, "board.glitter.enabled", map[string]any{"boardId": 7})
	st.View(func(s *store.State) { require.Len(t, s.Board.Columns, 2) })
	loader.requireNoColumnLoad(t)
}

func itemIDs(column *model.Column) []int64 {
	ids := make([]int64, 0, len(column.Items))
	for _, item := range column.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func commentIDs(comments []model.Comment) []int64 {
	ids := make([]int64, 0, len(comments))
	for _, comment := range comments {
		ids = append(ids, comment.ID)
	}
	return ids
}

func snapshotIDs(st *store.Store) map[int64][]int64 {
	out := make(map[int64][]int64)
	st.View(func(s *store.State) {
		for _, column := range s.Board.Columns {
			out[column.ID] = itemIDs(column)
		}
	})
	return out
}
