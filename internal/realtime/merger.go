package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/normalize"
	"github.com/and161185/retro-board/internal/palette"
	"github.com/and161185/retro-board/internal/store"
)

// Reloader is the slice of the pipeline the merger falls back to when an
// event cannot be applied cleanly: scoped column refetch and comment refetch.
type Reloader interface {
	LoadBoardColumns(ctx context.Context, boardID int64) error
	FetchItemComments(ctx context.Context, itemID int64) ([]model.Comment, error)
}

// Merger folds server-pushed events into the store. Every event carries a
// board id and is dropped silently when it does not match the resident board;
// structural ambiguity is never patched around, it triggers a refetch.
type Merger struct {
	store  *store.Store
	loader Reloader
	log    *zap.Logger
}

// NewMerger wires the merger to the store and the refetch fallback.
func NewMerger(st *store.Store, loader Reloader, log *zap.Logger) *Merger {
	return &Merger{store: st, loader: loader, log: log}
}

// Handle dispatches one inbound event. Unknown events are ignored.
func (m *Merger) Handle(ctx context.Context, event string, data json.RawMessage) {
	var payload any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			m.log.Warn("undecodable event payload", zap.String("event", event), zap.Error(err))
			return
		}
	}

	switch event {
	case EventBoardRenamed:
		m.applyBoardRenamed(payload)
	case EventBoardColumnsReordered:
		m.applyColumnsReordered(payload)
	case EventBoardItemsPositionsSynced:
		m.applyPositionsSynced(ctx, payload)
	case EventColumnCreated:
		m.applyColumnCreated(payload)
	case EventColumnNameUpdated:
		m.applyColumnFieldUpdated(event, payload, true, false, false)
	case EventColumnDescriptionUpdated:
		m.applyColumnFieldUpdated(event, payload, false, true, false)
	case EventColumnColorUpdated:
		m.applyColumnFieldUpdated(event, payload, false, false, true)
	case EventColumnDeleted, EventItemDeleted:
		m.applyEntityDeleted(ctx, event, payload)
	case EventItemCreated:
		m.applyItemCreated(ctx, payload)
	case EventItemDescriptionUpdated, EventItemLikeToggled, EventItemColorUpdated:
		m.applyItemFieldUpdated(event, payload)
	case EventItemCommentsFetched:
		m.applyCommentsFetched(ctx, payload)
	case EventItemCommentCreated:
		m.applyCommentCreated(payload)
	case EventItemCommentUpdated:
		m.applyCommentUpdated(payload)
	case EventItemCommentDeleted:
		m.applyCommentDeleted(ctx, payload)
	case EventTeamCardsVisibilityUpdated:
		m.applyTeamVisibilityUpdated(ctx, payload)
	default:
		m.log.Debug("unhandled event", zap.String("event", event))
	}
}

// refetchColumns reloads one board's columns in the background; the load
// generation in the pipeline discards it if it loses a race with a newer
// load.
func (m *Merger) refetchColumns(ctx context.Context, boardID int64) {
	go func() {
		if err := m.loader.LoadBoardColumns(ctx, boardID); err != nil {
			m.log.Error("column refetch after event failed",
				zap.Int64("boardId", boardID), zap.Error(err))
		}
	}()
}

func (m *Merger) applyBoardRenamed(v any) {
	p, _ := normalize.AsMap(v)
	boardID, ok := normalize.PositiveInt(p["id"])
	if !ok {
		boardID, ok = normalize.PositiveInt(p["boardId"])
	}
	if !ok {
		return
	}

	m.store.Update("realtime."+EventBoardRenamed, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		if name, ok := normalize.TrimmedString(p["name"]); ok {
			st.Board.Name = name
		}
		if desc, ok := normalize.String(p["description"]); ok {
			st.Board.Description = desc
		}
		if date, ok := normalize.String(p["date"]); ok {
			st.Board.Date = date
		}
		if hidden, ok := normalize.Bool(p["isAllCardsHidden"]); ok {
			st.Board.IsAllCardsHidden = hidden
		}
	})
}

func (m *Merger) applyColumnsReordered(v any) {
	p, _ := normalize.AsMap(v)
	boardID, ok := normalize.PositiveInt(p["boardId"])
	if !ok {
		return
	}

	m.store.Update("realtime."+EventBoardColumnsReordered, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		reordered, err := normalize.ReorderColumns(st.Board.Columns, p["columns"])
		if err != nil {
			// Unknown column id in the order: the event is unusable, the
			// board stays as is.
			m.log.Error("columns reorder event rejected", zap.Int64("boardId", boardID), zap.Error(err))
			return
		}
		st.Board.Columns = reordered
		st.ColumnsReorderError = ""
		st.SnapshotPositions()
	})
}

func (m *Merger) applyPositionsSynced(ctx context.Context, v any) {
	p, _ := normalize.AsMap(v)
	boardID, ok := normalize.PositiveInt(p["boardId"])
	if !ok {
		return
	}

	columnsPayload, _ := p["columns"].([]any)
	if updated, ok := normalize.Index(p["updated"]); ok && updated == 0 && len(columnsPayload) == 0 {
		return
	}

	changedIDs := normalize.PositiveIntSlice(p["changedColumnIds"])
	changedSet := make(map[int64]bool, len(changedIDs))
	for _, id := range changedIDs {
		changedSet[id] = true
	}

	refetch := false
	m.store.Update("realtime."+EventBoardItemsPositionsSynced, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}

		// Resolve every relevant payload column first: an unknown column id
		// means the local structure already diverged, and a half-applied sync
		// is worse than a visible reload.
		type target struct {
			payload    map[string]any
			localIndex int
		}
		targets := make([]target, 0, len(columnsPayload))
		for _, rawColumn := range columnsPayload {
			cm, _ := normalize.AsMap(rawColumn)
			columnID, ok := normalize.PositiveInt(cm["id"])
			if !ok {
				continue
			}
			if len(changedSet) > 0 && !changedSet[columnID] {
				continue
			}

			localIndex := -1
			for i, column := range st.Board.Columns {
				if column.ID == columnID {
					localIndex = i
					break
				}
			}
			if localIndex < 0 {
				refetch = true
				return
			}
			targets = append(targets, target{payload: cm, localIndex: localIndex})
		}
		if len(changedSet) > 0 && len(columnsPayload) > 0 && len(targets) < len(changedSet) {
			refetch = true
			return
		}

		// The event is authoritative for the whole column, not a delta.
		for _, tg := range targets {
			st.Board.Columns[tg.localIndex] = syncColumn(tg.payload, st.Board.Columns[tg.localIndex], tg.localIndex)
		}
		st.SnapshotPositions()
	})
	if refetch {
		m.refetchColumns(ctx, boardID)
	}
}

func (m *Merger) applyColumnCreated(v any) {
	p, _ := normalize.AsMap(v)
	boardID, okBoard := normalize.PositiveInt(p["boardId"])
	columnID, okColumn := normalize.PositiveInt(p["id"])
	if !okBoard || !okColumn {
		return
	}

	m.store.Update("realtime."+EventColumnCreated, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		columns := st.Board.Columns

		// Duplicate delivery: merge fields, never duplicate structure.
		if existing := st.Board.FindColumn(columnID); existing != nil {
			mergeColumnFields(existing, p, true, true, true)
			return
		}

		targetIndex, hasTarget := normalize.Index(p["columnIndex"])
		if !hasTarget {
			targetIndex, hasTarget = normalize.Index(p["index"])
		}

		// Draft matching lets the echo of our own create adopt the local
		// draft instead of inserting a twin.
		if draftIndex := findDraftColumnMatch(columns, p, targetIndex, hasTarget); draftIndex >= 0 {
			draft := columns[draftIndex]
			draft.ID = columnID
			draft.IsDraft = false
			mergeColumnFields(draft, p, true, true, true)

			if hasTarget && targetIndex < len(columns) && targetIndex != draftIndex {
				columns = append(columns[:draftIndex], columns[draftIndex+1:]...)
				columns = append(columns[:targetIndex], append([]*model.Column{draft}, columns[targetIndex:]...)...)
				st.Board.Columns = columns
			}
			st.SnapshotPositions()
			return
		}

		newColumn := newColumnFromEvent(p, columnID, len(columns))
		if !hasTarget || targetIndex > len(columns) {
			st.Board.Columns = append(columns, newColumn)
		} else {
			st.Board.Columns = append(columns[:targetIndex], append([]*model.Column{newColumn}, columns[targetIndex:]...)...)
		}
		st.SnapshotPositions()
	})
}

func (m *Merger) applyColumnFieldUpdated(event string, v any, name, description, color bool) {
	p, _ := normalize.AsMap(v)
	boardID, okBoard := normalize.PositiveInt(p["boardId"])
	columnID, okColumn := normalize.PositiveInt(p["id"])
	if !okBoard || !okColumn {
		return
	}

	m.store.Update("realtime."+event, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		column := st.Board.FindColumn(columnID)
		if column == nil {
			// The column will arrive via its own created event or a reload.
			return
		}
		mergeColumnFields(column, p, name, description, color)
	})
}

// applyEntityDeleted covers both column and item deletions: structure is
// never mutated directly, deletions are the case most likely to have
// interacted with an in-flight local reorder, so the board's columns are
// refetched instead.
func (m *Merger) applyEntityDeleted(ctx context.Context, event string, v any) {
	p, _ := normalize.AsMap(v)
	if deleted, ok := normalize.Bool(p["deleted"]); !ok || !deleted {
		return
	}
	boardID, ok := normalize.PositiveInt(p["boardId"])
	if !ok {
		return
	}

	current := false
	m.store.View(func(st *store.State) { current = st.BoardID() == boardID })
	if !current {
		return
	}
	m.log.Debug("entity deleted, refetching columns", zap.String("event", event), zap.Int64("boardId", boardID))
	m.refetchColumns(ctx, boardID)
}

func (m *Merger) applyItemCreated(ctx context.Context, v any) {
	p, _ := normalize.AsMap(v)
	boardID, okBoard := normalize.PositiveInt(p["boardId"])
	itemID, okItem := normalize.PositiveInt(p["id"])
	if !okBoard || !okItem {
		return
	}

	refetch := false
	m.store.Update("realtime."+EventItemCreated, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}

		// Duplicate delivery: merge fields into the existing item.
		if _, existing := st.Board.FindItem(itemID); existing != nil {
			mergeItemFields(existing, p)
			existing.IsDraft = false
			return
		}

		target := resolveTargetColumn(st.Board.Columns, p)
		if target == nil {
			refetch = true
			return
		}
		targetIndex := 0
		for i, column := range st.Board.Columns {
			if column == target {
				targetIndex = i
				break
			}
		}

		newItem := newItemFromEvent(p, itemID, targetIndex)

		// Draft matching by trimmed description: this is how our own
		// optimistic create becomes real without flickering. Known
		// approximation: two drafts with identical text can false-positive
		// merge; the fallback is treat-as-new.
		if incoming, ok := normalize.TrimmedString(p["description"]); ok {
			for i, candidate := range target.Items {
				if candidate.IsDraft && strings.TrimSpace(candidate.Description) == incoming {
					newItem.RowIndex = candidate.RowIndex
					newItem.ColumnIndex = candidate.ColumnIndex
					target.Items[i] = newItem
					st.SnapshotPositions()
					return
				}
			}
		}

		insertAt := 0
		if row, ok := normalize.Index(p["rowIndex"]); ok {
			insertAt = row
			if insertAt > len(target.Items) {
				insertAt = len(target.Items)
			}
		}
		target.Items = append(target.Items[:insertAt], append([]*model.Item{newItem}, target.Items[insertAt:]...)...)
		st.SnapshotPositions()
	})
	if refetch {
		m.refetchColumns(ctx, boardID)
	}
}

func (m *Merger) applyItemFieldUpdated(event string, v any) {
	p, _ := normalize.AsMap(v)
	boardID, okBoard := normalize.PositiveInt(p["boardId"])
	itemID, okItem := normalize.PositiveInt(p["id"])
	if !okBoard || !okItem {
		return
	}

	m.store.Update("realtime."+event, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		_, item := st.Board.FindItem(itemID)
		if item == nil {
			return
		}
		mergeItemFields(item, p)
	})
}

func (m *Merger) applyCommentsFetched(ctx context.Context, v any) {
	var rawComments []any
	var boardID, itemID int64

	switch payload := v.(type) {
	case []any:
		rawComments = payload
	case map[string]any:
		boardID, _ = normalize.PositiveInt(payload["boardId"])
		itemID, _ = normalize.PositiveInt(payload["itemId"])
		rawComments, _ = payload["comments"].([]any)
	default:
		return
	}

	comments := normalize.Comments(rawComments)
	if boardID == 0 && len(rawComments) > 0 {
		if first, ok := normalize.AsMap(rawComments[0]); ok {
			boardID, _ = normalize.PositiveInt(first["boardId"])
		}
	}

	current := false
	var activeItemID int64
	m.store.View(func(st *store.State) {
		current = boardID > 0 && st.BoardID() == boardID
		activeItemID = st.ActiveItemID
	})
	if !current {
		return
	}

	if itemID == 0 && len(comments) > 0 {
		itemID = comments[0].ItemID
	}
	if itemID == 0 {
		// Cannot tell whose comments these are; refresh the open card.
		if activeItemID > 0 {
			m.store.Update("realtime."+EventItemCommentsFetched, func(st *store.State) {
				st.ClearCommentsCache(activeItemID)
			})
			go func() {
				if _, err := m.loader.FetchItemComments(ctx, activeItemID); err != nil {
					m.log.Error("comment refetch failed", zap.Int64("itemId", activeItemID), zap.Error(err))
				}
			}()
		}
		return
	}

	m.store.Update("realtime."+EventItemCommentsFetched, func(st *store.State) {
		st.SetCommentsCache(itemID, comments)
	})
}

func (m *Merger) applyCommentCreated(v any) {
	p, _ := normalize.AsMap(v)
	boardID, okBoard := normalize.PositiveInt(p["boardId"])
	comment, okComment := normalize.Comment(v)
	if !okBoard || !okComment {
		return
	}

	m.store.Update("realtime."+EventItemCommentCreated, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}

		_, hasCache := st.CommentsByItemID[comment.ItemID]
		wasKnown := st.ItemIDByCommentID[comment.ID] == comment.ItemID
		st.ItemIDByCommentID[comment.ID] = comment.ItemID

		if hasCache {
			st.MergeCommentCache(comment)
			return
		}
		if wasKnown {
			// Duplicate delivery of our own echo: count already bumped.
			return
		}
		st.BumpItemCommentsCount(comment.ItemID, 1)
	})
}

func (m *Merger) applyCommentUpdated(v any) {
	p, _ := normalize.AsMap(v)
	boardID, okBoard := normalize.PositiveInt(p["boardId"])
	comment, okComment := normalize.Comment(v)
	if !okBoard || !okComment {
		return
	}

	m.store.Update("realtime."+EventItemCommentUpdated, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		st.ItemIDByCommentID[comment.ID] = comment.ItemID
		st.MergeCommentCache(comment)
	})
}

func (m *Merger) applyCommentDeleted(ctx context.Context, v any) {
	p, _ := normalize.AsMap(v)
	if deleted, ok := normalize.Bool(p["deleted"]); !ok || !deleted {
		return
	}
	boardID, ok := normalize.PositiveInt(p["boardId"])
	if !ok {
		return
	}

	commentID, okComment := normalize.PositiveInt(p["commentId"])
	if !okComment {
		commentID, okComment = normalize.PositiveInt(p["id"])
	}
	payloadItemID, _ := normalize.PositiveInt(p["itemId"])
	payloadCount, hasCount := normalize.Index(p["commentsCount"])

	refetchColumns := false
	var refetchCommentsFor int64
	m.store.Update("realtime."+EventItemCommentDeleted, func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}

		itemID := payloadItemID
		if itemID == 0 && okComment {
			itemID = st.ItemIDByCommentID[commentID]
		}
		if itemID == 0 {
			m.log.Warn("unresolvable comment deleted payload", zap.Int64("boardId", boardID))
			refetchColumns = true
			return
		}

		_, hasCache := st.CommentsByItemID[itemID]
		hadInCache := false
		if okComment {
			for _, cached := range st.CommentsByItemID[itemID] {
				if cached.ID == commentID {
					hadInCache = true
					break
				}
			}
		}

		if okComment {
			st.RemoveCommentFromCache(commentID, itemID)
		} else if hasCache {
			refetchCommentsFor = itemID
		}

		if hasCount {
			// Server-provided count is authoritative over local arithmetic.
			st.SetItemCommentsCount(itemID, payloadCount)
			return
		}
		if !hasCache || (okComment && !hadInCache) {
			st.BumpItemCommentsCount(itemID, -1)
		}
	})

	if refetchColumns {
		m.refetchColumns(ctx, boardID)
		return
	}
	if refetchCommentsFor > 0 {
		go func() {
			if _, err := m.loader.FetchItemComments(ctx, refetchCommentsFor); err != nil {
				m.log.Error("comment refetch after deletion failed",
					zap.Int64("itemId", refetchCommentsFor), zap.Error(err))
				m.refetchColumns(ctx, boardID)
			}
		}()
	}
}

func (m *Merger) applyTeamVisibilityUpdated(ctx context.Context, v any) {
	p, _ := normalize.AsMap(v)
	teamID, ok := normalize.PositiveInt(p["id"])
	if !ok {
		return
	}
	hidden, _ := normalize.Bool(p["isAllCardsHidden"])

	var boardID int64
	m.store.Update("realtime."+EventTeamCardsVisibilityUpdated, func(st *store.State) {
		if st.Board == nil || st.Board.TeamID != teamID {
			return
		}
		st.Board.IsAllCardsHidden = hidden
		boardID = st.Board.ID
	})
	if boardID > 0 {
		// Hidden/visible is a display concern layered over the same
		// structural data; refresh it.
		m.refetchColumns(ctx, boardID)
	}
}

// --- payload helpers ---

// mergeColumnFields patches only the fields present in the payload.
func mergeColumnFields(column *model.Column, p map[string]any, name, description, color bool) {
	if name {
		if s, ok := normalize.TrimmedString(p["name"]); ok {
			column.Name = s
		}
	}
	if description {
		if s, ok := normalize.String(p["description"]); ok {
			column.Description = s
		}
	}
	if color {
		if _, present := p["color"]; present {
			column.Color = normalize.Color(p["color"], column.Color)
		}
	}
}

// mergeItemFields patches only the fields present in the payload. A merged
// description is by definition server-confirmed, so it also becomes the
// synced baseline.
func mergeItemFields(item *model.Item, p map[string]any) {
	if s, ok := normalize.String(p["description"]); ok {
		item.Description = s
		item.SyncedDescription = s
	}
	if s, ok := normalize.TrimmedString(p["createdAt"]); ok {
		item.CreatedAt = s
	}
	if _, present := p["likes"]; present {
		if _, isArray := p["likes"].([]any); isArray {
			item.Likes = normalize.StringSlice(p["likes"])
		}
	}
	if n, ok := normalize.Index(p["commentsCount"]); ok {
		item.CommentsCount = n
	}
	if _, present := p["color"]; present {
		item.Color, _ = normalize.String(p["color"])
	}
	if n, ok := normalize.Index(p["columnIndex"]); ok {
		item.ColumnIndex = n
	}
	if n, ok := normalize.Index(p["rowIndex"]); ok {
		item.RowIndex = n
	}
}

func findDraftColumnMatch(columns []*model.Column, p map[string]any, targetIndex int, hasTarget bool) int {
	if hasTarget && targetIndex < len(columns) && columns[targetIndex].IsDraft {
		return targetIndex
	}
	if name, ok := normalize.TrimmedString(p["name"]); ok {
		for i, column := range columns {
			if column.IsDraft && strings.TrimSpace(column.Name) == name {
				return i
			}
		}
	}
	return -1
}

func newColumnFromEvent(p map[string]any, columnID int64, fallbackIndex int) *model.Column {
	column := &model.Column{
		ID:    columnID,
		Color: normalize.Color(p["color"], palette.Fallback(fallbackIndex)),
	}
	if s, ok := normalize.TrimmedString(p["name"]); ok {
		column.Name = s
	}
	if s, ok := normalize.String(p["description"]); ok {
		column.Description = s
	}
	return column
}

func resolveTargetColumn(columns []*model.Column, p map[string]any) *model.Column {
	if columnID, ok := normalize.PositiveInt(p["columnId"]); ok {
		for _, column := range columns {
			if column.ID == columnID {
				return column
			}
		}
	}
	if idx, ok := normalize.Index(p["columnIndex"]); ok && idx < len(columns) {
		return columns[idx]
	}
	return nil
}

func newItemFromEvent(p map[string]any, itemID int64, fallbackColumnIndex int) *model.Item {
	item := normalize.Item(p, fallbackColumnIndex, 0)
	item.ID = itemID
	if row, ok := normalize.Index(p["rowIndex"]); ok {
		item.RowIndex = row
	}
	if idx, ok := normalize.Index(p["columnIndex"]); ok {
		item.ColumnIndex = idx
	}
	return item
}

// syncColumn rebuilds one column wholesale from a positions-synced payload,
// keeping existing presentation fields when the payload omits them.
func syncColumn(p map[string]any, existing *model.Column, fallbackColumnIndex int) *model.Column {
	column := &model.Column{
		ID:            existing.ID,
		Name:          existing.Name,
		Description:   existing.Description,
		Color:         existing.Color,
		IsNameEditing: existing.IsNameEditing,
	}
	if s, ok := normalize.TrimmedString(p["name"]); ok {
		column.Name = s
	}
	if s, ok := normalize.String(p["description"]); ok {
		column.Description = s
	}
	if _, present := p["color"]; present {
		column.Color = normalize.Color(p["color"], existing.Color)
	}

	rawItems, _ := p["items"].([]any)
	items := make([]*model.Item, 0, len(rawItems))
	for rowIndex, rawItem := range rawItems {
		im, ok := normalize.AsMap(rawItem)
		if !ok {
			continue
		}
		itemID, ok := normalize.PositiveInt(im["id"])
		if !ok {
			continue
		}
		item := normalize.Item(im, fallbackColumnIndex, rowIndex)
		item.ID = itemID
		if row, ok := normalize.Index(im["rowIndex"]); ok {
			item.RowIndex = row
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].RowIndex < items[j].RowIndex })
	column.Items = items
	return column
}
