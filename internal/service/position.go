package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/errs"
	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/position"
	"github.com/and161185/retro-board/internal/store"
	"github.com/and161185/retro-board/internal/transport"
)

// SyncChangedItemPositions sends every item whose (column, row) drifted from
// the last agreed snapshot in one batch and advances the snapshot on success.
// A rejected batch means local and server structure diverged; the board's
// columns are reloaded wholesale.
func (s *Service) SyncChangedItemPositions(ctx context.Context) error {
	var (
		boardID int64
		changes []transport.PositionChangeRequest
	)
	s.store.View(func(st *store.State) {
		boardID = st.BoardID()
		for _, change := range position.Diff(st.Columns(), st.LastSyncedPositions) {
			changes = append(changes, transport.PositionChangeRequest{
				ItemID:      change.ItemID,
				NewColumnID: change.NewColumnID,
				NewRowIndex: change.NewRowIndex,
			})
		}
	})
	if boardID == 0 {
		return errs.ErrBoardNotLoaded
	}
	if len(changes) == 0 {
		return nil
	}

	if err := s.api.SyncItemPositions(ctx, boardID, changes); err != nil {
		s.log.Error("position sync rejected, reloading board",
			zap.Int64("boardId", boardID), zap.Int("changes", len(changes)), zap.Error(err))
		if reloadErr := s.LoadBoardColumns(ctx, boardID); reloadErr != nil {
			return reloadErr
		}
		return fmt.Errorf("sync item positions on board %d: %w", boardID, err)
	}

	s.store.Update("positions.synced", func(st *store.State) { st.SnapshotPositions() })
	return nil
}

// MoveItemToColumn places an item at newIndex of the target column, wherever
// it currently lives. Dropping an item onto its own position is a no-op.
func (s *Service) MoveItemToColumn(ctx context.Context, itemID, toColumnID int64, newIndex int) error {
	if newIndex < 0 {
		return fmt.Errorf("validation: negative item index")
	}

	shouldSync := false
	s.store.Update("item.move", func(st *store.State) {
		st.EnsurePositionsInitialized()
		toColumn := st.Board.FindColumn(toColumnID)
		if toColumn == nil {
			return
		}

		var (
			moved        *model.Item
			fromColumnID int64
			fromIndex    int
		)
		for _, column := range st.Columns() {
			for i, item := range column.Items {
				if item.ID != itemID {
					continue
				}
				bound := len(toColumn.Items)
				if column.ID == toColumnID {
					bound--
				}
				target := newIndex
				if target > bound {
					target = bound
				}
				if column.ID == toColumnID && target == i {
					return
				}
				moved = item
				fromColumnID = column.ID
				fromIndex = i
				column.Items = append(column.Items[:i], column.Items[i+1:]...)
				break
			}
			if moved != nil {
				break
			}
		}
		if moved == nil {
			return
		}

		bounded := newIndex
		if bounded > len(toColumn.Items) {
			bounded = len(toColumn.Items)
		}
		toColumn.Items = append(toColumn.Items[:bounded], append([]*model.Item{moved}, toColumn.Items[bounded:]...)...)
		shouldSync = !moved.IsDraft || fromColumnID != toColumnID || fromIndex != bounded
	})

	if !shouldSync {
		return nil
	}
	return s.SyncChangedItemPositions(ctx)
}

// ReorderItemsInColumn moves an item between rows of one column.
func (s *Service) ReorderItemsInColumn(ctx context.Context, columnID int64, oldIndex, newIndex int) error {
	moved := false
	s.store.Update("item.reorder", func(st *store.State) {
		st.EnsurePositionsInitialized()
		column := st.Board.FindColumn(columnID)
		if column == nil {
			return
		}
		if oldIndex < 0 || newIndex < 0 || oldIndex >= len(column.Items) || newIndex >= len(column.Items) {
			return
		}
		item := column.Items[oldIndex]
		column.Items = append(column.Items[:oldIndex], column.Items[oldIndex+1:]...)
		column.Items = append(column.Items[:newIndex], append([]*model.Item{item}, column.Items[newIndex:]...)...)
		moved = true
	})
	if !moved {
		return nil
	}
	return s.SyncChangedItemPositions(ctx)
}

// MoveItemBetweenColumns moves the item at oldIndex of one column to newIndex
// of another; same source and target degrade to an in-column reorder.
func (s *Service) MoveItemBetweenColumns(ctx context.Context, fromColumnID, toColumnID int64, oldIndex, newIndex int) error {
	if fromColumnID == toColumnID {
		return s.ReorderItemsInColumn(ctx, fromColumnID, oldIndex, newIndex)
	}

	moved := false
	s.store.Update("item.move.columns", func(st *store.State) {
		st.EnsurePositionsInitialized()
		fromColumn := st.Board.FindColumn(fromColumnID)
		toColumn := st.Board.FindColumn(toColumnID)
		if fromColumn == nil || toColumn == nil {
			return
		}
		if oldIndex < 0 || oldIndex >= len(fromColumn.Items) || newIndex < 0 {
			return
		}

		item := fromColumn.Items[oldIndex]
		fromColumn.Items = append(fromColumn.Items[:oldIndex], fromColumn.Items[oldIndex+1:]...)

		bounded := newIndex
		if bounded > len(toColumn.Items) {
			bounded = len(toColumn.Items)
		}
		toColumn.Items = append(toColumn.Items[:bounded], append([]*model.Item{item}, toColumn.Items[bounded:]...)...)
		moved = true
	})
	if !moved {
		return nil
	}
	return s.SyncChangedItemPositions(ctx)
}
