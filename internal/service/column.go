package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/retro-board/internal/errs"
	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/normalize"
	"github.com/and161185/retro-board/internal/palette"
	"github.com/and161185/retro-board/internal/store"
	"github.com/and161185/retro-board/internal/transport"
)

// AddColumn appends a draft column with a clock-derived temporary id and a
// palette color keyed by the column count, then persists it. The server
// response confirms the real id; failure removes the draft.
func (s *Service) AddColumn(ctx context.Context) error {
	var (
		boardID int64
		tempID  int64
		req     transport.CreateColumnRequest
	)
	s.store.Update("column.add", func(st *store.State) {
		if st.Board == nil {
			return
		}
		boardID = st.Board.ID
		next := len(st.Board.Columns) + 1
		// Clock-derived ids sit far above server sequence numbers, so a draft
		// can never shadow a real column.
		tempID = time.Now().UnixMilli() + int64(next)

		column := &model.Column{
			ID:      tempID,
			Name:    fmt.Sprintf("Column %d", next),
			Color:   palette.Fallback(next - 1),
			IsDraft: true,
		}
		st.Board.Columns = append(st.Board.Columns, column)
		req = transport.CreateColumnRequest{
			Name:        column.Name,
			Description: column.Description,
			Color:       column.Color,
		}
	})
	if boardID == 0 {
		return errs.ErrBoardNotLoaded
	}

	raw, err := s.api.CreateColumn(ctx, boardID, req)
	if err != nil {
		s.store.Update("column.add.rollback", func(st *store.State) {
			columns := st.Columns()
			for i, column := range columns {
				if column.ID == tempID {
					st.Board.Columns = append(columns[:i], columns[i+1:]...)
					return
				}
			}
		})
		return fmt.Errorf("create column on board %d: %w", boardID, err)
	}

	var v any
	_ = json.Unmarshal(raw, &v)
	p, _ := normalize.AsMap(v)

	s.store.Update("column.add.confirm", func(st *store.State) {
		column := st.Board.FindColumn(tempID)
		if column == nil {
			// Already reconciled by a realtime echo.
			return
		}
		if id, ok := normalize.PositiveInt(p["id"]); ok {
			column.ID = id
		}
		if name, ok := normalize.TrimmedString(p["name"]); ok {
			column.Name = name
		}
		if desc, ok := normalize.String(p["description"]); ok {
			column.Description = desc
		}
		column.Color = normalize.Color(p["color"], column.Color)
		column.IsDraft = false
		st.SnapshotPositions()
	})
	return nil
}

// StartColumnNameEdit marks a column's name as being edited; nothing is
// persisted until CommitColumnName.
func (s *Service) StartColumnNameEdit(columnID int64) {
	s.store.Update("column.name.edit", func(st *store.State) {
		if column := st.Board.FindColumn(columnID); column != nil {
			column.IsNameEditing = true
		}
	})
}

// SetColumnName updates a column name locally while editing.
func (s *Service) SetColumnName(columnID int64, name string) {
	s.store.Update("column.name.set", func(st *store.State) {
		if column := st.Board.FindColumn(columnID); column != nil {
			column.Name = name
		}
	})
}

// CommitColumnName ends the edit and persists whatever name the column holds.
func (s *Service) CommitColumnName(ctx context.Context, columnID int64) error {
	var (
		name  string
		found bool
	)
	s.store.Update("column.name.commit", func(st *store.State) {
		column := st.Board.FindColumn(columnID)
		if column == nil {
			return
		}
		column.IsNameEditing = false
		name = column.Name
		found = true
	})
	if !found {
		return errs.ErrNotFound
	}
	if err := s.api.UpdateColumnName(ctx, columnID, name); err != nil {
		return fmt.Errorf("update name of column %d: %w", columnID, err)
	}
	return nil
}

// SetColumnDescription sets a column description optimistically and reverts
// it when persistence fails.
func (s *Service) SetColumnDescription(ctx context.Context, columnID int64, description string) error {
	var (
		previous string
		found    bool
	)
	s.store.Update("column.description.set", func(st *store.State) {
		column := st.Board.FindColumn(columnID)
		if column == nil {
			return
		}
		previous = column.Description
		column.Description = description
		found = true
	})
	if !found {
		return errs.ErrNotFound
	}

	if err := s.api.UpdateColumnDescription(ctx, columnID, description); err != nil {
		s.store.Update("column.description.rollback", func(st *store.State) {
			if column := st.Board.FindColumn(columnID); column != nil {
				column.Description = previous
			}
		})
		return fmt.Errorf("update description of column %d: %w", columnID, err)
	}
	return nil
}

// SetColumnColor applies a column color scheme and persists it.
func (s *Service) SetColumnColor(ctx context.Context, columnID int64, color model.ColumnColor) error {
	found := false
	s.store.Update("column.color.set", func(st *store.State) {
		if column := st.Board.FindColumn(columnID); column != nil {
			column.Color = color
			found = true
		}
	})
	if !found {
		return errs.ErrNotFound
	}
	if err := s.api.UpdateColumnColor(ctx, columnID, color); err != nil {
		return fmt.Errorf("update color of column %d: %w", columnID, err)
	}
	return nil
}

// DeleteColumn removes a column optimistically; on failure the same column
// object is restored at its original index.
func (s *Service) DeleteColumn(ctx context.Context, columnID int64) error {
	var (
		removed *model.Column
		at      int
	)
	s.store.Update("column.delete", func(st *store.State) {
		columns := st.Columns()
		for i, column := range columns {
			if column.ID == columnID {
				removed = column
				at = i
				st.Board.Columns = append(columns[:i], columns[i+1:]...)
				return
			}
		}
	})
	if removed == nil {
		return errs.ErrNotFound
	}

	if err := s.api.DeleteColumn(ctx, columnID); err != nil {
		s.store.Update("column.delete.rollback", func(st *store.State) {
			if st.Board == nil {
				// Board discarded while the delete was in flight; nothing to
				// restore into.
				return
			}
			columns := st.Columns()
			if at > len(columns) {
				at = len(columns)
			}
			st.Board.Columns = append(columns[:at], append([]*model.Column{removed}, columns[at:]...)...)
		})
		return fmt.Errorf("delete column %d: %w", columnID, err)
	}
	return nil
}

// ReorderColumns moves a column between display positions. Only one reorder
// may be in flight; the acknowledgement's id order is authoritative and is
// mapped onto the local column objects. Failure restores the previous order
// and retains the error message for display, then the changed item positions
// are synced in one batch.
func (s *Service) ReorderColumns(ctx context.Context, oldIndex, newIndex int) error {
	if s.rt == nil {
		return errs.ErrRealtimeUnavailable
	}
	if !s.store.TryBeginColumnsReorder() {
		return errs.ErrReorderPending
	}
	defer s.store.EndColumnsReorder()

	var (
		boardID  int64
		previous []*model.Column
		applied  bool
	)
	s.store.Update("columns.reorder", func(st *store.State) {
		st.EnsurePositionsInitialized()
		columns := st.Columns()
		if oldIndex < 0 || newIndex < 0 || oldIndex >= len(columns) || newIndex >= len(columns) || oldIndex == newIndex {
			return
		}
		boardID = st.Board.ID
		previous = append([]*model.Column(nil), columns...)

		moved := columns[oldIndex]
		columns = append(columns[:oldIndex], columns[oldIndex+1:]...)
		columns = append(columns[:newIndex], append([]*model.Column{moved}, columns[newIndex:]...)...)
		st.Board.Columns = columns
		applied = true
	})
	if !applied {
		return nil
	}

	rollback := func(cause error) {
		s.store.Update("columns.reorder.rollback", func(st *store.State) {
			if st.BoardID() != boardID {
				// Board discarded or swapped while the ack was pending.
				return
			}
			st.Board.Columns = previous
			st.ColumnsReorderError = cause.Error()
		})
	}

	ack, err := s.rt.ReorderColumns(ctx, boardID, oldIndex, newIndex)
	if err != nil {
		rollback(err)
		return fmt.Errorf("reorder columns on board %d: %w", boardID, err)
	}

	var v any
	if err := json.Unmarshal(ack, &v); err != nil {
		rollback(err)
		return fmt.Errorf("%w: columns reorder ack", errs.ErrInvalidPayload)
	}

	var (
		orderErr error
		resident bool
	)
	s.store.Update("columns.reorder.confirm", func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		resident = true
		reordered, err := normalize.ReorderColumns(st.Board.Columns, v)
		if err != nil {
			orderErr = err
			return
		}
		st.Board.Columns = reordered
		st.ColumnsReorderError = ""
	})
	if !resident {
		return nil
	}
	if orderErr != nil {
		// The ack references columns we do not hold; reload instead of
		// guessing.
		if err := s.LoadBoardColumns(ctx, boardID); err != nil {
			return err
		}
		return nil
	}

	return s.SyncChangedItemPositions(ctx)
}
