package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/errs"
	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/normalize"
	"github.com/and161185/retro-board/internal/store"
)

// LoadBoardForUser fetches the user's board list and makes the first board
// resident, loading its columns separately when the list omits them. A reload
// started later wins: this response is discarded if superseded.
func (s *Service) LoadBoardForUser(ctx context.Context, userID string) error {
	gen := s.store.BeginLoad()
	s.store.Update("board.load.start", func(st *store.State) { st.IsBoardLoading = true })

	raw, err := s.api.ListBoards(ctx, userID)
	if err != nil {
		s.store.UpdateIf(gen, "board.load.fail", func(st *store.State) { st.IsBoardLoading = false })
		return fmt.Errorf("load boards for user %s: %w", userID, err)
	}

	boards := normalize.BoardsJSON(raw)
	if len(boards) == 0 {
		s.store.UpdateIf(gen, "board.load.empty", func(st *store.State) {
			st.ResetBoard()
			st.IsBoardLoading = false
		})
		return nil
	}

	board := boards[0]
	if board.Columns == nil {
		columnsRaw, err := s.api.GetBoardColumns(ctx, board.ID)
		if err != nil {
			s.store.UpdateIf(gen, "board.load.fail", func(st *store.State) { st.IsBoardLoading = false })
			return fmt.Errorf("load columns for board %d: %w", board.ID, err)
		}
		board.Columns = normalize.ColumnsJSON(columnsRaw)
	}

	s.store.UpdateIf(gen, "board.load", func(st *store.State) {
		st.ResetBoard()
		st.Board = board
		st.SnapshotPositions()
		st.IsBoardLoading = false
	})
	return nil
}

// LoadBoardByID makes one specific board resident. Board metadata comes from
// the user's board list; a board missing from the list still loads with a
// placeholder name.
func (s *Service) LoadBoardByID(ctx context.Context, userID string, boardID int64) error {
	gen := s.store.BeginLoad()
	s.store.Update("board.load.start", func(st *store.State) { st.IsBoardLoading = true })

	fail := func(err error) error {
		s.store.UpdateIf(gen, "board.load.fail", func(st *store.State) {
			st.ResetBoard()
			st.IsBoardLoading = false
		})
		return err
	}

	boardsRaw, err := s.api.ListBoards(ctx, userID)
	if err != nil {
		return fail(fmt.Errorf("load boards for user %s: %w", userID, err))
	}
	columnsRaw, err := s.api.GetBoardColumns(ctx, boardID)
	if err != nil {
		return fail(fmt.Errorf("load columns for board %d: %w", boardID, err))
	}

	board := &model.Board{ID: boardID, Name: "Board " + strconv.FormatInt(boardID, 10)}
	for _, candidate := range normalize.BoardsJSON(boardsRaw) {
		if candidate.ID == boardID {
			candidate.Columns = nil
			board = candidate
			break
		}
	}
	board.Columns = normalize.ColumnsJSON(columnsRaw)

	s.store.UpdateIf(gen, "board.load", func(st *store.State) {
		st.ResetBoard()
		st.Board = board
		st.SnapshotPositions()
		st.IsBoardLoading = false
	})
	return nil
}

// LoadBoardColumns reloads the resident board's column tree wholesale. This
// is the scoped refetch used whenever an event cannot be applied cleanly.
func (s *Service) LoadBoardColumns(ctx context.Context, boardID int64) error {
	gen := s.store.BeginLoad()

	raw, err := s.api.GetBoardColumns(ctx, boardID)
	if err != nil {
		return fmt.Errorf("reload columns for board %d: %w", boardID, err)
	}
	columns := normalize.ColumnsJSON(raw)

	applied := s.store.UpdateIf(gen, "board.columns.reload", func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		st.Board.Columns = columns
		st.SnapshotPositions()
	})
	if !applied {
		s.log.Debug("superseded column reload discarded", zap.Int64("boardId", boardID))
	}
	return nil
}

// RenameBoard renames the resident board over the realtime channel and
// patches the scalar fields the acknowledgement carries.
func (s *Service) RenameBoard(ctx context.Context, name string) error {
	if s.rt == nil {
		return errs.ErrRealtimeUnavailable
	}

	var boardID int64
	s.store.View(func(st *store.State) { boardID = st.BoardID() })
	if boardID == 0 {
		return errs.ErrBoardNotLoaded
	}

	ack, err := s.rt.RenameBoard(ctx, boardID, name)
	if err != nil {
		return fmt.Errorf("rename board %d: %w", boardID, err)
	}

	var v any
	if err := json.Unmarshal(ack, &v); err != nil {
		return fmt.Errorf("%w: rename ack", errs.ErrInvalidPayload)
	}
	p, _ := normalize.AsMap(v)

	s.store.Update("board.rename", func(st *store.State) {
		if st.BoardID() != boardID {
			return
		}
		if v, ok := normalize.TrimmedString(p["name"]); ok {
			st.Board.Name = v
		}
		if v, ok := normalize.String(p["description"]); ok {
			st.Board.Description = v
		}
		if v, ok := normalize.String(p["date"]); ok {
			st.Board.Date = v
		}
		if hidden, ok := normalize.Bool(p["isAllCardsHidden"]); ok {
			st.Board.IsAllCardsHidden = hidden
		}
	})
	return nil
}
