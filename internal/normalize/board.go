package normalize

import (
	"encoding/json"

	"github.com/and161185/retro-board/internal/model"
)

// Board validates one raw board entry; an entry without a positive id is
// rejected. Columns are normalized only when embedded as an array — a nil
// Columns slice means the payload carried none and they must be fetched
// separately (an embedded empty array normalizes to an empty non-nil slice).
func Board(v any) (*model.Board, bool) {
	m, ok := AsMap(v)
	if !ok {
		return nil, false
	}
	id, ok := PositiveInt(m["id"])
	if !ok {
		return nil, false
	}

	board := &model.Board{ID: id}
	if s, ok := String(m["name"]); ok {
		board.Name = s
	}
	if s, ok := String(m["date"]); ok {
		board.Date = s
	}
	if s, ok := String(m["description"]); ok {
		board.Description = s
	}
	if b, ok := Bool(m["isAllCardsHidden"]); ok {
		board.IsAllCardsHidden = b
	}
	if teamID, ok := PositiveInt(m["teamId"]); ok {
		board.TeamID = teamID
	}
	if raw, ok := m["columns"].([]any); ok {
		board.Columns = Columns(raw)
	}
	return board, true
}

// BoardsJSON decodes and validates a raw JSON board list, discarding
// malformed entries.
func BoardsJSON(raw json.RawMessage) []*model.Board {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	entries, ok := v.([]any)
	if !ok {
		return nil
	}
	boards := make([]*model.Board, 0, len(entries))
	for _, entry := range entries {
		if board, ok := Board(entry); ok {
			boards = append(boards, board)
		}
	}
	return boards
}
