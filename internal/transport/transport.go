// Package transport defines the request/response collaborator consumed by
// the pipeline, plus its HTTP implementation. The engine treats every call as
// request in, raw JSON out; interpretation of payloads belongs to the
// normalize layer.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/retro-board/internal/model"
)

// Error is a failed API call carrying an HTTP-like status code.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsStatus reports whether err is a transport error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// CreateColumnRequest is the body of a column create call.
type CreateColumnRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Color       model.ColumnColor `json:"color"`
}

// PositionChangeRequest is one entry of a batched position sync.
type PositionChangeRequest struct {
	ItemID      int64 `json:"itemId"`
	NewColumnID int64 `json:"newColumnId"`
	NewRowIndex int   `json:"newRowIndex"`
}

// API is the REST surface the pipeline persists through.
type API interface {
	// ListBoards returns the boards visible to the user.
	ListBoards(ctx context.Context, userID string) (json.RawMessage, error)
	// GetBoardColumns returns the full column/item tree of one board.
	GetBoardColumns(ctx context.Context, boardID int64) (json.RawMessage, error)

	CreateColumn(ctx context.Context, boardID int64, req CreateColumnRequest) (json.RawMessage, error)
	UpdateColumnName(ctx context.Context, columnID int64, name string) error
	UpdateColumnDescription(ctx context.Context, columnID int64, description string) error
	UpdateColumnColor(ctx context.Context, columnID int64, color model.ColumnColor) error
	DeleteColumn(ctx context.Context, columnID int64) error

	CreateItem(ctx context.Context, columnID int64, description string) (json.RawMessage, error)
	UpdateItemDescription(ctx context.Context, itemID int64, description string) error
	ToggleItemLike(ctx context.Context, itemID int64) error
	UpdateItemColor(ctx context.Context, itemID int64, color string) error
	DeleteItem(ctx context.Context, itemID int64) error

	// SyncItemPositions reports every item whose (column, row) drifted since
	// the last agreed snapshot, in one batch.
	SyncItemPositions(ctx context.Context, boardID int64, changes []PositionChangeRequest) error

	GetItemComments(ctx context.Context, itemID int64) (json.RawMessage, error)
	CreateItemComment(ctx context.Context, itemID int64, text string) (json.RawMessage, error)
	UpdateComment(ctx context.Context, commentID int64, text string) (json.RawMessage, error)
	DeleteComment(ctx context.Context, commentID int64) (json.RawMessage, error)

	// GetCurrentUser returns the session profile. Deployments that predate
	// the /me endpoint answer 404; callers then fall back to
	// GetCurrentUserLegacy.
	GetCurrentUser(ctx context.Context) (json.RawMessage, error)
	GetCurrentUserLegacy(ctx context.Context) (json.RawMessage, error)
}
