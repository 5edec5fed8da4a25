// Package model defines the canonical in-memory shapes of one retro board.
package model

// ColumnColor is the three-part color scheme shared by a column and its cards.
type ColumnColor struct {
	ColumnColor string `json:"columnColor"`
	ItemColor   string `json:"itemColor"`
	ButtonColor string `json:"buttonColor"`
}

// Item is a single card. ColumnIndex/RowIndex are denormalized caches of the
// item's structural position; they are recomputed after every mutation and
// never treated as independent truth.
type Item struct {
	ID          int64
	Description string
	// CreatedAt is the server timestamp, empty until the item is persisted.
	CreatedAt string
	// SyncedDescription is the last description known to match the server;
	// baseline for suppressing redundant description patches.
	SyncedDescription string
	// Likes holds ids of users who liked the item.
	Likes         []string
	CommentsCount int
	Color         string
	// IsDraft marks an item created locally and not yet confirmed by the
	// server. Draft items carry a temporary id.
	IsDraft     bool
	ColumnIndex int
	RowIndex    int
}

// Column is an ordered group of items. Array order is display order and the
// source of truth for ColumnIndex.
type Column struct {
	ID            int64
	Name          string
	Description   string
	Color         ColumnColor
	IsNameEditing bool
	// IsDraft marks a column created locally with a temporary clock-derived
	// id, pending server confirmation.
	IsDraft bool
	Items   []*Item
}

// Board is the retrospective canvas. Exactly one board is resident at a time.
type Board struct {
	ID               int64
	Name             string
	Date             string
	Description      string
	IsAllCardsHidden bool
	TeamID           int64
	Columns          []*Column
}

// User is the current session's profile.
type User struct {
	ID    string
	Email string
	Name  string
}

// CommentCreator identifies the author of a comment.
type CommentCreator struct {
	ID    string
	Email string
	Name  string
}

// Comment is a single comment on an item, cached per item by the store.
type Comment struct {
	ID        int64
	ItemID    int64
	Text      string
	CreatedAt string
	Creator   CommentCreator
}

// Position is an item's (column, row) coordinate.
type Position struct {
	ColumnID int64
	RowIndex int
}

// PositionMap records per-item positions as of the last successful load or
// position sync; the diff baseline for "what changed since the server last
// agreed with us".
type PositionMap map[int64]Position

// PositionChange describes one item whose coordinate drifted from the last
// synced snapshot.
type PositionChange struct {
	ItemID      int64
	OldColumnID int64
	OldRowIndex int
	NewColumnID int64
	NewRowIndex int
}

// FindColumn returns the column with the given id, or nil.
func (b *Board) FindColumn(columnID int64) *Column {
	if b == nil {
		return nil
	}
	for _, c := range b.Columns {
		if c.ID == columnID {
			return c
		}
	}
	return nil
}

// FindItem locates an item by id across all columns and returns it with its
// owning column, or (nil, nil).
func (b *Board) FindItem(itemID int64) (*Column, *Item) {
	if b == nil {
		return nil, nil
	}
	for _, c := range b.Columns {
		for _, it := range c.Items {
			if it.ID == itemID {
				return c, it
			}
		}
	}
	return nil, nil
}

// MaxItemID returns the largest item id on the board, 0 when empty. Temporary
// draft ids are chosen above this value so they cannot collide with
// server-issued sequence numbers already present locally.
func (b *Board) MaxItemID() int64 {
	var max int64
	if b == nil {
		return 0
	}
	for _, c := range b.Columns {
		for _, it := range c.Items {
			if it.ID > max {
				max = it.ID
			}
		}
	}
	return max
}
