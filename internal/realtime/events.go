// Package realtime implements the board event channel: a websocket client
// for ack-style commands, and the merger that folds server-pushed events from
// other clients into the local store.
package realtime

import "encoding/json"

// Server-pushed event names.
const (
	EventBoardRenamed               = "board.renamed"
	EventBoardColumnsReordered      = "board.columns.reordered"
	EventBoardItemsPositionsSynced  = "board.items.positions.synced"
	EventColumnCreated              = "column.created"
	EventColumnNameUpdated          = "column.name.updated"
	EventColumnColorUpdated         = "column.color.updated"
	EventColumnDescriptionUpdated   = "column.description.updated"
	EventColumnDeleted              = "column.deleted"
	EventItemCreated                = "item.created"
	EventItemDescriptionUpdated     = "item.description.updated"
	EventItemLikeToggled            = "item.like.toggled"
	EventItemColorUpdated           = "item.color.updated"
	EventItemDeleted                = "item.deleted"
	EventItemCommentsFetched        = "item.comments.fetched"
	EventItemCommentCreated         = "item.comment.created"
	EventItemCommentUpdated         = "item.comment.updated"
	EventItemCommentDeleted         = "item.comment.deleted"
	EventTeamCardsVisibilityUpdated = "team.cards.visibility.updated"
)

// Client-initiated command names. Each expects a single acknowledgement.
const (
	CommandBoardJoin           = "board.join"
	CommandBoardRename         = "board.rename"
	CommandBoardColumnsReorder = "board.columns.reorder"
)

// eventAck is the reply to a client command, correlated by envelope id.
const eventAck = "ack"

// Envelope is the wire format of every channel message.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
