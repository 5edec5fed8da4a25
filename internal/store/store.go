// Package store holds the canonical mutable state of the currently loaded
// board. All mutations from the pipeline and the realtime merger are
// linearized through Update, which restores the row/column-index invariant
// before returning and publishes a change notification afterwards, so readers
// never observe an item whose cached indices disagree with its structural
// position.
package store

import (
	"sync"

	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/position"
)

// State is the mutable board state. It must only be touched inside Update or
// View closures.
type State struct {
	// Board is the resident board; nil when none is loaded.
	Board          *model.Board
	IsBoardLoading bool
	// ActiveItemID is the card currently opened by the user, 0 for none.
	ActiveItemID int64
	CurrentUser  model.User
	// LastSyncedPositions is the diff baseline captured after every
	// successful load or position sync.
	LastSyncedPositions model.PositionMap
	// CommentsByItemID caches ordered comment lists per item.
	CommentsByItemID map[int64][]model.Comment
	// ItemIDByCommentID resolves deletion events that omit the item id.
	ItemIDByCommentID map[int64]int64
	// ColumnsReorderError retains the last failed reorder message for display.
	ColumnsReorderError string
}

// Change notifies subscribers that a mutation completed.
type Change struct {
	// Op names the operation that mutated the state.
	Op string
}

// Store owns the State and serializes access to it.
type Store struct {
	mu    sync.Mutex
	state State

	reorderPending bool
	loadGen        uint64

	subMu sync.Mutex
	subs  []chan Change
}

// New returns an empty store with no board loaded.
func New() *Store {
	return &Store{
		state: State{
			LastSyncedPositions: make(model.PositionMap),
			CommentsByItemID:    make(map[int64][]model.Comment),
			ItemIDByCommentID:   make(map[int64]int64),
		},
	}
}

// Update runs fn with exclusive access to the state, recomputes item indices
// and publishes a Change named op. Mutations must not block on I/O inside fn.
func (s *Store) Update(op string, fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	if s.state.Board != nil {
		position.Recalculate(s.state.Board.Columns)
	}
	s.mu.Unlock()
	s.publish(Change{Op: op})
}

// UpdateIf applies fn only when gen still matches the current load
// generation; a superseded reload's late response is discarded without
// mutating state. Reports whether fn ran.
func (s *Store) UpdateIf(gen uint64, op string, fn func(st *State)) bool {
	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		return false
	}
	fn(&s.state)
	if s.state.Board != nil {
		position.Recalculate(s.state.Board.Columns)
	}
	s.mu.Unlock()
	s.publish(Change{Op: op})
	return true
}

// View runs fn with shared access to the state. fn must not mutate.
func (s *Store) View(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// BeginLoad starts a new list-reload generation, invalidating responses of
// any reload still in flight.
func (s *Store) BeginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadGen++
	return s.loadGen
}

// TryBeginColumnsReorder acquires the single-flight reorder guard.
func (s *Store) TryBeginColumnsReorder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reorderPending {
		return false
	}
	s.reorderPending = true
	return true
}

// EndColumnsReorder releases the reorder guard.
func (s *Store) EndColumnsReorder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reorderPending = false
}

// Subscribe registers a change listener. Notifications are dropped rather
// than blocking a slow consumer.
func (s *Store) Subscribe(buffer int) <-chan Change {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) publish(ch Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub <- ch:
		default:
		}
	}
}

// Columns returns the resident board's columns, nil when no board is loaded.
func (st *State) Columns() []*model.Column {
	if st.Board == nil {
		return nil
	}
	return st.Board.Columns
}

// BoardID returns the resident board id, 0 when none is loaded.
func (st *State) BoardID() int64 {
	if st.Board == nil {
		return 0
	}
	return st.Board.ID
}

// SnapshotPositions captures the current positions as the new sync baseline.
// Call after a successful load or position sync.
func (st *State) SnapshotPositions() {
	st.LastSyncedPositions = position.Snapshot(st.Columns())
}

// EnsurePositionsInitialized captures a baseline if none exists yet.
func (st *State) EnsurePositionsInitialized() {
	if len(st.LastSyncedPositions) > 0 {
		return
	}
	st.SnapshotPositions()
}

// ResetBoard drops the resident board and every cache derived from it.
func (st *State) ResetBoard() {
	st.Board = nil
	st.ActiveItemID = 0
	st.LastSyncedPositions = make(model.PositionMap)
	st.CommentsByItemID = make(map[int64][]model.Comment)
	st.ItemIDByCommentID = make(map[int64]int64)
	st.ColumnsReorderError = ""
}

// SetItemCommentsCount sets an item's comment counter, clamped at zero.
func (st *State) SetItemCommentsCount(itemID int64, count int) {
	_, item := st.Board.FindItem(itemID)
	if item == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	item.CommentsCount = count
}

// BumpItemCommentsCount shifts an item's comment counter, clamped at zero.
func (st *State) BumpItemCommentsCount(itemID int64, delta int) {
	_, item := st.Board.FindItem(itemID)
	if item == nil {
		return
	}
	item.CommentsCount += delta
	if item.CommentsCount < 0 {
		item.CommentsCount = 0
	}
}

// SetCommentsCache replaces an item's comment cache, deduplicating by id and
// rebuilding the reverse index. The item counter follows the cache length.
func (st *State) SetCommentsCache(itemID int64, comments []model.Comment) {
	if itemID <= 0 {
		return
	}

	unique := make([]model.Comment, 0, len(comments))
	seen := make(map[int64]int, len(comments))
	for _, comment := range comments {
		if comment.ID <= 0 {
			continue
		}
		if at, dup := seen[comment.ID]; dup {
			unique[at] = comment
			continue
		}
		seen[comment.ID] = len(unique)
		unique = append(unique, comment)
	}

	for _, previous := range st.CommentsByItemID[itemID] {
		delete(st.ItemIDByCommentID, previous.ID)
	}
	for _, comment := range unique {
		st.ItemIDByCommentID[comment.ID] = itemID
	}
	st.CommentsByItemID[itemID] = unique
	st.SetItemCommentsCount(itemID, len(unique))
}

// MergeCommentCache updates or appends one comment in its item's cache. A
// missing cache is not an error; the cache is only built by an explicit
// fetch.
func (st *State) MergeCommentCache(comment model.Comment) {
	if comment.ItemID <= 0 {
		return
	}
	cached, ok := st.CommentsByItemID[comment.ItemID]
	if !ok {
		return
	}

	merged := false
	for i := range cached {
		if cached[i].ID == comment.ID {
			cached[i] = comment
			merged = true
			break
		}
	}
	if !merged {
		cached = append(cached, comment)
	}
	st.CommentsByItemID[comment.ItemID] = cached
	st.ItemIDByCommentID[comment.ID] = comment.ItemID
	st.SetItemCommentsCount(comment.ItemID, len(cached))
}

// ClearCommentsCache drops an item's comment cache and its reverse entries.
func (st *State) ClearCommentsCache(itemID int64) {
	cached, ok := st.CommentsByItemID[itemID]
	if !ok {
		return
	}
	for _, comment := range cached {
		delete(st.ItemIDByCommentID, comment.ID)
	}
	delete(st.CommentsByItemID, itemID)
}

// RemoveCommentFromCache removes one comment, resolving the owning item from
// the reverse index when itemID is 0. The counter follows the cache length.
func (st *State) RemoveCommentFromCache(commentID, itemID int64) {
	if commentID <= 0 {
		return
	}
	if itemID <= 0 {
		itemID = st.ItemIDByCommentID[commentID]
	}
	if itemID <= 0 {
		return
	}

	cached, ok := st.CommentsByItemID[itemID]
	if !ok {
		delete(st.ItemIDByCommentID, commentID)
		return
	}

	next := cached[:0]
	for _, comment := range cached {
		if comment.ID != commentID {
			next = append(next, comment)
		}
	}
	st.CommentsByItemID[itemID] = next
	delete(st.ItemIDByCommentID, commentID)
	st.SetItemCommentsCount(itemID, len(next))
}
