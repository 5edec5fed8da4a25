package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/retro-board/internal/errs"
	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/normalize"
	"github.com/and161185/retro-board/internal/store"
)

// draftItemPlaceholder seeds a freshly added card so the editor opens with a
// prompt rather than an empty box.
const draftItemPlaceholder = "Describe the new item"

// AddItemToColumn inserts a draft card at the top of a column and makes it
// the active item. Drafts are local only: the temporary id is max(existing)+1
// and nothing touches the network until the description is committed.
func (s *Service) AddItemToColumn(columnID int64) (int64, error) {
	var itemID int64
	s.store.Update("item.add", func(st *store.State) {
		column := st.Board.FindColumn(columnID)
		if column == nil {
			return
		}
		st.EnsurePositionsInitialized()

		itemID = st.Board.MaxItemID() + 1
		item := &model.Item{
			ID:          itemID,
			Description: draftItemPlaceholder,
			Likes:       []string{},
			IsDraft:     true,
		}
		column.Items = append([]*model.Item{item}, column.Items...)
		st.ActiveItemID = itemID
	})
	if itemID == 0 {
		return 0, errs.ErrNotFound
	}
	return itemID, nil
}

// SetItemDescriptionLocal updates a card's text while the user types; nothing
// is persisted until CommitItemDescription.
func (s *Service) SetItemDescriptionLocal(itemID int64, description string) {
	s.store.Update("item.description.set", func(st *store.State) {
		if _, item := st.Board.FindItem(itemID); item != nil {
			item.Description = description
		}
	})
}

// SetActiveItem records which card is open in the editor; 0 closes it.
func (s *Service) SetActiveItem(itemID int64) {
	s.store.Update("item.active.set", func(st *store.State) {
		st.ActiveItemID = itemID
	})
}

// CommitItemDescription persists a card's description. A draft card turns
// into a deferred create: the server-issued id replaces the temporary one and
// the stale snapshot entry is dropped. A persisted card is patched only when
// the text actually differs from the last server-confirmed description.
func (s *Service) CommitItemDescription(ctx context.Context, itemID int64, description string) error {
	var (
		persisted string
		isDraft   bool
		columnID  int64
		found     bool
	)
	s.store.Update("item.description.commit", func(st *store.State) {
		column, item := st.Board.FindItem(itemID)
		if item == nil {
			return
		}
		persisted = item.SyncedDescription
		if persisted == "" {
			persisted = item.Description
		}
		item.Description = description
		isDraft = item.IsDraft
		columnID = column.ID
		found = true
	})
	if !found {
		return errs.ErrNotFound
	}

	if isDraft {
		return s.createDraftItem(ctx, itemID, columnID, description)
	}

	if persisted == description {
		return nil
	}
	s.store.Update("item.description.synced", func(st *store.State) {
		if _, item := st.Board.FindItem(itemID); item != nil {
			item.SyncedDescription = description
		}
	})
	if err := s.api.UpdateItemDescription(ctx, itemID, description); err != nil {
		return fmt.Errorf("update description of item %d: %w", itemID, err)
	}
	return nil
}

func (s *Service) createDraftItem(ctx context.Context, tempID, columnID int64, description string) error {
	raw, err := s.api.CreateItem(ctx, columnID, description)
	if err != nil {
		return fmt.Errorf("create item in column %d: %w", columnID, err)
	}

	var v any
	_ = json.Unmarshal(raw, &v)
	p, _ := normalize.AsMap(v)

	s.store.Update("item.create.confirm", func(st *store.State) {
		_, item := st.Board.FindItem(tempID)
		if item == nil {
			// A realtime echo already adopted the draft.
			return
		}
		if id, ok := normalize.PositiveInt(p["id"]); ok {
			item.ID = id
		}
		if desc, ok := normalize.String(p["description"]); ok {
			item.Description = desc
		}
		if created, ok := normalize.TrimmedString(p["createdAt"]); ok {
			item.CreatedAt = created
		}
		if _, present := p["likes"]; present {
			if _, isArray := p["likes"].([]any); isArray {
				item.Likes = normalize.StringSlice(p["likes"])
			}
		}
		if count, ok := normalize.Index(p["commentsCount"]); ok {
			item.CommentsCount = count
		}
		if _, present := p["color"]; present {
			item.Color, _ = normalize.String(p["color"])
		}
		item.IsDraft = false
		item.SyncedDescription = item.Description

		if item.ID != tempID {
			// The temporary id must not linger as a phantom position.
			delete(st.LastSyncedPositions, tempID)
		}
		if st.ActiveItemID == tempID {
			st.ActiveItemID = item.ID
		}
		st.SnapshotPositions()
	})
	return nil
}

// ToggleItemLike flips the current user's like on a card. userID overrides
// the session user when non-empty. Drafts toggle locally but never hit the
// network.
func (s *Service) ToggleItemLike(ctx context.Context, itemID int64, userID string) error {
	if userID == "" {
		s.store.View(func(st *store.State) { userID = st.CurrentUser.ID })
	}

	var (
		isDraft bool
		found   bool
	)
	s.store.Update("item.like.toggle", func(st *store.State) {
		_, item := st.Board.FindItem(itemID)
		if item == nil {
			return
		}
		found = true
		isDraft = item.IsDraft
		if userID == "" {
			return
		}
		for i, like := range item.Likes {
			if like == userID {
				item.Likes = append(item.Likes[:i], item.Likes[i+1:]...)
				return
			}
		}
		item.Likes = append(item.Likes, userID)
	})
	if !found {
		return errs.ErrNotFound
	}
	if isDraft {
		return nil
	}
	if err := s.api.ToggleItemLike(ctx, itemID); err != nil {
		return fmt.Errorf("toggle like on item %d: %w", itemID, err)
	}
	return nil
}

// SetItemColor applies a card color override; empty clears it. Drafts stay
// local.
func (s *Service) SetItemColor(ctx context.Context, itemID int64, color string) error {
	var (
		isDraft bool
		found   bool
	)
	s.store.Update("item.color.set", func(st *store.State) {
		if _, item := st.Board.FindItem(itemID); item != nil {
			item.Color = color
			isDraft = item.IsDraft
			found = true
		}
	})
	if !found {
		return errs.ErrNotFound
	}
	if isDraft {
		return nil
	}
	if err := s.api.UpdateItemColor(ctx, itemID, color); err != nil {
		return fmt.Errorf("update color of item %d: %w", itemID, err)
	}
	return nil
}

// DeleteItem removes a card everywhere it appears and syncs the shifted
// positions. Draft cards are deleted locally only.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	var (
		isDraft bool
		found   bool
	)
	s.store.Update("item.delete", func(st *store.State) {
		st.EnsurePositionsInitialized()
		for _, column := range st.Columns() {
			kept := column.Items[:0]
			for _, item := range column.Items {
				if item.ID != itemID {
					kept = append(kept, item)
					continue
				}
				found = true
				isDraft = item.IsDraft
			}
			column.Items = kept
		}
		if st.ActiveItemID == itemID {
			st.ActiveItemID = 0
		}
	})
	if !found {
		return errs.ErrNotFound
	}

	var deleteErr error
	if !isDraft {
		if err := s.api.DeleteItem(ctx, itemID); err != nil {
			deleteErr = fmt.Errorf("delete item %d: %w", itemID, err)
		}
	}
	if err := s.SyncChangedItemPositions(ctx); err != nil && deleteErr == nil {
		deleteErr = err
	}
	return deleteErr
}
