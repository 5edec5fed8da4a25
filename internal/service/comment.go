package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/retro-board/internal/errs"
	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/normalize"
	"github.com/and161185/retro-board/internal/store"
)

// FetchItemComments loads an item's comments and installs them as the cache;
// the item's counter follows the cache length from here on.
func (s *Service) FetchItemComments(ctx context.Context, itemID int64) ([]model.Comment, error) {
	raw, err := s.api.GetItemComments(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load comments of item %d: %w", itemID, err)
	}
	comments := normalize.CommentsJSON(raw)
	s.store.Update("comments.fetch", func(st *store.State) {
		st.SetCommentsCache(itemID, comments)
	})
	return comments, nil
}

// CreateItemComment posts a comment and folds the server's canonical version
// into the cache and counter. The comment id is recorded up front so the
// realtime echo of this create is recognized as a duplicate.
func (s *Service) CreateItemComment(ctx context.Context, itemID int64, text string) (model.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, fmt.Errorf("validation: empty comment text")
	}

	raw, err := s.api.CreateItemComment(ctx, itemID, text)
	if err != nil {
		return model.Comment{}, fmt.Errorf("create comment on item %d: %w", itemID, err)
	}
	comment, ok := decodeComment(raw)
	if !ok {
		return model.Comment{}, fmt.Errorf("%w: created comment", errs.ErrInvalidPayload)
	}

	s.store.Update("comment.create", func(st *store.State) {
		wasKnown := st.ItemIDByCommentID[comment.ID] == comment.ItemID
		st.ItemIDByCommentID[comment.ID] = comment.ItemID
		if _, hasCache := st.CommentsByItemID[comment.ItemID]; hasCache {
			st.MergeCommentCache(comment)
			return
		}
		if !wasKnown {
			st.BumpItemCommentsCount(comment.ItemID, 1)
		}
	})
	return comment, nil
}

// UpdateComment edits a comment's text and merges the server's version back
// into the cache.
func (s *Service) UpdateComment(ctx context.Context, commentID int64, text string) (model.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, fmt.Errorf("validation: empty comment text")
	}

	raw, err := s.api.UpdateComment(ctx, commentID, text)
	if err != nil {
		return model.Comment{}, fmt.Errorf("update comment %d: %w", commentID, err)
	}
	comment, ok := decodeComment(raw)
	if !ok {
		return model.Comment{}, fmt.Errorf("%w: updated comment", errs.ErrInvalidPayload)
	}

	s.store.Update("comment.update", func(st *store.State) {
		st.ItemIDByCommentID[comment.ID] = comment.ItemID
		st.MergeCommentCache(comment)
	})
	return comment, nil
}

// DeleteComment removes a comment once the server confirms the deletion,
// patching the cache and the item counter.
func (s *Service) DeleteComment(ctx context.Context, commentID int64) error {
	raw, err := s.api.DeleteComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", commentID, err)
	}

	var ack struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil || !ack.Deleted {
		return fmt.Errorf("%w: deletion not confirmed for comment %d", errs.ErrInvalidPayload, commentID)
	}

	s.store.Update("comment.delete", func(st *store.State) {
		itemID := st.ItemIDByCommentID[commentID]
		_, hasCache := st.CommentsByItemID[itemID]
		st.RemoveCommentFromCache(commentID, itemID)
		if itemID > 0 && !hasCache {
			st.BumpItemCommentsCount(itemID, -1)
		}
	})
	return nil
}

func decodeComment(raw json.RawMessage) (model.Comment, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.Comment{}, false
	}
	return normalize.Comment(v)
}
