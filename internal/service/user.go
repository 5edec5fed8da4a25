package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/and161185/retro-board/internal/model"
	"github.com/and161185/retro-board/internal/normalize"
	"github.com/and161185/retro-board/internal/store"
	"github.com/and161185/retro-board/internal/transport"
)

// EnsureCurrentUser lazily loads the session profile. Concurrent callers are
// serialized; whoever arrives after the first successful load returns
// immediately. Deployments that predate the primary profile endpoint answer
// 404 and are retried against the legacy one.
func (s *Service) EnsureCurrentUser(ctx context.Context) error {
	s.userMu.Lock()
	defer s.userMu.Unlock()

	loaded := false
	s.store.View(func(st *store.State) {
		loaded = st.CurrentUser.ID != "" && st.CurrentUser.Email != ""
	})
	if loaded {
		return nil
	}

	raw, err := s.api.GetCurrentUser(ctx)
	if transport.IsStatus(err, http.StatusNotFound) {
		raw, err = s.api.GetCurrentUserLegacy(ctx)
	}
	if err != nil {
		return fmt.Errorf("load current user: %w", err)
	}

	var v any
	_ = json.Unmarshal(raw, &v)
	s.store.Update("user.load", func(st *store.State) {
		st.CurrentUser = normalize.User(v, st.CurrentUser)
	})
	return nil
}

// ClearCurrentUser drops the session profile, e.g. on logout or a rejected
// token.
func (s *Service) ClearCurrentUser() {
	s.store.Update("user.clear", func(st *store.State) {
		st.CurrentUser = model.User{}
	})
}

// CurrentUserID returns the loaded profile id, empty when none.
func (s *Service) CurrentUserID() string {
	var id string
	s.store.View(func(st *store.State) { id = st.CurrentUser.ID })
	return id
}
