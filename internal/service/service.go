// Package service is the optimistic mutation pipeline: every user-facing
// operation mutates the store first, persists over the transport, and on
// failure restores the exact prior state. Methods return the persistence
// error so callers can surface it; the optimistic rollback has already
// happened by then.
package service

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/store"
	"github.com/and161185/retro-board/internal/transport"
)

// Commander is the ack-style command surface of the realtime channel. The
// pipeline drives it for operations that are socket-first; everything else
// goes over the transport API.
type Commander interface {
	JoinBoard(ctx context.Context, boardID int64) error
	RenameBoard(ctx context.Context, boardID int64, name string) (json.RawMessage, error)
	ReorderColumns(ctx context.Context, boardID int64, oldIndex, newIndex int) (json.RawMessage, error)
}

// Service owns every board mutation entry point.
type Service struct {
	store *store.Store
	api   transport.API
	rt    Commander
	log   *zap.Logger

	// userMu single-flights the lazy current-user fetch.
	userMu sync.Mutex
}

// New builds the pipeline. rt may be nil when the realtime channel is not
// connected; socket-first operations then fail with ErrRealtimeUnavailable.
func New(st *store.Store, api transport.API, rt Commander, log *zap.Logger) *Service {
	return &Service{store: st, api: api, rt: rt, log: log}
}

// Store exposes the underlying store for read access and subscriptions.
func (s *Service) Store() *store.Store { return s.store }
