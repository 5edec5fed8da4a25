// Command retro loads a retrospective board, joins its realtime room and
// keeps the local state reconciled, logging every applied change. It is the
// reference wiring of the sync engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/realtime"
	"github.com/and161185/retro-board/internal/service"
	"github.com/and161185/retro-board/internal/session"
	"github.com/and161185/retro-board/internal/store"
	"github.com/and161185/retro-board/internal/transport"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, wires the pipeline and merger together and tails
// board changes until interrupted.
func main() {
	// Flags
	apiURL := flag.String("api-url", "http://localhost:3000", "REST API base URL")
	wsURL := flag.String("ws-url", "ws://localhost:3000/ws", "realtime channel URL")
	tokenFile := flag.String("token-file", "", "file holding the access token (required)")
	userID := flag.String("user-id", "", "user whose board to load (required)")
	boardID := flag.Int64("board-id", 0, "board to load; 0 loads the user's first board")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("apiUrl", *apiURL),
	)

	if *tokenFile == "" {
		logger.Fatal("missing access token file (--token-file)")
	}
	if *userID == "" {
		logger.Fatal("missing user id (--user-id)")
	}
	tokenBytes, err := os.ReadFile(*tokenFile)
	if err != nil {
		logger.Fatal("read token file", zap.Error(err))
	}

	sess := session.New()
	sess.SetTokens(strings.TrimSpace(string(tokenBytes)), "")

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := transport.NewClient(*apiURL, sess.AccessToken)
	st := store.New()

	// The realtime client needs a handler, the handler (merger) needs the
	// pipeline for refetches, and the pipeline needs the client for socket
	// commands. Dial with a forwarding handler and close the loop afterwards.
	var merger *realtime.Merger
	rt, err := realtime.Dial(ctx, *wsURL, sess.AccessToken(), func(event string, data json.RawMessage) {
		if merger != nil {
			merger.Handle(ctx, event, data)
		}
	}, logger)
	if err != nil {
		logger.Fatal("dial realtime channel", zap.Error(err))
	}
	defer func() { _ = rt.Close() }()

	svc := service.New(st, api, rt, logger)
	merger = realtime.NewMerger(st, svc, logger)

	if err := svc.EnsureCurrentUser(ctx); err != nil {
		logger.Warn("current user unavailable", zap.Error(err))
	}

	if *boardID > 0 {
		err = svc.LoadBoardByID(ctx, *userID, *boardID)
	} else {
		err = svc.LoadBoardForUser(ctx, *userID)
	}
	if err != nil {
		logger.Fatal("load board", zap.Error(err))
	}

	var joinedBoard int64
	st.View(func(s *store.State) { joinedBoard = s.BoardID() })
	if joinedBoard == 0 {
		logger.Fatal("no board available for user", zap.String("userId", *userID))
	}
	if err := rt.JoinBoard(ctx, joinedBoard); err != nil {
		logger.Fatal("join board room", zap.Error(err))
	}
	logger.Info("board resident", zap.Int64("boardId", joinedBoard))

	changes := st.Subscribe(64)
	for {
		select {
		case change := <-changes:
			var columns, items int
			st.View(func(s *store.State) {
				columns = len(s.Columns())
				for _, column := range s.Columns() {
					items += len(column.Items)
				}
			})
			logger.Info("state changed",
				zap.String("op", change.Op),
				zap.Int("columns", columns),
				zap.Int("items", items),
			)
		case <-rt.Done():
			logger.Error("realtime channel closed")
			os.Exit(1)
		case <-ctx.Done():
			logger.Info("shutdown complete")
			return
		}
	}
}
