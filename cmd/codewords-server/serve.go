package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/codewords-live/server/internal/ai"
	"github.com/codewords-live/server/internal/domain/board"
	"github.com/codewords-live/server/internal/httpapi"
	"github.com/codewords-live/server/internal/network"
	"github.com/codewords-live/server/internal/platform/logger"
	"github.com/codewords-live/server/internal/room"
	"github.com/codewords-live/server/internal/storage"
)

func serve(ctx context.Context, cfg *Config) error {
	appLogger := logger.NewLogger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db        *sql.DB
		roomStore storage.RoomStore
		history   storage.HistoryStore
		err       error
	)
	switch cfg.dbBackend {
	case "sqlite":
		appLogger.Info(fmt.Sprintf("Initializing SQLite database %q...", cfg.dbPath))
		db, err = storage.InitSQLite(cfg.dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		roomStore = storage.NewSQLiteRoomStore(db)
		history = storage.NewSQLiteHistoryStore(db)
	case "postgres":
		appLogger.Info("Initializing Postgres connection...")
		db, err = storage.InitPostgres(cfg.dbDSN)
		if err != nil {
			return fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		roomStore = storage.NewPostgresRoomStore(db)
		history = storage.NewPostgresHistoryStore(db)
	case "none":
		appLogger.Warn("Persistence disabled. Rooms will not survive a restart.")
	}
	if db != nil {
		defer db.Close()
	}

	var words board.WordSource
	if cfg.wordList != "" {
		pool, err := board.PoolFromFile(cfg.wordList)
		if err != nil {
			return fmt.Errorf("failed to load word list: %w", err)
		}
		appLogger.Info(fmt.Sprintf("Loaded %d words from %q.", pool.Len(), cfg.wordList))
		words = pool
	}

	appLogger.Info("Bootstrapping AI provider...")
	budgetGate := ai.NewBudgetGate(cfg.budgetUSD)
	llm := ai.NewHTTPService(budgetGate, ai.HTTPServiceOptions{
		BaseURL:      cfg.llmBaseURL,
		DefaultModel: cfg.llmModel,
	})
	if !llm.IsAvailable() {
		appLogger.Warn("LLM_API_KEY is not set. AI seats and clue assistance are disabled.")
	}

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger)
	go hub.Run(ctx)

	rooms := room.NewManager(room.Deps{
		Store:           roomStore,
		History:         history,
		AI:              llm,
		Broadcast:       hub,
		Log:             appLogger,
		Words:           words,
		DisableAutoPlay: cfg.noAutoPlay,
	})
	defer rooms.CloseAll()

	if roomStore != nil {
		n, err := rooms.LoadPersisted(ctx)
		if err != nil {
			return fmt.Errorf("failed to reload persisted rooms: %w", err)
		}
		appLogger.Info(fmt.Sprintf("Reloaded %d persisted room(s).", n))
	}
	rooms.StartReaper(ctx, cfg.roomIdleTTL, cfg.reapInterval)

	api := httpapi.NewServer(httpapi.Options{
		Rooms:   rooms,
		Hub:     hub,
		History: history,
		Log:     appLogger,
		BaseURL: cfg.baseURL,
	})

	httpServer := &http.Server{
		Addr:         cfg.listenAddr(),
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // AI endpoints can block on the provider
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info(fmt.Sprintf("HTTP API & WS server listening on %s", cfg.listenAddr()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Shutdown did not complete cleanly: " + err.Error())
	}
	return nil
}
