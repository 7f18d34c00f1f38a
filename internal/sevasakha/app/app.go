// Package app wires the assistant together: database, embedder, vector
// store, language helpers, HTTP API and the optional Matrix gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/assistant"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/commands"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/config"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/matrix"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/ratelimit"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/store"
)

// App is the assembled assistant.
type App struct {
	config    *config.Config
	logger    *slog.Logger
	store     *store.Store
	embedder  memory.Embedder
	cache     *memory.CachingEmbedder
	vectors   memory.VectorStore
	assistant *assistant.Assistant
	limiter   *ratelimit.Limiter
	server    *Server
	matrix    *matrix.Client
	router    *commands.Router
	handlers  *commands.Handlers
}

// Option customises New. Tests use it to swap the chat provider.
type Option func(*options)

type options struct {
	provider llm.Provider
}

// WithProvider replaces the OpenAI-compatible chat provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New builds every component from cfg. It opens the database and the vector
// store but does not listen or connect to Matrix; Run does that.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger.Info("opening database", "path", cfg.DatabasePath)
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{config: cfg, logger: logger, store: db}

	if err := a.initMemory(); err != nil {
		a.Close()
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			ChatURL: cfg.LLM.ChatURL,
			Model:   cfg.LLM.ChatModel,
			Timeout: cfg.LLM.Timeout,
		})
	}

	chunker, err := memory.NewChunker(cfg.Memory.ChunkSize, cfg.Memory.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RateLimit.AskPerMinute > 0 {
		a.limiter = ratelimit.New(cfg.RateLimit.AskPerMinute, time.Minute)
	}

	a.assistant = assistant.New(assistant.Config{
		Indexer: memory.NewIndexer(a.vectors, chunker, logger),
		QA: memory.NewQA(a.vectors, provider, memory.QAConfig{
			TopK:   cfg.Memory.TopK,
			Model:  cfg.LLM.ChatModel,
			Logger: logger,
		}),
		Translator: llm.NewTranslator(provider, cfg.LLM.ChatModel),
		Summariser: llm.NewSummariser(provider, cfg.LLM.ChatModel),
		Audit:      db,
		Logger:     logger,
		Secrets:    []string{cfg.LLM.APIKey, cfg.Matrix.AccessToken},
	})

	if cfg.HTTPAddr != "" {
		a.server = NewServer(ServerConfig{
			Addr:      cfg.HTTPAddr,
			Assistant: a.assistant,
			Vectors:   a.vectors,
			Backend:   cfg.Memory.Backend,
			Limiter:   a.limiter,
			Logger:    logger,
		})
	}

	a.router = commands.NewRouter(commands.DefaultPrefix)
	a.handlers = commands.NewHandlers(commands.HandlersConfig{
		Assistant:     a.assistant,
		Limiter:       a.limiter,
		IndexMessages: cfg.Matrix.IndexMessages,
	})
	a.handlers.Register(a.router)

	return a, nil
}

// initMemory selects the embedder and the vector backend.
func (a *App) initMemory() error {
	mc := a.config.Memory

	var (
		inner     memory.Embedder
		namespace string
	)
	switch mc.Embedder {
	case config.EmbedderHash:
		a.logger.Warn("using the offline hash embedder; answers will only match shared words")
		inner = memory.NewHashEmbedder(0)
		namespace = config.EmbedderHash
	default:
		inner = memory.NewOpenAIEmbedder(memory.OpenAIEmbedderConfig{
			APIKey:  a.config.LLM.APIKey,
			BaseURL: a.config.LLM.BaseURL,
			Model:   a.config.LLM.EmbedModel,
			Timeout: a.config.LLM.Timeout,
		})
		namespace = a.config.LLM.EmbedModel
	}
	a.embedder = inner

	if mc.CacheBytes > 0 {
		cache, err := memory.NewCachingEmbedder(inner, namespace, mc.CacheBytes)
		if err != nil {
			return err
		}
		a.cache = cache
		a.embedder = cache
	}

	switch mc.Backend {
	case config.BackendSQLite:
		a.vectors = memory.NewSQLiteVectorStore(a.store.DB(), a.embedder, a.logger)
	default:
		vs, err := memory.NewChromemVectorStore(memory.ChromemConfig{
			Path:       mc.ChromaPath,
			Collection: mc.Collection,
			Compress:   mc.Compress,
		}, a.embedder, a.logger)
		if err != nil {
			return err
		}
		a.vectors = vs
	}
	a.logger.Info("memory ready", "backend", mc.Backend, "embedder", mc.Embedder)
	return nil
}

// Assistant returns the assembled assistant for one-shot CLI commands.
func (a *App) Assistant() *assistant.Assistant { return a.assistant }

// Vectors returns the vector store.
func (a *App) Vectors() memory.VectorStore { return a.vectors }

// Handler returns the HTTP API handler, or nil when no address is
// configured.
func (a *App) Handler() *Server { return a.server }

// Run starts the HTTP API and the Matrix gateway and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.server == nil && !a.config.Matrix.Enabled() {
		return errors.New("nothing to serve: set HTTP_ADDR or MATRIX_HOMESERVER")
	}

	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return err
		}
	}

	if a.config.Matrix.Enabled() {
		if err := a.startMatrix(ctx); err != nil {
			return err
		}
	}

	a.logger.Info("sevasakha is running; press Ctrl+C to stop")
	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

func (a *App) startMatrix(ctx context.Context) error {
	mc := a.config.Matrix
	a.logger.Info("connecting to Matrix", "homeserver", mc.Homeserver)
	client, err := matrix.New(&matrix.Config{
		Homeserver:  mc.Homeserver,
		UserID:      mc.UserID,
		AccessToken: mc.AccessToken,
		Rooms:       mc.Rooms,
		DB:          a.store.DB(),
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	a.matrix = client
	if err := client.Start(ctx, a.handleMessage); err != nil {
		return err
	}
	for _, roomID := range mc.Rooms {
		if err := client.SendNotice(ctx, roomID, "✅ Seva-Sakha is online. Type !help for commands."); err != nil {
			a.logger.Warn("failed to announce start", "room", roomID, "err", err)
		}
	}
	return nil
}

// handleMessage routes "!" commands and, when enabled, indexes everything
// else.
func (a *App) handleMessage(ctx context.Context, evt *event.Event) {
	msg := evt.Content.AsMessage()
	if msg == nil {
		return
	}
	roomID, eventID := evt.RoomID.String(), evt.ID.String()

	response, err := a.router.Route(ctx, msg.Body, evt)
	switch {
	case errors.Is(err, commands.ErrNotACommand):
		a.handlers.IndexMessage(ctx, evt)
		return
	case err != nil:
		response = fmt.Sprintf("❌ %s", err)
	}
	if response == "" {
		return
	}
	if err := a.matrix.ReplyNotice(ctx, roomID, eventID, response); err != nil {
		a.logger.Error("failed to send reply", "room", roomID, "err", err)
	}
}

// Close releases the Matrix client, HTTP server, cache and database.
func (a *App) Close() {
	if a.matrix != nil {
		a.matrix.Stop()
		a.matrix = nil
	}
	if a.server != nil {
		a.server.Stop()
	}
	if a.vectors != nil {
		if err := a.vectors.Close(); err != nil {
			a.logger.Warn("failed to close vector store", "err", err)
		}
		a.vectors = nil
	}
	if a.cache != nil {
		a.cache.Close()
		a.cache = nil
	}
	if a.store != nil {
		a.logger.Info("closing database")
		a.store.Close()
		a.store = nil
	}
}
