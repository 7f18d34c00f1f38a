package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/StackOverflowed512/AI-Secretary/common/trace"
	"github.com/StackOverflowed512/AI-Secretary/common/version"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/assistant"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/ratelimit"
)

// maxBodyBytes caps request bodies; documents larger than this should be
// indexed through the CLI.
const maxBodyBytes = 8 << 20

// Server exposes /health, /status and the JSON API over the assistant.
type Server struct {
	addr      string
	assistant *assistant.Assistant
	vectors   vectorCounter
	backend   string
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// vectorCounter is the minimal interface the status endpoint needs from the
// vector store.
type vectorCounter interface {
	Count(ctx context.Context) (int, error)
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Addr      string
	Assistant *assistant.Assistant
	Vectors   vectorCounter
	Backend   string
	// Limiter bounds /api/ask per remote address. Nil disables it.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

type statusResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	BuildTime   string    `json:"build_time"`
	StartedAt   time.Time `json:"started_at"`
	UptimeSecs  float64   `json:"uptime_seconds"`
	VectorCount int       `json:"vector_count"`
	Backend     string    `json:"backend"`
}

type indexRequest struct {
	SourceType string         `json:"source_type"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
}

type indexResponse struct {
	Status string   `json:"status"`
	OK     bool     `json:"ok"`
	Kind   string   `json:"kind"`
	Chunks int      `json:"chunks"`
	IDs    []string `json:"ids,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
	Scope    string `json:"scope"`
}

type matchJSON struct {
	ID         string  `json:"id"`
	SourceType string  `json:"source_type"`
	Title      string  `json:"title"`
	Distance   float64 `json:"distance"`
}

type askResponse struct {
	Answer  string      `json:"answer"`
	OK      bool        `json:"ok"`
	Kind    string      `json:"kind"`
	Matches []matchJSON `json:"matches"`
}

type translateRequest struct {
	Text  string `json:"text"`
	Lang  string `json:"lang"`
	Index bool   `json:"index"`
}

type translateResponse struct {
	Translation string         `json:"translation"`
	Message     string         `json:"message"`
	OK          bool           `json:"ok"`
	Indexed     *indexResponse `json:"indexed,omitempty"`
}

type summariseRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Index bool   `json:"index"`
}

type summariseResponse struct {
	Summary string         `json:"summary"`
	Message string         `json:"message"`
	OK      bool           `json:"ok"`
	Indexed *indexResponse `json:"indexed,omitempty"`
}

type historyEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"ts"`
	TraceID   string    `json:"trace_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer creates and configures the HTTP server (does not start it).
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{
		addr:      cfg.Addr,
		assistant: cfg.Assistant,
		vectors:   cfg.Vectors,
		backend:   cfg.Backend,
		limiter:   cfg.Limiter,
		logger:    cfg.Logger,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/index", s.handleIndex)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/translate", s.handleTranslate)
	mux.HandleFunc("/api/summarise", s.handleSummarise)
	mux.HandleFunc("/api/history", s.handleHistory)
	return s
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener. Every request gets a trace id, taken from the
// X-Trace-ID header when present, and echoed back.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := r.Header.Get(trace.Header); id != "" {
		ctx = trace.WithTraceID(ctx, id)
	}
	ctx, id := trace.Ensure(ctx)
	w.Header().Set(trace.Header, id)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// Start begins listening in the background. It returns once the listener
// is established so the caller knows the port is open.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("http server shutdown error", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count := 0
	if s.vectors != nil {
		if n, err := s.vectors.Count(r.Context()); err == nil {
			count = n
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		Version:     version.Version,
		Commit:      version.GitCommit,
		BuildTime:   version.BuildTime,
		StartedAt:   s.startedAt,
		UptimeSecs:  time.Since(s.startedAt).Seconds(),
		VectorCount: count,
		Backend:     s.backend,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !decodePost(w, r, &req) {
		return
	}
	res := s.assistant.Index(r.Context(), actorFor(r), memory.Record{
		SourceType: req.SourceType,
		Title:      req.Title,
		Body:       req.Text,
		Extra:      req.Metadata,
	})
	code := http.StatusOK
	switch {
	case errors.Is(res.Err, memory.ErrMissingSourceType):
		code = http.StatusBadRequest
	case res.Kind == memory.KindFailed:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, toIndexResponse(res))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodePost(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) != "" {
		host := remoteHost(r)
		if !s.limiter.Allow(host) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error: fmt.Sprintf("⏳ Rate limit reached (%d questions per minute). Please wait a moment.", s.limiter.Limit()),
			})
			return
		}
		if s.limiter != nil {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(host)))
		}
	}

	res := s.assistant.Ask(r.Context(), actorFor(r), req.Question, req.Scope)
	resp := askResponse{
		Answer:  res.String(),
		OK:      res.OK(),
		Kind:    res.Kind.String(),
		Matches: make([]matchJSON, 0, len(res.Matches)),
	}
	for _, m := range res.Matches {
		resp.Matches = append(resp.Matches, matchJSON{
			ID:         m.ID,
			SourceType: m.SourceType(),
			Title:      m.Title(),
			Distance:   m.Distance,
		})
	}
	code := http.StatusOK
	if res.Kind == memory.KindFailed {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodePost(w, r, &req) {
		return
	}
	tr := s.assistant.Translate(r.Context(), actorFor(r), req.Text, req.Lang, req.Index)
	resp := translateResponse{Translation: tr.Text, Message: tr.Message, OK: tr.Err == nil}
	if tr.Indexed != nil {
		ir := toIndexResponse(*tr.Indexed)
		resp.Indexed = &ir
	}
	code := http.StatusOK
	if tr.Err != nil {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleSummarise(w http.ResponseWriter, r *http.Request) {
	var req summariseRequest
	if !decodePost(w, r, &req) {
		return
	}
	sum := s.assistant.Summarise(r.Context(), actorFor(r), req.Title, req.Text, req.Index)
	resp := summariseResponse{Summary: sum.Text, Message: sum.Message, OK: sum.Err == nil}
	if sum.Indexed != nil {
		ir := toIndexResponse(*sum.Indexed)
		resp.Indexed = &ir
	}
	code := http.StatusOK
	if sum.Err != nil {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	entries, err := s.assistant.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read history"})
		return
	}
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			TraceID:   e.TraceID,
			Actor:     e.Actor,
			Action:    e.Action,
			Target:    e.Target.String,
			Result:    e.Result,
			Error:     e.ErrorMessage.String,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toIndexResponse(res memory.Result) indexResponse {
	return indexResponse{
		Status: res.String(),
		OK:     res.OK(),
		Kind:   res.Kind.String(),
		Chunks: res.Chunks,
		IDs:    res.IDs,
	}
}

// decodePost enforces POST and decodes a JSON body into v. It writes the
// error response itself and reports whether the handler should continue.
func decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return false
	}
	if len(body) > maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// actorFor names the caller in the audit log.
func actorFor(r *http.Request) string {
	return "http:" + remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: failed to encode JSON response", "err", err)
	}
}
