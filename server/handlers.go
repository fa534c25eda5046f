package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mcpchat/mcp"
	"mcpchat/model"
	"mcpchat/storage"
)

const headerContentType = "Content-Type"

const redacted = "********"

// Handlers holds the dependencies of the HTTP endpoints.
type Handlers struct {
	chat   ChatRunner
	tools  ToolSource
	store  ServerStore
	logger *zap.Logger
}

// NewHandlers wires the endpoint dependencies. store may be nil, in which
// case the /api/servers routes answer 503.
func NewHandlers(chat ChatRunner, tools ToolSource, store ServerStore, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{chat: chat, tools: tools, store: store, logger: logger}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := h.tools.ListTools()
	if tools == nil {
		tools = []model.ToolDescriptor{}
	}
	writeJSON(w, http.StatusOK, tools)
}

type chatRequest struct {
	Messages []model.Message `json:"messages"`
	Message  string          `json:"message,omitempty"` // appended as a user message
}

// Chat runs one orchestration call and streams its events as
// `data: <json>\n\n` frames.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	history := req.Messages
	if req.Message != "" {
		history = append(history, model.NewMessage(model.RoleUser, req.Message))
	}
	if len(history) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	for i, msg := range history {
		if !validRole(msg.Role) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d]: unknown role %q", i, msg.Role))
			return
		}
	}

	bw, flusher, err := prepareStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := h.chat.Run(ctx, history, h.tools.ListTools())
	if err := streamEvents(bw, flusher, events); err != nil {
		h.logger.Debug("chat stream aborted", zap.Error(err))
		cancel()
		for range events {
		}
	}
}

func validRole(role string) bool {
	switch role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem, model.RoleTool:
		return true
	}
	return false
}

func prepareStream(w http.ResponseWriter) (*bufio.Writer, http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Flusher")
	}

	w.Header().Set(headerContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return bufio.NewWriter(w), flusher, nil
}

// streamEvents writes every event as one SSE frame and flushes it
// immediately so content reaches the client in arrival order.
func streamEvents(bw *bufio.Writer, flusher http.Flusher, events <-chan model.Event) error {
	for ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Type, err)
		}
		if _, err := fmt.Fprintf(bw, "data: %s\n\n", b); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		flusher.Flush()
	}
	return nil
}

type serverView struct {
	mcp.ServerConfig
	Running bool   `json:"running"`
	Tools   int    `json:"tools"`
	Error   string `json:"error,omitempty"`
}

func (h *Handlers) ListServers(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "server storage not configured")
		return
	}
	records, err := h.store.List()
	if err != nil {
		h.logger.Error("list servers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list servers")
		return
	}

	statuses := make(map[string]mcp.Status)
	for _, st := range h.tools.Statuses() {
		statuses[st.ID] = st
	}

	views := make([]serverView, 0, len(records))
	for _, rec := range records {
		st := statuses[rec.ID]
		views = append(views, serverView{
			ServerConfig: redact(rec.ServerConfig),
			Running:      st.Running,
			Tools:        st.Tools,
			Error:        st.Error,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// AddServer stores a server definition and starts it when enabled. A start
// failure is reported in the response but the definition is kept.
func (h *Handlers) AddServer(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "server storage not configured")
		return
	}
	var cfg mcp.ServerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Save(cfg); err != nil {
		h.logger.Error("save server", zap.String("server", cfg.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save server")
		return
	}

	view := serverView{ServerConfig: redact(cfg)}
	if cfg.Enabled {
		if err := h.tools.StartServer(r.Context(), cfg); err != nil {
			h.logger.Warn("server saved but failed to start", zap.String("server", cfg.ID), zap.Error(err))
			view.Error = err.Error()
		} else {
			view.Running = true
		}
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) RemoveServer(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "server storage not configured")
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.tools.StopServer(r.Context(), id); err != nil {
		h.logger.Debug("stop server", zap.String("server", id), zap.Error(err))
	}
	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, storage.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		h.logger.Error("delete server", zap.String("server", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete server")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// redact hides env and header values that look like credentials.
func redact(cfg mcp.ServerConfig) mcp.ServerConfig {
	cfg.Env = redactMap(cfg.Env)
	cfg.Headers = redactMap(cfg.Headers)
	return cfg
}

func redactMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return values
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if storage.IsSecretKey(k) && strings.TrimSpace(v) != "" {
			v = redacted
		}
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
