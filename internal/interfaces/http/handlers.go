package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/engine"
	"github.com/stratrun/stratrun/internal/insight"
	"github.com/stratrun/stratrun/internal/live"
	"github.com/stratrun/stratrun/internal/telemetry"
)

// Handlers implements the endpoint logic over the engine.
type Handlers struct {
	runner   *engine.Runner
	streamer *engine.Streamer
	insights insight.Provider
	metrics  *telemetry.Metrics
	liveTick time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the terminal UI is served from a different origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Strategies serves the registry catalog.
func (h *Handlers) Strategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Registry().List())
}

// Run executes the synchronous path.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	var req engine.RunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Backtest executes the capital simulation path.
func (h *Handlers) Backtest(w http.ResponseWriter, r *http.Request) {
	var req engine.BacktestRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.runner.Backtest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Insight forwards strategy results to the LLM provider.
func (h *Handlers) Insight(w http.ResponseWriter, r *http.Request) {
	if h.insights == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "insight_disabled", "insight provider not configured")
		return
	}
	var req insight.Request
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.insights.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StreamRun serves the SSE execution stream. Errors appear as error
// events; the HTTP status is always 200 once streaming starts.
func (h *Handlers) StreamRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "internal_computation", "streaming unsupported")
		return
	}

	q := r.URL.Query()
	req := engine.RunRequest{
		Ticker:   q.Get("ticker"),
		Strategy: q.Get("strategy"),
		Period:   q.Get("period"),
		Interval: q.Get("interval"),
	}
	if raw := q.Get("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Params); err != nil {
			writeError(w, domain.InvalidParams("params is not valid JSON: %v", err))
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range h.streamer.Stream(r.Context(), req) {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			log.Error().Err(err).Str("event", ev.Name).Msg("stream payload marshal failed")
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload); err != nil {
			return
		}
		flusher.Flush()
	}
}

// LiveWS upgrades to the live-price fan-out session.
func (h *Handlers) LiveWS(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	if ticker == "" {
		writeError(w, domain.InvalidParams("ticker is required"))
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	session := live.NewSession(conn, h.runner, ticker, h.liveTick, h.metrics)
	session.Run(r.Context())
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return domain.InvalidParams("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = message
	writeJSON(w, status, body)
}

// writeError maps the engine taxonomy onto HTTP statuses: 400 for
// invalid params and unknown strategies, 404 for unresolved tickers, 502
// for transient provider failures, 500 for everything else.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindInvalidParams, domain.KindUnknownStrategy:
		status = http.StatusBadRequest
	case domain.KindDataUnavailable:
		if domain.IsRetryable(err) {
			status = http.StatusBadGateway
		} else {
			status = http.StatusNotFound
		}
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("internal error")
	}
	writeJSONError(w, status, string(kind), domain.MessageOf(err))
}
