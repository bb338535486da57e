// Package live pushes periodic price snapshots over WebSocket sessions.
// Each session owns one connection, one ticker (changeable by the
// client) and one send loop; sessions are fully independent.
package live

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stratrun/stratrun/internal/domain"
	"github.com/stratrun/stratrun/internal/safejson"
	"github.com/stratrun/stratrun/internal/telemetry"
)

// QuoteSource supplies the per-tick snapshot.
type QuoteSource interface {
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
}

// DefaultTick is the snapshot cadence.
const DefaultTick = time.Second

const writeTimeout = 2 * time.Second

// PriceUpdate is the outbound frame on every successful tick.
type PriceUpdate struct {
	Type string          `json:"type"`
	Data PriceUpdateData `json:"data"`
}

// PriceUpdateData carries the snapshot fields.
type PriceUpdateData struct {
	Ticker    string         `json:"ticker"`
	Price     safejson.Float `json:"price"`
	Change    safejson.Float `json:"change"`
	ChangePct safejson.Float `json:"change_pct"`
	Volume    safejson.Float `json:"volume"`
	High      safejson.Float `json:"high"`
	Low       safejson.Float `json:"low"`
	Timestamp int64          `json:"timestamp"`
}

type errorFrame struct {
	Error  string `json:"error"`
	Ticker string `json:"ticker"`
}

// clientMessage is what the session accepts from the client. Both the
// type and action keys are honored.
type clientMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Ticker string `json:"ticker"`
}

func (m clientMessage) kind() string {
	if m.Type != "" {
		return m.Type
	}
	return m.Action
}

// Session is one live-price fan-out connection.
type Session struct {
	conn    *websocket.Conn
	quotes  QuoteSource
	metrics *telemetry.Metrics
	tick    time.Duration

	mu      sync.Mutex
	ticker  string
	closeCh chan struct{}
	once    sync.Once
}

// NewSession wraps an upgraded connection. metrics may be nil; a zero
// tick uses DefaultTick.
func NewSession(conn *websocket.Conn, quotes QuoteSource, ticker string, tick time.Duration, metrics *telemetry.Metrics) *Session {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Session{
		conn:    conn,
		quotes:  quotes,
		metrics: metrics,
		tick:    tick,
		ticker:  strings.ToUpper(ticker),
		closeCh: make(chan struct{}),
	}
}

// Run drives the session until the client closes, the context is
// canceled or a send stalls. It blocks.
func (s *Session) Run(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.LiveSessions.Inc()
		defer s.metrics.LiveSessions.Dec()
	}
	defer s.conn.Close()

	go s.readLoop()

	t := time.NewTicker(s.tick)
	defer t.Stop()

	// first snapshot goes out immediately
	if !s.push(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			return
		case <-t.C:
			if !s.push(ctx) {
				return
			}
		}
	}
}

// push sends one snapshot or an error frame. It returns false when the
// session must terminate.
func (s *Session) push(ctx context.Context) bool {
	ticker := s.currentTicker()
	quoteCtx, cancel := context.WithTimeout(ctx, s.tick*5)
	q, err := s.quotes.Quote(quoteCtx, ticker)
	cancel()
	if err != nil {
		log.Debug().Err(err).Str("ticker", ticker).Msg("live quote fetch failed")
		return s.send(errorFrame{Error: "failed to fetch data for " + ticker, Ticker: ticker})
	}

	change, changePct := quoteChange(q)
	ok := s.send(PriceUpdate{
		Type: "price_update",
		Data: PriceUpdateData{
			Ticker:    q.Ticker,
			Price:     safejson.Float(q.Price),
			Change:    change,
			ChangePct: changePct,
			Volume:    safejson.Float(q.Volume),
			High:      safejson.Float(q.DayHigh),
			Low:       safejson.Float(q.DayLow),
			Timestamp: q.Timestamp,
		},
	})
	if ok && s.metrics != nil {
		s.metrics.LiveUpdatesSent.Inc()
	}
	return ok
}

func quoteChange(q *domain.Quote) (change, changePct safejson.Float) {
	c := q.Price - q.PreviousClose
	change = safejson.Float(safejson.Round(c, 2))
	if q.PreviousClose != 0 {
		changePct = safejson.Float(safejson.Round(c/q.PreviousClose*100, 2))
	} else {
		changePct = 0
	}
	return change, changePct
}

func (s *Session) send(v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("live frame marshal failed")
		return false
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Debug().Err(err).Msg("live send failed, closing session")
		return false
	}
	return true
}

// readLoop consumes client messages: ping is tolerated, close ends the
// session, change_ticker retargets the snapshots. A read error counts as
// a disconnect.
func (s *Session) readLoop() {
	defer s.close()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.kind() {
		case "ping":
			// nothing to do, cadence is server-driven
		case "close":
			return
		case "change_ticker":
			if t := strings.ToUpper(strings.TrimSpace(msg.Ticker)); t != "" {
				s.setTicker(t)
			}
		}
	}
}

func (s *Session) close() {
	s.once.Do(func() { close(s.closeCh) })
}

func (s *Session) currentTicker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker
}

func (s *Session) setTicker(t string) {
	s.mu.Lock()
	s.ticker = t
	s.mu.Unlock()
}
