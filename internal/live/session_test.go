package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratrun/stratrun/internal/domain"
)

type fakeQuotes struct {
	mu      sync.Mutex
	err     error
	tickers []string
}

func (f *fakeQuotes) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	f.mu.Lock()
	f.tickers = append(f.tickers, ticker)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &domain.Quote{
		Ticker:        ticker,
		Price:         102,
		PreviousClose: 100,
		DayHigh:       103,
		DayLow:        99,
		Volume:        5000,
		Timestamp:     1700000000,
	}, nil
}

func (f *fakeQuotes) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tickers...)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialSession stands up a server that runs one Session per connection and
// dials it.
func dialSession(t *testing.T, quotes QuoteSource, tick time.Duration) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewSession(conn, quotes, "AAPL", tick, nil).Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestSessionPushesPriceUpdates(t *testing.T) {
	conn := dialSession(t, &fakeQuotes{}, 20*time.Millisecond)

	// first frame arrives without waiting for the tick
	frame := readFrame(t, conn)
	require.Contains(t, frame, "type")
	require.Contains(t, frame, "data")

	var update PriceUpdate
	raw, _ := json.Marshal(frame)
	require.NoError(t, json.Unmarshal(raw, &update))
	assert.Equal(t, "price_update", update.Type)
	assert.Equal(t, "AAPL", update.Data.Ticker)
	assert.EqualValues(t, 102, update.Data.Price)
	assert.EqualValues(t, 2, update.Data.Change)
	assert.EqualValues(t, 2, update.Data.ChangePct)

	// cadence continues
	second := readFrame(t, conn)
	assert.Contains(t, second, "data")
}

func TestSessionErrorFrameKeepsCadence(t *testing.T) {
	conn := dialSession(t, &fakeQuotes{err: errors.New("boom")}, 20*time.Millisecond)

	frame := readFrame(t, conn)
	require.Contains(t, frame, "error")
	var msg string
	require.NoError(t, json.Unmarshal(frame["error"], &msg))
	assert.Contains(t, msg, "AAPL")

	// errors do not terminate the session
	second := readFrame(t, conn)
	assert.Contains(t, second, "error")
}

func TestSessionToleratesPing(t *testing.T) {
	conn := dialSession(t, &fakeQuotes{}, 20*time.Millisecond)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	frame := readFrame(t, conn)
	assert.Contains(t, frame, "data")
}

func TestSessionChangeTicker(t *testing.T) {
	quotes := &fakeQuotes{}
	conn := dialSession(t, quotes, 20*time.Millisecond)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "change_ticker", "ticker": "msft"}))

	require.Eventually(t, func() bool {
		for _, tk := range quotes.seen() {
			if tk == "MSFT" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionCloseMessageEndsSession(t *testing.T) {
	conn := dialSession(t, &fakeQuotes{}, 20*time.Millisecond)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "close"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // server closed the connection
		}
	}
}

func TestClientMessageKind(t *testing.T) {
	assert.Equal(t, "ping", clientMessage{Type: "ping"}.kind())
	assert.Equal(t, "close", clientMessage{Action: "close"}.kind())
	assert.Equal(t, "ping", clientMessage{Type: "ping", Action: "close"}.kind())
}

func TestQuoteChangeZeroPreviousClose(t *testing.T) {
	change, pct := quoteChange(&domain.Quote{Price: 10, PreviousClose: 0})
	assert.EqualValues(t, 10, change)
	assert.EqualValues(t, 0, pct)
}
