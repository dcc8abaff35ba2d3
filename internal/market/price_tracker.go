package market

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rsi-trend-trader/internal/logging"
)

// PriceTracker keeps a live mid-price from the mark price stream. The cached
// scalar is the only piece of shared state between the stream goroutine and
// the decision path, guarded by one mutex.
type PriceTracker struct {
	streamURL string
	symbol    string
	log       *logging.Logger

	mu      sync.Mutex
	price   float64
	updated time.Time

	conn    *websocket.Conn
	done    chan struct{}
	running bool
}

type markPriceEvent struct {
	Price string `json:"p"`
}

// NewPriceTracker creates a tracker for the given symbol. Call Start to
// connect.
func NewPriceTracker(streamURL, symbol string, log *logging.Logger) *PriceTracker {
	return &PriceTracker{
		streamURL: streamURL,
		symbol:    strings.ToLower(symbol),
		log:       log.WithComponent("price-tracker"),
	}
}

// Start connects and begins consuming mark price events. Reconnects on
// stream errors until Stop is called.
func (t *PriceTracker) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.run()
}

// Stop closes the stream.
func (t *PriceTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.done)
	if t.conn != nil {
		t.conn.Close()
	}
}

// Price returns the latest mark price and whether one has been received yet.
func (t *PriceTracker) Price() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.price, !t.updated.IsZero()
}

func (t *PriceTracker) run() {
	endpoint := fmt.Sprintf("%s/%s@markPrice", t.streamURL, t.symbol)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
		if err != nil {
			t.log.Error("Price stream dial failed", "error", err)
			select {
			case <-t.done:
				return
			case <-time.After(5 * time.Second):
				continue
			}
		}

		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()

		t.log.Info("Price stream connected", "symbol", t.symbol)
		t.readLoop(conn)
	}
}

func (t *PriceTracker) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				t.log.Error("Price stream closed", "error", err)
			}
			return
		}

		var event markPriceEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Price == "" {
			continue
		}

		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			continue
		}

		t.mu.Lock()
		t.price = price
		t.updated = time.Now()
		t.mu.Unlock()
	}
}
