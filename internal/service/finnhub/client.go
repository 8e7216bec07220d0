package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	drepo "ModelArena/internal/domain/repository"
	"ModelArena/pkg/logger"
)

// Feed is a PriceFeed backed by the Finnhub trade WebSocket. Run keeps the
// latest trade price for one symbol; Price serves it while fresh.
type Feed struct {
	logger       *logger.Logger
	apiKey       string
	websocketURL string
	symbol       string
	maxStaleness time.Duration
	pingInterval time.Duration
	dialer       *websocket.Dialer
	newBackOff   func() backoff.BackOff
	now          func() time.Time

	mu     sync.RWMutex
	conn   *websocket.Conn
	last   float64
	lastAt time.Time
}

var _ drepo.PriceFeed = (*Feed)(nil)

// Option configures Feed.
type Option func(*Feed)

func WithURL(u string) Option    { return func(f *Feed) { f.websocketURL = u } }
func WithAPIKey(k string) Option { return func(f *Feed) { f.apiKey = k } }
func WithSymbol(s string) Option { return func(f *Feed) { f.symbol = s } }
func WithMaxStaleness(d time.Duration) Option {
	return func(f *Feed) { f.maxStaleness = d }
}
func WithPingInterval(d time.Duration) Option {
	return func(f *Feed) { f.pingInterval = d }
}

// New creates a Finnhub price feed.
func New(lgr *logger.Logger, opts ...Option) *Feed {
	f := &Feed{
		logger:       lgr,
		websocketURL: "wss://ws.finnhub.io",
		symbol:       "BINANCE:BNBUSDT",
		maxStaleness: 30 * time.Second,
		pingInterval: 30 * time.Second,
		dialer:       websocket.DefaultDialer,
		now:          time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Price returns the latest trade price, or ErrPriceUnavailable when no trade
// has been seen within the staleness window.
func (f *Feed) Price(_ context.Context) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastAt.IsZero() {
		return 0, fmt.Errorf("finnhub: no trades yet: %w", drepo.ErrPriceUnavailable)
	}
	if age := f.now().Sub(f.lastAt); f.maxStaleness > 0 && age > f.maxStaleness {
		return 0, fmt.Errorf("finnhub: last trade %s old: %w", age.Truncate(time.Second), drepo.ErrPriceUnavailable)
	}
	return f.last, nil
}

// Run connects, subscribes and reads until ctx is cancelled, reconnecting
// with exponential backoff. A session that delivered trades starts the
// backoff over.
func (f *Feed) Run(ctx context.Context) error {
	bo := backoff.WithContext(f.newBackOff(), ctx)
	for {
		trades, err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if trades > 0 {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("finnhub: giving up: %w", err)
		}
		f.logger.Warn("finnhub session ended, reconnecting",
			logger.Error(err),
			logger.Duration("backoff_ms", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// session returns the number of accepted trades along with the reason it
// ended.
func (f *Feed) session(ctx context.Context) (int, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": f.symbol}); err != nil {
		return 0, fmt.Errorf("subscribe %s: %w", f.symbol, err)
	}
	f.logger.Info("finnhub subscribed", logger.String("symbol", f.symbol))

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(sessCtx, conn)
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	trades := 0
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return trades, nil
			}
			return trades, fmt.Errorf("finnhub read: %w", err)
		}
		if f.handle(b) {
			trades++
		}
	}
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(f.websocketURL)
	if err != nil {
		return nil, fmt.Errorf("finnhub url: %w", err)
	}
	if f.apiKey != "" {
		q := u.Query()
		q.Set("token", f.apiKey)
		u.RawQuery = q.Encode()
	}
	conn, _, err := f.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub connect: %w", err)
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	f.logger.Info("finnhub connected")
	return conn, nil
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if f.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				f.logger.Debug("finnhub ping failed", logger.Error(err))
			}
		}
	}
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// handle keeps the newest trade price for the subscribed symbol and reports
// whether the frame carried one. Non-trade frames are ignored.
func (f *Feed) handle(b []byte) bool {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		return false
	}
	var (
		price float64
		ts    int64
	)
	for _, d := range m.Data {
		if d.S != f.symbol || d.P <= 0 || d.T < ts {
			continue
		}
		price, ts = d.P, d.T
	}
	if price == 0 {
		return false
	}
	f.mu.Lock()
	f.last = price
	f.lastAt = f.now()
	f.mu.Unlock()
	return true
}

// Close closes the current connection, if any.
func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}
