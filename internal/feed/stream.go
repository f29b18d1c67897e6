package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 30 * time.Second
	defaultHeartbeat = 30 * time.Second
	writeWait        = 10 * time.Second
)

// PriceSink applies a price to the registry and evaluates the book against
// it. service.OrderService implements it.
type PriceSink interface {
	UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) (*domain.Stock, engine.MatchResult, error)
}

// StreamConfig configures a Stream. Zero durations fall back to a 30s
// heartbeat and a 1s reconnect delay capped at 30s.
type StreamConfig struct {
	URL        string
	Symbols    []string
	MaxRetries int
	Heartbeat  time.Duration
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Tick is one price update pushed by the feed.
type Tick struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previousClose"`
	Timestamp     int64           `json:"timestamp"`
}

type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type subscribeMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// Stream consumes a websocket price feed and forwards every tick to a
// PriceSink. It reconnects with exponential backoff after a dropped
// connection and gives up after MaxRetries consecutive failures.
type Stream struct {
	cfg    StreamConfig
	sink   PriceSink
	logger *slog.Logger
	dialer *websocket.Dialer
}

// NewStream creates a Stream.
func NewStream(cfg StreamConfig, sink PriceSink, logger *slog.Logger) *Stream {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	return &Stream{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: writeWait},
	}
}

// Backoff returns the reconnect delay for attempt: base·2^attempt capped
// at limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// Run connects and consumes the feed until ctx is cancelled, returning nil,
// or until reconnecting fails MaxRetries times in a row.
func (s *Stream) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := s.session(ctx, &attempt)
		if ctx.Err() != nil {
			return nil
		}
		if attempt >= s.cfg.MaxRetries {
			return fmt.Errorf("price feed: giving up after %d retries: %w", attempt, err)
		}

		delay := Backoff(attempt, s.cfg.BaseDelay, s.cfg.MaxDelay)
		attempt++
		s.logger.Warn("price feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection. attempt is reset once the dial succeeds.
func (s *Stream) session(ctx context.Context, attempt *int) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()
	*attempt = 0
	s.logger.Info("price feed connected", slog.String("url", s.cfg.URL))

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeMessage{Type: "subscribe", Symbols: s.cfg.Symbols}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	// The heartbeat goroutine is the only writer from here on.
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.heartbeat(ctx, conn, done)
	}()
	defer func() {
		close(done)
		<-stopped
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(ctx, data)
	}
}

func (s *Stream) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message{Type: "ping"}); err != nil {
				s.logger.Debug("price feed ping failed", slog.String("error", err.Error()))
			}
		}
	}
}

// handle applies a single feed message. Malformed and unknown messages
// are dropped.
func (s *Stream) handle(ctx context.Context, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("price feed message dropped", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case "tick":
		var tick Tick
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			s.logger.Debug("price feed tick dropped", slog.String("error", err.Error()))
			return
		}
		s.apply(ctx, tick)
	case "snapshot":
		var ticks []Tick
		if err := json.Unmarshal(msg.Data, &ticks); err != nil {
			s.logger.Debug("price feed snapshot dropped", slog.String("error", err.Error()))
			return
		}
		for _, tick := range ticks {
			s.apply(ctx, tick)
		}
	}
}

func (s *Stream) apply(ctx context.Context, tick Tick) {
	_, res, err := s.sink.UpdatePrice(ctx, tick.Symbol, tick.Price)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, domain.ErrStockNotFound) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "price feed tick rejected",
			slog.String("symbol", tick.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(res.Filled) > 0 || len(res.Expired) > 0 {
		s.logger.Debug("price feed tick evaluated",
			slog.String("symbol", tick.Symbol),
			slog.Int("filled", len(res.Filled)),
			slog.Int("expired", len(res.Expired)),
		)
	}
}
