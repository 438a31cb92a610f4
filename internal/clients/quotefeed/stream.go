package quotefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	dialTimeout        = 30 * time.Second
	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute
)

// QuoteStream subscribes to the provider's tick stream and pushes every tick
// into the client's freshness cache, so valuations during market hours see
// live prices without per-symbol HTTP calls.
type QuoteStream struct {
	url    string
	client *Client
	log    zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopped  bool
}

// tickMessage is one streamed tick.
type tickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// NewQuoteStream creates a stream subscriber feeding the given client cache.
func NewQuoteStream(url string, client *Client, log zerolog.Logger) *QuoteStream {
	return &QuoteStream{
		url:      url,
		client:   client,
		log:      log.With().Str("component", "quote_stream").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start connects and launches the read loop. Connection failures are retried
// in the background with exponential backoff; Start itself never blocks on
// the provider.
func (s *QuoteStream) Start() {
	go s.run()
}

// Stop closes the connection and stops reconnecting.
func (s *QuoteStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.stopChan)
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		return s.conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	return nil
}

func (s *QuoteStream) run() {
	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if err := s.connectAndRead(); err != nil {
			attempt++
			delay := reconnectDelay(attempt)
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("Quote stream disconnected")
			select {
			case <-s.stopChan:
				return
			case <-time.After(delay):
				continue
			}
		}
		// Clean read-loop exit means Stop was called.
		return
	}
}

func (s *QuoteStream) connectAndRead() error {
	ctx, cancel := context.WithCancel(context.Background())

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	dialCancel()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to dial quote stream: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info().Str("url", s.url).Msg("Quote stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return nil
			}
			return fmt.Errorf("quote stream read failed: %w", err)
		}

		var tick tickMessage
		if err := json.Unmarshal(data, &tick); err != nil {
			s.log.Debug().Err(err).Msg("Skipping malformed tick")
			continue
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}
		s.client.SetQuote(tick.Symbol, tick.Price)
	}
}

func reconnectDelay(attempt int) time.Duration {
	delay := time.Duration(float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1)))
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}
