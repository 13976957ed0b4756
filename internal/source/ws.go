package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"

	"sonar/internal/domain"
)

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the update channel capacity.
	Buffer int
}

// DefaultWSConfig returns default WebSocket source configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            10000,
	}
}

// WSSource streams transaction updates for a set of program ids over a
// WebSocket subscription. It reconnects with exponential backoff and
// resubscribes after connection loss; duplicates across a reconnect are
// expected and left for the idempotent writer to absorb.
type WSSource struct {
	endpoint string
	programs []string
	config   WSConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	updates chan *domain.RawUpdate

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSSource connects to the endpoint and subscribes to updates
// mentioning any of the given program ids.
func NewWSSource(ctx context.Context, endpoint string, programs []string, config *WSConfig, logger *log.Logger) (*WSSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultWSConfig().Buffer
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &WSSource{
		endpoint: endpoint,
		programs: programs,
		config:   cfg,
		logger:   logger,
		updates:  make(chan *domain.RawUpdate, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.connMu.Lock()
		s.conn.Close()
		s.connMu.Unlock()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Updates returns the stream of raw updates. The channel is closed by
// Close.
func (s *WSSource) Updates() <-chan *domain.RawUpdate { return s.updates }

// connect establishes the WebSocket connection.
func (s *WSSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// subscribe sends the transaction subscription request for the configured
// program ids.
func (s *WSSource) subscribe() error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "transactionSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": s.programs},
			map[string]string{"commitment": "confirmed"},
		},
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the update channel.
func (s *WSSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.updates)
	return nil
}

// readLoop reads messages and dispatches updates until Close.
func (s *WSSource) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				s.wg.Add(1)
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect re-establishes the connection and the subscription.
func (s *WSSource) reconnect(delay time.Duration) {
	defer s.wg.Done()
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.connect(ctx); err != nil {
		s.logger.Printf("reconnect: %v", err)
		return
	}

	// Close may have raced the dial; do not leave the fresh connection
	// behind.
	if s.closed.Load() {
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()
		return
	}

	if err := s.subscribe(); err != nil {
		s.logger.Printf("resubscribe: %v", err)
		return
	}
	s.logger.Println("reconnected and resubscribed")
}

// handleMessage parses one frame and forwards the contained update.
// Frames that are not update notifications (subscription confirmations,
// error responses, garbage) are ignored or logged; nothing here may
// panic on malformed input.
func (s *WSSource) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "transactionNotification" || notif.Params == nil {
		var errResp struct {
			Error *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
			s.logger.Printf("error response: code=%d msg=%s", errResp.Error.Code, errResp.Error.Message)
		}
		return
	}

	value := notif.Params.Result.Value

	data, err := base58.Decode(value.Data)
	if err != nil {
		// Keep the update; the decoder rejects it with a reason.
		data = nil
	}

	u := &domain.RawUpdate{
		Signature:       value.Signature,
		ProgramID:       value.ProgramID,
		Accounts:        value.Accounts,
		InstructionData: data,
		Signers:         value.Signers,
		Owner:           value.Owner,
		BlockTime:       value.BlockTime,
	}
	if notif.Params.Result.Context != nil {
		u.Slot = notif.Params.Result.Context.Slot
	}

	// Block until the consumer drains; never drop here.
	select {
	case s.updates <- u:
	case <-s.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *WSSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader handles reconnect.
					_ = err
				}
			}
			s.connMu.Unlock()
		}
	}
}

var _ UpdateSource = (*WSSource)(nil)

// WebSocket message types.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext `json:"context"`
	Value   wsTxValue  `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsTxValue struct {
	Signature string   `json:"signature"`
	ProgramID string   `json:"programId"`
	Accounts  []string `json:"accounts"`
	Data      string   `json:"data"`
	Signers   []string `json:"signers"`
	Owner     string   `json:"owner"`
	BlockTime int64    `json:"blockTime"`
}
