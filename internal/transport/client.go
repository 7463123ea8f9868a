// Package transport owns all exchange connectivity: the registration
// handshake, the two WebSocket streams, outbound order traffic and
// connection-level retry. The core never sees a socket.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlas-desktop/sim-trader/internal/engine"
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config configures the exchange connection.
type Config struct {
	Host     string `mapstructure:"host"`
	Scenario string `mapstructure:"scenario"`
	Team     string `mapstructure:"team"`
	Password string `mapstructure:"password"`
	Secure   bool   `mapstructure:"secure"`
}

const (
	dialAttempts    = 5
	dialBackoffBase = 500 * time.Millisecond
	progressEvery   = 500
)

// Client is the exchange-facing transport. It implements the engine's
// order, cancel and step-complete senders.
type Client struct {
	logger *zap.Logger
	cfg    Config

	httpClient *http.Client
	dialer     *websocket.Dialer

	token string
	runID string

	marketConn *websocket.Conn
	orderConn  *websocket.Conn

	// Guards writes to orderConn; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// Unix-nanos of the last DONE, for step latency reporting.
	lastDone atomic.Int64
}

// NewClient creates an unconnected transport client.
func NewClient(logger *zap.Logger, cfg Config) *Client {
	tlsConfig := &tls.Config{}
	if cfg.Secure {
		// The simulator serves a self-signed certificate.
		tlsConfig.InsecureSkipVerify = true
	}
	return &Client{
		logger: logger.Named("transport"),
		cfg:    cfg,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  tlsConfig,
		},
	}
}

func (c *Client) httpProto() string {
	if c.cfg.Secure {
		return "https"
	}
	return "http"
}

func (c *Client) wsProto() string {
	if c.cfg.Secure {
		return "wss"
	}
	return "ws"
}

// RunID returns the run identifier assigned at registration.
func (c *Client) RunID() string { return c.runID }

// Register performs the session handshake. Missing credentials in the
// response are fatal: the run cannot proceed without them.
func (c *Client) Register(ctx context.Context) error {
	url := fmt.Sprintf("%s://%s/api/replays/%s/start", c.httpProto(), c.cfg.Host, c.cfg.Scenario)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Team)
	if c.cfg.Password != "" {
		req.Header.Set("X-Team-Password", c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registration request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration rejected: status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode registration response: %w", err)
	}
	if body.Token == "" || body.RunID == "" {
		return errors.New("registration response missing token or run_id")
	}
	c.token = body.Token
	c.runID = body.RunID
	c.logger.Info("registered",
		zap.String("scenario", c.cfg.Scenario),
		zap.String("runId", c.runID),
	)
	return nil
}

// Connect dials the market and order sockets, retrying each with
// exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	if c.runID == "" {
		return errors.New("connect before registration")
	}
	marketURL := fmt.Sprintf("%s://%s/api/ws/market?run_id=%s", c.wsProto(), c.cfg.Host, c.runID)
	orderURL := fmt.Sprintf("%s://%s/api/ws/orders?token=%s&run_id=%s", c.wsProto(), c.cfg.Host, c.token, c.runID)

	var err error
	if c.marketConn, err = c.dial(ctx, marketURL); err != nil {
		return fmt.Errorf("market stream: %w", err)
	}
	if c.orderConn, err = c.dial(ctx, orderURL); err != nil {
		c.marketConn.Close()
		return fmt.Errorf("order stream: %w", err)
	}
	c.logger.Info("streams connected")
	return nil
}

func (c *Client) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	backoff := dialBackoffBase
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, url, nil)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("dial failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// Start launches the two receive loops. The inbox is closed once both
// sockets are done, which ends the engine's run.
func (c *Client) Start(inbox chan<- engine.Event) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.readMarket(inbox)
	}()
	go func() {
		defer wg.Done()
		c.readOrders(inbox)
	}()
	go func() {
		wg.Wait()
		close(inbox)
	}()
}

// readMarket consumes the market stream. Malformed payloads are logged
// and skipped; the loop only ends when the socket does.
func (c *Client) readMarket(inbox chan<- engine.Event) {
	var latencies []float64
	for {
		_, payload, err := c.marketConn.ReadMessage()
		if err != nil {
			c.logger.Info("market stream closed", zap.Error(err))
			return
		}
		receivedAt := time.Now()

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Warn("malformed market message", zap.Error(err))
			inbox <- engine.StreamErrorEvent{Message: "malformed market message"}
			continue
		}
		if msg.Type == msgTypeConnected {
			continue
		}

		if last := c.lastDone.Load(); last > 0 {
			latencies = append(latencies, float64(receivedAt.UnixNano()-last)/1e6)
		}
		if msg.Step > 0 && msg.Step%progressEvery == 0 && len(latencies) > 0 {
			n := len(latencies)
			window := latencies
			if n > 100 {
				window = latencies[n-100:]
			}
			var sum float64
			for _, l := range window {
				sum += l
			}
			c.logger.Info("progress",
				zap.Int("step", msg.Step),
				zap.Float64("avgStepLatencyMs", sum/float64(len(window))),
			)
		}

		inbox <- engine.SnapshotEvent{Snapshot: msg.snapshot(receivedAt)}
	}
}

// readOrders consumes fills, errors and the auth confirmation from the
// order stream.
func (c *Client) readOrders(inbox chan<- engine.Event) {
	for {
		_, payload, err := c.orderConn.ReadMessage()
		if err != nil {
			c.logger.Info("order stream closed", zap.Error(err))
			return
		}
		receivedAt := time.Now()

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.logger.Warn("malformed order message", zap.Error(err))
			inbox <- engine.StreamErrorEvent{Message: "malformed order message"}
			continue
		}

		switch msg.Type {
		case msgTypeAuthenticated:
			c.logger.Info("authenticated")
		case msgTypeFill:
			inbox <- engine.FillEvent{Fill: msg.fill(), ReceivedAt: receivedAt}
		case msgTypeError:
			inbox <- engine.StreamErrorEvent{Message: msg.Message}
		default:
			c.logger.Debug("ignoring order message", zap.String("type", msg.Type))
		}
	}
}

func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.orderConn.WriteMessage(websocket.TextMessage, payload)
}

// SendOrder submits one order on the order stream.
func (c *Client) SendOrder(o types.Order) error {
	payload, err := encodeOrder(o)
	if err != nil {
		return err
	}
	return c.write(payload)
}

// SendCancel fires a best-effort cancel; the caller does not wait for
// an acknowledgement.
func (c *Client) SendCancel(orderID string) error {
	payload, err := encodeCancel(orderID)
	if err != nil {
		return err
	}
	return c.write(payload)
}

// SendDone signals step completion, releasing the next snapshot.
func (c *Client) SendDone() error {
	payload, err := encodeDone()
	if err != nil {
		return err
	}
	if err := c.write(payload); err != nil {
		return err
	}
	c.lastDone.Store(time.Now().UnixNano())
	return nil
}

// Close tears down both sockets.
func (c *Client) Close() {
	if c.marketConn != nil {
		c.marketConn.Close()
	}
	if c.orderConn != nil {
		c.orderConn.Close()
	}
}
