package bytecache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/skyloop/engine/pkg/streaming"
)

const (
	sendChSize     = 1024
	replyChSize    = 64
	maxReconnect   = 10
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	defaultBatchTO = 2 * time.Minute
)

// Client manages a WebSocket control connection to the byte-cache
// service with a single write goroutine and automatic reconnect.
type Client struct {
	mu      sync.Mutex
	conn    *ws.Conn
	sendCh  chan []byte
	replyCh chan streaming.Envelope
	done    chan struct{} // closed on shutdown
	closed  bool

	wsURL string

	logger *slog.Logger
}

// NewClient creates a client. Dial must be called before use.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sendCh:  make(chan []byte, sendChSize),
		replyCh: make(chan streaming.Envelope, replyChSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Dial connects to the service and starts the read/write loops.
func (c *Client) Dial(rawURL string) error {
	c.wsURL = rawURL

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

func (c *Client) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop reads envelopes from the service and routes them to replyCh.
func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Unparseable message received", "raw", string(message))
			continue
		}

		select {
		case c.replyCh <- env:
		default:
			c.logger.Debug("Reply channel full, dropping", "type", env.Type)
		}
	}
}

// reconnect attempts to re-establish the connection with exponential
// backoff, then restarts the read/write loops.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to byte-cache service", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("Byte-cache WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("Byte-cache reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *Client) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

func (c *Client) sendEnvelope(msgType string, payload any) error {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.send(raw)
	return nil
}

// WarmVideos asks the service to cache a batch of video assets and
// blocks until the batch completes or the timeout expires. Per-item
// failures are accumulated, not fatal.
func (c *Client) WarmVideos(items []streaming.CacheItem, timeout time.Duration) (streaming.CacheComplete, error) {
	return c.warm(streaming.TypeCacheVideos, items, timeout)
}

// WarmImages is WarmVideos for image assets.
func (c *Client) WarmImages(items []streaming.CacheItem, timeout time.Duration) (streaming.CacheComplete, error) {
	return c.warm(streaming.TypeCacheImages, items, timeout)
}

func (c *Client) warm(msgType string, items []streaming.CacheItem, timeout time.Duration) (streaming.CacheComplete, error) {
	if timeout <= 0 {
		timeout = defaultBatchTO
	}
	clientID := uuid.New().String()

	req := streaming.CacheRequest{ClientID: clientID}
	if msgType == streaming.TypeCacheImages {
		req.Images = items
	} else {
		req.Videos = items
	}
	if err := c.sendEnvelope(msgType, req); err != nil {
		return streaming.CacheComplete{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case env := <-c.replyCh:
			switch env.Type {
			case streaming.TypeCacheProgress:
				var p streaming.CacheProgress
				if json.Unmarshal(env.Payload, &p) == nil && p.ClientID == clientID {
					c.logger.Debug("cache progress", "id", p.ID, "completed", p.Completed, "total", p.Total)
				}
			case streaming.TypeCacheError:
				var e streaming.CacheError
				if json.Unmarshal(env.Payload, &e) == nil && e.ClientID == clientID {
					c.logger.Error("cache item failed", "id", e.ID, "url", e.URL, "error", e.Error)
				}
			case streaming.TypeCacheComplete:
				var done streaming.CacheComplete
				if json.Unmarshal(env.Payload, &done) == nil && done.ClientID == clientID {
					return done, nil
				}
			}
		case <-timer.C:
			return streaming.CacheComplete{}, fmt.Errorf("timeout waiting for cache batch %s", clientID)
		case <-c.done:
			return streaming.CacheComplete{}, fmt.Errorf("connection closed while warming batch %s", clientID)
		}
	}
}

// CheckVersion asks the service for its cache generation.
func (c *Client) CheckVersion(timeout time.Duration) (string, error) {
	if err := c.sendEnvelope(streaming.TypeCheckCacheVersion, struct{}{}); err != nil {
		return "", err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case env := <-c.replyCh:
			if env.Type != streaming.TypeCacheVersion {
				continue
			}
			var v streaming.CacheVersion
			if err := json.Unmarshal(env.Payload, &v); err != nil {
				return "", err
			}
			return v.Version, nil
		case <-timer.C:
			return "", fmt.Errorf("timeout waiting for cache version")
		case <-c.done:
			return "", fmt.Errorf("connection closed while checking version")
		}
	}
}

// ClearCaches asks the service to drop everything it has cached.
func (c *Client) ClearCaches(timeout time.Duration) error {
	if err := c.sendEnvelope(streaming.TypeClearCaches, struct{}{}); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case env := <-c.replyCh:
			if env.Type == streaming.TypeCachesCleared {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for caches to clear")
		case <-c.done:
			return fmt.Errorf("connection closed while clearing caches")
		}
	}
}

// Close sends a close frame and shuts down all goroutines.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
