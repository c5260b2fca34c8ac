package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-read-marker/internal/config"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamPath       = "/api/v4/websocket"
	handshakeTimeout = 10 * time.Second
	minBackoff       = time.Second
)

// Client keeps one subscription to the backend event stream open, reconnecting
// with capped exponential backoff whenever it drops.
type Client struct {
	url        string
	token      string
	dialer     *websocket.Dialer
	router     *Router
	log        *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	connected  atomic.Bool
}

func NewClient(cfg *config.Config, router *Router, log *zap.Logger) *Client {
	maxBackoff := cfg.WSReconnectMax
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Client{
		url:        StreamURL(cfg.MattermostURL),
		token:      cfg.MattermostToken,
		dialer:     &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshakeTimeout},
		router:     router,
		log:        log,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

// StreamURL turns the REST base URL into the websocket endpoint.
func StreamURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + streamPath
}

// Connected reports whether a stream session is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Run reads events until ctx is cancelled. It only returns ctx's error; connection
// failures are logged and retried.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			c.router.Wait()
			return ctx.Err()
		}
		if connected {
			backoff = c.minBackoff
		}
		c.log.Warn("event stream disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			c.router.Wait()
			return ctx.Err()
		case <-t.C:
		}
		if backoff *= 2; backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session dials once and pumps frames into the router until the connection ends.
func (c *Client) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: %s: %w", c.url, resp.Status, err)
		}
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.log.Info("event stream connected", zap.String("url", c.url))
	c.connected.Store(true)
	defer c.connected.Store(false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		t, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errors.New("closed by server")
			}
			return true, err
		}
		if t != websocket.TextMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			c.log.Warn("undecodable frame", zap.Error(err))
			continue
		}
		if env.Event == "" {
			continue
		}
		c.router.Dispatch(ctx, env)
	}
}
