package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/wealthwatch/portfolio-service/internal/models"
)

// State is the connection lifecycle of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// PositionReader loads the holder's position lists and quote snapshots. The
// API type satisfies it; tests substitute their own.
type PositionReader interface {
	GetPositions(ctx context.Context, status models.PositionStatus) ([]*models.Position, error)
	GetQuotes(ctx context.Context, symbols []string) ([]models.Quote, error)
}

// Client maintains a live view of one holder's portfolio. It subscribes to
// the server's event stream, patches quotes as price updates arrive, and
// refetches position lists when structural events invalidate them. The
// connection reconnects automatically with capped exponential backoff; after
// a gap everything is refetched, since events may have been missed.
type Client struct {
	wsURL  string
	token  string
	reader PositionReader
	cache  *Cache
	logger *zap.Logger

	state       atomic.Int32
	invalidated chan struct{}

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// New creates a client for the given server. serverURL is the HTTP base URL;
// the WebSocket endpoint is derived from it.
func New(serverURL, token string, reader PositionReader, logger *zap.Logger) (*Client, error) {
	wsURL, err := deriveWSURL(serverURL, token)
	if err != nil {
		return nil, err
	}
	return &Client{
		wsURL:       wsURL,
		token:       token,
		reader:      reader,
		cache:       NewCache(),
		logger:      logger,
		invalidated: make(chan struct{}, 1),
	}, nil
}

// Cache returns the client's reactive cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Run connects to the event stream and processes events until ctx is
// cancelled or Close is called. It blocks; run it in its own goroutine.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.state.Store(int32(StateDisconnected))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.refetchLoop(ctx)
	}()
	defer wg.Wait()

	backoff := initialBackoff
	for {
		if c.isClosed() {
			return nil
		}

		c.state.Store(int32(StateConnecting))
		conn, _, _, err := ws.Dial(ctx, c.wsURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("event stream dial failed",
				zap.Duration("retryIn", backoff),
				zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if !c.setConn(conn) {
			conn.Close()
			return nil
		}
		c.state.Store(int32(StateSubscribed))
		backoff = initialBackoff
		c.logger.Info("event stream connected")

		// Events may have been missed while disconnected, so every
		// connection starts from a full resync.
		c.requestRefetch()

		err = c.readLoop(conn)
		c.setConn(nil)
		conn.Close()
		c.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		c.logger.Warn("event stream disconnected",
			zap.Duration("retryIn", backoff),
			zap.Error(err))
		if !sleepCtx(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff)
	}
}

// Close tears the client down: the connection is closed and Run returns.
// Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) readLoop(conn net.Conn) error {
	for {
		data, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			return err
		}
		if op != ws.OpText {
			continue
		}

		event, err := models.DecodeEvent(data)
		if err != nil {
			c.logger.Warn("skipping malformed event", zap.Error(err))
			continue
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event models.Event) {
	switch e := event.(type) {
	case models.PriceUpdateEvent:
		c.cache.ApplyPriceUpdate(e)
	case models.PositionAddedEvent, models.PositionUpdatedEvent,
		models.PositionClosedEvent, models.PositionDeletedEvent:
		// Membership may have changed in either list, including for ids
		// the cache has never seen. Invalidate and let the refetch loop
		// reconcile against the server.
		c.cache.Invalidate()
		c.requestRefetch()
	default:
		c.logger.Warn("ignoring unknown event type",
			zap.String("type", string(event.Type())))
	}
}

// requestRefetch signals the refetch loop. The channel is buffered with one
// slot, so a burst of invalidations collapses into a single refetch.
func (c *Client) requestRefetch() {
	select {
	case c.invalidated <- struct{}{}:
	default:
	}
}

func (c *Client) refetchLoop(ctx context.Context) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.invalidated:
		}

		for {
			if err := c.refetch(ctx); err == nil {
				backoff = initialBackoff
				break
			} else {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("position refetch failed",
					zap.Duration("retryIn", backoff),
					zap.Error(err))
			}
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
		}
	}
}

func (c *Client) refetch(ctx context.Context) error {
	open, err := c.reader.GetPositions(ctx, models.StatusOpen)
	if err != nil {
		return err
	}
	closed, err := c.reader.GetPositions(ctx, models.StatusClosed)
	if err != nil {
		return err
	}

	c.cache.SetPositions(models.StatusOpen, open)
	c.cache.SetPositions(models.StatusClosed, closed)

	symbols := openTickers(open)
	if len(symbols) == 0 {
		return nil
	}
	quotes, err := c.reader.GetQuotes(ctx, symbols)
	if err != nil {
		// Lists are fresh; price updates will fill the quotes in.
		c.logger.Warn("quote snapshot fetch failed", zap.Error(err))
		return nil
	}
	c.cache.SetQuotes(quotes)
	return nil
}

func (c *Client) setConn(conn net.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func openTickers(positions []*models.Position) []string {
	seen := make(map[string]struct{}, len(positions))
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Ticker]; ok {
			continue
		}
		seen[p.Ticker] = struct{}{}
		symbols = append(symbols, p.Ticker)
	}
	return symbols
}

func deriveWSURL(serverURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
