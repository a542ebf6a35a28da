// Package compute implements the per-compute client (spec §4.C) and the
// compute registry (spec §4.D). One Client is a long-lived handle to a
// single remote compute node: it authenticates, issues typed REST calls,
// ingests the compute's event stream, and tracks connection state with
// bounded-backoff auto-reconnect.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/netsim/controller/internal/errs"
	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/internal/telemetry"
	"github.com/netsim/controller/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// rpcRateLimit and rpcBurst bound how fast one Client issues RPCs against
// its compute, independent of the retry backoff Connect uses for the
// initial handshake — a chatty caller (e.g. a UI polling loop) shouldn't
// be able to flood a single compute node.
const (
	rpcRateLimit = 20 // requests per second
	rpcBurst     = 5
)

// DefaultRPCTimeout bounds a single per-compute RPC (spec §5: default 60s).
const DefaultRPCTimeout = 60 * time.Second

// connectMaxElapsed bounds how long Connect's exponential backoff retries
// the initial handshake before handing off to the background reconnect
// supervisor and returning to the caller.
var connectMaxElapsed = 5 * time.Second

// reconnectInterval paces the supervisor's retries once the initial
// handshake backoff has been exhausted, or once a previously-connected
// compute drops its event stream. A compute must be retried for as long as
// the client is open, not just once at startup (spec §4.C (5)).
var reconnectInterval = 10 * time.Second

// Config describes how to reach and authenticate against a compute.
type Config struct {
	ID          string
	Name        string
	Protocol    string // http or https
	Host        string
	Port        int
	ConsoleHost string
	User        string
	Password    string
}

// Client is one long-lived handle to a remote compute node.
type Client struct {
	mu     sync.RWMutex
	cfg    Config
	state  models.ConnectionState
	lastErr string

	httpClient *http.Client
	bus        *notify.Bus
	limiter    *rate.Limiter

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closed      bool
	supervising bool
}

// NewClient constructs a Client. Connect must be called separately (the
// registry controls whether a freshly-added compute connects immediately).
func NewClient(cfg Config, bus *notify.Bus) *Client {
	return &Client{
		cfg:   cfg,
		state: models.ComputeDisconnected,
		httpClient: &http.Client{
			Timeout: DefaultRPCTimeout,
		},
		bus:     bus,
		limiter: rate.NewLimiter(rpcRateLimit, rpcBurst),
	}
}

// ID returns the compute identifier this client handles.
func (c *Client) ID() string { return c.cfg.ID }

// Config returns a copy of the client's connection configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// UpdateCredentials swaps user/password without tearing down the client,
// used when Server.User/Server.Password change at runtime (spec §4.A).
func (c *Client) UpdateCredentials(user, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.User = user
	c.cfg.Password = password
}

// State reports the client's current connection state.
func (c *Client) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return string(c.state)
}

func (c *Client) setState(s models.ConnectionState, lastErr string) {
	c.mu.Lock()
	c.state = s
	c.lastErr = lastErr
	c.mu.Unlock()
}

func (c *Client) baseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s://%s:%d", c.cfg.Protocol, c.cfg.Host, c.cfg.Port)
}

// Connect is idempotent for the client's whole lifetime, not just while a
// connection attempt is in flight: the first call starts the background
// reconnect supervisor and every later call is a no-op, since the
// supervisor already owns retrying from here on. It never returns an
// error for ordinary network failures: those set the client to errored
// and are surfaced through the notification bus rather than raised to the
// caller (spec §4.C). The initial handshake gets a short bounded-backoff
// window so callers (e.g. Controller.Start) aren't held up waiting on an
// unreachable compute; the supervisor then keeps retrying indefinitely,
// and keeps reconnecting if an established connection's event stream
// later drops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("compute %s: client closed", c.cfg.ID)
	}
	if c.supervising {
		c.mu.Unlock()
		return nil
	}
	c.supervising = true
	c.state = models.ComputeConnecting
	superviseCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectMaxElapsed
	boCtx := backoff.WithContext(bo, ctx)

	err := backoff.Retry(func() error {
		return c.handshake(ctx)
	}, boCtx)

	connected := err == nil
	if err != nil {
		c.setState(models.ComputeErrored, err.Error())
		log.Warn().Str("compute", c.cfg.ID).Err(err).Msg("compute connect failed, handing off to reconnect supervisor")
	} else {
		c.setState(models.ComputeConnected, "")
	}

	c.wg.Add(1)
	go c.supervise(superviseCtx, connected)
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var out json.RawMessage
	return c.do(rctx, http.MethodGet, "/version", nil, &out)
}

// supervise owns a compute's connection for the lifetime of the client. It
// runs the event stream while connected; once the stream ends (the compute
// dropped off) or the initial handshake failed, it keeps retrying the
// handshake on reconnectInterval until the client is closed.
func (c *Client) supervise(ctx context.Context, connected bool) {
	defer c.wg.Done()

	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		if connected {
			c.runEventStream(ctx)
			if ctx.Err() != nil {
				return
			}
			log.Warn().Str("compute", c.cfg.ID).Msg("compute event stream ended, will retry handshake")
			c.setState(models.ComputeErrored, "event stream closed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := c.handshake(ctx); err != nil {
			c.setState(models.ComputeErrored, err.Error())
			connected = false
			continue
		}
		c.setState(models.ComputeConnected, "")
		connected = true
	}
}

// Close is idempotent: it cancels the event stream and drains in-flight
// requests (spec §4.C, §5 cancellation).
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.setState(models.ComputeDisconnected, "")
	return nil
}

// Get issues a typed GET call.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a typed POST call.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues a typed PUT call.
func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a typed DELETE call.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "compute.rpc",
		attribute.String("compute.id", c.cfg.ID),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	rctx, cancel := context.WithTimeout(ctx, DefaultRPCTimeout)
	defer cancel()

	if err := c.limiter.Wait(rctx); err != nil {
		return fmt.Errorf("rate limit wait for compute %s: %w", c.cfg.ID, err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	url := c.baseURL() + path
	req, err := http.NewRequestWithContext(rctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	user, pass := c.cfg.User, c.cfg.Password
	c.mu.RUnlock()
	if user != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errs.ComputeUnreachable{ComputeID: c.cfg.ID, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.ComputeAuth{ComputeID: c.cfg.ID, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusConflict:
		return &errs.ComputeConflict{ComputeID: c.cfg.ID, Body: string(respBody)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &errs.ComputeHTTP{ComputeID: c.cfg.ID, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response from %s: %w", url, err)
		}
	}
	return nil
}

// runEventStream ingests the compute's event stream and re-emits every
// event through the notification bus (spec §4.C (3)). It first tries a
// websocket upgrade; if the compute doesn't support it, it falls back to
// long-polling GET /notifications, matching "long-poll or streaming event
// endpoint at minimum" from spec §6.
func (c *Client) runEventStream(ctx context.Context) {
	wsURL := c.websocketURL()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err == nil {
		defer conn.Close()
		c.pumpWebsocket(ctx, conn)
		return
	}
	log.Debug().Str("compute", c.cfg.ID).Err(err).Msg("websocket upgrade failed, falling back to long-poll")
	c.pumpLongPoll(ctx)
}

func (c *Client) websocketURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	scheme := "ws"
	if c.cfg.Protocol == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/notifications/ws", scheme, c.cfg.Host, c.cfg.Port)
}

func (c *Client) pumpWebsocket(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				log.Warn().Str("compute", c.cfg.ID).Err(err).Msg("event stream read failed")
			}
			return
		}
		c.bus.Publish(ev.Action, ev.Payload)
	}
}

func (c *Client) pumpLongPoll(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var events []models.Event
			if err := c.do(ctx, http.MethodGet, "/notifications", nil, &events); err != nil {
				continue
			}
			for _, ev := range events {
				c.bus.Publish(ev.Action, ev.Payload)
			}
		}
	}
}

// JSON returns the wire representation of the compute, for notifications
// and persistence snapshots.
func (c *Client) JSON() models.Compute {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.Compute{
		ID:          c.cfg.ID,
		Name:        c.cfg.Name,
		Protocol:    c.cfg.Protocol,
		Host:        c.cfg.Host,
		Port:        c.cfg.Port,
		ConsoleHost: c.cfg.ConsoleHost,
		User:        c.cfg.User,
		Password:    c.cfg.Password,
		State:       c.state,
		LastError:   c.lastErr,
	}
}
