package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"

	"rebalancer/pkg/types"
)

// Config bundles everything a Client needs to reach one venue (spec §4.A/B).
type Config struct {
	Venue           string
	RESTBaseURL     string
	StreamURL       string
	Credentials     Credentials
	MinRequestDelay time.Duration
}

// Client is the signed HTTP caller plus the FIFO request worker described in
// spec §4.A/§4.B. It queues outbound requests, signs and sends them through
// resty with retry on transport errors, and wraps each call in a circuit
// breaker so a wedged venue stops burning the retry budget.
//
// Grounded on the teacher's internal/exchange/client.go (resty client setup,
// HTTP worker loop) generalized from Polymarket's CLOB REST API to the
// generic signed-POST shape of §4.A.
type Client struct {
	cfg     Config
	signer  Signer
	nonce   *NonceGenerator
	limiter *MinIntervalLimiter
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger

	mu    sync.Mutex
	queue []queuedRequest
}

type queuedRequest struct {
	req    types.OutboundRequest
	replyC chan WorkResult
}

// WorkResult is the outcome of one FIFO-queued signed call.
type WorkResult struct {
	Body []byte
	Err  error
}

// NewClient builds a signed HTTP caller for the configured venue.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	signer, err := NewSigner(cfg.Venue, cfg.Credentials)
	if err != nil {
		return nil, err
	}

	h := resty.New().
		SetBaseURL(cfg.RESTBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry only transport-level failures (spec §4.B task 2,
			// "re-enqueue on transport error"); venue business errors
			// (remark.success=false) are not retried here.
			return err != nil
		})

	cbSettings := gobreaker.Settings{
		Name:        cfg.Venue + "-http",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		cfg:     cfg,
		signer:  signer,
		nonce:   &NonceGenerator{},
		limiter: NewMinIntervalLimiter(cfg.MinRequestDelay),
		http:    h,
		breaker: gobreaker.NewCircuitBreaker[[]byte](cbSettings),
		logger:  logger.With("component", "exchange.client", "venue", cfg.Venue),
	}, nil
}

// Call issues one signed POST to path with params, blocking until the
// response arrives or ctx is cancelled. It is safe for concurrent use; the
// rate limiter and nonce generator serialize venue-facing timing, not the
// caller's goroutine.
func (c *Client) Call(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	nonce := c.nonce.Next()
	body := EncodeBody(params, nonce)
	headers, err := c.signer.Sign(path, body, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetBody(body).
			Post(path)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", path, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("post %s: venue returned status %d", path, resp.StatusCode())
		}
		return resp.Body(), nil
	})
}

// QueueDepth returns the number of requests currently waiting in the FIFO
// worker queue, for the engine's queue-depth gauge.
func (c *Client) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Enqueue submits req to the FIFO worker queue and returns a channel that
// receives exactly one reply, correlated by req.ReqID (spec §4.B task 2).
// The queue preserves submission order across a single goroutine so retries
// never reorder two requests for the same order.
func (c *Client) Enqueue(req types.OutboundRequest) <-chan WorkResult {
	replyC := make(chan WorkResult, 1)
	c.mu.Lock()
	c.queue = append(c.queue, queuedRequest{req: req, replyC: replyC})
	c.mu.Unlock()
	return replyC
}

// RunWorker drains the FIFO queue until ctx is cancelled, issuing one Call
// per request in submission order and delivering the result on its reply
// channel.
func (c *Client) RunWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.drainOnShutdown()
			return
		default:
		}

		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		body, err := c.Call(ctx, next.req.Endpoint, next.req.Params)
		if err != nil {
			c.logger.Warn("signed call failed", "endpoint", next.req.Endpoint, "reqid", next.req.ReqID, "err", err)
		}
		next.replyC <- WorkResult{Body: body, Err: err}
		close(next.replyC)
	}
}

func (c *Client) drainOnShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range c.queue {
		q.replyC <- WorkResult{Err: fmt.Errorf("client shutting down")}
		close(q.replyC)
	}
	c.queue = nil
}
