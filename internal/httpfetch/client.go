// Package httpfetch is the funding tracker's C1: retry-wrapped JSON GET/POST
// and a single-shot WebSocket subscribe-and-read primitive. It is the one
// place every exchange adapter goes through to reach an upstream venue.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	defaultTimeout    = 30 * time.Second
	backoffBase       = 1 * time.Second
	backoffMax        = 10 * time.Second
	cumulativeBudget  = 60 * time.Second
	breakerMaxFailure = 5
)

// Client wraps an *http.Client with the retry/backoff/circuit-breaker
// behaviour every adapter needs. One Client is constructed per exchange so
// that a chronically failing venue trips its own breaker without affecting
// siblings.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a Client for the named exchange (used only for logging and
// breaker naming).
func New(name string) *Client {
	st := gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailure
		},
	}
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: gobreaker.NewCircuitBreaker(st),
		name:    name,
	}
}

// Get performs a retry-wrapped JSON GET. query is appended to u as-is; pass
// nil for no query params. Returns the parsed JSON body.
func (c *Client) Get(ctx context.Context, u string, query url.Values, headers http.Header, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	full := u
	if len(query) > 0 {
		full = u + "?" + query.Encode()
	}
	return c.doRetrying(ctx, timeout, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return nil, err
		}
		applyHeaders(req, headers)
		return req, nil
	})
}

// Post performs a retry-wrapped JSON POST. body is marshalled to JSON.
func (c *Client) Post(ctx context.Context, u string, body any, headers http.Header, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return c.doRetrying(ctx, timeout, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		applyHeaders(req, headers)
		return req, nil
	})
}

func applyHeaders(req *http.Request, headers http.Header) {
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// doRetrying retries on transport errors and non-2xx status, with
// exponential backoff capped at backoffMax per wait and aborting once
// cumulativeBudget has elapsed since the first attempt. The whole call (all
// attempts) is also wrapped in the exchange's circuit breaker.
func (c *Client) doRetrying(ctx context.Context, perCallTimeout time.Duration, build func(context.Context) (*http.Request, error)) (any, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		deadline := time.Now().Add(cumulativeBudget)
		attempt := 0
		for {
			callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
			req, buildErr := build(callCtx)
			if buildErr != nil {
				cancel()
				return nil, buildErr
			}

			resp, doErr := c.http.Do(req)
			if doErr == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
				defer resp.Body.Close()
				defer cancel()
				raw, readErr := io.ReadAll(resp.Body)
				if readErr != nil {
					return nil, fmt.Errorf("%s: read body: %w", c.name, readErr)
				}
				var parsed any
				if len(raw) > 0 {
					if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
						return nil, fmt.Errorf("%s: parse json: %w", c.name, jsonErr)
					}
				}
				return parsed, nil
			}

			var callErr error
			if doErr != nil {
				callErr = doErr
			} else {
				callErr = fmt.Errorf("%s: http status %d", c.name, resp.StatusCode)
				resp.Body.Close()
			}
			cancel()

			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%s: retry budget exhausted: %w", c.name, callErr)
			}

			wait := backoffFor(attempt)
			log.Debug().Str("exchange", c.name).Int("attempt", attempt).Dur("wait", wait).Err(callErr).Msg("retrying upstream call")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			attempt++
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func backoffFor(attempt int) time.Duration {
	d := backoffBase << uint(attempt)
	if d > backoffMax || d <= 0 {
		d = backoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}

// WebSocketFetchOnce opens u, sends subscribeFrame, discards the first
// received frame, and returns the second frame parsed as JSON. It is the
// one primitive Lighter's live-rate path needs.
func WebSocketFetchOnce(ctx context.Context, u string, subscribeFrame any) (any, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", u, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeFrame); err != nil {
		return nil, fmt.Errorf("websocket subscribe: %w", err)
	}

	var discard any
	if err := conn.ReadJSON(&discard); err != nil {
		return nil, fmt.Errorf("websocket first frame: %w", err)
	}

	var payload any
	if err := conn.ReadJSON(&payload); err != nil {
		return nil, fmt.Errorf("websocket second frame: %w", err)
	}
	return payload, nil
}

// IsNotFound is a small helper adapters use to distinguish "symbol doesn't
// exist on this venue" from other transport failures.
func IsNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404")
}
