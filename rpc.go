package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	rpcRetryDelay    = 100 * time.Millisecond
	rpcRetryMaxDelay = 2 * time.Second
	rpcRetryAttempts = 3
)

var rpcRetryJitterFrac = 0.2

type rpcRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *httpStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("rpc http status %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("rpc http status %s", e.Status)
}

// rpcClient is a JSON-RPC-over-HTTP client with a shared transport, bounded
// retries with jitter, and connected/unhealthy flags the health endpoint
// reads. Both backend collaborators (mining engine, proxy service) speak the
// same envelope.
type rpcClient struct {
	name string
	url  string
	user string
	pass string

	client *http.Client

	idMu   sync.Mutex
	nextID int

	connected   atomic.Bool
	disconnects atomic.Uint64

	lastErrMu sync.RWMutex
	lastErr   error
}

func newRPCClient(name, url, user, pass string) *rpcClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:       60 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &rpcClient{
		name: name,
		url:  url,
		user: user,
		pass: pass,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		nextID: 1,
	}
}

func (c *rpcClient) Connected() bool {
	if c == nil {
		return false
	}
	return c.connected.Load()
}

func (c *rpcClient) LastError() error {
	if c == nil {
		return nil
	}
	c.lastErrMu.RLock()
	defer c.lastErrMu.RUnlock()
	return c.lastErr
}

func (c *rpcClient) recordResult(err error) {
	c.lastErrMu.Lock()
	c.lastErr = err
	c.lastErrMu.Unlock()
	if err == nil {
		c.connected.Store(true)
		return
	}
	if c.connected.Swap(false) {
		c.disconnects.Add(1)
		logger.Warn("rpc backend unhealthy", "backend", c.name, "error", err)
	}
}

func (c *rpcClient) reqID() int {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

// call performs one JSON-RPC call, retrying transient transport failures with
// jittered backoff. RPC-level errors (the server answered) are not retried.
func (c *rpcClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if c == nil {
		return fmt.Errorf("rpc client not configured")
	}
	var lastErr error
	delay := rpcRetryDelay
	for attempt := 0; attempt < rpcRetryAttempts; attempt++ {
		if attempt > 0 {
			jitter := 1 + rpcRetryJitterFrac*(2*rand.Float64()-1)
			if err := sleepContext(ctx, time.Duration(float64(delay)*jitter)); err != nil {
				return err
			}
			delay *= 2
			if delay > rpcRetryMaxDelay {
				delay = rpcRetryMaxDelay
			}
		}
		err := c.callOnce(ctx, method, params, out)
		if err == nil {
			c.recordResult(nil)
			return nil
		}
		lastErr = err
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			// The backend is reachable; surface its answer immediately.
			c.recordResult(nil)
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	c.recordResult(lastErr)
	return lastErr
}

func (c *rpcClient) callOnce(ctx context.Context, method string, params interface{}, out interface{}) error {
	body, err := fastJSONMarshal(rpcRequest{
		Jsonrpc: "1.0",
		ID:      c.reqID(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.pass != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	var rpcResp rpcResponse
	if err := fastJSONUnmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := fastJSONUnmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
