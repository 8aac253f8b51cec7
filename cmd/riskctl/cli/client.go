package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tradegate/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrBlocked возвращается, когда сервер ответил 429
var ErrBlocked = errors.New("blocked by risk gate")

// apiError тело ошибки сервера
type apiError struct {
	Error  string             `json:"error"`
	Code   string             `json:"code"`
	Reason string             `json:"reason"`
	Fields []utils.FieldError `json:"fields"`
}

// client минимальный JSON клиент REST API tradegate
type client struct {
	base string
	http *http.Client
}

func newClient(rc *RootConfig) (*client, error) {
	addr := strings.TrimRight(strings.TrimSpace(rc.Addr), "/")
	if addr == "" {
		addr = DefaultAddr
	}
	u, err := url.Parse(addr)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid --addr %q", rc.Addr)
	}
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &client{base: addr, http: &http.Client{Timeout: timeout}}, nil
}

func (c *client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(status int, data []byte) error {
	var ae apiError
	if err := json.Unmarshal(data, &ae); err != nil {
		return fmt.Errorf("server returned %d", status)
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrBlocked, ae.Reason)
	}

	msg := ae.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	if len(ae.Fields) > 0 {
		parts := make([]string, 0, len(ae.Fields))
		for _, f := range ae.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return fmt.Errorf("server returned %d: %s", status, msg)
}
