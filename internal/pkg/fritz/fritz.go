package fritz

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/config"
)

var (
	// ErrConnection is returned when the hub cannot be reached.
	ErrConnection = errors.New("fritz: connection failed")
	// ErrLogin is returned when the hub rejects the configured credentials.
	ErrLogin = errors.New("fritz: login failed")
	// ErrHTTP is returned for any non 200 answer, most commonly an expired session (403).
	ErrHTTP = errors.New("fritz: unexpected http status")
)

// Client talks to the AHA HTTP interface of a FRITZ!Box.
type Client struct {
	cfg    *config.FritzConfig
	http   *http.Client
	logger *zap.Logger

	mu  sync.RWMutex
	sid string
}

func New(cfg *config.FritzConfig) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				// the box ships a self signed certificate.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		logger: zap.L(),
	}
}

// WithHTTPClient replaces the underlying http client, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// BaseURL is the address of the hub web interface.
func (c *Client) BaseURL() string {
	scheme := "http"
	if c.cfg.Ssl {
		scheme = "https"
	}
	host := c.cfg.Host
	if !strings.Contains(host, "://") {
		host = scheme + "://" + host
	}
	return host
}

// SID returns the current session id, empty when logged out.
func (c *Client) SID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sid
}

func (c *Client) setSID(sid string) {
	c.mu.Lock()
	c.sid = sid
	c.mu.Unlock()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.BaseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrHTTP, res.StatusCode, req.URL.Path)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// aha issues a homeautoswitch.lua command with the current session.
func (c *Client) aha(ctx context.Context, cmd Command, params url.Values) ([]byte, error) {
	query := url.Values{
		"switchcmd": {cmd.String()},
		"sid":       {c.SID()},
	}
	for k, v := range params {
		query[k] = v
	}
	c.logger.Debug("aha request", zap.String("switchcmd", cmd.String()), zap.String("ain", params.Get("ain")))
	return c.get(ctx, ahaPath, query)
}
