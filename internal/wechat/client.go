// Package wechat exchanges mini-program login codes for stable openids.
package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/atinyakov/GuardPine/internal/cache"
	"github.com/atinyakov/GuardPine/internal/common"
)

// Provider error codes of jscode2session.
const (
	codeInvalid     = 40029
	codeUsed        = 40163
	codeRateLimited = 45011
	codeRiskBlocked = 40226
)

const openIDCacheLimit = 4096

// FailureRecorder counts failed upstream calls.
type FailureRecorder interface {
	UpstreamFailed(upstream string)
}

// Config holds the mini-program credentials and the exchange endpoint.
type Config struct {
	AppID    string
	Secret   string
	Endpoint string
	CacheTTL time.Duration
}

type sessionResponse struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	UnionID    string `json:"unionid"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Client resolves login codes through jscode2session. Successful lookups are
// cached per code, so a client retrying with the same code gets the same
// openid without a second exchange.
type Client struct {
	cfg      Config
	http     *http.Client
	openids  *cache.TTL[string, string]
	failures FailureRecorder
	log      *zap.Logger
}

// NewClient constructs a Client.
func NewClient(cfg Config, httpClient *http.Client, clk clock.Clock, failures FailureRecorder, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		openids:  cache.New[string, string](cfg.CacheTTL, openIDCacheLimit, clk),
		failures: failures,
		log:      log,
	}
}

// OpenID returns the openid bound to the one-time login code.
func (c *Client) OpenID(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: code is required", common.ErrValidation)
	}
	if openid, ok := c.openids.Get(code); ok {
		return openid, nil
	}

	openid, err := c.exchange(ctx, code)
	if err != nil {
		c.failures.UpstreamFailed("wechat")
		c.log.Warn("jscode2session failed", zap.Error(err))
		return "", err
	}
	c.openids.Set(code, openid)
	return openid, nil
}

func (c *Client) exchange(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("appid", c.cfg.AppID)
	q.Set("secret", c.cfg.Secret)
	q.Set("js_code", code)
	q.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: jscode2session status %d", common.ErrUpstream, resp.StatusCode)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode jscode2session: %v", common.ErrUpstream, err)
	}
	if body.ErrCode != 0 {
		return "", providerError(body.ErrCode, body.ErrMsg)
	}
	if body.OpenID == "" {
		return "", fmt.Errorf("%w: jscode2session returned no openid", common.ErrUpstream)
	}
	return body.OpenID, nil
}

func providerError(code int, msg string) error {
	var kind error
	switch code {
	case codeInvalid:
		kind = common.ErrWrongCredential
	case codeUsed:
		kind = common.ErrGone
	case codeRateLimited:
		kind = common.ErrRateLimited
	case codeRiskBlocked:
		kind = common.ErrRiskBlocked
	default:
		kind = common.ErrUpstream
	}
	return fmt.Errorf("%w: errcode %d: %s", kind, code, msg)
}
