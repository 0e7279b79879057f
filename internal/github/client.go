package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultMaxRedirects is how many rename redirects a branch lookup follows.
// GitHub answers a request for a renamed branch with 301 Moved Permanently.
const DefaultMaxRedirects = 1

type Client struct {
	Client       *github.Client
	HTTP         *http.Client
	MaxRedirects int
}

type options struct {
	logger       *zap.Logger
	redirectLogs bool
	maxRedirects int
	baseURL      string
}

type Option func(*options)

// WithLogger routes one debug entry per request and response to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRedirectLogs controls whether 3xx responses are logged. Branch rename
// redirects are routine during inspection and are silent by default.
func WithRedirectLogs(enabled bool) Option {
	return func(o *options) {
		o.redirectLogs = enabled
	}
}

// WithMaxRedirects sets how many redirects branch lookups follow. Zero makes a
// renamed branch surface as a lookup failure.
func WithMaxRedirects(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRedirects = n
		}
	}
}

// WithBaseURL points the client at another API root, e.g. a GitHub Enterprise
// Server "https://ghe.example.com/api/v3/". Empty keeps api.github.com.
func WithBaseURL(raw string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSpace(raw)
	}
}

// loggingRoundTripper emits one debug entry per request and response,
// including latency.
type loggingRoundTripper struct {
	base         http.RoundTripper
	logger       *zap.Logger
	redirectLogs bool
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	t.logger.Debug("github api request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		t.logger.Debug("github api error", zap.Duration("after", dur), zap.Error(err))
		return resp, err
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 && !t.redirectLogs {
		return resp, err
	}
	t.logger.Debug("github api response",
		zap.Int("status", resp.StatusCode),
		zap.String("status_text", http.StatusText(resp.StatusCode)),
		zap.Duration("latency", dur),
	)
	return resp, err
}

func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	if ctx == nil {
		return nil, fmt.Errorf("github client: ctx is nil")
	}

	o := &options{maxRedirects: DefaultMaxRedirects}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	transport := http.DefaultTransport
	if o.logger != nil {
		transport = &loggingRoundTripper{base: transport, logger: o.logger, redirectLogs: o.redirectLogs}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	tc := &http.Client{Transport: transport}

	gc := github.NewClient(tc)
	if o.baseURL != "" {
		raw := o.baseURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("github client: invalid base URL %q", o.baseURL)
		}
		gc.BaseURL = u
		gc.UploadURL = u
	}

	return &Client{
		Client:       gc,
		HTTP:         tc,
		MaxRedirects: o.maxRedirects,
	}, nil
}
