// Package gateway performs every outbound fetch against third-party endpoints.
//
// A fetch is tried directly with a short timeout and, when that fails, once
// more through the configured pass-through proxy with a longer timeout. Callers
// get a nil *Body on failure and never an error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justchokingaround/vodhub/internal/config"
)

// Options configures a Gateway
type Options struct {
	ProxyURL      string
	DirectTimeout time.Duration
	ProxyTimeout  time.Duration
	UserAgent     string
	Debug         bool
	Logger        *slog.Logger
}

// Gateway fetches remote resources with direct-then-proxy escalation
type Gateway struct {
	client        *Client
	proxyURL      string
	directTimeout time.Duration
	proxyTimeout  time.Duration
	logger        *slog.Logger
}

// New creates a Gateway
func New(opts Options) *Gateway {
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = 6 * time.Second
	}
	if opts.ProxyTimeout <= 0 {
		opts.ProxyTimeout = 12 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client := NewClient(ClientConfig{
		Timeout:   max(opts.DirectTimeout, opts.ProxyTimeout),
		UserAgent: opts.UserAgent,
		Debug:     opts.Debug,
		Logger:    opts.Logger,
	})

	return &Gateway{
		client:        client,
		proxyURL:      strings.TrimSpace(opts.ProxyURL),
		directTimeout: opts.DirectTimeout,
		proxyTimeout:  opts.ProxyTimeout,
		logger:        opts.Logger,
	}
}

// NewFromConfig creates a Gateway from the gateway section of the config
func NewFromConfig(cfg *config.GatewayConfig, debug bool, logger *slog.Logger) *Gateway {
	return New(Options{
		ProxyURL:      cfg.ProxyURL,
		DirectTimeout: cfg.DirectTimeout,
		ProxyTimeout:  cfg.ProxyTimeout,
		UserAgent:     cfg.UserAgent,
		Debug:         debug,
		Logger:        logger,
	})
}

// Body is a fetched payload. JSON holds the decoded document when the payload
// parsed as JSON and is nil otherwise.
type Body struct {
	Raw         []byte
	JSON        any
	ContentType string
	ViaProxy    bool
}

func newBody(raw []byte, contentType string, viaProxy bool) *Body {
	b := &Body{Raw: raw, ContentType: contentType, ViaProxy: viaProxy}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		var doc any
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			b.JSON = doc
		}
	}
	return b
}

// Text returns the payload as a string
func (b *Body) Text() string {
	if b == nil {
		return ""
	}
	return string(b.Raw)
}

// IsJSON reports whether the payload parsed as JSON
func (b *Body) IsJSON() bool {
	return b != nil && b.JSON != nil
}

// Decode unmarshals the payload into v
func (b *Body) Decode(v any) error {
	if b == nil {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(bytes.TrimSpace(b.Raw), v); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}

// Fetch retrieves target. It returns nil when both attempts fail.
func (g *Gateway) Fetch(ctx context.Context, target string) *Body {
	return g.FetchWithHeaders(ctx, target, nil)
}

// FetchWithHeaders is Fetch with extra request headers (e.g. Referer)
func (g *Gateway) FetchWithHeaders(ctx context.Context, target string, headers map[string]string) *Body {
	body, contentType, err := g.get(ctx, target, headers, g.directTimeout)
	if err == nil {
		return newBody(body, contentType, false)
	}
	g.logger.Debug("direct fetch failed", "url", target, "error", err)

	if g.proxyURL == "" || ctx.Err() != nil {
		return nil
	}

	proxied := g.ProxiedURL(target)
	body, contentType, err = g.get(ctx, proxied, headers, g.proxyTimeout)
	if err != nil {
		g.logger.Debug("proxy fetch failed", "url", target, "error", err)
		return nil
	}
	return newBody(body, contentType, true)
}

// ProxiedURL wraps target as the url parameter of the proxy endpoint
func (g *Gateway) ProxiedURL(target string) string {
	sep := "?"
	if strings.Contains(g.proxyURL, "?") {
		sep = "&"
	}
	return g.proxyURL + sep + "url=" + url.QueryEscape(target)
}

// FetchCMS queries a backend index API, always asking for a JSON response
func (g *Gateway) FetchCMS(ctx context.Context, apiURL string, params url.Values) *Body {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil || u.Host == "" {
		g.logger.Debug("invalid backend url", "url", apiURL, "error", err)
		return nil
	}

	q := u.Query()
	for key, values := range params {
		q.Del(key)
		for _, v := range values {
			q.Add(key, v)
		}
	}
	q.Set("out", "json")
	u.RawQuery = q.Encode()

	return g.Fetch(ctx, u.String())
}

// Probe checks that imageURL serves an image. Only the direct route is tried;
// proxy escalation for images is driven by the image pipeline itself.
func (g *Gateway) Probe(ctx context.Context, imageURL string) error {
	ctx, cancel := context.WithTimeout(ctx, g.directTimeout)
	defer cancel()

	resp, err := g.client.Get(ctx, imageURL, map[string]string{"Accept": "image/*,*/*;q=0.8"})
	if err != nil {
		return err
	}

	contentType := resp.Header().Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		return nil
	}
	if sniffed := http.DetectContentType(resp.Body()); strings.HasPrefix(sniffed, "image/") {
		return nil
	}
	return fmt.Errorf("not an image: %s", contentType)
}

func (g *Gateway) get(ctx context.Context, target string, headers map[string]string, timeout time.Duration) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := g.client.Get(ctx, target, headers)
	if err != nil {
		return nil, "", err
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}
