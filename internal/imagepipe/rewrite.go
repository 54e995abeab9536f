package imagepipe

import (
	"net/url"
	"strings"

	"github.com/justchokingaround/vodhub/internal/config"
)

// Rewriter knows the URL transformations of the image pipeline
type Rewriter struct {
	proxies  []string
	bad      []string
	sizeHost string
	sizeFrom string
	sizeTo   string
}

// NewRewriter builds a Rewriter from the images config
func NewRewriter(cfg *config.ImagesConfig) *Rewriter {
	bad := make([]string, 0, len(cfg.BadPatterns))
	for _, p := range cfg.BadPatterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			bad = append(bad, p)
		}
	}

	proxies := make([]string, 0, len(cfg.ProxyTemplates))
	for _, p := range cfg.ProxyTemplates {
		if strings.Contains(p, "{url}") {
			proxies = append(proxies, p)
		}
	}

	return &Rewriter{
		proxies:  proxies,
		bad:      bad,
		sizeHost: strings.ToLower(cfg.SizeHost),
		sizeFrom: cfg.SizeFrom,
		sizeTo:   cfg.SizeTo,
	}
}

// Stages returns the number of proxy rewrites (K)
func (r *Rewriter) Stages() int {
	return len(r.proxies)
}

// Normalize upgrades protocol-relative URLs and swaps the size token on the
// metadata image host's /public/ paths
func (r *Rewriter) Normalize(src string) string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}

	if r.sizeHost == "" || r.sizeFrom == "" {
		return src
	}
	u, err := url.Parse(src)
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), r.sizeHost) {
		return src
	}
	if strings.Contains(u.Path, "/public/") && strings.Contains(u.Path, r.sizeFrom) {
		u.Path = strings.Replace(u.Path, r.sizeFrom, r.sizeTo, 1)
		return u.String()
	}
	return src
}

// IsBad reports whether src is empty or a known "no picture" placeholder
func (r *Rewriter) IsBad(src string) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	lower := strings.ToLower(src)
	for _, p := range r.bad {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Proxy returns src wrapped in proxy template i (zero-based)
func (r *Rewriter) Proxy(i int, src string) string {
	return strings.ReplaceAll(r.proxies[i], "{url}", url.QueryEscape(src))
}
