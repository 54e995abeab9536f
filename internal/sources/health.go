package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Pinger checks that a backend index API answers
type Pinger interface {
	Ping(ctx context.Context, apiURL string) error
}

// Status is the outcome of one backend health check
type Status struct {
	Backend     Backend       `json:"backend"`
	Healthy     bool          `json:"healthy"`
	Status      string        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CurlCommand string        `json:"curl_command"`
	CheckedAt   time.Time     `json:"checked_at"`
}

// CheckAll pings every backend concurrently and returns results in list order
func (r *Registry) CheckAll(ctx context.Context, pinger Pinger, timeout time.Duration) []Status {
	backends := r.List()
	results := make([]Status, len(backends))

	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b Backend) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := pinger.Ping(checkCtx, b.APIURL)

			status := Status{
				Backend:     b,
				Healthy:     err == nil,
				Status:      "Online",
				Duration:    time.Since(start),
				CurlCommand: formatCurlCommand(pingURL(b.APIURL)),
				CheckedAt:   time.Now(),
			}
			if err != nil {
				status.Status = "Offline"
				status.Error = err.Error()
			}
			results[i] = status
		}(i, b)
	}
	wg.Wait()

	return results
}

// pingURL is the list query a health check sends, merged into any query the
// backend URL already carries
func pingURL(apiURL string) string {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return apiURL
	}
	q := u.Query()
	q.Set("ac", "list")
	q.Set("pg", "1")
	q.Set("out", "json")
	u.RawQuery = q.Encode()
	return u.String()
}

// formatCurlCommand generates a curl command for debugging
func formatCurlCommand(url string) string {
	var b strings.Builder
	b.WriteString("curl -sS ")
	b.WriteString(fmt.Sprintf("'%s'", url))
	return b.String()
}
