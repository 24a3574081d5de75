package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// PolitenessChecker caches each host's robots.txt and checks whether a
// given path may be fetched by this connector's user agent before a live
// fetch runs.
type PolitenessChecker struct {
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

func NewPolitenessChecker(userAgent string) *PolitenessChecker {
	return &PolitenessChecker{
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

func (p *PolitenessChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}

	robots, err := p.fetchRobots(ctx, u)
	if err != nil {
		// If robots.txt is unreachable, fail open: most sites that serve
		// no robots.txt intend to allow crawling.
		return true, nil
	}

	group := robots.FindGroup(p.userAgent)
	return group.Test(u.Path), nil
}

func (p *PolitenessChecker) fetchRobots(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	p.mu.Lock()
	if cached, ok := p.cache[u.Host]; ok {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[u.Host] = robots
	p.mu.Unlock()
	return robots, nil
}
