// Package crawler walks a website from a base URL, staying within scope,
// and extracts the text of every page it visits.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"docrag/internal/domain"
)

// Scope decides whether a discovered link may be followed.
type Scope string

const (
	// ScopePrefix follows links whose resolved URL string starts with the
	// base URL string. This is a textual test: https://example.com/docs
	// also admits https://example.com/docs-archive.
	ScopePrefix Scope = "prefix"
	// ScopeHost follows links with the same scheme and host as the base URL.
	ScopeHost Scope = "host"
)

// Config bounds a crawl.
type Config struct {
	// Workers caps concurrent page fetches. 1 gives a deterministic
	// depth-first visiting order.
	Workers int
	Scope   Scope
	Logger  *slog.Logger
}

// PageFetcher retrieves the raw HTML of a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Crawler performs bounded same-site traversals.
type Crawler struct {
	fetcher PageFetcher
	cfg     Config
	log     *slog.Logger
}

// New creates a Crawler using fetcher for every request.
func New(fetcher PageFetcher, cfg Config) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Scope == "" {
		cfg.Scope = ScopePrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Crawler{fetcher: fetcher, cfg: cfg, log: cfg.Logger.With("component", "crawler")}
}

type visit struct {
	url   string
	text  string
	links []string
	err   error
}

// Crawl visits pages reachable from baseURL and returns at most maxPages
// non-empty pages. Each normalised URL is fetched at most once. Pages that
// fail to fetch or parse are logged and their links are not followed; the
// crawl carries on with the rest of the frontier.
//
// Page slots are reserved when a fetch is dispatched, so the maxPages
// bound is exact regardless of the number of workers.
func (c *Crawler) Crawl(ctx context.Context, baseURL string, maxPages int) ([]domain.Page, error) {
	base, start, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		return nil, domain.Validation(nil, "max pages must be positive, got %d", maxPages)
	}
	baseStr := stripFragment(strings.TrimSpace(baseURL))

	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	results := make(chan visit, c.cfg.Workers)
	inFlight := 0
	var pages []domain.Page

	for {
		for len(stack) > 0 && inFlight < c.cfg.Workers && len(pages)+inFlight < maxPages && ctx.Err() == nil {
			next := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			inFlight++
			go func() { results <- c.visit(ctx, next) }()
		}
		if inFlight == 0 {
			break
		}

		v := <-results
		inFlight--
		if v.err != nil {
			c.log.Warn("skipping page", "url", v.url, "err", v.err)
			continue
		}
		if v.text != "" {
			pages = append(pages, domain.Page{URL: v.url, Text: v.text})
		}
		// push in reverse so the first link on the page is visited next
		for i := len(v.links) - 1; i >= 0; i-- {
			link, ok := c.follow(base, baseStr, v.url, v.links[i])
			if !ok {
				continue
			}
			if _, seen := visited[link]; seen {
				continue
			}
			visited[link] = struct{}{}
			stack = append(stack, link)
		}
	}

	c.log.Info("crawl finished", "base", baseStr, "pages", len(pages), "discovered", len(visited))
	if err := ctx.Err(); err != nil {
		return pages, err
	}
	return pages, nil
}

// FetchPage fetches and extracts a single page without following links.
func (c *Crawler) FetchPage(ctx context.Context, rawURL string) (domain.Page, error) {
	_, u, err := parseBase(rawURL)
	if err != nil {
		return domain.Page{}, err
	}
	v := c.visit(ctx, u)
	if v.err != nil {
		return domain.Page{}, domain.Upstream(v.err, "fetch %s", u)
	}
	if v.text == "" {
		return domain.Page{}, domain.Validation(domain.ErrEmptyText, "no text extracted from %s", u)
	}
	return domain.Page{URL: u, Text: v.text}, nil
}

func (c *Crawler) visit(ctx context.Context, u string) visit {
	body, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		return visit{url: u, err: err}
	}
	doc, err := Parse(body)
	if err != nil {
		return visit{url: u, err: fmt.Errorf("parse html: %w", err)}
	}
	c.log.Debug("visited page", "url", u, "links", len(doc.Links))
	return visit{url: u, text: doc.Text(), links: doc.Links}
}

// follow resolves href against the page it appeared on and reports the
// normalised URL if it is in scope.
func (c *Crawler) follow(base *url.URL, baseStr, pageURL, href string) (string, bool) {
	href = stripFragment(strings.TrimSpace(href))
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := page.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Path == "" {
		resolved.Path = "/"
	}
	s := resolved.String()

	switch c.cfg.Scope {
	case ScopeHost:
		if !strings.EqualFold(resolved.Scheme, base.Scheme) || !strings.EqualFold(resolved.Host, base.Host) {
			return "", false
		}
	default:
		if !strings.HasPrefix(s, baseStr) {
			return "", false
		}
	}
	return s, true
}

// parseBase validates an absolute http(s) URL and returns it together with
// its fragment-free string form. An empty path is normalised to "/" so the
// start page shares its visited key with links back to the root.
func parseBase(raw string) (*url.URL, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", domain.Validation(domain.ErrInvalidURL, "url is required")
	}
	u, err := url.Parse(stripFragment(raw))
	if err != nil {
		return nil, "", domain.Validation(domain.ErrInvalidURL, "parse %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", domain.Validation(domain.ErrInvalidURL, "%q is not an absolute http(s) url", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, u.String(), nil
}

func stripFragment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return s
}
