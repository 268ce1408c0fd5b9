package recon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gocolly/colly/v2"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/logger"
	"github.com/xsslab/xsslab/pkg/utils"
)

// Script is one script found on a page.
type Script struct {
	URL     string `json:"url,omitempty"`
	Inline  bool   `json:"inline"`
	Content string `json:"content,omitempty"`
}

// Page holds what the scanners need from a live page.
type Page struct {
	URL           string   `json:"url"`
	StatusCode    int      `json:"statusCode"`
	CSP           string   `json:"csp,omitempty"`
	CSPReportOnly string   `json:"cspReportOnly,omitempty"`
	MetaCSP       []string `json:"metaCsp,omitempty"`
	Scripts       []Script `json:"scripts"`
}

// Policy returns the enforced header policy, falling back to a <meta> policy.
func (p *Page) Policy() string {
	if p.CSP != "" {
		return p.CSP
	}
	if len(p.MetaCSP) > 0 {
		return p.MetaCSP[0]
	}
	return ""
}

// Code concatenates every script body that was retrieved.
func (p *Page) Code() string {
	var parts []string
	for _, s := range p.Scripts {
		if s.Content != "" {
			parts = append(parts, s.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Fetcher downloads a page and its scripts with colly.
type Fetcher struct {
	config *config.Config
	log    logger.Logger
}

// NewFetcher creates a new page fetcher
func NewFetcher(cfg *config.Config, log logger.Logger) *Fetcher {
	return &Fetcher{config: cfg, log: log}
}

func (f *Fetcher) newCollector() (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.config.Fetch.UserAgent),
		colly.MaxBodySize(f.config.Fetch.MaxBodySize),
		colly.MaxDepth(2),
	)
	c.WithTransport(utils.NewTransport(f.config))
	c.SetRequestTimeout(f.config.Fetch.Timeout)

	if f.config.Fetch.Proxy != "" {
		if err := c.SetProxy(f.config.Fetch.Proxy); err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
	}
	return c, nil
}

// Fetch retrieves target, records its CSP headers and collects inline
// scripts. External scripts are downloaded when fetch.follow_external is set.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	if !utils.IsValidURL(target) {
		return nil, fmt.Errorf("invalid target URL: %s", target)
	}

	c, err := f.newCollector()
	if err != nil {
		return nil, err
	}

	page := &Page{URL: target, Scripts: []Script{}}
	var mu sync.Mutex
	external := map[string]int{}

	c.OnRequest(func(r *colly.Request) {
		f.log.Debug("Fetching", "url", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		mu.Lock()
		defer mu.Unlock()

		if r.Request.Depth <= 1 {
			page.URL = r.Request.URL.String()
			page.StatusCode = r.StatusCode
			page.CSP = r.Headers.Get("Content-Security-Policy")
			page.CSPReportOnly = r.Headers.Get("Content-Security-Policy-Report-Only")
			return
		}
		if i, ok := external[r.Request.URL.String()]; ok {
			page.Scripts[i].Content = string(r.Body)
		}
	})

	c.OnHTML(`meta[http-equiv]`, func(e *colly.HTMLElement) {
		if !strings.EqualFold(e.Attr("http-equiv"), "Content-Security-Policy") {
			return
		}
		mu.Lock()
		page.MetaCSP = append(page.MetaCSP, e.Attr("content"))
		mu.Unlock()
	})

	c.OnHTML("script", func(e *colly.HTMLElement) {
		src := strings.TrimSpace(e.Attr("src"))
		if src == "" {
			mu.Lock()
			page.Scripts = append(page.Scripts, Script{Inline: true, Content: e.Text})
			mu.Unlock()
			return
		}

		abs := e.Request.AbsoluteURL(src)
		mu.Lock()
		if _, seen := external[abs]; seen {
			mu.Unlock()
			return
		}
		external[abs] = len(page.Scripts)
		page.Scripts = append(page.Scripts, Script{URL: abs})
		mu.Unlock()

		if !f.config.Fetch.FollowExternal || ctx.Err() != nil {
			return
		}
		if err := e.Request.Visit(abs); err != nil {
			f.log.Warn("Failed to fetch external script", "url", abs, "error", err)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		f.log.Warn("Fetch error", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", redact(target), err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.log.Info("Fetched page",
		"url", page.URL,
		"status", page.StatusCode,
		"scripts", len(page.Scripts),
		"csp", page.CSP != "")

	return page, nil
}

// redact drops credentials from URLs before they reach logs or errors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}
