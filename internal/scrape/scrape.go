// Package scrape collects wellness content from trusted public health
// sites for the knowledge base. Crawling is done with colly constrained
// to an allowlist of domains; article bodies are extracted with
// go-readability, falling back to goquery paragraph extraction for
// pages readability cannot parse.
package scrape

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/wellnessgrid/wellnessgrid/internal/rag"
)

// Source is one crawl target.
type Source struct {
	Name     string   `json:"name"`     // e.g. "CDC"
	Category string   `json:"category"` // e.g. "conditions"
	URLs     []string `json:"urls"`     // seed pages
	MaxPages int      `json:"maxPages"` // 0 means seeds only
}

// Config tunes the crawler.
type Config struct {
	UserAgent   string
	Parallelism int           // concurrent requests per domain, 0 means 2
	Delay       time.Duration // per-domain politeness delay, 0 means 1s
	MinBodyLen  int           // discard pages with less text, 0 means 200
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "wellnessgrid-bot/1.0 (+https://wellnessgrid.example/bot)"
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 2
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	if c.MinBodyLen <= 0 {
		c.MinBodyLen = 200
	}
	return c
}

// Scraper crawls sources and produces ingestable documents.
type Scraper struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a scraper.
func New(cfg Config, logger *slog.Logger) *Scraper {
	return &Scraper{cfg: cfg.withDefaults(), logger: logger}
}

// Scrape crawls every source and returns the extracted documents.
// Individual page failures are logged and skipped; only a failure to
// start a crawl is an error.
func (s *Scraper) Scrape(sources []Source) ([]rag.IngestDoc, error) {
	var docs []rag.IngestDoc
	for _, src := range sources {
		srcDocs, err := s.scrapeSource(src)
		if err != nil {
			return docs, fmt.Errorf("scraping %s: %w", src.Name, err)
		}
		docs = append(docs, srcDocs...)
	}
	return docs, nil
}

func (s *Scraper) scrapeSource(src Source) ([]rag.IngestDoc, error) {
	domains, err := seedDomains(src.URLs)
	if err != nil {
		return nil, err
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("no valid seed URLs")
	}

	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowedDomains(domains...),
		colly.MaxDepth(2),
	)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.Parallelism,
		Delay:       s.cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configuring crawl limits: %w", err)
	}

	var docs []rag.IngestDoc
	pages := 0

	c.OnHTML("html", func(e *colly.HTMLElement) {
		doc, ok := s.extract(e, src)
		if !ok {
			return
		}
		docs = append(docs, doc)
	})

	// Follow in-site links from seed pages while under the page budget.
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if src.MaxPages <= 0 || pages >= src.MaxPages {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" || strings.Contains(link, "#") {
			return
		}
		pages++
		if err := e.Request.Visit(link); err != nil {
			pages--
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		s.logger.Warn("page fetch failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	for _, seed := range src.URLs {
		if err := c.Visit(seed); err != nil {
			s.logger.Warn("seed visit failed", "url", seed, "error", err)
		}
	}
	c.Wait()

	s.logger.Info("source scraped", "source", src.Name, "documents", len(docs))
	return docs, nil
}

// extract pulls the readable article body out of a fetched page.
func (s *Scraper) extract(e *colly.HTMLElement, src Source) (rag.IngestDoc, bool) {
	pageURL := e.Request.URL

	html, err := e.DOM.Html()
	if err != nil {
		s.logger.Warn("serializing page failed", "url", pageURL.String(), "error", err)
		return rag.IngestDoc{}, false
	}

	title := strings.TrimSpace(e.DOM.Find("title").First().Text())
	content := ""

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err == nil {
		content = strings.TrimSpace(article.TextContent)
		if article.Title != "" {
			title = article.Title
		}
	} else {
		content = fallbackText(e.DOM)
	}

	if len(content) < s.cfg.MinBodyLen {
		return rag.IngestDoc{}, false
	}

	return rag.IngestDoc{
		Title:    title,
		URL:      pageURL.String(),
		Source:   pageURL.Hostname(),
		Category: src.Category,
		Content:  content,
	}, true
}

// fallbackText concatenates paragraph text when readability fails.
func fallbackText(dom *goquery.Selection) string {
	var parts []string
	dom.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// seedDomains derives the crawl allowlist from seed URLs.
func seedDomains(seeds []string) ([]string, error) {
	seen := make(map[string]bool)
	var domains []string
	for _, seed := range seeds {
		u, err := url.Parse(seed)
		if err != nil {
			return nil, fmt.Errorf("invalid seed URL %q: %w", seed, err)
		}
		if u.Hostname() == "" {
			continue
		}
		host := u.Hostname()
		if !seen[host] {
			seen[host] = true
			domains = append(domains, host, "www."+host)
		}
	}
	return domains, nil
}
