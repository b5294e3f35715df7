/*-------------------------------------------------------------------------
 *
 * scraper.go
 *    Publisher profile scraper
 *
 * Fetches a publisher's site and extracts the title, description, and
 * section headings used to enrich the topics crew input. Scraping is
 * best-effort; a failure leaves the profile unenriched.
 *
 * Copyright (c) 2024-2026, Vertical Labs, Inc. <eng@verticallabs.ai>
 *
 * IDENTIFICATION
 *    pipeline/internal/tools/scraper.go
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

/* SiteProfile is the scraped summary of a publisher site */
type SiteProfile struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Headings    []string `json:"headings,omitempty"`
}

/* Scraper fetches publisher pages */
type Scraper struct {
	client *http.Client
}

/* NewScraper creates a scraper with a bounded request timeout */
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

/* ScrapePublisher fetches url and extracts a site profile */
func (s *Scraper) ScrapePublisher(ctx context.Context, url string) (*SiteProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("publisher scrape failed: url='%s', error=%w", url, err)
	}
	req.Header.Set("User-Agent", "verticallabs-pipeline/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publisher scrape failed: url='%s', error=%w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("publisher scrape failed: url='%s', status=%d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("publisher scrape failed: url='%s', error=%w", url, err)
	}

	profile := &SiteProfile{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		profile.Description = strings.TrimSpace(desc)
	}

	doc.Find("h1, h2").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			profile.Headings = append(profile.Headings, text)
		}
		return len(profile.Headings) < 12
	})

	return profile, nil
}
