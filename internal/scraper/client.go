// Package scraper reads news articles, the resthome directory and the site
// search of an external elder-care portal and turns their markup into typed
// records. Parsers are pure functions of a goquery document; Client adds the
// fetching.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

const (
	userAgent    = "gp-scraper / Guard Pine"
	maxBodyBytes = 16 << 20
	upstreamName = "scraper"
)

// FailureRecorder counts failed upstream calls.
type FailureRecorder interface {
	UpstreamFailed(upstream string)
}

// Config holds the scraping targets.
type Config struct {
	// BaseURL is the directory site; relative paths resolve against it.
	BaseURL string
	// SearchURL is the site search endpoint, without page and query.
	SearchURL string
	// Contact is sent with every request so the site operator can reach us.
	Contact string
}

// Client fetches and parses pages of the directory site.
type Client struct {
	base     *url.URL
	search   *url.URL
	contact  string
	http     *http.Client
	failures FailureRecorder
	log      *zap.Logger
}

// Payload is a buffered upstream response.
type Payload struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewClient constructs a Client. httpClient carries the outbound timeout.
func NewClient(cfg Config, httpClient *http.Client, failures FailureRecorder, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	search, err := url.Parse(cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:     base,
		search:   search,
		contact:  cfg.Contact,
		http:     httpClient,
		failures: failures,
		log:      log,
	}, nil
}

// Fetch loads ref, relative to the base URL or absolute, as a document.
// Upstream 404 is reported as common.ErrNotFound, any other non-2xx status
// as common.ErrUpstream.
func (c *Client) Fetch(ctx context.Context, ref string) (*goquery.Document, error) {
	u, err := c.base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: bad reference %q", common.ErrValidation, ref)
	}
	return c.fetchURL(ctx, u)
}

func (c *Client) fetchURL(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, c.failed(u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", u.Path, common.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, c.failed(u, fmt.Errorf("%w: status %d", common.ErrUpstream, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.failed(u, fmt.Errorf("%w: read document: %v", common.ErrUpstream, err))
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// Download buffers an arbitrary http(s) resource, following redirects.
func (c *Client) Download(ctx context.Context, rawURL string) (*Payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: only absolute http(s) urls can be fetched", common.ErrValidation)
	}
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, c.failed(u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.failed(u, fmt.Errorf("%w: read body: %v", common.ErrUpstream, err))
	}
	header := resp.Header.Clone()
	header.Del("Content-Length")
	return &Payload{Status: resp.StatusCode, Header: header, Body: body}, nil
}

func (c *Client) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.contact != "" {
		req.Header.Set("X-Scraper-Contact", c.contact)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	return resp, nil
}

func (c *Client) failed(u *url.URL, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	c.failures.UpstreamFailed(upstreamName)
	c.log.Warn("scrape failed", zap.String("url", u.Redacted()), zap.Error(err))
	return err
}

// Articles returns a page, starting at 1, of the newest articles.
func (c *Client) Articles(ctx context.Context, page int) ([]models.ArticleWithDate, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page starts at 1", common.ErrValidation)
	}
	doc, err := c.Fetch(ctx, "/article_"+strconv.Itoa(page))
	if err != nil {
		return nil, err
	}
	return ParseArticles(doc)
}

// Article returns the body of an article and its related reads.
func (c *Client) Article(ctx context.Context, articleID int64) (*models.ArticleDetails, error) {
	doc, err := c.Fetch(ctx, fmt.Sprintf("/article/%d.html", articleID))
	if err != nil {
		return nil, err
	}
	return ParseArticle(doc)
}

// Resthomes returns a page of care homes of region, the whole country when empty.
func (c *Client) Resthomes(ctx context.Context, region string, page int) (*models.ResthomesPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page starts at 1", common.ErrValidation)
	}
	if region == "" {
		region = "resthome"
	}
	doc, err := c.Fetch(ctx, fmt.Sprintf("/%s_%d", url.PathEscape(region), page))
	if err != nil {
		return nil, err
	}
	return ParseResthomes(doc)
}

// Resthome returns the description of a care home.
func (c *Client) Resthome(ctx context.Context, resthomeID int64) (*models.ResthomeDetails, error) {
	doc, err := c.Fetch(ctx, fmt.Sprintf("/resthome/%d.html", resthomeID))
	if err != nil {
		return nil, err
	}
	return ParseResthome(doc)
}

// Cities returns the sitemap of regions grouped by province.
func (c *Client) Cities(ctx context.Context) (map[string][]models.Region, error) {
	doc, err := c.Fetch(ctx, "/city")
	if err != nil {
		return nil, err
	}
	return ParseCities(doc)
}

// Search runs the site search, page starting at 0.
func (c *Client) Search(ctx context.Context, query string, page int) (*models.SearchResults, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: page starts at 0", common.ErrValidation)
	}
	u := *c.search
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("q", query)
	u.RawQuery = q.Encode()

	doc, err := c.fetchURL(ctx, &u)
	if err != nil {
		return nil, err
	}
	return ParseSearch(doc, u.String())
}

// PageMeta summarizes an arbitrary web page from its Open Graph tags.
func (c *Client) PageMeta(ctx context.Context, rawURL string) (*models.PageMeta, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: only absolute http(s) urls can be parsed", common.ErrValidation)
	}
	doc, err := c.fetchURL(ctx, u)
	if err != nil {
		return nil, err
	}
	return ParsePageMeta(doc, u), nil
}
