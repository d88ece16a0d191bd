package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"
)

const (
	articleTitleSelector = "h3.hiLite.galnetNewsArticleTitle"
	archiveBlockSelector = "#block-frontier-galnet-frontier-galnet-block-filter"
	uidPathPrefix        = "/galnet/uid/"
	galnetPathPrefix     = "/galnet/"
)

// GalNet fetches the community GalNet pages over HTTP. All requests share one
// rate limiter so scheduled updates and archive walks stay polite to the
// upstream site.
type GalNet struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	timeout   time.Duration
}

var _ Fetcher = (*GalNet)(nil)

func NewGalNet(client *http.Client, baseURL, userAgent string, requestsPerSecond float64, timeout time.Duration) *GalNet {
	return &GalNet{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		timeout:   timeout,
	}
}

// FetchIndex returns the UIDs rendered on the feed front page, in feed order.
func (g *GalNet) FetchIndex(ctx context.Context) ([]string, error) {
	doc, _, err := g.get(ctx, g.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed index: %w", err)
	}

	return extractUIDs(doc), nil
}

// FetchArticle retrieves one article page and extracts the
// title/body/raw-date tuple.
func (g *GalNet) FetchArticle(ctx context.Context, uid string) (*RawArticle, error) {
	pageURL := g.baseURL + uidPathPrefix + url.PathEscape(uid)
	doc, raw, err := g.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article %q: %w", uid, err)
	}

	article := &RawArticle{
		UID:   uid,
		Title: strings.TrimSpace(doc.Find(articleTitleSelector).First().Text()),
	}

	paragraphs := doc.Find("p")
	article.RawDate = strings.TrimSpace(paragraphs.Eq(0).Text())
	article.BodyText = strings.TrimSpace(paragraphs.Eq(1).Text())

	// Some article pages deviate from the usual two-paragraph markup; fall
	// back to readability extraction instead of storing an empty body.
	if article.BodyText == "" {
		article.BodyText = g.extractBody(raw, pageURL, uid)
	}

	return article, nil
}

// FetchAllLinks returns every dated archive page linked from the front page,
// oldest first. The raw date is derived from the link path.
func (g *GalNet) FetchAllLinks(ctx context.Context) ([]DatedLink, error) {
	doc, _, err := g.get(ctx, g.baseURL+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive listing: %w", err)
	}

	var links []DatedLink
	doc.Find(archiveBlockSelector).Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		path := strings.TrimSuffix(strings.ReplaceAll(href, "#", ""), "/")
		if !strings.HasPrefix(path, galnetPathPrefix) || strings.HasPrefix(path, uidPathPrefix) {
			return
		}

		rawDate := strings.ReplaceAll(strings.TrimPrefix(path, galnetPathPrefix), "-", " ")
		links = append(links, DatedLink{Path: path, RawDate: rawDate})
	})

	// The listing renders newest first; the corpus is built oldest first so
	// IDs follow publication order.
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}

	return links, nil
}

// FetchDay returns the UIDs published on one dated archive page.
func (g *GalNet) FetchDay(ctx context.Context, path string) ([]string, error) {
	doc, _, err := g.get(ctx, g.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive page %q: %w", path, err)
	}

	return extractUIDs(doc), nil
}

func (g *GalNet) get(ctx context.Context, pageURL string) (*goquery.Document, []byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, data, nil
}

func (g *GalNet) extractBody(raw []byte, pageURL, uid string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(bytes.NewReader(raw), parsed)
	if err != nil {
		slog.Debug("Readability fallback failed", "uid", uid, "error", err)
		return ""
	}

	return strings.TrimSpace(article.TextContent)
}

func extractUIDs(doc *goquery.Document) []string {
	var uids []string
	doc.Find(articleTitleSelector).Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if !strings.HasPrefix(href, uidPathPrefix) {
			return
		}
		uid := strings.TrimSuffix(strings.TrimPrefix(href, uidPathPrefix), "/")
		if uid != "" {
			uids = append(uids, uid)
		}
	})

	return uids
}
