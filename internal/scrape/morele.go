package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const sourceMorele = "morele"

// MoreleExtractor reads morele.net product pages. The markup is static, so a
// plain GET plus CSS selectors is enough.
type MoreleExtractor struct {
	client    *http.Client
	userAgent string
	log       *zap.Logger
}

func NewMoreleExtractor(client *http.Client, userAgent string, log *zap.Logger) *MoreleExtractor {
	return &MoreleExtractor{
		client:    client,
		userAgent: userAgent,
		log:       log.With(zap.String("component", "scrape.morele")),
	}
}

func (m *MoreleExtractor) CanHandle(url string) bool {
	return strings.Contains(url, "morele.net")
}

func (m *MoreleExtractor) Extract(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Source: sourceMorele}, err
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := m.client.Do(req)
	if err != nil {
		return Result{Source: sourceMorele}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Source: sourceMorele}, fmt.Errorf("morele.net: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		m.log.Warn("unparseable page", zap.String("url", url), zap.Error(err))
		return Result{Source: sourceMorele}, nil
	}

	res := Result{Source: sourceMorele}

	if attr, ok := doc.Find(".product-price[data-price]").Attr("data-price"); ok {
		// "2 849,00" -> "2849.00"
		raw := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(strings.TrimSpace(attr))
		if price, perr := strconv.ParseFloat(raw, 64); perr == nil {
			res.Price = &price
		} else {
			m.log.Warn("unparseable price attribute", zap.String("url", url), zap.String("raw", attr))
		}
	} else {
		m.log.Warn("price element not found", zap.String("url", url))
	}

	if title := strings.TrimSpace(doc.Find("h1.prod-name").First().Text()); title != "" {
		res.Title = &title
	}

	m.log.Debug("scraped morele.net",
		zap.String("url", url),
		zap.Any("price", res.Price),
		zap.Any("title", res.Title),
	)
	return res, nil
}
