package scrape

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const sourceXkom = "xkom"

// XkomExtractor drives a headless browser: x-kom.pl renders its product data
// client-side, so a plain GET never sees the price. The browser context is
// cancelled on every exit path.
type XkomExtractor struct {
	timeout   time.Duration
	userAgent string
	log       *zap.Logger
}

func NewXkomExtractor(timeout time.Duration, userAgent string, log *zap.Logger) *XkomExtractor {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &XkomExtractor{
		timeout:   timeout,
		userAgent: userAgent,
		log:       log.With(zap.String("component", "scrape.xkom")),
	}
}

func (x *XkomExtractor) CanHandle(url string) bool {
	return strings.Contains(url, "x-kom.pl")
}

func (x *XkomExtractor) Extract(ctx context.Context, url string) (Result, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.UserAgent(x.userAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, x.timeout)
	defer cancelRun()

	var priceContent, titleContent string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(
			`(document.querySelector('meta[property="product:price:amount"]') || {}).content || ''`,
			&priceContent,
		),
		chromedp.Evaluate(
			`(document.querySelector('meta[property="og:title"]') || {}).content || ''`,
			&titleContent,
		),
	)
	if err != nil {
		return Result{Source: sourceXkom}, err
	}

	res := Result{Source: sourceXkom}

	if priceContent == "" {
		x.log.Warn("price meta tag not found", zap.String("url", url))
	} else {
		raw := strings.ReplaceAll(strings.TrimSpace(priceContent), ",", ".")
		if price, perr := strconv.ParseFloat(raw, 64); perr == nil {
			res.Price = &price
		} else {
			x.log.Warn("unparseable price meta", zap.String("url", url), zap.String("raw", priceContent))
		}
	}

	if title := strings.TrimSpace(titleContent); title != "" {
		res.Title = &title
	}

	x.log.Debug("scraped x-kom.pl",
		zap.String("url", url),
		zap.Any("price", res.Price),
		zap.Any("title", res.Title),
	)
	return res, nil
}
