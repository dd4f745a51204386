package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/DeafMist/news-indexer/backend/internal/logger"
	"github.com/DeafMist/news-indexer/backend/internal/models"
)

// PageFetcher retrieves raw page bytes. *fetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Page is the extracted content of one article page.
type Page struct {
	Location    string
	Title       string
	Description string
	Text        string
}

// Options tune an Extractor.
type Options struct {
	PageTimeout    time.Duration
	SummaryTimeout time.Duration
	// Now stamps IndexedAt; defaults to time.Now.
	Now func() time.Time
}

// Extractor fetches an article page, pulls its text and meta description,
// and summarizes it.
type Extractor struct {
	pages      PageFetcher
	summarizer Summarizer
	opts       Options
	log        *slog.Logger
}

// New creates an Extractor.
func New(pages PageFetcher, summarizer Summarizer, opts Options, log *slog.Logger) *Extractor {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{pages: pages, summarizer: summarizer, opts: opts, log: log}
}

// Extract builds the index document for ref. Any failure is returned as an
// *ExtractionError naming the stage that failed.
func (e *Extractor) Extract(ctx context.Context, ref models.ArticleReference) (models.ArticleDocument, error) {
	fail := func(stage string, err error) (models.ArticleDocument, error) {
		return models.ArticleDocument{}, &ExtractionError{
			Location:    ref.Location,
			Publication: ref.Publication,
			Stage:       stage,
			Err:         err,
		}
	}

	if strings.TrimSpace(ref.Location) == "" {
		return fail(StageValidate, ErrEmptyLocation)
	}

	page, err := e.page(ctx, ref)
	if err != nil {
		return fail(StagePage, err)
	}

	summary, err := e.summarize(ctx, page)
	if err != nil {
		return fail(StageSummary, err)
	}

	e.log.Debug("extracted article",
		slog.String("location", ref.Location),
		slog.Int("text_len", len(page.Text)),
		slog.Int("summary_len", len(summary)),
	)

	return models.ArticleDocument{
		Title:           ref.Title,
		Keywords:        ref.Keywords,
		Publication:     ref.Publication,
		PublicationDate: ref.PublicationDate,
		Description:     page.Description,
		Source:          ref.Location,
		Article:         page.Text,
		Summary:         summary,
		IndexedAt:       e.opts.Now().UTC(),
	}, nil
}

func (e *Extractor) page(ctx context.Context, ref models.ArticleReference) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()

	raw, err := e.pages.Fetch(ctx, ref.Location)
	if err != nil {
		return Page{}, err
	}

	page, err := ParsePage(ref.Location, raw)
	if err != nil {
		return Page{}, err
	}
	if page.Title == "" {
		page.Title = ref.Title
	}
	return page, nil
}

func (e *Extractor) summarize(ctx context.Context, page Page) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.SummaryTimeout)
	defer cancel()

	summary, err := e.summarizer.Summarize(ctx, page)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// ParsePage extracts the cleaned text and meta description of an HTML page.
// Readability supplies the text; when it cannot, the page's paragraphs are
// used instead. A body without HTML markup, or one readability rejects and
// that has no paragraphs, is ErrUnreadablePage; an HTML page that simply
// has no text is not an error.
func ParsePage(location string, raw []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	if doc.Find("head *, body *").Length() == 0 {
		return Page{}, ErrUnreadablePage
	}

	page := Page{
		Location:    location,
		Description: metaDescription(doc),
	}

	article, readErr := readability.FromReader(bytes.NewReader(raw), nil)
	if readErr == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = strings.TrimSpace(article.TextContent)
	}
	if page.Text == "" {
		page.Text = paragraphText(doc)
	}
	if page.Text == "" && readErr != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrUnreadablePage, readErr)
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return page, nil
}

func metaDescription(doc *goquery.Document) string {
	for _, sel := range []string{
		"meta[name='description']",
		"meta[property='og:description']",
		"meta[name='twitter:description']",
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
