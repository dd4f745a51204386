package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/news-indexer/backend/internal/config"
	"github.com/DeafMist/news-indexer/backend/internal/extract"
	"github.com/DeafMist/news-indexer/backend/internal/failures"
	"github.com/DeafMist/news-indexer/backend/internal/logger"
	"github.com/DeafMist/news-indexer/backend/internal/models"
)

// FeedFetcher downloads a site's feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FeedParser turns a raw feed into references in feed order. It may return
// a prefix of the references together with an error.
type FeedParser interface {
	Parse(raw []byte) ([]models.ArticleReference, error)
}

// DedupFilter drops already indexed references and records new ones.
type DedupFilter interface {
	Filter(ctx context.Context, refs []models.ArticleReference) ([]models.ArticleReference, error)
	MarkSeen(ctx context.Context, ref models.ArticleReference) error
	Key(ref models.ArticleReference) string
}

// ContentExtractor builds the document for a reference.
type ContentExtractor interface {
	Extract(ctx context.Context, ref models.ArticleReference) (models.ArticleDocument, error)
}

// IndexWriter stores a document under id and reports an error unless the
// write was acknowledged.
type IndexWriter interface {
	IndexArticle(ctx context.Context, id string, doc models.ArticleDocument) error
}

// FailureBudget counts failures per reference and reports quarantines.
type FailureBudget interface {
	RecordFailure(ctx context.Context, ref models.ArticleReference) (bool, error)
}

// Deps are the collaborators of a Pipeline. Sink and Budget are optional.
type Deps struct {
	Feeds     FeedFetcher
	Parser    FeedParser
	Filter    DedupFilter
	Extractor ContentExtractor
	Index     IndexWriter
	Sink      failures.Sink
	Budget    FailureBudget
}

// Options tune a Pipeline.
type Options struct {
	// Workers bounds concurrent extract/index/mark chains. 1 keeps the run
	// strictly sequential in feed order.
	Workers       int
	IndexTimeout  time.Duration
	// ReportTimeout bounds one failure report, retries included.
	ReportTimeout time.Duration
}

// Pipeline runs discover, dedupe, extract and index for configured sites.
type Pipeline struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

// New creates a Pipeline.
func New(deps Deps, opts Options, log *slog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.IndexTimeout <= 0 {
		opts.IndexTimeout = 10 * time.Second
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 10 * time.Second
	}
	if deps.Sink == nil {
		deps.Sink = failures.NopSink{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{deps: deps, opts: opts, log: log}
}

// Run processes sites one after another. A failing site is logged and the
// remaining sites still run; the returned error joins every site failure.
func (p *Pipeline) Run(ctx context.Context, sites []config.Site) (Stats, error) {
	var (
		total Stats
		errs  []error
	)

	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		stats, err := p.RunSite(ctx, site.URL)
		total.Add(stats)
		if err != nil {
			logger.Critical(ctx, p.log, "site run failed",
				slog.String("site", site.Name),
				slog.String("url", site.URL),
				slog.Any("err", err),
			)
			errs = append(errs, fmt.Errorf("site %s: %w", site.Name, err))
		}
	}

	p.log.Info("run finished", slog.Int("sites", len(sites)), slog.Any("stats", total))
	return total, errors.Join(errs...)
}

// RunSite performs one pass over the feed at feedURL. It returns an error
// only when the site as a whole could not be processed: the feed was
// unreachable or unreadable, or the presence store failed. Per-article
// failures are logged, counted and reported, never returned.
func (p *Pipeline) RunSite(ctx context.Context, feedURL string) (Stats, error) {
	var stats Stats
	runID := uuid.NewString()
	log := p.log.With(slog.String("run_id", runID), slog.String("site", feedURL))

	raw, err := p.deps.Feeds.Fetch(ctx, feedURL)
	if err != nil {
		return stats, fmt.Errorf("fetch feed: %w", err)
	}
	log.Info("fetched feed", slog.Int("bytes", len(raw)))

	refs, err := p.deps.Parser.Parse(raw)
	if err != nil {
		if len(refs) == 0 {
			return stats, fmt.Errorf("parse feed: %w", err)
		}
		log.Warn("feed only partially parsed", slog.Int("references", len(refs)), slog.Any("err", err))
	}
	stats.Discovered = len(refs)

	kept, err := p.deps.Filter.Filter(ctx, refs)
	if err != nil {
		return stats, fmt.Errorf("dedupe: %w", err)
	}
	stats.Skipped = len(refs) - len(kept)
	log.Info("filtered references",
		slog.Int("discovered", stats.Discovered),
		slog.Int("kept", len(kept)),
	)

	run := &siteRun{p: p, log: log, runID: runID, site: feedURL}
	if p.opts.Workers == 1 || len(kept) <= 1 {
		err = run.sequential(ctx, kept, &stats)
	} else {
		err = run.concurrent(ctx, kept, &stats)
	}

	log.Info("site finished", slog.Any("stats", stats))
	return stats, err
}

type siteRun struct {
	p     *Pipeline
	log   *slog.Logger
	runID string
	site  string
}

func (r *siteRun) sequential(ctx context.Context, refs []models.ArticleReference, stats *Stats) error {
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.record(r.process(ctx, ref))
	}
	return nil
}

func (r *siteRun) concurrent(ctx context.Context, refs []models.ArticleReference, stats *Stats) error {
	jobs := make(chan models.ArticleReference, len(refs))
	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)

	workers := r.p.opts.Workers
	if workers > len(refs) {
		workers = len(refs)
	}

	results := make(chan Outcome, len(refs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				if ctx.Err() != nil {
					results <- OutcomeCanceled
					continue
				}
				results <- r.process(ctx, ref)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for o := range results {
		stats.record(o)
	}
	return ctx.Err()
}

// process drives one kept reference through extract, index and mark. The
// presence marker is written only after the index acknowledged the write.
func (r *siteRun) process(ctx context.Context, ref models.ArticleReference) Outcome {
	log := r.log.With(slog.String("location", ref.Location), slog.String("publication", ref.Publication))

	doc, err := r.p.deps.Extractor.Extract(ctx, ref)
	if err != nil {
		stage := "extract"
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) {
			stage = exErr.Stage
		}
		logger.Critical(ctx, log, "unable to extract article", slog.String("stage", stage), slog.Any("err", err))
		r.fail(ctx, log, ref, stage, err, true)
		return OutcomeExtractFailed
	}

	key := r.p.deps.Filter.Key(ref)
	ictx, cancel := context.WithTimeout(ctx, r.p.opts.IndexTimeout)
	err = r.p.deps.Index.IndexArticle(ictx, key, doc)
	cancel()
	if err != nil {
		logger.Critical(ctx, log, "unable to index article", slog.String("id", key), slog.Any("err", err))
		r.fail(ctx, log, ref, "index", err, true)
		return OutcomeIndexFailed
	}

	if err := r.p.deps.Filter.MarkSeen(ctx, ref); err != nil {
		logger.Critical(ctx, log, "article indexed but not marked seen", slog.String("id", key), slog.Any("err", err))
		r.fail(ctx, log, ref, "mark", err, false)
		return OutcomeMarkFailed
	}

	log.Info("article indexed", slog.String("id", key))
	return OutcomeIndexed
}

func (r *siteRun) fail(ctx context.Context, log *slog.Logger, ref models.ArticleReference, stage string, cause error, budget bool) {
	report := failures.Report{
		RunID:       r.runID,
		Site:        r.site,
		Location:    ref.Location,
		Publication: ref.Publication,
		Stage:       stage,
		Error:       cause.Error(),
		Timestamp:   time.Now().UTC(),
	}

	if budget && r.p.deps.Budget != nil {
		quarantined, err := r.p.deps.Budget.RecordFailure(ctx, ref)
		switch {
		case err != nil:
			log.Warn("record failure", slog.Any("err", err))
		case quarantined:
			report.Quarantined = true
			logger.Critical(ctx, log, "reference quarantined after repeated failures")
		}
	}

	rctx, cancel := context.WithTimeout(ctx, r.p.opts.ReportTimeout)
	defer cancel()
	if err := r.p.deps.Sink.Report(rctx, report); err != nil {
		log.Warn("report failure", slog.Any("err", err))
	}
}
