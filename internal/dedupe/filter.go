package dedupe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/news-indexer/backend/internal/logger"
	"github.com/DeafMist/news-indexer/backend/internal/models"
)

// DefaultTTL is how long an indexed article stays suppressed.
const DefaultTTL = 48 * time.Hour

// KeyStrategy selects which reference fields feed the dedup key.
type KeyStrategy string

const (
	// KeyByLocation hashes the URL only; an article updated in place is not
	// re-indexed until its marker expires.
	KeyByLocation KeyStrategy = "location"
	// KeyByLocationAndDate also hashes the publication date, so a
	// republished article gets a fresh key.
	KeyByLocationAndDate KeyStrategy = "location_date"
)

// Key derives the presence-store key for ref: the hex MD5 of the raw
// location bytes (plus publication date for KeyByLocationAndDate), behind
// an optional prefix.
func Key(ref models.ArticleReference, strategy KeyStrategy, prefix string) string {
	material := ref.Location
	if strategy == KeyByLocationAndDate {
		material += "\x00" + ref.PublicationDate
	}
	sum := md5.Sum([]byte(material))
	return prefix + hex.EncodeToString(sum[:])
}

// Options tune a Filter. Zero values fall back to defaults.
type Options struct {
	TTL      time.Duration
	Strategy KeyStrategy
	Prefix   string
	// Timeout bounds each store call.
	Timeout time.Duration
}

// Filter drops references that were already indexed inside the TTL window
// and records newly indexed ones.
type Filter struct {
	store    PresenceStore
	ttl      time.Duration
	strategy KeyStrategy
	prefix   string
	timeout  time.Duration
	log      *slog.Logger
}

// NewFilter wires a Filter to store.
func NewFilter(store PresenceStore, opts Options, log *slog.Logger) *Filter {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Strategy == "" {
		opts.Strategy = KeyByLocation
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Filter{
		store:    store,
		ttl:      opts.TTL,
		strategy: opts.Strategy,
		prefix:   opts.Prefix,
		timeout:  opts.Timeout,
		log:      log,
	}
}

// Key returns the dedup key for ref under this filter's strategy.
func (f *Filter) Key(ref models.ArticleReference) string {
	return Key(ref, f.strategy, f.prefix)
}

// TTL returns the suppression window written by MarkSeen.
func (f *Filter) TTL() time.Duration { return f.ttl }

// Filter returns the references whose key is absent from the store, in
// input order. Repeats of a location inside refs are dropped as well. Any
// store failure aborts with an error wrapping ErrStoreUnavailable.
func (f *Filter) Filter(ctx context.Context, refs []models.ArticleReference) ([]models.ArticleReference, error) {
	kept := make([]models.ArticleReference, 0, len(refs))
	batch := make(map[string]struct{}, len(refs))

	for _, ref := range refs {
		key := f.Key(ref)
		if _, dup := batch[key]; dup {
			f.log.Debug("duplicate reference in feed", slog.String("location", ref.Location))
			continue
		}
		batch[key] = struct{}{}

		seen, err := f.exists(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", ref.Location, err)
		}
		if seen {
			f.log.Debug("already indexed", slog.String("location", ref.Location), slog.String("key", key))
			continue
		}

		f.log.Info("found unindexed article", slog.String("location", ref.Location))
		kept = append(kept, ref)
	}

	return kept, nil
}

// MarkSeen writes the presence marker for ref with the filter TTL.
// Re-marking refreshes the TTL.
func (f *Filter) MarkSeen(ctx context.Context, ref models.ArticleReference) error {
	return f.mark(ctx, f.Key(ref), f.ttl)
}

// Ping checks that the store answers.
func (f *Filter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.store.Ping(ctx)
}

func (f *Filter) exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.store.Exists(ctx, key)
}

func (f *Filter) mark(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.store.Set(ctx, key, ttl); err != nil {
		return fmt.Errorf("mark %s: %w", key, err)
	}
	return nil
}
