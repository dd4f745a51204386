package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/DeafMist/news-indexer/backend/internal/models"
)

const failurePrefix = "fail:"

// FailureBudget quarantines references that keep failing. After max
// failures inside window the reference is marked seen for quarantine, which
// stops retries until that marker expires. A zero max disables the budget,
// so failed references are retried on every run.
type FailureBudget struct {
	filter     *Filter
	max        int
	window     time.Duration
	quarantine time.Duration
}

// NewFailureBudget builds a budget on top of filter's store and keys.
func NewFailureBudget(filter *Filter, maxFailures int, window, quarantine time.Duration) *FailureBudget {
	return &FailureBudget{filter: filter, max: maxFailures, window: window, quarantine: quarantine}
}

// Enabled reports whether failures are being counted.
func (b *FailureBudget) Enabled() bool {
	return b != nil && b.max > 0
}

// RecordFailure counts one failure for ref and reports whether the reference
// was quarantined as a result.
func (b *FailureBudget) RecordFailure(ctx context.Context, ref models.ArticleReference) (bool, error) {
	if !b.Enabled() {
		return false, nil
	}

	key := b.filter.Key(ref)
	cctx, cancel := context.WithTimeout(ctx, b.filter.timeout)
	count, err := b.filter.store.Incr(cctx, b.filter.prefix+failurePrefix+key, b.window)
	cancel()
	if err != nil {
		return false, fmt.Errorf("count failure %s: %w", ref.Location, err)
	}

	if count < int64(b.max) {
		return false, nil
	}

	if err := b.filter.mark(ctx, key, b.quarantine); err != nil {
		return false, err
	}
	return true, nil
}
