package pipeline

import "log/slog"

// Outcome is the terminal state of one kept reference.
type Outcome int

const (
	// OutcomeIndexed: extracted, written and marked seen.
	OutcomeIndexed Outcome = iota
	// OutcomeExtractFailed: no document was produced; nothing written.
	OutcomeExtractFailed
	// OutcomeIndexFailed: the write was not acknowledged; not marked.
	OutcomeIndexFailed
	// OutcomeMarkFailed: written, but the presence marker could not be
	// stored, so the next run overwrites the same document.
	OutcomeMarkFailed
	// OutcomeCanceled: the run stopped before the reference finished.
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeExtractFailed:
		return "extract_failed"
	case OutcomeIndexFailed:
		return "index_failed"
	case OutcomeMarkFailed:
		return "mark_failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Stats counts references by state for one or more site runs.
type Stats struct {
	Discovered    int
	Skipped       int
	ExtractFailed int
	IndexFailed   int
	MarkFailed    int
	Indexed       int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Discovered += other.Discovered
	s.Skipped += other.Skipped
	s.ExtractFailed += other.ExtractFailed
	s.IndexFailed += other.IndexFailed
	s.MarkFailed += other.MarkFailed
	s.Indexed += other.Indexed
}

func (s *Stats) record(o Outcome) {
	switch o {
	case OutcomeIndexed:
		s.Indexed++
	case OutcomeExtractFailed:
		s.ExtractFailed++
	case OutcomeIndexFailed:
		s.IndexFailed++
	case OutcomeMarkFailed:
		s.MarkFailed++
	}
}

// Failed returns the number of references that ended in a failure state.
func (s Stats) Failed() int {
	return s.ExtractFailed + s.IndexFailed + s.MarkFailed
}

// LogValue renders the counters as a log group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("discovered", s.Discovered),
		slog.Int("skipped", s.Skipped),
		slog.Int("extract_failed", s.ExtractFailed),
		slog.Int("index_failed", s.IndexFailed),
		slog.Int("mark_failed", s.MarkFailed),
		slog.Int("indexed", s.Indexed),
	)
}
