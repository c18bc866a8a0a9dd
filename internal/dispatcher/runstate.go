package dispatcher

import (
	"sort"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// runState is the dispatcher-owned accumulator. It is created at run start,
// mutated only by the dispatcher goroutine between barrier-synchronized
// rounds, and read-only once the run finishes. Workers never see it.
type runState struct {
	items    map[int]scrape.WorkItem
	outcomes map[int]scrape.Outcome
	pending  []scrape.WorkItem
	round    int
}

func newRunState(worklist []scrape.WorkItem) *runState {
	s := &runState{
		items:    make(map[int]scrape.WorkItem, len(worklist)),
		outcomes: make(map[int]scrape.Outcome, len(worklist)),
		pending:  make([]scrape.WorkItem, 0, len(worklist)),
	}
	for _, item := range worklist {
		if _, seen := s.items[item.Row]; seen {
			continue
		}
		s.items[item.Row] = item
		s.pending = append(s.pending, item)
	}
	return s
}

// merge folds one round's attempts into the state. The next pending set is
// exactly the retryable outcomes of this round, ordered by row so the fold
// is independent of worker scheduling.
func (s *runState) merge(round int, attempts []scrape.Attempt) {
	s.round = round
	next := make([]scrape.WorkItem, 0)
	for _, a := range attempts {
		if _, known := s.items[a.Item.Row]; !known {
			continue
		}
		s.outcomes[a.Item.Row] = a.Outcome
		if a.Outcome.Retryable() {
			next = append(next, a.Item)
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Row < next[j].Row })
	s.pending = next
}

// records returns the success mapping keyed by row.
func (s *runState) records() map[int]scrape.Record {
	out := make(map[int]scrape.Record)
	for row, outcome := range s.outcomes {
		if outcome.Kind == scrape.OutcomeSuccess && outcome.Record != nil {
			out[row] = *outcome.Record
		}
	}
	return out
}

// failed returns the terminally failed items, ordered by row.
func (s *runState) failed() []scrape.WorkItem {
	out := make([]scrape.WorkItem, 0)
	for row, outcome := range s.outcomes {
		if outcome.Retryable() {
			out = append(out, s.items[row])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}

// shard splits items into at most n order-preserving chunks whose sizes
// differ by at most one. Empty shards are not returned.
func shard(items []scrape.WorkItem, n int) [][]scrape.WorkItem {
	if len(items) == 0 || n < 1 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	shards := make([][]scrape.WorkItem, 0, n)
	base := len(items) / n
	extra := len(items) % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		shards = append(shards, items[start:start+size])
		start += size
	}
	return shards
}
