// Package scrape defines the domain types shared by the dispatcher, workers,
// and I/O layers.
package scrape

import "fmt"

// WorkItem is one unit of work: a worklist row and the app link it carries.
// Row is the stable 1-based identity used to key results and order output.
type WorkItem struct {
	Row int
	URL string
}

// OutcomeKind classifies the result of one attempt.
type OutcomeKind string

const (
	// OutcomeSuccess yielded a usable metadata record.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeNotFound means the page rendered but carries no app data.
	// It is terminal: re-fetching a missing listing cannot help.
	OutcomeNotFound OutcomeKind = "not_found"
	// OutcomeFetchFailed means navigation or rendering failed. Retryable.
	OutcomeFetchFailed OutcomeKind = "fetch_failed"
	// OutcomeParseFailed means the page rendered but extraction errored.
	// Retryable, since a partial render often parses on a later attempt.
	OutcomeParseFailed OutcomeKind = "parse_failed"
)

// Outcome is the result of one attempt at one item.
type Outcome struct {
	Kind   OutcomeKind
	Record *Record
	Reason string
}

// Success builds a resolved outcome carrying the extracted record.
func Success(rec Record) Outcome {
	return Outcome{Kind: OutcomeSuccess, Record: &rec}
}

// NotFound builds the terminal no-data outcome.
func NotFound() Outcome {
	return Outcome{Kind: OutcomeNotFound}
}

// FetchFailed builds a retryable navigation-failure outcome.
func FetchFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeFetchFailed, Reason: reason}
}

// ParseFailed builds a retryable extraction-failure outcome.
func ParseFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeParseFailed, Reason: reason}
}

// Resolved reports whether the outcome is terminal: either a success or a
// confirmed missing page.
func (o Outcome) Resolved() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeNotFound
}

// Retryable reports whether a later attempt could still resolve the item.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeFetchFailed || o.Kind == OutcomeParseFailed
}

// Attempt records one worker pass at one item during one round.
type Attempt struct {
	Item    WorkItem
	Round   int
	Outcome Outcome
}

func (a Attempt) String() string {
	if a.Outcome.Reason == "" {
		return fmt.Sprintf("row %d round %d: %s", a.Item.Row, a.Round, a.Outcome.Kind)
	}
	return fmt.Sprintf("row %d round %d: %s (%s)", a.Item.Row, a.Round, a.Outcome.Kind, a.Outcome.Reason)
}

// Record holds the metadata fields extracted from one app profile page.
// Fields the page does not expose are left empty.
type Record struct {
	Name         string
	Downloads    string
	Revenue      string
	Monetization string
	Rating       string
	ReleaseDate  string
	LastUpdate   string
	AppID        string
}

// Empty reports whether no field was extracted at all.
func (r Record) Empty() bool {
	return r == Record{}
}

// ResultRow pairs a work item with its extracted record for output.
type ResultRow struct {
	Item   WorkItem
	Record Record
}

// Event names carried in RunEvent.
const (
	EventRoundDone = "round_done"
	EventRunDone   = "run_done"
)

// RunEvent is the notification published after each dispatch round and once
// at run end.
type RunEvent struct {
	Event       string `json:"event"`
	RunID       string `json:"run_id"`
	Round       int    `json:"round,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	PendingNext int    `json:"pending_next,omitempty"`
	Succeeded   int    `json:"succeeded,omitempty"`
	Failed      int    `json:"failed,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}
