package scrape

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned by extractors when a rendered page carries none of
// the expected app-metadata fields. Callers treat it as a terminal NotFound
// rather than a parse failure.
var ErrNoData = errors.New("no app data on page")

// Session is one live browser tab. Fetch navigates to the URL, waits for the
// page to hydrate, and returns the rendered HTML. A Session is owned by one
// worker at a time and must be released with Close.
type Session interface {
	Fetch(ctx context.Context, url string) (string, error)
	Close()
}

// SessionFactory creates browser sessions. Implementations typically share
// one browser process and hand out isolated tabs.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// Extractor turns a rendered page into a metadata record. It must be a pure
// function of the page content and safe for concurrent use.
type Extractor interface {
	Extract(page string) (Record, error)
}

// WorklistSource loads the items to scrape.
type WorklistSource interface {
	Load(ctx context.Context) ([]WorkItem, error)
}

// RecordSink persists succeeded records.
type RecordSink interface {
	WriteRecords(ctx context.Context, rows []ResultRow) error
}

// FailureSink persists terminally failed items.
type FailureSink interface {
	WriteFailures(ctx context.Context, items []WorkItem) error
}

// SnapshotStore archives raw rendered pages. Put returns a URI locating the
// stored object.
type SnapshotStore interface {
	Put(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Publisher emits run events to an external channel.
type Publisher interface {
	Publish(ctx context.Context, topic string, event RunEvent) (string, error)
}

// Hasher produces a short, stable content fingerprint, used to name
// snapshot objects.
type Hasher interface {
	Fingerprint(data []byte) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
