package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/legal-decisions-crawler/internal/decision"
)

// RecordSaver persists a record and returns where it was written.
type RecordSaver interface {
	Save(ctx context.Context, rec decision.Record) (string, error)
}

// Indexer records saved decisions in a queryable index.
type Indexer interface {
	Upsert(ctx context.Context, rec SavedRecord) error
}

// Notifier announces saved decisions.
type Notifier interface {
	Publish(ctx context.Context, payload any, attrs map[string]string) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SavedRecord describes one persisted decision.
type SavedRecord struct {
	RunID   string           `json:"run_id"`
	Job     string           `json:"job"`
	URL     string           `json:"url"`
	URI     string           `json:"uri"`
	SavedAt time.Time        `json:"saved_at"`
	Summary decision.Summary `json:"summary"`
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
