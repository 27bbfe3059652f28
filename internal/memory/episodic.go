package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal result of a recorded run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Episode is one completed workflow run. Records are append-only: never
// mutated after creation and never deleted by this package.
type Episode struct {
	EpisodeID       string    `json:"episodeId"`
	GoalDescription string    `json:"goalDescription"`
	ContextTags     []string  `json:"contextTags"`
	PatternsApplied []string  `json:"patternsApplied"`
	Outcome         Outcome   `json:"outcome"`
	DurationMs      int64     `json:"durationMs"`
	Learnings       string    `json:"learnings"`
	Timestamp       time.Time `json:"timestamp"`
}

// NewEpisode creates an episode with a generated ID and current timestamp.
func NewEpisode(goal string, tags, patterns []string, outcome Outcome, duration time.Duration, learnings string) Episode {
	return Episode{
		EpisodeID:       uuid.New().String(),
		GoalDescription: goal,
		ContextTags:     tags,
		PatternsApplied: patterns,
		Outcome:         outcome,
		DurationMs:      duration.Milliseconds(),
		Learnings:       learnings,
		Timestamp:       time.Now(),
	}
}

// EpisodicStore persists episodes across runs. Record must be atomic per
// call: concurrent runs appending simultaneously may interleave but never
// lose or corrupt records. Storage failures surface as errors rather than
// being swallowed, since silently dropping history would skew later planning.
type EpisodicStore interface {
	Record(ctx context.Context, ep Episode) error
	FindSimilar(ctx context.Context, goal string, tags []string, limit int) ([]Episode, error)
	Close() error
}
