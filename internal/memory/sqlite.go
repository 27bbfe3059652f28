package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists episodes in SQLite. It is the "equivalent log store"
// alternative to the JSONL file: the table is append-only and each Record is
// one transaction, so concurrent runs never lose records. FindSimilar loads
// candidate rows and ranks them in process with the configured scorer.
type SQLiteStore struct {
	db     *sql.DB
	scorer Scorer
}

// NewSQLiteStore opens (creating if needed) an episodic database at path.
// A nil scorer selects OverlapScorer.
func NewSQLiteStore(path string, scorer Scorer) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open episodic database: %w", err)
	}
	if scorer == nil {
		scorer = OverlapScorer{}
	}

	store := &SQLiteStore{db: db, scorer: scorer}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// init creates the database schema.
func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		episode_id TEXT PRIMARY KEY,
		goal_description TEXT NOT NULL,
		context_tags TEXT,
		patterns_applied TEXT,
		outcome TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		learnings TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_timestamp ON episodes(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create episodic schema: %w", err)
	}
	return nil
}

// Record appends one episode row.
func (s *SQLiteStore) Record(ctx context.Context, ep Episode) error {
	tagsJSON, err := json.Marshal(ep.ContextTags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	patternsJSON, err := json.Marshal(ep.PatternsApplied)
	if err != nil {
		return fmt.Errorf("marshal patterns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodes
			(episode_id, goal_description, context_tags, patterns_applied, outcome, duration_ms, learnings, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.EpisodeID, ep.GoalDescription, string(tagsJSON), string(patternsJSON),
		string(ep.Outcome), ep.DurationMs, ep.Learnings, ep.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// FindSimilar loads all episodes and ranks them with the store's scorer.
func (s *SQLiteStore) FindSimilar(ctx context.Context, goal string, tags []string, limit int) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT episode_id, goal_description, context_tags, patterns_applied, outcome, duration_ms, learnings, timestamp
		FROM episodes ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var eps []Episode
	for rows.Next() {
		var (
			ep          Episode
			tagsJSON    string
			patternsStr string
			outcome     string
			ts          string
		)
		if err := rows.Scan(&ep.EpisodeID, &ep.GoalDescription, &tagsJSON, &patternsStr,
			&outcome, &ep.DurationMs, &ep.Learnings, &ts); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &ep.ContextTags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		if err := json.Unmarshal([]byte(patternsStr), &ep.PatternsApplied); err != nil {
			return nil, fmt.Errorf("unmarshal patterns: %w", err)
		}
		ep.Outcome = Outcome(outcome)
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse episode timestamp: %w", err)
		}
		ep.Timestamp = parsed
		eps = append(eps, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	return rank(eps, s.scorer, goal, tags, limit), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
