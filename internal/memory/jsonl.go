package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore persists episodes as one JSON object per line in an append-only
// file. Appends happen under a process-level mutex with O_APPEND, so
// concurrent runs in one process never interleave within a record. Readers
// tolerate a trailing partial line left by a crashed writer by ignoring the
// last line when it fails to parse.
type JSONLStore struct {
	mu     sync.Mutex
	path   string
	scorer Scorer
}

// NewJSONLStore opens (creating if needed) an episodic log at path. A nil
// scorer selects OverlapScorer.
func NewJSONLStore(path string, scorer Scorer) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create episodic dir: %w", err)
	}
	if scorer == nil {
		scorer = OverlapScorer{}
	}
	return &JSONLStore{path: path, scorer: scorer}, nil
}

// Record appends one episode. The line is marshaled before the file opens so
// a marshal failure never leaves a partial write behind.
func (s *JSONLStore) Record(ctx context.Context, ep Episode) error {
	data, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("marshal episode: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open episodic log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append episode: %w", err)
	}
	return nil
}

// FindSimilar loads the log and returns up to limit episodes ranked by the
// store's scorer, ties most-recent-first.
func (s *JSONLStore) FindSimilar(ctx context.Context, goal string, tags []string, limit int) ([]Episode, error) {
	eps, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return rank(eps, s.scorer, goal, tags, limit), nil
}

// readAll parses every line of the log. A parse failure on any line but the
// last is real corruption and surfaces as an error; a failure on the last
// line is treated as a crashed writer's partial append and skipped.
func (s *JSONLStore) readAll() ([]Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open episodic log: %w", err)
	}
	defer f.Close()

	var (
		eps   []Episode
		lines []string
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read episodic log: %w", err)
	}

	for i, line := range lines {
		var ep Episode
		if err := json.Unmarshal([]byte(line), &ep); err != nil {
			if i == len(lines)-1 {
				break
			}
			return nil, fmt.Errorf("episodic log line %d: %w", i+1, err)
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// Close releases nothing; the file is opened per operation.
func (s *JSONLStore) Close() error { return nil }
