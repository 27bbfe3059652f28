package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testEpisode(goal string, tags []string, age time.Duration) Episode {
	ep := NewEpisode(goal, tags, nil, OutcomeSucceeded, time.Second, "")
	ep.Timestamp = time.Now().Add(-age)
	return ep
}

func TestJSONLStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, err := NewJSONLStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ep := NewEpisode("migrate database schema", []string{"db", "migration"},
		[]string{"sequence"}, OutcomeFailed, 1500*time.Millisecond, "lock timeout on users table")
	if err := store.Record(context.Background(), ep); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := store.FindSimilar(context.Background(), "migrate database", []string{"db"}, 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(got))
	}
	if got[0].EpisodeID != ep.EpisodeID {
		t.Errorf("episode id mismatch: %s vs %s", got[0].EpisodeID, ep.EpisodeID)
	}
	if got[0].Outcome != OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", got[0].Outcome)
	}
	if got[0].Learnings != ep.Learnings {
		t.Errorf("learnings changed across round trip")
	}
}

func TestJSONLStore_RankingByTagOverlap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, _ := NewJSONLStore(path, nil)
	ctx := context.Background()

	far := testEpisode("unrelated cleanup", []string{"housekeeping"}, time.Hour)
	near := testEpisode("deploy api service", []string{"deploy", "api"}, time.Hour)
	nearer := testEpisode("deploy api gateway", []string{"deploy", "api", "gateway"}, time.Hour)
	for _, ep := range []Episode{far, near, nearer} {
		if err := store.Record(ctx, ep); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := store.FindSimilar(ctx, "deploy api", []string{"deploy", "api", "gateway"}, 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches (zero-score excluded), got %d", len(got))
	}
	if got[0].EpisodeID != nearer.EpisodeID {
		t.Errorf("expected highest overlap first, got %s", got[0].GoalDescription)
	}
}

func TestJSONLStore_TieBreaksMostRecentFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, _ := NewJSONLStore(path, nil)
	ctx := context.Background()

	older := testEpisode("index rebuild", []string{"search"}, 2*time.Hour)
	newer := testEpisode("index rebuild", []string{"search"}, time.Minute)
	for _, ep := range []Episode{older, newer} {
		store.Record(ctx, ep)
	}

	got, _ := store.FindSimilar(ctx, "index rebuild", []string{"search"}, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].EpisodeID != newer.EpisodeID {
		t.Error("equal scores should rank most recent first")
	}
}

func TestJSONLStore_Limit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, _ := NewJSONLStore(path, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.Record(ctx, testEpisode("build release", []string{"build"}, time.Duration(i)*time.Hour))
	}

	got, _ := store.FindSimilar(ctx, "build release", []string{"build"}, 3)
	if len(got) != 3 {
		t.Errorf("expected limit of 3, got %d", len(got))
	}
}

func TestJSONLStore_ToleratesPartialLastLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, _ := NewJSONLStore(path, nil)
	ctx := context.Background()

	good := testEpisode("sync mirrors", []string{"sync"}, time.Hour)
	if err := store.Record(ctx, good); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Simulate a crashed writer's partial append.
	f, _ := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	f.WriteString(`{"episodeId":"trunc`)
	f.Close()

	got, err := store.FindSimilar(ctx, "sync mirrors", []string{"sync"}, 10)
	if err != nil {
		t.Fatalf("partial last line must be ignored, got %v", err)
	}
	if len(got) != 1 || got[0].EpisodeID != good.EpisodeID {
		t.Errorf("expected the intact episode only, got %d", len(got))
	}
}

func TestJSONLStore_MidFileCorruptionSurfaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, _ := NewJSONLStore(path, nil)
	ctx := context.Background()

	f, _ := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	f.WriteString("not json at all\n")
	f.Close()
	store.Record(ctx, testEpisode("anything", []string{"x"}, time.Hour))

	if _, err := store.FindSimilar(ctx, "anything", []string{"x"}, 10); err == nil {
		t.Fatal("corruption before the last line must surface as an error")
	}
}

func TestJSONLStore_ConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	store, _ := NewJSONLStore(path, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := testEpisode(fmt.Sprintf("run %d", i), []string{"load"}, time.Hour)
			if err := store.Record(ctx, ep); err != nil {
				t.Errorf("record %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.FindSimilar(ctx, "", []string{"load"}, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("expected all 20 records preserved, got %d", len(got))
	}
}

func TestOverlapScorer_GoalTokens(t *testing.T) {
	s := OverlapScorer{}
	ep := testEpisode("refactor payment processing pipeline", nil, time.Hour)

	if got := s.Score(ep, "payment pipeline audit", nil); got <= 0 {
		t.Errorf("expected positive token-overlap score, got %v", got)
	}
	if got := s.Score(ep, "unrelated", nil); got != 0 {
		t.Errorf("expected zero score for unrelated goal, got %v", got)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.db")
	store, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	ep := NewEpisode("rotate credentials", []string{"security", "ops"},
		[]string{"fallback"}, OutcomeSucceeded, 2*time.Second, "primary vault reachable")
	if err := store.Record(ctx, ep); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := store.FindSimilar(ctx, "rotate credentials", []string{"security"}, 5)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(got))
	}
	if got[0].EpisodeID != ep.EpisodeID || got[0].Outcome != OutcomeSucceeded {
		t.Errorf("episode mismatch: %+v", got[0])
	}
	if len(got[0].PatternsApplied) != 1 || got[0].PatternsApplied[0] != "fallback" {
		t.Errorf("patterns not preserved: %v", got[0].PatternsApplied)
	}
}

func TestSQLiteStore_ConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.db")
	store, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := testEpisode(fmt.Sprintf("parallel run %d", i), []string{"load"}, time.Hour)
			if err := store.Record(ctx, ep); err != nil {
				if !strings.Contains(err.Error(), "locked") {
					t.Errorf("record %d: %v", i, err)
				}
			}
		}(i)
	}
	wg.Wait()
}
