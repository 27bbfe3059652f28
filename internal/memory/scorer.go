package memory

import (
	"sort"
	"strings"
)

// Scorer ranks an episode's similarity to a query. Higher is more similar;
// zero means unrelated.
type Scorer interface {
	Score(ep Episode, goal string, tags []string) float64
}

// OverlapScorer is the default scorer: count of shared context tags plus a
// smaller credit for shared goal tokens.
type OverlapScorer struct{}

// Score implements Scorer.
func (OverlapScorer) Score(ep Episode, goal string, tags []string) float64 {
	tagSet := make(map[string]bool, len(ep.ContextTags))
	for _, t := range ep.ContextTags {
		tagSet[strings.ToLower(t)] = true
	}
	var score float64
	for _, t := range tags {
		if tagSet[strings.ToLower(t)] {
			score += 1.0
		}
	}

	goalTokens := tokenize(ep.GoalDescription)
	for tok := range tokenize(goal) {
		if goalTokens[tok] {
			score += 0.25
		}
	}
	return score
}

// tokenize lower-cases and splits on non-alphanumeric runes, dropping short
// stop-ish tokens.
func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(tok) > 2 {
			out[tok] = true
		}
	}
	return out
}

// rank orders episodes by descending score, dropping zero scores, breaking
// ties most-recent-first, and truncating to limit.
func rank(eps []Episode, scorer Scorer, goal string, tags []string, limit int) []Episode {
	type scored struct {
		ep    Episode
		score float64
	}
	var kept []scored
	for _, ep := range eps {
		if s := scorer.Score(ep, goal, tags); s > 0 {
			kept = append(kept, scored{ep: ep, score: s})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].ep.Timestamp.After(kept[j].ep.Timestamp)
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	out := make([]Episode, len(kept))
	for i, s := range kept {
		out[i] = s.ep
	}
	return out
}
