package rating

import (
	"math"
	"sort"
)

// Aggregator computes recording and show ratings. It is stateless and safe
// for concurrent use.
type Aggregator struct {
	threshold int
}

// NewAggregator creates an aggregator whose confidence reaches 1 at
// threshold reviews. Non-positive thresholds fall back to the default.
func NewAggregator(threshold int) *Aggregator {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Aggregator{threshold: threshold}
}

// Confidence returns min(1, reviews/threshold).
func (a *Aggregator) Confidence(reviews int) float64 {
	if reviews <= 0 {
		return 0
	}
	return math.Min(1, float64(reviews)/float64(a.threshold))
}

// Rate computes a recording rating from its review tally.
func (a *Aggregator) Rate(t Tally) *Rating {
	n := t.Count()
	if n == 0 {
		return nil
	}

	mean := float64(t.Sum()) / float64(n)
	return &Rating{
		Weighted:     mean,
		Raw:          mean,
		ReviewCount:  n,
		Confidence:   a.Confidence(n),
		HighCount:    t.Stars(4) + t.Stars(5),
		LowCount:     t.Stars(1) + t.Stars(2),
		Distribution: t,
	}
}

// RateShow picks the best recording and derives the show rating.
//
// A soundboard with at least 3 reviews wins. Otherwise the recording with
// the most reviews wins if it has at least 5. Otherwise the show score is
// the review-count weighted average over rated recordings. Unrated
// recordings never contribute to the score.
func (a *Aggregator) RateShow(candidates []Candidate) ShowRating {
	var total Tally
	for _, c := range candidates {
		total = total.Merge(c.Tally)
	}

	pooled := a.Rate(total)
	if pooled == nil {
		return ShowRating{
			BestRecordingID: bestUnrated(candidates),
			Selection:       SelectionNone,
		}
	}

	if best, ok := bestSoundboard(candidates); ok {
		return a.selected(pooled, best, SelectionSoundboard)
	}
	if best, ok := mostReviewed(candidates); ok {
		return a.selected(pooled, best, SelectionMostReviewed)
	}

	return ShowRating{
		Rating:          pooled,
		BestRecordingID: highestRated(candidates),
		Selection:       SelectionWeightedAverage,
	}
}

func (a *Aggregator) selected(pooled *Rating, best Candidate, sel Selection) ShowRating {
	r := *pooled
	r.Weighted = float64(best.Tally.Sum()) / float64(best.Tally.Count())
	return ShowRating{Rating: &r, BestRecordingID: best.ID, Selection: sel}
}

func bestSoundboard(candidates []Candidate) (Candidate, bool) {
	var eligible []Candidate
	for _, c := range candidates {
		if c.Soundboard && c.Tally.Count() >= soundboardMinReviews {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return Candidate{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		mi, mj := mean(eligible[i].Tally), mean(eligible[j].Tally)
		if mi != mj {
			return mi > mj
		}
		if ci, cj := eligible[i].Tally.Count(), eligible[j].Tally.Count(); ci != cj {
			return ci > cj
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible[0], true
}

func mostReviewed(candidates []Candidate) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		n := c.Tally.Count()
		if n < mostReviewedMinReviews {
			continue
		}
		if !found || n > best.Tally.Count() ||
			(n == best.Tally.Count() && mean(c.Tally) > mean(best.Tally)) ||
			(n == best.Tally.Count() && mean(c.Tally) == mean(best.Tally) && c.ID < best.ID) {
			best = c
			found = true
		}
	}
	return best, found
}

func highestRated(candidates []Candidate) string {
	best := ""
	bestMean, bestCount := 0.0, 0
	for _, c := range candidates {
		n := c.Tally.Count()
		if n == 0 {
			continue
		}
		m := mean(c.Tally)
		if best == "" || m > bestMean || (m == bestMean && n > bestCount) ||
			(m == bestMean && n == bestCount && c.ID < best) {
			best, bestMean, bestCount = c.ID, m, n
		}
	}
	return best
}

func bestUnrated(candidates []Candidate) string {
	best := ""
	bestRank := 0
	for _, c := range candidates {
		if best == "" || c.SourceRank > bestRank || (c.SourceRank == bestRank && c.ID < best) {
			best, bestRank = c.ID, c.SourceRank
		}
	}
	return best
}

func mean(t Tally) float64 {
	n := t.Count()
	if n == 0 {
		return 0
	}
	return float64(t.Sum()) / float64(n)
}
