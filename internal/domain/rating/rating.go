package rating

import "math"

// DefaultConfidenceThreshold is the review count at which confidence saturates.
const DefaultConfidenceThreshold = 10

// Tally counts reviews per star value; index 0 holds one-star reviews.
type Tally [5]int

// Add records a review. Star values outside 1..5 are ignored.
func (t Tally) Add(stars int) Tally {
	if stars >= 1 && stars <= 5 {
		t[stars-1]++
	}
	return t
}

// Merge returns the element-wise sum of two tallies.
func (t Tally) Merge(other Tally) Tally {
	for i := range t {
		t[i] += other[i]
	}
	return t
}

// Count returns the number of reviews.
func (t Tally) Count() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Sum returns the total of all star values.
func (t Tally) Sum() int {
	s := 0
	for i, c := range t {
		s += (i + 1) * c
	}
	return s
}

// Stars returns the number of reviews with the given star value.
func (t Tally) Stars(stars int) int {
	if stars < 1 || stars > 5 {
		return 0
	}
	return t[stars-1]
}

// TallyFromAverage approximates a distribution for sources that only report
// an average and a count. Reviews are split between the two star values
// bracketing avg so the tally mean stays within 1/count of it.
func TallyFromAverage(avg float64, count int) Tally {
	var t Tally
	if count <= 0 || math.IsNaN(avg) {
		return t
	}
	avg = math.Max(1, math.Min(5, avg))

	lower := int(math.Floor(avg))
	if lower >= 5 {
		t[4] = count
		return t
	}

	upper := int(math.Round((avg - float64(lower)) * float64(count)))
	t[lower-1] = count - upper
	t[lower] = upper
	return t
}

// Rating is the aggregate score of a recording or show. A nil *Rating means
// no reviews exist.
type Rating struct {
	Weighted     float64 `json:"weighted"`
	Raw          float64 `json:"raw"`
	ReviewCount  int     `json:"review_count"`
	Confidence   float64 `json:"confidence"`
	HighCount    int     `json:"high_count"`
	LowCount     int     `json:"low_count"`
	Distribution Tally   `json:"distribution"`
}

// Selection records which rule picked a show's best recording.
type Selection string

const (
	SelectionSoundboard      Selection = "soundboard"
	SelectionMostReviewed    Selection = "most_reviewed"
	SelectionWeightedAverage Selection = "weighted_average"
	SelectionNone            Selection = "none"
)

const (
	soundboardMinReviews   = 3
	mostReviewedMinReviews = 5
)

// Candidate is one recording considered for a show-level rating.
type Candidate struct {
	ID         string
	Tally      Tally
	Soundboard bool
	// SourceRank orders unrated candidates; higher is better.
	SourceRank int
}

// ShowRating is the result of rating a show from its recordings.
type ShowRating struct {
	Rating          *Rating
	BestRecordingID string
	Selection       Selection
}
