package query

import "sort"

// DefaultTopN is the number of categories kept individually by TopN.
const DefaultTopN = 10

// OtherLabel names the bucket that collects categories beyond the top N.
const OtherLabel = "Other"

// Bucket is one label and its count.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Tally counts labels and remembers the order in which each was first seen.
type Tally struct {
	order  []string
	counts map[string]int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Add counts one occurrence of label.
func (t *Tally) Add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

// Len returns the number of distinct labels.
func (t *Tally) Len() int { return len(t.order) }

// Counts returns a copy of the frequency map.
func (t *Tally) Counts() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Sorted returns buckets by descending count. Equal counts keep first-seen order.
func (t *Tally) Sorted() []Bucket {
	buckets := make([]Bucket, len(t.order))
	for i, label := range t.order {
		buckets[i] = Bucket{Label: label, Count: t.counts[label]}
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	return buckets
}

// TopN keeps the first n buckets and sums the rest into a trailing
// OtherLabel bucket. The bucket is only added when the remainder is non-zero.
// A feed category that is itself named OtherLabel never yields a second
// bucket: in the tail it is summed like any other, and within the first n it
// absorbs the remainder in place. Input must already be sorted; use
// Tally.Sorted.
func TopN(sorted []Bucket, n int) []Bucket {
	if n <= 0 {
		n = DefaultTopN
	}
	if len(sorted) <= n {
		return append([]Bucket(nil), sorted...)
	}
	out := make([]Bucket, 0, n+1)
	out = append(out, sorted[:n]...)
	var other int
	for _, b := range sorted[n:] {
		other += b.Count
	}
	if other == 0 {
		return out
	}
	for i := range out {
		if out[i].Label == OtherLabel {
			out[i].Count += other
			return out
		}
	}
	return append(out, Bucket{Label: OtherLabel, Count: other})
}
