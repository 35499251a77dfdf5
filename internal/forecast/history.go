package forecast

import "github.com/iliyamo/parking-reservation/internal/repository"

// BucketKey addresses one (weekday, hour) cell. Weekday 0 is Sunday.
type BucketKey struct {
	Weekday int
	Hour    int
}

// History is the reservation demand of a lot bucketed by weekday and hour.
type History struct {
	buckets map[BucketKey]int
	total   int
}

// NewHistory indexes aggregated buckets.
func NewHistory(rows []repository.DemandBucket) History {
	h := History{buckets: make(map[BucketKey]int, len(rows))}
	for _, r := range rows {
		h.buckets[BucketKey{Weekday: r.Weekday, Hour: r.Hour}] += r.Count
		h.total += r.Count
	}
	return h
}

// Empty reports whether no bucket has data.
func (h History) Empty() bool { return len(h.buckets) == 0 }

// Len is the number of non-empty buckets.
func (h History) Len() int { return len(h.buckets) }

// Count returns the bucket count and whether the bucket has data.
func (h History) Count(weekday, hour int) (int, bool) {
	n, ok := h.buckets[BucketKey{Weekday: weekday, Hour: hour}]
	return n, ok
}

// Mean is the average count over non-empty buckets.
func (h History) Mean() float64 {
	if len(h.buckets) == 0 {
		return 0
	}
	return float64(h.total) / float64(len(h.buckets))
}

// Buckets returns a copy of the non-empty cells.
func (h History) Buckets() map[BucketKey]int {
	out := make(map[BucketKey]int, len(h.buckets))
	for k, v := range h.buckets {
		out[k] = v
	}
	return out
}
