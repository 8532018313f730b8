// Package ranking picks the stations closest to an event epicenter.
package ranking

import (
	"container/heap"
	"sort"

	"github.com/mr1hm/go-quake-search/internal/models"
)

// DefaultLimit is the number of stations kept per event.
const DefaultLimit = 5

// KClosest keeps the k stations with the smallest distance seen so far.
// It is a bounded max-heap keyed on distance: the root is the farthest
// station kept and is evicted when a closer one is offered.
type KClosest struct {
	k     int
	items stationHeap
}

func NewKClosest(k int) *KClosest {
	if k <= 0 {
		k = DefaultLimit
	}
	return &KClosest{k: k, items: make(stationHeap, 0, k)}
}

// Offer adds s if fewer than k stations are held or s is closer than the
// farthest one. It reports whether s was kept.
func (kc *KClosest) Offer(s models.Station) bool {
	if len(kc.items) < kc.k {
		heap.Push(&kc.items, s)
		return true
	}
	if !closer(s, kc.items[0]) {
		return false
	}
	kc.items[0] = s
	heap.Fix(&kc.items, 0)
	return true
}

func (kc *KClosest) Len() int { return len(kc.items) }

// Sorted returns the kept stations nearest first.
func (kc *KClosest) Sorted() []models.Station {
	out := make([]models.Station, len(kc.items))
	copy(out, kc.items)
	sort.Slice(out, func(i, j int) bool { return closer(out[i], out[j]) })
	return out
}

// closer orders by distance, then seed ID so results are deterministic.
func closer(a, b models.Station) bool {
	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm < b.DistanceKm
	}
	return a.SeedID < b.SeedID
}

type stationHeap []models.Station

func (h stationHeap) Len() int           { return len(h) }
func (h stationHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h stationHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *stationHeap) Push(x any) { *h = append(*h, x.(models.Station)) }

func (h *stationHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}
