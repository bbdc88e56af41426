// Package pipeline aggregates linked deal records into stage buckets with
// counts, value sums, and a staleness list.
package pipeline

import (
	"fmt"
	"sort"
	"time"
)

// UnassignedBucket is the bucket for deals carrying no stage id at all.
const UnassignedBucket = "unassigned"

// DefaultStaleAfter is the age past which a deal counts as stale.
const DefaultStaleAfter = 14 * 24 * time.Hour

// Config holds aggregation knobs.
type Config struct {
	// StaleAfter is the staleness threshold. Zero means DefaultStaleAfter.
	StaleAfter time.Duration
}

// Deal is one record under aggregation, already joined with its linked
// property's list price where one exists.
type Deal struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	StageID       *int64     `json:"stage_id,omitempty"`
	Price         *float64   `json:"price,omitempty"`          // closing/sold value
	PropertyPrice *float64   `json:"property_price,omitempty"` // linked unit list value
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Value resolves the deal's monetary value: its own sold value if
// present, else the linked property's list value, else zero.
func (d Deal) Value() float64 {
	if d.Price != nil {
		return *d.Price
	}
	if d.PropertyPrice != nil {
		return *d.PropertyPrice
	}
	return 0
}

// lastTouched is the deal's update time, falling back to creation time.
func (d Deal) lastTouched() *time.Time {
	if d.UpdatedAt != nil {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

// Bucket groups the deals sharing one stage key.
type Bucket struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Value float64 `json:"value"`
	Deals []Deal  `json:"deals"`
}

// Report is the aggregation output. TotalKnown and TotalAggregated
// diverge when a pagination cap limited the fetched sample; Truncated
// carries that warning to the caller.
type Report struct {
	Buckets         []Bucket `json:"buckets"`
	Stale           []Deal   `json:"stale"`
	TotalKnown      int      `json:"total_known"`
	TotalAggregated int      `json:"total_aggregated"`
	Truncated       bool     `json:"truncated"`
}

// Aggregate buckets deals by resolved stage key and collects stale ones.
// Every deal lands in exactly one bucket; none are dropped. stageNames
// maps stage ids to human-readable names; unknown ids fall back to a
// synthetic key embedding the raw id.
func Aggregate(deals []Deal, stageNames map[int64]string, now time.Time, cfg Config) Report {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	byKey := make(map[string]*Bucket)
	var stale []Deal

	for _, deal := range deals {
		key := resolveKey(deal.StageID, stageNames)
		bucket, ok := byKey[key]
		if !ok {
			bucket = &Bucket{Key: key}
			byKey[key] = bucket
		}
		bucket.Count++
		bucket.Value += deal.Value()
		bucket.Deals = append(bucket.Deals, deal)

		// A deal with no timestamp at all is never classified as stale.
		if touched := deal.lastTouched(); touched != nil && now.Sub(*touched) > staleAfter {
			stale = append(stale, deal)
		}
	}

	buckets := make([]Bucket, 0, len(byKey))
	for _, bucket := range byKey {
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Key < buckets[j].Key
	})

	return Report{
		Buckets:         buckets,
		Stale:           stale,
		TotalAggregated: len(deals),
		TotalKnown:      len(deals),
	}
}

// resolveKey picks the bucket key for a stage id.
func resolveKey(stageID *int64, stageNames map[int64]string) string {
	if stageID == nil {
		return UnassignedBucket
	}
	if name, ok := stageNames[*stageID]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("stage:%d", *stageID)
}
