// Package matching scores a property against saved search criteria and
// produces ranked, explainable results.
package matching

import (
	"sort"
	"strings"
)

// MaxResults caps ranked output to bound response size.
const MaxResults = 20

// Scoring dimension names as reported in match explanations.
const (
	DimMarketingType = "marketing_type"
	DimLocation      = "location"
	DimPrice         = "price"
	DimRent          = "rent"
	DimRooms         = "rooms"
	DimLivingSpace   = "living_space"
	DimPropertyType  = "property_type"
)

// Weights assigns a fixed weight per scoring dimension. Categorical and
// location dimensions weigh more than space checks.
type Weights struct {
	MarketingType int
	Location      int
	Price         int
	Rent          int
	Rooms         int
	LivingSpace   int
	PropertyType  int
}

// DefaultWeights returns the standard weights.
func DefaultWeights() Weights {
	return Weights{
		MarketingType: 3,
		Location:      3,
		Price:         2,
		Rent:          2,
		Rooms:         2,
		LivingSpace:   1,
		PropertyType:  2,
	}
}

// Property carries the reference property's match-relevant attributes.
// Pointer fields distinguish "not specified" from zero values.
type Property struct {
	ID            int64
	MarketingType string // BUY or RENT
	RSType        string // property type, e.g. APARTMENT, HOUSE
	City          string
	Price         *float64
	BaseRent      *float64
	Rooms         *float64
	LivingSpace   *float64
}

// Criteria is one candidate saved search. Absent constraints are nil or
// empty and are skipped entirely during scoring.
type Criteria struct {
	ID       int64
	ClientID int64

	MarketingType string
	Cities        []string
	RSTypes       []string

	PriceFrom       *float64
	PriceTo         *float64
	RentFrom        *float64
	RentTo          *float64
	RoomsFrom       *float64
	RoomsTo         *float64
	LivingSpaceFrom *float64
	LivingSpaceTo   *float64
}

// Match is the scored agreement between the reference property and one
// candidate. 0 <= Score <= MaxScore always holds; MaxScore varies per
// candidate with the criteria it actually specified.
type Match struct {
	CriteriaID int64    `json:"criteria_id"`
	ClientID   int64    `json:"client_id"`
	Score      int      `json:"score"`
	MaxScore   int      `json:"max_score"`
	Matched    []string `json:"matched"`
	Mismatched []string `json:"mismatched"`
}

// Ranking is the capped, ordered match list plus the count of all
// non-zero-scoring candidates considered.
type Ranking struct {
	Matches []Match `json:"matches"`
	Total   int     `json:"total"`
}

// Score computes the weighted agreement between property and criteria.
// A dimension contributes only when the candidate constrains it AND the
// property carries the attribute; otherwise it neither helps nor hurts.
func Score(p Property, c Criteria, w Weights) Match {
	m := Match{CriteriaID: c.ID, ClientID: c.ClientID}

	dim := func(name string, weight int, hit bool) {
		m.MaxScore += weight
		if hit {
			m.Score += weight
			m.Matched = append(m.Matched, name)
		} else {
			m.Mismatched = append(m.Mismatched, name)
		}
	}

	if c.MarketingType != "" && p.MarketingType != "" {
		dim(DimMarketingType, w.MarketingType, strings.EqualFold(c.MarketingType, p.MarketingType))
	}
	if len(c.Cities) > 0 && p.City != "" {
		dim(DimLocation, w.Location, containsFold(c.Cities, p.City))
	}
	if len(c.RSTypes) > 0 && p.RSType != "" {
		dim(DimPropertyType, w.PropertyType, containsFold(c.RSTypes, p.RSType))
	}
	if (c.PriceFrom != nil || c.PriceTo != nil) && p.Price != nil {
		dim(DimPrice, w.Price, inRange(*p.Price, c.PriceFrom, c.PriceTo))
	}
	if (c.RentFrom != nil || c.RentTo != nil) && p.BaseRent != nil {
		dim(DimRent, w.Rent, inRange(*p.BaseRent, c.RentFrom, c.RentTo))
	}
	if (c.RoomsFrom != nil || c.RoomsTo != nil) && p.Rooms != nil {
		dim(DimRooms, w.Rooms, inRange(*p.Rooms, c.RoomsFrom, c.RoomsTo))
	}
	if (c.LivingSpaceFrom != nil || c.LivingSpaceTo != nil) && p.LivingSpace != nil {
		dim(DimLivingSpace, w.LivingSpace, inRange(*p.LivingSpace, c.LivingSpaceFrom, c.LivingSpaceTo))
	}

	return m
}

// Rank scores every candidate, drops zero scores, and orders the rest by
// score descending with ties broken by fewer mismatches, then candidate
// id. The ordering is fully deterministic for identical inputs.
func Rank(p Property, candidates []Criteria, w Weights) Ranking {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		m := Score(p, c, w)
		if m.Score == 0 {
			continue
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if len(matches[i].Mismatched) != len(matches[j].Mismatched) {
			return len(matches[i].Mismatched) < len(matches[j].Mismatched)
		}
		return matches[i].CriteriaID < matches[j].CriteriaID
	})

	ranking := Ranking{Total: len(matches)}
	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	ranking.Matches = matches
	return ranking
}

// inRange checks value against [from, to], treating a missing bound as
// unbounded in that direction.
func inRange(value float64, from, to *float64) bool {
	if from != nil && value < *from {
		return false
	}
	if to != nil && value > *to {
		return false
	}
	return true
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
