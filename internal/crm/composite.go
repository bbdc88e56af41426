package crm

import (
	"context"
	"time"

	"github.com/estatetools/propstack-mcp/pkg/fanout"
	"github.com/estatetools/propstack-mcp/pkg/matching"
	"github.com/estatetools/propstack-mcp/pkg/pipeline"
)

// PropertyMatches is the MatchProperty result: the reference property and
// the ranked saved searches that want it.
type PropertyMatches struct {
	Property *Property        `json:"property"`
	Ranking  matching.Ranking `json:"ranking"`

	// CandidatesTruncated warns that the saved-search walk hit its cap,
	// so unranked candidates may exist upstream.
	CandidatesTruncated bool `json:"candidates_truncated"`
}

// MatchProperty fans out the property fetch (essential) and the
// saved-search walk, then ranks every candidate against the property.
func (s *Service) MatchProperty(ctx context.Context, propertyID int64) (*PropertyMatches, error) {
	results, err := fanout.Run(ctx, []fanout.Call{
		{
			Name:      "property",
			Essential: true,
			Run: func(ctx context.Context) (any, error) {
				return s.GetProperty(ctx, propertyID)
			},
		},
		{
			Name: "search_profiles",
			Run: func(ctx context.Context) (any, error) {
				return s.ListSearchProfiles(ctx, nil)
			},
		},
	})
	if err != nil {
		return nil, err
	}

	property := results["property"].Value.(*Property)

	// The candidate walk is not essential for fetching, but matching
	// cannot proceed without candidates; surface its failure directly.
	if outcome := results["search_profiles"]; outcome.Failed() {
		return nil, outcome.Err
	}
	profiles := results["search_profiles"].Value.(*List[SearchProfile])

	candidates := make([]matching.Criteria, 0, len(profiles.Items))
	for _, profile := range profiles.Items {
		candidates = append(candidates, profile.Criteria())
	}

	ranking := matching.Rank(property.MatchAttributes(), candidates, s.opts.Weights)

	s.logger.Debug().
		Int64("property_id", propertyID).
		Int("candidates", len(candidates)).
		Int("ranked", ranking.Total).
		Msg("Property matching complete")

	return &PropertyMatches{
		Property:            property,
		Ranking:             ranking,
		CandidatesTruncated: profiles.Truncated,
	}, nil
}

// PipelineReport is the aggregated deal pipeline: stage buckets, value
// sums, and stale deals. FailedSections names fan-out members that could
// not be fetched; their data is absent but the rest is still rendered.
type PipelineReport struct {
	Report         pipeline.Report `json:"report"`
	FailedSections []string        `json:"failed_sections,omitempty"`
}

// BuildPipelineReport fans out deals (essential), the stage lookup, and
// the unit list, then aggregates deals into stage buckets. A failed stage
// lookup degrades to synthetic stage keys; failed units degrade linked
// property values to zero. Both degradations are flagged, never silent.
func (s *Service) BuildPipelineReport(ctx context.Context) (*PipelineReport, error) {
	results, err := fanout.Run(ctx, []fanout.Call{
		{
			Name:      "deals",
			Essential: true,
			Run: func(ctx context.Context) (any, error) {
				return s.ListDeals(ctx, nil)
			},
		},
		{
			Name: "stages",
			Run: func(ctx context.Context) (any, error) {
				return s.ListDealStages(ctx)
			},
		},
		{
			Name: "properties",
			Run: func(ctx context.Context) (any, error) {
				return s.SearchProperties(ctx, PropertyFilters{})
			},
		},
	})
	if err != nil {
		return nil, err
	}

	deals := results["deals"].Value.(*List[Deal])

	stageNames := map[int64]string{}
	if outcome := results["stages"]; !outcome.Failed() {
		for _, stage := range outcome.Value.([]DealStage) {
			stageNames[stage.ID] = stage.Name
		}
	}

	propertyPrices := map[int64]*float64{}
	if outcome := results["properties"]; !outcome.Failed() {
		for _, property := range outcome.Value.(*List[Property]).Items {
			propertyPrices[property.ID] = property.Price
		}
	}

	records := make([]pipeline.Deal, 0, len(deals.Items))
	for _, deal := range deals.Items {
		record := pipeline.Deal{
			ID:        deal.ID,
			Name:      deal.Name,
			StageID:   deal.StageID,
			Price:     deal.Price,
			CreatedAt: deal.CreatedAt,
			UpdatedAt: deal.UpdatedAt,
		}
		if deal.PropertyID != nil {
			record.PropertyPrice = propertyPrices[*deal.PropertyID]
		}
		records = append(records, record)
	}

	report := pipeline.Aggregate(records, stageNames, time.Now(), s.opts.Pipeline)
	report.TotalAggregated = len(records)
	if deals.TotalKnown {
		report.TotalKnown = deals.Total
	}
	report.Truncated = deals.Truncated || report.TotalKnown > report.TotalAggregated

	out := &PipelineReport{
		Report:         report,
		FailedSections: results.FailedSections(),
	}

	s.logger.Debug().
		Int("deals", len(records)).
		Int("buckets", len(report.Buckets)).
		Int("stale", len(report.Stale)).
		Bool("truncated", report.Truncated).
		Strs("failed_sections", out.FailedSections).
		Msg("Pipeline report complete")

	return out, nil
}

// ContactDossier assembles everything the CRM holds about one contact.
// Sections that failed to load are named in FailedSections and left nil;
// available sections still render.
type ContactDossier struct {
	Contact        *Contact             `json:"contact"`
	Deals          *List[Deal]          `json:"deals,omitempty"`
	Tasks          *List[Task]          `json:"tasks,omitempty"`
	SearchProfiles *List[SearchProfile] `json:"search_profiles,omitempty"`
	FailedSections []string             `json:"failed_sections,omitempty"`
}

// BuildContactDossier fans out the contact fetch (essential) with the
// contact's deals, tasks, and saved searches.
func (s *Service) BuildContactDossier(ctx context.Context, contactID int64) (*ContactDossier, error) {
	results, err := fanout.Run(ctx, []fanout.Call{
		{
			Name:      "contact",
			Essential: true,
			Run: func(ctx context.Context) (any, error) {
				return s.GetContact(ctx, contactID)
			},
		},
		{
			Name: "deals",
			Run: func(ctx context.Context) (any, error) {
				return s.ListDeals(ctx, &contactID)
			},
		},
		{
			Name: "tasks",
			Run: func(ctx context.Context) (any, error) {
				return s.ListTasks(ctx, &contactID)
			},
		},
		{
			Name: "search_profiles",
			Run: func(ctx context.Context) (any, error) {
				return s.ListSearchProfiles(ctx, &contactID)
			},
		},
	})
	if err != nil {
		return nil, err
	}

	dossier := &ContactDossier{
		Contact:        results["contact"].Value.(*Contact),
		FailedSections: results.FailedSections(),
	}
	if outcome := results["deals"]; !outcome.Failed() {
		dossier.Deals = outcome.Value.(*List[Deal])
	}
	if outcome := results["tasks"]; !outcome.Failed() {
		dossier.Tasks = outcome.Value.(*List[Task])
	}
	if outcome := results["search_profiles"]; !outcome.Failed() {
		dossier.SearchProfiles = outcome.Value.(*List[SearchProfile])
	}

	return dossier, nil
}
