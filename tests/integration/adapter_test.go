package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/estatetools/propstack-mcp/internal/crm"
	"github.com/estatetools/propstack-mcp/internal/testutil"
	"github.com/estatetools/propstack-mcp/pkg/client"
	"github.com/estatetools/propstack-mcp/pkg/pagination"
)

func newService(t *testing.T, mock *testutil.MockCRM, opts crm.Options) *crm.Service {
	t.Helper()

	c, err := client.New(client.Config{
		APIKey:  "integration-key",
		BaseURL: mock.URL(),
		Timeout: 10 * time.Second,
		Retry: client.RetryConfig{
			MaxRetries:  3,
			BaseBackoff: 10 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return crm.NewService(c, opts)
}

// TestFullMatchFlow exercises the complete matching path: fan-out fetch,
// paginated candidate walk, scoring, and ranking.
func TestFullMatchFlow(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()

	mock.SetResponse("/v1/units/1", testutil.NewJSONResponse(
		`{"id":1,"marketing_type":"BUY","city":"Berlin","rs_type":"APARTMENT","price":350000,"number_of_rooms":3}`))

	profiles := make([]any, 0, 25)
	for i := 1; i <= 25; i++ {
		profiles = append(profiles, map[string]any{
			"id": i, "client_id": 100 + i,
			"marketing_type": "BUY",
			"cities":         []string{"Berlin"},
		})
	}
	// One candidate that cannot match at all.
	profiles = append(profiles, map[string]any{
		"id": 99, "client_id": 999, "marketing_type": "RENT",
	})
	mock.SetPaginated("/v1/search_profiles", profiles)

	svc := newService(t, mock, crm.DefaultOptions())
	matches, err := svc.MatchProperty(context.Background(), 1)
	if err != nil {
		t.Fatalf("MatchProperty: %v", err)
	}

	if matches.Ranking.Total != 25 {
		t.Errorf("Total = %d, want 25 (zero scores excluded)", matches.Ranking.Total)
	}
	if len(matches.Ranking.Matches) != 20 {
		t.Errorf("len(Matches) = %d, want the cap of 20", len(matches.Ranking.Matches))
	}
	for _, m := range matches.Ranking.Matches {
		if m.CriteriaID == 99 {
			t.Error("Zero-score candidate ranked")
		}
	}
}

// TestRetryThenReport exercises transient upstream failure recovery inside
// a composite operation.
func TestRetryThenReport(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()

	dealAttempts := 0
	mock.SetHandler("/v1/deals", func(w http.ResponseWriter, r *http.Request) {
		dealAttempts++
		if dealAttempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":1,"name":"Schmidt purchase","deal_stage_id":1,"price":250000}],"meta":{"total_count":1}}`))
	})
	mock.SetResponse("/v1/deal_stages", testutil.NewJSONResponse(`[{"id":1,"name":"Lead"}]`))
	mock.SetPaginated("/v1/units", []any{})

	svc := newService(t, mock, crm.DefaultOptions())
	out, err := svc.BuildPipelineReport(context.Background())
	if err != nil {
		t.Fatalf("BuildPipelineReport failed despite retry budget: %v", err)
	}

	if dealAttempts != 2 {
		t.Errorf("Deal attempts = %d, want 2 (1 rate-limited + 1 success)", dealAttempts)
	}
	if len(out.Report.Buckets) != 1 || out.Report.Buckets[0].Value != 250000 {
		t.Errorf("Buckets = %+v", out.Report.Buckets)
	}
	if len(out.FailedSections) != 0 {
		t.Errorf("FailedSections = %v, want none", out.FailedSections)
	}
}

// TestTruncationPropagation verifies a capped walk is flagged all the way
// up through the aggregation report.
func TestTruncationPropagation(t *testing.T) {
	deals := make([]any, 0, 250)
	for i := 1; i <= 250; i++ {
		deals = append(deals, map[string]any{"id": i, "deal_stage_id": 1, "price": 1000})
	}

	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetPaginated("/v1/deals", deals)
	mock.SetResponse("/v1/deal_stages", testutil.NewJSONResponse(`[{"id":1,"name":"Lead"}]`))
	mock.SetPaginated("/v1/units", []any{})

	opts := crm.DefaultOptions()
	opts.Walk = pagination.Config{PageSize: 100, MaxItems: 150}
	svc := newService(t, mock, opts)

	out, err := svc.BuildPipelineReport(context.Background())
	if err != nil {
		t.Fatalf("BuildPipelineReport: %v", err)
	}

	if out.Report.TotalAggregated != 150 {
		t.Errorf("TotalAggregated = %d, want the cap of 150", out.Report.TotalAggregated)
	}
	if out.Report.TotalKnown != 250 {
		t.Errorf("TotalKnown = %d, want the upstream total 250", out.Report.TotalKnown)
	}
	if !out.Report.Truncated {
		t.Error("Truncated = false, capped aggregation must warn")
	}
}

// TestWriteReadRoundTrip walks a create, a targeted get, and an update
// through the same service.
func TestWriteReadRoundTrip(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetHandler("/v1/contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"id":7,"first_name":"Anna","email":"anna@example.test"}`))
	})
	mock.SetHandler("/v1/contacts/7", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"id":7,"first_name":"Anna","email":"anna@example.test"}`))
		case http.MethodPut:
			w.Write([]byte(`{"id":7,"first_name":"Anna","email":"anna.meier@example.test"}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	svc := newService(t, mock, crm.DefaultOptions())
	ctx := context.Background()

	created, err := svc.CreateContact(ctx, crm.ContactInput{FirstName: "Anna", Email: "anna@example.test"})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}

	fetched, err := svc.GetContact(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if fetched.Email != "anna@example.test" {
		t.Errorf("Fetched = %+v", fetched)
	}

	updated, err := svc.UpdateContact(ctx, created.ID, crm.ContactInput{Email: "anna.meier@example.test"})
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if updated.Email != "anna.meier@example.test" {
		t.Errorf("Updated = %+v", updated)
	}
}

// TestUnauthorizedFailsFast verifies a credential problem never burns the
// retry budget.
func TestUnauthorizedFailsFast(t *testing.T) {
	mock := testutil.NewMockCRM()
	defer mock.Close()
	mock.SetResponse("/v1/contacts", testutil.MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"invalid api key"}`,
	})

	svc := newService(t, mock, crm.DefaultOptions())
	_, err := svc.SearchContacts(context.Background(), crm.ContactFilters{})
	if err == nil {
		t.Fatal("Expected error but got nil")
	}

	apiErr, ok := client.AsAPIError(err)
	if !ok || apiErr.Kind != client.KindUnauthorized {
		t.Fatalf("Error = %v, want unauthorized", err)
	}
	if mock.GetPathCount("/v1/contacts") != 1 {
		t.Errorf("Requests = %d, want 1 (no retry on 401)", mock.GetPathCount("/v1/contacts"))
	}
}
