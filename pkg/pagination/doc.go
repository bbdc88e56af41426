// Package pagination accumulates items across paginated CRM endpoints.
//
// The CRM paginates with page/per_page query parameters and reports the
// total item count in response metadata when it answers with a {data,
// meta} envelope. Pages are fetched strictly one at a time: the decision
// to fetch page N+1 depends on page N's size and the running total, so
// sequential fetching is an ordering guarantee, not a missing
// optimization.
//
// Example usage:
//
//	cfg := pagination.DefaultConfig()
//	coll, err := pagination.Walk(ctx, crmClient, client.Request{
//		Method: "GET",
//		Path:   "/v1/units",
//	}, cfg)
//
// The walk:
//   - Increments a page counter until a short page, the reported total,
//     or the caller's item cap ends it
//   - Never accumulates more than the cap, which is always finite
//   - Flags truncation whenever the cap cut the walk short of the total
//   - Treats any page failure as terminal and discards partial results
package pagination
