package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/estatetools/propstack-mcp/pkg/client"
)

// Config holds walk configuration.
type Config struct {
	// PageSize is the per_page value sent upstream.
	PageSize int

	// MaxItems caps accumulation across pages. Always finite; unbounded
	// accumulation is forbidden.
	MaxItems int
}

// DefaultConfig returns safe walk defaults.
func DefaultConfig() Config {
	return Config{
		PageSize: 100,
		MaxItems: 500,
	}
}

// Pager issues a single request. *client.Client satisfies this.
type Pager interface {
	Do(ctx context.Context, req client.Request) (*client.Payload, error)
}

// Collection is the accumulated result of a walk.
type Collection struct {
	// Items in upstream order, never more than the configured cap.
	Items []json.RawMessage

	// Total is the upstream's reported total when known.
	Total      int
	TotalKnown bool

	// Truncated is set when the cap ended the walk short of the full
	// upstream result. Consumers computing aggregates must surface this.
	Truncated bool
}

// Decode unmarshals the accumulated items into a slice pointed to by v.
func (c *Collection) Decode(v any) error {
	raw, err := json.Marshal(c.Items)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Walk drives the pager page by page, accumulating items from the
// template request until the upstream is exhausted or the cap is reached.
// A failure on any page is terminal: partial results are discarded.
func Walk(ctx context.Context, pager Pager, template client.Request, cfg Config) (*Collection, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 500
	}

	start := time.Now()
	coll := &Collection{}

	for page := 1; ; page++ {
		req := template.Clone()
		req.Query.Set("page", page)
		req.Query.Set("per_page", cfg.PageSize)

		payload, err := pager.Do(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		if payload.TotalKnown {
			coll.Total = payload.Total
			coll.TotalKnown = true
		}

		short := len(payload.Items) < cfg.PageSize

		for _, item := range payload.Items {
			if len(coll.Items) >= cfg.MaxItems {
				coll.Truncated = true
				break
			}
			coll.Items = append(coll.Items, item)
		}

		if coll.Truncated {
			break
		}
		if short {
			break
		}
		if coll.TotalKnown && len(coll.Items) >= coll.Total {
			break
		}
		if len(coll.Items) >= cfg.MaxItems {
			// Cap reached on a full page: upstream may hold more.
			coll.Truncated = true
			break
		}
	}

	if coll.TotalKnown && coll.Total > len(coll.Items) {
		coll.Truncated = true
	}

	log.Debug().
		Str("path", template.Path).
		Int("items", len(coll.Items)).
		Int("total", coll.Total).
		Bool("truncated", coll.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Pagination walk complete")

	return coll, nil
}
