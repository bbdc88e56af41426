// Package fanout runs independent CRM calls concurrently and collects
// every outcome, tolerating partial failure.
package fanout

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for fan-out operations.
var (
	crmFanoutCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_fanout_calls_total",
		Help: "Total fan-out member calls by result",
	}, []string{"result"})

	crmFanoutEssentialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_fanout_essential_failures_total",
		Help: "Total composite operations failed by their essential call",
	})
)

// Call is one member of a fan-out. Run must be safe to execute
// concurrently with the other members.
type Call struct {
	// Name keys this call's outcome in the result set.
	Name string

	// Essential marks the one call whose failure fails the composite
	// operation. At most one call per set may be essential.
	Essential bool

	// Run executes the call and returns its payload.
	Run func(ctx context.Context) (any, error)
}

// Outcome records one call's settled result. Exactly one of Value and Err
// is meaningful.
type Outcome struct {
	Value any
	Err   error
}

// Failed reports whether the call failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// ResultSet maps call names to outcomes. It always holds exactly one
// entry per requested call; no call is silently dropped.
type ResultSet map[string]Outcome

// FailedSections lists the names of failed non-essential calls so
// consumers can render available sections and flag the rest.
func (rs ResultSet) FailedSections() []string {
	var failed []string
	for name, outcome := range rs {
		if outcome.Failed() {
			failed = append(failed, name)
		}
	}
	return failed
}

// Run issues all calls concurrently and waits for every one to settle.
// One call's failure never cancels or affects the others. If the
// essential call fails, its error is returned alongside the complete
// result set; otherwise the error is nil even when members failed.
func Run(ctx context.Context, calls []Call) (ResultSet, error) {
	if err := validate(calls); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(calls))

	// No errgroup context here: sibling calls must keep running when one
	// fails, so errors travel through outcomes, never through g.Wait.
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			value, err := call.Run(ctx)
			if err != nil {
				outcomes[i] = Outcome{Err: err}
				crmFanoutCallsTotal.WithLabelValues("failure").Inc()
				log.Warn().
					Str("call", call.Name).
					Err(err).
					Msg("Fan-out call failed")
				return nil
			}
			outcomes[i] = Outcome{Value: value}
			crmFanoutCallsTotal.WithLabelValues("success").Inc()
			return nil
		})
	}
	_ = g.Wait() // errors captured per outcome

	results := make(ResultSet, len(calls))
	var essentialErr error
	for i, call := range calls {
		results[call.Name] = outcomes[i]
		if call.Essential && outcomes[i].Failed() {
			essentialErr = fmt.Errorf("essential call %q: %w", call.Name, outcomes[i].Err)
			crmFanoutEssentialFailures.Inc()
		}
	}

	return results, essentialErr
}

// validate rejects duplicate names and multiple essential calls up front.
func validate(calls []Call) error {
	seen := make(map[string]bool, len(calls))
	essentials := 0
	for _, call := range calls {
		if call.Name == "" {
			return fmt.Errorf("fan-out call with empty name")
		}
		if seen[call.Name] {
			return fmt.Errorf("duplicate fan-out call name %q", call.Name)
		}
		seen[call.Name] = true
		if call.Run == nil {
			return fmt.Errorf("fan-out call %q has no Run function", call.Name)
		}
		if call.Essential {
			essentials++
		}
	}
	if essentials > 1 {
		return fmt.Errorf("%d essential calls in one fan-out, at most one allowed", essentials)
	}
	return nil
}
